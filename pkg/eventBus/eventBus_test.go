package eventBus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/pkg/eventBus/eventBusTypes"
	"github.com/stretchr/testify/assert"
)

func Test_EventBus(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should deliver until the consumer unsubscribes", func(t *testing.T) {
		eb := NewEventBus(l)
		consumer := eventBusTypes.NewConsumer(context.Background(), 1000)

		receivedCount := atomic.Uint64{}
		wg := sync.WaitGroup{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range consumer.Channel {
				assert.Equal(t, eventBusTypes.Event_Deposit, event.Name)
				if receivedCount.Add(1) == 3 {
					eb.Unsubscribe(consumer)
					return
				}
			}
		}()
		eb.Subscribe(consumer)

		for i := 0; i < 3; i++ {
			eb.Publish(&eventBusTypes.Event{
				Name: eventBusTypes.Event_Deposit,
				Data: &eventBusTypes.DepositData{},
			})
		}
		wg.Wait()

		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_Withdraw})
		assert.Equal(t, uint64(3), receivedCount.Load())
		assert.Len(t, consumer.Channel, 0)
	})
	t.Run("Should drop events for a full consumer without blocking", func(t *testing.T) {
		eb := NewEventBus(l)
		consumer := eventBusTypes.NewConsumer(context.Background(), 1)
		eb.Subscribe(consumer)

		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_ProxyAdded})
		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_ProxyRemoved})

		assert.Len(t, consumer.Channel, 1)
		event := <-consumer.Channel
		assert.Equal(t, eventBusTypes.Event_ProxyAdded, event.Name)
	})
	t.Run("Should give every consumer its own id", func(t *testing.T) {
		a := eventBusTypes.NewConsumer(context.Background(), 1)
		b := eventBusTypes.NewConsumer(context.Background(), 1)
		assert.NotEqual(t, a.Id, b.Id)
	})
}
