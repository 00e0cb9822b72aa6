package eventBusTypes

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// NewConsumer returns a consumer with a random id and a channel buffered to bufferSize.
func NewConsumer(ctx context.Context, bufferSize int) *Consumer {
	return &Consumer{
		Id:      ConsumerId(uuid.NewString()),
		Context: ctx,
		Channel: make(chan *Event, bufferSize),
	}
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	all := make([]*Consumer, len(cl.consumers))
	copy(all, cl.consumers)
	return all
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

// Ledger events, published after the change they describe has been committed.
const (
	Event_Deposit           = "deposit"
	Event_Withdraw          = "withdraw"
	Event_ProxyTransfer     = "proxyTransfer"
	Event_ProxyAdded        = "proxyAdded"
	Event_ProxyRemoved      = "proxyRemoved"
	Event_ControllerChanged = "controllerChanged"
	Event_BalanceSwept      = "balanceSwept"
)

type DepositData struct {
	Holder common.Address
	Amount *big.Int
	Shares *big.Int
}

type WithdrawData struct {
	Holder common.Address
	Amount *big.Int
	Shares *big.Int
}

type ProxyTransferData struct {
	Proxy  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Shares *big.Int
}

type ProxyData struct {
	Proxy common.Address
}

type ControllerChangedData struct {
	Previous common.Address
	Next     common.Address
}

type BalanceSweptData struct {
	Controller common.Address
	Amount     *big.Int
}
