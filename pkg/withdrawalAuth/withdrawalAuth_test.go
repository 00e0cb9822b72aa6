package withdrawalAuth

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/stretchr/testify/assert"
)

type fixedHeight uint64

func (h fixedHeight) CurrentHeight(_ context.Context) (uint64, error) {
	return uint64(h), nil
}

var (
	holder  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	wrapper = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func Test_WithdrawalAuth(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	controllerKey, _ := crypto.GenerateKey()
	controller := crypto.PubkeyToAddress(controllerKey.PublicKey)
	otherKey, _ := crypto.GenerateKey()

	t.Run("Should pack holder, wrapper and a 32 byte height", func(t *testing.T) {
		msg := PackedMessage(holder, wrapper, 258)
		assert.Len(t, msg, 72)
		assert.Equal(t, holder.Bytes(), msg[:20])
		assert.Equal(t, wrapper.Bytes(), msg[20:40])
		assert.Equal(t, byte(1), msg[70])
		assert.Equal(t, byte(2), msg[71])
	})
	t.Run("Should bind the digest to every field", func(t *testing.T) {
		d := Digest(holder, wrapper, 10)
		assert.NotEqual(t, d, Digest(wrapper, holder, 10))
		assert.NotEqual(t, d, Digest(holder, wrapper, 11))
		assert.NotEqual(t, d, MessageHash(holder, wrapper, 10))
	})
	t.Run("Should recover the signer with either recovery id encoding", func(t *testing.T) {
		auth, err := Sign(controllerKey, holder, wrapper, 100)
		assert.Nil(t, err)
		assert.True(t, auth.Signature[64] == 27 || auth.Signature[64] == 28)

		digest := Digest(holder, wrapper, 100)
		signer, err := Recover(digest, auth.Signature)
		assert.Nil(t, err)
		assert.Equal(t, controller, signer)

		raw := make([]byte, len(auth.Signature))
		copy(raw, auth.Signature)
		raw[64] -= 27
		signer, err = Recover(digest, raw)
		assert.Nil(t, err)
		assert.Equal(t, controller, signer)
	})
	t.Run("Should rebuild a signature from v, r and s", func(t *testing.T) {
		auth, _ := Sign(controllerKey, holder, wrapper, 100)
		var r, s [32]byte
		copy(r[:], auth.Signature[:32])
		copy(s[:], auth.Signature[32:64])
		assert.Equal(t, auth.Signature, SignatureFromVRS(auth.Signature[64], r, s))
	})
	t.Run("Should reject malformed signatures", func(t *testing.T) {
		_, err := Recover(Digest(holder, wrapper, 1), []byte{1, 2, 3})
		assert.True(t, errors.Is(err, ErrMalformedSignature))

		auth, _ := Sign(controllerKey, holder, wrapper, 1)
		auth.Signature[64] = 5
		_, err = Recover(Digest(holder, wrapper, 1), auth.Signature)
		assert.True(t, errors.Is(err, ErrMalformedSignature))
	})

	t.Run("Should authorize a controller signature up to and including its height", func(t *testing.T) {
		auth, _ := Sign(controllerKey, holder, wrapper, 50)

		digest, err := NewAuthorizer(fixedHeight(49), l).Authorize(context.Background(), controller, holder, wrapper, auth)
		assert.Nil(t, err)
		assert.Equal(t, Digest(holder, wrapper, 50), digest)

		_, err = NewAuthorizer(fixedHeight(50), l).Authorize(context.Background(), controller, holder, wrapper, auth)
		assert.Nil(t, err)
	})
	t.Run("Should reject an authorization past its height", func(t *testing.T) {
		auth, _ := Sign(controllerKey, holder, wrapper, 50)
		_, err := NewAuthorizer(fixedHeight(51), l).Authorize(context.Background(), controller, holder, wrapper, auth)
		assert.True(t, errors.Is(err, ErrAuthorizationExpired))
	})
	t.Run("Should reject signatures from anyone but the controller", func(t *testing.T) {
		auth, _ := Sign(otherKey, holder, wrapper, 50)
		_, err := NewAuthorizer(fixedHeight(1), l).Authorize(context.Background(), controller, holder, wrapper, auth)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
	t.Run("Should reject an authorization presented by another holder", func(t *testing.T) {
		auth, _ := Sign(controllerKey, holder, wrapper, 50)
		other := common.HexToAddress("0x5000000000000000000000000000000000000005")
		_, err := NewAuthorizer(fixedHeight(1), l).Authorize(context.Background(), controller, other, wrapper, auth)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
	t.Run("Should reject a missing authorization", func(t *testing.T) {
		_, err := NewAuthorizer(fixedHeight(1), l).Authorize(context.Background(), controller, holder, wrapper, nil)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
}
