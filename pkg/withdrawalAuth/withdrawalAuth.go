package withdrawalAuth

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAuthorizationExpired = errors.New("authorization expired")
	ErrMalformedSignature   = errors.New("malformed signature")
)

// Authorization is a controller signature allowing a holder to withdraw until ValidUntil
// (inclusive). Nothing binds it to a single use: it can be presented repeatedly until it expires.
type Authorization struct {
	ValidUntil uint64
	Signature  []byte
}

// PackedMessage is holder ‖ wrapper ‖ uint256(validUntil), matching abi.encodePacked.
func PackedMessage(holder common.Address, wrapper common.Address, validUntil uint64) []byte {
	msg := make([]byte, 0, common.AddressLength*2+32)
	msg = append(msg, holder.Bytes()...)
	msg = append(msg, wrapper.Bytes()...)
	msg = append(msg, math.U256Bytes(new(big.Int).SetUint64(validUntil))...)
	return msg
}

func MessageHash(holder common.Address, wrapper common.Address, validUntil uint64) common.Hash {
	return crypto.Keccak256Hash(PackedMessage(holder, wrapper, validUntil))
}

// Digest is the value the controller actually signs: the message hash under the EIP-191
// personal-sign prefix, so a withdrawal signature can never double as a transaction signature.
func Digest(holder common.Address, wrapper common.Address, validUntil uint64) common.Hash {
	inner := MessageHash(holder, wrapper, validUntil)
	return common.BytesToHash(accounts.TextHash(inner.Bytes()))
}

func Sign(key *ecdsa.PrivateKey, holder common.Address, wrapper common.Address, validUntil uint64) (*Authorization, error) {
	digest := Digest(holder, wrapper, validUntil)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return &Authorization{
		ValidUntil: validUntil,
		Signature:  sig,
	}, nil
}

// SignatureFromVRS joins a split signature into the 65 byte [R || S || V] form.
func SignatureFromVRS(v uint8, r [32]byte, s [32]byte) []byte {
	sig := make([]byte, crypto.SignatureLength)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	sig[crypto.RecoveryIDOffset] = v
	return sig
}

// Recover returns the address that produced signature over digest. V may be 0/1 or 27/28.
func Recover(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(ErrMalformedSignature, "expected %d bytes, got %d", crypto.SignatureLength, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, errors.Wrapf(ErrMalformedSignature, "invalid recovery id %d", signature[crypto.RecoveryIDOffset])
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrMalformedSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

type Authorizer struct {
	heights elasticAsset.IHeightSource
	logger  *zap.Logger
}

func NewAuthorizer(heights elasticAsset.IHeightSource, l *zap.Logger) *Authorizer {
	return &Authorizer{
		heights: heights,
		logger:  l,
	}
}

// Authorize checks that auth was signed by controller for (holder, wrapper, auth.ValidUntil) and
// that the current height has not passed ValidUntil. It returns the signed digest.
func (a *Authorizer) Authorize(
	ctx context.Context,
	controller common.Address,
	holder common.Address,
	wrapper common.Address,
	auth *Authorization,
) (common.Hash, error) {
	if auth == nil {
		return common.Hash{}, errors.Wrap(ErrUnauthorized, "missing authorization")
	}
	digest := Digest(holder, wrapper, auth.ValidUntil)

	signer, err := Recover(digest, auth.Signature)
	if err != nil {
		a.logger.Sugar().Debugw("Failed to recover withdrawal signer",
			zap.String("holder", holder.Hex()),
			zap.Error(err),
		)
		return digest, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if signer != controller {
		return digest, errors.Wrapf(ErrUnauthorized, "signed by %s, controller is %s", signer.Hex(), controller.Hex())
	}

	height, err := a.heights.CurrentHeight(ctx)
	if err != nil {
		return digest, err
	}
	if height > auth.ValidUntil {
		return digest, errors.Wrapf(ErrAuthorizationExpired, "valid until %d, current height %d", auth.ValidUntil, height)
	}
	return digest, nil
}
