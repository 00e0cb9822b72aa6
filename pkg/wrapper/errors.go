package wrapper

import (
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/withdrawalAuth"
)

var (
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrUnauthorized         = withdrawalAuth.ErrUnauthorized
	ErrAuthorizationExpired = withdrawalAuth.ErrAuthorizationExpired
	ErrSlippageExceeded     = errors.New("slippage exceeded")

	ErrInvalidAmount  = errors.New("amount must be non-negative")
	ErrTransferFailed = errors.New("asset transfer failed")
	// ErrAuthorizationUsed is only returned when single-use authorizations are enabled. It also
	// matches ErrUnauthorized.
	ErrAuthorizationUsed = errors.Wrap(withdrawalAuth.ErrUnauthorized, "authorization already used")
)
