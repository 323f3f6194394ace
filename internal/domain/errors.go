package domain

import (
	"errors"
	"fmt"
)

// Caller-facing ledger and phase errors. Handlers map these to HTTP statuses
// with the specific reason; anything else is treated as an internal failure.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient withdrawable balance")
	ErrInsufficientHold    = errors.New("insufficient hold balance")
	ErrInvalidTransition   = errors.New("invalid phase status transition")
	ErrAlreadyEscrowed     = errors.New("phase funds already escrowed")
	ErrAlreadyReleased     = errors.New("escrow already released")
	ErrNotDelivered        = errors.New("phase has not been delivered")
	ErrNotEscrowed         = errors.New("phase funds are not in escrow")
	ErrNotReversible       = errors.New("transaction is not reversible")
	ErrInsufficientDeposit = errors.New("paid amount below required deposit")
)

// RestrictedError is returned when the restriction authority blocks an
// account from withdrawing or transacting.
type RestrictedError struct {
	Type   string
	Reason string
}

func (e *RestrictedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("account restricted (%s)", e.Type)
	}
	return fmt.Sprintf("account restricted (%s): %s", e.Type, e.Reason)
}
