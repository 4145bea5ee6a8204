package domain

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrInvalidStreamEvent        = errors.New("invalid stream event")
	ErrInvalidSplitConfiguration = errors.New("invalid split configuration")
	ErrInvalidAmount             = errors.New("amount must be greater than zero")
	ErrBelowMinimumThreshold     = errors.New("amount is below the minimum payout threshold")
	ErrUnsupportedPaymentMethod  = errors.New("unsupported payment method")
	ErrInsufficientBalance       = errors.New("insufficient available balance")
	ErrDuplicateEvent            = errors.New("stream event already posted")
	ErrDuplicatePayout           = errors.New("duplicate payout")
	ErrInvalidTransition         = errors.New("invalid payout status transition")
	ErrPayoutTerminal            = errors.New("payout already in terminal state")
	ErrLedgerBusy                = errors.New("artist ledger is busy")
	ErrProviderRejected          = errors.New("disbursement provider rejected the payout")
)

// LimitError attaches the configured limit to a validation failure so callers
// can render an actionable message.
type LimitError struct {
	Err   error
	Limit int64
}

func (e *LimitError) Error() string { return e.Err.Error() }

func (e *LimitError) Unwrap() error { return e.Err }
