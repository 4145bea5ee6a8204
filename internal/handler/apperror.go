package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest      = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed    = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound    = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError       = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrLedgerBusy          = &AppError{http.StatusServiceUnavailable, "LEDGER_BUSY", "Artist ledger is busy, please retry"}
	ErrInvalidStreamEvent  = &AppError{http.StatusBadRequest, "INVALID_STREAM_EVENT", "Stream event is invalid"}
	ErrInvalidSplitConfig  = &AppError{http.StatusUnprocessableEntity, "INVALID_SPLIT_CONFIGURATION", "Split configuration is invalid"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrBelowMinimum        = &AppError{http.StatusUnprocessableEntity, "BELOW_MINIMUM_THRESHOLD", "Amount is below the minimum payout"}
	ErrUnsupportedMethod   = &AppError{http.StatusBadRequest, "UNSUPPORTED_PAYMENT_METHOD", "Payment method is not supported"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient available balance"}
	ErrDuplicatePayout     = &AppError{http.StatusConflict, "DUPLICATE_PAYOUT", "Idempotency key already used for a different payout"}
	ErrInvalidTransition   = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Payout cannot move to the requested status"}
	ErrPayoutTerminal      = &AppError{http.StatusConflict, "PAYOUT_TERMINAL", "Payout is already completed or failed"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrInvalidSignature      = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
)
