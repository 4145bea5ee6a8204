package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/money"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	respondError(w, appErr, appErr.Message, details)
}

func respondError(w http.ResponseWriter, appErr *AppError, message string, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps a service error onto the API error catalogue. Limit
// failures carry the configured limit in the message.
func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError
	message := ""

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrLedgerBusy):
		appErr = ErrLedgerBusy
	case errors.Is(err, domain.ErrInvalidStreamEvent):
		appErr = ErrInvalidStreamEvent
		message = rootMessage(err)
	case errors.Is(err, domain.ErrInvalidSplitConfiguration):
		appErr = ErrInvalidSplitConfig
		message = rootMessage(err)
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrBelowMinimumThreshold):
		appErr = ErrBelowMinimum
		if limit, ok := limitOf(err); ok {
			message = fmt.Sprintf("minimum payout amount is %s", money.Format(limit))
		}
	case errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		appErr = ErrUnsupportedMethod
	case errors.Is(err, domain.ErrInsufficientBalance):
		appErr = ErrInsufficientBalance
		if limit, ok := limitOf(err); ok {
			message = fmt.Sprintf("available balance is %s", money.Format(limit))
		}
	case errors.Is(err, domain.ErrDuplicatePayout):
		appErr = ErrDuplicatePayout
	case errors.Is(err, domain.ErrPayoutTerminal):
		appErr = ErrPayoutTerminal
	case errors.Is(err, domain.ErrInvalidTransition):
		appErr = ErrInvalidTransition
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	if message == "" {
		message = appErr.Message
	}
	respondError(w, appErr, message, nil)
}

func limitOf(err error) (int64, bool) {
	var le *domain.LimitError
	if errors.As(err, &le) {
		return le.Limit, true
	}
	return 0, false
}

// rootMessage drops the "Op: " prefixes the service layers add, keeping the
// innermost description.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil || next == domain.ErrInvalidStreamEvent || next == domain.ErrInvalidSplitConfiguration {
			break
		}
		err = next
	}
	return err.Error()
}
