// Package payout holds the payout rules that do not touch storage: request
// validation, fee computation and the status machine.
package payout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/money"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
)

type Fee struct {
	Method    string
	Rate      decimal.Decimal
	Amount    int64
	Fee       int64
	NetAmount int64
}

type Policy struct {
	minimum  int64
	currency string
	fees     *rates.FeeTable
}

func NewPolicy(minimum int64, currency string, fees *rates.FeeTable) *Policy {
	return &Policy{minimum: minimum, currency: currency, fees: fees}
}

func (p *Policy) Minimum() int64   { return p.minimum }
func (p *Policy) Currency() string { return p.currency }

// ValidateRequest runs the checks that need no ledger state, in the order
// callers see them: amount, threshold, then method.
func (p *Policy) ValidateRequest(amount int64, method string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if amount < p.minimum {
		return &domain.LimitError{Err: domain.ErrBelowMinimumThreshold, Limit: p.minimum}
	}
	if _, ok := p.fees.Rate(method); !ok {
		return fmt.Errorf("method %q: %w", method, domain.ErrUnsupportedPaymentMethod)
	}
	return nil
}

// CheckBalance must run against a balance read under the artist lock.
func (p *Policy) CheckBalance(amount, available int64) error {
	if amount > available {
		return &domain.LimitError{Err: domain.ErrInsufficientBalance, Limit: max(available, 0)}
	}
	return nil
}

// ComputeFee rounds amount × rate once; the net amount is what reaches the
// artist.
func (p *Policy) ComputeFee(amount int64, method string) (Fee, error) {
	if amount <= 0 {
		return Fee{}, domain.ErrInvalidAmount
	}
	rate, ok := p.fees.Rate(method)
	if !ok {
		return Fee{}, fmt.Errorf("method %q: %w", method, domain.ErrUnsupportedPaymentMethod)
	}
	fee := money.ToCents(money.FromCents(amount).Mul(rate))
	return Fee{
		Method:    method,
		Rate:      rate,
		Amount:    amount,
		Fee:       fee,
		NetAmount: amount - fee,
	}, nil
}

var transitions = map[domain.PayoutStatus][]domain.PayoutStatus{
	domain.PayoutStatusPending:    {domain.PayoutStatusProcessing, domain.PayoutStatusFailed},
	domain.PayoutStatusProcessing: {domain.PayoutStatusCompleted, domain.PayoutStatusFailed},
}

// CheckTransition reports ErrPayoutTerminal for any move out of a terminal
// state and ErrInvalidTransition for other disallowed moves.
func CheckTransition(from, to domain.PayoutStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%s -> %s: %w", from, to, domain.ErrPayoutTerminal)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, domain.ErrInvalidTransition)
}
