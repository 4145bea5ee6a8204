package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
)

type move struct {
	to            domain.PayoutStatus
	onlyFrom      domain.PayoutStatus
	event         domain.PayoutEventType
	actor         string
	transactionID *string
	reason        *string
}

// apply runs one status transition under the artist lock, so the balance
// seen by a concurrent payout request always reflects it.
func (s *Service) apply(ctx context.Context, id uuid.UUID, m move) (*domain.Payout, error) {
	current, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.artists.Lock(ctx, tx, current.ArtistID); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	p, err := s.payouts.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	if m.onlyFrom != "" && p.Status != m.onlyFrom && !p.Status.IsTerminal() {
		return nil, fmt.Errorf("apply: %s -> %s: %w", p.Status, m.to, domain.ErrInvalidTransition)
	}
	if err := rules.CheckTransition(p.Status, m.to); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	now := time.Now().UTC()
	t := repository.Transition{
		From:          p.Status,
		To:            m.to,
		TransactionID: m.transactionID,
		FailureReason: m.reason,
	}
	if m.to == domain.PayoutStatusCompleted {
		t.CompletedAt = &now
	}
	if err := s.payouts.Transition(ctx, tx, id, t); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	payload := map[string]any{"from": p.Status}
	if m.transactionID != nil {
		payload["transaction_id"] = *m.transactionID
	}
	if m.reason != nil {
		payload["reason"] = *m.reason
	}
	if err := s.writeEvent(ctx, tx, id, m.event, m.actor, payload, now); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply: commit: %w", err)
	}

	p.Status = m.to
	p.UpdatedAt = now
	if m.transactionID != nil {
		p.TransactionID = m.transactionID
	}
	if m.reason != nil {
		p.FailureReason = m.reason
	}
	if t.CompletedAt != nil {
		p.CompletedAt = t.CompletedAt
	}

	s.metrics.PayoutTransition(string(p.Status))
	s.publish(ctx, p, now)
	return p, nil
}

// StartProcessing hands a PENDING payout to the disbursement provider. A
// provider rejection fails the payout with the provider's error as the
// reason; the returned payout then carries status FAILED and err is nil. Any
// other submission error leaves the payout PROCESSING with its amount still
// earmarked, since the provider may have accepted it. The callback or the
// stuck-payout report settles it.
func (s *Service) StartProcessing(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	log := logging.FromContext(ctx)

	p, err := s.apply(ctx, id, move{
		to:       domain.PayoutStatusProcessing,
		onlyFrom: domain.PayoutStatusPending,
		event:    domain.PayoutEventProcessing,
		actor:    "system",
	})
	if err != nil {
		return nil, fmt.Errorf("StartProcessing: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	start := time.Now()
	err = s.provider.Submit(submitCtx, ProviderRequest{
		PayoutID:  p.ID,
		ArtistID:  p.ArtistID,
		Amount:    p.NetAmount,
		Currency:  p.Currency,
		Method:    p.PaymentMethod,
		Reference: p.ID.String(),
	})
	s.metrics.ObserveDisbursement(time.Since(start))
	if err == nil {
		log.Info("payout submitted", "payout_id", p.ID, "net_amount", p.NetAmount)
		return p, nil
	}

	if !errors.Is(err, domain.ErrProviderRejected) {
		log.Warn("disbursement submission outcome unknown, awaiting callback", "payout_id", p.ID, "error", err)
		return p, nil
	}

	log.Warn("disbursement rejected", "payout_id", p.ID, "error", err)
	failed, failErr := s.Fail(ctx, p.ID, err.Error())
	if failErr != nil {
		return nil, fmt.Errorf("StartProcessing: submit: %v: fail payout: %w", err, failErr)
	}
	return failed, nil
}

// Cancel withdraws a payout that has not reached the provider yet. The
// earmarked amount returns to the available balance.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	reason := CancelledReason
	p, err := s.apply(ctx, id, move{
		to:       domain.PayoutStatusFailed,
		onlyFrom: domain.PayoutStatusPending,
		event:    domain.PayoutEventCancelled,
		actor:    "artist",
		reason:   &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	logging.FromContext(ctx).Info("payout cancelled", "payout_id", p.ID, "artist_id", p.ArtistID)
	return p, nil
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, transactionID string) (*domain.Payout, error) {
	var ref *string
	if transactionID != "" {
		ref = &transactionID
	}
	p, err := s.apply(ctx, id, move{
		to:            domain.PayoutStatusCompleted,
		onlyFrom:      domain.PayoutStatusProcessing,
		event:         domain.PayoutEventCompleted,
		actor:         "provider",
		transactionID: ref,
	})
	if err != nil {
		return nil, fmt.Errorf("Complete: %w", err)
	}
	logging.FromContext(ctx).Info("payout completed", "payout_id", p.ID, "transaction_id", transactionID)
	return p, nil
}

// Fail records the provider's reason verbatim.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error) {
	p, err := s.apply(ctx, id, move{
		to:       domain.PayoutStatusFailed,
		onlyFrom: domain.PayoutStatusProcessing,
		event:    domain.PayoutEventFailed,
		actor:    "provider",
		reason:   &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("Fail: %w", err)
	}
	logging.FromContext(ctx).Info("payout failed", "payout_id", p.ID, "reason", reason)
	return p, nil
}
