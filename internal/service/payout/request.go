package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
)

type Request struct {
	ArtistID       uuid.UUID
	Amount         int64
	Method         string
	IdempotencyKey string
}

// RequestPayout creates a PENDING payout, which earmarks the amount against
// the artist's available balance until it completes or fails.
func (s *Service) RequestPayout(ctx context.Context, req Request) (*domain.Payout, error) {
	log := logging.FromContext(ctx)

	if req.ArtistID == uuid.Nil {
		return nil, fmt.Errorf("RequestPayout: artist id required: %w", domain.ErrInvalidRequest)
	}
	if err := s.policy.ValidateRequest(req.Amount, req.Method); err != nil {
		s.metrics.PayoutRejected(rejectionReason(err))
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}

	existing, err := s.checkIdempotency(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}
	if existing != nil {
		log.Info("idempotent replay", "payout_id", existing.ID, "idempotency_key", req.IdempotencyKey)
		return existing, nil
	}

	p, err := s.createPayout(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePayout) && req.IdempotencyKey != "" {
			existing, idempErr := s.checkIdempotency(ctx, req)
			if idempErr != nil {
				return nil, fmt.Errorf("RequestPayout: %w", idempErr)
			}
			if existing != nil {
				log.Info("idempotent replay (race)", "payout_id", existing.ID, "idempotency_key", req.IdempotencyKey)
				return existing, nil
			}
		}
		s.metrics.PayoutRejected(rejectionReason(err))
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}

	s.metrics.PayoutTransition(string(p.Status))
	s.publish(ctx, p, p.CreatedAt)

	log.Info("payout requested",
		"payout_id", p.ID,
		"artist_id", p.ArtistID,
		"amount", p.Amount,
		"fee", p.Fee,
		"method", p.PaymentMethod,
	)
	return p, nil
}

func (s *Service) checkIdempotency(ctx context.Context, req Request) (*domain.Payout, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}

	existing, err := s.payouts.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkIdempotency: %w", err)
	}

	if existing.ArtistID == req.ArtistID &&
		existing.Amount == req.Amount &&
		existing.PaymentMethod == req.Method {
		return existing, nil
	}
	return nil, fmt.Errorf("checkIdempotency: %w", domain.ErrDuplicatePayout)
}

func (s *Service) createPayout(ctx context.Context, req Request) (*domain.Payout, error) {
	fee, err := s.policy.ComputeFee(req.Amount, req.Method)
	if err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("createPayout: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.artists.Lock(ctx, tx, req.ArtistID); err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}

	bal, err := s.artists.Balance(ctx, tx, req.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}
	if err := s.policy.CheckBalance(req.Amount, bal.Available()); err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Payout{
		ID:            uuid.New(),
		ArtistID:      req.ArtistID,
		Amount:        req.Amount,
		Fee:           fee.Fee,
		NetAmount:     fee.NetAmount,
		Currency:      s.policy.Currency(),
		Status:        domain.PayoutStatusPending,
		PaymentMethod: req.Method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		p.IdempotencyKey = &key
	}

	if err := s.payouts.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}

	payload := map[string]any{
		"fee":            fee.Fee,
		"fee_rate":       fee.Rate.String(),
		"net_amount":     fee.NetAmount,
		"available_then": bal.Available(),
	}
	if err := s.writeEvent(ctx, tx, p.ID, domain.PayoutEventRequested, "artist", payload, now); err != nil {
		return nil, fmt.Errorf("createPayout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("createPayout: commit: %w", err)
	}
	return p, nil
}
