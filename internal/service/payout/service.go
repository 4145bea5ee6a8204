package payout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/events"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
)

const CancelledReason = "cancelled before processing"

type payoutRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payout, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payout, error)
	ListByArtist(ctx context.Context, q repository.Querier, artistID uuid.UUID) ([]domain.Payout, error)
	ListStuck(ctx context.Context, before time.Time) ([]domain.Payout, error)
	Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, t repository.Transition) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.PayoutEvent) error
	GetByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutEvent, error)
}

type artistLedgerRepo interface {
	Lock(ctx context.Context, tx *sql.Tx, artistIDs ...uuid.UUID) error
	Balance(ctx context.Context, q repository.Querier, artistID uuid.UUID) (domain.Balance, error)
}

// ProviderRequest is what the disbursement provider needs to move money.
type ProviderRequest struct {
	PayoutID  uuid.UUID
	ArtistID  uuid.UUID
	Amount    int64
	Currency  string
	Method    string
	Reference string
}

type provider interface {
	Submit(ctx context.Context, req ProviderRequest) error
}

type Service struct {
	payouts       payoutRepo
	events        eventRepo
	artists       artistLedgerRepo
	policy        *rules.Policy
	provider      provider
	publisher     events.Publisher
	db            *sql.DB
	metrics       *metrics.Metrics
	submitTimeout time.Duration
}

func NewService(
	payouts payoutRepo,
	eventsRepo eventRepo,
	artists artistLedgerRepo,
	policy *rules.Policy,
	prov provider,
	publisher events.Publisher,
	db *sql.DB,
	m *metrics.Metrics,
	submitTimeout time.Duration,
) *Service {
	return &Service{
		payouts:       payouts,
		events:        eventsRepo,
		artists:       artists,
		policy:        policy,
		provider:      prov,
		publisher:     publisher,
		db:            db,
		metrics:       m,
		submitTimeout: submitTimeout,
	}
}

func (s *Service) Policy() *rules.Policy { return s.policy }

func (s *Service) QuoteFee(amount int64, method string) (rules.Fee, error) {
	fee, err := s.policy.ComputeFee(amount, method)
	if err != nil {
		return rules.Fee{}, fmt.Errorf("QuoteFee: %w", err)
	}
	return fee, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (s *Service) GetWithEvents(ctx context.Context, id uuid.UUID) (*domain.Payout, []domain.PayoutEvent, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetWithEvents: %w", err)
	}
	evts, err := s.events.GetByPayoutID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetWithEvents: %w", err)
	}
	return p, evts, nil
}

func (s *Service) ListForArtist(ctx context.Context, artistID uuid.UUID) ([]domain.Payout, error) {
	out, err := s.payouts.ListByArtist(ctx, nil, artistID)
	if err != nil {
		return nil, fmt.Errorf("ListForArtist: %w", err)
	}
	return out, nil
}

// StuckProcessing lists payouts still waiting on the provider after the cutoff.
func (s *Service) StuckProcessing(ctx context.Context, cutoff time.Time) ([]domain.Payout, error) {
	out, err := s.payouts.ListStuck(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("StuckProcessing: %w", err)
	}
	return out, nil
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, payoutID uuid.UUID, eventType domain.PayoutEventType, actor string, payload map[string]any, now time.Time) error {
	var raw json.RawMessage
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("writeEvent: marshal: %w", err)
		}
		raw = b
	}
	event := &domain.PayoutEvent{
		ID:        uuid.New(),
		PayoutID:  payoutID,
		EventType: eventType,
		Actor:     actor,
		Payload:   raw,
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}

// publish is best effort: the payout row is the source of truth and
// downstream consumers can resync from it.
func (s *Service) publish(ctx context.Context, p *domain.Payout, at time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPayout(ctx, events.NewPayoutStatusChanged(p, at)); err != nil {
		logging.FromContext(ctx).Warn("payout event not published",
			"payout_id", p.ID,
			"status", p.Status,
			"error", err,
		)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrBelowMinimumThreshold):
		return "below_minimum"
	case errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		return "unsupported_method"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrLedgerBusy):
		return "ledger_busy"
	default:
		return "other"
	}
}
