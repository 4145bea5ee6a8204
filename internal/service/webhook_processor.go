package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
)

const webhookBatchSize = 10

type webhookRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.WebhookEventStatus) error
}

type payoutUpdater interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Complete(ctx context.Context, id uuid.UUID, transactionID string) (*domain.Payout, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error)
}

// WebhookProcessor applies stored disbursement callbacks to payouts. Several
// processors may poll the same table; claimed rows are skipped by the others.
type WebhookProcessor struct {
	webhooks webhookRepo
	payouts  payoutUpdater
	db       *sql.DB
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
}

func NewWebhookProcessor(
	webhooks webhookRepo,
	payouts payoutUpdater,
	db *sql.DB,
	m *metrics.Metrics,
	logger *slog.Logger,
	interval time.Duration,
) *WebhookProcessor {
	return &WebhookProcessor{
		webhooks: webhooks,
		payouts:  payouts,
		db:       db,
		metrics:  m,
		logger:   logger,
		interval: interval,
	}
}

func (p *WebhookProcessor) Start(ctx context.Context) {
	p.logger.Info("webhook processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("webhook processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("failed to process pending webhook events", "error", err)
			}
		}
	}
}

// ProcessPending handles one batch of pending events and reports how many
// reached a final webhook status.
func (p *WebhookProcessor) ProcessPending(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ProcessPending: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := p.webhooks.ClaimPending(ctx, tx, webhookBatchSize)
	if err != nil {
		return 0, fmt.Errorf("ProcessPending: %w", err)
	}

	done := 0
	for _, event := range events {
		status, err := p.processEvent(ctx, event)
		if err != nil {
			p.logger.Error("failed to process webhook event",
				"webhook_event_id", event.ID,
				"error", err,
			)
		}
		if status != domain.WebhookEventStatusPending {
			done++
		}
		p.metrics.WebhookProcessed(string(status))
		if err := p.webhooks.UpdateStatus(ctx, tx, event.ID, status); err != nil {
			return 0, fmt.Errorf("ProcessPending: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ProcessPending: commit: %w", err)
	}
	return done, nil
}

type webhookCallbackPayload struct {
	EventID       string `json:"event_id"`
	PayoutID      string `json:"payout_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// processEvent returns the status the webhook event should move to. A
// returned error leaves the event pending for the next poll.
func (p *WebhookProcessor) processEvent(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEventStatus, error) {
	var payload webhookCallbackPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		p.logger.Error("malformed webhook payload", "webhook_event_id", event.ID, "error", err)
		return domain.WebhookEventStatusFailed, nil
	}

	payoutID, err := uuid.Parse(payload.PayoutID)
	if err != nil {
		p.logger.Error("invalid payout_id in webhook", "webhook_event_id", event.ID, "payout_id", payload.PayoutID)
		return domain.WebhookEventStatusFailed, nil
	}

	payout, err := p.payouts.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("payout not found for webhook", "webhook_event_id", event.ID, "payout_id", payoutID)
			return domain.WebhookEventStatusFailed, nil
		}
		return domain.WebhookEventStatusPending, fmt.Errorf("processEvent: %w", err)
	}

	if payout.Status == domain.PayoutStatusFailed && payload.Status == "completed" {
		p.logger.Error("provider reports funds sent for a failed payout, reconcile manually",
			"webhook_event_id", event.ID,
			"payout_id", payoutID,
			"artist_id", payout.ArtistID,
			"amount", payout.Amount,
			"transaction_id", payload.TransactionID,
		)
		return domain.WebhookEventStatusFailed, nil
	}

	if payout.Status.IsTerminal() {
		p.logger.Info("payout already in terminal state, skipping",
			"webhook_event_id", event.ID,
			"payout_id", payoutID,
			"payout_status", payout.Status,
		)
		return domain.WebhookEventStatusDispatched, nil
	}

	switch payload.Status {
	case "completed":
		_, err = p.payouts.Complete(ctx, payoutID, payload.TransactionID)
	case "failed":
		reason := payload.Reason
		if reason == "" {
			reason = "disbursement failed without a reason"
		}
		_, err = p.payouts.Fail(ctx, payoutID, reason)
	default:
		p.logger.Error("unknown webhook status", "webhook_event_id", event.ID, "status", payload.Status)
		return domain.WebhookEventStatusFailed, nil
	}

	switch {
	case err == nil:
		return domain.WebhookEventStatusDispatched, nil
	case errors.Is(err, domain.ErrPayoutTerminal) && payload.Status == "completed":
		p.logger.Error("payout reached a terminal state before its completion callback, reconcile manually",
			"webhook_event_id", event.ID,
			"payout_id", payoutID,
			"transaction_id", payload.TransactionID,
		)
		return domain.WebhookEventStatusFailed, nil
	case errors.Is(err, domain.ErrPayoutTerminal):
		p.logger.Info("payout transitioned to terminal during processing",
			"webhook_event_id", event.ID,
			"payout_id", payoutID,
		)
		return domain.WebhookEventStatusDispatched, nil
	case errors.Is(err, domain.ErrInvalidTransition):
		p.logger.Warn("callback for payout not in processing",
			"webhook_event_id", event.ID,
			"payout_id", payoutID,
			"payout_status", payout.Status,
		)
		return domain.WebhookEventStatusFailed, nil
	default:
		return domain.WebhookEventStatusPending, fmt.Errorf("processEvent: %w", err)
	}
}
