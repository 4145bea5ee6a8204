package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
	"github.com/josh-kwaku/royalty-ledger/internal/service/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/testutil"
)

type acceptingProvider struct{}

func (acceptingProvider) Submit(context.Context, payout.ProviderRequest) error { return nil }

func setupWebhookTest(t *testing.T, db *sql.DB) (*payout.Service, *WebhookProcessor, *repository.WebhookEventRepository) {
	t.Helper()

	payoutSvc := payout.NewService(
		repository.NewPayoutRepository(db),
		repository.NewPayoutEventRepository(db),
		repository.NewArtistLedgerRepository(db, 5*time.Second),
		rules.NewPolicy(1000, "USD", rates.DefaultFeeTable()),
		acceptingProvider{},
		nil,
		db,
		nil,
		time.Second,
	)

	webhookRepo := repository.NewWebhookEventRepository(db)
	processor := NewWebhookProcessor(webhookRepo, payoutSvc, db, nil, slog.Default(), time.Second)
	return payoutSvc, processor, webhookRepo
}

// processingPayout returns a payout that is waiting on the provider.
func processingPayout(t *testing.T, db *sql.DB, svc *payout.Service, amount int64) *domain.Payout {
	t.Helper()
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, amount)

	p, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: amount, Method: "paypal"})
	require.NoError(t, err)
	p, err = svc.StartProcessing(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusProcessing, p.Status)
	return p
}

func insertWebhookEvent(t *testing.T, repo *repository.WebhookEventRepository, payoutID uuid.UUID, status, reason string) *domain.WebhookEvent {
	t.Helper()

	eventType := domain.WebhookEventTypePayoutCompleted
	if status == "failed" {
		eventType = domain.WebhookEventTypePayoutFailed
	}

	payload, _ := json.Marshal(webhookCallbackPayload{
		EventID:       uuid.NewString(),
		PayoutID:      payoutID.String(),
		Status:        status,
		TransactionID: "txn-123",
		Reason:        reason,
	})
	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: uuid.NewString(),
		EventType:      eventType,
		Payload:        payload,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func TestWebhookProcessor_CompletedPayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	payoutSvc, processor, webhookRepo := setupWebhookTest(t, db)

	p := processingPayout(t, db, payoutSvc, 5000)
	event := insertWebhookEvent(t, webhookRepo, p.ID, "completed", "")

	n, err := processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	updated, evts, err := payoutSvc.GetWithEvents(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, updated.Status)
	require.NotNil(t, updated.TransactionID)
	assert.Equal(t, "txn-123", *updated.TransactionID)
	require.NotNil(t, updated.CompletedAt)

	require.Len(t, evts, 3)
	assert.Equal(t, domain.PayoutEventCompleted, evts[2].EventType)

	status, err := webhookRepo.GetStatus(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventStatusDispatched, status)
}

func TestWebhookProcessor_FailedPayoutReleasesBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	payoutSvc, processor, webhookRepo := setupWebhookTest(t, db)
	artists := repository.NewArtistLedgerRepository(db, time.Second)

	p := processingPayout(t, db, payoutSvc, 5000)
	before, err := artists.Balance(ctx, nil, p.ArtistID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.Available())

	insertWebhookEvent(t, webhookRepo, p.ID, "failed", "provider_declined")

	_, err = processor.ProcessPending(ctx)
	require.NoError(t, err)

	updated, err := payoutSvc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "provider_declined", *updated.FailureReason)

	after, err := artists.Balance(ctx, nil, p.ArtistID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), after.Available())
}

func TestWebhookProcessor_TerminalPayoutIsSkipped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	payoutSvc, processor, webhookRepo := setupWebhookTest(t, db)

	p := processingPayout(t, db, payoutSvc, 3000)
	insertWebhookEvent(t, webhookRepo, p.ID, "completed", "")
	_, err := processor.ProcessPending(ctx)
	require.NoError(t, err)

	late := insertWebhookEvent(t, webhookRepo, p.ID, "failed", "too late")
	_, err = processor.ProcessPending(ctx)
	require.NoError(t, err)

	updated, err := payoutSvc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, updated.Status)

	status, err := webhookRepo.GetStatus(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventStatusDispatched, status)
}

func TestWebhookProcessor_CompletionForFailedPayoutIsFlagged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	payoutSvc, processor, webhookRepo := setupWebhookTest(t, db)

	p := processingPayout(t, db, payoutSvc, 3000)
	_, err := payoutSvc.Fail(ctx, p.ID, "provider_declined")
	require.NoError(t, err)

	late := insertWebhookEvent(t, webhookRepo, p.ID, "completed", "")
	_, err = processor.ProcessPending(ctx)
	require.NoError(t, err)

	updated, err := payoutSvc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, updated.Status)

	status, err := webhookRepo.GetStatus(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventStatusFailed, status)
}

func TestWebhookProcessor_UnknownPayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	_, processor, webhookRepo := setupWebhookTest(t, db)

	event := insertWebhookEvent(t, webhookRepo, uuid.New(), "completed", "")

	_, err := processor.ProcessPending(ctx)
	require.NoError(t, err)

	status, err := webhookRepo.GetStatus(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventStatusFailed, status)
}
