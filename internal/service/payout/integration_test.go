package payout_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
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

type stubProvider struct {
	mu   sync.Mutex
	err  error
	seen []payout.ProviderRequest
}

func (p *stubProvider) Submit(_ context.Context, req payout.ProviderRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, req)
	return p.err
}

func setupPayoutService(t *testing.T, db *sql.DB, prov *stubProvider) (*payout.Service, *repository.ArtistLedgerRepository) {
	t.Helper()
	artists := repository.NewArtistLedgerRepository(db, 5*time.Second)
	return payout.NewService(
		repository.NewPayoutRepository(db),
		repository.NewPayoutEventRepository(db),
		artists,
		rules.NewPolicy(1000, "USD", rates.DefaultFeeTable()),
		prov,
		nil,
		db,
		nil,
		time.Second,
	), artists
}

func available(t *testing.T, artists *repository.ArtistLedgerRepository, artistID uuid.UUID) int64 {
	t.Helper()
	b, err := artists.Balance(context.Background(), nil, artistID)
	require.NoError(t, err)
	return b.Available()
}

func TestRequestPayout_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, artists := setupPayoutService(t, db, &stubProvider{})
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 5000)

	p, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 3000, Method: "paypal"})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, p.Status)
	assert.Equal(t, int64(87), p.Fee)
	assert.Equal(t, int64(2913), p.NetAmount)
	assert.Equal(t, "USD", p.Currency)

	assert.Equal(t, int64(2000), available(t, artists, artist))

	_, evts, err := svc.GetWithEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, domain.PayoutEventRequested, evts[0].EventType)
}

func TestRequestPayout_InsufficientBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, artists := setupPayoutService(t, db, &stubProvider{})
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 2500)

	_, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 3000, Method: "paypal"})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var le *domain.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, int64(2500), le.Limit)
	assert.Equal(t, int64(2500), available(t, artists, artist))

	list, err := svc.ListForArtist(ctx, artist)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRequestPayout_IdempotentReplay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, artists := setupPayoutService(t, db, &stubProvider{})
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 5000)
	key := uuid.NewString()

	first, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 2000, Method: "card", IdempotencyKey: key})
	require.NoError(t, err)
	second, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 2000, Method: "card", IdempotencyKey: key})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(3000), available(t, artists, artist))

	_, err = svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 2500, Method: "card", IdempotencyKey: key})
	assert.ErrorIs(t, err, domain.ErrDuplicatePayout)
}

func TestRequestPayout_ConcurrentRequestsCannotOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, artists := setupPayoutService(t, db, &stubProvider{})
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 10000)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 3000, Method: "paypal"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 2, insufficient)
	assert.Equal(t, int64(1000), available(t, artists, artist))
}

func TestPayoutLifecycle_Completes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := &stubProvider{}
	svc, artists := setupPayoutService(t, db, prov)
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 5000)

	p, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 4000, Method: "bank_transfer"})
	require.NoError(t, err)

	p, err = svc.StartProcessing(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
	require.Len(t, prov.seen, 1)
	assert.Equal(t, int64(3960), prov.seen[0].Amount)

	p, err = svc.Complete(ctx, p.ID, "txn-123")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, p.Status)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "txn-123", *p.TransactionID)

	stored, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, int64(1000), available(t, artists, artist))

	_, err = svc.Fail(ctx, p.ID, "late failure")
	assert.ErrorIs(t, err, domain.ErrPayoutTerminal)
	_, err = svc.Cancel(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrPayoutTerminal)
}

func TestPayoutLifecycle_ProviderRejectionFailsPayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := &stubProvider{err: fmt.Errorf("account closed: %w", domain.ErrProviderRejected)}
	svc, artists := setupPayoutService(t, db, prov)
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 5000)

	p, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 4000, Method: "crypto"})
	require.NoError(t, err)

	p, err = svc.StartProcessing(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, p.Status)
	require.NotNil(t, p.FailureReason)
	assert.Equal(t, "account closed: disbursement provider rejected the payout", *p.FailureReason)

	assert.Equal(t, int64(5000), available(t, artists, artist))

	_, evts, err := svc.GetWithEvents(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, evts, 3)
}

func TestPayoutLifecycle_UnknownSubmissionOutcomeKeepsEarmark(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", context.DeadlineExceeded},
		{"provider error", errors.New("Submit: unexpected status 503: upstream unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			prov := &stubProvider{err: tt.err}
			svc, artists := setupPayoutService(t, db, prov)
			ctx := context.Background()

			artist := testutil.SeedArtist(t, db)
			testutil.SeedEarnings(t, db, artist, 5000)

			p, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 4000, Method: "crypto"})
			require.NoError(t, err)

			p, err = svc.StartProcessing(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
			assert.Nil(t, p.FailureReason)
			assert.Equal(t, int64(1000), available(t, artists, artist))

			_, err = svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 4000, Method: "crypto"})
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

			completed, err := svc.Complete(ctx, p.ID, "txn-late")
			require.NoError(t, err)
			assert.Equal(t, domain.PayoutStatusCompleted, completed.Status)
			assert.Equal(t, int64(1000), available(t, artists, artist))
		})
	}
}

func TestPayoutLifecycle_Cancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, artists := setupPayoutService(t, db, &stubProvider{})
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	testutil.SeedEarnings(t, db, artist, 5000)

	pending, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 2000, Method: "paypal"})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, cancelled.Status)
	assert.Equal(t, payout.CancelledReason, *cancelled.FailureReason)
	assert.Equal(t, int64(5000), available(t, artists, artist))

	processing, err := svc.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 2000, Method: "paypal"})
	require.NoError(t, err)
	_, err = svc.StartProcessing(ctx, processing.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, processing.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
