package ledger_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/earnings"
	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
	"github.com/josh-kwaku/royalty-ledger/internal/service/ledger"
	"github.com/josh-kwaku/royalty-ledger/internal/service/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/testutil"
)

func setupLedgerService(t *testing.T, db *sql.DB) *ledger.Service {
	t.Helper()
	return ledger.NewService(
		repository.NewArtistLedgerRepository(db, 5*time.Second),
		repository.NewSplitRepository(db),
		repository.NewEarningRepository(db),
		repository.NewRecoupableRepository(db),
		repository.NewPayoutRepository(db),
		earnings.NewCalculator(rates.DefaultRateTable()),
		db,
		nil,
		"USD",
	)
}

func revenue(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func event(trackID uuid.UUID, gross string) domain.StreamEvent {
	return domain.StreamEvent{
		Platform:     "Spotify",
		Country:      "us",
		TrackID:      trackID,
		Period:       "2024-03",
		Streams:      1000,
		GrossRevenue: revenue(gross),
	}
}

func TestPostEvent_SplitsRemainderToLargestShare(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	lead, feature := uuid.New(), uuid.New()
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID,
		testutil.SplitSeed{ArtistID: lead, Percent: "70"},
		testutil.SplitSeed{ArtistID: feature, Percent: "30"},
	)
	batchID := testutil.SeedBatch(t, db)

	res, err := svc.PostEvent(ctx, batchID, 1, event(trackID, "10.03"))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	byArtist := map[uuid.UUID]domain.EarningRecord{}
	for _, r := range res.Records {
		byArtist[r.ArtistID] = r
	}
	assert.Equal(t, int64(703), byArtist[lead].NetRevenue)
	assert.Equal(t, int64(300), byArtist[feature].NetRevenue)
	assert.Equal(t, "spotify", byArtist[lead].Platform)
	assert.Equal(t, "US", byArtist[lead].Country)
	assert.Equal(t, domain.ModePassthrough, byArtist[lead].Mode)
	assert.Equal(t, int64(1003), res.Credited)

	leadBal, err := svc.Balance(ctx, lead)
	require.NoError(t, err)
	assert.Equal(t, int64(703), leadBal.Available())
}

func TestPostEvent_RecoupsAdvanceAcrossPostings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	advance := testutil.SeedAdvance(t, db, artist, 500, time.Now().UTC().Add(-time.Hour))
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID, testutil.SplitSeed{ArtistID: artist, Percent: "100", Recoupable: true})
	batchID := testutil.SeedBatch(t, db)

	first, err := svc.PostEvent(ctx, batchID, 1, event(trackID, "3.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(300), first.Recouped)
	assert.Equal(t, int64(0), first.Credited)
	assert.Equal(t, int64(200), testutil.GetRemaining(t, db, advance.ID))

	second, err := svc.PostEvent(ctx, batchID, 2, event(trackID, "3.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), second.Recouped)
	assert.Equal(t, int64(100), second.Credited)
	assert.Equal(t, int64(0), testutil.GetRemaining(t, db, advance.ID))

	items, err := svc.ListRecoupables(ctx, artist)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.RecoupableClosed, items[0].Status)
	assert.NotNil(t, items[0].ClosedAt)

	summary, err := svc.Summary(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, int64(600), summary.TotalNet)
	assert.Equal(t, int64(500), summary.Recouped)
	assert.Equal(t, int64(0), summary.OutstandingRecoupable)
	assert.Equal(t, int64(100), summary.AvailableBalance)
	assert.Equal(t, 2, summary.Records)
}

func TestPostEvent_NonRecoupableShareSkipsQueue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	advance := testutil.SeedAdvance(t, db, artist, 500, time.Now().UTC())
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID, testutil.SplitSeed{ArtistID: artist, Percent: "100"})
	batchID := testutil.SeedBatch(t, db)

	res, err := svc.PostEvent(ctx, batchID, 1, event(trackID, "2.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Recouped)
	assert.Equal(t, int64(250), res.Credited)
	assert.Equal(t, int64(500), testutil.GetRemaining(t, db, advance.ID))
}

func TestPostEvent_ReplayIsDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	artist := uuid.New()
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID, testutil.SplitSeed{ArtistID: artist, Percent: "100"})
	batchID := testutil.SeedBatch(t, db)

	_, err := svc.PostEvent(ctx, batchID, 7, event(trackID, "1.00"))
	require.NoError(t, err)

	_, err = svc.PostEvent(ctx, batchID, 7, event(trackID, "1.00"))
	require.ErrorIs(t, err, domain.ErrDuplicateEvent)
	assert.Equal(t, 1, testutil.CountEarningRecords(t, db, batchID))

	bal, err := svc.Balance(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available())
}

func TestPostEvent_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()
	batchID := testutil.SeedBatch(t, db)

	_, err := svc.PostEvent(ctx, batchID, 1, event(uuid.New(), "1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidSplitConfiguration)

	bad := event(uuid.New(), "1.00")
	bad.Period = "March"
	_, err = svc.PostEvent(ctx, batchID, 2, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidStreamEvent)

	assert.Equal(t, 0, testutil.CountEarningRecords(t, db, batchID))
}

func TestPostEvent_ConcurrentPostingsKeepQueueConsistent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	advance := testutil.SeedAdvance(t, db, artist, 1000, time.Now().UTC())
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID, testutil.SplitSeed{ArtistID: artist, Percent: "100", Recoupable: true})
	batchID := testutil.SeedBatch(t, db)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			_, err := svc.PostEvent(ctx, batchID, line, event(trackID, "2.00"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(0), testutil.GetRemaining(t, db, advance.ID))

	summary, err := svc.Summary(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), summary.TotalNet)
	assert.Equal(t, int64(1000), summary.Recouped)
	assert.Equal(t, int64(600), summary.AvailableBalance)
}

func TestRecordCost_NonRecoupableIsNotQueued(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()

	artist := uuid.New()
	_, err := svc.RecordCost(ctx, ledger.RecoupableRequest{ArtistID: artist, Amount: 400, Description: "video shoot", Recoupable: false})
	require.NoError(t, err)
	_, err = svc.RecordAdvance(ctx, ledger.RecoupableRequest{ArtistID: artist, Amount: 250, Description: "signing"})
	require.NoError(t, err)

	_, err = svc.RecordAdvance(ctx, ledger.RecoupableRequest{ArtistID: artist, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	summary, err := svc.Summary(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, int64(250), summary.OutstandingRecoupable)

	items, err := svc.ListRecoupables(ctx, artist)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSyncSplits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	ctx := context.Background()
	trackID := uuid.New()
	a, b := uuid.New(), uuid.New()

	err := svc.SyncSplits(ctx, trackID, []domain.Split{
		{ArtistID: a, Percent: decimal.NewFromInt(60)},
		{ArtistID: b, Percent: decimal.NewFromInt(30)},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSplitConfiguration)

	err = svc.SyncSplits(ctx, trackID, []domain.Split{
		{ArtistID: a, Percent: decimal.RequireFromString("99.9999999")},
		{ArtistID: b, Percent: decimal.RequireFromString("0.0000001")},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSplitConfiguration)

	_, err = svc.Splits(ctx, trackID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.SyncSplits(ctx, trackID, []domain.Split{
		{ArtistID: a, Percent: decimal.NewFromInt(60), Recoupable: true},
		{ArtistID: b, Percent: decimal.NewFromInt(40)},
	})
	require.NoError(t, err)

	got, err := svc.Splits(ctx, trackID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

type acceptingProvider struct{}

func (acceptingProvider) Submit(context.Context, payout.ProviderRequest) error { return nil }

func TestSummary_ConsistentWhilePostingAndPayingOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db)
	payouts := payout.NewService(
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
	ctx := context.Background()

	artist := testutil.SeedArtist(t, db)
	trackID := uuid.New()
	testutil.SeedSplits(t, db, trackID, testutil.SplitSeed{ArtistID: artist, Percent: "100"})
	batchID := testutil.SeedBatch(t, db)

	const rounds = 20
	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		defer close(done)
		for i := range rounds {
			if _, err := svc.PostEvent(ctx, batchID, i, event(trackID, "50.00")); err != nil {
				writeErr <- err
				return
			}
			if _, err := payouts.RequestPayout(ctx, payout.Request{ArtistID: artist, Amount: 3000, Method: "paypal"}); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	reads := 0
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		summary, err := svc.Summary(ctx, artist)
		require.NoError(t, err)
		require.GreaterOrEqual(t, summary.AvailableBalance, int64(0), "summary after %d reads", reads)
		reads++
	}

	select {
	case err := <-writeErr:
		require.NoError(t, err)
	default:
	}

	summary, err := svc.Summary(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, int64(rounds*5000), summary.TotalNet)
	assert.Equal(t, int64(rounds*2000), summary.AvailableBalance)
}
