package aggregate

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

var (
	artist = uuid.New()
	batch  = uuid.New()
)

func rec(line int, period, platform, country string, streams, net, recouped int64) domain.EarningRecord {
	return domain.EarningRecord{
		ID:             uuid.New(),
		BatchID:        batch,
		LineNo:         line,
		ArtistID:       artist,
		Period:         period,
		Platform:       platform,
		Country:        country,
		Streams:        streams,
		NetRevenue:     net,
		RecoupedAmount: recouped,
	}
}

func payout(amount int64, status domain.PayoutStatus) domain.Payout {
	return domain.Payout{ID: uuid.New(), ArtistID: artist, Amount: amount, Status: status}
}

func fixtureRecords() []domain.EarningRecord {
	return []domain.EarningRecord{
		rec(1, "2024-01", "spotify", "US", 1000, 330, 330),
		rec(2, "2024-01", "apple_music", "GB", 1000, 694, 0),
		rec(3, "2024-02", "spotify", "DE", 2000, 594, 100),
		rec(4, "2024-02", "tidal", "US", 400, 500, 0),
	}
}

func TestSummarize_Totals(t *testing.T) {
	payouts := []domain.Payout{
		payout(300, domain.PayoutStatusCompleted),
		payout(200, domain.PayoutStatusPending),
		payout(100, domain.PayoutStatusProcessing),
		payout(900, domain.PayoutStatusFailed),
	}

	s := Summarize(artist, "USD", fixtureRecords(), payouts)

	assert.Equal(t, 4, s.Records)
	assert.Equal(t, int64(4400), s.TotalStreams)
	assert.Equal(t, int64(2118), s.TotalNet)
	assert.Equal(t, int64(430), s.Recouped)
	assert.Equal(t, int64(300), s.CompletedPayouts)
	assert.Equal(t, int64(300), s.PendingPayouts)
	assert.Equal(t, int64(2118-430-300-300), s.AvailableBalance)
	assert.Equal(t, "USD", s.Currency)
}

func TestSummarize_Breakdowns(t *testing.T) {
	s := Summarize(artist, "USD", fixtureRecords(), nil)

	require.Len(t, s.ByPeriod, 2)
	assert.Equal(t, domain.Breakdown{Key: "2024-01", Streams: 2000, Net: 1024, Recouped: 330, Records: 2}, s.ByPeriod[0])
	assert.Equal(t, domain.Breakdown{Key: "2024-02", Streams: 2400, Net: 1094, Recouped: 100, Records: 2}, s.ByPeriod[1])

	require.Len(t, s.ByPlatform, 3)
	assert.Equal(t, []string{"apple_music", "spotify", "tidal"}, keys(s.ByPlatform))
	assert.Equal(t, int64(924), s.ByPlatform[1].Net)

	assert.Equal(t, []string{"DE", "GB", "US"}, keys(s.ByCountry))
	assert.Equal(t, int64(830), s.ByCountry[2].Net)
}

func TestSummarize_IdempotentAndOrderIndependent(t *testing.T) {
	records := fixtureRecords()
	payouts := []domain.Payout{payout(100, domain.PayoutStatusCompleted), payout(50, domain.PayoutStatusPending)}
	want := Summarize(artist, "USD", records, payouts)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.EarningRecord(nil), records...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		ps := append([]domain.Payout(nil), payouts...)
		r.Shuffle(len(ps), func(a, b int) { ps[a], ps[b] = ps[b], ps[a] })

		assert.Equal(t, want, Summarize(artist, "USD", shuffled, ps))
	}
}

func TestSummarize_ReplayedRecordsCountOnce(t *testing.T) {
	records := fixtureRecords()
	replayed := append(append([]domain.EarningRecord(nil), records...), records...)
	replayed[len(replayed)-1].ID = uuid.New()

	assert.Equal(t, Summarize(artist, "USD", records, nil), Summarize(artist, "USD", replayed, nil))
}

func TestSummarize_IgnoresOtherArtists(t *testing.T) {
	other := rec(9, "2024-01", "spotify", "US", 10, 1000, 0)
	other.ArtistID = uuid.New()
	foreignPayout := payout(100, domain.PayoutStatusCompleted)
	foreignPayout.ArtistID = other.ArtistID

	s := Summarize(artist, "USD", append(fixtureRecords(), other), []domain.Payout{foreignPayout})

	assert.Equal(t, int64(2118), s.TotalNet)
	assert.Equal(t, int64(0), s.CompletedPayouts)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(artist, "USD", nil, nil)

	assert.Equal(t, int64(0), s.AvailableBalance)
	assert.NotNil(t, s.ByPeriod)
	assert.Empty(t, s.ByPeriod)
}

func keys(bs []domain.Breakdown) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Key
	}
	return out
}
