package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

func SeedArtist(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if _, err := db.Exec(`INSERT INTO artist_ledgers (artist_id) VALUES ($1)`, id); err != nil {
		t.Fatalf("seed artist: %v", err)
	}
	return id
}

type SplitSeed struct {
	ArtistID   uuid.UUID
	Percent    string
	Recoupable bool
}

func SeedSplits(t *testing.T, db *sql.DB, trackID uuid.UUID, seeds ...SplitSeed) {
	t.Helper()

	for _, s := range seeds {
		_, err := db.Exec(
			`INSERT INTO splits (track_id, artist_id, percent, recoupable) VALUES ($1, $2, $3, $4)`,
			trackID, s.ArtistID, decimal.RequireFromString(s.Percent), s.Recoupable,
		)
		if err != nil {
			t.Fatalf("seed split %s/%s: %v", trackID, s.ArtistID, err)
		}
	}
}

// SeedAdvance inserts an open advance. The artist row must exist.
func SeedAdvance(t *testing.T, db *sql.DB, artistID uuid.UUID, amount int64, createdAt time.Time) *domain.RecoupableItem {
	t.Helper()

	item := domain.NewAdvance(artistID, amount, "seeded advance", createdAt)
	_, err := db.Exec(
		`INSERT INTO recoupable_items (id, artist_id, kind, description, amount, remaining, recoupable, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.ArtistID, item.Kind, item.Description, item.Amount, item.Remaining,
		item.Recoupable, item.Status, item.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed advance for %s: %v", artistID, err)
	}
	return item
}

// SeedEarnings credits net minor units straight to the artist's balance
// through a one-line batch. The artist row must exist.
func SeedEarnings(t *testing.T, db *sql.DB, artistID uuid.UUID, net int64) {
	t.Helper()

	batchID := uuid.New()
	if _, err := db.Exec(`INSERT INTO batches (id, source, event_count) VALUES ($1, 'fixture', 1)`, batchID); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	_, err := db.Exec(
		`INSERT INTO earning_records (id, batch_id, line_no, track_id, artist_id, period, platform, country,
			streams, gross_revenue, track_net_revenue, split_percent, net_revenue, recouped_amount,
			recoupable, payout_rate, rate_version, mode)
		 VALUES ($1, $2, 0, $3, $4, '2024-01', 'spotify', 'US', 0, $5, $5, 100, $5, 0, false, 0, 'fixture', 'passthrough')`,
		uuid.New(), batchID, uuid.New(), artistID, net,
	)
	if err != nil {
		t.Fatalf("seed earnings for %s: %v", artistID, err)
	}
}

func GetRemaining(t *testing.T, db *sql.DB, itemID uuid.UUID) int64 {
	t.Helper()

	var remaining int64
	if err := db.QueryRow(`SELECT remaining FROM recoupable_items WHERE id = $1`, itemID).Scan(&remaining); err != nil {
		t.Fatalf("get remaining %s: %v", itemID, err)
	}
	return remaining
}

func CountEarningRecords(t *testing.T, db *sql.DB, batchID uuid.UUID) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM earning_records WHERE batch_id = $1`, batchID).Scan(&count); err != nil {
		t.Fatalf("count earning records for batch %s: %v", batchID, err)
	}
	return count
}

// SeedBatch registers an empty batch so postings can reference it.
func SeedBatch(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if _, err := db.Exec(`INSERT INTO batches (id, source) VALUES ($1, 'test')`, id); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return id
}
