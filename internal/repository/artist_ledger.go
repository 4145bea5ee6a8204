package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

// ArtistLedgerRepository owns the per-artist serialization point. Every
// read-then-write on an artist's ledger happens inside a transaction that
// holds that artist's artist_ledgers row lock.
type ArtistLedgerRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewArtistLedgerRepository(db *sql.DB, lockTimeout time.Duration) *ArtistLedgerRepository {
	return &ArtistLedgerRepository{db: db, lockTimeout: lockTimeout}
}

// Lock takes the row locks for the given artists in id order, so two
// transactions that share artists cannot deadlock. Rows are created on first
// use.
func (r *ArtistLedgerRepository) Lock(ctx context.Context, tx *sql.Tx, artistIDs ...uuid.UUID) error {
	ids := uniqueSorted(artistIDs)

	if r.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, r.lockTimeout.Milliseconds()),
		); err != nil {
			return fmt.Errorf("Lock: set lock_timeout: %w", err)
		}
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artist_ledgers (artist_id) VALUES ($1) ON CONFLICT (artist_id) DO NOTHING`, id,
		); err != nil {
			return fmt.Errorf("Lock: ensure %s: %w", id, lockErr(err))
		}

		var locked uuid.UUID
		if err := tx.QueryRowContext(ctx,
			`SELECT artist_id FROM artist_ledgers WHERE artist_id = $1 FOR UPDATE`, id,
		).Scan(&locked); err != nil {
			return fmt.Errorf("Lock: %s: %w", id, lockErr(err))
		}
	}
	return nil
}

// Balance sums the artist's ledger from source rows. Callers that act on the
// result must pass the transaction holding the artist lock.
func (r *ArtistLedgerRepository) Balance(ctx context.Context, q Querier, artistID uuid.UUID) (domain.Balance, error) {
	if q == nil {
		q = r.db
	}

	b := domain.Balance{ArtistID: artistID}
	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE((SELECT SUM(net_revenue) FROM earning_records WHERE artist_id = $1), 0),
			COALESCE((SELECT SUM(recouped_amount) FROM earning_records WHERE artist_id = $1), 0),
			COALESCE((SELECT SUM(amount) FROM payouts WHERE artist_id = $1 AND status = $2), 0),
			COALESCE((SELECT SUM(amount) FROM payouts WHERE artist_id = $1 AND status IN ($3, $4)), 0)`,
		artistID, domain.PayoutStatusCompleted, domain.PayoutStatusPending, domain.PayoutStatusProcessing,
	).Scan(&b.TotalNet, &b.Recouped, &b.Completed, &b.InFlight)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("Balance: %w", err)
	}
	return b, nil
}

func lockErr(err error) error {
	if IsLockContention(err) {
		return fmt.Errorf("%w: %v", domain.ErrLedgerBusy, err)
	}
	return err
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
