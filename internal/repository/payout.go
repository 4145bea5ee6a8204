package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

const payoutColumns = `id, artist_id, amount, fee, net_amount, currency, status, payment_method,
	transaction_id, failure_reason, idempotency_key, created_at, updated_at, completed_at`

type PayoutRepository struct {
	db *sql.DB
}

func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payouts (`+payoutColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`,
		p.ID, p.ArtistID, p.Amount, p.Fee, p.NetAmount, p.Currency, p.Status, p.PaymentMethod,
		p.TransactionID, p.FailureReason, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicatePayout)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// GetForUpdate re-reads the payout inside the caller's transaction.
func (r *PayoutRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payout, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

func (r *PayoutRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE idempotency_key = $1`, key)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return p, nil
}

func (r *PayoutRepository) ListByArtist(ctx context.Context, q Querier, artistID uuid.UUID) ([]domain.Payout, error) {
	if q == nil {
		q = r.db
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE artist_id = $1 ORDER BY created_at DESC, id`, artistID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByArtist: %w", err)
	}
	return collectPayouts(rows, "ListByArtist")
}

// ListStuck returns payouts that entered PROCESSING before the cutoff and
// never heard back from the disbursement provider.
func (r *PayoutRepository) ListStuck(ctx context.Context, before time.Time) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`,
		domain.PayoutStatusProcessing, before,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStuck: %w", err)
	}
	return collectPayouts(rows, "ListStuck")
}

type Transition struct {
	From          domain.PayoutStatus
	To            domain.PayoutStatus
	TransactionID *string
	FailureReason *string
	CompletedAt   *time.Time
}

// Transition moves a payout only if it is still in t.From. A lost race shows
// up as ErrInvalidTransition.
func (r *PayoutRepository) Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, t Transition) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payouts SET status = $1,
			transaction_id = COALESCE($2, transaction_id),
			failure_reason = COALESCE($3, failure_reason),
			completed_at = COALESCE($4, completed_at),
			updated_at = now()
		WHERE id = $5 AND status = $6`,
		t.To, t.TransactionID, t.FailureReason, t.CompletedAt, id, t.From,
	)
	if err != nil {
		return fmt.Errorf("Transition: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Transition: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Transition: %s -> %s: %w", t.From, t.To, domain.ErrInvalidTransition)
	}
	return nil
}

func collectPayouts(rows *sql.Rows, op string) ([]domain.Payout, error) {
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

func scanPayout(s scanner) (*domain.Payout, error) {
	var p domain.Payout
	err := s.Scan(
		&p.ID, &p.ArtistID, &p.Amount, &p.Fee, &p.NetAmount, &p.Currency, &p.Status, &p.PaymentMethod,
		&p.TransactionID, &p.FailureReason, &p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
