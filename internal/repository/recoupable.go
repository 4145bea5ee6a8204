package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

const recoupableColumns = `id, artist_id, kind, description, amount, remaining, recoupable,
	status, created_at, closed_at`

type RecoupableRepository struct {
	db *sql.DB
}

func NewRecoupableRepository(db *sql.DB) *RecoupableRepository {
	return &RecoupableRepository{db: db}
}

func (r *RecoupableRepository) Create(ctx context.Context, tx *sql.Tx, item *domain.RecoupableItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO recoupable_items (`+recoupableColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.ArtistID, item.Kind, item.Description, item.Amount, item.Remaining,
		item.Recoupable, item.Status, item.CreatedAt, item.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListQueue returns the artist's open recoupable items in FIFO order. Call it
// inside the transaction holding the artist lock.
func (r *RecoupableRepository) ListQueue(ctx context.Context, tx *sql.Tx, artistID uuid.UUID) ([]domain.RecoupableItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+recoupableColumns+` FROM recoupable_items
		WHERE artist_id = $1 AND status = $2 AND recoupable
		ORDER BY created_at, id`,
		artistID, domain.RecoupableOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("ListQueue: %w", err)
	}
	return collectRecoupables(rows, "ListQueue")
}

func (r *RecoupableRepository) ListByArtist(ctx context.Context, q Querier, artistID uuid.UUID) ([]domain.RecoupableItem, error) {
	if q == nil {
		q = r.db
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+recoupableColumns+` FROM recoupable_items WHERE artist_id = $1 ORDER BY created_at, id`,
		artistID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByArtist: %w", err)
	}
	return collectRecoupables(rows, "ListByArtist")
}

// ApplyDeduction only ever lowers remaining; the table checks keep it within
// [0, amount] and tie the closed status to zero.
func (r *RecoupableRepository) ApplyDeduction(ctx context.Context, tx *sql.Tx, item domain.RecoupableItem) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE recoupable_items SET remaining = $1, status = $2, closed_at = $3
		WHERE id = $4 AND remaining >= $1`,
		item.Remaining, item.Status, item.ClosedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("ApplyDeduction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ApplyDeduction: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ApplyDeduction: item %s: %w", item.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *RecoupableRepository) CreateEntry(ctx context.Context, tx *sql.Tx, e *domain.RecoupmentEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO recoupment_entries (id, item_id, earning_record_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ItemID, e.EarningRecordID, e.Amount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateEntry: %w", err)
	}
	return nil
}

func collectRecoupables(rows *sql.Rows, op string) ([]domain.RecoupableItem, error) {
	defer rows.Close()

	var out []domain.RecoupableItem
	for rows.Next() {
		item, err := scanRecoupable(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

func scanRecoupable(s scanner) (*domain.RecoupableItem, error) {
	var i domain.RecoupableItem
	err := s.Scan(
		&i.ID, &i.ArtistID, &i.Kind, &i.Description, &i.Amount, &i.Remaining, &i.Recoupable,
		&i.Status, &i.CreatedAt, &i.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
