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

const batchColumns = `id, source, event_count, posted_count, duplicate_count, rejected_count,
	received_at, completed_at`

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Register records a batch the first time it is seen. A replayed batch keeps
// its original row.
func (r *BatchRepository) Register(ctx context.Context, b *domain.Batch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO batches (id, source, event_count, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.Source, b.EventCount, b.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("Register: %w", err)
	}
	return nil
}

// Complete stores the counts of the latest ingestion run. Posted counts
// accumulate across replays; duplicates and rejections reflect the last run.
func (r *BatchRepository) Complete(ctx context.Context, id uuid.UUID, posted, duplicates, rejected int, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE batches SET posted_count = posted_count + $1, duplicate_count = $2,
			rejected_count = $3, completed_at = $4
		WHERE id = $5`,
		posted, duplicates, rejected, at, id,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Complete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var b domain.Batch
	err := r.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id,
	).Scan(&b.ID, &b.Source, &b.EventCount, &b.PostedCount, &b.DuplicateCount, &b.RejectedCount,
		&b.ReceivedAt, &b.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &b, nil
}
