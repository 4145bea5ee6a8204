package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

const splitColumns = `track_id, artist_id, percent, recoupable, updated_at`

type SplitRepository struct {
	db *sql.DB
}

func NewSplitRepository(db *sql.DB) *SplitRepository {
	return &SplitRepository{db: db}
}

// Replace swaps a track's whole split set. Earning records keep the percent
// that was in force when they posted.
func (r *SplitRepository) Replace(ctx context.Context, tx *sql.Tx, trackID uuid.UUID, splits []domain.Split) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM splits WHERE track_id = $1`, trackID); err != nil {
		return fmt.Errorf("Replace: delete: %w", err)
	}

	for _, s := range splits {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO splits (`+splitColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			trackID, s.ArtistID, s.Percent, s.Recoupable, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("Replace: insert %s: %w", s.ArtistID, err)
		}
	}
	return nil
}

func (r *SplitRepository) GetByTrack(ctx context.Context, trackID uuid.UUID) ([]domain.Split, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+splitColumns+` FROM splits WHERE track_id = $1 ORDER BY artist_id`, trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTrack: %w", err)
	}
	defer rows.Close()

	var splits []domain.Split
	for rows.Next() {
		var s domain.Split
		if err := rows.Scan(&s.TrackID, &s.ArtistID, &s.Percent, &s.Recoupable, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("GetByTrack: scan: %w", err)
		}
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByTrack: rows: %w", err)
	}
	return splits, nil
}
