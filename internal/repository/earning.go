package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

const earningColumns = `id, batch_id, line_no, track_id, artist_id, period, platform, country,
	streams, gross_revenue, track_net_revenue, split_percent, net_revenue, recouped_amount,
	recoupable, payout_rate, rate_version, mode, created_at`

type EarningRepository struct {
	db *sql.DB
}

func NewEarningRepository(db *sql.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) Create(ctx context.Context, tx *sql.Tx, rec *domain.EarningRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO earning_records (`+earningColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)`,
		rec.ID, rec.BatchID, rec.LineNo, rec.TrackID, rec.ArtistID, rec.Period, rec.Platform, rec.Country,
		rec.Streams, rec.GrossRevenue, rec.TrackNetRevenue, rec.SplitPercent, rec.NetRevenue, rec.RecoupedAmount,
		rec.Recoupable, rec.PayoutRate, rec.RateVersion, rec.Mode, rec.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// LinePosted reports whether any contributor share of the line already exists.
func (r *EarningRepository) LinePosted(ctx context.Context, tx *sql.Tx, batchID uuid.UUID, lineNo int) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM earning_records WHERE batch_id = $1 AND line_no = $2)`,
		batchID, lineNo,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("LinePosted: %w", err)
	}
	return exists, nil
}

// ListByArtist returns committed records only, so a summary taken during
// ingestion under-counts the batch in flight.
func (r *EarningRepository) ListByArtist(ctx context.Context, q Querier, artistID uuid.UUID) ([]domain.EarningRecord, error) {
	if q == nil {
		q = r.db
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+earningColumns+` FROM earning_records WHERE artist_id = $1
		ORDER BY period, batch_id, line_no`, artistID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByArtist: %w", err)
	}
	defer rows.Close()

	var out []domain.EarningRecord
	for rows.Next() {
		rec, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByArtist: scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByArtist: rows: %w", err)
	}
	return out, nil
}

func scanEarning(s scanner) (*domain.EarningRecord, error) {
	var r domain.EarningRecord
	err := s.Scan(
		&r.ID, &r.BatchID, &r.LineNo, &r.TrackID, &r.ArtistID, &r.Period, &r.Platform, &r.Country,
		&r.Streams, &r.GrossRevenue, &r.TrackNetRevenue, &r.SplitPercent, &r.NetRevenue, &r.RecoupedAmount,
		&r.Recoupable, &r.PayoutRate, &r.RateVersion, &r.Mode, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
