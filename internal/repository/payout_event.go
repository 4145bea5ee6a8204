package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

const payoutEventColumns = `id, payout_id, event_type, actor, payload, created_at`

type PayoutEventRepository struct {
	db *sql.DB
}

func NewPayoutEventRepository(db *sql.DB) *PayoutEventRepository {
	return &PayoutEventRepository{db: db}
}

func (r *PayoutEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.PayoutEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payout_events (`+payoutEventColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PayoutID, event.EventType, event.Actor, payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PayoutEventRepository) GetByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutEventColumns+` FROM payout_events
		WHERE payout_id = $1 ORDER BY created_at, id`, payoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByPayoutID: %w", err)
	}
	defer rows.Close()

	var events []domain.PayoutEvent
	for rows.Next() {
		var e domain.PayoutEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.PayoutID, &e.EventType, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByPayoutID: scan: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByPayoutID: rows: %w", err)
	}
	return events, nil
}
