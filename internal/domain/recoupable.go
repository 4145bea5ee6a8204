package domain

import (
	"time"

	"github.com/google/uuid"
)

type RecoupableKind string

const (
	KindAdvance RecoupableKind = "advance"
	KindCost    RecoupableKind = "cost"
)

type RecoupableStatus string

const (
	RecoupableOpen   RecoupableStatus = "open"
	RecoupableClosed RecoupableStatus = "closed"
)

// RecoupableItem is the shared shape of advances and costs. Both recoup from
// the same FIFO queue ordered by CreatedAt.
type RecoupableItem struct {
	ID          uuid.UUID
	ArtistID    uuid.UUID
	Kind        RecoupableKind
	Description string
	Amount      int64
	Remaining   int64
	Recoupable  bool
	Status      RecoupableStatus
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

func NewAdvance(artistID uuid.UUID, amount int64, description string, now time.Time) *RecoupableItem {
	return newItem(artistID, KindAdvance, amount, description, true, now)
}

func NewCost(artistID uuid.UUID, amount int64, description string, recoupable bool, now time.Time) *RecoupableItem {
	return newItem(artistID, KindCost, amount, description, recoupable, now)
}

func newItem(artistID uuid.UUID, kind RecoupableKind, amount int64, description string, recoupable bool, now time.Time) *RecoupableItem {
	return &RecoupableItem{
		ID:          uuid.New(),
		ArtistID:    artistID,
		Kind:        kind,
		Description: description,
		Amount:      amount,
		Remaining:   amount,
		Recoupable:  recoupable,
		Status:      RecoupableOpen,
		CreatedAt:   now,
	}
}

// InQueue reports whether the item still absorbs recoupable earnings.
func (i RecoupableItem) InQueue() bool {
	return i.Recoupable && i.Status == RecoupableOpen && i.Remaining > 0
}

func (i RecoupableItem) Recouped() int64 {
	if !i.Recoupable {
		return 0
	}
	return i.Amount - i.Remaining
}
