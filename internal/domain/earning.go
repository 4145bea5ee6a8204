package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CalculationMode string

const (
	ModeEstimate    CalculationMode = "estimate"
	ModePassthrough CalculationMode = "passthrough"
)

// StreamEvent is one line of a platform report. GrossRevenue is nil when the
// platform did not report revenue and earnings must be estimated.
type StreamEvent struct {
	Platform     string
	Country      string
	TrackID      uuid.UUID
	Period       string
	Streams      int64
	GrossRevenue *decimal.Decimal
}

type Split struct {
	TrackID    uuid.UUID
	ArtistID   uuid.UUID
	Percent    decimal.Decimal
	Recoupable bool
	UpdatedAt  time.Time
}

// EarningRecord is one contributor's share of one stream event. Amounts are
// minor units of the reporting currency.
type EarningRecord struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	LineNo          int
	TrackID         uuid.UUID
	ArtistID        uuid.UUID
	Period          string
	Platform        string
	Country         string
	Streams         int64
	GrossRevenue    int64
	TrackNetRevenue int64
	SplitPercent    decimal.Decimal
	NetRevenue      int64
	RecoupedAmount  int64
	Recoupable      bool
	PayoutRate      decimal.Decimal
	RateVersion     string
	Mode            CalculationMode
	CreatedAt       time.Time
}

// Available is the part of the record that reached the artist's balance.
func (r EarningRecord) Available() int64 {
	return r.NetRevenue - r.RecoupedAmount
}

type RecoupmentEntry struct {
	ID              uuid.UUID
	ItemID          uuid.UUID
	EarningRecordID uuid.UUID
	Amount          int64
	CreatedAt       time.Time
}

type Batch struct {
	ID             uuid.UUID
	Source         string
	EventCount     int
	PostedCount    int
	DuplicateCount int
	RejectedCount  int
	ReceivedAt     time.Time
	CompletedAt    *time.Time
}
