package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed
}

// InFlight payouts are earmarked against the available balance.
func (s PayoutStatus) InFlight() bool {
	return s == PayoutStatusPending || s == PayoutStatusProcessing
}

type Payout struct {
	ID             uuid.UUID
	ArtistID       uuid.UUID
	Amount         int64
	Fee            int64
	NetAmount      int64
	Currency       string
	Status         PayoutStatus
	PaymentMethod  string
	TransactionID  *string
	FailureReason  *string
	IdempotencyKey *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

type PayoutEventType string

const (
	PayoutEventRequested  PayoutEventType = "requested"
	PayoutEventProcessing PayoutEventType = "processing"
	PayoutEventCompleted  PayoutEventType = "completed"
	PayoutEventFailed     PayoutEventType = "failed"
	PayoutEventCancelled  PayoutEventType = "cancelled"
)

type PayoutEvent struct {
	ID        uuid.UUID
	PayoutID  uuid.UUID
	EventType PayoutEventType
	Actor     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Balance is an artist's ledger position in minor units.
type Balance struct {
	ArtistID  uuid.UUID
	TotalNet  int64
	Recouped  int64
	Completed int64
	InFlight  int64
}

func (b Balance) Available() int64 {
	return b.TotalNet - b.Recouped - b.Completed - b.InFlight
}
