package domain

import "github.com/google/uuid"

type Breakdown struct {
	Key      string
	Streams  int64
	Net      int64
	Recouped int64
	Records  int
}

// EarningsSummary is recomputed on demand and never persisted.
type EarningsSummary struct {
	ArtistID              uuid.UUID
	Currency              string
	Records               int
	TotalStreams          int64
	TotalNet              int64
	Recouped              int64
	OutstandingRecoupable int64
	CompletedPayouts      int64
	PendingPayouts        int64
	AvailableBalance      int64
	ByPeriod              []Breakdown
	ByPlatform            []Breakdown
	ByCountry             []Breakdown
}
