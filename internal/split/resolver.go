package split

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/money"
)

// PercentPlaces is the precision splits are stored with.
const PercentPlaces = 6

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.RequireFromString("0.001")
)

type Allocation struct {
	ArtistID   uuid.UUID
	Percent    decimal.Decimal
	Amount     int64
	Recoupable bool
}

// Validate checks a track's split set before anything posts against it.
func Validate(splits []domain.Split) error {
	if len(splits) == 0 {
		return fmt.Errorf("no splits configured: %w", domain.ErrInvalidSplitConfiguration)
	}

	seen := make(map[uuid.UUID]struct{}, len(splits))
	sum := decimal.Zero
	for _, s := range splits {
		if s.ArtistID == uuid.Nil {
			return fmt.Errorf("split without artist: %w", domain.ErrInvalidSplitConfiguration)
		}
		if _, dup := seen[s.ArtistID]; dup {
			return fmt.Errorf("artist %s listed twice: %w", s.ArtistID, domain.ErrInvalidSplitConfiguration)
		}
		seen[s.ArtistID] = struct{}{}

		if !s.Percent.IsPositive() || s.Percent.GreaterThan(hundred) {
			return fmt.Errorf("artist %s percent %s outside (0, 100]: %w", s.ArtistID, s.Percent, domain.ErrInvalidSplitConfiguration)
		}
		if !s.Percent.Equal(s.Percent.Truncate(PercentPlaces)) {
			return fmt.Errorf("artist %s percent %s has more than %d decimal places: %w", s.ArtistID, s.Percent, PercentPlaces, domain.ErrInvalidSplitConfiguration)
		}
		sum = sum.Add(s.Percent)
	}

	if sum.Sub(hundred).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("percentages sum to %s: %w", sum, domain.ErrInvalidSplitConfiguration)
	}
	return nil
}

// Resolve divides net among the splits. Each share is floored and the
// remainder goes to the largest percentage (lowest artist id on a tie), so the
// allocations always sum to net exactly. Output is ordered by artist id.
func Resolve(splits []domain.Split, net int64) ([]Allocation, error) {
	if err := Validate(splits); err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}

	out := make([]Allocation, len(splits))
	for i, s := range splits {
		out[i] = Allocation{ArtistID: s.ArtistID, Percent: s.Percent, Recoupable: s.Recoupable}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArtistID.String() < out[j].ArtistID.String()
	})

	var allocated int64
	largest := 0
	for i := range out {
		out[i].Amount = money.Percent(net, out[i].Percent)
		allocated += out[i].Amount
		if out[i].Percent.GreaterThan(out[largest].Percent) {
			largest = i
		}
	}

	out[largest].Amount += net - allocated
	return out, nil
}
