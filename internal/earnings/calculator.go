package earnings

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/money"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
)

const appliedRatePlaces = 10

type rateTable interface {
	Rate(platform, country string) decimal.Decimal
	Version() string
}

var _ rateTable = (*rates.RateTable)(nil)

// Result is the net revenue of one stream event in minor units, before splits
// and recoupment.
type Result struct {
	GrossRevenue int64
	NetRevenue   int64
	AppliedRate  decimal.Decimal
	Mode         domain.CalculationMode
	RateVersion  string
}

type Calculator struct {
	rates rateTable
}

func NewCalculator(rates rateTable) *Calculator {
	return &Calculator{rates: rates}
}

func (c *Calculator) RateVersion() string { return c.rates.Version() }

// Calculate estimates revenue from the rate table when the event carries no
// reported revenue, and otherwise passes the reported revenue through. Either
// way the amount is rounded exactly once.
func (c *Calculator) Calculate(ev domain.StreamEvent) (Result, error) {
	if err := Validate(ev); err != nil {
		return Result{}, fmt.Errorf("Calculate: %w", err)
	}

	rate := c.rates.Rate(ev.Platform, ev.Country)

	if ev.GrossRevenue == nil {
		estimate := rate.Mul(decimal.NewFromInt(ev.Streams))
		if !money.FitsCents(estimate) {
			return Result{}, fmt.Errorf("Calculate: estimated revenue %s is out of range: %w", estimate, domain.ErrInvalidStreamEvent)
		}
		net := money.ToCents(estimate)
		return Result{
			GrossRevenue: net,
			NetRevenue:   net,
			AppliedRate:  rate,
			Mode:         domain.ModeEstimate,
			RateVersion:  c.rates.Version(),
		}, nil
	}

	net := money.ToCents(*ev.GrossRevenue)
	applied := rate
	if ev.Streams > 0 {
		applied = ev.GrossRevenue.DivRound(decimal.NewFromInt(ev.Streams), appliedRatePlaces)
	}
	return Result{
		GrossRevenue: net,
		NetRevenue:   net,
		AppliedRate:  applied,
		Mode:         domain.ModePassthrough,
		RateVersion:  c.rates.Version(),
	}, nil
}

// Validate rejects events that must never reach the ledger.
func Validate(ev domain.StreamEvent) error {
	switch {
	case ev.TrackID == uuid.Nil:
		return fmt.Errorf("track id required: %w", domain.ErrInvalidStreamEvent)
	case strings.TrimSpace(ev.Platform) == "":
		return fmt.Errorf("platform required: %w", domain.ErrInvalidStreamEvent)
	case strings.TrimSpace(ev.Country) == "":
		return fmt.Errorf("country required: %w", domain.ErrInvalidStreamEvent)
	case ev.Streams < 0:
		return fmt.Errorf("stream count %d is negative: %w", ev.Streams, domain.ErrInvalidStreamEvent)
	case ev.GrossRevenue != nil && ev.GrossRevenue.IsNegative():
		return fmt.Errorf("revenue %s is negative: %w", ev.GrossRevenue, domain.ErrInvalidStreamEvent)
	case ev.GrossRevenue != nil && !money.FitsCents(*ev.GrossRevenue):
		return fmt.Errorf("revenue %s is out of range: %w", ev.GrossRevenue, domain.ErrInvalidStreamEvent)
	}
	if _, err := time.Parse("2006-01", ev.Period); err != nil {
		return fmt.Errorf("period %q is not YYYY-MM: %w", ev.Period, domain.ErrInvalidStreamEvent)
	}
	return nil
}

// Normalize folds the event's keys to the form stored on earning records.
func Normalize(ev domain.StreamEvent) domain.StreamEvent {
	ev.Platform = strings.ToLower(strings.TrimSpace(ev.Platform))
	ev.Country = strings.ToUpper(strings.TrimSpace(ev.Country))
	return ev
}
