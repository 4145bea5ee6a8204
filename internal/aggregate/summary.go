package aggregate

import (
	"sort"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

type recordKey struct {
	batchID  uuid.UUID
	lineNo   int
	artistID uuid.UUID
}

// Summarize folds an artist's earning records and payouts into a summary.
// The fold is commutative: records are de-duplicated on their posting key and
// every grouping is emitted sorted, so input order and replays do not change
// the result. Records and payouts of other artists are ignored.
//
// OutstandingRecoupable is left for the caller, which owns the queue.
func Summarize(artistID uuid.UUID, currency string, records []domain.EarningRecord, payouts []domain.Payout) domain.EarningsSummary {
	s := domain.EarningsSummary{ArtistID: artistID, Currency: currency}

	seen := make(map[recordKey]struct{}, len(records))
	byPeriod := map[string]*domain.Breakdown{}
	byPlatform := map[string]*domain.Breakdown{}
	byCountry := map[string]*domain.Breakdown{}

	for _, r := range records {
		if r.ArtistID != artistID {
			continue
		}
		k := recordKey{r.BatchID, r.LineNo, r.ArtistID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		s.Records++
		s.TotalStreams += r.Streams
		s.TotalNet += r.NetRevenue
		s.Recouped += r.RecoupedAmount

		add(byPeriod, r.Period, r)
		add(byPlatform, r.Platform, r)
		add(byCountry, r.Country, r)
	}

	payoutSeen := make(map[uuid.UUID]struct{}, len(payouts))
	for _, p := range payouts {
		if p.ArtistID != artistID {
			continue
		}
		if _, dup := payoutSeen[p.ID]; dup {
			continue
		}
		payoutSeen[p.ID] = struct{}{}

		switch {
		case p.Status == domain.PayoutStatusCompleted:
			s.CompletedPayouts += p.Amount
		case p.Status.InFlight():
			s.PendingPayouts += p.Amount
		}
	}

	s.AvailableBalance = domain.Balance{
		ArtistID:  artistID,
		TotalNet:  s.TotalNet,
		Recouped:  s.Recouped,
		Completed: s.CompletedPayouts,
		InFlight:  s.PendingPayouts,
	}.Available()

	s.ByPeriod = sorted(byPeriod)
	s.ByPlatform = sorted(byPlatform)
	s.ByCountry = sorted(byCountry)
	return s
}

func add(m map[string]*domain.Breakdown, key string, r domain.EarningRecord) {
	b, ok := m[key]
	if !ok {
		b = &domain.Breakdown{Key: key}
		m[key] = b
	}
	b.Records++
	b.Streams += r.Streams
	b.Net += r.NetRevenue
	b.Recouped += r.RecoupedAmount
}

func sorted(m map[string]*domain.Breakdown) []domain.Breakdown {
	out := make([]domain.Breakdown, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
