// Package recoupment applies an artist's incoming earnings against the FIFO
// queue of open advances and recoupable costs.
package recoupment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

type Deduction struct {
	ItemID    uuid.UUID
	Amount    int64
	Remaining int64
	Closed    bool
}

// Result splits an owed amount into the part credited to the available
// balance and the part that recouped queue items.
type Result struct {
	Owed       int64
	Recouped   int64
	Credited   int64
	Deductions []Deduction
}

// Ledger is a working copy of one artist's queue. It is not safe for
// concurrent use; callers hold the artist lock while posting.
type Ledger struct {
	items []domain.RecoupableItem
	now   func() time.Time
}

func NewLedger(items []domain.RecoupableItem) *Ledger {
	return newLedger(items, func() time.Time { return time.Now().UTC() })
}

func newLedger(items []domain.RecoupableItem, now func() time.Time) *Ledger {
	cp := make([]domain.RecoupableItem, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool {
		if !cp[i].CreatedAt.Equal(cp[j].CreatedAt) {
			return cp[i].CreatedAt.Before(cp[j].CreatedAt)
		}
		return cp[i].ID.String() < cp[j].ID.String()
	})
	return &Ledger{items: cp, now: now}
}

// Post never fails. A non-recoupable posting is credited in full; a recoupable
// one drains the oldest open items first and only the excess is credited.
func (l *Ledger) Post(owed int64, recoupable bool) Result {
	res := Result{Owed: owed, Credited: owed}
	if !recoupable || owed <= 0 {
		return res
	}

	left := owed
	for i := range l.items {
		if left == 0 {
			break
		}
		item := &l.items[i]
		if !item.InQueue() {
			continue
		}

		deduct := min(left, item.Remaining)
		item.Remaining -= deduct
		left -= deduct

		d := Deduction{ItemID: item.ID, Amount: deduct, Remaining: item.Remaining}
		if item.Remaining == 0 {
			closedAt := l.now()
			item.Status = domain.RecoupableClosed
			item.ClosedAt = &closedAt
			d.Closed = true
		}
		res.Deductions = append(res.Deductions, d)
	}

	res.Recouped = owed - left
	res.Credited = left
	return res
}

// Outstanding is the sum still to be recouped across open items.
func (l *Ledger) Outstanding() int64 {
	var total int64
	for _, item := range l.items {
		if item.InQueue() {
			total += item.Remaining
		}
	}
	return total
}

// Items returns the queue in FIFO order with the effect of every Post so far.
func (l *Ledger) Items() []domain.RecoupableItem {
	out := make([]domain.RecoupableItem, len(l.items))
	copy(out, l.items)
	return out
}

// Changed returns only the items touched by the given deductions.
func (l *Ledger) Changed(deductions []Deduction) []domain.RecoupableItem {
	touched := make(map[uuid.UUID]struct{}, len(deductions))
	for _, d := range deductions {
		touched[d.ItemID] = struct{}{}
	}
	var out []domain.RecoupableItem
	for _, item := range l.items {
		if _, ok := touched[item.ID]; ok {
			out = append(out, item)
		}
	}
	return out
}
