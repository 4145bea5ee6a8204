package recoupment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

var (
	artist = uuid.New()
	t0     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func advance(amount, remaining int64, created time.Time) domain.RecoupableItem {
	item := *domain.NewAdvance(artist, amount, "advance", created)
	item.Remaining = remaining
	if remaining == 0 {
		item.Status = domain.RecoupableClosed
	}
	return item
}

func cost(amount int64, recoupable bool, created time.Time) domain.RecoupableItem {
	return *domain.NewCost(artist, amount, "video shoot", recoupable, created)
}

func TestPost_RecoupsAdvance(t *testing.T) {
	l := NewLedger([]domain.RecoupableItem{advance(50000, 40000, t0)})

	res := l.Post(12000, true)

	assert.Equal(t, int64(12000), res.Recouped)
	assert.Equal(t, int64(0), res.Credited)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, int64(28000), res.Deductions[0].Remaining)
	assert.False(t, res.Deductions[0].Closed)
	assert.Equal(t, int64(28000), l.Outstanding())
}

func TestPost_NonRecoupableCreditsInFull(t *testing.T) {
	l := NewLedger([]domain.RecoupableItem{advance(50000, 28000, t0)})

	res := l.Post(5000, false)

	assert.Equal(t, int64(5000), res.Credited)
	assert.Equal(t, int64(0), res.Recouped)
	assert.Empty(t, res.Deductions)
	assert.Equal(t, int64(28000), l.Outstanding())
}

func TestPost_CarriesExcessAcrossItemsInFIFOOrder(t *testing.T) {
	older := cost(3000, true, t0)
	newer := advance(10000, 10000, t0.Add(24*time.Hour))
	l := NewLedger([]domain.RecoupableItem{newer, older})

	res := l.Post(5000, true)

	require.Len(t, res.Deductions, 2)
	assert.Equal(t, older.ID, res.Deductions[0].ItemID)
	assert.Equal(t, int64(3000), res.Deductions[0].Amount)
	assert.True(t, res.Deductions[0].Closed)
	assert.Equal(t, newer.ID, res.Deductions[1].ItemID)
	assert.Equal(t, int64(2000), res.Deductions[1].Amount)
	assert.Equal(t, int64(5000), res.Recouped)

	items := l.Items()
	assert.Equal(t, domain.RecoupableClosed, items[0].Status)
	require.NotNil(t, items[0].ClosedAt)
	assert.Equal(t, int64(8000), items[1].Remaining)
}

func TestPost_ExcessBeyondQueueIsCredited(t *testing.T) {
	l := NewLedger([]domain.RecoupableItem{advance(1000, 1000, t0)})

	res := l.Post(2500, true)

	assert.Equal(t, int64(1000), res.Recouped)
	assert.Equal(t, int64(1500), res.Credited)
	assert.Equal(t, int64(0), l.Outstanding())

	res = l.Post(700, true)
	assert.Equal(t, int64(700), res.Credited)
	assert.Empty(t, res.Deductions)
}

func TestPost_SkipsClosedAndNonRecoupableItems(t *testing.T) {
	closed := advance(1000, 0, t0)
	absorbed := cost(5000, false, t0.Add(time.Hour))
	open := advance(2000, 2000, t0.Add(2*time.Hour))
	l := NewLedger([]domain.RecoupableItem{closed, absorbed, open})

	res := l.Post(500, true)

	require.Len(t, res.Deductions, 1)
	assert.Equal(t, open.ID, res.Deductions[0].ItemID)
	assert.Equal(t, int64(1500), l.Outstanding())
}

func TestPost_SameTimestampOrdersByID(t *testing.T) {
	a := advance(1000, 1000, t0)
	b := advance(1000, 1000, t0)
	first, second := a, b
	if b.ID.String() < a.ID.String() {
		first, second = b, a
	}
	l := NewLedger([]domain.RecoupableItem{second, first})

	res := l.Post(1000, true)

	require.Len(t, res.Deductions, 1)
	assert.Equal(t, first.ID, res.Deductions[0].ItemID)
}

func TestPost_DoesNotMutateCallerItems(t *testing.T) {
	items := []domain.RecoupableItem{advance(1000, 1000, t0)}
	l := NewLedger(items)

	l.Post(1000, true)

	assert.Equal(t, int64(1000), items[0].Remaining)
	assert.Equal(t, domain.RecoupableOpen, items[0].Status)
}

func TestPost_RecoupedNeverExceedsItemTotals(t *testing.T) {
	items := []domain.RecoupableItem{
		advance(5000, 5000, t0),
		cost(1200, true, t0.Add(time.Hour)),
		cost(800, true, t0.Add(2*time.Hour)),
	}
	l := NewLedger(items)

	var recouped int64
	for _, owed := range []int64{999, 1, 2500, 0, 3333, 7, 10000} {
		res := l.Post(owed, true)
		assert.Equal(t, owed, res.Recouped+res.Credited)
		recouped += res.Recouped
	}

	assert.Equal(t, int64(7000), recouped)
	for _, item := range l.Items() {
		assert.GreaterOrEqual(t, item.Remaining, int64(0))
		assert.Equal(t, domain.RecoupableClosed, item.Status)
	}
}

func TestChanged(t *testing.T) {
	a := advance(1000, 1000, t0)
	b := advance(1000, 1000, t0.Add(time.Hour))
	l := NewLedger([]domain.RecoupableItem{a, b})

	res := l.Post(400, true)
	changed := l.Changed(res.Deductions)

	require.Len(t, changed, 1)
	assert.Equal(t, a.ID, changed[0].ID)
	assert.Equal(t, int64(600), changed[0].Remaining)
}
