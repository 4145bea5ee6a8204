// Package ledger posts stream earnings into artist ledgers and records the
// advances and costs they recoup against.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/aggregate"
	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/earnings"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
	"github.com/josh-kwaku/royalty-ledger/internal/recoupment"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
	"github.com/josh-kwaku/royalty-ledger/internal/split"
)

type artistLedgerRepo interface {
	Lock(ctx context.Context, tx *sql.Tx, artistIDs ...uuid.UUID) error
	Balance(ctx context.Context, q repository.Querier, artistID uuid.UUID) (domain.Balance, error)
}

type splitRepo interface {
	Replace(ctx context.Context, tx *sql.Tx, trackID uuid.UUID, splits []domain.Split) error
	GetByTrack(ctx context.Context, trackID uuid.UUID) ([]domain.Split, error)
}

type earningRepo interface {
	Create(ctx context.Context, tx *sql.Tx, rec *domain.EarningRecord) error
	LinePosted(ctx context.Context, tx *sql.Tx, batchID uuid.UUID, lineNo int) (bool, error)
	ListByArtist(ctx context.Context, q repository.Querier, artistID uuid.UUID) ([]domain.EarningRecord, error)
}

type recoupableRepo interface {
	Create(ctx context.Context, tx *sql.Tx, item *domain.RecoupableItem) error
	ListQueue(ctx context.Context, tx *sql.Tx, artistID uuid.UUID) ([]domain.RecoupableItem, error)
	ListByArtist(ctx context.Context, q repository.Querier, artistID uuid.UUID) ([]domain.RecoupableItem, error)
	ApplyDeduction(ctx context.Context, tx *sql.Tx, item domain.RecoupableItem) error
	CreateEntry(ctx context.Context, tx *sql.Tx, e *domain.RecoupmentEntry) error
}

type payoutLister interface {
	ListByArtist(ctx context.Context, q repository.Querier, artistID uuid.UUID) ([]domain.Payout, error)
}

type Service struct {
	artists     artistLedgerRepo
	splits      splitRepo
	earnings    earningRepo
	recoupables recoupableRepo
	payouts     payoutLister
	calc        *earnings.Calculator
	db          *sql.DB
	metrics     *metrics.Metrics
	currency    string
	now         func() time.Time
}

func NewService(
	artists artistLedgerRepo,
	splits splitRepo,
	earningsRepo earningRepo,
	recoupables recoupableRepo,
	payouts payoutLister,
	calc *earnings.Calculator,
	db *sql.DB,
	m *metrics.Metrics,
	currency string,
) *Service {
	return &Service{
		artists:     artists,
		splits:      splits,
		earnings:    earningsRepo,
		recoupables: recoupables,
		payouts:     payouts,
		calc:        calc,
		db:          db,
		metrics:     m,
		currency:    currency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PostResult describes one posted stream event across all its contributors.
type PostResult struct {
	Records  []domain.EarningRecord
	Recouped int64
	Credited int64
}

// PostEvent books one stream event. Every contributor share, queue deduction
// and recoupment entry commits together or not at all. A line already posted
// for the batch returns ErrDuplicateEvent and changes nothing.
func (s *Service) PostEvent(ctx context.Context, batchID uuid.UUID, lineNo int, ev domain.StreamEvent) (*PostResult, error) {
	ev = earnings.Normalize(ev)

	calc, err := s.calc.Calculate(ev)
	if err != nil {
		return nil, fmt.Errorf("PostEvent: %w", err)
	}

	splits, err := s.splits.GetByTrack(ctx, ev.TrackID)
	if err != nil {
		return nil, fmt.Errorf("PostEvent: %w", err)
	}
	allocations, err := split.Resolve(splits, calc.NetRevenue)
	if err != nil {
		return nil, fmt.Errorf("PostEvent: track %s: %w", ev.TrackID, err)
	}

	artistIDs := make([]uuid.UUID, len(allocations))
	for i, a := range allocations {
		artistIDs[i] = a.ArtistID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("PostEvent: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.artists.Lock(ctx, tx, artistIDs...); err != nil {
		return nil, fmt.Errorf("PostEvent: %w", err)
	}

	posted, err := s.earnings.LinePosted(ctx, tx, batchID, lineNo)
	if err != nil {
		return nil, fmt.Errorf("PostEvent: %w", err)
	}
	if posted {
		return nil, fmt.Errorf("PostEvent: batch %s line %d: %w", batchID, lineNo, domain.ErrDuplicateEvent)
	}

	now := s.now()
	result := &PostResult{}
	for _, a := range allocations {
		queue, err := s.recoupables.ListQueue(ctx, tx, a.ArtistID)
		if err != nil {
			return nil, fmt.Errorf("PostEvent: %w", err)
		}

		l := recoupment.NewLedger(queue)
		res := l.Post(a.Amount, a.Recoupable)

		for _, item := range l.Changed(res.Deductions) {
			if err := s.recoupables.ApplyDeduction(ctx, tx, item); err != nil {
				return nil, fmt.Errorf("PostEvent: %w", err)
			}
		}

		rec := domain.EarningRecord{
			ID:              uuid.New(),
			BatchID:         batchID,
			LineNo:          lineNo,
			TrackID:         ev.TrackID,
			ArtistID:        a.ArtistID,
			Period:          ev.Period,
			Platform:        ev.Platform,
			Country:         ev.Country,
			Streams:         ev.Streams,
			GrossRevenue:    calc.GrossRevenue,
			TrackNetRevenue: calc.NetRevenue,
			SplitPercent:    a.Percent,
			NetRevenue:      a.Amount,
			RecoupedAmount:  res.Recouped,
			Recoupable:      a.Recoupable,
			PayoutRate:      calc.AppliedRate,
			RateVersion:     calc.RateVersion,
			Mode:            calc.Mode,
			CreatedAt:       now,
		}
		if err := s.earnings.Create(ctx, tx, &rec); err != nil {
			return nil, fmt.Errorf("PostEvent: %w", err)
		}

		for _, d := range res.Deductions {
			entry := &domain.RecoupmentEntry{
				ID:              uuid.New(),
				ItemID:          d.ItemID,
				EarningRecordID: rec.ID,
				Amount:          d.Amount,
				CreatedAt:       now,
			}
			if err := s.recoupables.CreateEntry(ctx, tx, entry); err != nil {
				return nil, fmt.Errorf("PostEvent: %w", err)
			}
		}

		result.Records = append(result.Records, rec)
		result.Recouped += res.Recouped
		result.Credited += res.Credited
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("PostEvent: commit: %w", err)
	}

	s.metrics.Recoupment(result.Recouped, result.Credited)
	logging.FromContext(ctx).Debug("stream event posted",
		"batch_id", batchID,
		"line_no", lineNo,
		"track_id", ev.TrackID,
		"net_revenue", calc.NetRevenue,
		"recouped", result.Recouped,
	)
	return result, nil
}

type RecoupableRequest struct {
	ArtistID    uuid.UUID
	Amount      int64
	Description string
	// Recoupable only applies to costs; advances always recoup.
	Recoupable bool
}

func (s *Service) RecordAdvance(ctx context.Context, req RecoupableRequest) (*domain.RecoupableItem, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("RecordAdvance: %w", domain.ErrInvalidAmount)
	}
	item := domain.NewAdvance(req.ArtistID, req.Amount, req.Description, s.now())
	if err := s.recordItem(ctx, item); err != nil {
		return nil, fmt.Errorf("RecordAdvance: %w", err)
	}
	return item, nil
}

// RecordCost stores a cost. Non-recoupable costs are kept for reporting and
// never enter the queue.
func (s *Service) RecordCost(ctx context.Context, req RecoupableRequest) (*domain.RecoupableItem, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("RecordCost: %w", domain.ErrInvalidAmount)
	}
	item := domain.NewCost(req.ArtistID, req.Amount, req.Description, req.Recoupable, s.now())
	if err := s.recordItem(ctx, item); err != nil {
		return nil, fmt.Errorf("RecordCost: %w", err)
	}
	return item, nil
}

func (s *Service) recordItem(ctx context.Context, item *domain.RecoupableItem) error {
	if item.ArtistID == uuid.Nil {
		return fmt.Errorf("recordItem: artist id required: %w", domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recordItem: begin tx: %w", err)
	}
	defer tx.Rollback()

	// The lock orders the new item against postings already in flight.
	if err := s.artists.Lock(ctx, tx, item.ArtistID); err != nil {
		return fmt.Errorf("recordItem: %w", err)
	}
	if err := s.recoupables.Create(ctx, tx, item); err != nil {
		return fmt.Errorf("recordItem: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recordItem: commit: %w", err)
	}

	logging.FromContext(ctx).Info("recoupable recorded",
		"artist_id", item.ArtistID,
		"item_id", item.ID,
		"kind", item.Kind,
		"amount", item.Amount,
		"recoupable", item.Recoupable,
	)
	return nil
}

func (s *Service) ListRecoupables(ctx context.Context, artistID uuid.UUID) ([]domain.RecoupableItem, error) {
	items, err := s.recoupables.ListByArtist(ctx, nil, artistID)
	if err != nil {
		return nil, fmt.Errorf("ListRecoupables: %w", err)
	}
	return items, nil
}

// Summary reads committed rows without taking the artist lock. All reads
// share one snapshot so a posting or payout landing in between cannot skew
// the balance.
func (s *Service) Summary(ctx context.Context, artistID uuid.UUID) (*domain.EarningsSummary, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("Summary: begin tx: %w", err)
	}
	defer tx.Rollback()

	records, err := s.earnings.ListByArtist(ctx, tx, artistID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	payouts, err := s.payouts.ListByArtist(ctx, tx, artistID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	items, err := s.recoupables.ListByArtist(ctx, tx, artistID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Summary: commit: %w", err)
	}

	summary := aggregate.Summarize(artistID, s.currency, records, payouts)
	summary.OutstandingRecoupable = recoupment.NewLedger(items).Outstanding()
	return &summary, nil
}

func (s *Service) Balance(ctx context.Context, artistID uuid.UUID) (domain.Balance, error) {
	b, err := s.artists.Balance(ctx, nil, artistID)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("Balance: %w", err)
	}
	return b, nil
}

// SyncSplits replaces a track's split set from the catalog. Postings already
// made keep the percentages they were booked with.
func (s *Service) SyncSplits(ctx context.Context, trackID uuid.UUID, splits []domain.Split) error {
	if trackID == uuid.Nil {
		return fmt.Errorf("SyncSplits: track id required: %w", domain.ErrInvalidRequest)
	}
	if err := split.Validate(splits); err != nil {
		return fmt.Errorf("SyncSplits: %w", err)
	}

	now := s.now()
	for i := range splits {
		splits[i].TrackID = trackID
		splits[i].UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SyncSplits: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.splits.Replace(ctx, tx, trackID, splits); err != nil {
		return fmt.Errorf("SyncSplits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SyncSplits: commit: %w", err)
	}

	logging.FromContext(ctx).Info("splits synced", "track_id", trackID, "contributors", len(splits))
	return nil
}

func (s *Service) Splits(ctx context.Context, trackID uuid.UUID) ([]domain.Split, error) {
	splits, err := s.splits.GetByTrack(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("Splits: %w", err)
	}
	if len(splits) == 0 {
		return nil, fmt.Errorf("Splits: track %s: %w", trackID, domain.ErrNotFound)
	}
	return splits, nil
}
