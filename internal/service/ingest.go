package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
	"github.com/josh-kwaku/royalty-ledger/internal/service/ledger"
)

type batchRepo interface {
	Register(ctx context.Context, b *domain.Batch) error
	Complete(ctx context.Context, id uuid.UUID, posted, duplicates, rejected int, at time.Time) error
}

type eventPoster interface {
	PostEvent(ctx context.Context, batchID uuid.UUID, lineNo int, ev domain.StreamEvent) (*ledger.PostResult, error)
}

type BatchRequest struct {
	// BatchID identifies the platform report. Re-sending the same id replays
	// the batch; lines already posted come back as duplicates.
	BatchID uuid.UUID
	Source  string
	Events  []domain.StreamEvent
}

type Rejection struct {
	LineNo int
	Reason string
}

type IngestResult struct {
	BatchID    uuid.UUID
	Posted     int
	Duplicates int
	Rejected   int
	Recouped   int64
	Credited   int64
	Rejections []Rejection
}

type line struct {
	no    int
	event domain.StreamEvent
}

type Ingester struct {
	batches   batchRepo
	poster    eventPoster
	metrics   *metrics.Metrics
	chunkSize int
	workers   int
}

func NewIngester(batches batchRepo, poster eventPoster, m *metrics.Metrics, chunkSize, workers int) *Ingester {
	return &Ingester{
		batches:   batches,
		poster:    poster,
		metrics:   m,
		chunkSize: max(chunkSize, 1),
		workers:   max(workers, 1),
	}
}

// Ingest posts every line of a batch. Invalid lines are rejected with a
// reason and do not stop the batch; a storage failure does, and the batch can
// be re-sent safely because posted lines are skipped as duplicates.
func (i *Ingester) Ingest(ctx context.Context, req BatchRequest) (*IngestResult, error) {
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("Ingest: batch has no events: %w", domain.ErrInvalidRequest)
	}
	if req.BatchID == uuid.Nil {
		req.BatchID = uuid.New()
	}

	ctx, log := logging.With(ctx, "batch_id", req.BatchID)
	start := time.Now()

	err := i.batches.Register(ctx, &domain.Batch{
		ID:         req.BatchID,
		Source:     req.Source,
		EventCount: len(req.Events),
		ReceivedAt: start.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	lines := make([]line, len(req.Events))
	for n, ev := range req.Events {
		lines[n] = line{no: n + 1, event: ev}
	}

	res := &IngestResult{BatchID: req.BatchID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for _, chunk := range chunked(interleaveByTrack(lines), i.chunkSize) {
		g.Go(func() error {
			for _, l := range chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				posted, err := i.poster.PostEvent(gctx, req.BatchID, l.no, l.event)

				mu.Lock()
				outcome, fatal := record(res, l, posted, err)
				mu.Unlock()

				i.metrics.EventPosted(outcome)
				if fatal != nil {
					return fmt.Errorf("line %d: %w", l.no, fatal)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("batch ingestion aborted", "posted", res.Posted, "error", err)
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	sort.Slice(res.Rejections, func(a, b int) bool { return res.Rejections[a].LineNo < res.Rejections[b].LineNo })
	if err := i.batches.Complete(ctx, req.BatchID, res.Posted, res.Duplicates, res.Rejected, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	elapsed := time.Since(start)
	i.metrics.ObserveIngest(elapsed)
	log.Info("batch ingested",
		"events", len(req.Events),
		"posted", res.Posted,
		"duplicates", res.Duplicates,
		"rejected", res.Rejected,
		"recouped", res.Recouped,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

// record folds one posting outcome into res. Caller holds the lock.
func record(res *IngestResult, l line, posted *ledger.PostResult, err error) (string, error) {
	switch {
	case err == nil:
		res.Posted++
		res.Recouped += posted.Recouped
		res.Credited += posted.Credited
		return "posted", nil
	case errors.Is(err, domain.ErrDuplicateEvent):
		res.Duplicates++
		return "duplicate", nil
	case errors.Is(err, domain.ErrInvalidStreamEvent), errors.Is(err, domain.ErrInvalidSplitConfiguration):
		res.Rejected++
		res.Rejections = append(res.Rejections, Rejection{LineNo: l.no, Reason: err.Error()})
		return "rejected", nil
	default:
		return "failed", err
	}
}

// interleaveByTrack orders lines round-robin across tracks, keeping each
// track's own order, so one track with a large backlog does not occupy every
// worker while the rest wait.
func interleaveByTrack(lines []line) []line {
	var order []uuid.UUID
	byTrack := map[uuid.UUID][]line{}
	for _, l := range lines {
		if _, ok := byTrack[l.event.TrackID]; !ok {
			order = append(order, l.event.TrackID)
		}
		byTrack[l.event.TrackID] = append(byTrack[l.event.TrackID], l)
	}

	out := make([]line, 0, len(lines))
	for len(out) < len(lines) {
		for _, track := range order {
			queue := byTrack[track]
			if len(queue) == 0 {
				continue
			}
			out = append(out, queue[0])
			byTrack[track] = queue[1:]
		}
	}
	return out
}

func chunked(lines []line, size int) [][]line {
	var out [][]line
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		out = append(out, lines[start:end])
	}
	return out
}

