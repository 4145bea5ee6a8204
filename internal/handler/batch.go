package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/service"
)

const maxBatchEvents = 50000

type batchIngester interface {
	Ingest(ctx context.Context, req service.BatchRequest) (*service.IngestResult, error)
}

type BatchHandler struct {
	ingester batchIngester
}

func NewBatchHandler(ingester batchIngester) *BatchHandler {
	return &BatchHandler{ingester: ingester}
}

type streamEventRequest struct {
	Platform     string           `json:"platform"`
	Country      string           `json:"country"`
	TrackID      uuid.UUID        `json:"track_id"`
	Period       string           `json:"period"`
	Streams      int64            `json:"streams"`
	GrossRevenue *decimal.Decimal `json:"gross_revenue"`
}

type ingestBatchRequest struct {
	BatchID *uuid.UUID           `json:"batch_id"`
	Source  string               `json:"source"`
	Events  []streamEventRequest `json:"events"`
}

func (r ingestBatchRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Source == "" {
		errs = append(errs, FieldError{Field: "source", Message: "required"})
	}
	switch {
	case len(r.Events) == 0:
		errs = append(errs, FieldError{Field: "events", Message: "must contain at least one event"})
	case len(r.Events) > maxBatchEvents:
		errs = append(errs, FieldError{Field: "events", Message: fmt.Sprintf("must contain at most %d events", maxBatchEvents)})
	}

	return errs
}

type rejectionDTO struct {
	LineNo int    `json:"line_no"`
	Reason string `json:"reason"`
}

type ingestResultDTO struct {
	BatchID    uuid.UUID      `json:"batch_id"`
	Posted     int            `json:"posted"`
	Duplicates int            `json:"duplicates"`
	Rejected   int            `json:"rejected"`
	Recouped   int64          `json:"recouped"`
	Credited   int64          `json:"credited"`
	Rejections []rejectionDTO `json:"rejections"`
}

func toIngestResultDTO(res *service.IngestResult) ingestResultDTO {
	dto := ingestResultDTO{
		BatchID:    res.BatchID,
		Posted:     res.Posted,
		Duplicates: res.Duplicates,
		Rejected:   res.Rejected,
		Recouped:   res.Recouped,
		Credited:   res.Credited,
		Rejections: make([]rejectionDTO, 0, len(res.Rejections)),
	}
	for _, rej := range res.Rejections {
		dto.Rejections = append(dto.Rejections, rejectionDTO{LineNo: rej.LineNo, Reason: rej.Reason})
	}
	return dto
}

// Ingest posts a platform report. Line-level problems come back as rejections
// in a 200 response; the batch as a whole only fails on storage errors.
func (h *BatchHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	batch := service.BatchRequest{Source: req.Source, Events: make([]domain.StreamEvent, len(req.Events))}
	if req.BatchID != nil {
		batch.BatchID = *req.BatchID
	}
	for i, ev := range req.Events {
		batch.Events[i] = domain.StreamEvent{
			Platform:     ev.Platform,
			Country:      ev.Country,
			TrackID:      ev.TrackID,
			Period:       ev.Period,
			Streams:      ev.Streams,
			GrossRevenue: ev.GrossRevenue,
		}
	}

	res, err := h.ingester.Ingest(r.Context(), batch)
	if err != nil {
		log.Error("batch ingestion failed", "source", req.Source, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toIngestResultDTO(res))
}
