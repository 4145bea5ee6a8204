package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/service/ledger"
)

type artistLedgerService interface {
	RecordAdvance(ctx context.Context, req ledger.RecoupableRequest) (*domain.RecoupableItem, error)
	RecordCost(ctx context.Context, req ledger.RecoupableRequest) (*domain.RecoupableItem, error)
	ListRecoupables(ctx context.Context, artistID uuid.UUID) ([]domain.RecoupableItem, error)
	Summary(ctx context.Context, artistID uuid.UUID) (*domain.EarningsSummary, error)
}

type ArtistHandler struct {
	ledger artistLedgerService
}

func NewArtistHandler(ledger artistLedgerService) *ArtistHandler {
	return &ArtistHandler{ledger: ledger}
}

type recoupableRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Recoupable  *bool  `json:"recoupable,omitempty"`
}

func (r recoupableRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if len(r.Description) > 500 {
		errs = append(errs, FieldError{Field: "description", Message: "must be at most 500 characters"})
	}

	return errs
}

type recoupableDTO struct {
	ID          uuid.UUID  `json:"id"`
	ArtistID    uuid.UUID  `json:"artist_id"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	Remaining   int64      `json:"remaining"`
	Recouped    int64      `json:"recouped"`
	Recoupable  bool       `json:"recoupable"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

func toRecoupableDTO(i *domain.RecoupableItem) recoupableDTO {
	return recoupableDTO{
		ID:          i.ID,
		ArtistID:    i.ArtistID,
		Kind:        string(i.Kind),
		Description: i.Description,
		Amount:      i.Amount,
		Remaining:   i.Remaining,
		Recouped:    i.Recouped(),
		Recoupable:  i.Recoupable,
		Status:      string(i.Status),
		CreatedAt:   i.CreatedAt,
		ClosedAt:    i.ClosedAt,
	}
}

type breakdownDTO struct {
	Key      string `json:"key"`
	Streams  int64  `json:"streams"`
	Net      int64  `json:"net"`
	Recouped int64  `json:"recouped"`
	Records  int    `json:"records"`
}

type summaryDTO struct {
	ArtistID              uuid.UUID      `json:"artist_id"`
	Currency              string         `json:"currency"`
	Records               int            `json:"records"`
	TotalStreams          int64          `json:"total_streams"`
	TotalNet              int64          `json:"total_net"`
	Recouped              int64          `json:"recouped"`
	OutstandingRecoupable int64          `json:"outstanding_recoupable"`
	CompletedPayouts      int64          `json:"completed_payouts"`
	PendingPayouts        int64          `json:"pending_payouts"`
	AvailableBalance      int64          `json:"available_balance"`
	ByPeriod              []breakdownDTO `json:"by_period"`
	ByPlatform            []breakdownDTO `json:"by_platform"`
	ByCountry             []breakdownDTO `json:"by_country"`
}

func toBreakdownDTOs(in []domain.Breakdown) []breakdownDTO {
	out := make([]breakdownDTO, len(in))
	for i, b := range in {
		out[i] = breakdownDTO(b)
	}
	return out
}

func toSummaryDTO(s *domain.EarningsSummary) summaryDTO {
	return summaryDTO{
		ArtistID:              s.ArtistID,
		Currency:              s.Currency,
		Records:               s.Records,
		TotalStreams:          s.TotalStreams,
		TotalNet:              s.TotalNet,
		Recouped:              s.Recouped,
		OutstandingRecoupable: s.OutstandingRecoupable,
		CompletedPayouts:      s.CompletedPayouts,
		PendingPayouts:        s.PendingPayouts,
		AvailableBalance:      s.AvailableBalance,
		ByPeriod:              toBreakdownDTOs(s.ByPeriod),
		ByPlatform:            toBreakdownDTOs(s.ByPlatform),
		ByCountry:             toBreakdownDTOs(s.ByCountry),
	}
}

func (h *ArtistHandler) RecordAdvance(w http.ResponseWriter, r *http.Request) {
	h.recordItem(w, r, domain.KindAdvance)
}

func (h *ArtistHandler) RecordCost(w http.ResponseWriter, r *http.Request) {
	h.recordItem(w, r, domain.KindCost)
}

func (h *ArtistHandler) recordItem(w http.ResponseWriter, r *http.Request, kind domain.RecoupableKind) {
	artistID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req recoupableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	in := ledger.RecoupableRequest{
		ArtistID:    artistID,
		Amount:      req.Amount,
		Description: req.Description,
		Recoupable:  req.Recoupable == nil || *req.Recoupable,
	}

	var (
		item *domain.RecoupableItem
		err  error
	)
	if kind == domain.KindAdvance {
		item, err = h.ledger.RecordAdvance(r.Context(), in)
	} else {
		item, err = h.ledger.RecordCost(r.Context(), in)
	}
	if err != nil {
		logging.FromContext(r.Context()).Warn("recording recoupable failed", "artist_id", artistID, "kind", kind, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/artists/%s/recoupables", artistID))
	RespondSuccess(w, http.StatusCreated, toRecoupableDTO(item))
}

func (h *ArtistHandler) ListRecoupables(w http.ResponseWriter, r *http.Request) {
	artistID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	items, err := h.ledger.ListRecoupables(r.Context(), artistID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]recoupableDTO, len(items))
	for i := range items {
		out[i] = toRecoupableDTO(&items[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *ArtistHandler) Summary(w http.ResponseWriter, r *http.Request) {
	artistID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.ledger.Summary(r.Context(), artistID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSummaryDTO(summary))
}
