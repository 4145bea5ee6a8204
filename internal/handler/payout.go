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
	"github.com/josh-kwaku/royalty-ledger/internal/service/payout"
)

type payoutService interface {
	RequestPayout(ctx context.Context, req payout.Request) (*domain.Payout, error)
	GetWithEvents(ctx context.Context, id uuid.UUID) (*domain.Payout, []domain.PayoutEvent, error)
	ListForArtist(ctx context.Context, artistID uuid.UUID) ([]domain.Payout, error)
	StartProcessing(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
}

type PayoutHandler struct {
	payouts payoutService
}

func NewPayoutHandler(payouts payoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// Amount, threshold and method checks live in the payout policy so every
// caller sees them in the same order; the handler only checks shape.
type createPayoutRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type payoutDTO struct {
	ID            uuid.UUID  `json:"id"`
	ArtistID      uuid.UUID  `json:"artist_id"`
	Amount        int64      `json:"amount"`
	Fee           int64      `json:"fee"`
	NetAmount     int64      `json:"net_amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Method        string     `json:"method"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type payoutEventDTO struct {
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type payoutDetailDTO struct {
	payoutDTO
	History []payoutEventDTO `json:"history"`
}

func toPayoutDTO(p *domain.Payout) payoutDTO {
	return payoutDTO{
		ID:            p.ID,
		ArtistID:      p.ArtistID,
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     p.NetAmount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		Method:        p.PaymentMethod,
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

func toPayoutDetailDTO(p *domain.Payout, evts []domain.PayoutEvent) payoutDetailDTO {
	dto := payoutDetailDTO{payoutDTO: toPayoutDTO(p), History: make([]payoutEventDTO, len(evts))}
	for i, e := range evts {
		dto.History[i] = payoutEventDTO{
			Type:      string(e.EventType),
			Actor:     e.Actor,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		}
	}
	return dto
}

func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	artistID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.payouts.RequestPayout(r.Context(), payout.Request{
		ArtistID:       artistID,
		Amount:         req.Amount,
		Method:         req.Method,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		log.Warn("payout request failed", "artist_id", artistID, "amount", req.Amount, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payouts/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPayoutDTO(p))
}

func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	artistID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	payouts, err := h.payouts.ListForArtist(r.Context(), artistID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]payoutDTO, len(payouts))
	for i := range payouts {
		out[i] = toPayoutDTO(&payouts[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, evts, err := h.payouts.GetWithEvents(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPayoutDetailDTO(p, evts))
}

// Process hands a pending payout to the disbursement provider. A provider
// refusal still answers 202 with the payout in its failed state.
func (h *PayoutHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.payouts.StartProcessing(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payout processing failed", "payout_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, toPayoutDTO(p))
}

func (h *PayoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.payouts.Cancel(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payout cancel failed", "payout_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPayoutDTO(p))
}
