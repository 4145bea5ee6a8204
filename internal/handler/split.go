package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
)

type splitService interface {
	SyncSplits(ctx context.Context, trackID uuid.UUID, splits []domain.Split) error
	Splits(ctx context.Context, trackID uuid.UUID) ([]domain.Split, error)
}

type SplitHandler struct {
	splits splitService
}

func NewSplitHandler(splits splitService) *SplitHandler {
	return &SplitHandler{splits: splits}
}

type splitEntry struct {
	ArtistID   uuid.UUID       `json:"artist_id"`
	Percent    decimal.Decimal `json:"percent"`
	Recoupable *bool           `json:"recoupable,omitempty"`
}

type syncSplitsRequest struct {
	Splits []splitEntry `json:"splits"`
}

func (r syncSplitsRequest) Validate() []FieldError {
	var errs []FieldError

	if len(r.Splits) == 0 {
		errs = append(errs, FieldError{Field: "splits", Message: "must contain at least one contributor"})
	}
	for _, s := range r.Splits {
		if s.ArtistID == uuid.Nil {
			errs = append(errs, FieldError{Field: "splits.artist_id", Message: "required"})
			break
		}
	}

	return errs
}

type splitDTO struct {
	ArtistID   uuid.UUID       `json:"artist_id"`
	Percent    decimal.Decimal `json:"percent"`
	Recoupable bool            `json:"recoupable"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type trackSplitsDTO struct {
	TrackID uuid.UUID  `json:"track_id"`
	Splits  []splitDTO `json:"splits"`
}

func toTrackSplitsDTO(trackID uuid.UUID, splits []domain.Split) trackSplitsDTO {
	dto := trackSplitsDTO{TrackID: trackID, Splits: make([]splitDTO, len(splits))}
	for i, s := range splits {
		dto.Splits[i] = splitDTO{
			ArtistID:   s.ArtistID,
			Percent:    s.Percent,
			Recoupable: s.Recoupable,
			UpdatedAt:  s.UpdatedAt,
		}
	}
	return dto
}

// Sync replaces the track's split set. Recoupable defaults to true when the
// catalog does not say otherwise.
func (h *SplitHandler) Sync(w http.ResponseWriter, r *http.Request) {
	trackID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req syncSplitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	splits := make([]domain.Split, len(req.Splits))
	for i, s := range req.Splits {
		recoupable := true
		if s.Recoupable != nil {
			recoupable = *s.Recoupable
		}
		splits[i] = domain.Split{ArtistID: s.ArtistID, Percent: s.Percent, Recoupable: recoupable}
	}

	if err := h.splits.SyncSplits(r.Context(), trackID, splits); err != nil {
		logging.FromContext(r.Context()).Warn("split sync failed", "track_id", trackID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTrackSplitsDTO(trackID, splits))
}

func (h *SplitHandler) Get(w http.ResponseWriter, r *http.Request) {
	trackID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	splits, err := h.splits.Splits(r.Context(), trackID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTrackSplitsDTO(trackID, splits))
}
