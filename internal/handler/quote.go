package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
)

type feeQuoter interface {
	QuoteFee(amount int64, method string) (rules.Fee, error)
}

type QuoteHandler struct {
	fees  feeQuoter
	rates *rates.RateTable
}

func NewQuoteHandler(fees feeQuoter, rateTable *rates.RateTable) *QuoteHandler {
	return &QuoteHandler{fees: fees, rates: rateTable}
}

type feeQuoteDTO struct {
	Method    string          `json:"method"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    int64           `json:"amount"`
	Fee       int64           `json:"fee"`
	NetAmount int64           `json:"net_amount"`
}

type rateQuoteDTO struct {
	Platform          string          `json:"platform"`
	Country           string          `json:"country"`
	PlatformRate      decimal.Decimal `json:"platform_rate"`
	CountryMultiplier decimal.Decimal `json:"country_multiplier"`
	Rate              decimal.Decimal `json:"rate"`
	Version           string          `json:"version"`
}

func (h *QuoteHandler) Fee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields []FieldError
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: "must be an integer amount in cents"})
	}
	method := q.Get("method")
	if method == "" {
		fields = append(fields, FieldError{Field: "method", Message: "required"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	fee, err := h.fees.QuoteFee(amount, method)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, feeQuoteDTO(fee))
}

// Rate never fails on unknown keys: they fall back to the "other" tier.
func (h *QuoteHandler) Rate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform, country := q.Get("platform"), q.Get("country")
	if platform == "" {
		RespondValidationError(w, []FieldError{{Field: "platform", Message: "required"}})
		return
	}

	RespondSuccess(w, http.StatusOK, rateQuoteDTO{
		Platform:          platform,
		Country:           country,
		PlatformRate:      h.rates.PlatformRate(platform),
		CountryMultiplier: h.rates.CountryMultiplier(country),
		Rate:              h.rates.Rate(platform, country),
		Version:           h.rates.Version(),
	})
}
