package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/service/payout"
)

const requestIDHeader = "X-Request-ID"

// ProviderClient submits payouts to the disbursement provider, which answers
// 202 and reports the outcome later through the signed webhook.
type ProviderClient struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

func NewProviderClient(baseURL, callbackURL string, timeout time.Duration) *ProviderClient {
	return &ProviderClient{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type providerPayload struct {
	PayoutID    string `json:"payout_id"`
	ArtistID    string `json:"artist_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"payment_method"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

func (c *ProviderClient) Submit(ctx context.Context, req payout.ProviderRequest) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(providerPayload{
		PayoutID:    req.PayoutID.String(),
		ArtistID:    req.ArtistID.String(),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      req.Method,
		Reference:   req.Reference,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("Submit: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Submit: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := logging.RequestID(ctx); id != "" {
		httpReq.Header.Set(requestIDHeader, id)
	}

	start := time.Now()
	log.Info("provider request sent", "provider", "disbursement", "payout_id", req.PayoutID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Submit: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	// Only a 4xx proves the provider will never pay; anything else may
	// still settle through the callback.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("Submit: unexpected status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrProviderRejected)
	}
	return fmt.Errorf("Submit: unexpected status %d: %s", resp.StatusCode, string(respBody))
}
