// Command mock-provider stands in for the disbursement provider. It accepts
// payouts with 202 and reports the outcome later on the signed callback.
// Amounts ending in 13 cents are declined.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/handler"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
)

type config struct {
	Port          int           `env:"PORT" envDefault:"8081"`
	WebhookSecret string        `env:"WEBHOOK_SECRET,required,notEmpty"`
	CallbackDelay time.Duration `env:"CALLBACK_DELAY" envDefault:"2s"`
	AppEnv        string        `env:"APP_ENV" envDefault:"development"`
}

type processRequest struct {
	PayoutID    string `json:"payout_id"`
	ArtistID    string `json:"artist_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"payment_method"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type callback struct {
	EventID       string `json:"event_id"`
	PayoutID      string `json:"payout_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     string `json:"timestamp"`
}

type provider struct {
	cfg    config
	client *http.Client
	logger *slog.Logger
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init("mock-provider", "info", cfg.AppEnv)

	p := &provider{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/process", p.process)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("mock provider started", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (p *provider) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PayoutID == "" || req.CallbackURL == "" {
		handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
		return
	}

	p.logger.Info("payout accepted",
		"payout_id", req.PayoutID,
		"amount", req.Amount,
		"method", req.Method,
		"request_id", r.Header.Get("X-Request-ID"),
	)
	go p.settle(req)

	handler.RespondSuccess(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (p *provider) settle(req processRequest) {
	time.Sleep(p.cfg.CallbackDelay)

	cb := callback{
		EventID:   uuid.NewString(),
		PayoutID:  req.PayoutID,
		Status:    "completed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if req.Amount%100 == 13 {
		cb.Status = "failed"
		cb.Reason = "declined by receiving institution"
	} else {
		cb.TransactionID = "txn_" + uuid.NewString()[:8]
	}

	body, err := json.Marshal(cb)
	if err != nil {
		p.logger.Error("failed to marshal callback", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.CallbackURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to build callback", "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(handler.SignatureHeader, handler.Sign(body, p.cfg.WebhookSecret))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("callback delivery failed", "payout_id", req.PayoutID, "error", err)
		return
	}
	defer resp.Body.Close()

	p.logger.Info("callback delivered", "payout_id", req.PayoutID, "status", cb.Status, "response", resp.StatusCode)
}
