package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/royalty-ledger/internal/handler"
	"github.com/josh-kwaku/royalty-ledger/internal/middleware"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
)

type handlers struct {
	health  *handler.HealthHandler
	batches *handler.BatchHandler
	splits  *handler.SplitHandler
	artists *handler.ArtistHandler
	payouts *handler.PayoutHandler
	quotes  *handler.QuoteHandler
	webhook *handler.WebhookHandler
	docs    *handler.DocsHandler
}

func newRouter(h handlers, idem *repository.IdempotencyRepository, gatherer prometheus.Gatherer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/health", h.health.Liveness)
	r.Get("/health/ready", h.health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs", h.docs.UI)
	r.Get("/docs/openapi.yaml", h.docs.Document)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/disbursement", h.webhook.ReceiveDisbursement)

		r.Post("/batches", h.batches.Ingest)

		r.Route("/tracks/{id}/splits", func(r chi.Router) {
			r.Get("/", h.splits.Get)
			r.Put("/", h.splits.Sync)
		})

		r.Route("/artists/{id}", func(r chi.Router) {
			r.Post("/advances", h.artists.RecordAdvance)
			r.Post("/costs", h.artists.RecordCost)
			r.Get("/recoupables", h.artists.ListRecoupables)
			r.Get("/summary", h.artists.Summary)
			r.Get("/payouts", h.payouts.List)
			r.With(middleware.Idempotency(idem)).Post("/payouts", h.payouts.Create)
		})

		r.Route("/payouts/{id}", func(r chi.Router) {
			r.Get("/", h.payouts.Get)
			r.Post("/process", h.payouts.Process)
			r.Post("/cancel", h.payouts.Cancel)
		})

		r.Get("/quotes/fee", h.quotes.Fee)
		r.Get("/quotes/rate", h.quotes.Rate)
	})

	return r
}
