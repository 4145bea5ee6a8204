package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/josh-kwaku/royalty-ledger/api"
	"github.com/josh-kwaku/royalty-ledger/internal/config"
	"github.com/josh-kwaku/royalty-ledger/internal/earnings"
	"github.com/josh-kwaku/royalty-ledger/internal/events"
	"github.com/josh-kwaku/royalty-ledger/internal/handler"
	"github.com/josh-kwaku/royalty-ledger/internal/logging"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
	rules "github.com/josh-kwaku/royalty-ledger/internal/payout"
	"github.com/josh-kwaku/royalty-ledger/internal/rates"
	"github.com/josh-kwaku/royalty-ledger/internal/repository"
	"github.com/josh-kwaku/royalty-ledger/internal/scheduler"
	"github.com/josh-kwaku/royalty-ledger/internal/service"
	"github.com/josh-kwaku/royalty-ledger/internal/service/ledger"
	"github.com/josh-kwaku/royalty-ledger/internal/service/payout"
	"github.com/josh-kwaku/royalty-ledger/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("royalty-ledger exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("royalty-ledger", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, 30)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	rateTable, feeTable, err := rates.Load(cfg.RateTablePath)
	if err != nil {
		return err
	}
	logger.Info("rate table loaded", "version", rateTable.Version(), "platforms", len(rateTable.Platforms()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	artistRepo := repository.NewArtistLedgerRepository(db, cfg.LockTimeout())
	splitRepo := repository.NewSplitRepository(db)
	earningRepo := repository.NewEarningRepository(db)
	recoupableRepo := repository.NewRecoupableRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	payoutEventRepo := repository.NewPayoutEventRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	ledgerSvc := ledger.NewService(
		artistRepo,
		splitRepo,
		earningRepo,
		recoupableRepo,
		payoutRepo,
		earnings.NewCalculator(rateTable),
		db,
		m,
		cfg.ReportingCurrency,
	)

	provider := service.NewProviderClient(cfg.DisbursementURL, cfg.DisbursementCallbackURL, cfg.DisbursementTimeout())
	payoutSvc := payout.NewService(
		payoutRepo,
		payoutEventRepo,
		artistRepo,
		rules.NewPolicy(cfg.MinPayoutCents, cfg.ReportingCurrency, feeTable),
		provider,
		publisher,
		db,
		m,
		cfg.DisbursementTimeout(),
	)

	ingester := service.NewIngester(batchRepo, ledgerSvc, m, cfg.IngestChunkSize, cfg.IngestWorkers)

	processor := service.NewWebhookProcessor(webhookRepo, payoutSvc, db, m, logger, cfg.WebhookPollInterval)
	go processor.Start(ctx)

	sched := scheduler.New(idempotencyRepo, payoutSvc, m, logger, cfg.StaleProcessingAfter)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	router := newRouter(handlers{
		health:  handler.NewHealthHandler(db, rateTable.Version()),
		batches: handler.NewBatchHandler(ingester),
		splits:  handler.NewSplitHandler(ledgerSvc),
		artists: handler.NewArtistHandler(ledgerSvc),
		payouts: handler.NewPayoutHandler(payoutSvc),
		quotes:  handler.NewQuoteHandler(payoutSvc, rateTable),
		webhook: handler.NewWebhookHandler(webhookRepo, cfg.WebhookSecret),
		docs:    handler.NewDocsHandler(api.OpenAPI),
	}, idempotencyRepo, reg, cfg.CORSAllowedOrigins)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newPublisher streams payout status changes to Kafka when brokers are
// configured and logs them otherwise.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger), nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing payout events to kafka", "topic", cfg.KafkaTopic, "brokers", len(cfg.KafkaBrokers))
	return p, nil
}
