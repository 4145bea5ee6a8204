package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required,notEmpty"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	// Empty means the built-in rate and fee tables.
	RateTablePath string `env:"RATE_TABLE_PATH"`

	MinPayoutCents    int64  `env:"MIN_PAYOUT_CENTS" envDefault:"1000"`
	ReportingCurrency string `env:"REPORTING_CURRENCY" envDefault:"USD"`
	IngestChunkSize   int    `env:"INGEST_CHUNK_SIZE" envDefault:"100"`
	IngestWorkers     int    `env:"INGEST_WORKERS" envDefault:"4"`
	LockTimeoutMS     int    `env:"LOCK_TIMEOUT_MS" envDefault:"5000"`

	DisbursementURL         string `env:"DISBURSEMENT_URL" envDefault:"http://mock-provider:8081"`
	DisbursementCallbackURL string `env:"DISBURSEMENT_CALLBACK_URL" envDefault:"http://app:8080/api/v1/webhooks/disbursement"`
	DisbursementTimeoutS    int    `env:"DISBURSEMENT_TIMEOUT_S" envDefault:"5"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"royalty.payouts"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	WebhookPollInterval  time.Duration `env:"WEBHOOK_POLL_INTERVAL" envDefault:"2s"`
	StaleProcessingAfter time.Duration `env:"STALE_PROCESSING_AFTER" envDefault:"30m"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.IngestChunkSize <= 0 {
		return nil, fmt.Errorf("config.Load: INGEST_CHUNK_SIZE must be positive")
	}
	if cfg.IngestWorkers <= 0 {
		return nil, fmt.Errorf("config.Load: INGEST_WORKERS must be positive")
	}
	if cfg.MinPayoutCents < 0 {
		return nil, fmt.Errorf("config.Load: MIN_PAYOUT_CENTS must not be negative")
	}
	return &cfg, nil
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

func (c *Config) DisbursementTimeout() time.Duration {
	return time.Duration(c.DisbursementTimeoutS) * time.Second
}
