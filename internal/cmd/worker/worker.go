// Package worker parses worker command flags and launches the worker runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/brink.zone/internal/platform/cmd"
	"github.com/louisbranch/brink.zone/internal/platform/discovery"
	workerapp "github.com/louisbranch/brink.zone/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	Port          int           `env:"BRINK_WORKER_PORT" envDefault:"8089"`
	DBPath        string        `env:"BRINK_WORKER_DB_PATH" envDefault:"data/wmd.db"`
	PollInterval  time.Duration `env:"BRINK_WORKER_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL      time.Duration `env:"BRINK_WORKER_LEASE_TTL" envDefault:"30s"`
	BatchSize     int           `env:"BRINK_WORKER_BATCH_SIZE" envDefault:"50"`
	MaxAttempts   int           `env:"BRINK_WORKER_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff  time.Duration `env:"BRINK_WORKER_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay time.Duration `env:"BRINK_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
	SweepLimit    int           `env:"BRINK_WORKER_SWEEP_LIMIT" envDefault:"100"`
	FeedURL       string        `env:"BRINK_WORKER_FEED_URL"`
	FeedToken     string        `env:"BRINK_WORKER_FEED_TOKEN"`
	WebhookURL    string        `env:"BRINK_WORKER_WEBHOOK_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.FeedURL = discovery.OrDefaultWSURL(cfg.FeedURL, discovery.ServiceFeed, "/ws/ingest")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The WMD SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Sweep and outbox poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Outbox delivery lease duration")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Outbox rows leased per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum delivery attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	fs.IntVar(&cfg.SweepLimit, "sweep-limit", cfg.SweepLimit, "Records resolved per sweep pass")
	fs.StringVar(&cfg.FeedURL, "feed-url", cfg.FeedURL, "The feed ingest WebSocket URL")
	fs.StringVar(&cfg.FeedToken, "feed-token", cfg.FeedToken, "The feed ingest shared token")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "Optional webhook URL for event delivery")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		return workerapp.Run(ctx, workerapp.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
			SweepLimit:    cfg.SweepLimit,
			FeedURL:       cfg.FeedURL,
			FeedToken:     cfg.FeedToken,
			WebhookURL:    cfg.WebhookURL,
		})
	})
}
