// Package feed parses feed command flags and launches the live event feed.
package feed

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/brink.zone/internal/platform/cmd"
	server "github.com/louisbranch/brink.zone/internal/services/feed/app"
)

// Config holds feed command configuration.
type Config struct {
	HTTPAddr    string `env:"BRINK_FEED_HTTP_ADDR" envDefault:":8090"`
	HealthPort  int    `env:"BRINK_FEED_HEALTH_PORT" envDefault:"8091"`
	IngestToken string `env:"BRINK_FEED_INGEST_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "feed HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "feed health gRPC server port")
	fs.StringVar(&cfg.IngestToken, "ingest-token", cfg.IngestToken, "shared token gating the ingest socket")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the feed app and serves the realtime surface.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFeed, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			HealthPort:  cfg.HealthPort,
			IngestToken: cfg.IngestToken,
		}); err != nil {
			return fmt.Errorf("serve feed: %w", err)
		}
		return nil
	})
}
