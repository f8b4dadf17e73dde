// Package cmd carries the startup plumbing shared by every binary:
// environment parsing, flag handling, and telemetry lifecycle.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/brink.zone/internal/platform/config"
	"github.com/louisbranch/brink.zone/internal/platform/otel"
)

// Service names, used for telemetry resource attributes and log prefixes.
const (
	ServiceFeed   = "feed"
	ServiceSeed   = "seed"
	ServiceWorker = "worker"
)

// otelShutdownTimeout bounds the trace flush on process exit.
const otelShutdownTimeout = 5 * time.Second

// ParseConfig fills cfg from environment variables. Binaries call it
// before registering flags so env values become the flag defaults.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags on top of the env-derived config.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for the named service, invokes run,
// and flushes telemetry on the way out.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	return run(ctx)
}
