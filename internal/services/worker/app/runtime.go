package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/service"
	wmdsqlite "github.com/louisbranch/brink.zone/internal/wmd/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls worker startup, storage, and loop behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	SweepLimit    int
	FeedURL       string
	FeedToken     string
	WebhookURL    string
}

const (
	defaultWorkerPort = 8089
	defaultWorkerDB   = "data/wmd.db"
)

// Run starts worker runtime dependencies and the background processing loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worker storage dir: %w", err)
		}
	}

	store, err := wmdsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open wmd sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close wmd sqlite store: %v", closeErr)
		}
	}()

	core, err := service.New(service.Config{
		Store:  store,
		Roster: store,
	})
	if err != nil {
		return fmt.Errorf("build wmd service: %w", err)
	}

	sinks := []Sink{LogSink{}}
	if strings.TrimSpace(cfg.FeedURL) != "" {
		feedSink, err := NewFeedSink(cfg.FeedURL, cfg.FeedToken)
		if err != nil {
			return fmt.Errorf("build feed sink: %w", err)
		}
		defer feedSink.Close()
		sinks = append(sinks, feedSink)
	}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		webhookSink, err := NewWebhookSink(cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("build webhook sink: %w", err)
		}
		sinks = append(sinks, webhookSink)
	}

	workerLoop, err := NewLoop(store, core, sinks, Config{
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		BatchSize:     cfg.BatchSize,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
		SweepLimit:    cfg.SweepLimit,
	})
	if err != nil {
		return fmt.Errorf("build worker loop: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("worker.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	return workerLoop.Run(ctx)
}
