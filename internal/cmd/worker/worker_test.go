package worker

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("BRINK_WORKER_PORT", "9099")
	t.Setenv("BRINK_WORKER_FEED_TOKEN", "secret-1")

	cfg, err := ParseConfig(fs, []string{"-db-path", "tmp/wmd.db", "-max-attempts", "3"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9099 {
		t.Fatalf("port = %d, want 9099", cfg.Port)
	}
	if cfg.FeedToken != "secret-1" {
		t.Fatalf("feed token = %q, want %q", cfg.FeedToken, "secret-1")
	}
	if cfg.DBPath != "tmp/wmd.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "tmp/wmd.db")
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
}

func TestParseConfig_DefaultFeedURL(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.FeedURL != "ws://feed:8090/ws/ingest" {
		t.Fatalf("feed url = %q, want %q", cfg.FeedURL, "ws://feed:8090/ws/ingest")
	}
}
