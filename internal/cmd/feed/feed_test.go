package feed

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	t.Setenv("BRINK_FEED_INGEST_TOKEN", "secret-1")

	cfg, err := ParseConfig(fs, []string{"-http-addr", ":9090"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.HealthPort != 8091 {
		t.Fatalf("health port = %d, want 8091", cfg.HealthPort)
	}
	if cfg.IngestToken != "secret-1" {
		t.Fatalf("ingest token = %q, want %q", cfg.IngestToken, "secret-1")
	}
}
