package cmd

import (
	"context"
	"flag"
	"testing"
)

type stubConfig struct {
	DBPath string `env:"ENTRYPOINT_TEST_DB_PATH" envDefault:"data/test.db"`
	Port   int    `env:"ENTRYPOINT_TEST_PORT" envDefault:"8080"`
}

func TestParseConfigLayersEnvUnderFlags(t *testing.T) {
	t.Setenv("ENTRYPOINT_TEST_DB_PATH", "env/path.db")

	var cfg stubConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "env/path.db" {
		t.Fatalf("DBPath from env = %q", cfg.DBPath)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port default = %d", cfg.Port)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "")
	if err := ParseArgs(fs, []string{"-port", "9001"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if cfg.Port != 9001 {
		t.Fatalf("Port after flag = %d, want 9001", cfg.Port)
	}
	if cfg.DBPath != "env/path.db" {
		t.Fatalf("DBPath should keep env value, got %q", cfg.DBPath)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[stubConfig](nil); err == nil {
		t.Fatal("expected nil config to be rejected")
	}
}

func TestParseArgsRejectsNilFlagSet(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected nil flag set to be rejected")
	}
}

func TestRunWithTelemetryValidatesInputs(t *testing.T) {
	noop := func(context.Context) error { return nil }
	if err := RunWithTelemetry(context.Background(), "  ", noop); err == nil {
		t.Fatal("expected blank service name to be rejected")
	}
	if err := RunWithTelemetry(context.Background(), ServiceWorker, nil); err == nil {
		t.Fatal("expected nil run function to be rejected")
	}
}
