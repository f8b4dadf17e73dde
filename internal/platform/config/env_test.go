package config

import (
	"strings"
	"testing"
	"time"
)

type parseTestConfig struct {
	DBPath string        `env:"CONFIG_TEST_DB_PATH" envDefault:"data/wmd.db"`
	Poll   time.Duration `env:"CONFIG_TEST_POLL" envDefault:"2s"`
}

func TestParseEnvAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("CONFIG_TEST_POLL", "250ms")

	var cfg parseTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "data/wmd.db" {
		t.Fatalf("DBPath default = %q", cfg.DBPath)
	}
	if cfg.Poll != 250*time.Millisecond {
		t.Fatalf("Poll override = %v, want 250ms", cfg.Poll)
	}
}

func TestParseEnvReportsBadValues(t *testing.T) {
	t.Setenv("CONFIG_TEST_POLL", "soon")

	var cfg parseTestConfig
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected unparseable duration to error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("error = %v, want parse env prefix", err)
	}
}
