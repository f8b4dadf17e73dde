package config_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/brink.zone/internal/platform/config"
)

// Exitf calls os.Exit, so the assertion runs the test binary again as a
// subprocess and inspects its exit code and stderr.
func TestExitfTerminatesWithFailure(t *testing.T) {
	if os.Getenv("EXITF_SUBPROCESS") == "1" {
		config.Exitf("boot failed: %v", "no database")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfTerminatesWithFailure$")
	cmd.Env = append(os.Environ(), "EXITF_SUBPROCESS=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected exit error, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "boot failed: no database") {
		t.Fatalf("stderr = %q, want boot message", string(out))
	}
}
