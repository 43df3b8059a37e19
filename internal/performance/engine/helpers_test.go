package engine_test

import (
	"os"
	"testing"

	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// unsetToken removes STATIC_TOKEN for the test. Call t.Setenv first so the
// previous value is restored afterwards.
func unsetToken(t *testing.T) {
	t.Helper()
	if err := os.Unsetenv(scenario.TokenEnvVar); err != nil {
		t.Fatal(err)
	}
}
