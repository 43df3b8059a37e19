package cli

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackrox/acs-loadtest/internal/config"
	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

func TestRunCmd_Passes(t *testing.T) {
	t.Setenv(scenario.TokenEnvVar, "abc123")
	fm := newFleetManager(t, "abc123")
	resultPath := filepath.Join(t.TempDir(), "out", "result.json")

	out, err := execute(t, "run",
		"--host", fm.URL,
		"--users", "2",
		"--spawn-rate", "0",
		"--duration", "1s",
		"--wait-min", "10ms",
		"--quiet",
		"--out", resultPath,
		"--threshold", "http_req_failed=rate<0.01",
		"--threshold", "http_reqs=count>0",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASSED")

	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)

	var result engine.TestResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "list-centrals", result.User)
	assert.True(t, result.Passed)
	assert.Greater(t, result.Metrics.TotalRequests, int64(0))
	assert.Zero(t, result.Metrics.FailedRequests)

	for _, auth := range fm.Auths() {
		assert.Equal(t, "Bearer abc123", auth)
	}
}

func TestRunCmd_FailsThresholdWithoutToken(t *testing.T) {
	unsetToken(t)
	fm := newFleetManager(t, "abc123")

	out, err := execute(t, "run",
		"--host", fm.URL,
		"--users", "1",
		"--duration", "1s",
		"--wait-min", "20ms",
		"--quiet",
		"--threshold", "http_req_failed=rate<0.01",
	)
	require.ErrorIs(t, err, errTestFailed)
	assert.Contains(t, out, "FAILED")

	auths := fm.Auths()
	require.NotEmpty(t, auths, "requests are sent without a token")
	for _, auth := range auths {
		assert.Equal(t, "Bearer <nil>", auth)
	}
}

func TestRunCmd_RequireToken(t *testing.T) {
	unsetToken(t)
	fm := newFleetManager(t, "abc123")

	_, err := execute(t, "run", "--host", fm.URL, "--duration", "1s", "--quiet", "--require-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), scenario.TokenEnvVar)
	assert.Empty(t, fm.Auths())
}

func TestRunCmd_MetricsAddressInUse(t *testing.T) {
	t.Setenv(scenario.TokenEnvVar, "abc123")
	fm := newFleetManager(t, "abc123")

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	_, err = execute(t, "run", "--host", fm.URL, "--duration", "1s", "--quiet",
		"--metrics-address", taken.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics address")
	assert.Empty(t, fm.Auths(), "no load is sent when metrics cannot be served")
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--users", "-1", "--host", "ftp://nowhere", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users")
	assert.Contains(t, err.Error(), "host")
}

func TestRunCmd_BadFlagValues(t *testing.T) {
	for _, args := range [][]string{
		{"--duration", "soon"},
		{"--stages", "30s"},
		{"--threshold", "iterations=count>1"},
	} {
		_, err := execute(t, append([]string{"run", "--quiet"}, args...)...)
		assert.Error(t, err, args)
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--host", "https://fm.example.com",
		"--users", "20",
		"--spawn-rate", "2.5",
		"--stages", "10s:5,20s:0",
		"--wait-min", "1s",
		"--wait-max", "2",
		"--request-timeout", "5s",
		"--insecure",
		"--metrics-address", ":7070",
	}))

	cfg := &config.Config{Host: "http://127.0.0.1:8000", Users: 1, Duration: config.Duration(time.Minute)}
	require.NoError(t, applyFlags(cfg, cmd.Flags()))

	assert.Equal(t, "https://fm.example.com", cfg.Host)
	assert.Equal(t, 20, cfg.Users)
	assert.Equal(t, 2.5, cfg.SpawnRate)
	assert.Len(t, cfg.Stages, 2)
	assert.Equal(t, config.Duration(time.Second), cfg.WaitMin)
	assert.Equal(t, config.Duration(2*time.Second), cfg.WaitMax)
	assert.Equal(t, config.Duration(5*time.Second), cfg.RequestTimeout)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, ":7070", cfg.MetricsAddress)
	assert.Equal(t, config.Duration(time.Minute), cfg.Duration, "unset flags leave the profile alone")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: http://from-file:8000\nusers: 3\n"), 0o600))

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--users", "7"}))

	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8000", cfg.Host)
	assert.Equal(t, 7, cfg.Users)
}

func TestRunCmd_HTMLReport(t *testing.T) {
	t.Setenv(scenario.TokenEnvVar, "abc123")
	fm := newFleetManager(t, "abc123")
	reportPath := filepath.Join(t.TempDir(), "report.html")

	_, err := execute(t, "run", "--host", fm.URL, "--duration", "1s", "--wait-min", "50ms", "--quiet", "--out", reportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "GET /api/rhacs/v1/centrals")
}
