package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackrox/acs-loadtest/internal/config"
	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

type fleetManager struct {
	*httptest.Server
	mu    sync.Mutex
	auths map[string]int
}

func newFleetManager(t *testing.T, status int) *fleetManager {
	fm := &fleetManager{auths: map[string]int{}}
	fm.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fm.mu.Lock()
		fm.auths[r.Header.Get("Authorization")]++
		fm.mu.Unlock()
		if r.URL.Path != scenario.CentralsPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"kind":"CentralRequestList","page":1,"size":0,"total":0,"items":[]}`))
	}))
	t.Cleanup(fm.Close)
	return fm
}

func (fm *fleetManager) Auths() map[string]int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	out := make(map[string]int, len(fm.auths))
	for k, v := range fm.auths {
		out[k] = v
	}
	return out
}

func baseConfig(host string) *config.Config {
	return &config.Config{
		Host:           host,
		User:           "list-centrals",
		Users:          2,
		SpawnRate:      0,
		Duration:       config.Duration(300 * time.Millisecond),
		WaitMin:        config.Duration(10 * time.Millisecond),
		RequestTimeout: config.Duration(5 * time.Second),
		GracefulStop:   config.Duration(time.Second),
	}
}

type countingObserver struct {
	requests atomic.Int64
	users    atomic.Int64
}

func (o *countingObserver) ObserveRequest(metrics.Sample) { o.requests.Add(1) }
func (o *countingObserver) SetActiveUsers(n int)          { o.users.Store(int64(n)) }

func TestEngine_RunListCentrals(t *testing.T) {
	t.Setenv(scenario.TokenEnvVar, "abc123")
	fm := newFleetManager(t, http.StatusOK)

	cfg := baseConfig(fm.URL)
	cfg.Thresholds = config.Thresholds{
		HTTPReqDuration: []string{"p95 < 5s"},
		HTTPReqFailed:   []string{"rate < 0.01"},
		HTTPReqs:        []string{"count > 1"},
	}

	observer := &countingObserver{}
	eng, err := engine.NewEngine(cfg, engine.WithObserver(observer))
	require.NoError(t, err)
	assert.Nil(t, eng.GetMetrics())

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed, "thresholds: %+v", result.Thresholds)
	assert.Len(t, result.Thresholds, 3)
	assert.Equal(t, "list-centrals", result.User)
	assert.Equal(t, "constant-vus", result.Executor)
	assert.Equal(t, 2, result.MaxUsers)
	assert.False(t, result.Interrupted)
	assert.Zero(t, result.Metrics.FailedRequests)
	require.Len(t, result.RequestStats, 1)
	assert.Equal(t, "GET /api/rhacs/v1/centrals", result.RequestStats[0].Name)

	auths := fm.Auths()
	assert.Equal(t, []string{"Bearer abc123"}, keys(auths))
	assert.EqualValues(t, auths["Bearer abc123"], result.Metrics.TotalRequests)
	assert.EqualValues(t, result.Metrics.TotalRequests, observer.requests.Load())
	assert.Zero(t, observer.users.Load())
	assert.False(t, eng.IsRunning())

	_, err = eng.Run(context.Background())
	assert.Error(t, err, "an engine runs once")
}

func TestEngine_MissingTokenStillSends(t *testing.T) {
	t.Setenv(scenario.TokenEnvVar, "")
	unsetToken(t)
	fm := newFleetManager(t, http.StatusUnauthorized)

	cfg := baseConfig(fm.URL)
	cfg.Thresholds.HTTPReqFailed = []string{"rate < 0.01"}

	eng, err := engine.NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer <nil>"}, keys(fm.Auths()))
	assert.False(t, result.Passed)
	assert.Equal(t, result.Metrics.TotalRequests, result.Metrics.FailedRequests)
	require.Len(t, result.RequestStats, 1)
	assert.Equal(t, result.Metrics.TotalRequests, result.RequestStats[0].Causes["HTTP 401 Unauthorized"])
}

func TestEngine_Ramping(t *testing.T) {
	fm := newFleetManager(t, http.StatusOK)

	cfg := baseConfig(fm.URL)
	cfg.Stages = []config.Stage{
		{Duration: config.Duration(150 * time.Millisecond), Target: 3},
		{Duration: config.Duration(150 * time.Millisecond), Target: 0},
	}

	eng, err := engine.NewEngine(cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ramping-vus", result.Executor)
	assert.Equal(t, 3, result.MaxUsers)
	assert.NotZero(t, result.Metrics.TotalRequests)
}

func TestEngine_StopEarly(t *testing.T) {
	fm := newFleetManager(t, http.StatusOK)

	cfg := baseConfig(fm.URL)
	cfg.Duration = config.Duration(time.Hour)

	eng, err := engine.NewEngine(cfg)
	require.NoError(t, err)
	assert.NoError(t, eng.Stop(context.Background()), "Stop before Run is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *engine.TestResult, 1)
	go func() {
		result, _ := eng.Run(ctx)
		done <- result
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.True(t, result.Interrupted)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestEngine_PollStatsWhileRunning(t *testing.T) {
	fm := newFleetManager(t, http.StatusOK)

	for _, ramping := range []bool{false, true} {
		cfg := baseConfig(fm.URL)
		if ramping {
			cfg.Stages = []config.Stage{{Duration: config.Duration(300 * time.Millisecond), Target: 2}}
		}

		eng, err := engine.NewEngine(cfg)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = eng.Run(context.Background())
		}()

		var sawProgress bool
	poll:
		for {
			select {
			case <-done:
				break poll
			default:
			}
			stats := eng.GetStats()
			require.NotNil(t, stats)
			assert.GreaterOrEqual(t, stats.ActiveVUs, 0)
			if p := eng.GetProgress(); p > 0 && p <= 1 {
				sawProgress = true
			}
			time.Sleep(time.Millisecond)
		}

		assert.True(t, sawProgress, "ramping=%v", ramping)
		assert.Equal(t, 1.0, eng.GetProgress())
		assert.Zero(t, eng.GetStats().ActiveVUs)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := baseConfig("http://127.0.0.1:8000")
	cfg.User = "nobody"

	_, err := engine.NewEngine(cfg)
	assert.Error(t, err)
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
