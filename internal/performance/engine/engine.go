// Package engine runs one load test from a run profile: it builds the
// scheduler and executor, drives them to completion and evaluates the
// thresholds against the final statistics.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stackrox/acs-loadtest/internal/config"
	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/executor"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// Engine orchestrates a single run.
//
//	cfg, _ := config.Load("profile.yaml")
//	eng, _ := engine.NewEngine(cfg)
//	result, _ := eng.Run(ctx)
type Engine struct {
	config   *config.Config
	user     *scenario.User
	observer performance.Observer

	metricsEngine *metrics.Engine
	scheduler     *performance.VUScheduler
	executor      executor.Executor
	execConfig    *executor.Config

	mu        sync.RWMutex
	startTime time.Time
	running   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver forwards every request sample and user count to o.
func WithObserver(o performance.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// TestResult contains the complete results of a run.
type TestResult struct {
	User      string        `json:"user"`
	Host      string        `json:"host"`
	Executor  string        `json:"executor"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Iterations int64 `json:"iterations"`
	TaskErrors int64 `json:"taskErrors"`
	MaxUsers   int   `json:"maxUsers"`

	Metrics      *metrics.Snapshot      `json:"metrics"`
	RequestStats []metrics.RequestStats `json:"requestStats,omitempty"`
	TimeSeries   []*metrics.TimeBucket  `json:"timeSeries,omitempty"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Interrupted is set when the run was stopped before its planned end.
	Interrupted bool `json:"interrupted,omitempty"`
}

// NewEngine validates cfg and prepares a run.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	user, err := scenario.Lookup(cfg.User)
	if err != nil {
		return nil, err
	}
	if wait := cfg.WaitTime(); wait != nil {
		user = user.WithWait(wait)
	}

	e := &Engine{
		config:     cfg,
		user:       user,
		execConfig: cfg.ExecutorConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	exec, err := executor.CreateAndInitExecutor(context.Background(), e.execConfig)
	if err != nil {
		return nil, err
	}
	e.executor = exec

	return e, nil
}

// Run executes the test and blocks until it ends or ctx is cancelled.
// Cancellation is not an error: the result covers what ran.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running || e.metricsEngine != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine has already run")
	}
	e.running = true
	e.startTime = time.Now()
	e.metricsEngine = metrics.NewEngine()
	e.scheduler = performance.NewVUScheduler(e.user, e.metricsEngine, e.config.HTTPClientConfig())
	if e.observer != nil {
		e.scheduler.SetObserver(e.observer)
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	log := logrus.WithFields(logrus.Fields{
		"user":     e.user.Name,
		"host":     e.config.Host,
		"executor": e.executor.Type(),
	})
	log.Info("load test started")

	runErr := e.executor.Run(ctx, e.scheduler, e.metricsEngine)
	e.scheduler.Shutdown(e.execConfig.GracefulStop + time.Second)
	e.metricsEngine.Stop()

	snapshot := e.metricsEngine.GetSnapshot()
	stats := e.executor.GetStats()

	thresholds := EvaluateThresholds(e.config.Thresholds, snapshot)
	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	result := &TestResult{
		User:         e.user.Name,
		Host:         e.config.Host,
		Executor:     string(e.executor.Type()),
		StartTime:    e.startTime,
		EndTime:      time.Now(),
		Duration:     time.Since(e.startTime),
		Iterations:   stats.Iterations,
		TaskErrors:   stats.TaskErrors,
		MaxUsers:     executor.CalculateMaxVUs(e.execConfig),
		Metrics:      snapshot,
		RequestStats: e.metricsEngine.GetRequestStats(),
		TimeSeries:   e.metricsEngine.GetTimeSeries(),
		Passed:       passed && runErr == nil,
		Thresholds:   thresholds,
		Interrupted:  ctx.Err() != nil,
	}

	log.WithFields(logrus.Fields{
		"requests": snapshot.TotalRequests,
		"failures": snapshot.FailedRequests,
		"passed":   result.Passed,
	}).Info("load test finished")

	return result, runErr
}

// Stop ends a running test early. Users finish their current task.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()

	if !running {
		return nil
	}
	return e.executor.Stop(ctx)
}

// Config returns the run profile.
func (e *Engine) Config() *config.Config {
	return e.config
}

// User returns the simulated user type being run, wait time applied.
func (e *Engine) User() *scenario.User {
	return e.user
}

// ExecutorConfig returns the executor configuration derived from the profile.
func (e *Engine) ExecutorConfig() *executor.Config {
	return e.execConfig
}

// GetMetrics returns the current metrics snapshot, or nil before Run.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	m := e.metricsEngine
	e.mu.RUnlock()

	if m == nil {
		return nil
	}
	return m.GetSnapshot()
}

// GetRequestStats returns the per-request breakdown so far.
func (e *Engine) GetRequestStats() []metrics.RequestStats {
	e.mu.RLock()
	m := e.metricsEngine
	e.mu.RUnlock()

	if m == nil {
		return nil
	}
	return m.GetRequestStats()
}

// GetStats returns the executor's live statistics.
func (e *Engine) GetStats() *executor.Stats {
	return e.executor.GetStats()
}

// GetProgress returns the test progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	return e.executor.GetProgress()
}

// IsRunning returns true while Run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}
