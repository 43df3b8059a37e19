package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// ConstantVUs runs a fixed number of users for a specified duration.
//
// Users are started at SpawnRate per second and each one runs its tasks
// back to back, separated only by the user's own wait time. The phase is
// ramp-up while users are being started and steady afterwards.
type ConstantVUs struct {
	config *Config

	// mu guards scheduler and startTime, which Run sets while progress
	// readers may already be polling.
	mu        sync.RWMutex
	scheduler *performance.VUScheduler
	startTime time.Time
	running   atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{stopCh: make(chan struct{})}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the users and blocks until the duration expires, Stop is
// called or ctx is cancelled.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	e.mu.Lock()
	e.scheduler = scheduler
	e.startTime = time.Now()
	e.mu.Unlock()
	e.running.Store(true)
	defer e.running.Store(false)

	vuCtx, cancelVUs := context.WithCancel(ctx)
	defer cancelVUs()

	deadline := time.NewTimer(e.config.Duration)
	defer deadline.Stop()

	spawnCtx, cancelSpawn := context.WithCancel(vuCtx)
	defer cancelSpawn()
	go func() {
		select {
		case <-deadline.C:
		case <-e.stopCh:
		case <-spawnCtx.Done():
		}
		cancelSpawn()
	}()

	metricsEngine.SetPhase(metrics.PhaseRampUp)
	e.spawnAll(scheduler, spawnCtx, vuCtx)
	if spawnCtx.Err() == nil {
		metricsEngine.SetPhase(metrics.PhaseSteady)
		<-spawnCtx.Done()
	}

	if !stopUsers(scheduler, cancelVUs, e.config.gracefulStop()) {
		logrus.WithField("executor", e.config.Name).Warn("users did not stop within the graceful stop period")
	}

	metricsEngine.SetPhase(metrics.PhaseDone)
	return nil
}

// spawnAll starts users at the configured spawn rate until the target is
// reached or spawnCtx ends.
func (e *ConstantVUs) spawnAll(scheduler *performance.VUScheduler, spawnCtx, vuCtx context.Context) {
	limiter := newSpawnLimiter(e.config.SpawnRate)

	for i := 0; i < e.config.VUs; i++ {
		if err := limiter.Wait(spawnCtx); err != nil {
			return
		}
		vu := scheduler.SpawnVU()
		scheduler.StartVU(vuCtx, vu)
		scheduler.UpdateMetrics()
	}
}

// newSpawnLimiter returns a limiter letting one user start every 1/r
// seconds, the first one immediately. A rate of 0 means no limit.
func newSpawnLimiter(r float64) *rate.Limiter {
	if r <= 0 || math.IsInf(r, 1) {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(r), 1)
}

func (e *ConstantVUs) started() (*performance.VUScheduler, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scheduler, e.startTime
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	_, startTime := e.started()
	if !e.running.Load() {
		if startTime.IsZero() {
			return 0.0
		}
		return 1.0
	}

	progress := float64(time.Since(startTime)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active user count.
func (e *ConstantVUs) GetActiveVUs() int {
	scheduler, _ := e.started()
	if scheduler == nil {
		return 0
	}
	return scheduler.GetActiveVUCount()
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	scheduler, startTime := e.started()
	stats := &Stats{
		StartTime:     startTime,
		CurrentTime:   time.Now(),
		TotalDuration: e.config.Duration,
		ActiveVUs:     e.GetActiveVUs(),
		TargetVUs:     e.config.VUs,
	}
	if !startTime.IsZero() {
		stats.Elapsed = time.Since(startTime)
	}
	if scheduler != nil {
		stats.Iterations = scheduler.TotalIterations()
		stats.TaskErrors = scheduler.TotalTaskErrors()
	}
	return stats
}

// Stop ends the test early. Run performs the graceful shutdown.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

var _ Executor = (*ConstantVUs)(nil)
