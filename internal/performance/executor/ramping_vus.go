package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// controllerInterval is how often the ramping controller re-targets.
const controllerInterval = 100 * time.Millisecond

// RampingVUs ramps the user count up and down according to stages.
//
// The target count is linearly interpolated inside each stage, starting
// from zero users:
//
//	stages:
//	  - duration: 30s
//	    target: 10     # 0 -> 10 users over 30s
//	  - duration: 2m
//	    target: 10     # hold 10 users
//	  - duration: 30s
//	    target: 0      # 10 -> 0 users
type RampingVUs struct {
	config *Config

	// mu guards scheduler and startTime, which Run sets while progress
	// readers may already be polling.
	mu        sync.RWMutex
	scheduler *performance.VUScheduler
	startTime time.Time

	targetVUs    atomic.Int32
	currentStage atomic.Int32
	running      atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{stopCh: make(chan struct{})}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run drives the user count through the stages and blocks until the last
// stage ends, Stop is called or ctx is cancelled.
func (e *RampingVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	e.mu.Lock()
	e.scheduler = scheduler
	e.startTime = time.Now()
	startTime := e.startTime
	e.mu.Unlock()
	e.running.Store(true)
	defer e.running.Store(false)

	vuCtx, cancelVUs := context.WithCancel(ctx)
	defer cancelVUs()

	deadline := time.NewTimer(e.config.TotalDuration())
	defer deadline.Stop()

	ticker := time.NewTicker(controllerInterval)
	defer ticker.Stop()

	step := func() {
		e.step(scheduler, metricsEngine, time.Since(startTime), func(vu *performance.VirtualUser) {
			scheduler.StartVU(vuCtx, vu)
		})
	}
	step()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-e.stopCh:
			break loop
		case <-deadline.C:
			break loop
		case <-ticker.C:
			step()
		}
	}

	if !stopUsers(scheduler, cancelVUs, e.config.gracefulStop()) {
		logrus.WithField("executor", e.config.Name).Warn("users did not stop within the graceful stop period")
	}

	metricsEngine.SetPhase(metrics.PhaseDone)
	return nil
}

func (e *RampingVUs) step(scheduler *performance.VUScheduler, metricsEngine *metrics.Engine, elapsed time.Duration, start func(*performance.VirtualUser)) {
	target := e.calculateTargetVUs(elapsed)
	e.targetVUs.Store(int32(target))
	scheduler.ScaleVUs(target, start)
	e.updatePhase(metricsEngine)
}

// calculateTargetVUs returns the interpolated user count at elapsed.
func (e *RampingVUs) calculateTargetVUs(elapsed time.Duration) int {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range e.config.Stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			e.currentStage.Store(int32(i))

			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			if progress < 0 {
				progress = 0
			}

			target := float64(prevTarget) + float64(stage.Target-prevTarget)*progress
			return int(target + 0.5)
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if n := len(e.config.Stages); n > 0 {
		e.currentStage.Store(int32(n - 1))
		return e.config.Stages[n-1].Target
	}
	return 0
}

// updatePhase derives the metrics phase from the current stage's direction.
func (e *RampingVUs) updatePhase(metricsEngine *metrics.Engine) {
	idx := int(e.currentStage.Load())
	if idx >= len(e.config.Stages) {
		return
	}

	prevTarget := 0
	if idx > 0 {
		prevTarget = e.config.Stages[idx-1].Target
	}

	switch target := e.config.Stages[idx].Target; {
	case target > prevTarget:
		metricsEngine.SetPhase(metrics.PhaseRampUp)
	case target < prevTarget:
		metricsEngine.SetPhase(metrics.PhaseRampDown)
	default:
		metricsEngine.SetPhase(metrics.PhaseSteady)
	}
}

func (e *RampingVUs) started() (*performance.VUScheduler, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scheduler, e.startTime
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *RampingVUs) GetProgress() float64 {
	_, startTime := e.started()
	if !e.running.Load() {
		if startTime.IsZero() {
			return 0.0
		}
		return 1.0
	}

	total := e.config.TotalDuration()
	if total == 0 {
		return 1.0
	}

	progress := float64(time.Since(startTime)) / float64(total)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active user count.
func (e *RampingVUs) GetActiveVUs() int {
	scheduler, _ := e.started()
	if scheduler == nil {
		return 0
	}
	return scheduler.GetActiveVUCount()
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	scheduler, startTime := e.started()
	idx := int(e.currentStage.Load())
	stageName := ""
	if idx < len(e.config.Stages) {
		stageName = e.config.Stages[idx].Name
	}

	stats := &Stats{
		StartTime:        startTime,
		CurrentTime:      time.Now(),
		TotalDuration:    e.config.TotalDuration(),
		ActiveVUs:        e.GetActiveVUs(),
		TargetVUs:        int(e.targetVUs.Load()),
		CurrentStage:     idx,
		CurrentStageName: stageName,
		TotalStages:      len(e.config.Stages),
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
func (e *RampingVUs) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

var _ Executor = (*RampingVUs)(nil)
