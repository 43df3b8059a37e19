// Package executor provides the strategies that decide how many simulated
// users run at each moment of a test.
package executor

import (
	"context"
	"time"

	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeConstantVUs runs a fixed number of users for a duration.
	TypeConstantVUs Type = "constant-vus"

	// TypeRampingVUs ramps the user count up and down according to stages.
	TypeRampingVUs Type = "ramping-vus"
)

// DefaultGracefulStop is how long users get to finish their current task
// once the test ends.
const DefaultGracefulStop = 30 * time.Second

// Executor defines the interface for load generation strategies.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run starts users through the scheduler and blocks until the test ends
	// or ctx is cancelled.
	Run(ctx context.Context, scheduler *performance.VUScheduler, metrics *metrics.Engine) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns current active user count.
	GetActiveVUs() int

	// GetStats returns executor-specific statistics.
	GetStats() *Stats

	// Stop ends the test early.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	// VUs is the number of users for constant-vus.
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// SpawnRate is users started per second. 0 starts them all at once.
	SpawnRate float64 `json:"spawnRate,omitempty" yaml:"spawnRate,omitempty"`

	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Stages for ramping-vus.
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// Stage defines a stage in ramping executors.
type Stage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Target is the user count reached at the end of the stage.
	Target int `json:"target" yaml:"target"`

	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	Iterations int64 `json:"iterations"`
	TaskErrors int64 `json:"taskErrors"`

	// Stage info (ramping executors)
	CurrentStage     int    `json:"currentStage"`
	CurrentStageName string `json:"currentStageName"`
	TotalStages      int    `json:"totalStages"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}
	if c.SpawnRate < 0 {
		return &ValidationError{Field: "spawnRate", Message: "spawnRate must be >= 0"}
	}
	if c.GracefulStop < 0 {
		return &ValidationError{Field: "gracefulStop", Message: "gracefulStop must be >= 0"}
	}

	switch c.Type {
	case TypeConstantVUs:
		if c.VUs <= 0 {
			return &ValidationError{Field: "vus", Message: "vus must be > 0"}
		}
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypeRampingVUs:
		if len(c.Stages) == 0 {
			return &ValidationError{Field: "stages", Message: "at least one stage is required"}
		}
		for _, stage := range c.Stages {
			if stage.Duration <= 0 {
				return &ValidationError{Field: "stages", Message: "stage duration must be > 0"}
			}
			if stage.Target < 0 {
				return &ValidationError{Field: "stages", Message: "stage target must be >= 0"}
			}
		}

	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}

	return nil
}

// TotalDuration calculates the total duration for this executor.
func (c *Config) TotalDuration() time.Duration {
	switch c.Type {
	case TypeConstantVUs:
		return c.Duration

	case TypeRampingVUs:
		var total time.Duration
		for _, stage := range c.Stages {
			total += stage.Duration
		}
		return total

	default:
		return 0
	}
}

func (c *Config) gracefulStop() time.Duration {
	if c.GracefulStop > 0 {
		return c.GracefulStop
	}
	return DefaultGracefulStop
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// stopUsers asks every user to stop, waits for the grace period and then
// cancels whatever is still in flight.
func stopUsers(scheduler *performance.VUScheduler, cancel context.CancelFunc, grace time.Duration) bool {
	scheduler.StopAllVUs()
	clean := scheduler.Wait(grace)
	cancel()
	if !clean {
		scheduler.Wait(time.Second)
	}
	scheduler.UpdateMetrics()
	return clean
}
