package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stackrox/acs-loadtest/internal/performance/executor"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

func TestRampingVUs_Type(t *testing.T) {
	if got := executor.NewRampingVUs().Type(); got != executor.TypeRampingVUs {
		t.Errorf("Type() = %v, want %v", got, executor.TypeRampingVUs)
	}
}

func TestRampingVUs_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  *executor.Config
		wantErr bool
	}{
		{
			name: "valid",
			config: &executor.Config{Type: executor.TypeRampingVUs, Stages: []executor.Stage{
				{Duration: 30 * time.Second, Target: 10},
				{Duration: time.Minute, Target: 10},
				{Duration: 30 * time.Second, Target: 0},
			}},
		},
		{"wrong type", &executor.Config{Type: executor.TypeConstantVUs, VUs: 1, Duration: time.Second}, true},
		{"no stages", &executor.Config{Type: executor.TypeRampingVUs}, true},
		{"zero stage duration", &executor.Config{Type: executor.TypeRampingVUs, Stages: []executor.Stage{{Target: 1}}}, true},
		{"negative target", &executor.Config{Type: executor.TypeRampingVUs, Stages: []executor.Stage{{Duration: time.Second, Target: -1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executor.NewRampingVUs().Init(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRampingVUs_Run(t *testing.T) {
	scheduler, engine, hits := newCentralsHarness(t)

	e := executor.NewRampingVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type: executor.TypeRampingVUs,
		Stages: []executor.Stage{
			{Duration: 200 * time.Millisecond, Target: 4},
			{Duration: 200 * time.Millisecond, Target: 4},
			{Duration: 200 * time.Millisecond, Target: 0},
		},
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), scheduler, engine) }()

	maxTarget := 0
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
wait:
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			break wait
		case <-poll.C:
			if stats := e.GetStats(); stats.TargetVUs > maxTarget {
				maxTarget = stats.TargetVUs
			}
			if p := e.GetProgress(); p < 0 || p > 1 {
				t.Errorf("GetProgress() during Run = %v", p)
			}
			_ = e.GetActiveVUs()
		}
	}

	if maxTarget != 4 {
		t.Errorf("max target VUs = %d, want 4", maxTarget)
	}
	if hits.Load() == 0 {
		t.Error("no requests reached the server")
	}
	if scheduler.GetActiveVUCount() != 0 {
		t.Errorf("active VUs after Run = %d", scheduler.GetActiveVUCount())
	}

	seen := map[metrics.Phase]bool{}
	for _, change := range engine.GetPhaseHistory() {
		seen[change.Phase] = true
	}
	for _, phase := range []metrics.Phase{metrics.PhaseRampUp, metrics.PhaseSteady, metrics.PhaseRampDown, metrics.PhaseDone} {
		if !seen[phase] {
			t.Errorf("phase %s never reached, history = %v", phase, engine.GetPhaseHistory())
		}
	}
	if stats := e.GetStats(); stats.TotalStages != 3 {
		t.Errorf("TotalStages = %d, want 3", stats.TotalStages)
	}
}

func TestRampingVUs_ContextCancel(t *testing.T) {
	scheduler, engine, _ := newCentralsHarness(t)

	e := executor.NewRampingVUs()
	if err := e.Init(context.Background(), &executor.Config{
		Type:   executor.TypeRampingVUs,
		Stages: []executor.Stage{{Duration: time.Hour, Target: 2}},
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := e.Run(ctx, scheduler, engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Run() ignored context cancellation")
	}
}
