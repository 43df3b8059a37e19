// Package performance runs simulated users against a host. A user type
// comes from the scenario registry; this package owns the users' lifecycle,
// their HTTP sessions and the statistics they record.
package performance

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is running a task.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated user. Every iteration picks one task by
// weight, runs it, then waits for the user's wait time.
type VirtualUser struct {
	ID int

	// User is the simulated user type being run.
	User *scenario.User

	session *Session
	rng     *rand.Rand
	log     *logrus.Entry

	state  atomic.Int32
	stopCh chan struct{}
	doneCh chan struct{}

	iteration  atomic.Int64
	taskErrors atomic.Int64
}

// NewVirtualUser creates a new Virtual User.
func NewVirtualUser(id int, user *scenario.User, session *Session, seed int64) *VirtualUser {
	return &VirtualUser{
		ID:      id,
		User:    user,
		session: session,
		rng:     rand.New(rand.NewSource(seed)),
		log:     logrus.WithFields(logrus.Fields{"vu": id, "user": user.Name}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// GetTaskErrors returns the number of task invocations that returned an error.
func (vu *VirtualUser) GetTaskErrors() int64 {
	return vu.taskErrors.Load()
}

// RunIteration runs one task followed by the user's wait time.
//
// A task error is counted and logged, never returned: the harness keeps
// scheduling the user. The error return is reserved for cancellation and
// for a VU that was already stopping.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	currentState := vu.GetState()
	if currentState == VUStateStopping || currentState == VUStateStopped {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	task := vu.User.Pick(vu.rng)
	if task == nil {
		return fmt.Errorf("user %q has no tasks", vu.User.Name)
	}

	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}
	vu.iteration.Add(1)

	if err := task.Fn(ctx, vu.session); err != nil && ctx.Err() == nil {
		vu.taskErrors.Add(1)
		vu.log.WithField("task", task.Name).WithError(err).Debug("task failed")
	}

	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

	if wait := vu.User.WaitDuration(vu.rng); wait > 0 {
		vu.sleep(ctx, wait)
	}
	return ctx.Err()
}

func (vu *VirtualUser) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-vu.stopCh:
	case <-timer.C:
	}
}

// RequestStop signals the VU to stop after its current task.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop waits for the VU to stop. It reports false on timeout.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-vu.doneCh:
		return true
	case <-timer.C:
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateStopped {
		return
	}
	if prev != VUStateStopping {
		close(vu.stopCh)
	}
	close(vu.doneCh)
}
