// Package scenario defines simulated-user behaviors for load tests.
//
// A User is a named set of weighted tasks. The harness in
// internal/performance instantiates many copies of a User, repeatedly picks
// one of its tasks and invokes it with a recording Client. Tasks own nothing
// but the request they issue: scheduling, retries, timeouts and statistics
// belong to the harness.
package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Client is the recording HTTP client handed to every task invocation.
//
// Get issues exactly one GET request for path, relative to the target host
// the harness was configured with. The harness records the outcome before
// returning it.
type Client interface {
	Get(ctx context.Context, path string, header http.Header) error
}

// TaskFunc is a single action performed by a simulated user.
type TaskFunc func(ctx context.Context, c Client) error

// Task is a named, weighted action.
type Task struct {
	Name string

	// Weight sets how often this task is selected relative to the other
	// tasks of the same user. Values <= 0 count as 1.
	Weight int

	Fn TaskFunc
}

func (t Task) weight() int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// WaitTime returns the pause between two task invocations of the same user.
type WaitTime func(r *rand.Rand) time.Duration

// Constant waits the same duration after every task.
func Constant(d time.Duration) WaitTime {
	return func(*rand.Rand) time.Duration {
		return d
	}
}

// Between waits a uniformly distributed duration in [lo, hi].
func Between(lo, hi time.Duration) WaitTime {
	if hi < lo {
		lo, hi = hi, lo
	}
	return func(r *rand.Rand) time.Duration {
		diff := hi - lo
		if diff <= 0 {
			return lo
		}
		return lo + time.Duration(r.Int63n(int64(diff)+1))
	}
}

// User describes one kind of simulated user.
type User struct {
	Name        string
	Description string
	Tasks       []Task

	// Wait is applied after each task. Nil means no wait.
	Wait WaitTime
}

// Validate checks that the user can be scheduled.
func (u *User) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("user name is required")
	}
	if len(u.Tasks) == 0 {
		return fmt.Errorf("user %s: at least one task is required", u.Name)
	}
	for i, t := range u.Tasks {
		if t.Fn == nil {
			return fmt.Errorf("user %s: task %d (%s) has no function", u.Name, i, t.Name)
		}
	}
	return nil
}

// Pick selects one task with probability proportional to its weight.
func (u *User) Pick(r *rand.Rand) *Task {
	switch len(u.Tasks) {
	case 0:
		return nil
	case 1:
		return &u.Tasks[0]
	}

	total := 0
	for _, t := range u.Tasks {
		total += t.weight()
	}

	n := r.Intn(total)
	for i := range u.Tasks {
		n -= u.Tasks[i].weight()
		if n < 0 {
			return &u.Tasks[i]
		}
	}
	return &u.Tasks[len(u.Tasks)-1]
}

// WaitDuration returns the pause to apply after a task.
func (u *User) WaitDuration(r *rand.Rand) time.Duration {
	if u.Wait == nil {
		return 0
	}
	return u.Wait(r)
}

// WithWait returns a copy of the user using the given wait time.
func (u User) WithWait(w WaitTime) *User {
	u.Wait = w
	return &u
}
