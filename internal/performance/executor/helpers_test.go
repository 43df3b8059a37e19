package executor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// newCentralsHarness starts a fake fleet manager and a scheduler running
// list-centrals against it with a short wait between tasks.
func newCentralsHarness(t *testing.T) (*performance.VUScheduler, *metrics.Engine, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"kind":"CentralRequestList","items":[]}`))
	}))
	t.Cleanup(server.Close)

	engine := metrics.NewEngine()
	t.Cleanup(engine.Stop)

	cfg := performance.DefaultHTTPClientConfig()
	cfg.BaseURL = server.URL
	user := scenario.ListCentrals.WithWait(scenario.Constant(10 * time.Millisecond))

	return performance.NewVUScheduler(user, engine, cfg), engine, &hits
}

// blockingUser never finishes its task until ctx is cancelled.
func blockingUser() *scenario.User {
	return &scenario.User{
		Name: "blocking",
		Tasks: []scenario.Task{{
			Name: "block",
			Fn: func(ctx context.Context, _ scenario.Client) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}},
	}
}
