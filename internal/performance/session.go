package performance

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	lhttp "github.com/stackrox/acs-loadtest/internal/http"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// Observer receives every request sample and the active user count.
// The Prometheus exporter is the only implementation.
type Observer interface {
	ObserveRequest(s metrics.Sample)
	SetActiveUsers(n int)
}

// Session is the client a simulated user's tasks talk to. It issues each
// request once, records it, and hands transport errors back to the task.
// A response with status >= 400 is a failure in the statistics but not an
// error for the task.
type Session struct {
	client   *lhttp.Client
	metrics  *metrics.Engine
	observer Observer
	log      *logrus.Entry
}

// NewSession creates a session recording into metricsEngine. observer may be nil.
func NewSession(client *lhttp.Client, metricsEngine *metrics.Engine, observer Observer, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		client:   client,
		metrics:  metricsEngine,
		observer: observer,
		log:      log,
	}
}

// RequestName is the name a request is reported under.
func RequestName(method, path string) string {
	return method + " " + path
}

// Get performs one GET of path relative to the session's host.
func (s *Session) Get(ctx context.Context, path string, header http.Header) error {
	req := lhttp.NewRequest(http.MethodGet, path).WithHeaders(header)

	start := time.Now()
	resp, err := s.client.Do(ctx, req)

	sample := metrics.Sample{
		Name:     RequestName(http.MethodGet, path),
		Duration: time.Since(start),
		Err:      err,
	}
	if resp != nil {
		sample.StatusCode = resp.StatusCode
		sample.Bytes = resp.Size()
		sample.Duration = resp.Timing.TotalTime
	}

	if s.metrics != nil {
		s.metrics.Record(sample)
	}
	if s.observer != nil {
		s.observer.ObserveRequest(sample)
	}

	if !sample.Success() {
		s.log.WithFields(logrus.Fields{
			"request": sample.Name,
			"status":  sample.StatusCode,
		}).Debugf("request failed: %s", sample.FailureCause())
	}

	return err
}
