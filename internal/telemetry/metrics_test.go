package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

const centralsRequest = "GET /api/rhacs/v1/centrals"

func TestObserveRequest(t *testing.T) {
	tt := []struct {
		name         string
		sample       metrics.Sample
		code         string
		wantFailures float64
	}{
		{
			name:   "success",
			sample: metrics.Sample{Name: centralsRequest, StatusCode: 200, Duration: 10 * time.Millisecond},
			code:   "200",
		},
		{
			name:         "unauthorized",
			sample:       metrics.Sample{Name: centralsRequest, StatusCode: 401, Duration: 2 * time.Millisecond},
			code:         "401",
			wantFailures: 1,
		},
		{
			name:         "transport error",
			sample:       metrics.Sample{Name: centralsRequest, Err: errors.New("connection refused")},
			code:         noResponseCode,
			wantFailures: 1,
		},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := NewMetrics()
			m.ObserveRequest(tc.sample)

			assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(centralsRequest, tc.code)))
			assert.Equal(t, tc.wantFailures, testutil.ToFloat64(m.requestFailures.WithLabelValues(centralsRequest)))
			assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
		})
	}
}

func TestSetActiveUsers(t *testing.T) {
	m := NewMetrics()

	m.SetActiveUsers(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeUsers))

	m.SetActiveUsers(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeUsers))
}
