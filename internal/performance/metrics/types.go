package metrics

import "time"

// Phase represents a phase of the load test.
type Phase string

const (
	// PhaseInit is the phase before any user is spawned
	PhaseInit Phase = "init"

	// PhaseRampUp is the phase when users are being added
	PhaseRampUp Phase = "ramp-up"

	// PhaseSteady is the phase at the target user count
	PhaseSteady Phase = "steady"

	// PhaseRampDown is the phase when users are being removed
	PhaseRampDown Phase = "ramp-down"

	// PhaseDone indicates the test has completed
	PhaseDone Phase = "done"
)

// Sample is the outcome of one request issued by a simulated user.
type Sample struct {
	// Name groups samples in the per-request breakdown, e.g. "GET /api/rhacs/v1/centrals"
	Name string

	Duration   time.Duration
	StatusCode int
	Bytes      int64

	// Err is the transport error, if the request never got a response
	Err error
}

// Success reports whether the request got a non-error response.
func (s Sample) Success() bool {
	return s.Err == nil && s.StatusCode > 0 && s.StatusCode < 400
}

// FailureCause describes why a sample failed, or "" if it did not.
func (s Sample) FailureCause() string {
	if s.Err != nil {
		return s.Err.Error()
	}
	if s.StatusCode >= 400 {
		return "HTTP " + statusText(s.StatusCode)
	}
	if s.StatusCode <= 0 {
		return "no response"
	}
	return ""
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64         `json:"totalRequests"`
	SuccessRequests int64         `json:"successRequests"`
	FailedRequests  int64         `json:"failedRequests"`
	TotalBytes      int64         `json:"totalBytes"`
	Latency         LatencyStats  `json:"latency"`
	RPS             float64       `json:"rps"`
	SteadyStateRPS  float64       `json:"steadyStateRps"`
	ErrorRate       float64       `json:"errorRate"`
	ActiveVUs       int           `json:"activeVUs"`
	CurrentPhase    Phase         `json:"currentPhase"`
	Elapsed         time.Duration `json:"elapsed"`
	StartTime       time.Time     `json:"startTime"`
	Timestamp       time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles holds latency percentile values.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// RequestStats is the per-name breakdown, one row per request name.
type RequestStats struct {
	Name     string           `json:"name"`
	Requests int64            `json:"requests"`
	Failures int64            `json:"failures"`
	Bytes    int64            `json:"bytes"`
	Latency  LatencyStats     `json:"latency"`
	Statuses map[int]int64    `json:"statuses,omitempty"`
	Causes   map[string]int64 `json:"failureCauses,omitempty"`
}

// TimeBucket represents metrics for one emitter interval.
//
// Each bucket captures cumulative totals at a point in time along with
// the deltas for its own interval.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	// Cumulative counters (total since test start)
	TotalRequests  int64 `json:"totalRequests"`
	TotalSuccesses int64 `json:"totalSuccesses"`
	TotalFailures  int64 `json:"totalFailures"`
	TotalBytes     int64 `json:"totalBytes"`

	// Interval metrics
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	// Latency percentiles from the HDR histogram at this point in time
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase
	Timestamp time.Time
	Requests  int64
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}
