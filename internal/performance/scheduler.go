package performance

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	lhttp "github.com/stackrox/acs-loadtest/internal/http"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// VUScheduler manages the lifecycle of Virtual Users.
//
// All VUs share one net/http client so they draw from a single connection
// pool. Executors use the scheduler to control the number of running users.
type VUScheduler struct {
	user     *scenario.User
	metrics  *metrics.Engine
	observer Observer

	httpClientConfig HTTPClientConfig
	sharedClient     *http.Client

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID atomic.Int32
	seed     int64

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// BaseURL is the host every session's relative paths resolve against
	BaseURL string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// UserAgent overrides the default User-Agent
	UserAgent string
}

// DefaultHTTPClientConfig returns defaults suited to load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewVUScheduler creates a scheduler running user against httpConfig.BaseURL.
func NewVUScheduler(user *scenario.User, metricsEngine *metrics.Engine, httpConfig HTTPClientConfig) *VUScheduler {
	s := &VUScheduler{
		user:             user,
		metrics:          metricsEngine,
		httpClientConfig: httpConfig,
		vus:              make(map[int]*VirtualUser),
		seed:             time.Now().UnixNano(),
		shutdownCh:       make(chan struct{}),
	}
	s.sharedClient = s.createHTTPClient()
	return s
}

// SetObserver registers an observer for request samples and user counts.
// Call it before spawning VUs.
func (s *VUScheduler) SetObserver(o Observer) {
	s.observer = o
}

// User returns the simulated user type this scheduler runs.
func (s *VUScheduler) User() *scenario.User {
	return s.user
}

func (s *VUScheduler) createHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        s.httpClientConfig.MaxIdleConns,
		MaxIdleConnsPerHost: s.httpClientConfig.MaxIdleConnsPerHost,
		IdleConnTimeout:     s.httpClientConfig.IdleConnTimeout,
		DisableKeepAlives:   s.httpClientConfig.DisableKeepAlives,
		ForceAttemptHTTP2:   true,
	}
	if s.httpClientConfig.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Transport: transport,
		Timeout:   s.httpClientConfig.Timeout,
	}
}

func (s *VUScheduler) newSession(id int) *Session {
	opts := []lhttp.ClientOption{
		lhttp.WithHTTPClient(s.sharedClient),
		lhttp.WithBaseURL(s.httpClientConfig.BaseURL),
	}
	if s.httpClientConfig.UserAgent != "" {
		opts = append(opts, lhttp.WithUserAgent(s.httpClientConfig.UserAgent))
	}
	return NewSession(lhttp.NewClient(opts...), s.metrics, s.observer, logrus.WithField("vu", id))
}

// SpawnVU creates and registers a new Virtual User without starting it.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))
	vu := NewVirtualUser(id, s.user, s.newSession(id), s.seed+int64(id))

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUs returns all VUs that have not stopped.
func (s *VUScheduler) GetActiveVUs() []*VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	result := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			result = append(result, vu)
		}
	}
	return result
}

// GetActiveVUCount returns the count of VUs neither stopping nor stopped.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if st := vu.GetState(); st != VUStateStopped && st != VUStateStopping {
			count++
		}
	}
	return count
}

// TotalIterations sums the iterations of every VU spawned so far.
func (s *VUScheduler) TotalIterations() int64 {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	var total int64
	for _, vu := range s.vus {
		total += vu.GetIteration()
	}
	return total
}

// TotalTaskErrors sums the task errors of every VU spawned so far.
func (s *VUScheduler) TotalTaskErrors() int64 {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	var total int64
	for _, vu := range s.vus {
		total += vu.GetTaskErrors()
	}
	return total
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// StartVU runs vu in its own goroutine. Shutdown waits for it.
func (s *VUScheduler) StartVU(ctx context.Context, vu *VirtualUser) {
	s.shutdownWg.Add(1)
	go func() {
		defer s.shutdownWg.Done()
		s.runVU(ctx, vu)
	}()
}

func (s *VUScheduler) runVU(ctx context.Context, vu *VirtualUser) {
	defer vu.MarkStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if err := vu.RunIteration(ctx); err != nil {
			return
		}
	}
}

// ScaleVUs spawns or stops VUs until the active count reaches target.
// onSpawn is called for each new VU and is expected to start it.
func (s *VUScheduler) ScaleVUs(target int, onSpawn func(*VirtualUser)) int {
	current := s.GetActiveVUCount()

	if target > current {
		for i := current; i < target; i++ {
			vu := s.SpawnVU()
			if onSpawn != nil {
				onSpawn(vu)
			}
		}
	} else if target < current {
		excess := current - target
		stopped := 0

		s.vusMu.RLock()
		for _, vu := range s.vus {
			if stopped >= excess {
				break
			}
			if st := vu.GetState(); st != VUStateStopped && st != VUStateStopping {
				vu.RequestStop()
				stopped++
			}
		}
		s.vusMu.RUnlock()
	}

	s.UpdateMetrics()
	return s.GetActiveVUCount()
}

// UpdateMetrics publishes the active VU count.
func (s *VUScheduler) UpdateMetrics() {
	count := s.GetActiveVUCount()
	if s.metrics != nil {
		s.metrics.SetActiveVUs(count)
	}
	if s.observer != nil {
		s.observer.SetActiveUsers(count)
	}
}

// Wait waits up to timeout for every started VU to exit. It reports
// whether they all did.
func (s *VUScheduler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Shutdown stops all VUs and waits up to timeout for them to exit.
// It reports whether every VU exited in time.
func (s *VUScheduler) Shutdown(timeout time.Duration) bool {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.StopAllVUs()

	clean := s.Wait(timeout)

	s.UpdateMetrics()
	s.sharedClient.CloseIdleConnections()
	return clean
}
