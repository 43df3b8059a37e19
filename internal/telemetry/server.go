package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewServer returns an HTTP server exposing m and the default process and
// Go runtime collectors on /metrics.
func NewServer(address string, m *Metrics) *http.Server {
	registry := prometheus.NewRegistry()
	// A dedicated registry keeps metric state isolated between runs and tests.
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	m.Register(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Start binds server.Addr and serves metrics in the background. A bind
// failure is returned; later serve failures are only logged.
func Start(server *http.Server, log logrus.FieldLogger) (net.Addr, error) {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on metrics address %q", server.Addr)
	}

	log.WithField("address", ln.Addr().String()).Info("serving metrics")
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server, waiting up to timeout for in-flight scrapes.
func Shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down metrics server")
	}
	return nil
}
