// Command fake-fleet-manager serves the list centrals endpoint for local
// load test runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stackrox/acs-loadtest/internal/fakefm"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		logrus.WithError(err).Error("fake fleet manager failed")
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		address string
		opts    fakefm.Options
	)

	cmd := &cobra.Command{
		Use:   "fake-fleet-manager",
		Short: "Serve a fake fleet manager list centrals endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				opts.Token = os.Getenv("STATIC_TOKEN")
			}

			s, err := fakefm.New(opts)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:              address,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 2 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			logrus.WithFields(logrus.Fields{
				"address":  address,
				"centrals": opts.Centrals,
				"anyToken": opts.Token == "",
			}).Info("serving fake fleet manager")

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serving")
			}

			logrus.WithFields(logrus.Fields{
				"requests":     s.Requests(),
				"unauthorized": s.Unauthorized(),
			}).Info("stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", ":8000", "Listen address")
	cmd.Flags().StringVar(&opts.Token, "token", "", "Accepted bearer token (default $STATIC_TOKEN, any token when both are empty)")
	cmd.Flags().IntVar(&opts.Centrals, "centrals", 3, "Number of centrals returned")
	cmd.Flags().DurationVar(&opts.Latency, "latency", 0, "Added latency per response")
	cmd.Flags().DurationVar(&opts.Jitter, "jitter", 0, "Random extra latency up to this value")

	return cmd
}
