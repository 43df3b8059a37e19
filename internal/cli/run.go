package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stackrox/acs-loadtest/internal/config"
	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/output"
	"github.com/stackrox/acs-loadtest/internal/performance/report"
	"github.com/stackrox/acs-loadtest/internal/scenario"
	"github.com/stackrox/acs-loadtest/internal/telemetry"
)

const progressInterval = time.Second

type runOptions struct {
	configFile string
	outPath    string
	quiet      bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test",
		Long: `Spawn simulated users against the fleet manager and report request statistics.

Settings come from defaults, then the environment, then --config, then flags.

  acs-loadtest run --host https://fleet-manager.example.com --users 50 --spawn-rate 5 --duration 5m

Ramping user count:
  acs-loadtest run --stages "30s:10,2m:10,30s:0"

Fail the run on slow or failing requests:
  acs-loadtest run --threshold "http_req_duration=p95<500ms" --threshold "http_req_failed=rate<0.01"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runLoadTest(cmd, cfg, opts)
		},
	}

	addConfigFlags(cmd.Flags())
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML run profile")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Write the result to this file, an HTML report when it ends in .html, JSON otherwise")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Disable live progress output, print only PASSED or FAILED")
	cmd.Flags().Int("users", 0, "Number of simulated users")
	cmd.Flags().Float64("spawn-rate", 0, "Users started per second, 0 starts all at once")
	cmd.Flags().String("duration", "", "Test duration (e.g. 5m, 30s)")
	cmd.Flags().String("stages", "", "Ramping stages 'duration:target,...' (e.g. 30s:10,2m:10,30s:0)")
	cmd.Flags().String("wait-min", "", "Minimum wait between tasks of a user")
	cmd.Flags().String("wait-max", "", "Maximum wait between tasks of a user")
	cmd.Flags().String("graceful-stop", "", "Time users get to finish their task at the end of the run")
	cmd.Flags().StringArray("threshold", nil, "Pass/fail criterion 'metric=expression', repeatable")
	cmd.Flags().String("metrics-address", "", "Serve Prometheus metrics on this address (e.g. :7070)")

	return cmd
}

// addConfigFlags registers the flags shared by run and get.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("host", "", "Fleet manager base URL")
	flags.String("user", "", "Simulated user type (see 'scenarios')")
	flags.String("request-timeout", "", "Per-request timeout")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.Bool("require-token", false, "Refuse to start while "+scenario.TokenEnvVar+" is unset")
}

// loadConfig loads the profile and applies every flag the user set.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	duration := func(name string, dst *config.Duration) {
		if err != nil || !changed(name) {
			return
		}
		s, _ := flags.GetString(name)
		d, perr := config.ParseDuration(s)
		if perr != nil {
			err = errors.Wrapf(perr, "--%s", name)
			return
		}
		*dst = config.Duration(d)
	}

	if changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if changed("user") {
		cfg.User, _ = flags.GetString("user")
	}
	if changed("users") {
		cfg.Users, _ = flags.GetInt("users")
	}
	if changed("spawn-rate") {
		cfg.SpawnRate, _ = flags.GetFloat64("spawn-rate")
	}
	if changed("insecure") {
		cfg.InsecureSkipVerify, _ = flags.GetBool("insecure")
	}
	if changed("require-token") {
		cfg.RequireToken, _ = flags.GetBool("require-token")
	}
	if changed("metrics-address") {
		cfg.MetricsAddress, _ = flags.GetString("metrics-address")
	}

	duration("duration", &cfg.Duration)
	duration("wait-min", &cfg.WaitMin)
	duration("wait-max", &cfg.WaitMax)
	duration("request-timeout", &cfg.RequestTimeout)
	duration("graceful-stop", &cfg.GracefulStop)
	if err != nil {
		return err
	}

	if changed("stages") {
		s, _ := flags.GetString("stages")
		stages, err := config.ParseStages(s)
		if err != nil {
			return errors.Wrap(err, "--stages")
		}
		cfg.Stages = stages
	}

	if changed("threshold") {
		specs, _ := flags.GetStringArray("threshold")
		for _, spec := range specs {
			if err := cfg.Thresholds.Add(spec); err != nil {
				return err
			}
		}
	}

	return nil
}

func runLoadTest(cmd *cobra.Command, cfg *config.Config, opts *runOptions) error {
	if cfg.RequireToken {
		if err := scenario.RequireToken(); err != nil {
			return err
		}
	}

	var engineOpts []engine.Option
	if cfg.MetricsAddress != "" {
		m := telemetry.NewMetrics()
		server := telemetry.NewServer(cfg.MetricsAddress, m)
		if _, err := telemetry.Start(server, logrus.StandardLogger()); err != nil {
			return err
		}
		defer func() {
			if err := telemetry.Shutdown(server, 5*time.Second); err != nil {
				logrus.WithError(err).Warn("stopping metrics server")
			}
		}()
		engineOpts = append(engineOpts, engine.WithObserver(m))
	}

	eng, err := engine.NewEngine(cfg, engineOpts...)
	if err != nil {
		return err
	}

	execCfg := eng.ExecutorConfig()
	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      eng.User().Name,
		ExecutorType:  string(execCfg.Type),
		TotalDuration: execCfg.TotalDuration(),
		Writer:        cmd.OutOrStdout(),
		Quiet:         opts.quiet,
	})
	console.PrintHeader()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runWithProgress(ctx, eng, console, cfg.MaxUsers())

	console.PrintSummary(result)

	if opts.outPath != "" && result != nil {
		if err := writeResult(result, opts.outPath); err != nil {
			return err
		}
		if !opts.quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Results written to: %s\n", opts.outPath)
		}
	}

	if runErr != nil {
		return errors.Wrap(runErr, "running load test")
	}
	if result != nil && !result.Passed {
		return errTestFailed
	}
	return nil
}

type runOutcome struct {
	result *engine.TestResult
	err    error
}

// runWithProgress runs eng, reporting live stats every progressInterval.
func runWithProgress(ctx context.Context, eng *engine.Engine, console *output.ConsoleOutput, targetUsers int) (*engine.TestResult, error) {
	done := make(chan runOutcome, 1)
	go func() {
		result, err := eng.Run(ctx)
		done <- runOutcome{result, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	total := eng.ExecutorConfig().TotalDuration()
	for {
		select {
		case out := <-done:
			return out.result, out.err
		case <-ticker.C:
			if !eng.IsRunning() {
				continue
			}
			stats := eng.GetStats()
			console.Report(output.StatsFromMetrics(
				eng.GetMetrics(),
				eng.GetProgress(),
				total,
				targetUsers,
				stats.CurrentStage,
				stats.TotalStages,
			))
		}
	}
}

// writeResult writes an HTML report for a .html path, JSON otherwise.
func writeResult(result *engine.TestResult, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".html") {
		return errors.Wrap(report.GenerateHTML(result, path), "writing report")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling result")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing result")
	}
	return nil
}
