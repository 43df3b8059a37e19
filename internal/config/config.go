// Package config holds the run profile of a load test. Values come from
// defaults, then the environment, then an optional YAML file, with command
// line flags applied last by the caller.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stackrox/acs-loadtest/internal/performance"
	"github.com/stackrox/acs-loadtest/internal/performance/executor"
	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// Config is the run profile.
type Config struct {
	// Host is the fleet manager every simulated user talks to.
	Host string `env:"FLEET_MANAGER_ENDPOINT" envDefault:"http://127.0.0.1:8000" yaml:"host"`

	// User names the registered simulated user type.
	User string `env:"LOADTEST_USER" envDefault:"list-centrals" yaml:"user"`

	Users     int      `env:"LOADTEST_USERS" envDefault:"1" yaml:"users"`
	SpawnRate float64  `env:"LOADTEST_SPAWN_RATE" envDefault:"1" yaml:"spawnRate"`
	Duration  Duration `env:"LOADTEST_DURATION" envDefault:"1m" yaml:"duration"`

	// Stages switch the run to a ramping user count.
	Stages []Stage `yaml:"stages,omitempty"`

	WaitMin Duration `env:"LOADTEST_WAIT_MIN" yaml:"waitMin,omitempty"`
	WaitMax Duration `env:"LOADTEST_WAIT_MAX" yaml:"waitMax,omitempty"`

	RequestTimeout     Duration `env:"LOADTEST_REQUEST_TIMEOUT" envDefault:"30s" yaml:"requestTimeout"`
	GracefulStop       Duration `env:"LOADTEST_GRACEFUL_STOP" envDefault:"30s" yaml:"gracefulStop"`
	InsecureSkipVerify bool     `env:"LOADTEST_INSECURE" yaml:"insecureSkipVerify"`

	// MetricsAddress enables the Prometheus endpoint when set, e.g. ":7070".
	MetricsAddress string `env:"METRICS_ADDRESS" yaml:"metricsAddress,omitempty"`

	// RequireToken refuses to start while STATIC_TOKEN is unset.
	RequireToken bool `env:"LOADTEST_REQUIRE_TOKEN" yaml:"requireToken"`

	Thresholds Thresholds `yaml:"thresholds,omitempty"`
}

// Stage is one step of a ramping run.
type Stage struct {
	Duration Duration `yaml:"duration"`
	Target   int      `yaml:"target"`
	Name     string   `yaml:"name,omitempty"`
}

// Thresholds are the pass/fail criteria of a run, e.g. "p95 < 500ms".
type Thresholds struct {
	// HTTPReqDuration applies to request latency: p50, p90, p95, p99, min, max, avg, med.
	HTTPReqDuration []string `yaml:"http_req_duration,omitempty" json:"http_req_duration,omitempty"`

	// HTTPReqFailed applies to the failure rate: rate.
	HTTPReqFailed []string `yaml:"http_req_failed,omitempty" json:"http_req_failed,omitempty"`

	// HTTPReqs applies to request volume: count, rate.
	HTTPReqs []string `yaml:"http_reqs,omitempty" json:"http_reqs,omitempty"`
}

// Empty reports whether no threshold is configured.
func (t Thresholds) Empty() bool {
	return len(t.HTTPReqDuration) == 0 && len(t.HTTPReqFailed) == 0 && len(t.HTTPReqs) == 0
}

// Add appends expr to the thresholds of metric, given in the
// "metric=expr" form used on the command line, e.g. "http_req_duration=p95<500ms".
func (t *Thresholds) Add(spec string) error {
	idx := strings.Index(spec, "=")
	if idx <= 0 || idx == len(spec)-1 {
		return errors.Errorf("threshold %q: expected 'metric=expression'", spec)
	}

	metric, expr := strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+1:])
	switch metric {
	case "http_req_duration":
		t.HTTPReqDuration = append(t.HTTPReqDuration, expr)
	case "http_req_failed":
		t.HTTPReqFailed = append(t.HTTPReqFailed, expr)
	case "http_reqs":
		t.HTTPReqs = append(t.HTTPReqs, expr)
	default:
		return errors.Errorf("threshold %q: unknown metric %q", spec, metric)
	}
	return nil
}

// Load builds a Config from defaults and the environment, then overlays
// the YAML file at path when path is not empty.
func Load(path string) (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "unable to parse runtime configuration from environment")
	}

	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading run profile %s", path)
	}
	if err := c.Overlay(data); err != nil {
		return nil, errors.Wrapf(err, "parsing run profile %s", path)
	}
	return c, nil
}

// Overlay applies a YAML document on top of c. Fields absent from the
// document keep their current value.
func (c *Config) Overlay(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Ramping reports whether the run follows stages.
func (c *Config) Ramping() bool {
	return len(c.Stages) > 0
}

// ExecutorConfig translates the profile into an executor configuration.
func (c *Config) ExecutorConfig() *executor.Config {
	cfg := &executor.Config{
		Name:         c.User,
		SpawnRate:    c.SpawnRate,
		GracefulStop: c.GracefulStop.Std(),
	}

	if !c.Ramping() {
		cfg.Type = executor.TypeConstantVUs
		cfg.VUs = c.Users
		cfg.Duration = c.Duration.Std()
		return cfg
	}

	cfg.Type = executor.TypeRampingVUs
	for i, s := range c.Stages {
		name := s.Name
		if name == "" {
			name = stageName(i)
		}
		cfg.Stages = append(cfg.Stages, executor.Stage{
			Duration: s.Duration.Std(),
			Target:   s.Target,
			Name:     name,
		})
	}
	cfg.Duration = cfg.TotalDuration()
	return cfg
}

// HTTPClientConfig returns the transport settings shared by all users.
func (c *Config) HTTPClientConfig() performance.HTTPClientConfig {
	cfg := performance.DefaultHTTPClientConfig()
	cfg.BaseURL = c.Host
	cfg.InsecureSkipVerify = c.InsecureSkipVerify
	if c.RequestTimeout > 0 {
		cfg.Timeout = c.RequestTimeout.Std()
	}
	return cfg
}

// WaitTime returns the wait between tasks: random in [WaitMin, WaitMax]
// when WaitMax is set, WaitMin when only it is set, otherwise none.
func (c *Config) WaitTime() scenario.WaitTime {
	switch {
	case c.WaitMax > 0:
		return scenario.Between(c.WaitMin.Std(), c.WaitMax.Std())
	case c.WaitMin > 0:
		return scenario.Constant(c.WaitMin.Std())
	default:
		return nil
	}
}

// TotalDuration is the planned length of the run.
func (c *Config) TotalDuration() time.Duration {
	return c.ExecutorConfig().TotalDuration()
}

// MaxUsers is the largest user count the run reaches.
func (c *Config) MaxUsers() int {
	return executor.CalculateMaxVUs(c.ExecutorConfig())
}
