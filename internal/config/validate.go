package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/stackrox/acs-loadtest/internal/scenario"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the whole profile and returns every problem at once as
// a *ValidationErrors, or nil.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateHost(c.Host, errs)

	if _, err := scenario.Lookup(c.User); err != nil {
		errs.Add("user", err.Error())
	}

	if c.Ramping() {
		for i, s := range c.Stages {
			field := fmt.Sprintf("stages[%d]", i)
			if s.Duration <= 0 {
				errs.Add(field+".duration", "duration must be > 0")
			}
			if s.Target < 0 {
				errs.Add(field+".target", "target must be >= 0")
			}
		}
	} else {
		if c.Users <= 0 {
			errs.Add("users", "users must be > 0")
		}
		if c.Duration <= 0 {
			errs.Add("duration", "duration must be > 0")
		}
	}

	if c.SpawnRate < 0 {
		errs.Add("spawnRate", "spawn rate must be >= 0")
	}
	if c.WaitMin < 0 || c.WaitMax < 0 {
		errs.Add("wait", "wait times must be >= 0")
	}
	if c.WaitMax > 0 && c.WaitMin > c.WaitMax {
		errs.Add("wait", fmt.Sprintf("waitMin %s is greater than waitMax %s", c.WaitMin, c.WaitMax))
	}
	if c.RequestTimeout <= 0 {
		errs.Add("requestTimeout", "request timeout must be > 0")
	}
	if c.GracefulStop < 0 {
		errs.Add("gracefulStop", "graceful stop must be >= 0")
	}

	validateThresholds(c.Thresholds, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateHost(host string, errs *ValidationErrors) {
	if host == "" {
		errs.Add("host", "host is required")
		return
	}

	u, err := url.Parse(host)
	if err != nil {
		errs.Add("host", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("host", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("host", "host name is missing")
	}
}

var thresholdExpr = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(\S+)$`)

func validateThresholds(t Thresholds, errs *ValidationErrors) {
	check := func(field string, exprs []string, metrics ...string) {
		for i, expr := range exprs {
			m := thresholdExpr.FindStringSubmatch(strings.TrimSpace(expr))
			if m == nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", field, i), fmt.Sprintf("invalid expression %q", expr))
				continue
			}
			if !contains(metrics, m[1]) {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", field, i),
					fmt.Sprintf("unknown metric %q (valid: %s)", m[1], strings.Join(metrics, ", ")))
			}
		}
	}

	check("http_req_duration", t.HTTPReqDuration, "p50", "p90", "p95", "p99", "min", "max", "avg", "med")
	check("http_req_failed", t.HTTPReqFailed, "rate")
	check("http_reqs", t.HTTPReqs, "count", "rate")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
