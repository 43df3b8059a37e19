package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from strings such as "30s" or "2m".
// A bare integer is taken as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler, used for environment values.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ParseDuration parses a Go duration string, or an integer number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	seconds, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return time.Duration(seconds) * time.Second, nil
}

// ParseStages parses the compact stage form "30s:10,2m:10,30s:0".
func ParseStages(s string) ([]Stage, error) {
	var stages []Stage

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.LastIndex(part, ":")
		if idx == -1 {
			return nil, errors.Errorf("stage %d: expected 'duration:target', got %q", i+1, part)
		}

		d, err := ParseDuration(part[:idx])
		if err != nil {
			return nil, errors.Wrapf(err, "stage %d", i+1)
		}
		target, err := strconv.Atoi(part[idx+1:])
		if err != nil {
			return nil, errors.Errorf("stage %d: invalid target %q", i+1, part[idx+1:])
		}

		stages = append(stages, Stage{Duration: Duration(d), Target: target, Name: stageName(i)})
	}

	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	return stages, nil
}

func stageName(i int) string {
	return "stage-" + strconv.Itoa(i+1)
}
