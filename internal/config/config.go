// Package config parses the YAML check-mode configuration file into the
// Configuration/CheckConfig data model.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CheckKind enumerates the three declarative check types.
type CheckKind string

const (
	KindHTTP       CheckKind = "http"
	KindPrometheus CheckKind = "prometheus"
	KindScript     CheckKind = "script"
)

// Expect is the optional predicate sub-record of a CheckConfig.
type Expect struct {
	Status *uint16  `yaml:"status,omitempty"`
	JSON   string   `yaml:"json,omitempty"`
	Body   string   `yaml:"body,omitempty"`
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
}

// Check is one declared CheckConfig.
type Check struct {
	Name   string            `yaml:"name"`
	Type   CheckKind         `yaml:"type"`
	URL    string            `yaml:"url"`
	Query  string            `yaml:"query"`
	File   string            `yaml:"file"`
	Env    map[string]string `yaml:"env"`
	Expect *Expect           `yaml:"expect"`
}

// rawConfig mirrors the YAML shape with duration fields as strings, since
// time.Duration has no native YAML representation.
type rawConfig struct {
	Timeout  string  `yaml:"timeout"`
	Retries  *uint32 `yaml:"retries"`
	Backoff  string  `yaml:"backoff"`
	Parallel bool    `yaml:"parallel"`
	Checks   []Check `yaml:"checks"`
}

// Configuration is the parsed, defaulted top-level YAML document.
type Configuration struct {
	Timeout  time.Duration
	Retries  uint32
	Backoff  time.Duration
	Parallel bool
	Checks   []Check
}

const (
	defaultTimeout = 120 * time.Second
	defaultRetries = uint32(3)
	defaultBackoff = 5 * time.Second
)

// Error is a configuration error: invalid duration, unknown check type, or a
// missing required field. It is fatal before any check runs.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func configErrorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Parse parses YAML bytes into a defaulted, validated Configuration.
func Parse(data []byte) (*Configuration, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, configErrorf("invalid YAML: %v", err)
	}

	cfg := &Configuration{
		Timeout:  defaultTimeout,
		Retries:  defaultRetries,
		Backoff:  defaultBackoff,
		Parallel: raw.Parallel,
		Checks:   raw.Checks,
	}

	if raw.Timeout != "" {
		d, err := ParseDuration(raw.Timeout)
		if err != nil {
			return nil, err
		}
		cfg.Timeout = d
	}
	if raw.Retries != nil {
		cfg.Retries = *raw.Retries
	}
	if raw.Backoff != "" {
		d, err := ParseDuration(raw.Backoff)
		if err != nil {
			return nil, err
		}
		cfg.Backoff = d
	}

	for i, c := range cfg.Checks {
		if c.Name == "" {
			return nil, configErrorf("check %d: name is required", i)
		}
		switch c.Type {
		case KindHTTP:
			if c.URL == "" {
				return nil, configErrorf("check %q: url is required for http checks", c.Name)
			}
		case KindPrometheus:
			if c.URL == "" || c.Query == "" {
				return nil, configErrorf("check %q: url and query are required for prometheus checks", c.Name)
			}
		case KindScript:
			if c.File == "" {
				return nil, configErrorf("check %q: file is required for script checks", c.Name)
			}
		default:
			return nil, configErrorf("check %q: unknown check type %q", c.Name, c.Type)
		}
	}

	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("reading config %s: %v", path, err)
	}
	return Parse(data)
}

// ParseDuration parses an integer followed by a unit of ms, s, or m.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var unitLen int
	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "ms"):
		unitLen, unit = 2, time.Millisecond
	case strings.HasSuffix(s, "s"):
		unitLen, unit = 1, time.Second
	case strings.HasSuffix(s, "m"):
		unitLen, unit = 1, time.Minute
	default:
		return 0, configErrorf("unsupported duration format: %q", s)
	}

	numPart := s[:len(s)-unitLen]
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, configErrorf("unsupported duration format: %q", s)
	}

	return time.Duration(n) * unit, nil
}
