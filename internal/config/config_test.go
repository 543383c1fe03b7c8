package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"500ms", 500 * time.Millisecond, false},
		{"5s", 5 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"5", 0, true},
		{"5h", 0, true},
		{"ms", 0, true},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
checks:
  - name: home
    type: http
    url: https://example.com
`))
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, defaultRetries, cfg.Retries)
	assert.Equal(t, defaultBackoff, cfg.Backoff)
	assert.Len(t, cfg.Checks, 1)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
timeout: 10s
retries: 1
backoff: 2s
checks:
  - name: up
    type: prometheus
    url: http://prom:9090
    query: up
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(1), cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.Backoff)
}

func TestParseMissingRequiredField(t *testing.T) {
	_, err := Parse([]byte(`
checks:
  - name: broken
    type: http
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestParseUnknownCheckType(t *testing.T) {
	_, err := Parse([]byte(`
checks:
  - name: weird
    type: carrier-pigeon
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown check type")
}

func TestParseMissingName(t *testing.T) {
	_, err := Parse([]byte(`
checks:
  - type: http
    url: https://example.com
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("checks: [\n"))
	require.Error(t, err)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}
