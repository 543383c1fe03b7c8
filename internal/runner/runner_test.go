package runner

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assayrun/assay/internal/checks"
	"github.com/assayrun/assay/internal/config"
)

func testDeps() checks.Deps {
	return checks.Deps{
		HTTPClient: &http.Client{},
		Logger:     zap.NewNop(),
	}
}

// TestRetryBoundAttemptsEqualRetriesPlusOne is P4: for a check that always
// fails, the number of attempts equals retries+1.
func TestRetryBoundAttemptsEqualRetriesPlusOne(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.Configuration{
		Timeout: 5 * time.Second,
		Retries: 2,
		Backoff: 5 * time.Millisecond,
	}
	check := config.Check{Name: "always-fails", Type: config.KindHTTP, URL: srv.URL}

	r := runWithRetries(check, cfg, testDeps())

	assert.False(t, r.Passed)
	assert.Equal(t, int32(cfg.Retries)+1, atomic.LoadInt32(&attempts))
}

// TestLinearBackoffIntervals is P5: the k-th wait (1<=k<retries+1) equals
// backoff*k, within scheduler jitter.
func TestLinearBackoffIntervals(t *testing.T) {
	hits := make(chan time.Time, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- time.Now()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	backoff := 20 * time.Millisecond
	cfg := &config.Configuration{
		Timeout: 5 * time.Second,
		Retries: 3,
		Backoff: backoff,
	}
	check := config.Check{Name: "always-fails", Type: config.KindHTTP, URL: srv.URL}

	r := runWithRetries(check, cfg, testDeps())
	assert.False(t, r.Passed)

	close(hits)
	var timestamps []time.Time
	for ts := range hits {
		timestamps = append(timestamps, ts)
	}
	require.Len(t, timestamps, int(cfg.Retries)+1)

	for k := 1; k < len(timestamps); k++ {
		gap := timestamps[k].Sub(timestamps[k-1])
		want := backoff * time.Duration(k)
		// Generous tolerance: scheduler jitter, not a deadline to race.
		assert.GreaterOrEqual(t, gap, want-5*time.Millisecond, "wait %d", k)
		assert.Less(t, gap, want+200*time.Millisecond, "wait %d", k)
	}
}

// TestGlobalTimeoutTotality is P6 plus spec.md's concrete global-timeout
// scenario: 3 checks each blocked well past the deadline, timeout 2s ->
// RunResult.Checks has length 3, all failed with the synthesized message,
// and the run as a whole fails.
func TestGlobalTimeoutTotality(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	cfg := &config.Configuration{
		Timeout: 2 * time.Second,
		Retries: 0,
		Backoff: time.Second,
		Checks: []config.Check{
			{Name: "one", Type: config.KindHTTP, URL: slow.URL},
			{Name: "two", Type: config.KindHTTP, URL: slow.URL},
			{Name: "three", Type: config.KindHTTP, URL: slow.URL},
		},
	}

	started := time.Now()
	run := Run(cfg, testDeps())
	elapsed := time.Since(started)

	assert.Less(t, elapsed, 4*time.Second, "Run must return around the global deadline, not wait for every check")
	require.Len(t, run.Checks, 3)
	assert.False(t, run.Passed)
	for _, c := range run.Checks {
		assert.False(t, c.Passed)
		assert.Equal(t, int64(0), c.DurationMs)
		assert.Equal(t, "global timeout of 2s exceeded", c.Message)
	}
}

// TestGlobalTimeoutDoesNotCorruptLateResult guards against the runner's
// background check-loop goroutine overwriting a synthesized timeout result
// once it finally finishes after Run has already returned.
func TestGlobalTimeoutDoesNotCorruptLateResult(t *testing.T) {
	released := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-released
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	cfg := &config.Configuration{
		Timeout: 50 * time.Millisecond,
		Retries: 0,
		Backoff: time.Second,
		Checks: []config.Check{
			{Name: "only", Type: config.KindHTTP, URL: slow.URL},
		},
	}

	run := Run(cfg, testDeps())
	require.Len(t, run.Checks, 1)
	assert.Equal(t, "global timeout of 50ms exceeded", run.Checks[0].Message)

	// Let the handler return (a no-op if it was never reached) and give the
	// abandoned check-loop goroutine a moment to (incorrectly, if the bug
	// regresses) write into run.Checks.
	close(released)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, "global timeout of 50ms exceeded", run.Checks[0].Message, "late-finishing check must not overwrite the synthesized timeout result")
}
