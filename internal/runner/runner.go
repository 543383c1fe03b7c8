// Package runner is the check orchestrator: it runs a Configuration's
// declared checks sequentially, with per-check retry and linear backoff,
// against a global deadline, and never lets a check's error cross its own
// boundary — every check always produces a CheckResult.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assayrun/assay/internal/checks"
	"github.com/assayrun/assay/internal/config"
	"github.com/assayrun/assay/internal/result"
)

// Run executes cfg's checks and returns the aggregate RunResult. It never
// panics or returns an error: configuration errors are caught before Run is
// called (internal/config.Parse), and every other failure becomes a failing
// CheckResult.
func Run(cfg *config.Configuration, deps checks.Deps) *result.RunResult {
	start := time.Now()

	if cfg.Parallel {
		deps.Logger.Warn("parallel: true is accepted but not honoured; checks run sequentially")
	}

	// ctx carries the global deadline into the check loop itself, rather
	// than merely racing a separate timer against it: once ctx is done, the
	// loop goroutine polls it and stops scheduling further checks instead
	// of running to completion in the background after Run has returned.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	results := make([]result.CheckResult, len(cfg.Checks))
	done := make([]bool, len(cfg.Checks))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.Go(func() error {
		for i, c := range cfg.Checks {
			if ctx.Err() != nil {
				return nil
			}
			r := runWithRetries(c, cfg, deps)
			mu.Lock()
			// Re-check ctx after the (possibly slow) check returns: if the
			// deadline already fired and synthesized this index's failure
			// message, this check's own result must not overwrite it.
			if ctx.Err() == nil {
				results[i] = r
				done[i] = true
			}
			mu.Unlock()
		}
		return nil
	})

	waitDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		// every check completed within the global deadline.
	case <-ctx.Done():
		mu.Lock()
		for i, c := range cfg.Checks {
			if !done[i] {
				results[i] = result.CheckResult{
					Name:       c.Name,
					Passed:     false,
					DurationMs: 0,
					Message:    fmt.Sprintf("global timeout of %s exceeded", cfg.Timeout),
				}
			}
		}
		mu.Unlock()
	}

	run := &result.RunResult{
		Checks:     results,
		DurationMs: time.Since(start).Milliseconds(),
	}
	run.ComputePassed()
	return run
}

// runWithRetries performs at most retries+1 attempts of one check, waiting
// backoff*i between attempt i and i+1 (linear backoff). duration_ms spans
// every attempt and every wait: wall-clock from just-before-dispatch to
// just-after the final attempt.
func runWithRetries(check config.Check, cfg *config.Configuration, deps checks.Deps) result.CheckResult {
	start := time.Now()
	attempts := int(cfg.Retries) + 1

	var passed bool
	var message string

	for attempt := 1; attempt <= attempts; attempt++ {
		passed, message = checks.Execute(check, deps)
		if passed {
			break
		}
		if attempt < attempts {
			deps.Logger.Warn("check failed, retrying",
				zap.String("check", check.Name),
				zap.Int("attempt", attempt),
				zap.String("message", message),
			)
			time.Sleep(cfg.Backoff * time.Duration(attempt))
		}
	}

	return result.CheckResult{
		Name:       check.Name,
		Passed:     passed,
		DurationMs: time.Since(start).Milliseconds(),
		Message:    message,
	}
}
