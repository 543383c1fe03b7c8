// Package checks implements the three declarative check kinds: http,
// prometheus, script. Each kind validates its required fields, performs the
// work, and returns a pass/fail plus message — it never raises across the
// check-runner boundary.
package checks

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/assayrun/assay/internal/config"
	"github.com/assayrun/assay/internal/metrics"
)

// Deps is everything a check kind needs beyond its own CheckConfig.
type Deps struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	// Modules backs a Script check's VM require(); populated externally
	// (module discovery itself is out of scope).
	Modules map[string]string
}

// Execute dispatches a single check to its kind and returns (passed,
// message). message is empty on a clean pass, a diagnostic note on a pass
// without expectations (e.g. prometheus's observed-value note), or the
// failure reason.
func Execute(check config.Check, deps Deps) (bool, string) {
	switch check.Type {
	case config.KindHTTP:
		return runHTTP(check, deps)
	case config.KindPrometheus:
		return runPrometheus(check, deps)
	case config.KindScript:
		return runScript(check, deps)
	default:
		return false, fmt.Sprintf("unknown check type %q", check.Type)
	}
}
