package checks

import (
	"fmt"

	"github.com/assayrun/assay/internal/builtins"
	"github.com/assayrun/assay/internal/config"
)

// runPrometheus implements the prometheus check kind: an instant query
// against check.URL, bounded by optional expect.min/expect.max.
func runPrometheus(check config.Check, deps Deps) (bool, string) {
	if check.URL == "" || check.Query == "" {
		return false, "url and query are required for prometheus checks"
	}

	scalar, results, err := builtins.Query(deps.HTTPClient, check.URL, check.Query)
	if err != nil {
		return false, err.Error()
	}

	if scalar == nil {
		if len(results) == 0 {
			return false, "Prometheus query returned no results"
		}
		return true, fmt.Sprintf("query returned %d results", len(results))
	}

	value := *scalar
	exp := check.Expect
	if exp == nil || (exp.Min == nil && exp.Max == nil) {
		return true, fmt.Sprintf("query returned: %s", formatFloat(value))
	}

	if exp.Min != nil && value < *exp.Min {
		return false, fmt.Sprintf("expected min %s, got %s", formatFloat(*exp.Min), formatFloat(value))
	}
	if exp.Max != nil && value > *exp.Max {
		return false, fmt.Sprintf("expected max %s, got %s", formatFloat(*exp.Max), formatFloat(value))
	}
	return true, ""
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
