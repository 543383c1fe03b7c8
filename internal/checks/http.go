package checks

import (
	"fmt"
	"io"
	"strings"

	"github.com/assayrun/assay/internal/config"
)

// runHTTP implements the http check kind: a single GET against check.URL,
// evaluated against an optional Expect block in status/body/json order —
// the first failing predicate determines the message.
func runHTTP(check config.Check, deps Deps) (bool, string) {
	if check.URL == "" {
		return false, "url is required for http checks"
	}

	resp, err := deps.HTTPClient.Get(check.URL)
	if err != nil {
		return false, fmt.Sprintf("request failed: %s", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Sprintf("request failed: %s", err.Error())
	}

	if check.Expect == nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true, ""
		}
		return false, fmt.Sprintf("expected 2xx, got %d", resp.StatusCode)
	}

	exp := check.Expect

	if exp.Status != nil {
		if resp.StatusCode != int(*exp.Status) {
			return false, fmt.Sprintf("expected status %d, got %d", *exp.Status, resp.StatusCode)
		}
	}

	if exp.Body != "" {
		if !strings.Contains(string(body), exp.Body) {
			return false, fmt.Sprintf("expected body to contain %q", exp.Body)
		}
	}

	if exp.JSON != "" {
		ok, err := evalJSONExpr(body, exp.JSON)
		if err != nil {
			return false, err.Error()
		}
		if !ok {
			return false, fmt.Sprintf("JSON expression failed: %s", exp.JSON)
		}
	}

	return true, ""
}
