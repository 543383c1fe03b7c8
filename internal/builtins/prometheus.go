package builtins

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// registerPrometheus installs the __raw_prometheus table the prelude's
// prometheus.query wraps. It is a plain HTTP+JSON call against the instant
// query endpoint, not metric ingestion, so it needs no Prometheus client
// library (see DESIGN.md) — just the shared HTTP client.
func registerPrometheus(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"query": prometheusQuery(deps),
	})
	deps.L.SetGlobal("__raw_prometheus", tbl)
}

type prometheusResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Result []prometheusResult `json:"result"`
	} `json:"data"`
}

type prometheusResult struct {
	Metric map[string]string `json:"metric"`
	Value  [2]any            `json:"value"`
}

// Query performs the instant-query call and returns either a scalar float64
// (exactly one vector result with a numeric value) or the raw result set;
// shared by the prometheus check kind (internal/checks) and the script
// built-in so both interpret the response identically.
func Query(client *http.Client, baseURL, promql string) (scalar *float64, results []prometheusResult, err error) {
	u := fmt.Sprintf("%s/api/v1/query?query=%s", baseURL, url.QueryEscape(promql))

	resp, err := client.Get(u)
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus query failed: %w", err)
	}

	var parsed prometheusResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil, fmt.Errorf("prometheus query: invalid response: %w", err)
	}
	if parsed.Status != "success" || parsed.Data == nil {
		return nil, nil, fmt.Errorf("prometheus query: response status %q", parsed.Status)
	}

	if len(parsed.Data.Result) == 1 {
		if f, ok := parsePrometheusValue(parsed.Data.Result[0].Value[1]); ok {
			return &f, parsed.Data.Result, nil
		}
	}
	return nil, parsed.Data.Result, nil
}

func parsePrometheusValue(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func prometheusQuery(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		baseURL := L.CheckString(1)
		promql := L.CheckString(2)

		return deps.Scheduler.Await(L, func() []lua.LValue {
			scalar, results, err := Query(deps.HTTPClient, baseURL, promql)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, err)}
			}
			if scalar != nil {
				return []lua.LValue{lua.LNumber(*scalar)}
			}

			arr := L.NewTable()
			for i, r := range results {
				item := L.NewTable()
				metric := L.NewTable()
				for k, v := range r.Metric {
					metric.RawSetString(k, lua.LString(v))
				}
				item.RawSetString("metric", metric)
				item.RawSetString("value", valueToLua(r.Value[1]))
				arr.RawSetInt(i+1, item)
			}
			return []lua.LValue{arr}
		})
	}
}

func valueToLua(v any) lua.LValue {
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return lua.LNumber(f)
		}
		return lua.LString(s)
	}
	return lua.LNil
}
