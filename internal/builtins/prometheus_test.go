package builtins_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newPrometheusStub(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestPrometheusQueryScalarResult(t *testing.T) {
	url := newPrometheusStub(t, `{"status":"success","data":{"result":[{"metric":{},"value":[1690000000,"42"]}]}}`)
	err := run(t, fmt.Sprintf(`
local v = prometheus.query("%s", "up")
assert.eq(v, 42)
`, url))
	assert.NoError(t, err)
}

func TestPrometheusQueryVectorResult(t *testing.T) {
	url := newPrometheusStub(t, `{"status":"success","data":{"result":[
		{"metric":{"instance":"a"},"value":[1690000000,"1"]},
		{"metric":{"instance":"b"},"value":[1690000000,"2"]}
	]}}`)
	err := run(t, fmt.Sprintf(`
local results = prometheus.query("%s", "up")
assert.eq(#results, 2)
assert.eq(results[1].metric.instance, "a")
assert.eq(results[2].value, 2)
`, url))
	assert.NoError(t, err)
}

func TestPrometheusQueryErrorStatus(t *testing.T) {
	url := newPrometheusStub(t, `{"status":"error"}`)
	err := run(t, fmt.Sprintf(`prometheus.query("%s", "up")`, url))
	assert.Error(t, err)
}
