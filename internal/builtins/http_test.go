package builtins_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("created"))
		}
	}))
	t.Cleanup(srv.Close)

	script := fmt.Sprintf(`
local resp = http.get("%s")
assert.eq(resp.status, 200)
local body = json.parse(resp.body)
assert.eq(body.status, "ok")

local created = http.post("%s", {name = "widget"})
assert.eq(created.status, 201)
assert.eq(created.body, "created")
`, srv.URL, srv.URL)
	err := run(t, script)
	assert.NoError(t, err)
}

func TestHTTPConnectionRefusedSurfacesAsScriptError(t *testing.T) {
	err := run(t, `http.get("http://127.0.0.1:1")`)
	require.Error(t, err)
}

func TestHTTPServeRoundTrip(t *testing.T) {
	script := `
local handle = async.spawn(function()
  http.serve(18733, {
    GET = {
      ["/hello"] = function(req)
        return {status = 200, json = {greeting = "hi " .. (req.query.name or "stranger")}}
      end,
    },
  })
end)

sleep(0.2)

local resp = http.get("http://127.0.0.1:18733/hello?name=assay")
assert.eq(resp.status, 200)
local body = json.parse(resp.body)
assert.eq(body.greeting, "hi assay")
`
	err := run(t, script)
	assert.NoError(t, err)
}
