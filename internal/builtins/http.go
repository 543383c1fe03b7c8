package builtins

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"
)

// registerHTTP installs the low-level __raw_http table that the prelude
// (internal/vm prelude.go) wraps into the script-visible http.* surface.
// Indirecting through raw+prelude is what lets a suspending built-in raise
// a catchable Lua error across the yield/resume boundary: a Go function
// that calls Yield can never run code after it resumes (that invocation
// already ended), so the error check has to happen in Lua bytecode that
// runs after the raw call returns.
func registerHTTP(deps Deps) {
	h := &httpModule{deps: deps, client: deps.HTTPClient}

	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"get":         h.verb("GET"),
		"post":        h.verb("POST"),
		"put":         h.verb("PUT"),
		"patch":       h.verb("PATCH"),
		"delete":      h.verb("DELETE"),
		"new_client":  h.newClient,
		"client_call": h.clientCall,
		"serve":       h.serve,
	})
	deps.L.SetGlobal("__raw_http", tbl)
}

type httpModule struct {
	deps   Deps
	client *http.Client

	mu      sync.Mutex
	clients map[int]*http.Client
	nextID  int
}

// verb returns an LGFunction for one HTTP method on the shared default
// client (used by __raw_http.get/post/...).
func (h *httpModule) verb(method string) lua.LGFunction {
	return func(L *lua.LState) int {
		return h.doVerbOn(L, h.client, method)
	}
}

func (h *httpModule) doVerbOn(L *lua.LState, client *http.Client, method string) int {
	url := L.CheckString(1)

	var bodyArg lua.LValue
	var opts *lua.LTable
	if method == "GET" || method == "DELETE" {
		if L.GetTop() >= 2 {
			if t, ok := L.Get(2).(*lua.LTable); ok {
				opts = t
			}
		}
	} else {
		bodyArg = L.Get(2)
		if L.GetTop() >= 3 {
			if t, ok := L.Get(3).(*lua.LTable); ok {
				opts = t
			}
		}
	}

	return h.deps.Scheduler.Await(L, func() []lua.LValue {
		status, respBody, respHeaders, err := h.doRequest(client, method, url, bodyArg, opts)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, err)}
		}
		return []lua.LValue{responseTable(L, status, respBody, respHeaders)}
	})
}

// doRequest performs the actual HTTP round trip off the scheduler goroutine
// (see asyncrt.Scheduler.Await); it must not touch the Lua state.
func (h *httpModule) doRequest(client *http.Client, method, url string, bodyArg lua.LValue, opts *lua.LTable) (int, string, map[string]string, error) {
	var reader io.Reader
	contentType := ""

	if bodyArg != nil {
		switch b := bodyArg.(type) {
		case lua.LString:
			reader = strings.NewReader(string(b))
		case *lua.LTable:
			goVal, err := ToGo(b)
			if err != nil {
				return 0, "", nil, fmt.Errorf("encoding request body: %w", err)
			}
			encoded, err := json.Marshal(goVal)
			if err != nil {
				return 0, "", nil, fmt.Errorf("encoding request body: %w", err)
			}
			reader = bytes.NewReader(encoded)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, "", nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if opts != nil {
		if headers, ok := opts.RawGetString("headers").(*lua.LTable); ok {
			headers.ForEach(func(k, v lua.LValue) {
				req.Header.Set(k.String(), v.String())
			})
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		// A network-OK-but-body-read-failed case and an outright send
		// failure deliberately collapse into the same error string.
		return 0, "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("request failed: %w", err)
	}

	if h.deps.MemGuard != nil {
		if err := h.deps.MemGuard.Charge(len(data)); err != nil {
			return 0, "", nil, err
		}
	}

	headers := map[string]string{}
	for name, values := range resp.Header {
		if len(values) == 0 || !utf8.ValidString(values[0]) {
			continue
		}
		headers[name] = values[0]
	}

	return resp.StatusCode, string(data), headers, nil
}

func responseTable(L *lua.LState, status int, body string, headers map[string]string) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("status", lua.LNumber(status))
	tbl.RawSetString("body", lua.LString(body))

	headerTbl := L.NewTable()
	for k, v := range headers {
		headerTbl.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("headers", headerTbl)
	return tbl
}

// asyncErrField is the sentinel key the prelude's checkasync() looks for on
// a value returned from a suspending raw call; its presence means the
// underlying host operation failed and the wrapper should re-raise it as a
// normal Lua error.
const asyncErrField = "__assay_err"

func asyncErrTable(L *lua.LState, err error) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString(asyncErrField, lua.LString(err.Error()))
	return tbl
}

// newClient implements the Go half of http.client(opts?): validates options,
// builds a *http.Client, and stashes it behind an integer id the prelude's
// wrapper methods reference via client_call.
func (h *httpModule) newClient(L *lua.LState) int {
	opts := L.OptTable(1, L.NewTable())

	timeout := 30 * time.Second
	if t, ok := opts.RawGetString("timeout").(lua.LNumber); ok {
		timeout = time.Duration(float64(t) * float64(time.Second))
	}

	transport := &http.Transport{}

	if pemFile, ok := opts.RawGetString("ca_cert_file").(lua.LString); ok && pemFile != "" {
		pem, err := os.ReadFile(string(pemFile))
		if err != nil {
			L.RaiseError("reading ca_cert_file: %s", err.Error())
			return 0
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			L.RaiseError("invalid PEM in ca_cert_file")
			return 0
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	} else if pemStr, ok := opts.RawGetString("ca_cert").(lua.LString); ok && pemStr != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(pemStr)) {
			L.RaiseError("invalid PEM in ca_cert")
			return 0
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	client := &http.Client{Transport: transport, Timeout: timeout}

	h.mu.Lock()
	if h.clients == nil {
		h.clients = map[int]*http.Client{}
	}
	h.nextID++
	id := h.nextID
	h.clients[id] = client
	h.mu.Unlock()

	L.Push(lua.LNumber(id))
	return 1
}

// clientCall dispatches one verb call on a client built via newClient; the
// prelude's http.client() wrapper is what supplies method/url/body/opts.
func (h *httpModule) clientCall(L *lua.LState) int {
	id := L.CheckInt(1)
	method := strings.ToUpper(L.CheckString(2))

	h.mu.Lock()
	client, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		L.RaiseError("unknown client handle %d", id)
		return 0
	}

	// Shift the remaining args so doVerbOn sees (url[, body][, opts]) as if
	// it were called directly.
	url := L.CheckString(3)
	var bodyArg lua.LValue
	var opts *lua.LTable
	if method == "GET" || method == "DELETE" {
		if t, ok := L.Get(4).(*lua.LTable); ok {
			opts = t
		}
	} else {
		bodyArg = L.Get(4)
		if t, ok := L.Get(5).(*lua.LTable); ok {
			opts = t
		}
	}

	return h.deps.Scheduler.Await(L, func() []lua.LValue {
		status, respBody, respHeaders, err := h.doRequest(client, method, url, bodyArg, opts)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, err)}
		}
		return []lua.LValue{responseTable(L, status, respBody, respHeaders)}
	})
}

// serve implements http.serve(port, routes): binds 0.0.0.0:port and blocks,
// dispatching per routes[METHOD][path]. Scripts typically wrap this in
// async.spawn so the rest of the script keeps running.
func (h *httpModule) serve(L *lua.LState) int {
	port := L.CheckInt(1)
	routes := L.CheckTable(2)

	routeSpec, err := snapshotRoutes(L, routes)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	return h.deps.Scheduler.Await(L, func() []lua.LValue {
		if err := runHTTPServer(h.deps, port, routeSpec); err != nil {
			return []lua.LValue{asyncErrTable(L, err)}
		}
		return []lua.LValue{lua.LNil}
	})
}

// routeSpec is an (method, path) -> handler snapshot taken on the
// scheduler goroutine before the server's accept loop starts, since the
// handlers themselves (Lua functions) must only ever be called back on
// that same goroutine via a dedicated dispatch channel — see httpserve.go.
type routeSpec struct {
	routes map[string]map[string]*lua.LFunction
}

func snapshotRoutes(L *lua.LState, routes *lua.LTable) (*routeSpec, error) {
	spec := &routeSpec{routes: map[string]map[string]*lua.LFunction{}}
	var outerErr error
	routes.ForEach(func(methodKey, pathsVal lua.LValue) {
		if outerErr != nil {
			return
		}
		method := strings.ToUpper(methodKey.String())
		paths, ok := pathsVal.(*lua.LTable)
		if !ok {
			outerErr = fmt.Errorf("routes[%s] must be a table of path->handler", method)
			return
		}
		byPath := map[string]*lua.LFunction{}
		paths.ForEach(func(pathKey, handlerVal lua.LValue) {
			if outerErr != nil {
				return
			}
			fn, ok := handlerVal.(*lua.LFunction)
			if !ok {
				outerErr = fmt.Errorf("routes[%s][%s] must be a function", method, pathKey.String())
				return
			}
			byPath[pathKey.String()] = fn
		})
		spec.routes[method] = byPath
	})
	return spec, outerErr
}
