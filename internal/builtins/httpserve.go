package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	lua "github.com/yuin/gopher-lua"

	"github.com/assayrun/assay/internal/errfmt"
)

// runHTTPServer implements http.serve's blocking half. It runs on a
// throwaway goroutine (see httpModule.serve's Await call) and must never
// touch the Lua state directly — every request is dispatched back into Lua
// via deps.Scheduler.Invoke, which safely re-enters the one goroutine
// allowed to run Lua bytecode.
func runHTTPServer(deps Deps, port int, spec *routeSpec) error {
	router := chi.NewRouter()

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	for method, byPath := range spec.routes {
		for path, handler := range byPath {
			router.Method(method, path, handlerFor(deps, handler))
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handlerFor adapts a Lua route handler into an http.HandlerFunc. The
// handler receives a single request table ({method, path, query, body,
// headers}) and must return a single response table ({status?, body?,
// json?, headers?}).
func handlerFor(deps Deps, fn *lua.LFunction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		body, _ := io.ReadAll(r.Body)

		reqTable, err := buildRequestTable(deps, r, body)
		if err != nil {
			http.Error(w, "internal error building request", http.StatusInternalServerError)
			deps.Logger.Error("http.serve: failed to build request table", zapError(err))
			return
		}

		type outcome struct {
			vals []lua.LValue
			err  error
		}
		done := make(chan outcome, 1)
		go func() {
			vals, err := deps.Scheduler.Invoke(fn, []lua.LValue{reqTable})
			done <- outcome{vals: vals, err: err}
		}()

		select {
		case <-ctx.Done():
			http.Error(w, "handler timeout", http.StatusGatewayTimeout)
		case out := <-done:
			if out.err != nil {
				http.Error(w, errfmt.Format(out.err), http.StatusInternalServerError)
				return
			}
			writeHandlerResult(w, out.vals)
		}
	}
}

// buildRequestTable constructs the Lua-visible request table. It is called
// from handlerFor's own goroutine (net/http's handler goroutine) but only
// builds a detached lua.LTable bound to the shared state's type registry,
// which gopher-lua allows off the loop goroutine since table construction
// touches no coroutine-local execution state — values are only unsafe to
// share once a coroutine is concurrently resumed, which Invoke guarantees
// doesn't happen until after this table is queued.
func buildRequestTable(deps Deps, r *http.Request, body []byte) (tbl *lua.LTable, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("building request table: %v", rec)
		}
	}()

	tbl = deps.L.NewTable()
	tbl.RawSetString("method", lua.LString(r.Method))
	tbl.RawSetString("path", lua.LString(r.URL.Path))
	tbl.RawSetString("body", lua.LString(string(body)))

	headers := deps.L.NewTable()
	for name, values := range r.Header {
		if len(values) > 0 {
			headers.RawSetString(name, lua.LString(values[0]))
		}
	}
	tbl.RawSetString("headers", headers)

	query := deps.L.NewTable()
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query.RawSetString(key, lua.LString(values[0]))
		}
	}
	tbl.RawSetString("query", query)

	return tbl, nil
}

// writeHandlerResult interprets a Lua handler's single return value as a
// response table: {status?, body?, json?, headers?}. json wins over body
// when both are present; a table with neither sends an empty text/plain
// body.
func writeHandlerResult(w http.ResponseWriter, vals []lua.LValue) {
	status := http.StatusOK
	var respBody string
	contentType := "text/plain"
	var headers *lua.LTable

	if len(vals) >= 1 {
		if resp, ok := vals[0].(*lua.LTable); ok {
			if n, ok := resp.RawGetString("status").(lua.LNumber); ok {
				status = int(n)
			}
			if h, ok := resp.RawGetString("headers").(*lua.LTable); ok {
				headers = h
			}

			if jsonVal := resp.RawGetString("json"); jsonVal != lua.LNil {
				goVal, err := ToGo(jsonVal)
				if err != nil {
					http.Error(w, fmt.Sprintf("encoding json response: %s", err.Error()), http.StatusInternalServerError)
					return
				}
				encoded, err := json.Marshal(goVal)
				if err != nil {
					http.Error(w, fmt.Sprintf("encoding json response: %s", err.Error()), http.StatusInternalServerError)
					return
				}
				respBody = string(encoded)
				contentType = "application/json"
			} else if bodyVal, ok := resp.RawGetString("body").(lua.LString); ok {
				respBody = string(bodyVal)
			}
		}
	}

	// headers is applied after content-type so a handler can override it,
	// mirroring http.get/post's opts.headers precedence.
	w.Header().Set("Content-Type", contentType)
	if headers != nil {
		headers.ForEach(func(k, v lua.LValue) {
			w.Header().Set(k.String(), v.String())
		})
	}

	w.WriteHeader(status)
	_, _ = w.Write([]byte(respBody))
}
