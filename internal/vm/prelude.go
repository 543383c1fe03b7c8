package vm

import lua "github.com/yuin/gopher-lua"

// prelude is loaded into every fresh VM after the Go built-ins are
// registered. It exists because a Go function that calls L.Yield ends its
// own invocation immediately: it can never run code after the coroutine
// resumes, so a suspending built-in cannot itself inspect its result for an
// error and turn it into a Lua error. Instead every suspending built-in is
// registered twice: a raw Go table (__raw_http, __raw_db, ...) that returns
// either the real result or a sentinel error table, and this Lua-side
// wrapper, which runs *after* resume (ordinary Lua call/return, not across
// a yield) and can safely call error() on the sentinel.
const prelude = `
local function checkasync(result)
  if type(result) == "table" and result.__assay_err ~= nil then
    error(result.__assay_err, 0)
  end
  return result
end

http = {}
function http.get(url, opts) return checkasync(__raw_http.get(url, opts)) end
function http.post(url, body, opts) return checkasync(__raw_http.post(url, body, opts)) end
function http.put(url, body, opts) return checkasync(__raw_http.put(url, body, opts)) end
function http.patch(url, body, opts) return checkasync(__raw_http.patch(url, body, opts)) end
function http.delete(url, opts) return checkasync(__raw_http.delete(url, opts)) end
function http.serve(port, routes) return checkasync(__raw_http.serve(port, routes)) end

function http.client(opts)
  local id = __raw_http.new_client(opts)
  local client = {}
  local function verb(method)
    return function(url, bodyOrOpts, maybeOpts)
      return checkasync(__raw_http.client_call(id, method, url, bodyOrOpts, maybeOpts))
    end
  end
  client.get = verb("GET")
  client.post = verb("POST")
  client.put = verb("PUT")
  client.patch = verb("PATCH")
  client.delete = verb("DELETE")
  return client
end

db = {}
function db.connect(url) return checkasync(__raw_db.connect(url)) end
function db.query(conn, sql, params) return checkasync(__raw_db.query(conn, sql, params)) end
function db.execute(conn, sql, params) return checkasync(__raw_db.execute(conn, sql, params)) end
function db.close(conn) return checkasync(__raw_db.close(conn)) end

ws = {}
function ws.connect(url) return checkasync(__raw_ws.connect(url)) end
function ws.send(conn, msg) return checkasync(__raw_ws.send(conn, msg)) end
function ws.recv(conn) return checkasync(__raw_ws.recv(conn)) end
function ws.close(conn) return checkasync(__raw_ws.close(conn)) end

template = {}
function template.render(path, vars) return checkasync(__raw_template.render(path, vars)) end
function template.render_string(tmpl, vars) return __raw_template.render_string(tmpl, vars) end

prometheus = {}
function prometheus.query(url, promql) return checkasync(__raw_prometheus.query(url, promql)) end

kube = {}
function kube.get(kind, namespace, name) return checkasync(__raw_kube.get(kind, namespace, name)) end
function kube.list(kind, namespace) return checkasync(__raw_kube.list(kind, namespace)) end

vault = {}
function vault.read(path) return checkasync(__raw_vault.read(path)) end
function vault.health() return checkasync(__raw_vault.health()) end

function sleep(seconds) return checkasync(__raw_sleep(seconds)) end

async = {}
function async.spawn(fn)
  local id = __raw_async.spawn(fn)
  local handle = { __id = id }
  function handle:await()
    return checkasync(__raw_async.await(self.__id))
  end
  return handle
end

function async.spawn_interval(seconds, fn)
  local id = __raw_async.spawn_interval(seconds, fn)
  local handle = { __id = id }
  function handle:cancel()
    __raw_async.cancel(self.__id)
  end
  return handle
end
`

// loadPrelude runs the Lua-side wrapper layer on a freshly sandboxed state.
// It must run after builtins.RegisterAll (the __raw_* tables it references
// must already be globals) and before any script or require() call.
func loadPrelude(L *lua.LState) error {
	fn, err := L.LoadString(prelude)
	if err != nil {
		return err
	}
	L.Push(fn)
	return L.PCall(0, 0, nil)
}
