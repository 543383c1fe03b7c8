// Package builtins implements the capability surface scripts actually use:
// every global table a check script can see. Each module is installed by a
// Register* function that takes the shared Deps and sets one global.
package builtins

import (
	"net/http"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/assayrun/assay/internal/asyncrt"
	"github.com/assayrun/assay/internal/memguard"
	"github.com/assayrun/assay/internal/metrics"
)

// zapError is the one-line helper every built-in uses to attach an error to
// a zap log line.
func zapError(err error) zap.Field {
	return zap.Error(err)
}

// Deps is everything a built-in module needs from its host VM. It is
// intentionally narrow (no dependency on the vm package) so builtins never
// imports its own caller.
type Deps struct {
	L          *lua.LState
	Scheduler  *asyncrt.Scheduler
	MemGuard   *memguard.MemGuard
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client

	// EnvGet resolves env.get(name): check-local env first, process env
	// fallback (I5).
	EnvGet func(name string) (string, bool)
}

// RegisterAll installs every built-in module on deps.L's globals table.
func RegisterAll(deps Deps) error {
	registerHTTP(deps)
	registerJSON(deps)
	registerYAML(deps)
	registerTOML(deps)
	registerBase64(deps)
	registerCrypto(deps)
	registerRegex(deps)
	registerFS(deps)
	registerDB(deps)
	registerWS(deps)
	registerTemplate(deps)
	registerAsync(deps)
	registerAssert(deps)
	registerLogEnvTime(deps)
	registerPrometheus(deps)
	registerKube(deps)
	registerVault(deps)
	return nil
}

// newModule builds a table of named functions destined to become one global
// module (http, json, crypto, ...), built once per Register* call.
func newModule(L *lua.LState, fns map[string]lua.LGFunction) *lua.LTable {
	tbl := L.NewTable()
	for name, fn := range fns {
		tbl.RawSetString(name, L.NewFunction(fn))
	}
	return tbl
}

// chargeOrError charges n bytes against the VM's memory guard (I3) and, if
// the budget is exceeded, raises a Lua runtime error instead of returning
// the oversized payload to the script.
func chargeOrError(L *lua.LState, guard *memguard.MemGuard, n int) bool {
	if guard == nil {
		return true
	}
	if err := guard.Charge(n); err != nil {
		L.RaiseError("%s", err.Error())
		return false
	}
	return true
}
