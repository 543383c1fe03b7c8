package builtins

import (
	lua "github.com/yuin/gopher-lua"
)

// registerLogEnvTime installs log.info/warn/error and env.get. log.* goes
// to stderr via the shared structured logger; time() and sleep() are
// registered alongside async built-ins (async.go) since sleep is a
// suspension point sharing the scheduler.
func registerLogEnvTime(deps Deps) {
	logTbl := newModule(deps.L, map[string]lua.LGFunction{
		"info":  logAt(deps, "info"),
		"warn":  logAt(deps, "warn"),
		"error": logAt(deps, "error"),
	})
	deps.L.SetGlobal("log", logTbl)

	envTbl := newModule(deps.L, map[string]lua.LGFunction{
		"get": envGet(deps),
	})
	deps.L.SetGlobal("env", envTbl)
}

func logAt(deps Deps, level string) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		switch level {
		case "info":
			deps.Logger.Info(msg)
		case "warn":
			deps.Logger.Warn(msg)
		case "error":
			deps.Logger.Error(msg)
		}
		return 0
	}
}

// envGet implements env.get(name): check-local env first, process env as
// fallback.
func envGet(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		if val, ok := deps.EnvGet(name); ok {
			L.Push(lua.LString(val))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}
}
