package builtins

import (
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// registerFS installs fs.read/fs.write. Neither is a suspension point
// (only http/ws/db/sleep/template-disk-reads/async awaits and the
// prometheus/kube/vault network calls are), so both
// run synchronously on the calling coroutine.
func registerFS(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"read":  fsRead(deps),
		"write": fsWrite,
	})
	deps.L.SetGlobal("fs", tbl)
}

func fsRead(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)
		data, err := os.ReadFile(path)
		if err != nil {
			L.RaiseError("fs.read %s: %s", path, err.Error())
			return 0
		}
		if !chargeOrError(L, deps.MemGuard, len(data)) {
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}
}

func fsWrite(L *lua.LState) int {
	path := L.CheckString(1)
	content := L.CheckString(2)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			L.RaiseError("fs.write %s: %s", path, err.Error())
			return 0
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		L.RaiseError("fs.write %s: %s", path, err.Error())
		return 0
	}
	return 0
}
