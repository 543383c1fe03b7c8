package vm

import lua "github.com/yuin/gopher-lua"

// registerRequire installs a user-space require(name): it looks up name in
// a registry of name->source text (module discovery that populates this
// registry is out of scope) and errors "module not found: <name>"
// otherwise. It never touches the host filesystem or a real package
// loader.
func registerRequire(L *lua.LState, modules map[string]string) {
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		src, ok := modules[name]
		if !ok {
			L.RaiseError("module not found: %s", name)
			return 0
		}

		fn, err := L.LoadString(src)
		if err != nil {
			L.RaiseError("module %s: %s", name, err.Error())
			return 0
		}

		L.Push(fn)
		L.Call(0, 1)
		return 1
	}))
}
