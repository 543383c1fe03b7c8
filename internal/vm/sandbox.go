package vm

import lua "github.com/yuin/gopher-lua"

// forbiddenGlobals enumerates every name stripped from the globals table
// right after the safe libraries are opened: anything that lets a script
// escape the sandbox (load raw source/bytecode, touch the filesystem or OS
// directly, trigger a GC pause that could be used as a timing side channel,
// or print to a stdout the check-mode reporter owns). The host require is
// among them; New then installs the registry-backed require from
// require.go in its place, so a fresh VM has that one and no other.
var forbiddenGlobals = []string{
	"load",
	"loadfile",
	"loadstring",
	"dofile",
	"collectgarbage",
	"print",
	"require",
}

// openSafeLibs opens exactly the interpreter libraries a sandboxed check
// needs: string/table/math-style utilities and coroutines (coroutines are
// the async bridge's mechanism, not a sandbox hole). Package, os, io,
// channel and debug are never opened — a whitelist construction, preferred
// over a denylist so a newly added unsafe global can't slip through
// unnoticed in a future gopher-lua upgrade.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenCoroutine(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// removeDangerous strips every forbidden name from the globals table and
// removes string.dump (bytecode dump), completing the subtractive pass
// openSafeLibs starts.
func removeDangerous(L *lua.LState) {
	for _, name := range forbiddenGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	if strLib, ok := L.GetGlobal("string").(*lua.LTable); ok {
		strLib.RawSetString("dump", lua.LNil)
	}
}
