package builtins

import (
	"encoding/base64"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"
)

// registerBase64 installs base64.encode/decode. Standard RFC 4648, no
// ecosystem dependency: the stdlib codec is the whole job, so no
// third-party library adds anything here (see DESIGN.md).
func registerBase64(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"encode": base64Encode,
		"decode": base64Decode,
	})
	deps.L.SetGlobal("base64", tbl)
}

func base64Encode(L *lua.LState) int {
	str := L.CheckString(1)
	L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(str))))
	return 1
}

func base64Decode(L *lua.LState) int {
	str := L.CheckString(1)
	data, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		L.RaiseError("base64.decode: %s", err.Error())
		return 0
	}
	if !utf8.Valid(data) {
		L.RaiseError("base64.decode: decoded bytes are not valid UTF-8")
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}
