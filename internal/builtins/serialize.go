package builtins

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

// registerJSON installs json.parse/json.encode. Array-vs-object detection
// goes through the single IsArrayTable helper (conv.go) shared with
// yaml/toml, so the three encoders can never drift on what counts as an
// array.
func registerJSON(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"parse":  jsonParse,
		"encode": jsonEncode,
	})
	deps.L.SetGlobal("json", tbl)
}

func jsonParse(L *lua.LState) int {
	str := L.CheckString(1)

	var goVal any
	if err := json.Unmarshal([]byte(str), &goVal); err != nil {
		L.RaiseError("json.parse: %s", err.Error())
		return 0
	}

	lv, err := FromGo(L, goVal)
	if err != nil {
		L.RaiseError("json.parse: %s", err.Error())
		return 0
	}
	L.Push(lv)
	return 1
}

func jsonEncode(L *lua.LState) int {
	goVal, err := ToGo(L.CheckAny(1))
	if err != nil {
		L.RaiseError("json.encode: %s", err.Error())
		return 0
	}
	data, err := json.Marshal(goVal)
	if err != nil {
		L.RaiseError("json.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

// registerYAML installs yaml.parse/yaml.encode with the same shape as json.
func registerYAML(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"parse":  yamlParse,
		"encode": yamlEncode,
	})
	deps.L.SetGlobal("yaml", tbl)
}

func yamlParse(L *lua.LState) int {
	str := L.CheckString(1)

	var goVal any
	if err := yaml.Unmarshal([]byte(str), &goVal); err != nil {
		L.RaiseError("yaml.parse: %s", err.Error())
		return 0
	}

	lv, err := FromGo(L, normalizeYAML(goVal))
	if err != nil {
		L.RaiseError("yaml.parse: %s", err.Error())
		return 0
	}
	L.Push(lv)
	return 1
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} and nested
// map[string]interface{} values (and occasional map[any]any from merge
// keys) into the same any-tree shape FromGo already understands.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return val
	}
}

func yamlEncode(L *lua.LState) int {
	goVal, err := ToGo(L.CheckAny(1))
	if err != nil {
		L.RaiseError("yaml.encode: %s", err.Error())
		return 0
	}
	data, err := yaml.Marshal(goVal)
	if err != nil {
		L.RaiseError("yaml.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

// registerTOML installs toml.parse/toml.encode with the same shape as json.
func registerTOML(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"parse":  tomlParse,
		"encode": tomlEncode,
	})
	deps.L.SetGlobal("toml", tbl)
}

func tomlParse(L *lua.LState) int {
	str := L.CheckString(1)

	var goVal map[string]any
	if err := toml.Unmarshal([]byte(str), &goVal); err != nil {
		L.RaiseError("toml.parse: %s", err.Error())
		return 0
	}

	lv, err := FromGo(L, goVal)
	if err != nil {
		L.RaiseError("toml.parse: %s", err.Error())
		return 0
	}
	L.Push(lv)
	return 1
}

func tomlEncode(L *lua.LState) int {
	goVal, err := ToGo(L.CheckAny(1))
	if err != nil {
		L.RaiseError("toml.encode: %s", err.Error())
		return 0
	}
	data, err := toml.Marshal(goVal)
	if err != nil {
		L.RaiseError("toml.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}
