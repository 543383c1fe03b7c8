package builtins

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// IsArrayTable implements the single array-detection helper the JSON,
// YAML, and TOML encoders share: tbl is an array iff its keys are
// exactly the contiguous integers 1..N for some N>0 (an empty table is
// never an array and encodes as an object by convention, matching the
// common Lua-JSON-library default).
func IsArrayTable(tbl *lua.LTable) bool {
	n := tbl.Len()
	if n == 0 {
		return false
	}
	count := 0
	tbl.ForEach(func(k, _ lua.LValue) {
		count++
	})
	return count == n
}

// ToGo converts a Lua value into a plain Go value (nil, bool, int64,
// float64, string, []any, map[string]any) suitable for JSON/YAML/TOML
// encoding or for handing to a Go API (e.g. DB params).
func ToGo(v lua.LValue) (any, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(val), nil
	case *lua.LTable:
		return tableToGo(val)
	default:
		return nil, fmt.Errorf("cannot convert Lua value of type %s", v.Type().String())
	}
}

func tableToGo(tbl *lua.LTable) (any, error) {
	if IsArrayTable(tbl) {
		arr := make([]any, 0, tbl.Len())
		var convErr error
		for i := 1; i <= tbl.Len(); i++ {
			item, err := ToGo(tbl.RawGetInt(i))
			if err != nil {
				convErr = err
				break
			}
			arr = append(arr, item)
		}
		if convErr != nil {
			return nil, convErr
		}
		return arr, nil
	}

	obj := make(map[string]any)
	var convErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, err := luaKeyToString(k)
		if err != nil {
			convErr = err
			return
		}
		val, err := ToGo(v)
		if err != nil {
			convErr = err
			return
		}
		obj[key] = val
	})
	if convErr != nil {
		return nil, convErr
	}
	return obj, nil
}

// luaKeyToString implements the rule that object keys must be strings,
// integers, or finite numbers (stringified).
func luaKeyToString(k lua.LValue) (string, error) {
	switch key := k.(type) {
	case lua.LString:
		return string(key), nil
	case lua.LNumber:
		f := float64(key)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("invalid object key: %v", f)
		}
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("invalid object key of type %s", k.Type().String())
	}
}

// FromGo converts a plain Go value (as produced by encoding/json,
// gopkg.in/yaml.v3 or go-toml unmarshalling) into a Lua value.
func FromGo(L *lua.LState, v any) (lua.LValue, error) {
	switch val := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(val), nil
	case int:
		return lua.LNumber(val), nil
	case int64:
		return lua.LNumber(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("value %v is not representable in JSON", val)
		}
		return lua.LNumber(val), nil
	case string:
		return lua.LString(val), nil
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			lv, err := FromGo(L, item)
			if err != nil {
				return nil, err
			}
			tbl.RawSetInt(i+1, lv)
		}
		return tbl, nil
	case map[string]any:
		tbl := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lv, err := FromGo(L, val[k])
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	// yaml.v3 decodes object keys typed as `any` sometimes; accept that shape
	// too, following the same path as map[string]any after stringifying keys.
	case map[any]any:
		tbl := L.NewTable()
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprintf("%v", k)
			}
			lv, err := FromGo(L, item)
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(key, lv)
		}
		return tbl, nil
	default:
		return nil, fmt.Errorf("cannot convert value of type %T", v)
	}
}
