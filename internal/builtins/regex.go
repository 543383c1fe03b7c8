package builtins

import (
	"regexp"

	lua "github.com/yuin/gopher-lua"
)

// registerRegex installs regex.match/find/find_all/replace. Backed by
// stdlib regexp (RE2), which lacks look-around; no third-party PCRE engine
// is pulled in to cover the gap (see DESIGN.md).
func registerRegex(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"match":     regexMatch,
		"find":      regexFind,
		"find_all":  regexFindAll,
		"replace":   regexReplace,
	})
	deps.L.SetGlobal("regex", tbl)
}

func compileRegex(L *lua.LState, pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		L.RaiseError("regex: invalid pattern %q: %s", pattern, err.Error())
		return nil
	}
	return re
}

func regexMatch(L *lua.LState) int {
	text := L.CheckString(1)
	pattern := L.CheckString(2)

	re := compileRegex(L, pattern)
	if re == nil {
		return 0
	}
	L.Push(lua.LBool(re.MatchString(text)))
	return 1
}

func regexFind(L *lua.LState) int {
	text := L.CheckString(1)
	pattern := L.CheckString(2)

	re := compileRegex(L, pattern)
	if re == nil {
		return 0
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		L.Push(lua.LNil)
		return 1
	}

	result := L.NewTable()
	result.RawSetString("match", lua.LString(match[0]))

	groups := L.NewTable()
	for i := 1; i < len(match); i++ {
		groups.RawSetInt(i, lua.LString(match[i]))
	}
	result.RawSetString("groups", groups)

	L.Push(result)
	return 1
}

func regexFindAll(L *lua.LState) int {
	text := L.CheckString(1)
	pattern := L.CheckString(2)

	re := compileRegex(L, pattern)
	if re == nil {
		return 0
	}

	matches := re.FindAllString(text, -1)
	result := L.NewTable()
	for i, m := range matches {
		result.RawSetInt(i+1, lua.LString(m))
	}
	L.Push(result)
	return 1
}

func regexReplace(L *lua.LState) int {
	text := L.CheckString(1)
	pattern := L.CheckString(2)
	replacement := L.CheckString(3)

	re := compileRegex(L, pattern)
	if re == nil {
		return 0
	}
	L.Push(lua.LString(re.ReplaceAllString(text, replacement)))
	return 1
}
