package builtins

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/assayrun/assay/internal/errfmt"
)

// registerAssert installs assert.eq/gt/lt/contains/not_nil/matches. Every
// failure raises a Lua error so the enclosing check becomes passed=false.
func registerAssert(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"eq":        assertEq,
		"gt":        assertGt,
		"lt":        assertLt,
		"contains":  assertContains,
		"not_nil":   assertNotNil,
		"matches":   assertMatches,
	})
	deps.L.SetGlobal("assert", tbl)
}

// luaValuesEqual implements a coherent cross-type equality: nil==nil;
// booleans equal pairwise; integers/numbers compared by mathematical value
// (cross-typed equality within epsilon); strings compared by bytes.
func luaValuesEqual(a, b lua.LValue) bool {
	if a == lua.LNil || b == lua.LNil {
		return a == lua.LNil && b == lua.LNil
	}
	if an, ok := a.(lua.LNumber); ok {
		if bn, ok := b.(lua.LNumber); ok {
			return math.Abs(float64(an)-float64(bn)) < 1e-9
		}
		return false
	}
	if ab, ok := a.(lua.LBool); ok {
		if bb, ok := b.(lua.LBool); ok {
			return bool(ab) == bool(bb)
		}
		return false
	}
	if as, ok := a.(lua.LString); ok {
		if bs, ok := b.(lua.LString); ok {
			return string(as) == string(bs)
		}
		return false
	}
	return a == b
}

func formatOperand(v lua.LValue) string {
	if v == nil {
		return "nil"
	}
	return v.String()
}

func assertEq(L *lua.LState) int {
	a := L.CheckAny(1)
	b := L.CheckAny(2)
	msg := L.OptString(3, "")

	if !luaValuesEqual(a, b) {
		base := fmt.Sprintf("assert.eq failed: expected %s, got %s", formatOperand(b), formatOperand(a))
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}

func assertGt(L *lua.LState) int {
	a := L.CheckNumber(1)
	b := L.CheckNumber(2)
	msg := L.OptString(3, "")

	if !(float64(a) > float64(b)) {
		base := fmt.Sprintf("assert.gt failed: %s is not greater than %s", a.String(), b.String())
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}

func assertLt(L *lua.LState) int {
	a := L.CheckNumber(1)
	b := L.CheckNumber(2)
	msg := L.OptString(3, "")

	if !(float64(a) < float64(b)) {
		base := fmt.Sprintf("assert.lt failed: %s is not less than %s", a.String(), b.String())
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}

func assertContains(L *lua.LState) int {
	haystack := L.CheckString(1)
	needle := L.CheckString(2)
	msg := L.OptString(3, "")

	if !strings.Contains(haystack, needle) {
		base := fmt.Sprintf("assert.contains failed: %q does not contain %q", haystack, needle)
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}

func assertNotNil(L *lua.LState) int {
	v := L.CheckAny(1)
	msg := L.OptString(2, "")

	if v == lua.LNil {
		base := "assert.not_nil failed: value is nil"
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}

func assertMatches(L *lua.LState) int {
	text := L.CheckString(1)
	pattern := L.CheckString(2)
	msg := L.OptString(3, "")

	re, err := regexp.Compile(pattern)
	if err != nil {
		L.RaiseError("assert.matches: invalid pattern %q: %s", pattern, err.Error())
		return 0
	}
	if !re.MatchString(text) {
		base := fmt.Sprintf("assert.matches failed: %q does not match %q", text, pattern)
		L.RaiseError("%s", errfmt.WithMessage(base, msg))
		return 0
	}
	return 0
}
