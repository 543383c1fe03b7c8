package vm

import (
	"os"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVM(t *testing.T) *VM {
	t.Helper()
	machine, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(machine.Close)
	return machine
}

func TestForbiddenGlobalsAreAbsent(t *testing.T) {
	machine := newTestVM(t)
	for _, name := range forbiddenGlobals {
		if name == "require" {
			// The host require is replaced by the registry-backed one,
			// which resolves only registered module names.
			err := machine.L.DoString(`require("os")`)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "module not found: os")
			continue
		}
		assert.Equal(t, lua.LNil, machine.L.GetGlobal(name), "global %q must be stripped", name)
	}
}

func TestStringDumpIsStripped(t *testing.T) {
	machine := newTestVM(t)
	strLib, ok := machine.L.GetGlobal("string").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LNil, strLib.RawGetString("dump"))
}

func TestSafeLibsArePresent(t *testing.T) {
	machine := newTestVM(t)
	assert.NotEqual(t, lua.LNil, machine.L.GetGlobal("string"))
	assert.NotEqual(t, lua.LNil, machine.L.GetGlobal("table"))
	assert.NotEqual(t, lua.LNil, machine.L.GetGlobal("math"))
	assert.NotEqual(t, lua.LNil, machine.L.GetGlobal("coroutine"))
}

func TestUnsafeLibsAreAbsent(t *testing.T) {
	machine := newTestVM(t)
	assert.Equal(t, lua.LNil, machine.L.GetGlobal("os"))
	assert.Equal(t, lua.LNil, machine.L.GetGlobal("io"))
	assert.Equal(t, lua.LNil, machine.L.GetGlobal("debug"))
	assert.Equal(t, lua.LNil, machine.L.GetGlobal("package"))
}

func TestAssertEqPassesThroughScheduler(t *testing.T) {
	machine := newTestVM(t)
	err := machine.Scheduler.ExecAsync(`assert.eq(1 + 1, 2)`)
	assert.NoError(t, err)
}

func TestAssertEqFailureRaisesScriptError(t *testing.T) {
	machine := newTestVM(t)
	err := machine.Scheduler.ExecAsync(`assert.eq(1, 2, "math is broken")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "math is broken")
}

func TestJSONRoundTripThroughScript(t *testing.T) {
	machine := newTestVM(t)
	err := machine.Scheduler.ExecAsync(`
local encoded = json.encode({name = "assay", ok = true})
local decoded = json.parse(encoded)
assert.eq(decoded.name, "assay")
assert.eq(decoded.ok, true)
`)
	assert.NoError(t, err)
}

func TestEnvShadowing(t *testing.T) {
	os.Setenv("ASSAY_TEST_VAR", "from-process")
	t.Cleanup(func() { os.Unsetenv("ASSAY_TEST_VAR") })

	machine := newTestVM(t)
	val, ok := machine.envGet("ASSAY_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-process", val)

	machine.RegisterEnv(map[string]string{"ASSAY_TEST_VAR": "from-check"})
	val, ok = machine.envGet("ASSAY_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-check", val)
}

func TestEnvGetFallsBackToProcessEnv(t *testing.T) {
	machine := newTestVM(t)
	_, ok := machine.envGet("ASSAY_TEST_VAR_DOES_NOT_EXIST")
	assert.False(t, ok)
}

func TestStripShebangViaScheduler(t *testing.T) {
	machine := newTestVM(t)
	err := machine.Scheduler.ExecAsync("#!/usr/bin/env assay\nassert.eq(1, 1)")
	assert.NoError(t, err)
}
