package builtins_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assayrun/assay/internal/vm"
)

// These tests exercise the built-in surface the way a script actually would,
// end to end through a real sandboxed VM, rather than unit-testing each
// LGFunction in isolation.

func newScriptVM(t *testing.T) *vm.VM {
	t.Helper()
	machine, err := vm.New(vm.Options{})
	require.NoError(t, err)
	t.Cleanup(machine.Close)
	return machine
}

func run(t *testing.T, script string) error {
	t.Helper()
	machine := newScriptVM(t)
	return machine.Scheduler.ExecAsync(script)
}

func TestBase64RoundTripEncoding(t *testing.T) {
	err := run(t, `
local encoded = base64.encode("hello assay")
assert.eq(encoded, "aGVsbG8gYXNzYXk=")
assert.eq(base64.decode(encoded), "hello assay")
`)
	assert.NoError(t, err)
}

func TestBase64DecodeInvalidUTF8Fails(t *testing.T) {
	err := run(t, `base64.decode("//4=")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base64.decode")
}

func TestRegexMatchAndFindAll(t *testing.T) {
	err := run(t, `
assert.eq(regex.match("hello123", "^[a-z]+%d+$"), false)
assert.eq(regex.match("hello123", "^[a-z]+[0-9]+$"), true)

local all = regex.find_all("a1 b2 c3", "[a-z][0-9]")
assert.eq(#all, 3)
assert.eq(all[1], "a1")
`)
	assert.NoError(t, err)
}

func TestRegexReplace(t *testing.T) {
	err := run(t, `
local out = regex.replace("2026-07-31", "-", "/")
assert.eq(out, "2026/07/31")
`)
	assert.NoError(t, err)
}

func TestRegexFindGroups(t *testing.T) {
	err := run(t, `
local m = regex.find("order-42", "order-([0-9]+)")
assert.not_nil(m)
assert.eq(m.match, "order-42")
assert.eq(m.groups[1], "42")
`)
	assert.NoError(t, err)
}

func TestCryptoHashSHA256Correct(t *testing.T) {
	err := run(t, `
local sum = crypto.hash("abc", "sha256")
assert.eq(sum, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
`)
	assert.NoError(t, err)
}

func TestCryptoHMACHex(t *testing.T) {
	err := run(t, `
local mac = crypto.hmac("key", "message", "sha256")
assert.eq(#mac, 64)
`)
	assert.NoError(t, err)
}

func TestCryptoRandomLength(t *testing.T) {
	err := run(t, `
local token = crypto.random(16)
assert.eq(#token, 16)
assert.eq(regex.match(token, "^[A-Za-z0-9]+$"), true)
`)
	assert.NoError(t, err)
}

func TestCryptoUnsupportedAlgorithm(t *testing.T) {
	err := run(t, `crypto.hash("abc", "md5")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported hash algorithm")
}

func TestJSONEncodeArrayVsObject(t *testing.T) {
	err := run(t, `
local arr = json.encode({1, 2, 3})
assert.eq(arr, "[1,2,3]")

local obj = json.parse('{"a":1,"b":2}')
assert.eq(obj.a, 1)
assert.eq(obj.b, 2)
`)
	assert.NoError(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	err := run(t, `
local doc = yaml.parse("name: assay\nok: true\n")
assert.eq(doc.name, "assay")
assert.eq(doc.ok, true)

local encoded = yaml.encode({name = "assay"})
local reparsed = yaml.parse(encoded)
assert.eq(reparsed.name, "assay")
`)
	assert.NoError(t, err)
}

func TestTOMLRoundTrip(t *testing.T) {
	err := run(t, `
local doc = toml.parse('name = "assay"\nport = 8080\n')
assert.eq(doc.name, "assay")
assert.eq(doc.port, 8080)
`)
	assert.NoError(t, err)
}

func TestAssertContains(t *testing.T) {
	err := run(t, `assert.contains("deployment ready", "ready")`)
	assert.NoError(t, err)
}

func TestAssertMatchesUsesRE2Syntax(t *testing.T) {
	// "%." would be a Lua-pattern escape; assert.matches is RE2-backed
	// (stdlib regexp), where "%" is an ordinary literal character, so this
	// does not match "v1.2.3" and the assertion fails.
	err := run(t, `assert.matches("v1.2.3", "^v[0-9]+%.[0-9]+%.[0-9]+$")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	err = run(t, `assert.matches("v1.2.3", "^v[0-9]+\\.[0-9]+\\.[0-9]+$")`)
	assert.NoError(t, err)
}

func TestAssertGtLt(t *testing.T) {
	err := run(t, `
assert.gt(5, 3)
assert.lt(3, 5)
`)
	assert.NoError(t, err)
}

func TestAssertNotNilFailure(t *testing.T) {
	err := run(t, `assert.not_nil(nil, "expected a value")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a value")
}

func TestLogAndEnvBuiltins(t *testing.T) {
	err := run(t, `
log.info("hello")
log.warn("careful")
assert.eq(env.get("ASSAY_DOES_NOT_EXIST"), nil)
`)
	assert.NoError(t, err)
}

func TestSandboxRejectsDangerousGlobals(t *testing.T) {
	err := run(t, `load("return 1")()`)
	require.Error(t, err)
}

func TestAsyncSpawnAndAwait(t *testing.T) {
	err := run(t, `
local handle = async.spawn(function()
  sleep(0.05)
  return 42
end)
local results = handle:await()
assert.eq(results[1], 42)
`)
	assert.NoError(t, err)
}

func TestAsyncAwaitTwiceFails(t *testing.T) {
	err := run(t, `
local handle = async.spawn(function() return 1 end)
handle:await()
handle:await()
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already awaited")
}

func TestAsyncSpawnIntervalCancel(t *testing.T) {
	err := run(t, `
local ticks = 0
local handle = async.spawn_interval(0.02, function()
  ticks = ticks + 1
end)
sleep(0.07)
handle:cancel()
assert.gt(ticks, 0)
`)
	assert.NoError(t, err)
}

func TestTemplateRenderString(t *testing.T) {
	err := run(t, `
local out = template.render_string("Hello {{ name }}!", {name = "assay"})
assert.eq(out, "Hello assay!")
`)
	assert.NoError(t, err)
}
