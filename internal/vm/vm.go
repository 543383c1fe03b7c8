// Package vm builds fresh, sandboxed gopher-lua interpreters: the runtime's
// script execution unit. Every Script check gets its own VM; built-ins are
// registered once per VM; a per-check environment map shadows the process
// environment for that VM's lifetime.
package vm

import (
	"fmt"
	"net/http"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/assayrun/assay/internal/asyncrt"
	"github.com/assayrun/assay/internal/builtins"
	"github.com/assayrun/assay/internal/memguard"
	"github.com/assayrun/assay/internal/metrics"
)

// Options configures a fresh VM.
type Options struct {
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client

	// Modules backs the script-visible require(); name -> source text.
	// Module discovery that populates this map is out of scope.
	Modules map[string]string
}

// VM is a single interpreter instance with the sandbox applied, built-ins
// registered, and a per-check environment table.
type VM struct {
	L         *lua.LState
	Scheduler *asyncrt.Scheduler
	guard     *memguard.MemGuard
	logger    *zap.Logger

	checkEnv map[string]string
}

// New constructs a sandboxed VM. It fails only if the host cannot allocate
// the interpreter.
func New(opts Options) (*VM, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       256,
		RegistrySize:        1024 * 20,
		RegistryMaxSize:     1024 * 200,
		IncludeGoStackTrace: true,
	})
	if L == nil {
		return nil, fmt.Errorf("creating Lua VM")
	}

	openSafeLibs(L)
	removeDangerous(L)

	v := &VM{
		L:         L,
		Scheduler: asyncrt.New(L),
		guard:     memguard.NewMemGuard(),
		logger:    opts.Logger,
		checkEnv:  map[string]string{},
	}

	deps := builtins.Deps{
		L:          L,
		Scheduler:  v.Scheduler,
		MemGuard:   v.guard,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
		HTTPClient: opts.HTTPClient,
		EnvGet:     v.envGet,
	}
	if err := builtins.RegisterAll(deps); err != nil {
		L.Close()
		return nil, fmt.Errorf("creating Lua VM: %w", err)
	}

	if err := loadPrelude(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("creating Lua VM: %w", err)
	}

	modules := opts.Modules
	if modules == nil {
		modules = map[string]string{}
	}
	registerRequire(L, modules)

	return v, nil
}

// RegisterEnv injects a check's env map. It is additive across multiple
// calls within one VM lifetime: later writes shadow earlier ones for the
// same key.
func (v *VM) RegisterEnv(env map[string]string) {
	for k, val := range env {
		v.checkEnv[k] = val
	}
}

// envGet backs the env.get built-in: check-local env first, process env as
// fallback. Once a key is shadowed, later calls in the same VM keep seeing
// the shadow — there is no way back to the process value for that key.
func (v *VM) envGet(name string) (string, bool) {
	if val, ok := v.checkEnv[name]; ok {
		return val, true
	}
	return os.LookupEnv(name)
}

// Close releases the underlying interpreter. Call when the owning check
// returns (VM lifetime is scoped to one Script check).
func (v *VM) Close() {
	v.L.Close()
}
