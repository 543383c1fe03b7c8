package memguard

import (
	"fmt"
	"sync/atomic"
)

// MemoryLimitBytes is the per-VM memory cap: 64 MiB.
const MemoryLimitBytes = 64 * 1024 * 1024

// MemGuard approximates gopher-lua's missing byte-accounted allocator by
// tracking the dominant external allocation sources built-ins pull into the
// VM: HTTP response bodies and fs.read contents. DB rows and WS messages
// are not charged. Pure in-Lua table growth isn't observable
// without patching the interpreter's allocator, so it isn't counted; see
// DESIGN.md for the accepted approximation.
type MemGuard struct {
	used  int64
	limit int64
}

// NewMemGuard creates a guard with the standard 64 MiB limit.
func NewMemGuard() *MemGuard {
	return &MemGuard{limit: MemoryLimitBytes}
}

// Charge records n additional bytes pulled into the VM by a built-in. It
// returns an error once the cumulative total exceeds the limit; the caller
// (a built-in) turns that into a Lua runtime error at the call site.
func (g *MemGuard) Charge(n int) error {
	total := atomic.AddInt64(&g.used, int64(n))
	if total > g.limit {
		return fmt.Errorf("memory limit exceeded: VM has allocated %d bytes, limit is %d bytes", total, g.limit)
	}
	return nil
}

// Used returns the current tracked allocation total.
func (g *MemGuard) Used() int64 {
	return atomic.LoadInt64(&g.used)
}
