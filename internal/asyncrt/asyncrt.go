// Package asyncrt is the async bridge: a single-goroutine cooperative
// scheduler that lets sandboxed Lua code await native asynchronous work
// (HTTP, DB, WS, sleep, spawned tasks) without ever letting a gopher-lua
// *lua.LState cross goroutines while it's live.
//
// Exactly one goroutine — the scheduler's loop — ever calls into Lua.
// Suspending built-ins hand their blocking work to a throwaway goroutine
// that never touches the LState; when that goroutine finishes it posts its
// result back to the loop, which resumes the waiting coroutine. This
// mirrors Lua's own coroutine.yield/resume contract: a Go function that
// calls Yield ends its own invocation, and the values passed to the
// subsequent Resume become that call's apparent return values.
//
// Host code that needs to re-enter Lua from entirely outside that call
// chain — an http.serve request handler firing on net/http's own goroutine,
// say — uses Invoke, which hands a fresh coroutine to the same loop and
// blocks the caller until it finishes.
package asyncrt

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// pendingResume is posted once a background goroutine's async work has
// produced a result ready to deliver back into the coroutine that awaited it.
type pendingResume struct {
	co     *lua.LState
	values []lua.LValue
}

// invokeRequest asks the loop to run fn(args...) as a new coroutine and
// report back its final return values or error.
type invokeRequest struct {
	fn     *lua.LFunction
	args   []lua.LValue
	result chan<- invokeResult
}

type invokeResult struct {
	values []lua.LValue
	err    error
}

// Scheduler runs the main coroutine and every task spawned from it, one
// resume at a time, on its own internal loop goroutine.
type Scheduler struct {
	Main *lua.LState

	ready  chan pendingResume
	invoke chan invokeRequest
	tasks  sync.WaitGroup

	watchMu  sync.Mutex
	watchers map[*lua.LState]func([]lua.LValue, error)
}

// New wraps an already-constructed, sandboxed *lua.LState. Its loop
// goroutine starts lazily, on the first ExecAsync call.
func New(L *lua.LState) *Scheduler {
	return &Scheduler{
		Main:     L,
		ready:    make(chan pendingResume, 16),
		invoke:   make(chan invokeRequest, 16),
		watchers: make(map[*lua.LState]func([]lua.LValue, error)),
	}
}

// StripShebang skips past a leading "#!...\n" line so a check script saved
// as an executable file still parses as plain Lua.
func StripShebang(src string) string {
	if !strings.HasPrefix(src, "#!") {
		return src
	}
	if idx := strings.IndexByte(src, '\n'); idx >= 0 {
		return src[idx+1:]
	}
	return ""
}

// ExecAsync compiles and runs script to completion on the scheduler's loop
// goroutine, servicing every Await suspension point and spawned task along
// the way. It returns once the top-level chunk has returned and any resumes
// already queued at that moment have been drained; the loop goroutine it
// started keeps servicing background tasks (e.g. an http.serve listener)
// after that, until the VM is closed.
func (s *Scheduler) ExecAsync(script string) error {
	script = StripShebang(script)

	fn, err := s.Main.LoadString(script)
	if err != nil {
		return &CompileError{Err: err}
	}

	errc := make(chan error, 1)
	go s.loop(fn, errc)
	return <-errc
}

// ExecFileAsync reads path via readFile and runs it the same way as
// ExecAsync. A missing file is a runtime error.
func (s *Scheduler) ExecFileAsync(readFile func(string) (string, error), path string) error {
	src, err := readFile(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	return s.ExecAsync(src)
}

// loop is the scheduler's single goroutine. It runs the top-level script to
// completion, reports the result on errc, then keeps servicing ready/invoke
// forever so detached tasks (spawned coroutines, an http.serve listener)
// keep working until the process tears the VM down.
func (s *Scheduler) loop(topLevel *lua.LFunction, errc chan<- error) {
	s.Main.Push(topLevel)
	topErr := s.Main.PCall(0, lua.MultRet, nil)
	if topErr == nil {
		topErr = s.drainOnce()
	}
	errc <- topErr

	for {
		select {
		case pr := <-s.ready:
			st, vals, rerr := s.Main.Resume(pr.co, pr.values...)
			if st != lua.ResumeYield {
				s.reportDone(pr.co, vals, rerr)
			}
		case req := <-s.invoke:
			co, _ := s.Main.NewThread()
			co.Push(req.fn)
			st, vals, err := s.Main.Resume(co, req.args...)
			if st == lua.ResumeYield {
				// The invoked function suspended (e.g. it called http.get);
				// keep pumping ready until this specific coroutine finishes.
				vals, err = s.waitForCoroutine(co)
			}
			req.result <- invokeResult{values: vals, err: err}
		}
	}
}

// waitForCoroutine keeps servicing s.ready (which may resume other
// coroutines too) until co itself returns, then reports its final values.
func (s *Scheduler) waitForCoroutine(co *lua.LState) ([]lua.LValue, error) {
	for pr := range s.ready {
		st, vals, err := s.Main.Resume(pr.co, pr.values...)
		if st == lua.ResumeYield {
			continue
		}
		if pr.co == co {
			return vals, err
		}
		s.reportDone(pr.co, vals, err)
	}
	return nil, fmt.Errorf("scheduler shut down while awaiting coroutine")
}

// drainOnce processes whatever is already queued in s.ready without
// blocking, for the brief window right after the top-level script returns.
func (s *Scheduler) drainOnce() error {
	for {
		select {
		case pr := <-s.ready:
			if _, _, err := s.Main.Resume(pr.co, pr.values...); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Await starts work on its own goroutine and yields the calling coroutine
// co. The scheduler's loop resumes co with whatever work returns once it is
// serviced; from the script's point of view, the call that invoked Await
// simply returns those values once the I/O completes. It must only be
// called from a built-in's Go function while that function is executing as
// part of a Resume on this scheduler's loop goroutine.
func (s *Scheduler) Await(co *lua.LState, work func() []lua.LValue) int {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		values := work()
		s.ready <- pendingResume{co: co, values: values}
	}()
	return co.Yield()
}

// Spawn creates a new coroutine running fn and schedules its first resume.
// It returns the coroutine's LState so callers can build a task handle
// around it (async.spawn).
func (s *Scheduler) Spawn(fn *lua.LFunction) *lua.LState {
	co, _ := s.Main.NewThread()
	co.Push(fn)
	s.ready <- pendingResume{co: co, values: nil}
	return co
}

// Watch registers a callback invoked exactly once, from the loop goroutine,
// when co finishes (returns or errors) rather than yielding again. It must
// be called before co's first resume is queued.
func (s *Scheduler) Watch(co *lua.LState, onDone func([]lua.LValue, error)) {
	s.watchMu.Lock()
	s.watchers[co] = onDone
	s.watchMu.Unlock()
}

// SpawnWatched is Spawn plus Watch: it schedules fn's first resume and
// arranges for onDone to fire once the spawned coroutine finally completes
// (async.spawn's join semantics).
func (s *Scheduler) SpawnWatched(fn *lua.LFunction, onDone func([]lua.LValue, error)) *lua.LState {
	co, _ := s.Main.NewThread()
	if onDone != nil {
		s.Watch(co, onDone)
	}
	co.Push(fn)
	s.ready <- pendingResume{co: co, values: nil}
	return co
}

func (s *Scheduler) reportDone(co *lua.LState, vals []lua.LValue, err error) {
	s.watchMu.Lock()
	cb, ok := s.watchers[co]
	if ok {
		delete(s.watchers, co)
	}
	s.watchMu.Unlock()
	if ok && cb != nil {
		cb(vals, err)
	}
}

// Invoke re-enters Lua from a goroutine that isn't the scheduler's loop
// (an http.serve request handler, most notably): it runs fn(args...) as a
// fresh coroutine on the loop goroutine and blocks the caller until that
// coroutine returns or errors, transparently servicing any suspensions
// (e.g. the handler itself calling db.query) along the way.
func (s *Scheduler) Invoke(fn *lua.LFunction, args []lua.LValue) ([]lua.LValue, error) {
	result := make(chan invokeResult, 1)
	s.invoke <- invokeRequest{fn: fn, args: args, result: result}
	r := <-result
	return r.values, r.err
}

// CompileError wraps a script compilation failure.
type CompileError struct{ Err error }

func (e *CompileError) Error() string { return "compiling script: " + e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// FileError wraps a script-file read failure.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return "reading script file " + e.Path + ": " + e.Err.Error()
}
func (e *FileError) Unwrap() error { return e.Err }
