package builtins

import (
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// registerAsync installs the __raw_async table the prelude's async.spawn/
// async.spawn_interval wrap into task handles (§4.3 "Cooperative tasks").
func registerAsync(deps Deps) {
	a := &asyncModule{deps: deps, tasks: map[int]*taskState{}}
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"spawn":          a.spawn,
		"await":          a.await,
		"spawn_interval": a.spawnInterval,
		"cancel":         a.cancel,
	})
	deps.L.SetGlobal("__raw_async", tbl)

	deps.L.SetGlobal("__raw_sleep", deps.L.NewFunction(func(L *lua.LState) int {
		seconds := L.CheckNumber(1)
		return deps.Scheduler.Await(L, func() []lua.LValue {
			time.Sleep(time.Duration(float64(seconds) * float64(time.Second)))
			return []lua.LValue{lua.LNil}
		})
	}))

	deps.L.SetGlobal("time", deps.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(float64(time.Now().UnixNano()) / float64(time.Second)))
		return 1
	}))
}

// taskState backs one async.spawn handle: a join point (done) populated
// exactly once by the scheduler's completion callback, and an awaited flag
// enforcing that handle:await() may be called at most once.
type taskState struct {
	done    chan struct{}
	values  []lua.LValue
	err     error
	awaited int32

	cancelled int32 // spawn_interval only
}

type asyncModule struct {
	deps Deps

	mu     sync.Mutex
	tasks  map[int]*taskState
	nextID int
}

func (a *asyncModule) register(st *taskState) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.tasks[id] = st
	return id
}

func (a *asyncModule) lookup(id int) (*taskState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.tasks[id]
	return st, ok
}

func (a *asyncModule) spawn(L *lua.LState) int {
	fn := L.CheckFunction(1)

	st := &taskState{done: make(chan struct{})}
	id := a.register(st)

	a.deps.Scheduler.SpawnWatched(fn, func(vals []lua.LValue, err error) {
		st.values = vals
		st.err = err
		close(st.done)
	})

	L.Push(lua.LNumber(id))
	return 1
}

// await implements handle:await(): blocks (cooperatively, via
// Scheduler.Await) until the task's completion callback has fired, then
// returns its return values as an array table, or the sentinel error table
// checkasync() re-raises as a Lua error.
func (a *asyncModule) await(L *lua.LState) int {
	id := L.CheckInt(1)

	st, ok := a.lookup(id)
	if !ok {
		L.RaiseError("async: unknown task handle %d", id)
		return 0
	}
	if !atomic.CompareAndSwapInt32(&st.awaited, 0, 1) {
		L.RaiseError("async handle already awaited")
		return 0
	}

	return a.deps.Scheduler.Await(L, func() []lua.LValue {
		<-st.done
		if st.err != nil {
			return []lua.LValue{asyncErrTable(L, st.err)}
		}
		arr := L.NewTable()
		for i, v := range st.values {
			arr.RawSetInt(i+1, v)
		}
		return []lua.LValue{arr}
	})
}

// spawnInterval implements async.spawn_interval(seconds, fn): fn fires
// every `seconds`, starting after the first interval (time.Ticker does not
// fire on creation, so every tick invokes fn). A raised error
// inside fn stops the interval and is logged, never propagated to the
// spawner.
func (a *asyncModule) spawnInterval(L *lua.LState) int {
	seconds := float64(L.CheckNumber(1))
	fn := L.CheckFunction(2)

	st := &taskState{done: make(chan struct{})}
	id := a.register(st)

	go func() {
		interval := time.Duration(seconds * float64(time.Second))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if atomic.LoadInt32(&st.cancelled) != 0 {
				return
			}
			_, err := a.deps.Scheduler.Invoke(fn, nil)
			if err != nil {
				a.deps.Logger.Error("async.spawn_interval: handler error, stopping interval",
					zapError(err))
				return
			}
			if atomic.LoadInt32(&st.cancelled) != 0 {
				return
			}
		}
	}()

	L.Push(lua.LNumber(id))
	return 1
}

func (a *asyncModule) cancel(L *lua.LState) int {
	id := L.CheckInt(1)
	st, ok := a.lookup(id)
	if !ok {
		L.RaiseError("async: unknown task handle %d", id)
		return 0
	}
	atomic.StoreInt32(&st.cancelled, 1)
	return 0
}
