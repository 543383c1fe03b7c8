package builtins

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	lua "github.com/yuin/gopher-lua"
)

// registerWS installs the __raw_ws table the prelude's ws.* wraps. Text
// frames only.
func registerWS(deps Deps) {
	w := &wsModule{deps: deps, conns: map[int]*websocket.Conn{}}
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"connect": w.connect,
		"send":    w.send,
		"recv":    w.recv,
		"close":   w.close,
	})
	deps.L.SetGlobal("__raw_ws", tbl)
}

type wsModule struct {
	deps Deps

	mu     sync.Mutex
	conns  map[int]*websocket.Conn
	nextID int
}

func (w *wsModule) connect(L *lua.LState) int {
	url := L.CheckString(1)

	return w.deps.Scheduler.Await(L, func() []lua.LValue {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("ws.connect: %w", err))}
		}

		w.mu.Lock()
		w.nextID++
		id := w.nextID
		w.conns[id] = conn
		w.mu.Unlock()

		return []lua.LValue{lua.LNumber(id)}
	})
}

func (w *wsModule) lookup(id int) (*websocket.Conn, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn, ok := w.conns[id]
	return conn, ok
}

func (w *wsModule) send(L *lua.LState) int {
	id := L.CheckInt(1)
	msg := L.CheckString(2)

	conn, ok := w.lookup(id)
	if !ok {
		L.RaiseError("ws.send: unknown connection handle %d", id)
		return 0
	}

	return w.deps.Scheduler.Await(L, func() []lua.LValue {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("ws.send: %w", err))}
		}
		return []lua.LValue{lua.LNil}
	})
}

func (w *wsModule) recv(L *lua.LState) int {
	id := L.CheckInt(1)

	conn, ok := w.lookup(id)
	if !ok {
		L.RaiseError("ws.recv: unknown connection handle %d", id)
		return 0
	}

	return w.deps.Scheduler.Await(L, func() []lua.LValue {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("ws.recv: %w", err))}
		}
		return []lua.LValue{lua.LString(data)}
	})
}

func (w *wsModule) close(L *lua.LState) int {
	id := L.CheckInt(1)

	w.mu.Lock()
	conn, ok := w.conns[id]
	if ok {
		delete(w.conns, id)
	}
	w.mu.Unlock()

	if !ok {
		L.RaiseError("ws.close: unknown connection handle %d", id)
		return 0
	}

	return w.deps.Scheduler.Await(L, func() []lua.LValue {
		if err := conn.Close(); err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("ws.close: %w", err))}
		}
		return []lua.LValue{lua.LNil}
	})
}
