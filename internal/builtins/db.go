package builtins

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	lua "github.com/yuin/gopher-lua"
)

// registerDB installs the __raw_db table the prelude's db.* wraps.
// db.query/db.execute/db.connect/db.close are all suspension points, so
// every entry point goes through Scheduler.Await.
func registerDB(deps Deps) {
	d := &dbModule{deps: deps, conns: map[int]*sql.DB{}}
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"connect": d.connect,
		"query":   d.query,
		"execute": d.execute,
		"close":   d.close,
	})
	deps.L.SetGlobal("__raw_db", tbl)
}

type dbModule struct {
	deps Deps

	mu     sync.Mutex
	conns  map[int]*sql.DB
	nextID int
}

// dialectFor resolves a db.connect URL's scheme into a database/sql driver
// name and a driver-specific DSN: the scheme determines dialect
// (sqlite:/postgres:/mysql:); pool size is 1 for sqlite, 5 otherwise.
func dialectFor(url string) (driver, dsn string, poolSize int, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite:"):
		dsn = strings.TrimPrefix(url, "sqlite:")
		dsn = strings.TrimPrefix(dsn, "//")
		return "sqlite3", dsn, 1, nil
	case strings.HasPrefix(url, "postgres:"):
		return "postgres", url, 5, nil
	case strings.HasPrefix(url, "mysql:"):
		dsn = strings.TrimPrefix(url, "mysql:")
		dsn = strings.TrimPrefix(dsn, "//")
		return "mysql", dsn, 5, nil
	default:
		return "", "", 0, fmt.Errorf("db.connect: unrecognised URL scheme in %q", url)
	}
}

func (d *dbModule) connect(L *lua.LState) int {
	url := L.CheckString(1)

	return d.deps.Scheduler.Await(L, func() []lua.LValue {
		driver, dsn, poolSize, err := dialectFor(url)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, err)}
		}
		conn, err := sql.Open(driver, dsn)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.connect: %w", err))}
		}
		conn.SetMaxOpenConns(poolSize)

		if err := conn.Ping(); err != nil {
			conn.Close()
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.connect: %w", err))}
		}

		d.mu.Lock()
		d.nextID++
		id := d.nextID
		d.conns[id] = conn
		d.mu.Unlock()

		return []lua.LValue{lua.LNumber(id)}
	})
}

func (d *dbModule) lookup(id int) (*sql.DB, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[id]
	return conn, ok
}

// paramsFromTable converts the ordered params array (nil/bool/int/number/
// string) into driver args.
func paramsFromTable(tbl *lua.LTable) ([]any, error) {
	if tbl == nil {
		return nil, nil
	}
	goVal, err := ToGo(tbl)
	if err != nil {
		return nil, err
	}
	arr, ok := goVal.([]any)
	if !ok {
		return nil, fmt.Errorf("params must be an array")
	}
	return arr, nil
}

func (d *dbModule) query(L *lua.LState) int {
	id := L.CheckInt(1)
	query := L.CheckString(2)
	var paramsTbl *lua.LTable
	if t, ok := L.Get(3).(*lua.LTable); ok {
		paramsTbl = t
	}

	conn, ok := d.lookup(id)
	if !ok {
		L.RaiseError("db.query: unknown connection handle %d", id)
		return 0
	}
	params, err := paramsFromTable(paramsTbl)
	if err != nil {
		L.RaiseError("db.query: %s", err.Error())
		return 0
	}

	return d.deps.Scheduler.Await(L, func() []lua.LValue {
		rows, err := conn.Query(query, params...)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.query: %w", err))}
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.query: %w", err))}
		}

		result := L.NewTable()
		rowIdx := 0
		for rows.Next() {
			scanDest := make([]any, len(cols))
			scanPtrs := make([]any, len(cols))
			for i := range scanDest {
				scanPtrs[i] = &scanDest[i]
			}
			if err := rows.Scan(scanPtrs...); err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.query: %w", err))}
			}

			rowTbl := L.NewTable()
			for i, col := range cols {
				rowTbl.RawSetString(col, sqlValueToLua(L, scanDest[i]))
			}
			rowIdx++
			result.RawSetInt(rowIdx, rowTbl)
		}
		if err := rows.Err(); err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.query: %w", err))}
		}

		return []lua.LValue{result}
	})
}

// sqlValueToLua maps a scanned column value onto its Lua equivalent:
// boolean->bool, integer-family->integer, float/numeric->number, everything
// else (including []byte text and time.Time)->string. NULL becomes nil.
func sqlValueToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []byte:
		return lua.LString(val)
	case string:
		return lua.LString(val)
	case time.Time:
		return lua.LString(val.Format(time.RFC3339))
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

func (d *dbModule) execute(L *lua.LState) int {
	id := L.CheckInt(1)
	query := L.CheckString(2)
	var paramsTbl *lua.LTable
	if t, ok := L.Get(3).(*lua.LTable); ok {
		paramsTbl = t
	}

	conn, ok := d.lookup(id)
	if !ok {
		L.RaiseError("db.execute: unknown connection handle %d", id)
		return 0
	}
	params, err := paramsFromTable(paramsTbl)
	if err != nil {
		L.RaiseError("db.execute: %s", err.Error())
		return 0
	}

	return d.deps.Scheduler.Await(L, func() []lua.LValue {
		res, err := conn.Exec(query, params...)
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.execute: %w", err))}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.execute: %w", err))}
		}

		result := L.NewTable()
		result.RawSetString("rows_affected", lua.LNumber(affected))
		return []lua.LValue{result}
	})
}

func (d *dbModule) close(L *lua.LState) int {
	id := L.CheckInt(1)

	d.mu.Lock()
	conn, ok := d.conns[id]
	if ok {
		delete(d.conns, id)
	}
	d.mu.Unlock()

	if !ok {
		L.RaiseError("db.close: unknown connection handle %d", id)
		return 0
	}

	return d.deps.Scheduler.Await(L, func() []lua.LValue {
		if err := conn.Close(); err != nil {
			return []lua.LValue{asyncErrTable(L, fmt.Errorf("db.close: %w", err))}
		}
		return []lua.LValue{lua.LNil}
	})
}
