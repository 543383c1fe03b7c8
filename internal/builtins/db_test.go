package builtins_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBConnectQueryExecuteClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "assay.db")
	script := fmt.Sprintf(`
local conn = db.connect("sqlite://%s")
db.execute(conn, "create table items(id integer primary key, name text)")
db.execute(conn, "insert into items(name) values (?)", {"widget"})

local rows = db.query(conn, "select id, name from items")
assert.eq(#rows, 1)
assert.eq(rows[1].name, "widget")

db.close(conn)
`, dbPath)
	err := run(t, script)
	assert.NoError(t, err)
}

func TestDBConnectUnknownScheme(t *testing.T) {
	err := run(t, `db.connect("redis://localhost:6379")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognised URL scheme")
}

func TestDBQueryOnUnknownHandle(t *testing.T) {
	err := run(t, `db.query(999, "select 1")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown connection handle")
}
