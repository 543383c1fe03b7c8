package builtins_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoWSServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSConnectSendRecvClose(t *testing.T) {
	url := newEchoWSServer(t)
	script := fmt.Sprintf(`
local conn = ws.connect("%s")
ws.send(conn, "hello assay")
local reply = ws.recv(conn)
assert.eq(reply, "hello assay")
ws.close(conn)
`, url)
	err := run(t, script)
	assert.NoError(t, err)
}

func TestWSSendOnUnknownHandle(t *testing.T) {
	err := run(t, `ws.send(999, "hi")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown connection handle")
}
