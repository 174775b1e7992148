package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fireside/pkg/types"
)

// newSocketPair upgrades a real WebSocket over an httptest server and
// returns both ends. The server side is what production code wraps; the
// client side lets tests observe what the server wrote.
func newSocketPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	serverCh := make(chan *websocket.Conn, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
	}
	t.Cleanup(func() { server.Close() })

	return server, client
}

// newTestConnection returns an authenticated connection wrapper over a
// live socket, plus the client end for reading its writes.
func newTestConnection(t *testing.T, user *types.User) (*Connection, *websocket.Conn) {
	t.Helper()

	serverConn, clientConn := newSocketPair(t)
	conn := NewConnection(serverConn, 16, time.Second)
	t.Cleanup(func() { conn.Close() })
	conn.SetIdentity(user)

	return conn, clientConn
}

// readEvent reads one frame from the client side and decodes it.
func readEvent(t *testing.T, client *websocket.Conn) *types.Event {
	t.Helper()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	event, err := types.DecodeEvent(data)
	require.NoError(t, err)
	return event
}

func testUser(id, name string) *types.User {
	return &types.User{ID: id, Name: name}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
