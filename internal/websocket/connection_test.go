package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fireside/pkg/types"
)

func TestConnectionIdentity(t *testing.T) {
	serverConn, _ := newSocketPair(t)
	conn := NewConnection(serverConn, 16, time.Second)
	defer conn.Close()

	assert.NotEmpty(t, conn.ID())
	assert.False(t, conn.IsAuthenticated())
	assert.Empty(t, conn.UserID())

	conn.SetIdentity(testUser("u1", "Grandma Rosa"))

	assert.True(t, conn.IsAuthenticated())
	assert.Equal(t, "u1", conn.UserID())
	assert.Equal(t, "Grandma Rosa", conn.UserName())
	assert.False(t, conn.AuthenticatedAt().IsZero())
}

func TestConnectionWriteEvent(t *testing.T) {
	conn, client := newTestConnection(t, testUser("u1", "Rosa"))

	require.NoError(t, conn.WriteEvent(&types.Event{
		Type: types.EventPong,
		Data: map[string]any{"projectId": "p1"},
	}))

	event := readEvent(t, client)
	assert.Equal(t, types.EventPong, event.Type)
	assert.Equal(t, "p1", event.DataString("projectId"))
}

func TestConnectionWriteAfterClose(t *testing.T) {
	conn, _ := newTestConnection(t, testUser("u1", "Rosa"))

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "close is idempotent")

	err := conn.WriteEvent(&types.Event{Type: types.EventPong})
	assert.ErrorIs(t, err, ErrConnectionClosed)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConnectionJoinGuard(t *testing.T) {
	conn, _ := newTestConnection(t, testUser("u1", "Rosa"))

	assert.True(t, conn.BeginJoin("p1"))
	assert.False(t, conn.BeginJoin("p1"), "duplicate join while pending is refused")
	assert.True(t, conn.BeginJoin("p2"), "other projects are independent")

	conn.EndJoin("p1")
	assert.True(t, conn.BeginJoin("p1"), "resolved joins may be retried")
}

func TestConnectionRooms(t *testing.T) {
	conn, _ := newTestConnection(t, testUser("u1", "Rosa"))

	assert.False(t, conn.InRoom("p1"))
	assert.Empty(t, conn.Rooms())

	conn.addRoom("p1")
	conn.addRoom("p2")
	assert.True(t, conn.InRoom("p1"))
	assert.ElementsMatch(t, []string{"p1", "p2"}, conn.Rooms())

	conn.removeRoom("p1")
	assert.False(t, conn.InRoom("p1"))

	conn.clearRooms()
	assert.Empty(t, conn.Rooms())
}
