package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fireside/pkg/types"
)

// Connection wraps one WebSocket link. Writes are serialized through a
// single goroutine so concurrent fan-outs never interleave frames. The
// identity fields are set exactly once, after handshake authentication,
// before the connection is ever registered.
type Connection struct {
	id      string
	conn    *websocket.Conn
	writeCh chan []byte

	userID          string
	userName        string
	authenticated   bool
	authenticatedAt time.Time

	// rooms is the connection's own view of its memberships. The registry
	// mutates it in lockstep with the room maps so the two stay
	// bidirectionally consistent.
	rooms map[string]struct{}

	// pendingJoins guards against a second join for the same project while
	// an authorization lookup is still in flight.
	pendingJoins map[string]struct{}

	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	mu           sync.RWMutex
}

// NewConnection creates a connection wrapper and starts its writer
// goroutine.
func NewConnection(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		rooms:        make(map[string]struct{}),
		pendingJoins: make(map[string]struct{}),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer for the underlying socket.
func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
		close(c.writeCh)
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}

			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for the writer goroutine. Writing to
// a closed connection returns ErrConnectionClosed; callers treating sends
// as fire-and-forget may ignore it.
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// WriteEvent sends a protocol event to this connection.
func (c *Connection) WriteEvent(event *types.Event) error {
	return c.WriteJSON(event)
}

// Close tears down the connection. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ID returns the connection identity, unique per physical link.
func (c *Connection) ID() string {
	return c.id
}

// SetIdentity binds the connection to its authenticated user.
func (c *Connection) SetIdentity(user *types.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userID = user.ID
	c.userName = user.Name
	c.authenticated = true
	c.authenticatedAt = time.Now()
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

func (c *Connection) AuthenticatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticatedAt
}

// InRoom reports whether the connection has joined the project's room.
func (c *Connection) InRoom(projectID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[projectID]
	return ok
}

// Rooms returns the projects this connection has joined.
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for projectID := range c.rooms {
		rooms = append(rooms, projectID)
	}
	return rooms
}

// BeginJoin marks a join attempt as in flight. It returns false when a
// join for the same project is already pending on this connection, in
// which case the new attempt must be dropped.
func (c *Connection) BeginJoin(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, pending := c.pendingJoins[projectID]; pending {
		return false
	}
	c.pendingJoins[projectID] = struct{}{}
	return true
}

// EndJoin clears the in-flight mark once the join attempt resolved.
func (c *Connection) EndJoin(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingJoins, projectID)
}

// addRoom, removeRoom, and clearRooms are called only by the registry
// while it holds its own lock, keeping room maps and membership sets in
// step.
func (c *Connection) addRoom(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[projectID] = struct{}{}
}

func (c *Connection) removeRoom(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, projectID)
}

func (c *Connection) clearRooms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[string]struct{})
}
