package websocket

import (
	"sync"

	"go.uber.org/zap"

	"fireside/pkg/types"
)

// Registry owns the live connection state: connection identity to
// connection, user identity to that user's connection set (multi-device),
// and project identity to the room's connection set. No other component
// mutates these maps; everything else goes through the registry's
// operations, which each hold the lock for their full critical section.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection            // connID -> connection
	users       map[string]map[string]*Connection // userID -> connID -> connection
	rooms       map[string]map[string]*Connection // projectID -> connID -> connection
	logger      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		users:       make(map[string]map[string]*Connection),
		rooms:       make(map[string]map[string]*Connection),
		logger:      logger,
	}
}

// Register adds an authenticated connection under its user. A user may
// hold several live connections at once, one per device or tab.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID()] = conn
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]*Connection)
	}
	r.users[userID][conn.ID()] = conn

	return nil
}

// Unregister removes the connection from the user set and from every room
// it had joined, pruning entries that become empty. This is the single
// place all live structures are restored together, in one critical
// section. Running it against an already-removed connection is a no-op.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		return
	}

	delete(r.connections, conn.ID())

	userID := conn.UserID()
	if conns, exists := r.users[userID]; exists {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}

	for _, projectID := range conn.Rooms() {
		if room, exists := r.rooms[projectID]; exists {
			delete(room, conn.ID())
			if len(room) == 0 {
				delete(r.rooms, projectID)
			}
		}
	}
	conn.clearRooms()
}

// JoinRoom subscribes the connection to a project's room, creating the
// room lazily on first join. Joining on a connection that has since
// disconnected returns ErrConnectionNotRegistered, which is how a stale
// authorization result gets discarded instead of reviving dead state.
func (r *Registry) JoinRoom(conn *Connection, projectID string) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		return ErrConnectionNotRegistered
	}

	if r.rooms[projectID] == nil {
		r.rooms[projectID] = make(map[string]*Connection)
	}
	r.rooms[projectID][conn.ID()] = conn
	conn.addRoom(projectID)

	return nil
}

// LeaveRoom unsubscribes the connection from a project's room, removing
// the room entry when its set becomes empty.
func (r *Registry) LeaveRoom(conn *Connection, projectID string) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[projectID]
	if !exists {
		return ErrNotInRoom
	}
	if _, member := room[conn.ID()]; !member {
		return ErrNotInRoom
	}

	delete(room, conn.ID())
	if len(room) == 0 {
		delete(r.rooms, projectID)
	}
	conn.removeRoom(projectID)

	return nil
}

// RoomConnections returns the connections currently in a project's room,
// excluding excludeConnID when non-empty.
func (r *Registry) RoomConnections(projectID, excludeConnID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[projectID]
	if !exists {
		return nil
	}

	connections := make([]*Connection, 0, len(room))
	for connID, conn := range room {
		if connID == excludeConnID {
			continue
		}
		connections = append(connections, conn)
	}
	return connections
}

// UserConnections returns every live connection belonging to a user.
func (r *Registry) UserConnections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, exists := r.users[userID]
	if !exists {
		return nil
	}

	connections := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		connections = append(connections, conn)
	}
	return connections
}

// AllConnections returns every live connection.
func (r *Registry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Stats derives a point-in-time snapshot by walking the maps. It is never
// the source of truth for admission or broadcast decisions.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projectCounts := make(map[string]int, len(r.rooms))
	for projectID, room := range r.rooms {
		projectCounts[projectID] = len(room)
	}

	return types.RegistryStats{
		TotalConnections: len(r.connections),
		ActiveProjects:   len(r.rooms),
		ProjectCounts:    projectCounts,
		UniqueUsers:      len(r.users),
	}
}
