package router

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fireside/internal/websocket"
	"fireside/pkg/types"
)

// Broadcaster fans an event out to a project room. Implemented by the hub;
// declared locally so the router can be tested with a capture fake.
type Broadcaster interface {
	BroadcastToProject(projectID string, event *types.Event, excludeConnID string) error
}

// AuthorizationGate answers room-join authorization checks.
type AuthorizationGate interface {
	Authorize(ctx context.Context, userID, projectID string) bool
}

// Router drives authenticated connections through their event lifecycle:
// every client event passes the rate limiter first, joins pass the
// authorization gate, and registry mutations happen only here and in the
// handler's disconnect path.
type Router struct {
	registry    *websocket.Registry
	gate        AuthorizationGate
	broadcaster Broadcaster
	limiter     *RateLimiter
	logger      *zap.Logger
}

// NewRouter creates the event router.
func NewRouter(registry *websocket.Registry, gate AuthorizationGate, broadcaster Broadcaster, limiter *RateLimiter, logger *zap.Logger) *Router {
	return &Router{
		registry:    registry,
		gate:        gate,
		broadcaster: broadcaster,
		limiter:     limiter,
		logger:      logger,
	}
}

// DispatchEvent processes one inbound client frame. Malformed frames are
// dropped; rejected and failed events answer only the sending connection,
// which always stays open.
func (r *Router) DispatchEvent(ctx context.Context, conn *websocket.Connection, raw []byte) {
	event, err := types.DecodeEvent(raw)
	if err != nil {
		r.logger.Debug("dropping malformed event",
			zap.String("connID", conn.ID()), zap.Error(err))
		return
	}

	if !types.IsClientEvent(event.Type) {
		r.logger.Debug("dropping unknown event type",
			zap.String("connID", conn.ID()),
			zap.String("type", event.Type))
		return
	}

	if !r.limiter.Allow(conn.UserID()) {
		r.send(conn, types.ErrorEvent(types.CodeRateLimitExceeded, "Rate limit exceeded"))
		return
	}

	switch event.Type {
	case types.EventPing:
		r.send(conn, &types.Event{Type: types.EventPong, Timestamp: time.Now()})

	case types.EventJoinProject:
		r.handleJoin(ctx, conn, event)

	case types.EventLeaveProject:
		r.handleLeave(conn, event)

	case types.EventTypingStart, types.EventTypingStop:
		r.handleTyping(conn, event)
	}
}

// handleJoin authorizes and performs a room join. While the membership
// lookup is in flight the connection keeps processing other events, but a
// second join for the same project is dropped until this one resolves.
func (r *Router) handleJoin(ctx context.Context, conn *websocket.Connection, event *types.Event) {
	projectID := event.DataString("projectId")
	if !types.IsValidProjectID(projectID) {
		r.send(conn, types.ErrorEvent(types.CodeJoinProjectError, "A valid projectId is required"))
		return
	}

	if !conn.BeginJoin(projectID) {
		r.logger.Debug("join already pending, dropping duplicate",
			zap.String("connID", conn.ID()),
			zap.String("projectID", projectID))
		return
	}
	defer conn.EndJoin(projectID)

	if !r.gate.Authorize(ctx, conn.UserID(), projectID) {
		r.send(conn, types.ErrorEvent(types.CodeProjectAccessDenied, "You do not have access to this project"))
		return
	}

	if err := r.registry.JoinRoom(conn, projectID); err != nil {
		if errors.Is(err, websocket.ErrConnectionNotRegistered) {
			// Connection closed while the authorization lookup was in
			// flight; discard the result instead of reviving dead state.
			r.logger.Debug("discarding join result for closed connection",
				zap.String("connID", conn.ID()),
				zap.String("projectID", projectID))
			return
		}
		r.logger.Error("room join failed",
			zap.String("connID", conn.ID()),
			zap.String("projectID", projectID),
			zap.Error(err))
		r.send(conn, types.ErrorEvent(types.CodeJoinProjectError, "Failed to join project"))
		return
	}

	r.send(conn, &types.Event{
		Type:      types.EventJoinedProject,
		Data:      map[string]any{"projectId": projectID},
		Timestamp: time.Now(),
	})
}

// handleLeave is unconditional for any project the connection already
// joined; no re-authorization is needed to leave.
func (r *Router) handleLeave(conn *websocket.Connection, event *types.Event) {
	projectID := event.DataString("projectId")
	if !types.IsValidProjectID(projectID) {
		r.send(conn, types.ErrorEvent(types.CodeLeaveProjectError, "A valid projectId is required"))
		return
	}

	if err := r.registry.LeaveRoom(conn, projectID); err != nil {
		r.send(conn, types.ErrorEvent(types.CodeLeaveProjectError, "You have not joined this project"))
		return
	}

	r.send(conn, &types.Event{
		Type:      types.EventLeftProject,
		Data:      map[string]any{"projectId": projectID},
		Timestamp: time.Now(),
	})
}

// handleTyping relays a typing indicator to the project's room, excluding
// the sender. Indicators for rooms the sender has not joined are dropped;
// relaying them would let a client probe rooms it was never admitted to.
func (r *Router) handleTyping(conn *websocket.Connection, event *types.Event) {
	projectID := event.DataString("projectId")
	storyID := event.DataString("storyId")
	if projectID == "" || storyID == "" {
		r.logger.Debug("dropping typing event with missing fields",
			zap.String("connID", conn.ID()))
		return
	}

	if !conn.InRoom(projectID) {
		r.logger.Debug("dropping typing event for unjoined project",
			zap.String("connID", conn.ID()),
			zap.String("projectID", projectID))
		return
	}

	data := map[string]any{
		"storyId":   storyID,
		"projectId": projectID,
		"userId":    conn.UserID(),
	}
	if event.Type == types.EventTypingStart {
		data["userName"] = conn.UserName()
	}

	relay := &types.Event{Type: event.Type, Data: data}
	if err := r.broadcaster.BroadcastToProject(projectID, relay, conn.ID()); err != nil {
		r.logger.Warn("typing relay failed",
			zap.String("projectID", projectID), zap.Error(err))
	}
}

// send answers the originating connection only. A send to a connection
// that closed in the meantime is a no-op.
func (r *Router) send(conn *websocket.Connection, event *types.Event) {
	if err := conn.WriteEvent(event); err != nil {
		r.logger.Debug("failed to write event to connection",
			zap.String("connID", conn.ID()), zap.Error(err))
	}
}
