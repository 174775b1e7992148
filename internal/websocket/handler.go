package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fireside/internal/config"
	"fireside/pkg/interfaces"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the fronting proxy in deployment.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher consumes inbound client events for an authenticated
// connection. Implemented by the router.
type Dispatcher interface {
	DispatchEvent(ctx context.Context, conn *Connection, raw []byte)
}

// Handler authenticates WebSocket handshakes and runs each connection's
// read loop. No registry state exists for a connection until its bearer
// credential has been verified.
type Handler struct {
	registry   *Registry
	verifier   interfaces.CredentialVerifier
	dispatcher Dispatcher
	cfg        config.WebSocketConfig
	logger     *zap.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *Registry, verifier interfaces.CredentialVerifier, dispatcher Dispatcher, cfg config.WebSocketConfig, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   registry,
		verifier:   verifier,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleWebSocket upgrades a client connection after verifying its
// credential. Rejections happen before the upgrade so unauthenticated
// clients never consume a connection slot.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "Authentication token required", http.StatusUnauthorized)
		return
	}

	user, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize, h.cfg.WriteTimeout)
	wsConn.SetIdentity(user)

	if err := h.registry.Register(wsConn); err != nil {
		h.logger.Error("connection registration failed",
			zap.String("userID", user.ID), zap.Error(err))
		_ = wsConn.Close()
		return
	}

	h.logger.Info("connection established",
		zap.String("connID", wsConn.ID()),
		zap.String("userID", user.ID))

	go h.handleConnection(wsConn)
}

// bearerToken extracts the credential from the handshake: either a token
// query field or an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// handleConnection reads client frames until the link drops, then runs
// disconnect cleanup exactly once.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		_ = conn.Close()
		h.logger.Info("connection closed",
			zap.String("connID", conn.ID()),
			zap.String("userID", conn.UserID()))
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		h.logger.Warn("failed to set read deadline", zap.Error(err))
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	// Transport-level keep-alive; protocol pings from the client are
	// handled by the router as ordinary events.
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.String("connID", conn.ID()), zap.Error(err))
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.dispatcher.DispatchEvent(conn.ctx, conn, data)
		}
	}
}
