package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fireside/internal/websocket"
	"fireside/pkg/types"
)

// Hub is the event broadcaster. Callers enqueue an event addressed to a
// project room, to one user's devices, or to every live connection; a
// single run goroutine enumerates recipients through the registry and
// delivers. Delivery to a connection that went stale between enumeration
// and send is a no-op, so fan-out never holds the registry lock.
type Hub struct {
	broadcastChannel chan *broadcast
	shutdownChannel  chan struct{}
	stoppedChannel   chan struct{}

	registry *websocket.Registry
	logger   *zap.Logger

	running bool
	mu      sync.RWMutex
}

// broadcast is one queued fan-out. Exactly one addressing mode is set.
type broadcast struct {
	event         *types.Event
	projectID     string
	userID        string
	all           bool
	excludeConnID string
}

// NewHub creates an event broadcaster.
func NewHub(registry *websocket.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		// Buffer sized for bursts of domain events from the REST backend
		// plus typing relays from large rooms.
		broadcastChannel: make(chan *broadcast, 1000),
		shutdownChannel:  make(chan struct{}),
		stoppedChannel:   make(chan struct{}),
		registry:         registry,
		logger:           logger,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	go h.run(ctx)

	return nil
}

// Stop shuts the hub down after draining already-queued broadcasts, so a
// shutdown notice enqueued just before Stop still reaches clients.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	h.mu.Unlock()

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	<-h.stoppedChannel

	// The run goroutine may have exited on context cancellation before
	// the final broadcasts were enqueued; deliver whatever is left.
	h.drain()

	return nil
}

// BroadcastToProject fans an event out to every connection in a project's
// room, excluding excludeConnID when non-empty.
func (h *Hub) BroadcastToProject(projectID string, event *types.Event, excludeConnID string) error {
	return h.enqueue(&broadcast{
		event:         event,
		projectID:     projectID,
		excludeConnID: excludeConnID,
	})
}

// BroadcastToUser fans an event out to all of a user's live connections,
// so a server event reaches every open device.
func (h *Hub) BroadcastToUser(userID string, event *types.Event) error {
	return h.enqueue(&broadcast{
		event:  event,
		userID: userID,
	})
}

// BroadcastToAll fans an event out to every live connection.
func (h *Hub) BroadcastToAll(event *types.Event) error {
	return h.enqueue(&broadcast{
		event: event,
		all:   true,
	})
}

func (h *Hub) enqueue(b *broadcast) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	// The hub owns event identity: server-generated ID and send time.
	if b.event.ID == "" {
		b.event.ID = uuid.New().String()
	}
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now()
	}

	select {
	case h.broadcastChannel <- b:
		return nil
	default:
		return ErrBroadcastChannelFull
	}
}

// run delivers queued broadcasts until shutdown, then drains the queue.
func (h *Hub) run(ctx context.Context) {
	defer close(h.stoppedChannel)

	for {
		select {
		case b := <-h.broadcastChannel:
			h.deliver(b)

		case <-h.shutdownChannel:
			h.drain()
			return

		case <-ctx.Done():
			h.drain()
			return
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case b := <-h.broadcastChannel:
			h.deliver(b)
		default:
			return
		}
	}
}

// deliver enumerates recipients and writes, continuing past individual
// failures so one stale connection never blocks a room.
func (h *Hub) deliver(b *broadcast) {
	var recipients []*websocket.Connection
	switch {
	case b.all:
		recipients = h.registry.AllConnections()
	case b.projectID != "":
		recipients = h.registry.RoomConnections(b.projectID, b.excludeConnID)
	case b.userID != "":
		recipients = h.registry.UserConnections(b.userID)
	}

	delivered := 0
	for _, conn := range recipients {
		if err := conn.WriteEvent(b.event); err != nil {
			h.logger.Debug("broadcast delivery skipped",
				zap.String("connID", conn.ID()),
				zap.String("type", b.event.Type),
				zap.Error(err))
			continue
		}
		delivered++
	}

	h.logger.Debug("broadcast delivered",
		zap.String("type", b.event.Type),
		zap.String("projectID", b.projectID),
		zap.String("userID", b.userID),
		zap.Int("recipients", delivered))
}
