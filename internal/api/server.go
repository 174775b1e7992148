package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fireside/pkg/types"
)

// Narrow views of the collaborators, declared locally so the server stays
// decoupled from their implementations.
type Registry interface {
	Stats() types.RegistryStats
}

type Limiter interface {
	Stats() types.RateLimiterStats
}

type Broadcaster interface {
	BroadcastToProject(projectID string, event *types.Event, excludeConnID string) error
	BroadcastToUser(userID string, event *types.Event) error
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the internal HTTP surface: health and stats for monitoring,
// and the publish endpoints the REST backend uses to push domain events
// into the broadcaster. No business logic lives here.
type Server struct {
	registry    Registry
	limiter     Limiter
	broadcaster Broadcaster
	store       HealthChecker
	logger      *zap.Logger
	router      *http.ServeMux
}

// NewServer creates the API server and sets up routing.
func NewServer(registry Registry, limiter Limiter, broadcaster Broadcaster, store HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		registry:    registry,
		limiter:     limiter,
		broadcaster: broadcaster,
		store:       store,
		logger:      logger,
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.getStats))))
	s.router.Handle("/api/projects/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleProjectEvents))))
	s.router.Handle("/api/users/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleUserEvents))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PublishEventRequest is the body of the event publish endpoints.
type PublishEventRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type PublishEventResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type StatsResponse struct {
	Stats     types.Stats `json:"stats"`
	Timestamp time.Time   `json:"timestamp"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Database  string      `json:"database"`
	Stats     types.Stats `json:"stats"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/projects/{projectID}/events - fan a domain event out to a
// project's room. Enters directly at the broadcaster, bypassing the
// client-facing controller.
func (s *Server) handleProjectEvents(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.eventPathID(w, r, "/api/projects/")
	if !ok {
		return
	}

	event, ok := s.decodePublishRequest(w, r)
	if !ok {
		return
	}

	if err := s.broadcaster.BroadcastToProject(projectID, event, ""); err != nil {
		s.sendError(w, "Failed to queue event", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(PublishEventResponse{ID: event.ID, Status: "accepted"})
}

// POST /api/users/{userID}/events - fan a domain event out to all of a
// user's connected devices.
func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.eventPathID(w, r, "/api/users/")
	if !ok {
		return
	}

	event, ok := s.decodePublishRequest(w, r)
	if !ok {
		return
	}

	if err := s.broadcaster.BroadcastToUser(userID, event); err != nil {
		s.sendError(w, "Failed to queue event", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(PublishEventResponse{ID: event.ID, Status: "accepted"})
}

// eventPathID extracts the identifier from /{prefix}{id}/events paths and
// enforces the POST method.
func (s *Server) eventPathID(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return "", false
	}
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}

	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "events" {
		s.sendError(w, "Expected /{id}/events", http.StatusNotFound)
		return "", false
	}
	return parts[0], true
}

func (s *Server) decodePublishRequest(w http.ResponseWriter, r *http.Request) (*types.Event, bool) {
	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return nil, false
	}

	if !types.IsDomainEvent(req.Type) {
		s.sendError(w, fmt.Sprintf("Unsupported event type %q", req.Type), http.StatusBadRequest)
		return nil, false
	}

	return &types.Event{Type: req.Type, Data: req.Data}, true
}

// GET /api/stats - full statistics snapshot, derived at call time.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(StatsResponse{
		Stats:     s.snapshot(),
		Timestamp: time.Now(),
	})
}

// GET /health - health status derived from whether the store is queryable
// at all, plus the current snapshot.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Database:  dbStatus,
		Stats:     s.snapshot(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) snapshot() types.Stats {
	return types.Stats{
		Registry:    s.registry.Stats(),
		RateLimiter: s.limiter.Stats(),
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
