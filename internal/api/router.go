package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arven/deadwatch/internal/auth"
	"github.com/arven/deadwatch/internal/monitor"
	"github.com/arven/deadwatch/internal/storage"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   *storage.Store
	manager *monitor.Manager
	wsHub   *WebSocketHub
	auth    *auth.Service
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, manager *monitor.Manager, authService *auth.Service) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		wsHub:   NewWebSocketHub(),
		auth:    authService,
	}

	// Monitor routes
	r.mux.HandleFunc("GET /api/monitors", r.handleGetMonitors)
	r.mux.HandleFunc("POST /api/monitors/start", r.requireAdmin(r.handleStartMonitor))
	r.mux.HandleFunc("POST /api/monitors/stop", r.requireAdmin(r.handleStopMonitor))

	// Server and event routes
	r.mux.HandleFunc("GET /api/servers", r.requireAuth(r.handleGetServers))
	r.mux.HandleFunc("GET /api/events", r.requireAuth(r.handleGetEvents))

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))

	// WebSocket endpoint
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check and metrics
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting events to WebSocket clients
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()

	// Forward accepted events from the monitor manager to the hub
	go func() {
		for ev := range r.manager.Events() {
			r.wsHub.Broadcast(ev)
		}
	}()
}
