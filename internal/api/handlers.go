package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/monitor"
	"github.com/arven/deadwatch/internal/storage"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth is a basic liveness check
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetMonitors returns the status of every tracked monitor
func (r *Router) handleGetMonitors(w http.ResponseWriter, req *http.Request) {
	statuses := r.manager.Statuses()
	if statuses == nil {
		statuses = []domain.MonitorStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// MonitorRequest identifies one monitor for start/stop
type MonitorRequest struct {
	TenantID int64  `json:"tenant_id"`
	ServerID string `json:"server_id"`
	Kind     string `json:"kind"`
}

func (m MonitorRequest) key() domain.MonitorKey {
	return domain.MonitorKey{TenantID: m.TenantID, ServerID: m.ServerID, Kind: m.Kind}
}

func (m MonitorRequest) validate() string {
	if m.TenantID == 0 {
		return "tenant_id is required"
	}
	if m.ServerID == "" {
		return "server_id is required"
	}
	if m.Kind != domain.MonitorKillfeed && m.Kind != domain.MonitorLog {
		return "kind must be killfeed or log"
	}
	return ""
}

// handleStartMonitor starts one monitor (admin only)
func (r *Router) handleStartMonitor(w http.ResponseWriter, req *http.Request) {
	var body MonitorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	switch err := r.manager.StartMonitor(req.Context(), body.key()); err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "monitor started"})
	case monitor.ErrAlreadyRunning:
		writeError(w, http.StatusConflict, "monitor already running")
	case monitor.ErrNotConfigured:
		writeError(w, http.StatusUnprocessableEntity, "server has no configuration for this monitor kind")
	default:
		writeError(w, http.StatusNotFound, err.Error())
	}
}

// handleStopMonitor stops one monitor (admin only)
func (r *Router) handleStopMonitor(w http.ResponseWriter, req *http.Request) {
	var body MonitorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	switch err := r.manager.StopMonitor(body.key()); err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "monitor stopped"})
	case monitor.ErrNotRunning:
		writeError(w, http.StatusNotFound, "monitor not running")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ServerResponse is a configured server without credentials
type ServerResponse struct {
	TenantID      int64    `json:"tenant_id"`
	ServerID      string   `json:"server_id"`
	Name          string   `json:"name"`
	Host          string   `json:"host"`
	KillfeedPaths []string `json:"killfeed_paths,omitempty"`
	LogPath       string   `json:"log_path,omitempty"`
}

// handleGetServers returns the configured servers
func (r *Router) handleGetServers(w http.ResponseWriter, req *http.Request) {
	conns := r.manager.Connections()
	response := make([]ServerResponse, len(conns))
	for i, c := range conns {
		response[i] = ServerResponse{
			TenantID:      c.TenantID,
			ServerID:      c.ServerID,
			Name:          c.Name,
			Host:          c.Host,
			KillfeedPaths: c.KillfeedPaths,
			LogPath:       c.LogPath,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetEvents returns stored events filtered by query parameters
func (r *Router) handleGetEvents(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	tenantID, err := strconv.ParseInt(q.Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	filter := storage.EventFilter{
		TenantID: tenantID,
		ServerID: q.Get("server_id"),
		Kind:     q.Get("kind"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if sinceStr := q.Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &since
	}

	events, err := r.store.GetEvents(req.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []domain.NormalizedEvent{}
	}

	// The body is one page; the header carries the tenant's full count so
	// clients can paginate.
	total, err := r.store.CountEvents(req.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, events)
}
