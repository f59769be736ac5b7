package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Monitor (multi-log viewer)
	mux.HandleFunc("/api/monitor", s.handleMonitorRoute)
	mux.HandleFunc("/api/monitor/", s.app.MonitorHandler.EntryHandler)

	// API routes - Batches
	mux.HandleFunc("/api/batches", s.app.BatchHandler.CollectionHandler)
	mux.HandleFunc("/api/batches/", s.app.BatchHandler.ItemHandler)

	// API routes - Comparison
	mux.HandleFunc("/api/compare", s.app.CompareHandler.CompareHandler)

	// API routes - Backend proxy
	mux.HandleFunc("/api/devices", s.app.BackendHandler.ListDevicesHandler)
	mux.HandleFunc("/api/sessions", s.app.BackendHandler.ListSessionsHandler)
	mux.HandleFunc("/api/sessions/", s.app.BackendHandler.SessionHandler)
	mux.HandleFunc("/api/automation/start", s.app.BackendHandler.StartAutomationHandler)
	mux.HandleFunc("/api/automation/", s.app.BackendHandler.StopAutomationHandler)
	mux.HandleFunc("/api/flows", s.app.BackendHandler.ListFlowsHandler)
	mux.HandleFunc("/api/backend/metrics", s.app.BackendHandler.MetricsHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// handleMonitorRoute routes /api/monitor (list and add)
func (s *Server) handleMonitorRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.MonitorHandler.ListEntriesHandler(w, r)
	case "POST":
		s.app.MonitorHandler.AddSessionHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// isWebSocketPath reports whether the path bypasses the middleware chain.
func isWebSocketPath(path string) bool {
	return path == "/ws" || strings.HasPrefix(path, "/ws/")
}
