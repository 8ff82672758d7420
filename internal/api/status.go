package api

import (
	"net/http"
	"time"

	"github.com/toastigo/storefront/internal/bridge"
	"github.com/toastigo/storefront/internal/command"
)

// handleStatus handles GET /api/status. It always answers 200 with the
// cached snapshot; telemetry problems only show up as online=false.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, s.Status.Read())
}

// handleStatusStream handles GET /api/status/stream
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	if err := s.Hub.Subscribe(r.Context(), w, r); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Failed to subscribe to telemetry stream", nil)
	}
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	bridgeState := "disabled"
	if s.Bridge != nil && s.Bridge.Enabled() {
		bridgeState = s.Bridge.State().String()
	}

	clients := 0
	if s.Hub != nil {
		clients = s.Hub.ClientCount()
	}

	// A broker outage degrades the report but never fails the probe; the
	// storefront keeps serving without telemetry.
	status := "ok"
	if bridgeState != "disabled" && bridgeState != bridge.StateConnected.String() {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"uptimeSec": time.Since(s.startTime).Seconds(),
		"version":   s.Version,
		"subsystems": map[string]interface{}{
			"bridge":           bridgeState,
			"printerOnline":    s.Status.Read().Online,
			"telemetryClients": clients,
		},
	})
}

// handleBridge handles GET /api/bridge
func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	if s.Bridge == nil {
		WriteJSON(w, http.StatusOK, bridge.Stats{State: "disabled"})
		return
	}
	WriteJSON(w, http.StatusOK, s.Bridge.Stats())
}

// handleRequestState handles POST /api/printer/request-state
func (s *Server) handleRequestState(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator == nil {
		s.fail(w, r, command.ErrUnavailable)
		return
	}
	if err := s.Orchestrator.RequestFullState(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}
