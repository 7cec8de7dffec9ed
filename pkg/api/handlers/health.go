package handlers

import (
	"net/http"

	"github.com/marmos91/dittovec/pkg/connection"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/marmos91/dittovec/pkg/probe"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Has any store failed to open?
//   - Store health: The latest probe round plus connection states
type HealthHandler struct {
	orch *orchestrator.Orchestrator
}

// NewHealthHandler creates a new health handler. orch may be nil, in which
// case readiness and store health report unhealthy.
func NewHealthHandler(orch *orchestrator.Orchestrator) *HealthHandler {
	return &HealthHandler{orch: orch}
}

// Liveness handles GET /health. It succeeds whenever the server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, healthyResponse(map[string]string{
		"service": "dittovec",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable when the orchestrator is missing or any
// enabled store is in the Failed state.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("orchestrator not initialized"))
		return
	}

	conns := h.orch.Connections()
	counts := make(map[string]int)
	for _, c := range conns {
		counts[c.State]++
	}
	data := map[string]any{"stores": len(conns), "states": counts}

	if !h.orch.Ready() {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(data))
		return
	}
	WriteJSONOK(w, healthyResponse(data))
}

// StoresResponse is the body of GET /health/stores.
type StoresResponse struct {
	Probe       *probe.Snapshot   `json:"probe,omitempty"`
	Connections []connection.Info `json:"connections"`
}

// Stores handles GET /health/stores.
//
// Returns 503 when a store is Failed or the latest probe round found an
// unhealthy store.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("orchestrator not initialized"))
		return
	}

	resp := StoresResponse{Connections: h.orch.Connections()}
	healthy := h.orch.Ready()
	if p := h.orch.Probe(); p != nil {
		snap := p.Snapshot()
		resp.Probe = &snap
		for _, s := range snap.Stores {
			if !s.Healthy {
				healthy = false
			}
		}
	}

	if !healthy {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(resp))
		return
	}
	WriteJSONOK(w, healthyResponse(resp))
}
