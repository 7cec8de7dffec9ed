package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/dittovec/pkg/aggregate"
	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/marmos91/dittovec/pkg/store"
)

// VectorHandler serves the add, search and status fan-outs.
//
// A malformed request is answered with 400. Once a request is accepted the
// answer is 200 and each store reports its own success or failure.
type VectorHandler struct {
	orch *orchestrator.Orchestrator
}

// NewVectorHandler creates a vector handler.
func NewVectorHandler(orch *orchestrator.Orchestrator) *VectorHandler {
	return &VectorHandler{orch: orch}
}

// AddRequest is the body of POST /api/v1/vectors.
type AddRequest struct {
	ID        VectorID       `json:"id"`
	Vector    []float64      `json:"vector"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Stores    []string       `json:"stores,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
}

// FanOutResponse lists one outcome per store.
type FanOutResponse struct {
	Stores []OutcomeView `json:"stores" yaml:"stores"`
}

// Add handles POST /api/v1/vectors.
func (h *VectorHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	ctx, cancel := withTimeout(r.Context(), req.TimeoutMs)
	defer cancel()

	rec := store.Record{ID: string(req.ID), Vector: req.Vector, Metadata: req.Metadata}
	outcomes, err := h.orch.Add(ctx, rec, req.Stores...)
	if err != nil {
		WriteStoreError(w, err)
		return
	}
	WriteJSONOK(w, okResponse(FanOutResponse{Stores: OutcomeViews(outcomes, false)}))
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Vector          []float64 `json:"vector"`
	K               int       `json:"k"`
	Federated       bool      `json:"federated,omitempty"`
	Stores          []string  `json:"stores,omitempty"`
	Exclude         []string  `json:"exclude,omitempty"`
	ExcludeFullScan bool      `json:"exclude_full_scan,omitempty"`
	TimeoutMs       int       `json:"timeout_ms,omitempty"`
}

// SearchResponse carries per-store results, plus the merged ranking when the
// search was federated.
type SearchResponse struct {
	Federated bool            `json:"federated" yaml:"federated"`
	Hits      []aggregate.Hit `json:"hits,omitempty" yaml:"hits,omitempty"`
	Stores    []OutcomeView   `json:"stores" yaml:"stores"`
}

// Search handles POST /api/v1/search.
func (h *VectorHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	ctx, cancel := withTimeout(r.Context(), req.TimeoutMs)
	defer cancel()

	if req.Federated {
		res, err := h.orch.FederatedSearch(ctx, orchestrator.SearchOptions{
			Query:           req.Vector,
			K:               req.K,
			Stores:          req.Stores,
			Exclude:         req.Exclude,
			ExcludeFullScan: req.ExcludeFullScan,
		})
		if err != nil {
			WriteStoreError(w, err)
			return
		}
		hits := res.Hits
		if hits == nil {
			hits = []aggregate.Hit{}
		}
		WriteJSONOK(w, okResponse(SearchResponse{
			Federated: true,
			Hits:      hits,
			Stores:    OutcomeViews(res.Outcomes, false),
		}))
		return
	}

	outcomes, err := h.orch.Execute(ctx, dispatch.Request{
		Op:              dispatch.OpSearch,
		Targets:         req.Stores,
		Exclude:         req.Exclude,
		ExcludeFullScan: req.ExcludeFullScan,
		Query:           req.Vector,
		K:               req.K,
	})
	if err != nil {
		WriteStoreError(w, err)
		return
	}
	WriteJSONOK(w, okResponse(SearchResponse{Stores: OutcomeViews(outcomes, true)}))
}

// Status handles GET /api/v1/status?stores=a,b.
func (h *VectorHandler) Status(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.orch.Status(r.Context(), splitList(r.URL.Query().Get("stores"))...)
	if err != nil {
		WriteStoreError(w, err)
		return
	}
	WriteJSONOK(w, okResponse(FanOutResponse{Stores: OutcomeViews(outcomes, false)}))
}

func withTimeout(ctx context.Context, ms int) (context.Context, context.CancelFunc) {
	if ms <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
