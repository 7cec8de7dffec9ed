package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/marmos91/dittovec/pkg/store"
)

// StoreHandler lists stores and re-initialises them.
type StoreHandler struct {
	orch *orchestrator.Orchestrator
}

// NewStoreHandler creates a store handler.
func NewStoreHandler(orch *orchestrator.Orchestrator) *StoreHandler {
	return &StoreHandler{orch: orch}
}

// List handles GET /api/v1/stores?category=vector,cache.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	var cats []store.Category
	for _, raw := range splitList(r.URL.Query().Get("category")) {
		c, err := store.ParseCategory(raw)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		cats = append(cats, c)
	}

	stores := h.orch.Stores(cats...)
	if stores == nil {
		stores = []orchestrator.StoreInfo{}
	}
	WriteJSONOK(w, okResponse(stores))
}

// Reinit handles POST /api/v1/stores/{name}/reinit.
func (h *StoreHandler) Reinit(w http.ResponseWriter, r *http.Request) {
	name := store.NormalizeName(chi.URLParam(r, "name"))

	info, err := h.orch.Reinit(r.Context(), name)
	if err != nil {
		logger.WarnCtx(r.Context(), "Store reinit failed", logger.KeyStore, name, logger.KeyError, err)
		WriteStoreError(w, err)
		return
	}
	logger.InfoCtx(r.Context(), "Store reinitialized", logger.KeyStore, name)
	WriteJSONOK(w, okResponse(info))
}
