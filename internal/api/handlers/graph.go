package handlers

import (
	"context"
	"net/http"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
	"github.com/Harshitk-cp/factgate/internal/service"
)

// GraphHandler serves read-only views of the shared graphs.
type GraphHandler struct {
	graphs *lifecycle.Manager
}

func NewGraphHandler(graphs *lifecycle.Manager) *GraphHandler {
	return &GraphHandler{graphs: graphs}
}

func (h *GraphHandler) Main(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.MainGraph, h.graphs.Main)
}

func (h *GraphHandler) Consensus(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.ConsensusGraph, h.graphs.Consensus)
}

func (h *GraphHandler) Quarantine(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.QuarantineGraph, h.graphs.Quarantine)
}

func (h *GraphHandler) serve(w http.ResponseWriter, r *http.Request, id domain.GraphID, read func(context.Context) (*domain.Graph, error)) {
	g, err := read(r.Context())
	if err != nil {
		writeFault(w, service.MarkStoreFault(err), nil)
		return
	}
	writeJSON(w, http.StatusOK, newGraphResponse(id, g))
}
