package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/service"
)

type WorkspaceHandler struct {
	gw *service.Gateway
}

func NewWorkspaceHandler(gw *service.Gateway) *WorkspaceHandler {
	return &WorkspaceHandler{gw: gw}
}

type factBody struct {
	Subject   string      `json:"subject" validate:"required"`
	Predicate string      `json:"predicate" validate:"required"`
	Object    domain.Term `json:"object"`
}

func toFacts(body []factBody) []domain.Fact {
	facts := make([]domain.Fact, len(body))
	for i, b := range body {
		facts[i] = domain.NewFact(b.Subject, b.Predicate, b.Object)
	}
	return facts
}

type graphResponse struct {
	Graph string        `json:"graph"`
	Count int           `json:"count"`
	Facts []domain.Fact `json:"facts"`
}

func newGraphResponse(id domain.GraphID, g *domain.Graph) graphResponse {
	return graphResponse{Graph: string(id), Count: g.Len(), Facts: g.Facts()}
}

// Stage appends facts to the producer's workspace without evaluating them.
func (h *WorkspaceHandler) Stage(w http.ResponseWriter, r *http.Request) {
	producer := chi.URLParam(r, "producer")

	req, err := decodeFacts(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gw.Stage(r.Context(), producer, toFacts(req.Facts)); err != nil {
		writeFault(w, err, nil)
		return
	}

	ws, err := h.gw.Workspace(r.Context(), producer)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusAccepted, newGraphResponse(domain.WorkspaceGraph(producer), ws))
}

func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	producer := chi.URLParam(r, "producer")

	ws, err := h.gw.Workspace(r.Context(), producer)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newGraphResponse(domain.WorkspaceGraph(producer), ws))
}

// Submit decides on the workspace plus any facts in the body. ADMITTED maps
// to 200 and REJECTED to 422, both carrying the full decision.
func (h *WorkspaceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	producer := chi.URLParam(r, "producer")

	req, err := decodeFacts(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.gw.Submit(r.Context(), producer, toFacts(req.Facts))
	if err != nil {
		writeFault(w, err, res)
		return
	}

	status := http.StatusOK
	if res.Status == domain.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
