package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/service"
)

type CommitHandler struct {
	gw *service.Gateway
}

func NewCommitHandler(gw *service.Gateway) *CommitHandler {
	return &CommitHandler{gw: gw}
}

// Trigger runs one commit cycle: 200 when COMMITTED, 409 when ROLLED_BACK.
func (h *CommitHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	res, err := h.gw.CommitCycle(r.Context())
	if err != nil {
		writeFault(w, err, res)
		return
	}

	status := http.StatusOK
	if res.State == domain.CommitRolledBack {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}
