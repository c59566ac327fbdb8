package handlers

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/service"
)

const (
	defaultProvenanceLimit = 100
	maxProvenanceLimit     = 1000
)

// ProvenanceHandler serves the provenance ledger.
type ProvenanceHandler struct {
	gw *service.Gateway
}

func NewProvenanceHandler(gw *service.Gateway) *ProvenanceHandler {
	return &ProvenanceHandler{gw: gw}
}

type provenanceQuery struct {
	Producer string `validate:"omitempty,max=256"`
	EventID  string `validate:"omitempty,uuid"`
	Subject  string `validate:"omitempty,max=2048"`
	Origin   string `validate:"omitempty,oneof=asserted derived"`
	After    string `validate:"omitempty,number"`
	Limit    string `validate:"omitempty,number"`
}

type provenanceResponse struct {
	Records []domain.ProvenanceRecord `json:"records"`
	Count   int                       `json:"count"`
	Next    int64                     `json:"next_after,omitempty"`
}

// List handles GET /v1/provenance. Filters: producer, event_id, subject,
// origin; paging: after (a seq) and limit.
func (h *ProvenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := provenanceQuery{
		Producer: q.Get("producer"),
		EventID:  q.Get("event_id"),
		Subject:  q.Get("subject"),
		Origin:   q.Get("origin"),
		After:    q.Get("after"),
		Limit:    q.Get("limit"),
	}
	filter, err := req.filter()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.gw.Provenance(r.Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrNoLedger) {
			writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		writeFault(w, err, nil)
		return
	}

	resp := provenanceResponse{Records: records, Count: len(records)}
	if len(records) == filter.Limit {
		resp.Next = records[len(records)-1].Seq
	}
	writeJSON(w, http.StatusOK, resp)
}

func (q provenanceQuery) filter() (domain.ProvenanceFilter, error) {
	if err := validate.Struct(q); err != nil {
		return domain.ProvenanceFilter{}, errors.Wrap(err, "invalid query")
	}
	f := domain.ProvenanceFilter{
		Producer: q.Producer,
		Subject:  q.Subject,
		Origin:   domain.FactOrigin(q.Origin),
		Limit:    defaultProvenanceLimit,
	}
	if q.EventID != "" {
		id, err := uuid.Parse(q.EventID)
		if err != nil {
			return f, errors.Wrap(err, "invalid query: event_id")
		}
		f.EventID = id
	}
	if q.After != "" {
		after, err := strconv.ParseInt(q.After, 10, 64)
		if err != nil || after < 0 {
			return f, errors.New("invalid query: after must be a non-negative integer")
		}
		f.AfterSeq = after
	}
	if q.Limit != "" {
		limit, err := strconv.Atoi(q.Limit)
		if err != nil || limit < 1 || limit > maxProvenanceLimit {
			return f, errors.Newf("invalid query: limit must be between 1 and %d", maxProvenanceLimit)
		}
		f.Limit = limit
	}
	return f, nil
}
