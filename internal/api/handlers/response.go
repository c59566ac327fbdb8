package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/Harshitk-cp/factgate/internal/service"
)

// maxBodyBytes caps request bodies; fact batches are small.
const maxBodyBytes = 8 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// factsRequest is the body of staging and submission requests.
type factsRequest struct {
	Facts []factBody `json:"facts" validate:"max=10000,dive"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeFacts reads a factsRequest. An empty body decodes to no facts when
// allowEmpty is set.
func decodeFacts(r *http.Request, allowEmpty bool) (factsRequest, error) {
	var req factsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return req, nil
		}
		return req, errors.Wrap(err, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return req, errors.Wrap(err, "invalid request body")
	}
	if !allowEmpty && len(req.Facts) == 0 {
		return req, errors.New("facts is required")
	}
	return req, nil
}

// statusForError maps gateway errors to HTTP statuses. Faults during a
// decision return the partial result next to the error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidFact), errors.Is(err, service.ErrInvalidProducer):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStoreFault):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type faultResponse struct {
	Error  string `json:"error"`
	Hint   string `json:"hint,omitempty"`
	Result any    `json:"result,omitempty"`
}

func writeFault(w http.ResponseWriter, err error, result any) {
	resp := faultResponse{Error: err.Error(), Result: result}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		resp.Hint = hints[0]
	}
	writeJSON(w, statusForError(err), resp)
}
