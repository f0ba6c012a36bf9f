// Package handlers implements the HTTP surface over the ingestion,
// belief, and graph engines, translating apperr.Kind into the status
// codes §7 of the design calls for. Grounded on the teacher's
// handlers' JSON-encode-and-status-switch style.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/api/validate"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse is the machine-readable/human-readable error body §7 requires.
type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.InvalidInput, apperr.TemporalViolation, apperr.SelfReference:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.TraversalLimitExceeded, apperr.Timeout:
		return http.StatusTooManyRequests
	case apperr.StorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperr.InvalidInput),
			Message: "validation failed",
			Fields:  validate.FieldErrors(err),
		})
		return
	}

	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	if status >= 500 {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: string(kind), Message: err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "malformed request body", err)
	}
	return nil
}
