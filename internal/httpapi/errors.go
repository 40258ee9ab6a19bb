package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jobsweep-engine/internal/runs"
	"jobsweep-engine/internal/scheduler"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeRunError maps run manager errors to a status and code.
func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrInvalidParams):
		WriteError(w, r, http.StatusBadRequest, "invalid_params", err.Error())
	case errors.Is(err, scheduler.ErrNoEligible):
		WriteError(w, r, http.StatusUnprocessableEntity, "no_accounts", err.Error())
	case errors.Is(err, runs.ErrRunActive):
		WriteError(w, r, http.StatusConflict, "run_active", err.Error())
	case errors.Is(err, runs.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
