package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"jobsweep-engine/internal/runs"
)

type RunsHandler struct {
	Runs *runs.Manager
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runs.List())
}

// Start launches a run from an optional JSON body of overrides.
func (h RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req runs.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	run, err := h.Runs.Start(r.Context(), req)
	if err != nil {
		writeRunError(w, r, err)
		return
	}
	st := run.Status()
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"success":            true,
		"run_id":             run.ID,
		"target":             st.Params.Target,
		"estimated_accounts": st.Params.Concurrency,
	})
}

// ByPath serves /runs/{id}[/jobs|/accounts|/logs|/stop].
func (h RunsHandler) ByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	id, action, _ := strings.Cut(rest, "/")

	run, ok := h.Runs.Get(id)
	if !ok {
		writeRunError(w, r, runs.ErrNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, run.Status())
	case action == "jobs" && r.Method == http.MethodGet:
		from := queryInt(r, "from", 0)
		recs := run.Records(from)
		writeJSON(w, map[string]any{
			"run_id": run.ID,
			"from":   from,
			"next":   from + len(recs),
			"jobs":   recs,
		})
	case action == "accounts" && r.Method == http.MethodGet:
		writeJSON(w, run.Accounts())
	case action == "logs" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"run_id": run.ID, "logs": run.Logs()})
	case action == "stop" && r.Method == http.MethodPost:
		run.Stop()
		WriteJSON(w, http.StatusAccepted, map[string]any{"success": true, "run_id": run.ID})
	case action == "" || action == "jobs" || action == "accounts" || action == "logs" || action == "stop":
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	default:
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown run resource "+action)
	}
}
