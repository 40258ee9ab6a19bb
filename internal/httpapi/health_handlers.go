package httpapi

import (
	"net/http"
	"time"

	"jobsweep-engine/internal/runs"
	"jobsweep-engine/internal/scheduler"
)

type HealthHandler struct {
	Runs *runs.Manager
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":             "healthy",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"max_accounts":       scheduler.MaxConcurrency,
		"concurrent_support": true,
		"accounts":           h.Runs.Engine().PoolSize(),
	}
	if run, ok := h.Runs.Active(); ok {
		body["active_run"] = run.ID
	}
	writeJSON(w, body)
}
