package httpapi

import (
	"database/sql"
	"net"
	"net/http"
	"time"

	"jobsweep-engine/internal/store"
)

// JobsHandler serves postings persisted by the SQLite sink.
type JobsHandler struct {
	DB *sql.DB
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "no_store", "local job store is disabled")
		return
	}
	q := r.URL.Query()
	jobs, err := store.ListJobs(r.Context(), h.DB, store.ListJobsOpts{
		RunID: q.Get("run_id"),
		Sort:  q.Get("sort"),
		Limit: queryInt(r, "limit", 500),
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, jobs)
}

// Cleanup deletes postings older than ?days (default 30). Loopback
// callers only.
func (h JobsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "no_store", "local job store is disabled")
		return
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "127.0.0.1" && host != "::1" && host != "localhost" {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	days := queryInt(r, "days", 30)
	n, err := store.CleanupOldJobs(r.Context(), h.DB, time.Duration(days)*24*time.Hour, time.Now())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "cleanup_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "deleted": n})
}
