package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux wires every route. Wrap it with Chain for the middleware stack.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Runs: d.Runs}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Runs
	rh := RunsHandler{Runs: d.Runs}
	mux.HandleFunc("/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  rh.List,
		http.MethodPost: rh.Start,
	}))
	mux.HandleFunc("/runs/", rh.ByPath)

	// Stored jobs
	jh := JobsHandler{DB: d.DB}
	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.List,
	}))
	mux.HandleFunc("/jobs/cleanup", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: jh.Cleanup,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	sh := SecretsHandler{}
	mux.HandleFunc("/secrets/account", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetAccountPassword,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	metrics := d.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("/metrics", metrics)

	return mux
}

// Handler is NewMux behind the standard middleware stack.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover, AccessLog, Cors)
}
