package httpapi

import (
	"database/sql"
	"net/http"
	"sync/atomic"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/events"
	"jobsweep-engine/internal/runs"
)

type Deps struct {
	// DB is the local job store; nil disables /jobs.
	DB *sql.DB

	Hub  *events.Hub
	Runs *runs.Manager

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Metrics serves /metrics; nil uses the default Prometheus registry.
	Metrics http.Handler
}
