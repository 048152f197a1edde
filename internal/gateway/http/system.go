package http

import (
	"net/http"
	"time"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
)

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

type healthChecks struct {
	Config           string `json:"config"`
	MaintenanceStore string `json:"maintenance_store"`
}

// LivezHandler answers liveness probes. It returns 200 whenever the
// process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler answers readiness probes: the configuration file must
// still load and the maintenance state files must be readable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	cfg config.Provider,
	maintenance *service.MaintenanceService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Config:           "ok",
			MaintenanceStore: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if _, err := cfg.Reload(); err != nil {
			checks.Config = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if _, err := maintenance.Maintenance(r.Context()); err != nil {
			checks.MaintenanceStore = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
