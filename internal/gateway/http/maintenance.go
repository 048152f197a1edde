package http

import (
	"encoding/json"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/domain"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// MaintenanceHandler serves the maintenance state routes. Reads are
// public; updates carry an access token in the body and require the
// admin claim.
type MaintenanceHandler struct {
	Tokens      *service.TokenService
	Maintenance *service.MaintenanceService
}

// HandleGet serves GET /maintenance.
func (h *MaintenanceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("getting maintenance state")

	state, err := h.Maintenance.Maintenance(r.Context())
	if err != nil {
		logError(r, http.StatusInternalServerError, err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to get maintenance state")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, state)
}

type maintenancePutRequest struct {
	Token       string                   `json:"token"`
	Maintenance *domain.MaintenanceState `json:"maintenance"`
}

// HandlePut serves PUT /maintenance.
func (h *MaintenanceHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("updating maintenance state")

	var req maintenancePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Maintenance == nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid maintenance state")
		return
	}

	if err := h.Tokens.VerifyAdmin(r.Context(), req.Token); err != nil {
		writeErrorMessage(w, r, err, "Unable to update maintenance state")
		return
	}
	if err := h.Maintenance.SetMaintenance(r.Context(), *req.Maintenance); err != nil {
		logError(r, http.StatusInternalServerError, err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to update maintenance state")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleGetScheduled serves GET /scheduled_maintenance.
func (h *MaintenanceHandler) HandleGetScheduled(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("getting scheduled maintenance state")

	state, err := h.Maintenance.ScheduledMaintenance(r.Context())
	if err != nil {
		logError(r, http.StatusInternalServerError, err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to get scheduled maintenance state")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, state)
}

type scheduledMaintenancePutRequest struct {
	Token                string                            `json:"token"`
	ScheduledMaintenance *domain.ScheduledMaintenanceState `json:"scheduled_maintenance"`
}

// HandlePutScheduled serves PUT /scheduled_maintenance.
func (h *MaintenanceHandler) HandlePutScheduled(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("updating scheduled maintenance state")

	var req scheduledMaintenancePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduledMaintenance == nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid scheduled maintenance state")
		return
	}

	if err := h.Tokens.VerifyAdmin(r.Context(), req.Token); err != nil {
		writeErrorMessage(w, r, err, "Unable to update scheduled maintenance state")
		return
	}
	if err := h.Maintenance.SetScheduledMaintenance(r.Context(), *req.ScheduledMaintenance); err != nil {
		logError(r, http.StatusInternalServerError, err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to update scheduled maintenance state")
		return
	}

	w.WriteHeader(http.StatusOK)
}
