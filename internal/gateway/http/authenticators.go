package http

import (
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// AuthenticatorsHandler lists the mechanisms the ICAT server accepts.
type AuthenticatorsHandler struct {
	Tokens *service.TokenService
}

// Handle serves GET /authenticators.
func (h *AuthenticatorsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("listing ICAT authenticators")

	authenticators, err := h.Tokens.Authenticators(r.Context())
	if err != nil {
		logError(r, http.StatusInternalServerError, err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to retrieve authenticators")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authenticators)
}
