package http

import (
	"encoding/json"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// RefreshHandler re-signs an access token using the refresh token
// cookie.
type RefreshHandler struct {
	Tokens *service.TokenService
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Handle serves POST /refresh. The access token to refresh comes in the
// body; the refresh token must be present as the HTTP-only cookie set
// at login. Every refresh failure collapses to the same 403 so callers
// cannot probe which check failed.
func (h *RefreshHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("refreshing an access token")

	refreshToken, ok := refreshCookie(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "No JWT refresh token found")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "No JWT access token found")
		return
	}

	accessToken, err := h.Tokens.Refresh(r.Context(), refreshToken, req.Token)
	if err != nil {
		writeErrorMessage(w, r, err, "Unable to refresh access token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, accessToken)
}
