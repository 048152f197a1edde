package http

import (
	"net/http"
	"strings"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// OIDCLoginHandler logs a user in with an externally issued ID token.
type OIDCLoginHandler struct {
	Tokens *service.TokenService
	Config config.Provider
}

// Handle serves POST /oidc_login/{provider_id}. The ID token arrives as
// a bearer token; the response mirrors the credential login.
func (h *OIDCLoginHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("authenticating a user via OIDC")

	idToken, ok := bearerToken(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusForbidden, "Not authenticated")
		return
	}

	pair, err := h.Tokens.LoginOIDC(r.Context(), r.PathValue("provider_id"), idToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cfg := h.Config.Current()
	setRefreshCookie(w, pair.RefreshToken, cfg.API.RootPath, cfg.Auth.RefreshTokenTTL())
	httpx.WriteJSON(w, http.StatusOK, pair.AccessToken)
}

// bearerToken extracts the credentials from an Authorization: Bearer
// header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
