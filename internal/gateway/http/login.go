package http

import (
	"encoding/json"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// LoginHandler authenticates ICAT credentials and issues a token pair.
type LoginHandler struct {
	Tokens *service.TokenService
	Config config.Provider
}

type loginRequest struct {
	Mnemonic    string `json:"mnemonic"`
	Credentials *struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
}

// Handle serves POST /login. The access token is returned as the JSON
// body and the refresh token rides along as an HTTP-only cookie so
// browser clients never touch it.
func (h *LoginHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("authenticating a user")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mnemonic == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid login details")
		return
	}

	var credentials map[string]string
	if req.Credentials != nil {
		credentials = map[string]string{
			"username": req.Credentials.Username,
			"password": req.Credentials.Password,
		}
	}

	pair, err := h.Tokens.Login(r.Context(), req.Mnemonic, credentials)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cfg := h.Config.Current()
	setRefreshCookie(w, pair.RefreshToken, cfg.API.RootPath, cfg.Auth.RefreshTokenTTL())
	httpx.WriteJSON(w, http.StatusOK, pair.AccessToken)
}
