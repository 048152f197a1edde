package http

import (
	"encoding/json"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/oidc"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// OIDCTokenHandler runs the authorization-code exchange for clients
// that cannot talk to the provider's token endpoint directly.
type OIDCTokenHandler struct {
	OIDC *oidc.Verifier
}

// Handle serves POST /oidc_token/{provider_id}. The body is either a
// bare JSON string (the authorization code) or an object carrying
// "code" and an optional PKCE "code_verifier".
func (h *OIDCTokenHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("obtaining an id_token")

	code, codeVerifier, ok := decodeCodeRequest(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	resp, err := h.OIDC.ExchangeCode(r.Context(), r.PathValue("provider_id"), code, codeVerifier)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func decodeCodeRequest(r *http.Request) (code, codeVerifier string, ok bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return "", "", false
	}

	if err := json.Unmarshal(raw, &code); err == nil {
		return code, "", code != ""
	}

	var req struct {
		Code         string `json:"code"`
		CodeVerifier string `json:"code_verifier"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || req.Code == "" {
		return "", "", false
	}
	return req.Code, req.CodeVerifier, true
}
