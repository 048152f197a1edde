package http

import (
	"encoding/json"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// VerifyHandler checks that a token was issued by this service.
type VerifyHandler struct {
	Tokens *service.TokenService
}

// Handle serves POST /verify. A valid token gets a bare 200 with no
// body.
func (h *VerifyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("verifying a token")

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "No JWT token found")
		return
	}

	if err := h.Tokens.Verify(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
