package http

import (
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// OIDCProvidersHandler lists the configured OIDC providers with the
// details a frontend needs to start an authorization flow.
type OIDCProvidersHandler struct {
	Config config.Provider
}

type oidcProviderResponse struct {
	DisplayName      string `json:"display_name"`
	ConfigurationURL string `json:"configuration_url"`
	ClientID         string `json:"client_id"`

	// PKCE is set for public clients, which have no client secret and
	// must prove possession of the authorization code instead.
	PKCE  bool   `json:"pkce"`
	Scope string `json:"scope"`
}

// Handle serves GET /oidc_providers.
func (h *OIDCProvidersHandler) Handle(w http.ResponseWriter, r *http.Request) {
	slogx.FromContext(r.Context()).Info("listing OIDC providers")

	providers := map[string]oidcProviderResponse{}
	for id, p := range h.Config.Current().OIDC.Providers {
		providers[id] = oidcProviderResponse{
			DisplayName:      p.DisplayName,
			ConfigurationURL: p.ConfigurationURL,
			ClientID:         p.ClientID,
			PKCE:             p.ClientSecret == "",
			Scope:            p.Scope,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, providers)
}
