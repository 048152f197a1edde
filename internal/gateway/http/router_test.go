package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/domain"
	gatewayhttp "github.com/datagateway/authgate/internal/gateway/http"
	"github.com/datagateway/authgate/internal/gateway/icat"
	"github.com/datagateway/authgate/internal/gateway/oidc"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/internal/gateway/store"
	"github.com/datagateway/authgate/pkg/cryptox"
	"github.com/datagateway/authgate/pkg/jwtx"
)

// fakeICAT scripts the upstream identity provider.
type fakeICAT struct {
	sessionID       string
	username        string
	authenticateErr error
	refreshErr      error
	authenticators  []domain.Authenticator
}

func (f *fakeICAT) Authenticate(context.Context, string, map[string]string) (string, error) {
	if f.authenticateErr != nil {
		return "", f.authenticateErr
	}
	return f.sessionID, nil
}

func (f *fakeICAT) Username(context.Context, string) (string, error) { return f.username, nil }

func (f *fakeICAT) RefreshSession(context.Context, string) error { return f.refreshErr }

func (f *fakeICAT) Authenticators(context.Context) ([]domain.Authenticator, error) {
	return f.authenticators, nil
}

type fakeOIDC struct {
	mechanism string
	username  string
	err       error
}

func (f *fakeOIDC) VerifyIDToken(context.Context, string, string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.mechanism, f.username, nil
}

type testEnv struct {
	router   *gatewayhttp.Router
	tokens   *service.TokenService
	icat     *fakeICAT
	oidc     *fakeOIDC
	provider *config.StaticProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	maintenancePath := filepath.Join(dir, "maintenance.json")
	scheduledPath := filepath.Join(dir, "scheduled.json")
	require.NoError(t, os.WriteFile(maintenancePath, []byte(`{"show": false, "message": ""}`), 0o600))
	require.NoError(t, os.WriteFile(scheduledPath, []byte(`{"show": false, "message": "", "severity": ""}`), 0o600))

	provider := config.Static(&config.Config{
		API: config.APIConfig{RootPath: ""},
		Auth: config.AuthConfig{
			AccessTokenValidityMinutes: 10,
			RefreshTokenValidityDays:   7,
			AdminUsers:                 []string{"simple/root"},
		},
		Maintenance: config.MaintenanceConfig{
			MaintenancePath:          maintenancePath,
			ScheduledMaintenancePath: scheduledPath,
		},
		OIDC: config.OIDCConfig{
			ICATAuthenticator:      "delegate",
			ICATAuthenticatorToken: "secret",
			Providers: map[string]config.OIDCProviderConfig{
				"keycloak": {
					DisplayName:      "Keycloak",
					ConfigurationURL: "https://keycloak.example.com/.well-known/openid-configuration",
					ClientID:         "gateway",
					Scope:            "openid profile",
				},
			},
		},
	})

	privateKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	publicKey, err := cryptox.PublicKeyPEM(privateKey)
	require.NoError(t, err)
	codec, err := jwtx.NewCodec("RS256", privateKey, publicKey)
	require.NoError(t, err)

	ic := &fakeICAT{sessionID: "sess-1", username: "simple/jane"}
	ov := &fakeOIDC{mechanism: "oidc", username: "alice"}

	tokens := &service.TokenService{Codec: codec, ICAT: ic, OIDC: ov, Config: provider}

	router := gatewayhttp.NewRouter(provider, slog.New(slog.DiscardHandler), "test")
	router.Tokens = tokens
	router.Maintenance = &service.MaintenanceService{
		Store: store.NewFileStore(provider.Current().Maintenance),
	}
	router.OIDC = oidc.NewVerifier(t.Context(), provider)
	router.ApplyRoutes()

	return &testEnv{router: router, tokens: tokens, icat: ic, oidc: ov, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestLoginRoute(t *testing.T) {
	t.Parallel()

	t.Run("returns access token and refresh cookie", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/login",
			`{"mnemonic": "simple", "credentials": {"username": "jane", "password": "pw"}}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var accessToken string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accessToken))
		require.NoError(t, env.tokens.Verify(t.Context(), accessToken))

		setCookie := rec.Header().Get("Set-Cookie")
		require.Contains(t, setCookie, "authgate:refresh_token=")
		require.Contains(t, setCookie, "HttpOnly")
		require.Contains(t, setCookie, "Secure")
		require.Contains(t, setCookie, "SameSite=Lax")
		require.Contains(t, setCookie, "Path=/refresh")
	})

	t.Run("rejected credentials surface the upstream message", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.icat.authenticateErr = &icat.AuthenticationError{Message: "The username and password do not match"}

		rec := env.do(t, http.MethodPost, "/login", `{"mnemonic": "simple"}`, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "The username and password do not match", detail(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/login", `{`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefreshRoute(t *testing.T) {
	t.Parallel()

	login := func(t *testing.T, env *testEnv) (accessToken, refreshCookie string) {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/login", `{"mnemonic": "simple"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accessToken))

		setCookie := rec.Header().Get("Set-Cookie")
		refreshCookie, _, _ = strings.Cut(setCookie, ";")
		return accessToken, refreshCookie
	}

	t.Run("issues a fresh access token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		accessToken, cookie := login(t, env)

		rec := env.do(t, http.MethodPost, "/refresh",
			`{"token": "`+accessToken+`"}`,
			http.Header{"Cookie": {cookie}})

		require.Equal(t, http.StatusOK, rec.Code)

		var newAccess string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &newAccess))
		require.NoError(t, env.tokens.Verify(t.Context(), newAccess))
	})

	t.Run("missing cookie", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		accessToken, _ := login(t, env)

		rec := env.do(t, http.MethodPost, "/refresh", `{"token": "`+accessToken+`"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "No JWT refresh token found", detail(t, rec))
	})

	t.Run("refresh failures collapse to one message", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		accessToken, cookie := login(t, env)
		env.icat.refreshErr = &icat.AuthenticationError{Message: "the session ID could not be refreshed"}

		rec := env.do(t, http.MethodPost, "/refresh",
			`{"token": "`+accessToken+`"}`,
			http.Header{"Cookie": {cookie}})

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "Unable to refresh access token", detail(t, rec))
	})
}

func TestVerifyRoute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/login", `{"mnemonic": "simple"}`, nil)
	var accessToken string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accessToken))

	rec = env.do(t, http.MethodPost, "/verify", `{"token": "`+accessToken+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/verify", `{"token": "garbage"}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Invalid JWT token provided", detail(t, rec))
}

func TestOIDCLoginRoute(t *testing.T) {
	t.Parallel()

	t.Run("logs in with a bearer id token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/oidc_login/keycloak", "",
			http.Header{"Authorization": {"Bearer some.id.token"}})

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Set-Cookie"), "authgate:refresh_token=")
	})

	t.Run("missing bearer token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/oidc_login/keycloak", "", nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.oidc.err = oidc.ErrProviderNotFound

		rec := env.do(t, http.MethodPost, "/oidc_login/github", "",
			http.Header{"Authorization": {"Bearer some.id.token"}})

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "Unknown OIDC provider", detail(t, rec))
	})
}

func TestOIDCTokenRouteUnknownProvider(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/oidc_token/github", `{"code": "auth-code"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOIDCProvidersRoute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/oidc_providers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var providers map[string]struct {
		DisplayName string `json:"display_name"`
		ClientID    string `json:"client_id"`
		PKCE        bool   `json:"pkce"`
		Scope       string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &providers))
	require.Contains(t, providers, "keycloak")
	require.Equal(t, "Keycloak", providers["keycloak"].DisplayName)
	// No client secret configured, so the provider is a PKCE client.
	require.True(t, providers["keycloak"].PKCE)
}

func TestAuthenticatorsRoute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.icat.authenticators = []domain.Authenticator{
		{Mnemonic: "simple", Friendly: "Simple"},
		{Mnemonic: "ldap", Friendly: "LDAP", Admin: true},
	}

	rec := env.do(t, http.MethodGet, "/authenticators", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var authenticators []domain.Authenticator
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authenticators))
	require.Len(t, authenticators, 2)
}

func TestMaintenanceRoutes(t *testing.T) {
	t.Parallel()

	adminToken := func(t *testing.T, env *testEnv) string {
		t.Helper()
		env.icat.username = "simple/root"
		rec := env.do(t, http.MethodPost, "/login", `{"mnemonic": "simple"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var token string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
		return token
	}

	t.Run("read is public", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/maintenance", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var state domain.MaintenanceState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		require.False(t, state.Show)
	})

	t.Run("admin can update", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		token := adminToken(t, env)

		rec := env.do(t, http.MethodPut, "/maintenance",
			`{"token": "`+token+`", "maintenance": {"show": true, "message": "back soon"}}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/maintenance", "", nil)
		var state domain.MaintenanceState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		require.True(t, state.Show)
		require.Equal(t, "back soon", state.Message)
	})

	t.Run("non-admin cannot update", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/login", `{"mnemonic": "simple"}`, nil)
		var token string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))

		rec = env.do(t, http.MethodPut, "/maintenance",
			`{"token": "`+token+`", "maintenance": {"show": true, "message": ""}}`, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "Unable to update maintenance state", detail(t, rec))
	})

	t.Run("scheduled maintenance round trip", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		token := adminToken(t, env)

		rec := env.do(t, http.MethodPut, "/scheduled_maintenance",
			`{"token": "`+token+`", "scheduled_maintenance": {"show": true, "message": "friday", "severity": "warning"}}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/scheduled_maintenance", "", nil)
		var state domain.ScheduledMaintenanceState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		require.Equal(t, "warning", state.Severity)
	})
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
}
