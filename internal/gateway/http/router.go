package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/oidc"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	Tokens      *service.TokenService
	Maintenance *service.MaintenanceService
	OIDC        *oidc.Verifier
	Config      config.Provider

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(cfg config.Provider, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		Config:       cfg,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	api := cfg.Current().API
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(httpx.CORSConfig{
			AllowedOrigins: api.AllowedCORSOrigins,
			AllowedMethods: api.AllowedCORSMethods,
			AllowedHeaders: api.AllowedCORSHeaders,
		}),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOIDC()
	r.registerMaintenance()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /login - strict rate limit (authentication attempts)
	login := &LoginHandler{Tokens: r.Tokens, Config: r.Config}
	r.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(login.Handle),
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.Metrics("/login"),
		),
	)

	// POST /refresh - moderate rate limit (periodic, per active session)
	refresh := &RefreshHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /refresh",
		httpx.Chain(http.HandlerFunc(refresh.Handle),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.Metrics("/refresh"),
		),
	)

	// POST /verify - moderate rate limit (downstream services poll this)
	verify := &VerifyHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /verify",
		httpx.Chain(http.HandlerFunc(verify.Handle),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.Metrics("/verify"),
		),
	)

	// GET /authenticators - public read-only listing
	authenticators := &AuthenticatorsHandler{Tokens: r.Tokens}
	r.Mux.Handle("GET /authenticators",
		httpx.Chain(http.HandlerFunc(authenticators.Handle),
			httpx.RateLimitByIP(httpx.PublicLimit),
			httpx.Metrics("/authenticators"),
		),
	)
}

func (r *Router) registerOIDC() {
	oidcLogin := &OIDCLoginHandler{Tokens: r.Tokens, Config: r.Config}
	r.Mux.Handle("POST /oidc_login/{provider_id}",
		httpx.Chain(http.HandlerFunc(oidcLogin.Handle),
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.Metrics("/oidc_login"),
		),
	)

	oidcToken := &OIDCTokenHandler{OIDC: r.OIDC}
	r.Mux.Handle("POST /oidc_token/{provider_id}",
		httpx.Chain(http.HandlerFunc(oidcToken.Handle),
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.Metrics("/oidc_token"),
		),
	)

	oidcProviders := &OIDCProvidersHandler{Config: r.Config}
	r.Mux.Handle("GET /oidc_providers",
		httpx.Chain(http.HandlerFunc(oidcProviders.Handle),
			httpx.RateLimitByIP(httpx.PublicLimit),
			httpx.Metrics("/oidc_providers"),
		),
	)
}

func (r *Router) registerMaintenance() {
	h := &MaintenanceHandler{Tokens: r.Tokens, Maintenance: r.Maintenance}

	r.Mux.Handle("GET /maintenance",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.PublicLimit),
			httpx.Metrics("/maintenance"),
		),
	)
	r.Mux.Handle("PUT /maintenance",
		httpx.Chain(http.HandlerFunc(h.HandlePut),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.Metrics("/maintenance"),
		),
	)
	r.Mux.Handle("GET /scheduled_maintenance",
		httpx.Chain(http.HandlerFunc(h.HandleGetScheduled),
			httpx.RateLimitByIP(httpx.PublicLimit),
			httpx.Metrics("/scheduled_maintenance"),
		),
	)
	r.Mux.Handle("PUT /scheduled_maintenance",
		httpx.Chain(http.HandlerFunc(h.HandlePutScheduled),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.Metrics("/scheduled_maintenance"),
		),
	)
}

func (r *Router) registerSystem() {
	// Health endpoints get generous limits; monitoring polls often.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Config, r.Maintenance),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
