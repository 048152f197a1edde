// Package app wires the gateway together: configuration, signing keys,
// services, router, and the HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/datagateway/authgate/internal/gateway/config"
	httpapi "github.com/datagateway/authgate/internal/gateway/http"
	"github.com/datagateway/authgate/internal/gateway/icat"
	"github.com/datagateway/authgate/internal/gateway/oidc"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/internal/gateway/store"
	"github.com/datagateway/authgate/pkg/jwtx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

// ConfigPath resolves the configuration file location: the
// AUTHGATE_CONFIG environment variable, or authgate.yaml next to the
// working directory.
func ConfigPath() string {
	if path := os.Getenv("AUTHGATE_CONFIG"); path != "" {
		return path
	}
	return "authgate.yaml"
}

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	// baseCtx lives for the process and scopes background work such as
	// JWKS cache refreshes; cancelBase stops it on shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	config   config.Provider
	logger   *slog.Logger
	codec    *jwtx.Codec
	verifier *oidc.Verifier

	tokenService       *service.TokenService
	maintenanceService *service.MaintenanceService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(configPath string) (*Application, error) {
	provider, err := config.NewFileProvider(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := provider.Current()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	app := &Application{
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
		config:     provider,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.API.Env,
			Level:   cfg.API.LogLevel,
			Format:  cfg.API.LogFormat,
		}),
	}

	codec, err := InitKeys(cfg.Auth, app.logger)
	if err != nil {
		return nil, err
	}
	app.codec = codec

	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initServices() {
	app.verifier = oidc.NewVerifier(app.baseCtx, app.config)
	app.tokenService = &service.TokenService{
		Codec:  app.codec,
		ICAT:   icat.NewClient(app.config.Current().ICAT),
		OIDC:   app.verifier,
		Config: app.config,
	}
	app.maintenanceService = &service.MaintenanceService{
		Store: store.NewFileStore(app.config.Current().Maintenance),
	}
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.config, app.logger, BuildVersion)
	app.router.Tokens = app.tokenService
	app.router.Maintenance = app.maintenanceService
	app.router.OIDC = app.verifier
	app.router.ApplyRoutes()

	api := app.config.Current().API
	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", api.Host, api.Port),
		Handler: app.router,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("authgate starting",
		"addr", app.server.Addr,
		"version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully drains and stops the HTTP server.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")
	defer app.cancelBase()

	ctx, cancel := context.WithTimeout(context.Background(),
		app.config.Current().API.ShutdownGrace())
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.logger.Info("authgate stopped")
	return nil
}
