// Package config defines the gateway configuration and the provider
// through which the rest of the service reads it. Decision-point values
// (refresh-token blacklist, admin usernames) are re-read from the config
// file on every use so an operator can revoke a token or grant admin
// without a restart.
package config

import (
	"fmt"
	"slices"
	"time"
)

type Config struct {
	API         APIConfig         `mapstructure:"api"`
	ICAT        ICATConfig        `mapstructure:"icat"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	OIDC        OIDCConfig        `mapstructure:"oidc"`
}

type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// RootPath is the path prefix a fronting proxy strips before the
	// request reaches this service. It only matters for the refresh
	// cookie's Path attribute.
	RootPath string `mapstructure:"root_path"`

	AllowedCORSOrigins []string `mapstructure:"allowed_cors_origins"`
	AllowedCORSMethods []string `mapstructure:"allowed_cors_methods"`
	AllowedCORSHeaders []string `mapstructure:"allowed_cors_headers"`

	Env                  string `mapstructure:"env"`
	LogLevel             string `mapstructure:"log_level"`
	LogFormat            string `mapstructure:"log_format"`
	ShutdownGraceSeconds int    `mapstructure:"shutdown_grace_seconds"`
}

type ICATConfig struct {
	URL string `mapstructure:"url"`

	// CertificateValidation disables TLS verification when false. Only
	// meant for facility-internal test deployments.
	CertificateValidation bool `mapstructure:"certificate_validation"`
	RequestTimeoutSeconds int  `mapstructure:"request_timeout_seconds"`
}

type AuthConfig struct {
	PrivateKeyPath string `mapstructure:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path"`
	JWTAlgorithm   string `mapstructure:"jwt_algorithm"`

	AccessTokenValidityMinutes int `mapstructure:"access_token_validity_minutes"`
	RefreshTokenValidityDays   int `mapstructure:"refresh_token_validity_days"`

	// Blacklist lists refresh tokens revoked before their natural
	// expiry. Checked on every refresh attempt against a fresh read of
	// this file.
	Blacklist []string `mapstructure:"refresh_token_blacklist"`

	// AdminUsers are ICAT usernames granted the admin claim, usually in
	// the <mnemonic>/<username> form.
	AdminUsers []string `mapstructure:"admin_users"`
}

type MaintenanceConfig struct {
	MaintenancePath          string `mapstructure:"maintenance_path"`
	ScheduledMaintenancePath string `mapstructure:"scheduled_maintenance_path"`
}

type OIDCConfig struct {
	// RedirectURI is sent on authorization-code exchanges.
	RedirectURI string `mapstructure:"redirect_uri"`

	// ICATAuthenticator is the mnemonic of the ICAT plugin that accepts
	// delegated OIDC identities, and ICATAuthenticatorToken the shared
	// secret that proves the delegation came from this gateway.
	ICATAuthenticator      string `mapstructure:"icat_authenticator"`
	ICATAuthenticatorToken string `mapstructure:"icat_authenticator_token"`

	Providers map[string]OIDCProviderConfig `mapstructure:"providers"`
}

type OIDCProviderConfig struct {
	DisplayName      string `mapstructure:"display_name"`
	ConfigurationURL string `mapstructure:"configuration_url"`
	ClientID         string `mapstructure:"client_id"`

	// ClientSecret is optional; absence implies a public/PKCE client.
	ClientSecret string `mapstructure:"client_secret"`

	VerifyCert bool `mapstructure:"verify_cert"`

	// UsernameClaim names the id-token claim carrying the username.
	// Defaults to "sub".
	UsernameClaim string `mapstructure:"username_claim"`

	// Mechanism is the downstream authentication mechanism name passed
	// to ICAT for identities verified through this provider.
	Mechanism string `mapstructure:"mechanism"`

	Scope string `mapstructure:"scope"`
}

// AccessTokenTTL returns the access token validity window.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenValidityMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token validity window.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenValidityDays) * 24 * time.Hour
}

// IsAdmin reports whether the username is in the configured admin set.
func (a AuthConfig) IsAdmin(username string) bool {
	return slices.Contains(a.AdminUsers, username)
}

// IsBlacklisted reports whether the refresh token has been revoked.
func (a AuthConfig) IsBlacklisted(token string) bool {
	return slices.Contains(a.Blacklist, token)
}

// RequestTimeout returns the per-request deadline for upstream ICAT calls.
func (i ICATConfig) RequestTimeout() time.Duration {
	return time.Duration(i.RequestTimeoutSeconds) * time.Second
}

// ShutdownGrace returns the graceful shutdown deadline.
func (a APIConfig) ShutdownGrace() time.Duration {
	return time.Duration(a.ShutdownGraceSeconds) * time.Second
}

// Validate checks the fields without which the service cannot start.
func (c *Config) Validate() error {
	if c.ICAT.URL == "" {
		return fmt.Errorf("config: icat.url is required")
	}
	if c.Auth.PrivateKeyPath == "" || c.Auth.PublicKeyPath == "" {
		return fmt.Errorf("config: auth signing key paths are required")
	}
	if c.Auth.AccessTokenValidityMinutes <= 0 {
		return fmt.Errorf("config: auth.access_token_validity_minutes must be positive")
	}
	if c.Auth.RefreshTokenValidityDays <= 0 {
		return fmt.Errorf("config: auth.refresh_token_validity_days must be positive")
	}
	for id, p := range c.OIDC.Providers {
		if p.ConfigurationURL == "" {
			return fmt.Errorf("config: oidc provider %q has no configuration_url", id)
		}
		if p.ClientID == "" {
			return fmt.Errorf("config: oidc provider %q has no client_id", id)
		}
	}
	return nil
}
