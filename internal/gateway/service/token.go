// Package service implements the gateway's business logic: issuing,
// verifying, and refreshing token pairs bound to ICAT sessions, and the
// maintenance state operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/domain"
	"github.com/datagateway/authgate/pkg/jwtx"
	"github.com/datagateway/authgate/pkg/slogx"
)

var (
	// ErrInvalidToken reports a token that failed signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid_token")

	// ErrBlacklistedToken reports a refresh token that has been revoked.
	ErrBlacklistedToken = errors.New("blacklisted_token")

	// ErrUsernameMismatch reports a refresh attempt where the access
	// token belongs to a different user than the refresh token.
	ErrUsernameMismatch = errors.New("username_mismatch")

	// ErrRefresh reports that the upstream session could not be
	// extended.
	ErrRefresh = errors.New("refresh_failed")

	// ErrNotAdmin reports a valid token without the admin flag.
	ErrNotAdmin = errors.New("not_admin")
)

// IdentityProvider is the upstream ICAT session API.
type IdentityProvider interface {
	Authenticate(ctx context.Context, mnemonic string, credentials map[string]string) (string, error)
	Username(ctx context.Context, sessionID string) (string, error)
	RefreshSession(ctx context.Context, sessionID string) error
	Authenticators(ctx context.Context) ([]domain.Authenticator, error)
}

// OIDCVerifier validates externally issued ID tokens.
type OIDCVerifier interface {
	VerifyIDToken(ctx context.Context, providerID, rawToken string) (mechanism, username string, err error)
}

// TokenPair is one issuance: a short-lived access token and the
// long-lived refresh token that renews it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService owns the token lifecycle. Admin sets and the refresh
// token blacklist are re-read from the configuration source at each
// decision point, so revocations apply without a restart.
type TokenService struct {
	Codec  *jwtx.Codec
	ICAT   IdentityProvider
	OIDC   OIDCVerifier
	Config config.Provider
}

// Login authenticates credentials against ICAT and issues a token pair
// for the resulting session. Nil credentials request an anonymous
// session.
func (s *TokenService) Login(ctx context.Context, mnemonic string, credentials map[string]string) (*TokenPair, error) {
	sessionID, err := s.ICAT.Authenticate(ctx, mnemonic, credentials)
	if err != nil {
		return nil, err
	}

	username, err := s.ICAT.Username(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.issuePair(ctx, sessionID, username)
}

// LoginOIDC verifies an externally issued ID token and trades the
// identity for an ICAT session through the delegation authenticator,
// then issues a token pair.
func (s *TokenService) LoginOIDC(ctx context.Context, providerID, rawIDToken string) (*TokenPair, error) {
	mechanism, oidcUsername, err := s.OIDC.VerifyIDToken(ctx, providerID, rawIDToken)
	if err != nil {
		return nil, err
	}

	oidcCfg := s.Config.Current().OIDC
	sessionID, err := s.ICAT.Authenticate(ctx, oidcCfg.ICATAuthenticator, map[string]string{
		"mechanism": mechanism,
		"username":  oidcUsername,
		"token":     oidcCfg.ICATAuthenticatorToken,
	})
	if err != nil {
		return nil, err
	}

	username, err := s.ICAT.Username(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.issuePair(ctx, sessionID, username)
}

// currentConfig reloads the configuration so operator edits (blacklist,
// admin set) apply without a restart. A failed reload keeps the last
// good snapshot rather than failing the caller's operation.
func (s *TokenService) currentConfig(ctx context.Context) *config.Config {
	cfg, err := s.Config.Reload()
	if err != nil {
		slogx.FromContext(ctx).Warn("config reload failed, using previous snapshot",
			slog.Any("error", err))
		return s.Config.Current()
	}
	return cfg
}

// issuePair signs a fresh access and refresh token for the session. The
// configuration is reloaded first so admin promotions made since startup
// take effect on the next login.
func (s *TokenService) issuePair(ctx context.Context, sessionID, username string) (*TokenPair, error) {
	cfg := s.currentConfig(ctx)

	l := slogx.FromContext(ctx)
	now := time.Now()

	access := domain.AccessTokenPayload{
		SessionID:   sessionID,
		Username:    username,
		UserIsAdmin: cfg.Auth.IsAdmin(username),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Auth.AccessTokenTTL())),
		},
	}
	accessToken, err := s.Codec.Sign(access)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := domain.RefreshTokenPayload{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Auth.RefreshTokenTTL())),
		},
	}
	refreshToken, err := s.Codec.Sign(refresh)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	l.Info("issued token pair",
		slog.String("username", username),
		slog.Bool("admin", access.UserIsAdmin))

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Verify checks an access token's signature and expiry.
func (s *TokenService) Verify(_ context.Context, accessToken string) error {
	if _, err := s.Codec.Decode(accessToken); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}

// VerifyAdmin checks the token and additionally requires the admin flag
// baked into it at issuance.
func (s *TokenService) VerifyAdmin(_ context.Context, accessToken string) error {
	claims, err := s.Codec.Decode(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if isAdmin, _ := claims["userIsAdmin"].(bool); !isAdmin {
		return ErrNotAdmin
	}
	return nil
}

// Refresh extends an expired-or-not access token using a valid refresh
// token. The access token's signature must still verify even though its
// expiry is ignored, both tokens must belong to the same user, and the
// upstream ICAT session is renewed in the same step. The refresh token
// itself is returned unchanged; its lifetime bounds the whole session.
func (s *TokenService) Refresh(ctx context.Context, refreshToken, accessToken string) (string, error) {
	cfg := s.currentConfig(ctx)

	if cfg.Auth.IsBlacklisted(refreshToken) {
		return "", ErrBlacklistedToken
	}

	refreshClaims, err := s.Codec.Decode(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	accessClaims, err := s.Codec.Decode(accessToken, jwtx.WithoutExpiryCheck())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	refreshUsername, _ := refreshClaims["username"].(string)
	accessUsername, _ := accessClaims["username"].(string)
	if refreshUsername == "" || refreshUsername != accessUsername {
		return "", ErrUsernameMismatch
	}

	sessionID, _ := accessClaims["sessionId"].(string)
	if sessionID == "" {
		return "", ErrInvalidToken
	}
	if err := s.ICAT.RefreshSession(ctx, sessionID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefresh, err)
	}

	accessClaims["exp"] = time.Now().Add(cfg.Auth.AccessTokenTTL()).Unix()

	newAccess, err := s.Codec.Sign(accessClaims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	slogx.FromContext(ctx).Info("refreshed access token",
		slog.String("username", accessUsername))

	return newAccess, nil
}

// Authenticators lists the mechanisms the ICAT server advertises.
func (s *TokenService) Authenticators(ctx context.Context) ([]domain.Authenticator, error) {
	return s.ICAT.Authenticators(ctx)
}
