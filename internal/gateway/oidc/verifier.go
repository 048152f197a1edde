// Package oidc verifies ID tokens issued by configured OpenID Connect
// providers and exchanges authorization codes at their token endpoints.
// Discovery documents and JWKS key sets are cached per provider.
package oidc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/oauth2"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/pkg/slogx"
)

var (
	// ErrProviderNotFound reports a provider ID with no configuration.
	ErrProviderNotFound = errors.New("oidc: provider not found")

	// ErrInvalidToken reports an ID token that failed verification:
	// bad signature, wrong issuer or audience, expired, or malformed.
	ErrInvalidToken = errors.New("oidc: invalid token")
)

// discoveryTTL bounds how long a cached discovery document is trusted
// before it is fetched again.
const discoveryTTL = 24 * time.Hour

// DiscoveryDocument is the subset of the provider's well-known
// configuration the gateway needs.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// provider is the per-provider runtime state: its HTTP client (TLS
// verification is a per-provider setting), the JWKS cache bound to that
// client, and the cached discovery document.
type provider struct {
	id         string
	httpClient *http.Client
	jwks       *jwk.Cache

	mu             sync.Mutex
	jwksRegistered string
	doc            *DiscoveryDocument
	docFetched     time.Time
}

// Verifier resolves provider IDs against the live configuration and
// keeps per-provider caches across requests.
type Verifier struct {
	// baseCtx scopes the JWKS refresh goroutines to the process, not to
	// the request that first touched a provider.
	baseCtx context.Context
	config  config.Provider

	mu        sync.Mutex
	providers map[string]*provider
}

// NewVerifier builds a Verifier over the given configuration source. The
// context must outlive the Verifier; JWKS caches refresh in the
// background until it is cancelled. Provider lookups consult the
// configuration on every call, so providers added by a reload become
// usable without a restart.
func NewVerifier(ctx context.Context, cfg config.Provider) *Verifier {
	return &Verifier{
		baseCtx:   ctx,
		config:    cfg,
		providers: make(map[string]*provider),
	}
}

// lookupProvider returns the provider's configuration and runtime state,
// or ErrProviderNotFound.
func (v *Verifier) lookupProvider(id string) (config.OIDCProviderConfig, *provider, error) {
	cfg, ok := v.config.Current().OIDC.Providers[id]
	if !ok {
		return config.OIDCProviderConfig{}, nil, fmt.Errorf("%w: %q", ErrProviderNotFound, id)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.providers[id]
	if !ok {
		transport := http.DefaultTransport
		if !cfg.VerifyCert {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- config-gated per provider
			}
		}
		httpClient := &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		}
		cache, err := jwk.NewCache(v.baseCtx, httprc.NewClient(httprc.WithHTTPClient(httpClient)))
		if err != nil {
			return config.OIDCProviderConfig{}, nil, fmt.Errorf("oidc: create JWKS cache: %w", err)
		}
		p = &provider{
			id:         id,
			httpClient: httpClient,
			jwks:       cache,
		}
		v.providers[id] = p
	}
	return cfg, p, nil
}

// discovery returns the provider's discovery document, fetching it when
// the cached copy is missing or older than discoveryTTL.
func (p *provider) discovery(ctx context.Context, configurationURL string) (*DiscoveryDocument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc != nil && time.Since(p.docFetched) < discoveryTTL {
		return p.doc, nil
	}

	log := slogx.FromContext(ctx)
	log.Info("fetching OIDC discovery document", "provider", p.id, "url", configurationURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configurationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oidc: build discovery request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oidc: fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oidc: discovery document returned status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("oidc: decode discovery document: %w", err)
	}
	if doc.Issuer == "" || doc.JWKSURI == "" {
		return nil, fmt.Errorf("oidc: discovery document missing issuer or jwks_uri")
	}

	p.doc = &doc
	p.docFetched = time.Now()
	return p.doc, nil
}

// keyForToken resolves the token's kid against the provider's JWKS,
// registering the JWKS URL with the cache on first use.
func (p *provider) keyForToken(ctx context.Context, jwksURL string, token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("token header missing kid")
	}

	p.mu.Lock()
	if p.jwksRegistered != jwksURL {
		if err := p.jwks.Register(ctx, jwksURL); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("register JWKS URL: %w", err)
		}
		p.jwksRegistered = jwksURL
	}
	p.mu.Unlock()

	keySet, err := p.jwks.Lookup(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("lookup JWKS: %w", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("key ID %q not found in JWKS", kid)
	}

	// Pin the accepted signing method to what the key advertises. Keys
	// without an alg entry still refuse HMAC methods so a public key can
	// never be fed to a symmetric verifier.
	if alg, ok := key.Algorithm(); ok {
		if token.Method.Alg() != alg.String() {
			return nil, fmt.Errorf("token alg %q does not match key alg %q", token.Method.Alg(), alg.String())
		}
	} else if _, symmetric := token.Method.(*jwt.SigningMethodHMAC); symmetric {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("export raw key: %w", err)
	}
	return rawKey, nil
}

// VerifyIDToken checks an ID token against the named provider and
// returns the downstream mechanism name and the username from the
// configured claim. Signature, issuer, audience, and expiry are all
// enforced; verification failures wrap ErrInvalidToken.
func (v *Verifier) VerifyIDToken(ctx context.Context, providerID, rawToken string) (mechanism, username string, err error) {
	cfg, p, err := v.lookupProvider(providerID)
	if err != nil {
		return "", "", err
	}

	doc, err := p.discovery(ctx, cfg.ConfigurationURL)
	if err != nil {
		return "", "", err
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(doc.Issuer),
		jwt.WithAudience(cfg.ClientID),
		jwt.WithLeeway(5*time.Second),
		jwt.WithExpirationRequired(),
	)

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		return p.keyForToken(ctx, doc.JWKSURI, token)
	}); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	usernameClaim := cfg.UsernameClaim
	if usernameClaim == "" {
		usernameClaim = "sub"
	}
	name, ok := claims[usernameClaim].(string)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: missing %q claim", ErrInvalidToken, usernameClaim)
	}

	return cfg.Mechanism, name, nil
}

// TokenResponse is the provider's token endpoint response, passed back
// to the caller so it can complete the login with the id_token.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token"`
}

// ExchangeCode trades an authorization code for the provider's tokens
// using the standard code flow. PKCE verifiers pass through when the
// caller supplies one.
func (v *Verifier) ExchangeCode(ctx context.Context, providerID, code, codeVerifier string) (*TokenResponse, error) {
	cfg, p, err := v.lookupProvider(providerID)
	if err != nil {
		return nil, err
	}

	doc, err := p.discovery(ctx, cfg.ConfigurationURL)
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  v.config.Current().OIDC.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	// Route the exchange through the provider's client so its TLS
	// verification setting applies.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %w", ErrInvalidToken, err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%w: token response missing id_token", ErrInvalidToken)
	}

	out := &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
	}
	if !token.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	return out, nil
}

// Discovery exposes the provider's discovery document, used by the
// provider listing to surface authorization endpoints.
func (v *Verifier) Discovery(ctx context.Context, providerID string) (*DiscoveryDocument, error) {
	cfg, p, err := v.lookupProvider(providerID)
	if err != nil {
		return nil, err
	}
	return p.discovery(ctx, cfg.ConfigurationURL)
}
