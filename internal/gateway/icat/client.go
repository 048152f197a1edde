// Package icat is the HTTP adapter for the ICAT session API: session
// creation, username lookup, session refresh, and the authenticator
// listing from the server's properties.
package icat

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/domain"
	"github.com/datagateway/authgate/pkg/slogx"
)

// AuthenticationError reports that the ICAT server rejected credentials
// or a session lookup. Message carries the server's own text where one
// was given; transport failures and timeouts surface as the same type so
// callers see a single upstream-failure taxonomy.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return "icat: " + e.Message }

// Client talks to one ICAT server. All calls share a single HTTP client
// whose timeout and TLS verification come from configuration.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client from the ICAT section of the configuration.
func NewClient(cfg config.ICATConfig) *Client {
	transport := http.DefaultTransport
	if !cfg.CertificateValidation {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- config-gated for internal test deployments
		}
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// loginRequest is the payload ICAT expects inside the "json" form field.
// Credentials must be an array of single-entry objects.
type loginRequest struct {
	Plugin      string              `json:"plugin"`
	Credentials []map[string]string `json:"credentials,omitempty"`
}

// Authenticate establishes a session with the given mechanism mnemonic
// and returns the session ID. Nil credentials request an anonymous
// session. Success is judged by HTTP status; a 200 response without a
// session ID is still a failure, which covers older server variants that
// report errors inside a 200 body.
func (c *Client) Authenticate(ctx context.Context, mnemonic string, credentials map[string]string) (string, error) {
	log := slogx.FromContext(ctx)
	log.Info("authenticating against ICAT", "url", c.baseURL, "mnemonic", mnemonic)

	payload := loginRequest{Plugin: mnemonic}
	if credentials == nil {
		payload.Plugin = "anon"
	} else {
		for k, v := range credentials {
			payload.Credentials = append(payload.Credentials, map[string]string{k: v})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &AuthenticationError{Message: err.Error()}
	}

	form := url.Values{"json": {string(body)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthenticationError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthenticationError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthenticationError{Message: readMessage(resp.Body)}
	}

	var session struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", &AuthenticationError{Message: "malformed session response"}
	}
	if session.SessionID == "" {
		return "", &AuthenticationError{Message: "no session ID in response"}
	}

	return session.SessionID, nil
}

// Username resolves a session ID to the ICAT username it belongs to.
func (c *Client) Username(ctx context.Context, sessionID string) (string, error) {
	log := slogx.FromContext(ctx)
	log.Info("retrieving ICAT username", "url", c.baseURL)

	resp, err := c.get(ctx, "/session/"+url.PathEscape(sessionID))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthenticationError{Message: readMessage(resp.Body)}
	}

	var session struct {
		UserName string `json:"userName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil || session.UserName == "" {
		return "", &AuthenticationError{Message: "no username in response"}
	}

	return session.UserName, nil
}

// RefreshSession extends the remote session's lifetime. This is the side
// call that keeps the ICAT session alive in parallel with re-signing the
// local access token.
func (c *Client) RefreshSession(ctx context.Context, sessionID string) error {
	log := slogx.FromContext(ctx)
	log.Info("refreshing ICAT session", "url", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return &AuthenticationError{Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthenticationError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return &AuthenticationError{Message: "the session ID could not be refreshed"}
	}
	return nil
}

// Authenticators lists the authentication mechanisms the server
// advertises in its properties. A response without the expected field is
// an error; the listing never silently degrades to empty.
func (c *Client) Authenticators(ctx context.Context) ([]domain.Authenticator, error) {
	log := slogx.FromContext(ctx)
	log.Info("querying ICAT authenticator list", "url", c.baseURL)

	resp, err := c.get(ctx, "/properties")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("icat: properties returned status %d", resp.StatusCode)
	}

	var properties struct {
		Authenticators []domain.Authenticator `json:"authenticators"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&properties); err != nil {
		return nil, fmt.Errorf("icat: malformed properties response: %w", err)
	}
	if properties.Authenticators == nil {
		return nil, fmt.Errorf("icat: properties missing authenticators")
	}

	return properties.Authenticators, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &AuthenticationError{Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Message: err.Error()}
	}
	return resp, nil
}

// readMessage pulls the "message" field out of an ICAT error body,
// falling back to a generic string when there isn't one.
func readMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Message == "" {
		return "authentication failed"
	}
	return body.Message
}
