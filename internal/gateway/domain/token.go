// Package domain holds the data types shared across the gateway: token
// payloads, maintenance states, and the authenticator descriptor.
package domain

import "github.com/golang-jwt/jwt/v5"

// AccessTokenPayload is the claims set of an access token. It is built
// fresh on every issuance and refresh and never persisted server side;
// the signed token itself is the only record of it.
type AccessTokenPayload struct {
	// SessionID is the opaque ICAT session handle the token shadows. The
	// remote session must be kept alive in lockstep with the token.
	SessionID string `json:"sessionId"`

	// Username is the ICAT username, usually mnemonic-qualified
	// (e.g. "LDAP/alice").
	Username string `json:"username"`

	// UserIsAdmin is decided against the configured admin list at
	// issuance time and trusted for the token's lifetime.
	UserIsAdmin bool `json:"userIsAdmin"`

	// InstrumentIDs optionally scopes the session to instruments.
	InstrumentIDs []int `json:"instrumentIds,omitempty"`

	jwt.RegisteredClaims
}

// RefreshTokenPayload is the claims set of a refresh token. It carries
// the username and nothing else: a refresh token only proves "this user
// authenticated recently". The session identity lives solely in the
// access token being refreshed.
type RefreshTokenPayload struct {
	Username string `json:"username"`

	jwt.RegisteredClaims
}

// Authenticator describes one authentication mechanism advertised by the
// ICAT server's properties endpoint. Entries pass through to clients
// as ICAT sends them, so field names mirror the ICAT payload.
type Authenticator struct {
	Mnemonic string             `json:"mnemonic"`
	Friendly string             `json:"friendly,omitempty"`
	Admin    bool               `json:"admin,omitempty"`
	Keys     []AuthenticatorKey `json:"keys,omitempty"`
}

// AuthenticatorKey is one credential field an authenticator expects,
// e.g. a username, or a password with hide set.
type AuthenticatorKey struct {
	Name string `json:"name"`
	Hide bool   `json:"hide,omitempty"`
}
