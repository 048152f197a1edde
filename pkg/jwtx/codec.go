// Package jwtx implements the token codec: it turns claims payloads into
// compact signed JWT strings and back, against a single process-lifetime
// RSA keypair.
package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single failure value callers see from Decode.
// Bad signature, malformed structure, expired claims, and wrong algorithm
// all collapse into it: telling an external caller which one occurred
// would hand a forger a probing oracle. The underlying cause stays
// attached for server-side logs via errors.Unwrap.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// Codec signs and verifies JWTs with a fixed RSA keypair. The keypair is
// loaded once at startup and never rotated within a process lifetime, so
// a Codec is safe for unbounded concurrent use.
type Codec struct {
	method jwt.SigningMethod
	priv   any
	pub    any
}

// NewCodec builds a Codec for the configured algorithm from PEM- or
// OpenSSH-encoded key material. Only the RS256 family is accepted; the
// algorithm name is configuration-driven purely so a mismatch fails loud
// at startup rather than quietly signing with the wrong scheme.
func NewCodec(alg string, privateKey, publicKey []byte) (*Codec, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("jwtx: unknown signing algorithm %q", alg)
	}
	if _, ok := method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("jwtx: unsupported signing algorithm %q", alg)
	}

	priv, err := ParseRSAPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	pub, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	return &Codec{method: method, priv: priv, pub: pub}, nil
}

// Alg returns the configured signing algorithm name.
func (c *Codec) Alg() string { return c.method.Alg() }

// Sign encodes the claims into a signed compact token string. It sets no
// claims beyond what the caller supplies.
func (c *Codec) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(c.method, claims).SignedString(c.priv)
}

type decodeOptions struct {
	verifyExpiry bool
}

// DecodeOption adjusts claim validation during Decode.
type DecodeOption func(*decodeOptions)

// WithoutExpiryCheck skips exp/nbf validation. The signature is still
// verified; this exists for the refresh path, where the access token is
// expected to have expired already.
func WithoutExpiryCheck() DecodeOption {
	return func(o *decodeOptions) { o.verifyExpiry = false }
}

// Decode verifies the token's signature (and, by default, its expiry)
// and returns every claim present in the payload. Callers check for the
// claims they need.
func (c *Codec) Decode(token string, opts ...DecodeOption) (jwt.MapClaims, error) {
	o := decodeOptions{verifyExpiry: true}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
	}
	if !o.verifyExpiry {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(parserOpts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
