// Package cryptox provides RSA key generation and encoding helpers used
// by the signing-key bootstrap and by tests.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// GenerateRSAKey generates a new RSA private key with the specified bit
// size and returns it in PKCS1 PEM format. Common sizes are 2048, 3072,
// or 4096 bits.
func GenerateRSAKey(bits int) ([]byte, error) {
	key, err := generate(bits)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), nil
}

// GenerateRSAKeyPKCS8 generates a new RSA private key in PKCS8 PEM format.
func GenerateRSAKeyPKCS8(bits int) ([]byte, error) {
	key, err := generate(bits)
	if err != nil {
		return nil, err
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PublicKeyPEM returns the PKIX PEM encoding of the public half of a
// PEM-encoded RSA private key.
func PublicKeyPEM(privatePEM []byte) ([]byte, error) {
	key, err := parsePrivate(privatePEM)
	if err != nil {
		return nil, err
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// PublicKeyOpenSSH returns the authorized_keys line ("ssh-rsa AAAA...")
// for the public half of a PEM-encoded RSA private key. Deployments that
// generate their keypair with ssh-keygen hand us this format.
func PublicKeyOpenSSH(privatePEM []byte) ([]byte, error) {
	key, err := parsePrivate(privatePEM)
	if err != nil {
		return nil, err
	}

	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: build ssh public key: %w", err)
	}

	return ssh.MarshalAuthorizedKey(pub), nil
}

func generate(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least 2048 bits")
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate RSA key: %w", err)
	}
	return key, nil
}

func parsePrivate(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("cryptox: invalid PEM")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
		}
		rk, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("cryptox: not an RSA private key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}
}
