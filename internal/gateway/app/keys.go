package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/pkg/cryptox"
	"github.com/datagateway/authgate/pkg/jwtx"
)

// InitKeys loads the signing keypair from the configured paths and
// builds the token codec. When neither file exists a fresh pair is
// generated and persisted, which keeps first-run deployments working;
// a half-present pair is an error rather than something to guess at.
func InitKeys(cfg config.AuthConfig, logger *slog.Logger) (*jwtx.Codec, error) {
	private, privateErr := os.ReadFile(cfg.PrivateKeyPath)
	public, publicErr := os.ReadFile(cfg.PublicKeyPath)

	if errors.Is(privateErr, fs.ErrNotExist) && errors.Is(publicErr, fs.ErrNotExist) {
		logger.Warn("no signing keypair found, generating one",
			"private_key_path", cfg.PrivateKeyPath,
			"public_key_path", cfg.PublicKeyPath)

		var err error
		private, public, err = generateKeypair(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		if privateErr != nil {
			return nil, fmt.Errorf("read private key: %w", privateErr)
		}
		if publicErr != nil {
			return nil, fmt.Errorf("read public key: %w", publicErr)
		}
	}

	codec, err := jwtx.NewCodec(cfg.JWTAlgorithm, private, public)
	if err != nil {
		return nil, fmt.Errorf("initialize token codec: %w", err)
	}
	return codec, nil
}

func generateKeypair(cfg config.AuthConfig) ([]byte, []byte, error) {
	private, err := cryptox.GenerateRSAKey(2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generate signing key: %w", err)
	}
	public, err := cryptox.PublicKeyPEM(private)
	if err != nil {
		return nil, nil, fmt.Errorf("derive public key: %w", err)
	}

	if err := os.WriteFile(cfg.PrivateKeyPath, private, 0o600); err != nil {
		return nil, nil, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(cfg.PublicKeyPath, public, 0o644); err != nil {
		return nil, nil, fmt.Errorf("write public key: %w", err)
	}
	return private, public, nil
}
