package cryptox_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datagateway/authgate/pkg/cryptox"
)

func TestGenerateRSAKey(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	require.Contains(t, string(key), "BEGIN RSA PRIVATE KEY")

	_, err = cryptox.GenerateRSAKey(1024)
	require.Error(t, err, "undersized keys must be refused")
}

func TestGenerateRSAKeyPKCS8(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateRSAKeyPKCS8(2048)
	require.NoError(t, err)
	require.Contains(t, string(key), "BEGIN PRIVATE KEY")
}

func TestPublicKeyPEM(t *testing.T) {
	t.Parallel()

	private, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	public, err := cryptox.PublicKeyPEM(private)
	require.NoError(t, err)
	require.Contains(t, string(public), "BEGIN PUBLIC KEY")

	_, err = cryptox.PublicKeyPEM([]byte("not a key"))
	require.Error(t, err)
}

func TestPublicKeyOpenSSH(t *testing.T) {
	t.Parallel()

	private, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	public, err := cryptox.PublicKeyOpenSSH(private)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(public), "ssh-rsa "))
}
