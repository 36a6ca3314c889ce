package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestMarshalPublicOpenSSH(t *testing.T) {
	keys, err := NewED25519KeyPair()
	require.NoError(t, err)

	material, err := keys.MarshalPublicOpenSSH()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(material), "ssh-ed25519 "))

	// The marshaled form must round-trip through the authorized_keys parser.
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(material)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", parsed.Type())
}

func TestMarshalPrivateOpenSSH(t *testing.T) {
	keys, err := NewED25519KeyPair()
	require.NoError(t, err)

	pemData, err := keys.MarshalPrivateOpenSSH("berth")
	require.NoError(t, err)
	assert.Contains(t, string(pemData), "OPENSSH PRIVATE KEY")

	// And it must parse back to a usable signer.
	signer, err := ssh.ParsePrivateKey(pemData)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}

func TestSaveAndLoad(t *testing.T) {
	keys, err := NewED25519KeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, keys.SavePrivate(path, "berth"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	signer, err := LoadSigner(path)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}
