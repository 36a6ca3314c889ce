// Package ssh handles the deployment's operator key material and a thin
// client facade over 'x/crypto/ssh' for post-bootstrap checks against the
// instance.
//
// Only ED25519 keys are produced. The public half is marshaled to the
// OpenSSH 'authorized_keys' format for import to AWS; the private half to
// the PEM-encoded OpenSSH format ('OPENSSH PRIVATE KEY' block) so it drops
// straight into 'ssh -i'.
package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate a 'crypto/ed25519' keypair")
	ErrPubKeyConv     = fmt.Errorf("failed to convert the 'ed25519.PublicKey' to 'ssh.PublicKey'")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the 'ssh.PublicKey' to OpenSSH format")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the private key to OpenSSH format")
	ErrPEMEncode      = fmt.Errorf("failed to PEM-encode the private key")
	ErrPrivKeyParse   = fmt.Errorf("failed to parse the private key")
)

type ED25519KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewED25519KeyPair generates a fresh 'crypto/ed25519' public+private pair.
func NewED25519KeyPair() (ED25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ED25519KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return ED25519KeyPair{Public: pub, Private: priv}, nil
}

// MarshalPublicOpenSSH marshals the public key to the OpenSSH
// ('authorized_keys') format, the representation AWS expects for key pair
// import.
func (kp ED25519KeyPair) MarshalPublicOpenSSH() ([]byte, error) {
	pub, err := ssh.NewPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	marshaled := ssh.MarshalAuthorizedKey(pub)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

// MarshalPrivateOpenSSH marshals the private key to the PEM-encoded OpenSSH
// format.
func (kp ED25519KeyPair) MarshalPrivateOpenSSH(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(kp.Private, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(block)
	if encoded == nil {
		return nil, ErrPEMEncode
	}
	return encoded, nil
}

// Signer wraps the private key as an 'ssh.Signer' for client authentication.
func (kp ED25519KeyPair) Signer() (ssh.Signer, error) {
	signer, err := ssh.NewSignerFromKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyParse, err)
	}
	return signer, nil
}

// SavePrivate writes the marshaled private key to 'path' with permissions
// OpenSSH will accept (0600).
func (kp ED25519KeyPair) SavePrivate(path, comment string) error {
	data, err := kp.MarshalPrivateOpenSSH(comment)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// LoadSigner parses the PEM-encoded private key at 'path' into an
// 'ssh.Signer'.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyParse, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyParse, err)
	}
	return signer, nil
}
