package signal

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "ephemera.key"
	publicKeyFile  = "ephemera.key.pub"
)

// GenerateKeyPair creates a new Ed25519 identity.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// SaveKeyPair writes the key pair into dir. The private key file is 0600.
func SaveKeyPair(dir string, public ed25519.PublicKey, private ed25519.PrivateKey) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// LoadKeyPair reads a key pair written by SaveKeyPair and checks that the
// public half matches the private key.
func LoadKeyPair(dir string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	privateBytes, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}

	publicBytes, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}

	private := ed25519.PrivateKey(privateBytes)
	public := ed25519.PublicKey(publicBytes)
	if !public.Equal(private.Public()) {
		return nil, nil, fmt.Errorf("public key does not match private key")
	}
	return public, private, nil
}
