package ssh

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyStore reads per-host SSH keys from the local filesystem
// Layout: <basePath>/<host>/id_ed25519 (+ id_ed25519.pub)
type KeyStore struct {
	basePath string
}

// NewKeyStore creates a key store rooted at basePath
func NewKeyStore(basePath string) (*KeyStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("basePath cannot be empty")
	}
	return &KeyStore{basePath: basePath}, nil
}

// Load retrieves the SSH key for a specific host
func (s *KeyStore) Load(host string) (*KeyPair, error) {
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	privateKeyPath := filepath.Join(s.basePath, host, "id_ed25519")
	key, err := LoadKeyFile(privateKeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("SSH key for host %s not found", host)
		}
		return nil, err
	}

	// The public half is optional
	if public, err := os.ReadFile(privateKeyPath + ".pub"); err == nil {
		key.Public = public
	}

	return key, nil
}

// Exists checks if a key exists for a specific host
func (s *KeyStore) Exists(host string) (bool, error) {
	if host == "" {
		return false, fmt.Errorf("host cannot be empty")
	}

	privateKeyPath := filepath.Join(s.basePath, host, "id_ed25519")

	if _, err := os.Stat(privateKeyPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if key exists: %w", err)
	}

	return true, nil
}

// GetStoragePath returns the storage path for a given host
func (s *KeyStore) GetStoragePath(host string) string {
	return filepath.Join(s.basePath, host)
}

// LoadKeyFile reads a private key file. The returned error satisfies
// os.IsNotExist when the file is missing.
func LoadKeyFile(path string) (*KeyPair, error) {
	private, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	if len(private) == 0 {
		return nil, fmt.Errorf("private key %s is empty", path)
	}
	return &KeyPair{Private: private}, nil
}

// DefaultKeyFiles returns the conventional private key locations under home
func DefaultKeyFiles(home string) []string {
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// Signer parses the private key (PEM or OpenSSH format)
func (kp *KeyPair) Signer() (ssh.Signer, error) {
	if len(kp.Private) == 0 {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	signer, err := ssh.ParsePrivateKey(kp.Private)
	if err != nil {
		if _, ok := err.(*ssh.PassphraseMissingError); ok {
			return nil, fmt.Errorf("private key is passphrase protected; load it into ssh-agent or use an unencrypted key")
		}
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return signer, nil
}

// AuthMethod returns an ssh.AuthMethod that can be used for authentication
func (kp *KeyPair) AuthMethod() (ssh.AuthMethod, error) {
	signer, err := kp.Signer()
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}
