// Package secrets stores and resolves the sudo password used on remote hosts
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/catalystcommunity/bindeploy/internal/config"
)

const (
	// KeyringService is the service name used in the OS keyring
	KeyringService = "bindeploy"
	// FallbackFileName is the filename for fallback file storage
	FallbackFileName = "credentials.yml"
)

// ErrNotFound is returned when no sudo password is stored for a host
var ErrNotFound = errors.New("no sudo password found")

// KeyringUser returns the keyring account name for host
func KeyringUser(host string) string {
	return "sudo@" + host
}

// fallbackFile is the on-disk format used when no keyring is available
type fallbackFile struct {
	SudoPasswords map[string]string `yaml:"sudo_passwords"`
}

// StoreSudoPassword stores the sudo password for host in the OS keyring
// Falls back to file storage if keyring is unavailable
func StoreSudoPassword(host, password string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	err := keyring.Set(KeyringService, KeyringUser(host), password)
	if err == nil {
		return nil
	}

	return storePasswordInFile(host, password)
}

// LoadSudoPassword retrieves the sudo password for host from the OS keyring
// or the fallback file. It returns ErrNotFound when neither has one.
func LoadSudoPassword(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("host cannot be empty")
	}

	password, err := keyring.Get(KeyringService, KeyringUser(host))
	if err == nil {
		return password, nil
	}

	return loadPasswordFromFile(host)
}

// ClearSudoPassword removes the sudo password for host from all storage
func ClearSudoPassword(host string) error {
	keyringErr := keyring.Delete(KeyringService, KeyringUser(host))
	if errors.Is(keyringErr, keyring.ErrNotFound) {
		keyringErr = nil
	}

	fileErr := deletePasswordFromFile(host)

	if keyringErr != nil && fileErr != nil {
		return fmt.Errorf("failed to clear password from keyring (%v) and file (%v)", keyringErr, fileErr)
	}

	return nil
}

func readFallbackFile() (*fallbackFile, string, error) {
	path, err := getFallbackFilePath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get credentials file path: %w", err)
	}

	contents := &fallbackFile{SudoPasswords: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return contents, path, nil
		}
		return nil, "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, contents); err != nil {
		return nil, "", fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if contents.SudoPasswords == nil {
		contents.SudoPasswords = map[string]string{}
	}

	return contents, path, nil
}

func writeFallbackFile(path string, contents *fallbackFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	// Write with restrictive permissions (0600 = read/write for owner only)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// storePasswordInFile stores the password in the fallback file
func storePasswordInFile(host, password string) error {
	contents, path, err := readFallbackFile()
	if err != nil {
		return err
	}

	contents.SudoPasswords[host] = password
	return writeFallbackFile(path, contents)
}

// loadPasswordFromFile loads the password from the fallback file
func loadPasswordFromFile(host string) (string, error) {
	contents, _, err := readFallbackFile()
	if err != nil {
		return "", err
	}

	password, ok := contents.SudoPasswords[host]
	if !ok || password == "" {
		return "", fmt.Errorf("%w for %s in keyring or file storage", ErrNotFound, host)
	}

	return password, nil
}

// deletePasswordFromFile removes host from the fallback file, deleting the
// file once it is empty
func deletePasswordFromFile(host string) error {
	contents, path, err := readFallbackFile()
	if err != nil {
		return err
	}

	if _, ok := contents.SudoPasswords[host]; !ok {
		return nil
	}
	delete(contents.SudoPasswords, host)

	if len(contents.SudoPasswords) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete credentials file: %w", err)
		}
		return nil
	}

	return writeFallbackFile(path, contents)
}

// getFallbackFilePath returns the path to the fallback credentials file
// Respects BINDEPLOY_CONFIG_DIR environment variable if set
func getFallbackFilePath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FallbackFileName), nil
}
