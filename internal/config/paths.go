package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultConfigDir is the per-user directory for keys and stored credentials
	DefaultConfigDir = ".bindeploy"
	// DefaultConfigName is the deployment configuration file looked up in the working directory
	DefaultConfigName = "config.yml"
)

// GetConfigDir returns the bindeploy user directory path
// Defaults to ~/.bindeploy/ unless overridden by environment
func GetConfigDir() (string, error) {
	if dir := os.Getenv("BINDEPLOY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, DefaultConfigDir), nil
}

// FindConfig resolves the deployment configuration file
// If name is empty, config.yml in the working directory is used
func FindConfig(name string) (string, error) {
	if name == "" {
		name = DefaultConfigName
	}

	path, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return "", fmt.Errorf("failed to stat config file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config path %s is a directory", path)
	}

	return path, nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return configDir, nil
}
