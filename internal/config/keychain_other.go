//go:build !darwin

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// secretsFilePath is a 0600 JSON file next to the data directory. It uses the
// same flat layout as the config file, keyed by "service.account".
func secretsFilePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "mentor", "secrets.json")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "mentor", "secrets.json")
}

func secretKey(service, account string) string {
	return service + "." + account
}

func keychainGet(service, account string) ([]byte, error) {
	p := secretsFilePath()
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("secret store not available: %w", err)
	}
	v, ok, err := newFileBackend(p).GetString(secretKey(service, account))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no secret stored for %s/%s", service, account)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	return newFileBackend(secretsFilePath()).SetString(secretKey(service, account), value)
}
