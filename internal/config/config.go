package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Claude  ClaudeConfig
	Network NetworkConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	DataDir string
}

type ClaudeConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

type NetworkConfig struct {
	ProxyURL       string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
}

type LogConfig struct {
	Level string
	// File enables rotating file output when non-empty. Empty means stderr.
	File string
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			BaseURL:   "https://api.anthropic.com/v1",
			MaxTokens: 4096,
		},
		Network: NetworkConfig{
			RequestTimeout: 120 * time.Second,
			ConnectTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file in the working directory, the
// platform-native backend, environment variables, and the platform secret
// store.
//
// On macOS the backend is UserDefaults (domain: com.mentor.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/mentor/config.json
// and secrets fall back to $XDG_DATA_HOME/mentor/secrets.json.
//
// Environment variables (MENTOR_*, plus the CLAUDE_API_KEY and PROXY_URL
// aliases) override backend values on all platforms. Variables already set in
// the process environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env file: %v\n", err)
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Claude.APIKey == "" {
		if key, err := kc.Get("mentor", "claude_api_key"); err == nil && key != "" {
			cfg.Claude.APIKey = key
		}
	}

	if cfg.Claude.APIKey == "" {
		msg := "missing required config: Claude API key. " +
			"Set it via environment variable MENTOR_CLAUDE_API_KEY or CLAUDE_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
