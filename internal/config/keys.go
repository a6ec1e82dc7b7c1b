package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// aliases are checked, in order, when env is unset.
	aliases []string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "MENTOR_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "MENTOR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MENTOR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "claude.api_key", typ: kString, env: "MENTOR_CLAUDE_API_KEY",
		aliases: []string{"CLAUDE_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Claude.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Claude.APIKey },
	},
	{
		key: "claude.model", typ: kString, env: "MENTOR_CLAUDE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Claude.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Claude.Model },
	},
	{
		key: "claude.base_url", typ: kString, env: "MENTOR_CLAUDE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Claude.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Claude.BaseURL },
	},
	{
		key: "claude.max_tokens", typ: kInt, env: "MENTOR_CLAUDE_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Claude.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Claude.MaxTokens },
	},
	{
		key: "network.proxy_url", typ: kString, env: "MENTOR_PROXY_URL",
		aliases: []string{"PROXY_URL"},
		apply:   func(cfg *Config, v any) { cfg.Network.ProxyURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Network.ProxyURL },
	},
	{
		key: "network.request_timeout", typ: kDuration, env: "MENTOR_NETWORK_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Network.RequestTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Network.RequestTimeout },
	},
	{
		key: "network.connect_timeout", typ: kDuration, env: "MENTOR_NETWORK_CONNECT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Network.ConnectTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Network.ConnectTimeout },
	},
	{
		key: "log.level", typ: kString, env: "MENTOR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "MENTOR_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil && d > 0 {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q. Using default value.\n", s.key, v)
				}
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the key's env var and
// its aliases.
func (s keySpec) lookupEnv() (name, raw string) {
	for _, n := range append([]string{s.env}, s.aliases...) {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := s.lookupEnv()
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil && d > 0 {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q. Using default value.\n", name, raw)
			}
		}
	}
}
