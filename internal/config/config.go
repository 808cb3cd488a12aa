// Package config loads gateway configuration from an optional YAML file
// overlaid by environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is constructed once at process start and passed by reference into
// every constructor that needs it. There is no ambient global lookup.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Ollama   OllamaConfig   `koanf:"ollama"`
	Auth     AuthConfig     `koanf:"auth"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// DatabaseConfig points at the persistence layer holding user, session and
// API key records.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// OllamaConfig configures the model backend. Timeout bounds every backend
// call; generation against larger models can take tens of seconds.
type OllamaConfig struct {
	Host         string        `koanf:"host"`
	DefaultModel string        `koanf:"default_model"`
	KeepAlive    string        `koanf:"keep_alive"`
	Timeout      time.Duration `koanf:"timeout"`
}

// AuthConfig points at the identity provider that owns credential issuance
// and session records.
type AuthConfig struct {
	// BaseURL is the identity provider's address. /api/auth/* is proxied
	// there verbatim, and session resolution calls its get-session endpoint.
	BaseURL string `koanf:"base_url"`

	// SessionPath is the provider's session-resolution endpoint.
	SessionPath string `koanf:"session_path"`
}

const envPrefix = "MODELGATE_"

// Load reads config.yaml when present, then overlays MODELGATE_-prefixed
// environment variables ("__" maps to nesting, e.g. MODELGATE_SERVER__PORT).
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine; env vars take over.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":          3000,
		"database.driver":      "sqlite",
		"database.dsn":         "./data/gateway.db",
		"ollama.host":          "http://localhost:11434",
		"ollama.default_model": "qwen3:0.6b-q8_0",
		"ollama.keep_alive":    "5m",
		"ollama.timeout":       "120s",
		"auth.base_url":        "http://localhost:3001",
		"auth.session_path":    "/api/auth/get-session",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}
