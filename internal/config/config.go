// Package config provides configuration loading for collabd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Defaults are applied for anything left unset, so an empty
// configuration starts a working server (with no AI providers configured;
// AI operations then fail per-call rather than at startup).
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/collabd/internal/logging"
)

// Config holds the complete collabd configuration.
type Config struct {
	Server ServerConfig   `koanf:"server"`
	Store  StoreConfig    `koanf:"store"`
	Log    logging.Config `koanf:"log"`
	AI     AIConfig       `koanf:"ai"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	// Path is the data directory for the SQLite database.
	// Default: ~/.local/share/collabd
	Path string `koanf:"path"`
}

// AIConfig holds AI gateway configuration.
type AIConfig struct {
	// Timeout bounds each individual provider invocation. Exceeding it
	// counts as a failure and advances the fallback chain.
	Timeout Duration `koanf:"timeout"`

	// RateLimit is the per-provider request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// Providers is the ordered fallback chain, highest priority first.
	// An empty list is valid: AI operations fail per-call.
	Providers []ProviderConfig `koanf:"providers"`
}

// ProviderConfig configures a single AI provider adapter.
type ProviderConfig struct {
	// Type selects the adapter: "openai", "huggingface", or "ollama".
	Type string `koanf:"type"`
	// Name identifies the provider in logs and metrics. Defaults to Type.
	Name string `koanf:"name"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers,
	// self-hosted Ollama, etc.).
	BaseURL string `koanf:"base_url"`
	// APIKey is the provider credential.
	APIKey Secret `koanf:"api_key"`
	// ChatModel is the completion model used for summaries and tags.
	ChatModel string `koanf:"chat_model"`
	// EmbedModel is the embedding model.
	EmbedModel string `koanf:"embed_model"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Fields == nil {
		cfg.Log.Fields = map[string]string{"service": "collabd"}
	}

	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = Duration(20 * time.Second)
	}
	for i := range cfg.AI.Providers {
		if cfg.AI.Providers[i].Name == "" {
			cfg.AI.Providers[i].Name = cfg.AI.Providers[i].Type
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.AI.Timeout.Duration() <= 0 {
		return fmt.Errorf("ai timeout must be positive")
	}
	if c.AI.RateLimit < 0 {
		return fmt.Errorf("ai rate limit cannot be negative")
	}
	for i, p := range c.AI.Providers {
		switch p.Type {
		case "openai", "huggingface", "ollama":
		case "":
			return fmt.Errorf("ai provider %d: type is required", i)
		default:
			return fmt.Errorf("ai provider %d: unknown type %q", i, p.Type)
		}
	}
	return nil
}
