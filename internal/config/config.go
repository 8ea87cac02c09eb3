// Package config loads engine configuration from environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// Document store
	DBPath string `envconfig:"DB_PATH" default:"devstory.db"`

	// Generative service (Gemini)
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiMaxTokens int    `envconfig:"GEMINI_MAX_TOKENS" default:"8192"`

	// Reward collaborator (gamification webhook). Empty = awards are no-ops.
	RewardEndpoint string `envconfig:"REWARD_ENDPOINT"`
	RewardAPIKey   string `envconfig:"REWARD_API_KEY"`

	// Roster resolution
	MemberCacheSize int    `envconfig:"MEMBER_CACHE_SIZE" default:"256"`
	MemberCacheTTL  string `envconfig:"MEMBER_CACHE_TTL" default:"5m"`
}

// GeminiEnabled returns true if the generative service is configured.
func (c *Config) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

// RewardEnabled returns true if the gamification webhook is configured.
func (c *Config) RewardEnabled() bool {
	return c.RewardEndpoint != ""
}

// Development returns true in local/dev environments.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.GeminiMaxTokens < 1 {
		return fmt.Errorf("GEMINI_MAX_TOKENS must be positive, got %d", c.GeminiMaxTokens)
	}
	if c.MemberCacheSize < 1 {
		return fmt.Errorf("MEMBER_CACHE_SIZE must be positive, got %d", c.MemberCacheSize)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
