// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	SiteURL        string
	AllowedOrigins []string
	DBPath         string
	StatePath      string
	PromptPath     string

	Anthropic AnthropicConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Billing   BillingConfig
}

// AnthropicConfig holds provider credentials and model selection.
type AnthropicConfig struct {
	APIKey string
	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string
	// Models is the ordered fallback chain: the first entry is attempted,
	// and a model-unavailable rejection moves to the next.
	Models      []string
	MaxTokens   int
	Temperature float64
}

// RateLimitConfig bounds request volume to the chat endpoint per client.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SessionConfig controls the free-tier timer and lockout.
type SessionConfig struct {
	FreeDuration  time.Duration
	EndGrace      time.Duration
	LockoutWindow time.Duration
}

// BillingConfig carries externally hosted payment URLs. Both are optional;
// unset links disable the corresponding redirect endpoint.
type BillingConfig struct {
	PaymentLinkURL string
	PortalURL      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		SiteURL:        getEnv("SITE_URL", "http://localhost:8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		DBPath:         getEnv("DB_PATH", "./data/blankpage.db"),
		StatePath:      getEnv("STATE_PATH", "./data/state.json"),
		PromptPath:     getEnv("PROMPT_PATH", "./PROMPT.md"),
		Anthropic: AnthropicConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Models: []string{
				getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
				getEnv("ANTHROPIC_MODEL_FALLBACK", "claude-3-haiku-20240307"),
			},
			MaxTokens:   getEnvInt("ANTHROPIC_MAX_TOKENS", 150),
			Temperature: 0.9,
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Session: SessionConfig{
			FreeDuration:  getEnvDuration("FREE_SESSION_DURATION", 5*time.Minute),
			EndGrace:      getEnvDuration("SESSION_END_GRACE", 3*time.Second),
			LockoutWindow: getEnvDuration("LOCKOUT_WINDOW", 24*time.Hour),
		},
		Billing: BillingConfig{
			PaymentLinkURL: getEnv("PAYMENT_LINK_URL", ""),
			PortalURL:      getEnv("PORTAL_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing provider credential fails closed: no request may ever reach
// the provider, so the server refuses to start without it.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if len(c.Anthropic.Models) == 0 || c.Anthropic.Models[0] == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Session.FreeDuration <= 0 {
		return fmt.Errorf("FREE_SESSION_DURATION must be > 0")
	}
	if c.Session.LockoutWindow <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.Contains(c.SiteURL, "localhost") ||
		strings.Contains(c.SiteURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
