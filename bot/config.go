package bot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "animedrive/core/config"
	coredatabase "animedrive/core/database"
)

// ChannelConfig is one required-membership channel for the access gate.
type ChannelConfig struct {
	ID        int64  `yaml:"id"`
	Title     string `yaml:"title"`
	InviteURL string `yaml:"invite_url"`
}

// AccessConfig configures the membership gate.
type AccessConfig struct {
	Channels            []ChannelConfig `yaml:"channels"`
	CheckTimeoutSeconds int             `yaml:"check_timeout_seconds" envconfig:"ACCESS_CHECK_TIMEOUT_SECONDS"`
}

// DeliveryConfig tunes episode delivery pacing and retention.
type DeliveryConfig struct {
	PacingMS         int `yaml:"pacing_ms" envconfig:"DELIVERY_PACING_MS"`
	RetentionMinutes int `yaml:"retention_minutes" envconfig:"DELIVERY_RETENTION_MINUTES"`
}

// SessionsConfig tunes the in-memory flow session store.
type SessionsConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSIONS_TTL_MINUTES"`
	// SweepSpec is a cron expression for the expiry sweep.
	SweepSpec string `yaml:"sweep_spec" envconfig:"SESSIONS_SWEEP_SPEC"`
}

// RequestConfig tunes the /request feedback flow.
type RequestConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds" envconfig:"REQUEST_COOLDOWN_SECONDS"`
}

// AniListConfig configures the upstream metadata provider.
type AniListConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"ANILIST_BASE_URL"`
}

// AIChatConfig configures the conversational AI provider.
type AIChatConfig struct {
	APIKey  string `yaml:"api_key" envconfig:"AI_API_KEY"`
	Model   string `yaml:"model" envconfig:"AI_MODEL"`
	BaseURL string `yaml:"base_url" envconfig:"AI_BASE_URL"`
	// HistoryLimit caps the retained conversation turns per user.
	HistoryLimit int `yaml:"history_limit" envconfig:"AI_HISTORY_LIMIT"`
}

// ProvidersConfig groups upstream integrations.
type ProvidersConfig struct {
	AniList AniListConfig `yaml:"anilist"`
	AIChat  AIChatConfig  `yaml:"aichat"`
}

// Config is the full application configuration.
type Config struct {
	Core      coreconfig.Config   `yaml:",inline"`
	Database  coredatabase.Config `yaml:"database"`
	Access    AccessConfig        `yaml:"access"`
	Delivery  DeliveryConfig      `yaml:"delivery"`
	Sessions  SessionsConfig      `yaml:"sessions"`
	Request   RequestConfig       `yaml:"request"`
	Providers ProvidersConfig     `yaml:"providers"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Pacing returns the configured inter-item delivery delay.
func (c *Config) Pacing() time.Duration {
	if c.Delivery.PacingMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.Delivery.PacingMS) * time.Millisecond
}

// Retention returns the configured cleanup window.
func (c *Config) Retention() time.Duration {
	if c.Delivery.RetentionMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Delivery.RetentionMinutes) * time.Minute
}

// SessionTTL returns the flow session lifetime.
func (c *Config) SessionTTL() time.Duration {
	if c.Sessions.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}

// RequestCooldown returns the per-user /request cooldown.
func (c *Config) RequestCooldown() time.Duration {
	if c.Request.CooldownSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Request.CooldownSeconds) * time.Second
}

// Load reads the application config from YAML plus environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalizeApp(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeApp(cfg *Config) error {
	for i, ch := range cfg.Access.Channels {
		if ch.ID == 0 {
			return fmt.Errorf("access.channels[%d].id is required", i)
		}
		if strings.TrimSpace(ch.InviteURL) == "" {
			return fmt.Errorf("access.channels[%d].invite_url is required", i)
		}
	}
	if strings.TrimSpace(cfg.Sessions.SweepSpec) == "" {
		cfg.Sessions.SweepSpec = "@every 5m"
	}
	if cfg.Providers.AIChat.HistoryLimit <= 0 {
		cfg.Providers.AIChat.HistoryLimit = 20
	}
	if strings.TrimSpace(cfg.Providers.AniList.BaseURL) == "" {
		cfg.Providers.AniList.BaseURL = "https://graphql.anilist.co"
	}
	return nil
}
