// Package config provides configuration loading and validation for the address lookup service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Search provider names.
const (
	ProviderTavily = "tavily"
	ProviderGoogle = "google"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config represents the service configuration.
// Values come from defaults, an optional YAML file and the environment, in increasing priority.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Search  SearchConfig  `mapstructure:"search"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
	Session SessionConfig `mapstructure:"session"`
	Export  ExportConfig  `mapstructure:"export"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env  string `mapstructure:"env"`  // "development" or "production"
	Port int    `mapstructure:"port"` // HTTP listen port
}

// SearchConfig configures the address resolver backend.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"`       // "tavily" or "google"
	APIKey       string        `mapstructure:"api_key"`        // Tavily API key
	Endpoint     string        `mapstructure:"endpoint"`       // Tavily search endpoint
	GoogleAPIKey string        `mapstructure:"google_api_key"` // Custom Search API key
	GoogleCX     string        `mapstructure:"google_cx"`      // Custom Search engine ID
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the address normalizer.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"` // Gemini API key
	Tier    string `mapstructure:"tier"`
	Enabled bool   `mapstructure:"enabled"`
}

// LookupConfig configures the lookup pipeline.
type LookupConfig struct {
	Concurrency int `mapstructure:"concurrency"` // 1 means strictly sequential
}

// SessionConfig configures the session cookie and result store.
type SessionConfig struct {
	Secret         string        `mapstructure:"secret"`
	CookieName     string        `mapstructure:"cookie_name"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	Store          string        `mapstructure:"store"`
	MemoryCapacity int           `mapstructure:"memory_capacity"`
	RedisURL       string        `mapstructure:"redis_url"`
	DatabaseURL    string        `mapstructure:"database_url"`
}

// ExportConfig configures the download behaviour.
type ExportConfig struct {
	ClearAfterDownload bool `mapstructure:"clear_after_download"`
}

// envBindings maps config keys to the conventional environment variable names.
var envBindings = map[string]string{
	"app.env":               "APP_ENV",
	"app.port":              "PORT",
	"search.api_key":        "TAVILY_API_KEY",
	"search.google_api_key": "GOOGLE_API_KEY",
	"search.google_cx":      "GOOGLE_CSE_ID",
	"llm.api_key":           "GEMINI_API_KEY",
	"session.secret":        "SESSION_SECRET",
	"session.redis_url":     "REDIS_URL",
	"session.database_url":  "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("search.provider", ProviderTavily)
	v.SetDefault("search.endpoint", "https://api.tavily.com/search")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("llm.tier", "standard")
	v.SetDefault("llm.enabled", true)
	v.SetDefault("lookup.concurrency", 1)
	v.SetDefault("session.cookie_name", "address_session")
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.memory_capacity", 1024)
	v.SetDefault("export.clear_after_download", true)
}

// Load reads configuration from defaults, the environment and, when path is non-empty,
// the given YAML file. With an empty path an address_agent.yaml in the working
// directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("address_agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Missing API keys are not errors: the resolver and normalizer degrade instead.
func (c *Config) Validate() error {
	switch c.Search.Provider {
	case ProviderTavily, ProviderGoogle:
	default:
		return fmt.Errorf("config error: unknown search provider %q", c.Search.Provider)
	}

	switch c.Session.Store {
	case StoreMemory:
		if c.Session.MemoryCapacity < 1 {
			return fmt.Errorf("config error: 'session.memory_capacity' must be positive")
		}
	case StoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("config error: redis session store requires REDIS_URL")
		}
	case StorePostgres:
		if c.Session.DatabaseURL == "" {
			return fmt.Errorf("config error: postgres session store requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("config error: unknown session store %q", c.Session.Store)
	}

	if c.Lookup.Concurrency < 1 {
		return fmt.Errorf("config error: 'lookup.concurrency' must be at least 1")
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("config error: 'search.timeout' must be non-negative")
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		return fmt.Errorf("config error: 'app.port' out of range: %d", c.App.Port)
	}

	return nil
}

// NormalizerEnabled reports whether address normalization should run.
func (c *Config) NormalizerEnabled() bool {
	return c.LLM.Enabled && c.LLM.APIKey != ""
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
