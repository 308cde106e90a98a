package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research portal.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// AuthConfig holds the single configured identity plus the JWT signing secret.
// Password is the plaintext compare path used by the login form; PasswordHash
// (bcrypt) takes precedence when both are set.
type AuthConfig struct {
	SecretKey    string        `mapstructure:"secret_key"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PasswordHash string        `mapstructure:"password_hash"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// LLMConfig configures the reasoning engine provider.
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxIterations int           `mapstructure:"max_iterations"`
}

// ToolsConfig configures the built-in tool implementations.
type ToolsConfig struct {
	SearchProvider string `mapstructure:"search_provider"` // serper or brave
	SearchAPIKey   string `mapstructure:"search_api_key"`
	SearchResults  int    `mapstructure:"search_results"`
	FetchMaxChars  int    `mapstructure:"fetch_max_chars"`
	SaveFile       string `mapstructure:"save_file"`
}

// StorageConfig controls where research artifacts land.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	// Overwrite keeps the historical behaviour of replacing a report when two
	// topics derive the same filename. Set false to suffix _2, _3, ... instead.
	Overwrite bool `mapstructure:"overwrite"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		return errors.New("auth.secret_key is required (RESEARCHD_AUTH_SECRET_KEY)")
	}
	if strings.TrimSpace(c.Auth.Username) == "" {
		return errors.New("auth.username is required (RESEARCHD_AUTH_USERNAME)")
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return errors.New("auth.password or auth.password_hash is required")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key is required (RESEARCHD_LLM_API_KEY)")
	}
	return nil
}

// LoadConfig reads configuration from an optional YAML file plus RESEARCHD_*
// environment overrides. A missing config file is fine; env alone is enough.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.address", ":5000")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_iterations", 10)
	v.SetDefault("tools.search_provider", "serper")
	v.SetDefault("tools.search_results", 5)
	v.SetDefault("tools.fetch_max_chars", 20000)
	v.SetDefault("tools.save_file", "research_output.txt")
	v.SetDefault("storage.output_dir", "outputs")
	v.SetDefault("storage.overwrite", true)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about; the secrets
	// deliberately have no defaults, so bind them explicitly.
	for _, key := range []string{
		"auth.secret_key",
		"auth.username",
		"auth.password",
		"auth.password_hash",
		"llm.api_key",
		"tools.search_api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
