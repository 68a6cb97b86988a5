package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Paperless AI backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// VaultConfig holds the key used to seal stored API credentials.
type VaultConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// MonitorConfig controls the Paperless instance reachability monitor.
type MonitorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PAPERLESS_AI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if len(c.Vault.EncryptionKey) != 32 {
		return errors.New("config: vault.encryption_key must be 32 bytes")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/paperless-ai.sqlite")

	v.SetDefault("auth.jwt_issuer", "paperless-ai")
	v.SetDefault("auth.token_ttl", "12h")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.schedule", "@every 5m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
}
