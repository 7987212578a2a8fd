// Package config loads settings from an optional TOML file, a .env file
// and CARTSYNC_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/spf13/viper"
)

const envPrefix = "CARTSYNC"

type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`

	Remote     RemoteConfig     `mapstructure:"remote"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Projection ProjectionConfig `mapstructure:"projection"`
	DevStore   DevStoreConfig   `mapstructure:"devstore"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logger     logger.Config    `mapstructure:"logger"`
}

type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Zero means no client-side timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Consecutive failures that open the breaker.
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type IdentityConfig struct {
	UserID string `mapstructure:"user_id"`
	Token  string `mapstructure:"token"`
}

type ProjectionConfig struct {
	PlaceholderName  string `mapstructure:"placeholder_name"`
	PlaceholderImage string `mapstructure:"placeholder_image"`
}

type DevStoreConfig struct {
	Addr string `mapstructure:"addr"`
	// Empty DSN selects the in-memory repository.
	DSN             string            `mapstructure:"dsn"`
	Currency        string            `mapstructure:"currency"`
	DiscountCodes   map[string]string `mapstructure:"discount_codes"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configPath when non-empty, otherwise defaults and environment only.
func Load(configPath string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("v.ReadInConfig: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cfg.Validate: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote.base_url[%s] is not an absolute URL", c.Remote.BaseURL)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout[%s] is negative", c.Remote.Timeout)
	}
	if c.Remote.Breaker.Enabled && c.Remote.Breaker.MaxFailures == 0 {
		return errors.New("remote.breaker.max_failures must be positive when the breaker is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "storefront")
	v.SetDefault("environment", "dev")

	v.SetDefault("remote.base_url", "http://localhost:8080")
	v.SetDefault("remote.timeout", 0)
	v.SetDefault("remote.breaker.enabled", false)
	v.SetDefault("remote.breaker.max_failures", 5)
	v.SetDefault("remote.breaker.open_timeout", "30s")

	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.token", "")

	v.SetDefault("projection.placeholder_name", "Product unavailable")
	v.SetDefault("projection.placeholder_image", "/static/img/placeholder.png")

	v.SetDefault("devstore.addr", ":8080")
	v.SetDefault("devstore.dsn", "")
	v.SetDefault("devstore.currency", "USD")
	v.SetDefault("devstore.discount_codes", map[string]string{})
	v.SetDefault("devstore.shutdown_timeout", "10s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/storefront.log")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age_days", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)
}
