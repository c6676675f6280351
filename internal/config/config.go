// Package config loads application configuration from an optional file,
// an optional .env file and AGILE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stuartb55/octopusagile/internal/version"
	"github.com/stuartb55/octopusagile/pkg/logging"
	"github.com/stuartb55/octopusagile/pkg/prices"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Octopus   OctopusConfig   `mapstructure:"octopus"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OctopusConfig identifies the tariff and the API it is served from.
type OctopusConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	ProductCode string        `mapstructure:"product_code"`
	TariffCode  string        `mapstructure:"tariff_code"`
	Revalidate  time.Duration `mapstructure:"revalidate"`
	UserAgent   string        `mapstructure:"user_agent"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// RateLimitConfig mirrors ratelimit.Config.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

// PricesConfig bounds the days parameter and pagination.
type PricesConfig struct {
	DefaultDays int    `mapstructure:"default_days"`
	MinDays     int    `mapstructure:"min_days"`
	MaxDays     int    `mapstructure:"max_days"`
	MaxResults  int    `mapstructure:"max_results"`
	MaxPages    int    `mapstructure:"max_pages"`
	Timezone    string `mapstructure:"timezone"`
}

// RedisConfig enables the transport cache when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"`
}

// SchedulerConfig governs the background refresh.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	AlignToSlot  bool          `mapstructure:"align_to_slot"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// Load builds configuration from file, .env, environment, and defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AGILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "octopusagile")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")

	pricesDefaults := prices.DefaultConfig()
	v.SetDefault("octopus.base_url", pricesDefaults.BaseURL)
	v.SetDefault("octopus.product_code", pricesDefaults.ProductCode)
	v.SetDefault("octopus.tariff_code", pricesDefaults.TariffCode)
	v.SetDefault("octopus.revalidate", pricesDefaults.Revalidate.String())
	v.SetDefault("octopus.user_agent", version.UserAgent())
	v.SetDefault("octopus.http_timeout", "30s")

	rl := ratelimit.DefaultConfig()
	v.SetDefault("ratelimit.max_requests", rl.MaxRequests)
	v.SetDefault("ratelimit.window", rl.Window.String())
	v.SetDefault("ratelimit.min_interval", rl.MinInterval.String())
	v.SetDefault("ratelimit.max_retries", rl.MaxRetries)
	v.SetDefault("ratelimit.call_timeout", rl.CallTimeout.String())
	v.SetDefault("ratelimit.base_backoff", rl.BaseBackoff.String())
	v.SetDefault("ratelimit.max_backoff", rl.MaxBackoff.String())
	v.SetDefault("ratelimit.max_wait", rl.MaxWait.String())

	days := validation.DefaultDaysBounds()
	v.SetDefault("prices.default_days", days.Default)
	v.SetDefault("prices.min_days", days.Min)
	v.SetDefault("prices.max_days", days.Max)
	v.SetDefault("prices.max_results", pricesDefaults.MaxResults)
	v.SetDefault("prices.max_pages", pricesDefaults.MaxPages)
	v.SetDefault("prices.timezone", "Europe/London")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retention", "24h")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.align_to_slot", true)
	v.SetDefault("scheduler.startup_delay", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Octopus.UserAgent == "" {
		return fmt.Errorf("octopus.user_agent must be set")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit.max_requests must be greater than zero")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be greater than zero")
	}
	if c.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("ratelimit.max_retries cannot be negative")
	}
	if c.RateLimit.CallTimeout <= 0 {
		return fmt.Errorf("ratelimit.call_timeout must be greater than zero")
	}
	if c.Prices.MinDays < 1 || c.Prices.MaxDays < c.Prices.MinDays {
		return fmt.Errorf("prices.min_days and prices.max_days must satisfy 1 <= min <= max")
	}
	if c.Prices.DefaultDays < c.Prices.MinDays || c.Prices.DefaultDays > c.Prices.MaxDays {
		return fmt.Errorf("prices.default_days must lie within [%d, %d]", c.Prices.MinDays, c.Prices.MaxDays)
	}
	if c.Prices.MaxResults <= 0 || c.Prices.MaxPages <= 0 {
		return fmt.Errorf("prices.max_results and prices.max_pages must be greater than zero")
	}
	if _, err := time.LoadLocation(c.Prices.Timezone); err != nil {
		return fmt.Errorf("prices.timezone: %w", err)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Prices.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DaysBounds returns the days parameter policy.
func (c *Config) DaysBounds() validation.DaysBounds {
	return validation.DaysBounds{
		Min:     c.Prices.MinDays,
		Max:     c.Prices.MaxDays,
		Default: c.Prices.DefaultDays,
	}
}

// LimiterConfig converts to ratelimit.Config.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: c.RateLimit.MaxRequests,
		Window:      c.RateLimit.Window,
		MinInterval: c.RateLimit.MinInterval,
		MaxRetries:  c.RateLimit.MaxRetries,
		CallTimeout: c.RateLimit.CallTimeout,
		BaseBackoff: c.RateLimit.BaseBackoff,
		MaxBackoff:  c.RateLimit.MaxBackoff,
		MaxWait:     c.RateLimit.MaxWait,
	}
}

// PricesConfig converts to prices.Config.
func (c *Config) PricesConfig() prices.Config {
	return prices.Config{
		BaseURL:     c.Octopus.BaseURL,
		ProductCode: c.Octopus.ProductCode,
		TariffCode:  c.Octopus.TariffCode,
		MaxDays:     c.Prices.MaxDays,
		MaxResults:  c.Prices.MaxResults,
		MaxPages:    c.Prices.MaxPages,
		Revalidate:  c.Octopus.Revalidate,
		Location:    c.Location(),
	}
}
