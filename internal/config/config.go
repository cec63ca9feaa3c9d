package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tokyosniper/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the shared cache. An empty addr falls back to the
// in-process cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig governs the HTTP trigger surface.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	CronSecret string `mapstructure:"cron_secret"`
}

// SchedulerConfig governs the built-in check cadence.
type SchedulerConfig struct {
	FlightInterval time.Duration `mapstructure:"flight_interval"`
	StayInterval   time.Duration `mapstructure:"stay_interval"`
	DigestInterval time.Duration `mapstructure:"digest_interval"`
	AlignToBucket  bool          `mapstructure:"align_to_bucket"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
}

// FetchConfig tunes the ingestion pipeline.
type FetchConfig struct {
	Policy         string        `mapstructure:"policy"`
	GateTTL        time.Duration `mapstructure:"gate_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SourcesConfig carries per-provider credentials.
type SourcesConfig struct {
	FlightOrder []string      `mapstructure:"flight_order"`
	Amadeus     AmadeusConfig `mapstructure:"amadeus"`
	SerpAPI     SerpAPIConfig `mapstructure:"serpapi"`
	Apify       ApifyConfig   `mapstructure:"apify"`
}

// AmadeusConfig covers the Amadeus flight-offers API.
type AmadeusConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// SerpAPIConfig covers the SerpAPI Google Flights engine.
type SerpAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ApifyConfig covers the Apify actor platform shared by the scraping
// adapters.
type ApifyConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// AlertsConfig defines the built-in rule thresholds, integer minor units.
type AlertsConfig struct {
	FlightInstantEurCents int64   `mapstructure:"flight_instant_eur_cents"`
	FlightDropPercent     float64 `mapstructure:"flight_drop_percent"`
	StayInstantUsdCents   int64   `mapstructure:"stay_instant_usd_cents"`
	StayGoodDealUsdCents  int64   `mapstructure:"stay_good_deal_usd_cents"`
}

// TelegramConfig carries bot credentials for notifications and the webhook.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKYOSNIPER")
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
	v.SetDefault("app.name", "tokyosniper")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cron_secret", "")

	v.SetDefault("scheduler.flight_interval", "6h")
	v.SetDefault("scheduler.stay_interval", "12h")
	v.SetDefault("scheduler.digest_interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("fetch.policy", "fallback")
	v.SetDefault("fetch.gate_ttl", "5m")
	v.SetDefault("fetch.request_timeout", "30s")

	v.SetDefault("sources.flight_order", []string{"skyscanner", "googleflights", "serpapi", "amadeus"})
	v.SetDefault("sources.amadeus.base_url", "https://test.api.amadeus.com")
	v.SetDefault("sources.amadeus.api_key", "")
	v.SetDefault("sources.amadeus.api_secret", "")
	v.SetDefault("sources.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("sources.serpapi.api_key", "")
	v.SetDefault("sources.apify.base_url", "https://api.apify.com")
	v.SetDefault("sources.apify.token", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	v.SetDefault("alerts.flight_instant_eur_cents", int64(80000))
	v.SetDefault("alerts.flight_drop_percent", 10.0)
	v.SetDefault("alerts.stay_instant_usd_cents", int64(4500))
	v.SetDefault("alerts.stay_good_deal_usd_cents", int64(6000))

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.FlightInterval <= 0 {
		return fmt.Errorf("scheduler.flight_interval must be greater than zero")
	}
	if c.Scheduler.StayInterval <= 0 {
		return fmt.Errorf("scheduler.stay_interval must be greater than zero")
	}
	if c.Fetch.Policy != "fallback" && c.Fetch.Policy != "fanout" {
		return fmt.Errorf("fetch.policy must be fallback or fanout")
	}
	if c.Fetch.GateTTL <= 0 {
		return fmt.Errorf("fetch.gate_ttl must be greater than zero")
	}
	if c.Alerts.FlightDropPercent < 0 {
		return fmt.Errorf("alerts.flight_drop_percent cannot be negative")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
