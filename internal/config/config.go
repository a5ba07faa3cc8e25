package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "steam-news"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Steam      SteamConfig      `mapstructure:"steam"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Publishing PublishingConfig `mapstructure:"publishing"`
	Library    LibraryConfig    `mapstructure:"library"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig holds the store location
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// SteamConfig holds catalogue API settings
type SteamConfig struct {
	APIKey            string        `mapstructure:"api_key"` // only needed for owned games
	APIBaseURL        string        `mapstructure:"api_base_url"`
	StoreURL          string        `mapstructure:"store_url"` // title pages: <store_url>/app/<id>/
	NewsCount         int           `mapstructure:"news_count"`
	FeedFilter        string        `mapstructure:"feed_filter"` // passed through as &feeds=
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// FetchConfig holds cache controller settings
type FetchConfig struct {
	SuccessDelay time.Duration `mapstructure:"success_delay"`
	FailureDelay time.Duration `mapstructure:"failure_delay"`
	Retention    time.Duration `mapstructure:"retention"`
}

// PublishingConfig holds feed output settings
type PublishingConfig struct {
	OutputPath         string `mapstructure:"output_path"`
	Stylesheet         string `mapstructure:"stylesheet"` // copied next to the output when present
	Title              string `mapstructure:"title"`
	Link               string `mapstructure:"link"`
	Description        string `mapstructure:"description"`
	TTL                int    `mapstructure:"ttl"` // minutes
	WriteAtom          bool   `mapstructure:"write_atom"`
	WriteJSON          bool   `mapstructure:"write_json"`
	Verify             bool   `mapstructure:"verify"`
	SkipDisabledTitles bool   `mapstructure:"skip_disabled_titles"`
}

// LibraryConfig holds owned-title seeding settings
type LibraryConfig struct {
	Last6MonthsOnly bool `mapstructure:"last_6_months_only"`
	MinimumPlaytime int  `mapstructure:"minimum_playtime"` // minutes, 0 disables
	Prune           bool `mapstructure:"prune"`
}

// SchedulerConfig holds daemon settings
type SchedulerConfig struct {
	Cron       string `mapstructure:"cron"`
	HealthPort string `mapstructure:"health_port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
	}

	v.SetEnvPrefix("STEAMNEWS")
	v.AutomaticEnv()

	// Viper doesn't auto-bind nested keys
	_ = v.BindEnv("steam.api_key", "STEAMNEWS_STEAM_API_KEY", "STEAM_WEB_API_KEY")
	_ = v.BindEnv("steam.feed_filter", "STEAMNEWS_STEAM_FEED_FILTER")
	_ = v.BindEnv("database.dsn", "STEAMNEWS_DATABASE_DSN")
	_ = v.BindEnv("publishing.output_path", "STEAMNEWS_PUBLISHING_OUTPUT_PATH")
	_ = v.BindEnv("logging.level", "STEAMNEWS_LOGGING_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultDatabasePath is the store location when none is configured
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, "SteamNews.db")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", DefaultDatabasePath())

	v.SetDefault("steam.api_base_url", "https://api.steampowered.com")
	v.SetDefault("steam.store_url", "https://store.steampowered.com")
	v.SetDefault("steam.news_count", 25)
	v.SetDefault("steam.feed_filter", "")
	v.SetDefault("steam.timeout", 30*time.Second)
	v.SetDefault("steam.requests_per_second", 4.0)
	v.SetDefault("steam.burst", 1)

	v.SetDefault("fetch.success_delay", 250*time.Millisecond)
	v.SetDefault("fetch.failure_delay", time.Second)
	v.SetDefault("fetch.retention", 30*24*time.Hour)

	v.SetDefault("publishing.output_path", "steam_news.xml")
	v.SetDefault("publishing.stylesheet", "style.xsl")
	v.SetDefault("publishing.title", "Steam Game News")
	v.SetDefault("publishing.link", "http://store.steampowered.com/news/?feed=mygames")
	v.SetDefault("publishing.description", "All of your Steam games' news, combined!")
	v.SetDefault("publishing.ttl", 60*24)
	v.SetDefault("publishing.write_atom", true)
	v.SetDefault("publishing.write_json", true)
	v.SetDefault("publishing.verify", true)
	v.SetDefault("publishing.skip_disabled_titles", false)

	v.SetDefault("library.last_6_months_only", false)
	v.SetDefault("library.minimum_playtime", 0)
	v.SetDefault("library.prune", false)

	v.SetDefault("scheduler.cron", "0 * * * *") // hourly
	v.SetDefault("scheduler.health_port", "10000")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Steam.APIBaseURL == "" {
		return fmt.Errorf("steam.api_base_url is required")
	}
	if c.Steam.NewsCount <= 0 {
		return fmt.Errorf("steam.news_count must be positive, got %d", c.Steam.NewsCount)
	}
	if c.Fetch.Retention <= 0 {
		return fmt.Errorf("fetch.retention must be positive, got %s", c.Fetch.Retention)
	}
	if c.Fetch.SuccessDelay < 0 || c.Fetch.FailureDelay < 0 {
		return fmt.Errorf("fetch delays must not be negative")
	}
	if c.Publishing.OutputPath == "" {
		return fmt.Errorf("publishing.output_path is required")
	}
	// the atom and json siblings replace the output's extension
	switch ext := strings.ToLower(filepath.Ext(c.Publishing.OutputPath)); {
	case ext == ".atom" && c.Publishing.WriteAtom, ext == ".json" && c.Publishing.WriteJSON:
		return fmt.Errorf("publishing.output_path %s collides with the %s sibling feed", c.Publishing.OutputPath, ext)
	}
	return nil
}

// RequireAPIKey reports a configuration error when the owned games endpoint
// is about to be used without a key.
func (c *Config) RequireAPIKey() error {
	if c.Steam.APIKey == "" {
		return fmt.Errorf("steam.api_key is required (set STEAM_WEB_API_KEY)")
	}
	return nil
}

// EnsureDir creates the parent directory of path if needed
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
