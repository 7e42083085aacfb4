// Package config loads runtime settings from a config file, a .env file and SPACETRAVELING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SPACETRAVELING"

// Content sources.
const (
	SourceSQLite  = "sqlite"
	SourcePrismic = "prismic"
)

type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	SiteURL   string `mapstructure:"site_url"`

	// Source selects the content store: "sqlite" or "prismic".
	Source        string `mapstructure:"source"`
	PageSize      int    `mapstructure:"page_size"`
	PrebuildCount int    `mapstructure:"prebuild_count"`

	Prismic PrismicConfig `mapstructure:"prismic"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Pages   PagesConfig   `mapstructure:"pages"`
	GitHub  GitHubConfig  `mapstructure:"github"`
}

type PrismicConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessToken string `mapstructure:"access_token"`
}

type SQLiteConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// PagesConfig picks where built pages are persisted. Bucket wins over Dir; both empty disables persistence.
type PagesConfig struct {
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
}

type GitHubConfig struct {
	Owner         string `mapstructure:"owner"`
	Repo          string `mapstructure:"repo"`
	Token         string `mapstructure:"token"`
	Branch        string `mapstructure:"branch"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// Enabled reports whether a source repository is configured.
func (g GitHubConfig) Enabled() bool {
	return g.Owner != "" && g.Repo != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("site_url", "")
	v.SetDefault("source", SourceSQLite)
	v.SetDefault("page_size", 5)
	v.SetDefault("prebuild_count", 2)
	v.SetDefault("prismic.endpoint", "")
	v.SetDefault("prismic.access_token", "")
	v.SetDefault("sqlite.path", "./spacetraveling.db")
	v.SetDefault("sqlite.busy_timeout", "5s")
	v.SetDefault("pages.dir", "")
	v.SetDefault("pages.bucket", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.branch", "")
	v.SetDefault("github.webhook_secret", "")
}

// Load reads configuration. An explicit cfgFile must exist; otherwise ./config.yaml is optional.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite source")
		}
	case SourcePrismic:
		if c.Prismic.Endpoint == "" {
			return errors.New("prismic.endpoint is required for the prismic source")
		}
	default:
		return fmt.Errorf("unknown source %q: must be %q or %q", c.Source, SourceSQLite, SourcePrismic)
	}

	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	if c.PrebuildCount < 0 {
		return fmt.Errorf("prebuild_count must not be negative, got %d", c.PrebuildCount)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}
