// Package config loads sketchcal settings from a config file, SKETCHCAL_*
// environment variables and defaults, in that order of precedence after flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "sketchcal"
	envPrefix      = "SKETCHCAL"
)

type Relay struct {
	Addr           string        `mapstructure:"addr"`
	Database       string        `mapstructure:"database"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

type Calendar struct {
	CacheDir     string        `mapstructure:"cache_dir"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	MaxPages     int           `mapstructure:"max_pages"`
	Concurrency  int           `mapstructure:"concurrency"`
	PageSize     int           `mapstructure:"page_size"`
}

type Config struct {
	DataDir  string   `mapstructure:"data_dir"`
	LogLevel string   `mapstructure:"log_level"`
	Relay    Relay    `mapstructure:"relay"`
	Calendar Calendar `mapstructure:"calendar"`
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sketchcal")
	}
	return ".sketchcal"
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("relay.addr", "localhost:8080")
	v.SetDefault("relay.database", "")
	v.SetDefault("relay.backup_interval", 5*time.Second)
	v.SetDefault("calendar.cache_dir", "")
	v.SetDefault("calendar.client_id", "")
	v.SetDefault("calendar.client_secret", "")
	v.SetDefault("calendar.sync_interval", 5*time.Minute)
	v.SetDefault("calendar.max_pages", 1000)
	v.SetDefault("calendar.concurrency", 4)
	v.SetDefault("calendar.page_size", 2500)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or sketchcal.yaml from the working directory and the
// user config directory when configFile is empty. A missing default config
// file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if c.Relay.Database == "" {
		c.Relay.Database = filepath.Join(c.DataDir, "relay.sqlite3")
	}
	if c.Calendar.CacheDir == "" {
		c.Calendar.CacheDir = filepath.Join(c.DataDir, "calendar")
	}
	return c, nil
}

// Level maps log_level to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
