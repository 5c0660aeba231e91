// Package config defines the top-level configuration for the market-data
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BTRADE_* environment variables.
type Config struct {
	Binance   BinanceConfig   `toml:"binance"`
	Indicator IndicatorConfig `toml:"indicator"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// BinanceConfig holds the exchange stream endpoint and subscriptions.
type BinanceConfig struct {
	// WsURL is the spot stream endpoint, e.g. "wss://stream.binance.com:9443/ws".
	WsURL string `toml:"ws_url"`

	// Symbols are the stream symbols to subscribe, e.g. ["btcusdt"].
	Symbols []string `toml:"symbols"`
}

// IndicatorConfig holds indicator computation parameters.
type IndicatorConfig struct {
	// RangePct restricts volume computation to levels within ±RangePct
	// percent of the last trade price. 0 uses the full book.
	RangePct float64 `toml:"range_pct"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds tick retention parameters.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
	IntervalHours int  `toml:"interval_hours"`
}

// ServerConfig holds the HTTP/WebSocket server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Defaults returns the built-in configuration. A bare deployment with a
// reachable Binance endpoint runs with no TOML file at all.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			WsURL:   "wss://stream.binance.com:9443/ws",
			Symbols: []string{"btcusdt"},
		},
		Indicator: IndicatorConfig{
			RangePct: 0,
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "market_data",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			IntervalHours: 24,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"stream": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. Validation failures are fatal at
// startup, before any stream is opened.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stream, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsFeed := c.Mode == "stream" || c.Mode == "full"
	if needsFeed {
		if strings.TrimSpace(c.Binance.WsURL) == "" {
			errs = append(errs, "binance: ws_url must be set for mode "+c.Mode)
		}
		if len(c.Binance.Symbols) == 0 {
			errs = append(errs, "binance: at least one symbol is required for mode "+c.Mode)
		}
	}

	if c.Indicator.RangePct < 0 {
		errs = append(errs, "indicator: range_pct must not be negative")
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		if c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "" {
			errs = append(errs, "database: host, database, and user are required when no dsn is set")
		}
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, "redis: addr is required when redis is enabled")
	}

	if c.Archive.Enabled {
		if !c.Database.Enabled {
			errs = append(errs, "archive: requires database to be enabled")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			errs = append(errs, "archive: s3 bucket and region are required")
		}
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
		if c.Archive.IntervalHours <= 0 {
			errs = append(errs, "archive: interval_hours must be positive")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
