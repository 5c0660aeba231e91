package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BTRADE_* environment variable overrides, and
// returns the final Config. A missing file is not an error; defaults plus
// environment overrides apply. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.WsURL, "BTRADE_BINANCE_WS_URL")
	setStringSlice(&cfg.Binance.Symbols, "BTRADE_BINANCE_SYMBOLS")

	// ── Indicator ──
	setFloat64(&cfg.Indicator.RangePct, "BTRADE_INDICATOR_RANGE_PCT")

	// ── Database ──
	setBool(&cfg.Database.Enabled, "BTRADE_DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "BTRADE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "BTRADE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "BTRADE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "BTRADE_DATABASE_NAME")
	setStr(&cfg.Database.User, "BTRADE_DATABASE_USER")
	setStr(&cfg.Database.Password, "BTRADE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "BTRADE_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "BTRADE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "BTRADE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "BTRADE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BTRADE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BTRADE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "BTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BTRADE_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BTRADE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BTRADE_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.IntervalHours, "BTRADE_ARCHIVE_INTERVAL_HOURS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BTRADE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BTRADE_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BTRADE_MODE")
	setStr(&cfg.LogLevel, "BTRADE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
