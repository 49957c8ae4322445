package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path (skipped when path is empty), merges it on
// top of the built-in defaults and applies environment overrides. The result
// has NOT been validated; call Config.Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from set environment variables.
// The bare PORT, DATABASE_URL and REDIS_URL names are honoured for platform
// deployments; SETTLE_* take precedence.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PORT")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")

	setStr(&cfg.LogLevel, "SETTLE_LOG_LEVEL")
	setStringSlice(&cfg.Books, "SETTLE_BOOKS")

	// ── Server ──
	setInt(&cfg.Server.Port, "SETTLE_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "SETTLE_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SETTLE_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.RequestTimeout, "SETTLE_SERVER_REQUEST_TIMEOUT")
	setStringSlice(&cfg.Server.CORSOrigins, "SETTLE_SERVER_CORS_ORIGINS")

	// ── Database ──
	setStr(&cfg.Database.URL, "SETTLE_DATABASE_URL")
	setBool(&cfg.Database.RunMigrations, "SETTLE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "SETTLE_REDIS_URL")
	setDuration(&cfg.Redis.CacheTTL, "SETTLE_REDIS_CACHE_TTL")

	// ── Oracle / settlement ──
	setStr(&cfg.Oracle.Source, "SETTLE_ORACLE_SOURCE")
	setStr(&cfg.Settlement.TieBreak, "SETTLE_SETTLEMENT_TIE_BREAK")
	setBool(&cfg.Settlement.CapToCollateral, "SETTLE_SETTLEMENT_CAP_TO_COLLATERAL")

	// ── Ledger ──
	setBool(&cfg.Ledger.Faucet, "SETTLE_LEDGER_FAUCET")
}

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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
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
