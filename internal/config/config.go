// Package config defines the settlement engine's configuration and its
// validation rules.
package config

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/instrument"
	"github.com/atmx/settlement-engine/internal/model"
)

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by environment variables.
type Config struct {
	LogLevel   string            `toml:"log_level"`
	Books      []string          `toml:"books"`  // tickers, e.g. WETH-USDC-FUTURE-POWER
	Assets     map[string]string `toml:"assets"` // symbol -> token address
	Server     ServerConfig      `toml:"server"`
	Database   DatabaseConfig    `toml:"database"`
	Redis      RedisConfig       `toml:"redis"`
	Oracle     OracleConfig      `toml:"oracle"`
	Settlement SettlementConfig  `toml:"settlement"`
	Ledger     LedgerConfig      `toml:"ledger"`
}

// duration wraps time.Duration so TOML strings like "30s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	IdleTimeout     duration `toml:"idle_timeout"`
	RequestTimeout  duration `toml:"request_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// DatabaseConfig selects the PostgreSQL mirror. An empty URL keeps the
// mirror in memory.
type DatabaseConfig struct {
	URL           string `toml:"url"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig enables the read-through cache in front of PostgreSQL and the
// redis price source.
type RedisConfig struct {
	URL      string   `toml:"url"`
	CacheTTL duration `toml:"cache_ttl"`
}

// OracleConfig selects the price source.
type OracleConfig struct {
	Source string            `toml:"source"` // static | redis
	Prices map[string]string `toml:"prices"` // "WETH/USDC" -> "3000.25", static source only
}

// SettlementConfig carries the settlement policies shared by every book.
type SettlementConfig struct {
	TieBreak        string `toml:"tie_break"` // long: S >= K pays the long; short: S > K
	CapToCollateral bool   `toml:"cap_to_collateral"`
}

// LedgerConfig configures the in-memory token ledger.
type LedgerConfig struct {
	Faucet bool          `toml:"faucet"` // expose POST /accounts/{address}/mint
	Seed   []SeedBalance `toml:"seed"`
}

// SeedBalance is minted at startup.
type SeedBalance struct {
	Owner  string `toml:"owner"`
	Asset  string `toml:"asset"`
	Amount string `toml:"amount"`
}

// Defaults returns a Config with every field set to its built-in default.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Books:    []string{"WETH-USDC-FUTURE-LINEAR"},
		Assets: map[string]string{
			"WETH": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			"USDC": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     duration{10 * time.Second},
			WriteTimeout:    duration{10 * time.Second},
			IdleTimeout:     duration{60 * time.Second},
			RequestTimeout:  duration{30 * time.Second},
			ShutdownTimeout: duration{5 * time.Second},
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{RunMigrations: true},
		Redis:    RedisConfig{CacheTTL: duration{30 * time.Second}},
		Oracle:   OracleConfig{Source: "static"},
		Settlement: SettlementConfig{
			TieBreak:        "long",
			CapToCollateral: true,
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RequestTimeout.Duration <= 0 {
		errs = append(errs, "server: request_timeout must be positive")
	}

	// Assets
	for sym, addr := range c.Assets {
		if sym != strings.ToUpper(sym) {
			errs = append(errs, fmt.Sprintf("assets: symbol %q must be upper case", sym))
		}
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("assets: %s address %q is not a hex address", sym, addr))
		}
	}

	// Books
	if len(c.Books) == 0 {
		errs = append(errs, "books: at least one ticker is required")
	}
	seen := make(map[string]bool, len(c.Books))
	for _, ticker := range c.Books {
		if seen[ticker] {
			errs = append(errs, fmt.Sprintf("books: duplicate ticker %s", ticker))
			continue
		}
		seen[ticker] = true
		inst, err := instrument.ParseTicker(ticker)
		if err != nil {
			errs = append(errs, fmt.Sprintf("books: %v", err))
			continue
		}
		for _, sym := range []string{inst.Underlying, inst.Strike} {
			if _, ok := c.Assets[sym]; !ok {
				errs = append(errs, fmt.Sprintf("books: %s uses unknown asset %s", ticker, sym))
			}
		}
	}

	// Oracle
	switch c.Oracle.Source {
	case "static":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, "oracle: source redis requires redis.url")
		}
	default:
		errs = append(errs, fmt.Sprintf("oracle: unknown source %q (valid: static, redis)", c.Oracle.Source))
	}
	if _, err := c.StaticPrices(); err != nil {
		errs = append(errs, err.Error())
	}

	// Settlement
	if _, err := model.ParseTieBreak(c.Settlement.TieBreak); err != nil {
		errs = append(errs, fmt.Sprintf("settlement: tie_break must be long or short, got %q", c.Settlement.TieBreak))
	}

	// Ledger
	for i, s := range c.Ledger.Seed {
		if !common.IsHexAddress(s.Owner) {
			errs = append(errs, fmt.Sprintf("ledger: seed[%d] owner %q is not a hex address", i, s.Owner))
		}
		if _, ok := c.Assets[strings.ToUpper(s.Asset)]; !ok {
			errs = append(errs, fmt.Sprintf("ledger: seed[%d] unknown asset %s", i, s.Asset))
		}
		if v, err := fixed.Parse(s.Amount); err != nil || v.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("ledger: seed[%d] amount %q must be a positive decimal", i, s.Amount))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TieBreak returns the parsed tie policy. Call Validate first.
func (c *Config) TieBreak() model.TieBreak {
	t, _ := model.ParseTieBreak(c.Settlement.TieBreak)
	return t
}

// Asset looks up a configured asset by symbol.
func (c *Config) Asset(symbol string) (model.Asset, bool) {
	symbol = strings.ToUpper(symbol)
	addr, ok := c.Assets[symbol]
	if !ok {
		return model.Asset{}, false
	}
	return model.Asset{Address: common.HexToAddress(addr), Symbol: symbol}, true
}

// AssetList returns every configured asset sorted by symbol.
func (c *Config) AssetList() []model.Asset {
	out := make([]model.Asset, 0, len(c.Assets))
	for sym := range c.Assets {
		a, _ := c.Asset(sym)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// StaticPrices parses the static oracle seed into 18-decimal values keyed
// "BASE/QUOTE".
func (c *Config) StaticPrices() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(c.Oracle.Prices))
	for pair, raw := range c.Oracle.Prices {
		if parts := strings.Split(pair, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("oracle: price key %q must look like BASE/QUOTE", pair)
		}
		v, err := fixed.Parse(raw)
		if err != nil || v.Sign() <= 0 {
			return nil, fmt.Errorf("oracle: price %s = %q must be a positive decimal", pair, raw)
		}
		out[strings.ToUpper(pair)] = v
	}
	return out, nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
