package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

const sample = `
log_level = "debug"
books = ["WETH-USDC-FUTURE-POWER", "WETH-USDC-CALL-LOG"]

[assets]
WETH = "0x00000000000000000000000000000000000000e7"
USDC = "0x00000000000000000000000000000000000000a1"

[server]
port = 9090
request_timeout = "5s"

[redis]
cache_ttl = "1m"

[oracle]
source = "static"
[oracle.prices]
"WETH/USDC" = "3000.5"

[settlement]
tie_break = "short"
cap_to_collateral = false

[ledger]
faucet = true
[[ledger.seed]]
owner = "0x0000000000000000000000000000000000000a11"
asset = "usdc"
amount = "1000"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settle.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.RequestTimeout.Duration != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	// Unset fields keep their defaults.
	if cfg.Server.IdleTimeout.Duration != 60*time.Second {
		t.Errorf("idle timeout = %s, want default 60s", cfg.Server.IdleTimeout)
	}
	if cfg.Redis.CacheTTL.Duration != time.Minute {
		t.Errorf("cache ttl = %s", cfg.Redis.CacheTTL)
	}
	if cfg.TieBreak() != model.TieShort || cfg.Settlement.CapToCollateral {
		t.Errorf("settlement = %+v", cfg.Settlement)
	}
	if len(cfg.Books) != 2 || !cfg.Ledger.Faucet || len(cfg.Ledger.Seed) != 1 {
		t.Errorf("books/ledger = %v / %+v", cfg.Books, cfg.Ledger)
	}

	prices, err := cfg.StaticPrices()
	if err != nil {
		t.Fatal(err)
	}
	if prices["WETH/USDC"].Cmp(fixed.MustParse("3000.5")) != 0 {
		t.Errorf("price = %s", fixed.String(prices["WETH/USDC"]))
	}

	assets := cfg.AssetList()
	if len(assets) != 2 || assets[0].Symbol != "USDC" {
		t.Errorf("assets = %+v", assets)
	}
	if a, ok := cfg.Asset("weth"); !ok || a.Address != common.HexToAddress("0xe7") {
		t.Errorf("Asset(weth) = %+v, %v", a, ok)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("SETTLE_SERVER_PORT", "7100")
	t.Setenv("DATABASE_URL", "postgres://localhost/settle")
	t.Setenv("SETTLE_BOOKS", "WETH-USDC-GENIE-SIN, WETH-USDC-PUT-QUAD")
	t.Setenv("SETTLE_SETTLEMENT_TIE_BREAK", "short")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, want SETTLE_ value 7100", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/settle" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if len(cfg.Books) != 2 || cfg.Books[1] != "WETH-USDC-PUT-QUAD" {
		t.Errorf("books = %v", cfg.Books)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.TieBreak() != model.TieLong || !cfg.Settlement.CapToCollateral {
		t.Errorf("default policies = %+v", cfg.Settlement)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad tie break", func(c *Config) { c.Settlement.TieBreak = "maker" }, "tie_break"},
		{"unknown ticker kind", func(c *Config) { c.Books = []string{"WETH-USDC-SWAP-LINEAR"} }, "books"},
		{"curve not offered", func(c *Config) { c.Books = []string{"WETH-USDC-FUTURE-SIN"} }, "books"},
		{"unknown asset", func(c *Config) { c.Books = []string{"WBTC-USDC-FUTURE-LINEAR"} }, "unknown asset WBTC"},
		{"duplicate book", func(c *Config) { c.Books = append(c.Books, c.Books[0]) }, "duplicate"},
		{"bad address", func(c *Config) { c.Assets["USDC"] = "usdc" }, "not a hex address"},
		{"bad oracle", func(c *Config) { c.Oracle.Source = "chainlink" }, "oracle"},
		{"redis oracle without url", func(c *Config) { c.Oracle.Source = "redis" }, "redis.url"},
		{"bad price", func(c *Config) { c.Oracle.Prices = map[string]string{"WETH/USDC": "-1"} }, "positive"},
		{"bad pair", func(c *Config) { c.Oracle.Prices = map[string]string{"WETHUSDC": "1"} }, "BASE/QUOTE"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad seed", func(c *Config) {
			c.Ledger.Seed = []SeedBalance{{Owner: "0x1", Asset: "USDC", Amount: "1"}}
		}, "seed[0] owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
