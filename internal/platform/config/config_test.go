package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Network != Devnet {
		t.Errorf("network: expected devnet, got %s", cfg.Network)
	}
	if cfg.Endpoint() != "https://fullnode.devnet.sui.io:443" {
		t.Errorf("endpoint: got %s", cfg.Endpoint())
	}
	if cfg.Module != "pool" {
		t.Errorf("module: expected pool, got %s", cfg.Module)
	}
	if cfg.Cache.TTL() != 30*time.Second || cfg.Cache.MaxEntries != 1000 {
		t.Errorf("cache: got ttl=%v max=%d", cfg.Cache.TTL(), cfg.Cache.MaxEntries)
	}
	if cfg.Retry.BaseDelay != 200*time.Millisecond {
		t.Errorf("retry base delay: got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Circuit.Timeout != 30*time.Second {
		t.Errorf("circuit timeout: got %v", cfg.Circuit.Timeout)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
network: mainnet
package_id: "0xabc"
registry_id: "0xdef"
cache:
  ttl_seconds: 5
  max_entries: 10
  warm_pool_ids: ["0x1", "0x2"]
tokens:
  "0x2::sui::SUI":
    usd_price: "1.25"
  "0xfeed::coin::COIN":
    decimals: 8
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint() != "https://fullnode.mainnet.sui.io:443" {
		t.Errorf("endpoint: got %s", cfg.Endpoint())
	}
	if cfg.PackageID != "0xabc" || cfg.RegistryID != "0xdef" {
		t.Errorf("ids: got %s %s", cfg.PackageID, cfg.RegistryID)
	}
	if len(cfg.Cache.WarmPoolIDs) != 2 {
		t.Errorf("warm pool ids: got %v", cfg.Cache.WarmPoolIDs)
	}

	sui, ok := cfg.Token("0x2::sui::SUI")
	if !ok || sui.USDPrice.String() != "1.25" || sui.Symbol != "SUI" {
		t.Errorf("SUI override: got %+v", sui)
	}
	coin, ok := cfg.Token("0xfeed::coin::coin")
	if !ok || coin.Decimals != 8 || coin.Symbol != "COIN" {
		t.Errorf("custom token: got %+v ok=%v", coin, ok)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "network: testnet\ncache:\n  ttl_seconds: 5\n")
	t.Setenv("CLMM_CACHE_TTL_SECONDS", "90")
	t.Setenv("CLMM_RPC_ENDPOINT", "http://localhost:9000")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cache.TTLSeconds != 90 {
		t.Errorf("ttl: expected 90 from env, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Endpoint() != "http://localhost:9000" {
		t.Errorf("endpoint override: got %s", cfg.Endpoint())
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("CLMM_NETWORK", "testnet")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--network=mainnet", "--log-format=text"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(writeConfig(t, "{}\n"), fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network != Mainnet {
		t.Errorf("network: expected mainnet from flag, got %s", cfg.Network)
	}
	if cfg.Observability.Logging.Format != "text" {
		t.Errorf("log format: got %s", cfg.Observability.Logging.Format)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("unset flag must not clobber default, got %d", cfg.Cache.MaxEntries)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown network", "network: localnet\n", "unknown network"},
		{"zero capacity", "cache:\n  max_entries: 0\n", "max entries"},
		{"negative ttl", "cache:\n  ttl_seconds: -1\n", "ttl"},
		{"bad log level", "observability:\n  logging:\n    level: loud\n", "log level"},
		{"bad token price", "tokens:\n  \"0xa::b::C\":\n    usd_price: abc\n", "usd_price"},
		{"bad decimals", "tokens:\n  \"0xa::b::C\":\n    decimals: 99\n", "decimals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
