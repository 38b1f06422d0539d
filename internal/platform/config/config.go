// Package config loads engine settings from a YAML file, CLMM_ environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CLMM_CACHE_TTL_SECONDS.
const EnvPrefix = "CLMM"

// Network names a ledger deployment.
type Network string

const (
	Devnet  Network = "devnet"
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// defaultEndpoints are the public fullnodes used when rpc_endpoint is unset.
var defaultEndpoints = map[Network]string{
	Devnet:  "https://fullnode.devnet.sui.io:443",
	Testnet: "https://fullnode.testnet.sui.io:443",
	Mainnet: "https://fullnode.mainnet.sui.io:443",
}

// Config holds all configuration for the engine
type Config struct {
	Network       Network                `mapstructure:"network"`
	RPCEndpoint   string                 `mapstructure:"rpc_endpoint"`
	PackageID     string                 `mapstructure:"package_id"`
	RegistryID    string                 `mapstructure:"registry_id"`
	Module        string                 `mapstructure:"module"`
	Cache         CacheConfig            `mapstructure:"cache"`
	Workers       WorkersConfig          `mapstructure:"workers"`
	Retry         RetryConfig            `mapstructure:"retry"`
	Circuit       CircuitConfig          `mapstructure:"circuit"`
	Observability ObservabilityConfig    `mapstructure:"observability"`
	HTTP          HTTPConfig             `mapstructure:"http"`
	Tokens        map[string]TokenConfig `mapstructure:"tokens"`

	endpoint string
	tokens   map[string]TokenInfo
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	TTLSeconds  int      `mapstructure:"ttl_seconds"`
	MaxEntries  int      `mapstructure:"max_entries"`
	WarmPoolIDs []string `mapstructure:"warm_pool_ids"`
}

// TTL is the staleness window of cached pool snapshots.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// WorkersConfig sizes the keyed worker pool that serializes mutations.
type WorkersConfig struct {
	Count     int `mapstructure:"count"`
	QueueSize int `mapstructure:"queue_size"`
}

// RetryConfig holds retry settings for the RPC collaborator
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CircuitConfig holds circuit breaker settings for the RPC collaborator
type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Port         int    `mapstructure:"port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("network", "", "ledger network: devnet, testnet or mainnet")
	fs.String("rpc-endpoint", "", "JSON-RPC endpoint, overrides the network default")
	fs.String("package-id", "", "on-chain package id of the pool module")
	fs.String("registry-id", "", "on-chain pool registry object id")
	fs.Int("cache-ttl-seconds", 0, "staleness window of cached pools")
	fs.Int("cache-max-entries", 0, "maximum cached pools")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "json or text")
}

var flagKeys = map[string]string{
	"network":           "network",
	"rpc-endpoint":      "rpc_endpoint",
	"package-id":        "package_id",
	"registry-id":       "registry_id",
	"cache-ttl-seconds": "cache.ttl_seconds",
	"cache-max-entries": "cache.max_entries",
	"log-level":         "observability.logging.level",
	"log-format":        "observability.logging.format",
}

// Load loads configuration from file, environment variables and flags.
// An empty configPath searches ./config.yaml and ./config/config.yaml and
// tolerates neither existing. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(Devnet))
	v.SetDefault("rpc_endpoint", "")
	v.SetDefault("package_id", "")
	v.SetDefault("registry_id", "")
	v.SetDefault("module", "pool")

	v.SetDefault("cache.ttl_seconds", 30)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.warm_pool_ids", []string{})

	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queue_size", 64)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "200ms")
	v.SetDefault("retry.max_delay", "5s")

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.timeout", "30s")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9091)
	v.SetDefault("observability.metrics.otlp_endpoint", "")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_ratio", 1.0)

	v.SetDefault("http.port", 8080)
}

// parse derives the effective endpoint and token table.
func (c *Config) parse() error {
	c.Network = Network(strings.ToLower(strings.TrimSpace(string(c.Network))))
	c.endpoint = strings.TrimSpace(c.RPCEndpoint)
	if c.endpoint == "" {
		c.endpoint = defaultEndpoints[c.Network]
	}

	tokens, err := mergeTokens(c.Tokens)
	if err != nil {
		return err
	}
	c.tokens = tokens
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, ok := defaultEndpoints[c.Network]; !ok {
		return fmt.Errorf("unknown network %q (want devnet, testnet or mainnet)", c.Network)
	}
	if c.Endpoint() == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.Module == "" {
		return fmt.Errorf("module name is required")
	}

	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttl must be >= 0, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be > 0, got %d", c.Cache.MaxEntries)
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("worker count must be > 0, got %d", c.Workers.Count)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Observability.Tracing.SampleRatio < 0 || c.Observability.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be within [0, 1]")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}

// Endpoint is the JSON-RPC URL the collaborator dials: the override when
// set, otherwise the network's public fullnode.
func (c *Config) Endpoint() string {
	return c.endpoint
}

// Token returns metadata for a coin type, from configuration overrides first
// and the well-known table second.
func (c *Config) Token(coinType string) (TokenInfo, bool) {
	t, ok := c.tokens[coinType]
	return t, ok
}
