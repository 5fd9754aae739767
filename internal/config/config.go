package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Cache     CacheConfig     `yaml:"cache"`
	Providers ProvidersConfig `yaml:"providers"`
	// Priority is the initial fallback order; sources left out are
	// appended in registration order.
	Priority []string `yaml:"priority" env:"SOURCE_PRIORITY"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"20s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`   // debug|info|warn|error
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"` // text|json
}

// ResolverConfig exposes the retry knobs per call chain.
type ResolverConfig struct {
	MaxRetries  int           `yaml:"max_retries" env:"RESOLVER_MAX_RETRIES" env-default:"2"`
	BackoffBase time.Duration `yaml:"backoff_base" env:"RESOLVER_BACKOFF_BASE" env-default:"500ms"`
	Timeout     time.Duration `yaml:"timeout" env:"RESOLVER_TIMEOUT" env-default:"10s"`
	// Cooldown > 0 skips a source that keeps failing until the window
	// elapses. Disabled by default: every call retries every source.
	Cooldown time.Duration `yaml:"cooldown" env:"RESOLVER_COOLDOWN" env-default:"0s"`
}

type CacheConfig struct {
	MaxItems int `yaml:"max_items" env:"CACHE_MAX_ITEMS" env-default:"10000"`
}

// ProviderConfig is the per-source block. Rate limits mirror what the
// upstream enforces; zero values disable the corresponding gate.
type ProviderConfig struct {
	Enabled              bool          `yaml:"enabled"`
	BaseURL              string        `yaml:"base_url"`
	APIKey               string        `yaml:"api_key"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	Burst                int           `yaml:"burst"`
	MinRequestInterval   time.Duration `yaml:"min_request_interval"`
}

type ProvidersConfig struct {
	HTTPTimeout time.Duration  `yaml:"http_timeout" env:"PROVIDER_HTTP_TIMEOUT" env-default:"10s"`
	CoinGecko   ProviderConfig `yaml:"coingecko"`
	Binance     ProviderConfig `yaml:"binance"`
	Coinbase    ProviderConfig `yaml:"coinbase"`
}

// Load reads YAML config from path, falling back to config.yaml in the
// working directory and then to environment/defaults only. Environment
// variables override select fields for secrecy.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	// with no providers block at all, run everything key-less
	if !cfg.Providers.CoinGecko.Enabled && !cfg.Providers.Binance.Enabled && !cfg.Providers.Coinbase.Enabled {
		cfg.Providers.CoinGecko.Enabled = true
		cfg.Providers.Binance.Enabled = true
		cfg.Providers.Coinbase.Enabled = true
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Providers.CoinGecko.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Providers.Binance.APIKey = v
	}
	if v := os.Getenv("COINBASE_API_KEY"); v != "" {
		cfg.Providers.Coinbase.APIKey = v
	}
}
