// Package config loads and validates sitedown configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Store    StoreConfig    `mapstructure:"store"`
	Output   OutputConfig   `mapstructure:"output"`
	Resource ResourceConfig `mapstructure:"resource"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs frontier, scope, and dispatcher behavior.
type CrawlerConfig struct {
	StartURL           string        `mapstructure:"start_url"`
	MaxDepth           int           `mapstructure:"max_depth"`
	Concurrency        int           `mapstructure:"concurrency"`
	DomainScope        string        `mapstructure:"domain_scope"`
	URLPrefixScope     string        `mapstructure:"url_prefix_scope"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoffBase   time.Duration `mapstructure:"retry_backoff_base"`
	RetryBackoffMax    time.Duration `mapstructure:"retry_backoff_max"`
	DelayMin           time.Duration `mapstructure:"delay_min"`
	DelayMax           time.Duration `mapstructure:"delay_max"`
	RateLimitPerDomain float64       `mapstructure:"rate_limit_per_domain"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// FetcherConfig selects and configures the fetch mechanism.
type FetcherConfig struct {
	Mode               string        `mapstructure:"mode"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	MaxParallel        int           `mapstructure:"max_parallel"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
}

// StoreConfig selects the page store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// OutputConfig controls the merged document artifact.
type OutputConfig struct {
	MergedFilename string `mapstructure:"merged_filename"`
}

// ResourceConfig tunes the dispatcher's memory-pressure throttle.
type ResourceConfig struct {
	MemoryLimitMB int `mapstructure:"memory_limit_mb"`
}

// ServerConfig controls the optional metrics listener.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Fetcher mode values. Auto fetches over HTTP and re-fetches pages that
// look script-rendered with the headless browser.
const (
	FetcherModeHTTP     = "http"
	FetcherModeHeadless = "headless"
	FetcherModeAuto     = "auto"
)

// Store backend values.
const (
	StoreBackendFS       = "fs"
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

// Load builds a Config from disk/environment. path may be empty, in which
// case only defaults and SITEDOWN_* environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.max_retries", 2)
	v.SetDefault("crawler.retry_backoff_base", "250ms")
	v.SetDefault("crawler.retry_backoff_max", "5s")
	v.SetDefault("crawler.delay_min", "100ms")
	v.SetDefault("crawler.delay_max", "750ms")
	v.SetDefault("crawler.rate_limit_per_domain", 4)
	v.SetDefault("crawler.user_agent", "sitedown/1.0 (+https://github.com/sitedown/sitedown)")
	v.SetDefault("fetcher.mode", FetcherModeHTTP)
	v.SetDefault("fetcher.nav_timeout", "25s")
	v.SetDefault("fetcher.max_parallel", 2)
	v.SetDefault("fetcher.promotion_threshold", 2048)
	v.SetDefault("store.backend", StoreBackendFS)
	v.SetDefault("store.dir", "output")
	v.SetDefault("store.table", "pages")
	v.SetDefault("output.merged_filename", "merged_content.md")
	v.SetDefault("resource.memory_limit_mb", 0)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.Crawler.DelayMax < c.Crawler.DelayMin {
		return fmt.Errorf("crawler.delay_max must be >= crawler.delay_min")
	}
	switch c.Fetcher.Mode {
	case FetcherModeHTTP, FetcherModeHeadless, FetcherModeAuto:
	default:
		return fmt.Errorf("fetcher.mode must be one of %q, %q, %q",
			FetcherModeHTTP, FetcherModeHeadless, FetcherModeAuto)
	}
	switch c.Store.Backend {
	case StoreBackendFS, StoreBackendMemory:
	case StoreBackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of %q, %q, %q",
			StoreBackendFS, StoreBackendMemory, StoreBackendPostgres)
	}
	return nil
}
