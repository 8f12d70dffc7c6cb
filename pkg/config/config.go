package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Status   StatusConfig   `mapstructure:"status"`
	Match    MatchConfig    `mapstructure:"match"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Sitemap  SitemapConfig  `mapstructure:"sitemap"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PostgresConfig is optional; an empty URL disables persistence.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig is optional; an empty address disables the shared cache and
// the event stream.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	StatusTTL time.Duration `mapstructure:"status_ttl"`
	Stream    string        `mapstructure:"stream"`
}

type CrawlConfig struct {
	// MaxPages bounds the crawl; 0 crawls until the frontier empties.
	MaxPages      int      `mapstructure:"max_pages"`
	Workers       int      `mapstructure:"workers"`
	RespectRobots bool     `mapstructure:"respect_robots"`
	Renderer      string   `mapstructure:"renderer"`
	SkipMarkers   []string `mapstructure:"skip_markers"`
	UserAgent     string   `mapstructure:"user_agent"`
	MaxBodyBytes  int64    `mapstructure:"max_body_bytes"`
}

type StatusConfig struct {
	HeadTimeout      time.Duration `mapstructure:"head_timeout"`
	GetTimeout       time.Duration `mapstructure:"get_timeout"`
	Retries          int           `mapstructure:"retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	HeadHostileHosts []string      `mapstructure:"head_hostile_hosts"`
	RequestRate      float64       `mapstructure:"request_rate"`
	PerHostRate      float64       `mapstructure:"per_host_rate"`
	Proxies          []string      `mapstructure:"proxies"`
}

type MatchConfig struct {
	FuzzyThreshold   float64 `mapstructure:"fuzzy_threshold"`
	PartialThreshold float64 `mapstructure:"partial_threshold"`
}

type BrowserConfig struct {
	Headless         bool          `mapstructure:"headless"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	PageLoadTimeout  time.Duration `mapstructure:"page_load_timeout"`
	StaleRetries     int           `mapstructure:"stale_retries"`
	StaleDelay       time.Duration `mapstructure:"stale_delay"`
	PageResetRetries int           `mapstructure:"page_reset_retries"`
	ExecPath         string        `mapstructure:"exec_path"`
}

type SitemapConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxDepth    int           `mapstructure:"max_depth"`
	Concurrency int           `mapstructure:"concurrency"`
}

type AuditConfig struct {
	// Mode is one of "auto", "sitemap", "crawl" or "both".
	Mode            string `mapstructure:"mode"`
	SiteConcurrency int    `mapstructure:"site_concurrency"`
	MaxRenderPages  int    `mapstructure:"max_render_pages"`
	FactsEveryPage  bool   `mapstructure:"facts_every_page"`
	ValidateCTAs    bool   `mapstructure:"validate_ctas"`
	// CheckExternalLinks validates outbound links found while crawling.
	CheckExternalLinks bool `mapstructure:"check_external_links"`
	// DedupWindow refuses API resubmissions of a site within this window.
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

var defaults = map[string]any{
	"server.port":          "8080",
	"server.read_timeout":  "5s",
	"server.write_timeout": "10s",

	"log.level":  "info",
	"log.format": "json",

	"postgres.url": "",

	"redis.addr":       "",
	"redis.password":   "",
	"redis.db":         0,
	"redis.status_ttl": "30m",
	"redis.stream":     "audit:events",

	"crawl.max_pages":      500,
	"crawl.workers":        8,
	"crawl.respect_robots": false,
	"crawl.renderer":       "http",
	"crawl.skip_markers":   []string{},
	"crawl.user_agent":     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"crawl.max_body_bytes": 10 << 20,

	"status.head_timeout":       "5s",
	"status.get_timeout":        "10s",
	"status.retries":            1,
	"status.retry_backoff":      "500ms",
	"status.head_hostile_hosts": []string{"fonts.googleapis.com", "fonts.gstatic.com", "www.googletagmanager.com", "www.google-analytics.com", "connect.facebook.net", "cdn.shopify.com"},
	"status.request_rate":       0.0,
	"status.per_host_rate":      0.0,
	"status.proxies":            []string{},

	"match.fuzzy_threshold":   0.80,
	"match.partial_threshold": 0.60,

	"browser.headless":           true,
	"browser.settle_delay":       "1500ms",
	"browser.page_load_timeout":  "30s",
	"browser.stale_retries":      2,
	"browser.stale_delay":        "300ms",
	"browser.page_reset_retries": 1,
	"browser.exec_path":          "",

	"sitemap.timeout":     "15s",
	"sitemap.max_depth":   5,
	"sitemap.concurrency": 4,

	"audit.mode":                 "auto",
	"audit.site_concurrency":     2,
	"audit.max_render_pages":     50,
	"audit.facts_every_page":     false,
	"audit.validate_ctas":        true,
	"audit.check_external_links": false,
	"audit.dedup_window":         "10m",
}

// Load reads configuration from an optional YAML/JSON/TOML file, the
// environment and any bound flags. Environment keys use underscores for nesting, e.g.
// CRAWL_MAX_PAGES or STATUS_HEAD_TIMEOUT.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"max-pages": "crawl.max_pages",
	"workers":   "crawl.workers",
	"mode":      "audit.mode",
	"renderer":  "crawl.renderer",
	"log-level": "log.level",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("crawl.max_pages must be >= 0"))
	}
	if c.Crawl.Workers < 1 {
		errs = append(errs, errors.New("crawl.workers must be >= 1"))
	}
	switch c.Crawl.Renderer {
	case "http", "browser":
	default:
		errs = append(errs, fmt.Errorf("crawl.renderer %q must be http or browser", c.Crawl.Renderer))
	}
	if c.Match.FuzzyThreshold <= 0 || c.Match.FuzzyThreshold > 1 {
		errs = append(errs, errors.New("match.fuzzy_threshold must be in (0, 1]"))
	}
	if c.Match.PartialThreshold <= 0 || c.Match.PartialThreshold > 1 {
		errs = append(errs, errors.New("match.partial_threshold must be in (0, 1]"))
	}
	if c.Status.HeadTimeout <= 0 || c.Status.GetTimeout <= 0 {
		errs = append(errs, errors.New("status timeouts must be positive"))
	}
	if c.Status.Retries < 0 {
		errs = append(errs, errors.New("status.retries must be >= 0"))
	}
	if c.Sitemap.Concurrency < 1 || c.Sitemap.MaxDepth < 1 {
		errs = append(errs, errors.New("sitemap.concurrency and sitemap.max_depth must be >= 1"))
	}
	if c.Audit.SiteConcurrency < 1 {
		errs = append(errs, errors.New("audit.site_concurrency must be >= 1"))
	}
	switch c.Audit.Mode {
	case "auto", "sitemap", "crawl", "both":
	default:
		errs = append(errs, fmt.Errorf("audit.mode %q is not supported", c.Audit.Mode))
	}
	return errors.Join(errs...)
}
