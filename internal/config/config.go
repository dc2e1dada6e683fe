// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/academic-crawler/internal/fetcher/colly"
)

// Export backends.
const (
	ExportNone   = "none"
	ExportLocal  = "local"
	ExportGCS    = "gcs"
	ExportMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Auth    AuthConfig      `mapstructure:"auth"`
	Crawler CrawlerConfig   `mapstructure:"crawler"`
	Run     RunConfig       `mapstructure:"run"`
	DB      DBConfig        `mapstructure:"db"`
	Export  ExportConfig    `mapstructure:"export"`
	PubSub  PubSubConfig    `mapstructure:"pubsub"`
	Logging LoggingConfig   `mapstructure:"logging"`
	Catalog catalog.Catalog `mapstructure:"catalog"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs fetching, batching, and politeness.
type CrawlerConfig struct {
	MaxWorkers         int           `mapstructure:"max_workers"`
	DelayMin           time.Duration `mapstructure:"delay_min"`
	DelayMax           time.Duration `mapstructure:"delay_max"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	MaxLinksPerPage    int           `mapstructure:"max_links_per_page"`
	DiscoveryRatio     float64       `mapstructure:"discovery_ratio"`
	RateLimitPerDomain float64       `mapstructure:"rate_limit_per_domain"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	BlockedDomains     []string      `mapstructure:"blocked_domains"`
}

// RunConfig sets run-level defaults.
type RunConfig struct {
	TargetCount  int    `mapstructure:"target_count"`
	StatusDomain string `mapstructure:"status_domain"`
}

// DBConfig controls access to the relational database. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	BatchSize   int    `mapstructure:"batch_size"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// ExportConfig selects where finished corpora are written.
type ExportConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	cfg.applyCatalogDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("crawler.max_workers", crawler.DefaultMaxWorkers)
	v.SetDefault("crawler.delay_min", time.Second)
	v.SetDefault("crawler.delay_max", 3*time.Second)
	v.SetDefault("crawler.request_timeout", collyfetcher.DefaultTimeout)
	v.SetDefault("crawler.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("crawler.max_links_per_page", crawler.DefaultMaxLinksPerPage)
	v.SetDefault("crawler.discovery_ratio", crawler.DefaultDiscoveryRatio)
	v.SetDefault("crawler.rate_limit_per_domain", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("crawler.blocked_domains", []string{})
	v.SetDefault("run.target_count", 290000)
	v.SetDefault("run.status_domain", "multiple")
	v.SetDefault("db.batch_size", 100)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("export.backend", ExportNone)
	v.SetDefault("export.base_dir", "data/exports")
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("logging.development", true)
}

// applyCatalogDefaults fills catalog parts the config file left empty.
func (c *Config) applyCatalogDefaults() {
	def := catalog.Default()
	if c.Catalog.TotalDomains() == 0 {
		c.Catalog.Sources = def.Sources
		c.Catalog.EduDomains = def.EduDomains
		c.Catalog.OrgDomains = def.OrgDomains
	}
	if len(c.Catalog.Lexicon) == 0 {
		c.Catalog.Lexicon = def.Lexicon
	}
	if c.Catalog.FallbackField == "" {
		c.Catalog.FallbackField = def.Fallback()
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.MaxWorkers <= 0 {
		return fmt.Errorf("crawler.max_workers must be > 0")
	}
	if c.Crawler.DelayMin < 0 || c.Crawler.DelayMax < c.Crawler.DelayMin {
		return fmt.Errorf("crawler.delay_min must be >= 0 and <= crawler.delay_max")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.DiscoveryRatio < 0 || c.Crawler.DiscoveryRatio > 1 {
		return fmt.Errorf("crawler.discovery_ratio must be within [0, 1]")
	}
	if c.Crawler.RateLimitPerDomain < 0 {
		return fmt.Errorf("crawler.rate_limit_per_domain must be >= 0")
	}
	if c.Run.TargetCount <= 0 {
		return fmt.Errorf("run.target_count must be > 0")
	}
	if c.DB.BatchSize <= 0 {
		return fmt.Errorf("db.batch_size must be > 0")
	}
	switch c.Export.Backend {
	case ExportNone, ExportMemory:
	case ExportLocal:
		if c.Export.BaseDir == "" {
			return fmt.Errorf("export.base_dir must be set for the local backend")
		}
	case ExportGCS:
		if c.Export.GCSBucket == "" {
			return fmt.Errorf("export.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("export.backend %q is not one of none, local, gcs, memory", c.Export.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// CrawlerOptions converts the crawler section into orchestrator options.
func (c Config) CrawlerOptions() crawler.Options {
	return crawler.Options{
		MaxWorkers:      c.Crawler.MaxWorkers,
		DelayMin:        c.Crawler.DelayMin,
		DelayMax:        c.Crawler.DelayMax,
		MaxLinksPerPage: c.Crawler.MaxLinksPerPage,
		DiscoveryRatio:  c.Crawler.DiscoveryRatio,
		BlockedDomains:  c.Crawler.BlockedDomains,
	}
}
