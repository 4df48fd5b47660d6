// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/zone-scraper/internal/email"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/storage/local"
	"github.com/JakeFAU/zone-scraper/internal/zoneconfig"
)

// Storage backends for zone exports.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Places    PlacesConfig    `mapstructure:"places"`
	Zones     ZonesConfig     `mapstructure:"zones"`
	Email     EmailConfig     `mapstructure:"email"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// PlacesConfig configures the nearby-search provider and the zone pass.
type PlacesConfig struct {
	APIKey               string        `mapstructure:"api_key"`
	RPS                  float64       `mapstructure:"rps"`
	Burst                int           `mapstructure:"burst"`
	DetailBatchSize      int           `mapstructure:"detail_batch_size"`
	DetailBatchDelay     time.Duration `mapstructure:"detail_batch_delay"`
	PageDelay            time.Duration `mapstructure:"page_delay"`
	MaxPages             int           `mapstructure:"max_pages"`
	RequireBusinessHours bool          `mapstructure:"require_business_hours"`
	SummaryFallback      bool          `mapstructure:"summary_fallback"`
}

// ZonesConfig configures zone config derivation and the development zone seed.
type ZonesConfig struct {
	CacheTTL       time.Duration  `mapstructure:"cache_ttl"`
	BaseMaxResults int            `mapstructure:"base_max_results"`
	Seed           []scraper.Zone `mapstructure:"seed"`
}

// EmailConfig configures the email discovery pipeline.
type EmailConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgents       []string      `mapstructure:"user_agents"`
	ContactPaths     []string      `mapstructure:"contact_paths"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	BatchDelay       time.Duration `mapstructure:"batch_delay"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	VerifyMX         bool          `mapstructure:"verify_mx"`
	DNSServers       []string      `mapstructure:"dns_servers"`
	DNSTimeout       time.Duration `mapstructure:"dns_timeout"`
	SkipDomains      []string      `mapstructure:"skip_domains"`
}

// HeadlessConfig configures the browser-rendered email strategy.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// JobsConfig governs job defaults, history and the email worker pool.
type JobsConfig struct {
	HistoryLimit      int           `mapstructure:"history_limit"`
	RecentLimit       int           `mapstructure:"recent_limit"`
	InterZoneDelay    time.Duration `mapstructure:"inter_zone_delay"`
	MaxResultsPerZone int           `mapstructure:"max_results_per_zone"`
	ExtractEmails     bool          `mapstructure:"extract_emails"`
	RejectBusyZones   bool          `mapstructure:"reject_busy_zones"`
	QueueDepth        int           `mapstructure:"queue_depth"`
	Workers           int           `mapstructure:"workers"`
	StoreRetries      int           `mapstructure:"store_retries"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the in-memory stores.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
	RestaurantTable string        `mapstructure:"restaurant_table"`
}

// StorageConfig selects where zone exports are written.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Bucket  string       `mapstructure:"bucket"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
}

// PubSubConfig holds metadata for job event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RateLimitConfig bounds outbound requests to restaurant websites, per host.
type RateLimitConfig struct {
	EmailRPS   float64 `mapstructure:"email_rps"`
	EmailBurst int     `mapstructure:"email_burst"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("places.api_key", "")
	v.SetDefault("places.rps", 0)
	v.SetDefault("places.burst", 1)
	v.SetDefault("places.detail_batch_size", 10)
	v.SetDefault("places.detail_batch_delay", 500*time.Millisecond)
	v.SetDefault("places.page_delay", 2*time.Second)
	v.SetDefault("places.max_pages", 3)
	v.SetDefault("places.require_business_hours", true)
	v.SetDefault("places.summary_fallback", false)

	v.SetDefault("zones.cache_ttl", 5*time.Minute)
	v.SetDefault("zones.base_max_results", zoneconfig.DefaultBaseMaxResults)

	v.SetDefault("email.enabled", true)
	v.SetDefault("email.timeout", 30*time.Second)
	v.SetDefault("email.user_agents", []string{})
	v.SetDefault("email.contact_paths", []string{})
	v.SetDefault("email.batch_concurrency", 3)
	v.SetDefault("email.batch_delay", 2*time.Second)
	v.SetDefault("email.respect_robots", false)
	v.SetDefault("email.verify_mx", false)
	v.SetDefault("email.dns_servers", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("email.dns_timeout", 3*time.Second)
	v.SetDefault("email.skip_domains", email.DefaultSkipDomains)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", 25*time.Second)
	v.SetDefault("headless.settle_delay", 500*time.Millisecond)

	v.SetDefault("jobs.history_limit", 50)
	v.SetDefault("jobs.recent_limit", 5)
	v.SetDefault("jobs.inter_zone_delay", 2*time.Second)
	v.SetDefault("jobs.max_results_per_zone", 100)
	v.SetDefault("jobs.extract_emails", true)
	v.SetDefault("jobs.reject_busy_zones", true)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.store_retries", 2)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.restaurant_table", "restaurants")

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "exports")
	v.SetDefault("storage.local.base_dir", "./exports")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("ratelimit.email_rps", 1)
	v.SetDefault("ratelimit.email_burst", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Places.RPS < 0 {
		return fmt.Errorf("places.rps must be >= 0")
	}
	if c.Places.DetailBatchSize <= 0 {
		return fmt.Errorf("places.detail_batch_size must be > 0")
	}
	if c.Places.MaxPages <= 0 {
		return fmt.Errorf("places.max_pages must be > 0")
	}
	if c.Zones.CacheTTL <= 0 {
		return fmt.Errorf("zones.cache_ttl must be > 0")
	}
	if c.Zones.BaseMaxResults <= 0 {
		return fmt.Errorf("zones.base_max_results must be > 0")
	}
	for i, z := range c.Zones.Seed {
		if strings.TrimSpace(z.ID) == "" {
			return fmt.Errorf("zones.seed[%d].id must be set", i)
		}
	}
	if c.Email.Enabled {
		if c.Email.Timeout <= 0 {
			return fmt.Errorf("email.timeout must be > 0")
		}
		if c.Email.BatchConcurrency <= 0 {
			return fmt.Errorf("email.batch_concurrency must be > 0")
		}
		if c.Email.VerifyMX && len(c.Email.DNSServers) == 0 {
			return fmt.Errorf("email.dns_servers must be set when email.verify_mx is enabled")
		}
		if c.Jobs.Workers <= 0 {
			return fmt.Errorf("jobs.workers must be > 0 when email is enabled")
		}
		if c.Jobs.QueueDepth <= 0 {
			return fmt.Errorf("jobs.queue_depth must be > 0 when email is enabled")
		}
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Jobs.HistoryLimit <= 0 {
		return fmt.Errorf("jobs.history_limit must be > 0")
	}
	if c.Jobs.InterZoneDelay < 0 {
		return fmt.Errorf("jobs.inter_zone_delay must be >= 0")
	}
	if c.Jobs.MaxResultsPerZone <= 0 {
		return fmt.Errorf("jobs.max_results_per_zone must be > 0")
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Local.BaseDir) == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of none, memory, local, gcs")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.RateLimit.EmailRPS < 0 {
		return fmt.Errorf("ratelimit.email_rps must be >= 0")
	}
	return nil
}

// UsePostgres reports whether zones and restaurants live in Postgres.
func (c Config) UsePostgres() bool {
	return strings.TrimSpace(c.Database.DSN) != ""
}
