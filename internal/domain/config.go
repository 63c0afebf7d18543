package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Ontology OntologyConfig `mapstructure:"ontology"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig holds the run parameters. The CLI positionals override
// the folder, target, threshold and normalization values.
type PipelineConfig struct {
	InputFolder       string  `mapstructure:"input_folder"`
	OutputFolder      string  `mapstructure:"output_folder"`
	TargetVariants    string  `mapstructure:"target_variants"` // comma-separated labels, e.g. "A3243G,A73G"
	HetThreshold      float64 `mapstructure:"het_threshold"`
	NormalizationMode string  `mapstructure:"normalization_mode"`
	Workers           int     `mapstructure:"workers"`
	LookupWorkers     int     `mapstructure:"lookup_workers"`
}

// OntologyConfig selects and tunes the HPO name resolver
type OntologyConfig struct {
	Source     string        `mapstructure:"source"` // path to hp.json, or "api"
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents HPO name cache configuration
type CacheConfig struct {
	MaxItems    int           `mapstructure:"max_items"`
	TTL         time.Duration `mapstructure:"ttl"`
	RedisURL    string        `mapstructure:"redis_url"` // empty disables the shared tier
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// StoreConfig selects where run reports and rejections are recorded
type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite", "postgres" or "none"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// DatabaseConfig represents the optional cohort warehouse connection
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
