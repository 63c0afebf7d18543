// Package config loads pipeline configuration from a YAML file, MITO_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// MITO_PIPELINE_WORKERS or MITO_CACHE_REDIS_URL.
const EnvPrefix = "MITO"

// Manager implements domain.ConfigManager using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager loads config.yaml from the working directory, ./config or
// /etc/mitopipe when present.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile loads an explicit configuration file. An empty path
// falls back to the search paths of NewManager.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mitopipe/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || m.configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// DefaultDataDir is where the local run ledger lives unless configured
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".mitopipe"
	}
	return filepath.Join(homeDir, ".mitopipe")
}

func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.input_folder", "")
	v.SetDefault("pipeline.output_folder", "")
	v.SetDefault("pipeline.target_variants", "")
	v.SetDefault("pipeline.het_threshold", 0.0)
	v.SetDefault("pipeline.normalization_mode", "no")
	v.SetDefault("pipeline.workers", 8)
	v.SetDefault("pipeline.lookup_workers", 4)

	// Ontology defaults
	v.SetDefault("ontology.source", "api")
	v.SetDefault("ontology.base_url", "https://clinicaltables.nlm.nih.gov/api/hpo/v3/search")
	v.SetDefault("ontology.timeout", "15s")
	v.SetDefault("ontology.rate_limit", 5)
	v.SetDefault("ontology.retry_count", 2)

	// Cache defaults
	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.max_retries", 3)

	// Run store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(DefaultDataDir(), "runs.db"))
	v.SetDefault("store.postgres_url", "")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "mito_cohort")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetPipelineConfig returns pipeline configuration
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// GetOntologyConfig returns ontology configuration
func (m *Manager) GetOntologyConfig() *domain.OntologyConfig {
	return &m.config.Ontology
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

var validNormalizationModes = map[string]bool{
	"yes": true, "no": true, "blood": true, "urine": true,
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Pipeline.HetThreshold < 0 || config.Pipeline.HetThreshold > 100 {
		return fmt.Errorf("het_threshold must be within [0, 100], got %v", config.Pipeline.HetThreshold)
	}
	if !validNormalizationModes[strings.ToLower(config.Pipeline.NormalizationMode)] {
		return fmt.Errorf("invalid normalization mode: %s", config.Pipeline.NormalizationMode)
	}
	if config.Pipeline.Workers < 1 || config.Pipeline.LookupWorkers < 1 {
		return fmt.Errorf("worker counts must be positive")
	}

	if strings.TrimSpace(config.Ontology.Source) == "" {
		return fmt.Errorf("ontology source is required (\"api\" or a path to hp.json)")
	}
	if config.Cache.MaxItems < 1 {
		return fmt.Errorf("cache max_items must be positive")
	}

	switch config.Store.Driver {
	case "", "none":
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", config.Store.Driver)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if format := strings.ToLower(config.Logging.Format); format != "json" && format != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}
