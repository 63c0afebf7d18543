package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, "no", cfg.Pipeline.NormalizationMode)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 4, cfg.Pipeline.LookupWorkers)
	assert.Equal(t, "api", m.GetOntologyConfig().Source)
	assert.Equal(t, 15*time.Second, cfg.Ontology.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "runs.db", filepath.Base(cfg.Store.SQLitePath))
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 8080, m.GetServerConfig().Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Empty(t, m.ConfigFileUsed())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MITO_PIPELINE_WORKERS", "3")
	t.Setenv("MITO_PIPELINE_HET_THRESHOLD", "2.5")
	t.Setenv("MITO_ONTOLOGY_SOURCE", "/data/hp.json")
	t.Setenv("MITO_CACHE_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MITO_STORE_DRIVER", "none")

	m, err := NewManager()
	require.NoError(t, err)

	pipeline := m.GetPipelineConfig()
	assert.Equal(t, 3, pipeline.Workers)
	assert.Equal(t, 2.5, pipeline.HetThreshold)
	assert.Equal(t, "/data/hp.json", m.GetOntologyConfig().Source)
	assert.Equal(t, "redis://cache:6379/1", m.GetConfig().Cache.RedisURL)
	assert.Equal(t, "none", m.GetConfig().Store.Driver)
}

func TestNewManagerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mito.yaml")
	content := `
pipeline:
  target_variants: "A3243G,A73G"
  normalization_mode: "blood"
ontology:
  source: "hp.json"
database:
  enabled: true
  host: "warehouse"
  database: "cohorts"
logging:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, "A3243G,A73G", cfg.Pipeline.TargetVariants)
	assert.Equal(t, "blood", cfg.Pipeline.NormalizationMode)
	assert.Equal(t, "hp.json", cfg.Ontology.Source)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, path, m.ConfigFileUsed())
	assert.Equal(t,
		"host=warehouse port=5432 user=postgres password= dbname=cohorts sslmode=disable",
		m.GetDatabaseConnectionString())
}

func TestNewManagerFromFile_Missing(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manager)
	}{
		{"threshold above 100", func(m *Manager) { m.config.Pipeline.HetThreshold = 101 }},
		{"negative threshold", func(m *Manager) { m.config.Pipeline.HetThreshold = -1 }},
		{"unknown normalization", func(m *Manager) { m.config.Pipeline.NormalizationMode = "saliva" }},
		{"zero workers", func(m *Manager) { m.config.Pipeline.Workers = 0 }},
		{"empty ontology source", func(m *Manager) { m.config.Ontology.Source = " " }},
		{"unknown store driver", func(m *Manager) { m.config.Store.Driver = "mongo" }},
		{"postgres store without url", func(m *Manager) { m.config.Store.Driver = "postgres" }},
		{"database without host", func(m *Manager) {
			m.config.Database.Enabled = true
			m.config.Database.Host = ""
		}},
		{"bad port", func(m *Manager) { m.config.Server.Port = 70000 }},
		{"bad log level", func(m *Manager) { m.config.Logging.Level = "verbose" }},
		{"bad log format", func(m *Manager) { m.config.Logging.Format = "xml" }},
	}

	t.Chdir(t.TempDir())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager()
			require.NoError(t, err)
			require.NoError(t, m.Validate())

			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestManager_Reload(t *testing.T) {
	t.Chdir(t.TempDir())

	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, 8, m.GetPipelineConfig().Workers)

	t.Setenv("MITO_PIPELINE_WORKERS", "16")
	require.NoError(t, m.Reload())
	assert.Equal(t, 16, m.GetPipelineConfig().Workers)
}
