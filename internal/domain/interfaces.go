package domain

import (
	"context"
)

// OntologyResolver maps an HPO identifier to its human-readable name.
// An unknown identifier resolves to an empty name and a nil error; errors are
// reserved for lookup failures (network, file, cache).
type OntologyResolver interface {
	ResolveName(ctx context.Context, hpoID string) (string, error)
}

// CohortRepository persists a processed cohort for downstream querying
type CohortRepository interface {
	SaveCohort(ctx context.Context, runID string, variants []VariantRow, patients []PatientAggregate) error
}

// RunStore records run reports and their rejections
type RunStore interface {
	SaveRun(ctx context.Context, report *RunReport) error
	GetRun(ctx context.Context, runID string) (*RunReport, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*RunReport, error)
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetPipelineConfig() *PipelineConfig
	GetOntologyConfig() *OntologyConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
}
