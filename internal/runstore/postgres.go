package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// PostgresStore implements domain.RunStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL run store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL run store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// SaveRun upserts a run report and replaces its rejections.
func (s *PostgresStore) SaveRun(ctx context.Context, report *domain.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			input_folder = EXCLUDED.input_folder,
			output_folder = EXCLUDED.output_folder,
			targets = EXCLUDED.targets,
			het_threshold = EXCLUDED.het_threshold,
			normalization_mode = EXCLUDED.normalization_mode,
			total_files = EXCLUDED.total_files,
			valid_files = EXCLUDED.valid_files,
			variant_rows = EXCLUDED.variant_rows,
			patients = EXCLUDED.patients,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = tx.ExecContext(ctx, query,
		report.RunID,
		report.InputFolder,
		report.OutputFolder,
		joinTargets(report.Targets),
		report.HetThreshold,
		string(report.NormalizationMode),
		report.TotalFiles,
		report.ValidFiles,
		report.VariantRows,
		report.Patients,
		report.StartedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM rejections WHERE run_id = $1", report.RunID); err != nil {
		return fmt.Errorf("failed to clear rejections: %w", err)
	}

	for _, rejection := range report.Rejections {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO rejections (run_id, record_id, code, message) VALUES ($1, $2, $3, $4)",
			report.RunID, rejection.RecordID, string(rejection.Code), rejection.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to save rejection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run report with its rejections.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*domain.RunReport, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = $1", runID)

	report, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, code, message FROM rejections WHERE run_id = $1 ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer rows.Close()

	report.Rejections, err = scanRejections(rows)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListRuns returns run summaries, newest first. Rejections are not loaded.
func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunReport, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunReport
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, report)
	}

	return result, rows.Err()
}

// Count returns the number of recorded runs.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// DeleteRun removes a run and its rejections.
func (s *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// ExportJSON exports all runs to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
