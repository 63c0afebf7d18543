package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// SQLiteStore implements domain.RunStore using a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite run store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		input_folder TEXT NOT NULL,
		output_folder TEXT NOT NULL,
		targets TEXT NOT NULL DEFAULT '',
		het_threshold REAL NOT NULL,
		normalization_mode TEXT NOT NULL,
		total_files INTEGER NOT NULL DEFAULT 0,
		valid_files INTEGER NOT NULL DEFAULT 0,
		variant_rows INTEGER NOT NULL DEFAULT 0,
		patients INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rejections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		record_id TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_rejections_run_id ON rejections(run_id);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveRun stores a run report, replacing any earlier report with the same id.
func (s *SQLiteStore) SaveRun(ctx context.Context, report *domain.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			input_folder = excluded.input_folder,
			output_folder = excluded.output_folder,
			targets = excluded.targets,
			het_threshold = excluded.het_threshold,
			normalization_mode = excluded.normalization_mode,
			total_files = excluded.total_files,
			valid_files = excluded.valid_files,
			variant_rows = excluded.variant_rows,
			patients = excluded.patients,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM rejections WHERE run_id = ?", report.RunID); err != nil {
		return fmt.Errorf("failed to clear rejections: %w", err)
	}

	for _, rejection := range report.Rejections {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO rejections (run_id, record_id, code, message) VALUES (?, ?, ?, ?)",
			report.RunID, rejection.RecordID, string(rejection.Code), rejection.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to save rejection: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run report with its rejections.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.RunReport, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)

	report, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, code, message FROM rejections WHERE run_id = ? ORDER BY id", runID)
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
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunReport, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// DeleteRun removes a run and its rejections.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rejections WHERE run_id = ?", runID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return err
	}
	return tx.Commit()
}

// ExportJSON exports all runs to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRejections(rows *sql.Rows) ([]domain.Rejection, error) {
	var result []domain.Rejection
	for rows.Next() {
		var rejection domain.Rejection
		var code string
		if err := rows.Scan(&rejection.RecordID, &code, &rejection.Message); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		rejection.Code = domain.ErrorCode(code)
		result = append(result, rejection)
	}
	return result, rows.Err()
}
