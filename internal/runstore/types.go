// Package runstore records pipeline run reports and their rejections so that
// past runs can be listed, inspected and exported.
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// maxExportLimit is the maximum number of runs to export at once.
const maxExportLimit = 1000000

// RunExport represents the JSON export format.
type RunExport struct {
	Version    string              `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Count      int                 `json:"count"`
	Runs       []*domain.RunReport `json:"runs"`
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const runColumns = `run_id, input_folder, output_folder, targets, het_threshold,
	normalization_mode, total_files, valid_files, variant_rows, patients,
	started_at, finished_at`

func scanRun(s scanner) (*domain.RunReport, error) {
	report := &domain.RunReport{}
	var targets, mode string

	err := s.Scan(
		&report.RunID, &report.InputFolder, &report.OutputFolder, &targets, &report.HetThreshold,
		&mode, &report.TotalFiles, &report.ValidFiles, &report.VariantRows, &report.Patients,
		&report.StartedAt, &report.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Targets = splitTargets(targets)
	report.NormalizationMode = domain.NormalizationMode(mode)
	return report, nil
}

func joinTargets(targets []string) string {
	return strings.Join(targets, ",")
}

func splitTargets(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}

type runLister interface {
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunReport, error)
	GetRun(ctx context.Context, runID string) (*domain.RunReport, error)
}

// exportJSON writes every run, rejections included, as an indented document.
func exportJSON(ctx context.Context, store runLister, writer io.Writer) error {
	summaries, err := store.ListRuns(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.RunReport, 0, len(summaries))
	for _, summary := range summaries {
		full, err := store.GetRun(ctx, summary.RunID)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", summary.RunID, err)
		}
		runs = append(runs, full)
	}

	export := &RunExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(runs),
		Runs:       runs,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
