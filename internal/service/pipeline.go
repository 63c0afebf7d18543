package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/output"
)

// Options are the parameters of one pipeline run
type Options struct {
	InputFolder  string
	OutputFolder string
	Targets      []string
	HetThreshold float64
	Mode         domain.NormalizationMode
}

// Pipeline sequences validation, HPO lookup, variant extraction,
// reconciliation and output for a folder of patient records.
type Pipeline struct {
	resolver      domain.OntologyResolver
	runStore      domain.RunStore
	cohorts       domain.CohortRepository
	workers       int
	lookupWorkers int
	logger        *logrus.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(resolver domain.OntologyResolver, cfg domain.PipelineConfig, logger *logrus.Logger) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Pipeline{
		resolver:      resolver,
		workers:       workers,
		lookupWorkers: cfg.LookupWorkers,
		logger:        logger,
	}
}

// WithRunStore records every run report in store
func (p *Pipeline) WithRunStore(store domain.RunStore) *Pipeline {
	p.runStore = store
	return p
}

// WithCohortRepository persists every processed cohort in repo
func (p *Pipeline) WithCohortRepository(repo domain.CohortRepository) *Pipeline {
	p.cohorts = repo
	return p
}

type extraction struct {
	rows    []domain.VariantRow
	patient domain.PatientRow
}

// Run processes every *.json record of the input folder. Per-record failures
// are logged and reported as rejections; an error is returned only when the
// folders cannot be used, an artifact cannot be written or ctx is done.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:             uuid.NewString(),
		InputFolder:       opts.InputFolder,
		OutputFolder:      opts.OutputFolder,
		Targets:           opts.Targets,
		HetThreshold:      opts.HetThreshold,
		NormalizationMode: opts.Mode,
		StartedAt:         time.Now().UTC(),
	}

	writer, err := output.NewWriter(opts.OutputFolder)
	if err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(writer.Path(output.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening process log: %w", err)
	}
	defer logFile.Close()

	log := p.runLogger(logFile)
	log.WithFields(logrus.Fields{
		"run_id":        report.RunID,
		"input_folder":  opts.InputFolder,
		"targets":       opts.Targets,
		"het_threshold": opts.HetThreshold,
		"normalization": opts.Mode,
	}).Info("Starting pipeline")

	files, err := ListRecordFiles(opts.InputFolder)
	if err != nil {
		log.WithError(err).Error("Input folder is not readable")
		return nil, err
	}
	report.TotalFiles = len(files)

	valid := p.validateAll(log, files, opts, report)
	report.ValidFiles = len(valid)
	log.WithFields(logrus.Fields{
		"valid_files": report.ValidFiles,
		"total_files": report.TotalFiles,
	}).Info("Verification finished")

	annotations, err := NewHPOAggregator(p.resolver, p.lookupWorkers, log).Annotate(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("resolving HPO terms: %w", err)
	}

	results, err := p.extractAll(ctx, log, valid, opts)
	if err != nil {
		return nil, fmt.Errorf("extracting variants: %w", err)
	}

	var variants []domain.VariantRow
	patientRows := make(map[string]domain.PatientRow, len(valid))
	for i, record := range valid {
		variants = append(variants, results[i].rows...)
		patientRows[record.RecordID] = results[i].patient
	}
	report.VariantRows = len(variants)

	aggregates, reconcileErrs := NewPatientReconciler(log).Reconcile(patientRows)
	for _, rerr := range reconcileErrs {
		report.Rejections = append(report.Rejections, domain.RejectionFromError("", rerr))
	}
	report.Patients = len(aggregates)

	if err := p.writeArtifacts(writer, variants, PatientIDs(valid), annotations, aggregates); err != nil {
		log.WithError(err).Error("Failed to write artifacts")
		return nil, err
	}

	report.FinishedAt = time.Now().UTC()
	log.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"variant_rows": report.VariantRows,
		"patients":     report.Patients,
		"rejections":   len(report.Rejections),
		"duration":     report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Pipeline finished")

	p.persist(ctx, log, report, variants, aggregates)

	return report, nil
}

func (p *Pipeline) validateAll(log *logrus.Logger, files []string, opts Options, report *domain.RunReport) []*domain.PatientRecord {
	loader := NewRecordLoader(log)
	validator := NewRecordValidator(log)

	var valid []*domain.PatientRecord
	for _, path := range files {
		recordID := filepath.Base(path)

		record, err := loader.Load(path)
		if err != nil {
			log.WithFields(logrus.Fields{
				"record_id": recordID,
				"code":      domain.CodeOf(err),
			}).Error(err.Error())
			report.Rejections = append(report.Rejections, domain.RejectionFromError(recordID, err))
			continue
		}

		result := validator.Validate(record, opts.Targets, opts.HetThreshold)
		if !result.Valid() {
			for _, verr := range result.Errors {
				report.Rejections = append(report.Rejections, domain.RejectionFromError(recordID, verr))
			}
			log.WithField("record_id", recordID).Error("File failed verification")
			continue
		}

		log.WithField("record_id", recordID).Info("File passed verification")
		valid = append(valid, record)
	}

	return valid
}

// extractAll runs one task per record; task i owns results[i]
func (p *Pipeline) extractAll(ctx context.Context, log *logrus.Logger, records []*domain.PatientRecord, opts Options) ([]extraction, error) {
	extractor := NewVariantExtractor(NewRecordLoader(log), NewTissueNormalizer(log), log)
	results := make([]extraction, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, patient := extractor.extract(record, opts.HetThreshold, opts.Targets, opts.Mode)
			results[i] = extraction{rows: rows, patient: patient}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) writeArtifacts(writer *output.Writer, variants []domain.VariantRow, patients []string, annotations []domain.HPOAnnotation, aggregates map[string]domain.PatientAggregate) error {
	if err := writer.WriteHPO(annotations); err != nil {
		return err
	}
	if err := writer.WritePresenceAbsence(BuildPhenotypeMatrix(patients, annotations)); err != nil {
		return err
	}
	if err := writer.WriteVariants(variants); err != nil {
		return err
	}
	return writer.WriteClinicalSummary(aggregates)
}

// persist stores the report and cohort. Failures are logged; the artifacts
// on disk are the primary result of a run.
func (p *Pipeline) persist(ctx context.Context, log *logrus.Logger, report *domain.RunReport, variants []domain.VariantRow, aggregates map[string]domain.PatientAggregate) {
	if p.runStore != nil {
		if err := p.runStore.SaveRun(ctx, report); err != nil {
			log.WithError(err).WithField("run_id", report.RunID).Warn("Failed to record run report")
		}
	}

	if p.cohorts != nil {
		patients := make([]domain.PatientAggregate, 0, len(aggregates))
		for _, agg := range aggregates {
			patients = append(patients, agg)
		}
		sort.Slice(patients, func(i, j int) bool { return patients[i].PatientID < patients[j].PatientID })

		if err := p.cohorts.SaveCohort(ctx, report.RunID, variants, patients); err != nil {
			log.WithError(err).WithField("run_id", report.RunID).Warn("Failed to persist cohort")
		}
	}
}

// runLogger mirrors the pipeline logger into the run's process.log, which
// always receives at least info-level entries.
func (p *Pipeline) runLogger(logFile io.Writer) *logrus.Logger {
	level := p.logger.GetLevel()
	if level < logrus.InfoLevel {
		level = logrus.InfoLevel
	}

	log := logrus.New()
	log.SetFormatter(p.logger.Formatter)
	log.SetLevel(level)
	log.SetOutput(io.MultiWriter(p.logger.Out, logFile))
	return log
}
