package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

var variantCopyColumns = []string{
	"run_id", "record_id", "patient_id", "chr", "pos", "ref", "alt", "label", "heteroplasmy",
}

// CohortRepository stores processed cohorts in the Postgres warehouse
type CohortRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCohortRepository creates a new cohort repository
func NewCohortRepository(db *pgxpool.Pool, logger *logrus.Logger) *CohortRepository {
	return &CohortRepository{
		db:  db,
		log: logger,
	}
}

// CarrierSummary is a retained variant of one patient
type CarrierSummary struct {
	PatientID    string  `json:"patient_id"`
	RecordID     string  `json:"record_id"`
	Heteroplasmy float64 `json:"heteroplasmy"`
}

// SaveCohort replaces everything stored for runID with the given rows.
func (r *CohortRepository) SaveCohort(ctx context.Context, runID string, variants []domain.VariantRow, patients []domain.PatientAggregate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning cohort transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM cohort_variants WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("clearing cohort variants: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM cohort_patients WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("clearing cohort patients: %w", err)
	}

	batch := &pgx.Batch{}
	for _, patient := range patients {
		batch.Queue(
			"INSERT INTO cohort_patients (run_id, patient_id, fields, record_ids) VALUES ($1, $2, $3, $4)",
			runID, patient.PatientID, patient.Fields, patient.RecordIDs,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting cohort patients: %w", err)
	}

	rows := make([][]interface{}, 0, len(variants))
	for _, variant := range variants {
		row, err := variantCopyRow(runID, variant)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"run_id":    runID,
				"record_id": variant.RecordID,
				"error":     err,
			}).Warn("Skipping variant that cannot be stored")
			continue
		}
		rows = append(rows, row)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"cohort_variants"}, variantCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying cohort variants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing cohort: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"patients": len(patients),
		"variants": copied,
	}).Info("Cohort stored")

	return nil
}

func variantCopyRow(runID string, variant domain.VariantRow) ([]interface{}, error) {
	pos, err := variant.Call.Pos.Int()
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	het, err := variant.Call.Heteroplasmy()
	if err != nil {
		return nil, err
	}
	label, err := variant.Call.Label()
	if err != nil {
		return nil, err
	}

	return []interface{}{
		runID,
		variant.RecordID,
		variant.Patient.PatientID,
		variant.Call.Chr,
		pos,
		variant.Call.Ref,
		variant.Call.Alt,
		label,
		het,
	}, nil
}

// GetPatients returns the reconciled patients of a run ordered by patient id
func (r *CohortRepository) GetPatients(ctx context.Context, runID string) ([]domain.PatientAggregate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT patient_id, fields, record_ids
		FROM cohort_patients
		WHERE run_id = $1
		ORDER BY patient_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying cohort patients: %w", err)
	}
	defer rows.Close()

	var patients []domain.PatientAggregate
	for rows.Next() {
		var patient domain.PatientAggregate
		if err := rows.Scan(&patient.PatientID, &patient.Fields, &patient.RecordIDs); err != nil {
			return nil, fmt.Errorf("scanning cohort patient: %w", err)
		}
		patients = append(patients, patient)
	}

	return patients, rows.Err()
}

// CarriersOf lists the patients of a run carrying a variant label, highest
// heteroplasmy first
func (r *CohortRepository) CarriersOf(ctx context.Context, runID, label string) ([]CarrierSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT patient_id, record_id, heteroplasmy
		FROM cohort_variants
		WHERE run_id = $1 AND label = $2
		ORDER BY heteroplasmy DESC, patient_id`, runID, label)
	if err != nil {
		return nil, fmt.Errorf("querying carriers: %w", err)
	}
	defer rows.Close()

	var carriers []CarrierSummary
	for rows.Next() {
		var carrier CarrierSummary
		if err := rows.Scan(&carrier.PatientID, &carrier.RecordID, &carrier.Heteroplasmy); err != nil {
			return nil, fmt.Errorf("scanning carrier: %w", err)
		}
		carriers = append(carriers, carrier)
	}

	return carriers, rows.Err()
}

// DeleteRun removes a stored cohort
func (r *CohortRepository) DeleteRun(ctx context.Context, runID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM cohort_variants WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("deleting cohort variants: %w", err)
	}
	result, err := tx.Exec(ctx, "DELETE FROM cohort_patients WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("deleting cohort patients: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("cohort %s: %w", runID, domain.ErrNotFound)
	}

	return tx.Commit(ctx)
}
