package service

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/pkg/mito"
)

// ValidationResult is the outcome of validating one record
type ValidationResult struct {
	RecordID string   `json:"record_id"`
	Errors   []error  `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

// Valid reports whether the record passed every check
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Codes returns the error codes in the order they were raised
func (r *ValidationResult) Codes() []domain.ErrorCode {
	codes := make([]domain.ErrorCode, 0, len(r.Errors))
	for _, err := range r.Errors {
		codes = append(codes, domain.CodeOf(err))
	}
	return codes
}

// Messages returns the error strings in the order they were raised
func (r *ValidationResult) Messages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		messages = append(messages, err.Error())
	}
	return messages
}

// RecordValidator checks the structural and biological validity of a record
type RecordValidator struct {
	logger *logrus.Logger
}

// NewRecordValidator creates a new record validator
func NewRecordValidator(logger *logrus.Logger) *RecordValidator {
	return &RecordValidator{logger: logger}
}

// Validate runs the clinical, sample, variant, ontology and target checks.
// Clinical and sample failures are collected together; the first invalid
// catalog entry ends validation. Target labels must be canonical (see
// mito.ParseTargets). An empty target list imposes no requirement.
func (v *RecordValidator) Validate(record *domain.PatientRecord, targets []string, hetThreshold float64) *ValidationResult {
	result := &ValidationResult{RecordID: record.RecordID}

	v.validateClinical(record, result)
	v.validateSample(record, result)

	labels, ok := v.validateCatalog(record, result)
	if !ok {
		v.logResult(result)
		return result
	}

	if !record.HasPhenotypes() {
		result.Warnings = append(result.Warnings, "no HPO terms annotated")
	}

	v.validateTargets(record, labels, targets, hetThreshold, result)

	if len(record.Catalog) == 1 && labels[0] == domain.HallmarkVariant {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is the only variant in the catalog", domain.HallmarkVariant))
	}

	v.logResult(result)
	return result
}

func (v *RecordValidator) validateClinical(record *domain.PatientRecord, result *ValidationResult) {
	if record.Clinical == nil {
		result.Errors = append(result.Errors, domain.NewRecordError(
			domain.ErrCodeInvalidClinicalField, record.RecordID, "Clinical", "section is missing", nil))
		return
	}

	if !domain.IsValidSex(record.Clinical.Sex) {
		result.Errors = append(result.Errors, domain.NewRecordError(
			domain.ErrCodeInvalidClinicalField, record.RecordID, "sex",
			"must be one of M, F or empty", record.Clinical.Sex))
	}
}

func (v *RecordValidator) validateSample(record *domain.PatientRecord, result *ValidationResult) {
	if record.Sample == nil {
		result.Errors = append(result.Errors, domain.NewRecordError(
			domain.ErrCodeInvalidSampleField, record.RecordID, "Sample", "section is missing", nil))
		return
	}

	if _, err := record.Sample.AgeAtSampling.Int(); err != nil {
		result.Errors = append(result.Errors, &domain.RecordError{
			Code:     domain.ErrCodeInvalidSampleField,
			RecordID: record.RecordID,
			Field:    "age_at_sampling",
			Message:  "must be an integer",
			Value:    record.Sample.AgeAtSampling.String(),
			Err:      err,
		})
	}
}

// validateCatalog returns the label of every entry when all entries are valid
func (v *RecordValidator) validateCatalog(record *domain.PatientRecord, result *ValidationResult) ([]string, bool) {
	labels := make([]string, 0, len(record.Catalog))

	for i, call := range record.Catalog {
		field, message, value := checkVariantCall(call)
		if field != "" {
			result.Errors = append(result.Errors, domain.NewRecordError(
				domain.ErrCodeInvalidVariantData, record.RecordID,
				fmt.Sprintf("Catalog[%d].%s", i, field), message, value))
			return nil, false
		}

		label, _ := call.Label()
		labels = append(labels, label)
	}

	return labels, true
}

func checkVariantCall(call domain.VariantCall) (field, message string, value interface{}) {
	if _, err := call.Pos.Int(); err != nil {
		return "pos", "must be an integer", call.Pos.String()
	}
	if !mito.ValidAllele(call.Ref) {
		return "ref", "must use only A, T, C, G or N", call.Ref
	}
	if !mito.ValidAllele(call.Alt) {
		return "alt", "must use only A, T, C, G or N", call.Alt
	}
	if _, err := call.Heteroplasmy(); err != nil {
		return "heteroplasmy_rate", "must be a non-empty number", call.HeteroplasmyRate.String()
	}
	return "", "", nil
}

func (v *RecordValidator) validateTargets(record *domain.PatientRecord, labels, targets []string, hetThreshold float64, result *ValidationResult) {
	for _, target := range targets {
		found := false
		for i, label := range labels {
			if label != target {
				continue
			}
			found = true

			// every entry carrying the label must reach the threshold
			het, _ := record.Catalog[i].Heteroplasmy()
			if het < hetThreshold {
				result.Errors = append(result.Errors, domain.NewRecordError(
					domain.ErrCodeBelowThreshold, record.RecordID, target,
					fmt.Sprintf("heteroplasmy %g is below threshold %g", het, hetThreshold), het))
				break
			}
		}

		if !found {
			result.Errors = append(result.Errors, domain.NewRecordError(
				domain.ErrCodeTargetVariantNotFound, record.RecordID, target,
				"target variant not present in catalog", nil))
		}
	}
}

func (v *RecordValidator) logResult(result *ValidationResult) {
	for _, warning := range result.Warnings {
		v.logger.WithField("record_id", result.RecordID).Warn(warning)
	}

	for _, err := range result.Errors {
		fields := logrus.Fields{
			"record_id": result.RecordID,
			"code":      domain.CodeOf(err),
		}
		var re *domain.RecordError
		if errors.As(err, &re) && re.Field != "" {
			fields["field"] = re.Field
		}
		v.logger.WithFields(fields).Warn(err.Error())
	}
}
