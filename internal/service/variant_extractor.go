package service

import (
	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// VariantExtractor turns a validated record into variant rows carrying the
// patient metadata block.
type VariantExtractor struct {
	loader     *RecordLoader
	normalizer *TissueNormalizer
	logger     *logrus.Logger
}

// NewVariantExtractor creates a new variant extractor
func NewVariantExtractor(loader *RecordLoader, normalizer *TissueNormalizer, logger *logrus.Logger) *VariantExtractor {
	return &VariantExtractor{
		loader:     loader,
		normalizer: normalizer,
		logger:     logger,
	}
}

// ExtractFile loads a record file and extracts its rows. A file that cannot
// be loaded is logged and yields no rows.
func (e *VariantExtractor) ExtractFile(path string, hetThreshold float64, targets []string, mode domain.NormalizationMode) []domain.VariantRow {
	record, err := e.loader.Load(path)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"path":  path,
			"code":  domain.CodeOf(err),
			"error": err.Error(),
		}).Error("Failed to load record for extraction")
		return nil
	}

	return e.Extract(record, hetThreshold, targets, mode)
}

// Extract keeps the catalog entries whose heteroplasmy strictly exceeds
// hetThreshold. When the hallmark variant is targeted and kept, every row of
// the record carries its raw and normalized values.
func (e *VariantExtractor) Extract(record *domain.PatientRecord, hetThreshold float64, targets []string, mode domain.NormalizationMode) []domain.VariantRow {
	rows, _ := e.extract(record, hetThreshold, targets, mode)
	return rows
}

// PatientRowFor returns the metadata block Extract would attach to the
// record's rows, also when no variant passes the threshold.
func (e *VariantExtractor) PatientRowFor(record *domain.PatientRecord, hetThreshold float64, targets []string, mode domain.NormalizationMode) domain.PatientRow {
	_, patient := e.extract(record, hetThreshold, targets, mode)
	return patient
}

func (e *VariantExtractor) extract(record *domain.PatientRecord, hetThreshold float64, targets []string, mode domain.NormalizationMode) ([]domain.VariantRow, domain.PatientRow) {
	patient, nc := e.patientContext(record)
	wantHallmark := containsLabel(targets, domain.HallmarkVariant)

	var kept []domain.VariantCall
	for _, call := range record.Catalog {
		het, err := call.Heteroplasmy()
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"record_id": record.RecordID,
				"pos":       call.Pos.String(),
			}).Warn("Skipping variant with unparseable heteroplasmy")
			continue
		}
		if het <= hetThreshold {
			continue
		}
		kept = append(kept, call)

		if !wantHallmark || patient.M3243 != nil {
			continue
		}
		if label, err := call.Label(); err != nil || label != domain.HallmarkVariant {
			continue
		}
		patient.M3243 = &domain.M3243Measurement{
			Raw:        het,
			Normalized: e.normalizer.NormalizePercent(het, nc, mode),
		}
	}

	rows := make([]domain.VariantRow, 0, len(kept))
	for _, call := range kept {
		rows = append(rows, domain.VariantRow{
			RecordID: record.RecordID,
			Call:     call,
			Patient:  patient,
		})
	}

	e.logger.WithFields(logrus.Fields{
		"record_id": record.RecordID,
		"catalog":   len(record.Catalog),
		"kept":      len(rows),
		"hallmark":  patient.M3243 != nil,
	}).Debug("Extracted variants")

	return rows, patient
}

func (e *VariantExtractor) patientContext(record *domain.PatientRecord) (domain.PatientRow, domain.NormalizationContext) {
	var patient domain.PatientRow
	var age int
	if record.Clinical != nil {
		patient.PatientID = record.Clinical.PatientID
		patient.Sex = record.Clinical.Sex
		patient.AgeOfOnset = record.Clinical.AgeOfOnset.String()
	}
	if record.Sample != nil {
		patient.AgeAtSampling = record.Sample.AgeAtSampling.String()
		patient.Tissue = e.normalizer.Canonicalize(record.Sample.Tissue)
		patient.Type = record.Sample.Type
		patient.Haplogroup = record.Sample.Haplogroup

		// Checked by the validator; a parse failure leaves the age at zero.
		age, _ = record.Sample.AgeAtSampling.Int()
	}

	return patient, domain.NormalizationContext{
		Sex:           patient.Sex,
		AgeAtSampling: age,
		Tissue:        patient.Tissue,
	}
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
