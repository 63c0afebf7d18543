package domain

import (
	"strconv"
)

// M3243Measurement is the hallmark heteroplasmy of a record, raw and
// tissue-normalized, both on the 0-100 scale.
type M3243Measurement struct {
	Raw        float64 `json:"m3243_het"`
	Normalized float64 `json:"m3243_het_normalized"`
}

// PatientRow is the patient/sample metadata block attached to every variant
// row of a record. M3243 is nil unless the hallmark variant was requested
// and retained for the record.
type PatientRow struct {
	PatientID     string            `json:"patient_id"`
	Sex           string            `json:"sex"`
	AgeOfOnset    string            `json:"age_of_onset"`
	AgeAtSampling string            `json:"age_at_sampling"`
	Tissue        Tissue            `json:"tissue"`
	Type          string            `json:"type"`
	Haplogroup    string            `json:"haplogroup"`
	M3243         *M3243Measurement `json:"m3243,omitempty"`
}

// PatientColumns is the header of the metadata block, hallmark columns included.
var PatientColumns = []string{
	"patient_id", "sex", "age_of_onset", "age_at_sampling", "tissue", "type", "haplogroup",
	"m3243_het", "m3243_het_normalized",
}

// VariantColumns is the header of the variant-specific block.
var VariantColumns = []string{"chr", "pos", "ref", "alt", "heteroplasmy_rate"}

// Fields returns the metadata block in column order. The two hallmark
// columns are present only when M3243 is set.
func (p PatientRow) Fields() []string {
	fields := []string{
		p.PatientID,
		p.Sex,
		p.AgeOfOnset,
		p.AgeAtSampling,
		string(p.Tissue),
		p.Type,
		p.Haplogroup,
	}
	if p.M3243 != nil {
		fields = append(fields, FormatPercent(p.M3243.Raw), FormatPercent(p.M3243.Normalized))
	}
	return fields
}

// VariantRow is one retained catalog entry joined with its record metadata.
type VariantRow struct {
	RecordID string      `json:"record_id"`
	Call     VariantCall `json:"call"`
	Patient  PatientRow  `json:"patient"`
}

// Fields returns the variant columns followed by the metadata block.
func (r VariantRow) Fields() []string {
	fields := []string{
		r.Call.Chr,
		r.Call.Pos.String(),
		r.Call.Ref,
		r.Call.Alt,
		r.Call.HeteroplasmyRate.String(),
	}
	return append(fields, r.Patient.Fields()...)
}

// PatientAggregate is the reconciled one-row-per-patient view.
type PatientAggregate struct {
	PatientID string   `json:"patient_id"`
	Fields    []string `json:"fields"`
	RecordIDs []string `json:"record_ids"`
}

// HPOAnnotation is one phenotype term of a patient with its resolved name.
// Name is empty when the term could not be resolved.
type HPOAnnotation struct {
	PatientID string `json:"patient_id"`
	TermID    string `json:"hpo_term"`
	Name      string `json:"hpo_name"`
}

// FormatPercent renders a percentage without trailing zeros.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PhenotypeMatrix is the patient by symptom presence/absence table. Cells[i][j]
// is 1 when Patients[i] carries Symptoms[j].
type PhenotypeMatrix struct {
	Symptoms []string `json:"symptoms"`
	Patients []string `json:"patients"`
	Cells    [][]int  `json:"cells"`
}
