// Package output writes the cohort artifacts: the variant table, the HPO
// table, the phenotype presence/absence matrix and the clinical summary.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// Artifact file names inside the output folder
const (
	VariantsFile        = "concatenate_variants.csv"
	HPOFile             = "concatenate_HPO.csv"
	PresenceAbsenceFile = "presence_absence_hpos.csv"
	ClinicalSummaryFile = "resume_clinical_table.csv"
	LogFile             = "process.log"
)

var hpoHeader = []string{"patient_id", "HPO_terms", "HPO_name"}

// Writer writes artifacts into one folder
type Writer struct {
	folder string
}

// NewWriter creates a writer for folder, creating it when missing
func NewWriter(folder string) (*Writer, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("creating output folder: %w", err)
	}
	return &Writer{folder: folder}, nil
}

// Path returns the full path of an artifact
func (w *Writer) Path(name string) string {
	return filepath.Join(w.folder, name)
}

// WriteVariants writes one ';'-separated line per variant row. Rows without
// hallmark columns are padded so every line matches the header.
func (w *Writer) WriteVariants(rows []domain.VariantRow) error {
	header := append(append([]string{}, domain.VariantColumns...), domain.PatientColumns...)

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, pad(row.Fields(), len(header)))
	}

	return w.write(VariantsFile, ';', header, records)
}

// WriteHPO writes one line per patient and term
func (w *Writer) WriteHPO(annotations []domain.HPOAnnotation) error {
	records := make([][]string, 0, len(annotations))
	for _, ann := range annotations {
		records = append(records, []string{ann.PatientID, ann.TermID, ann.Name})
	}

	return w.write(HPOFile, ';', hpoHeader, records)
}

// WritePresenceAbsence writes the phenotype matrix with 0/1 cells
func (w *Writer) WritePresenceAbsence(matrix domain.PhenotypeMatrix) error {
	header := append([]string{"patient_id"}, matrix.Symptoms...)

	records := make([][]string, 0, len(matrix.Patients))
	for i, patientID := range matrix.Patients {
		record := make([]string, 0, len(header))
		record = append(record, patientID)
		for _, cell := range matrix.Cells[i] {
			record = append(record, strconv.Itoa(cell))
		}
		records = append(records, record)
	}

	return w.write(PresenceAbsenceFile, ';', header, records)
}

// WriteClinicalSummary writes the tab-separated one-row-per-patient table,
// sorted by patient id.
func (w *Writer) WriteClinicalSummary(aggregates map[string]domain.PatientAggregate) error {
	ids := make([]string, 0, len(aggregates))
	for id := range aggregates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([][]string, 0, len(ids))
	for _, id := range ids {
		records = append(records, pad(aggregates[id].Fields, len(domain.PatientColumns)))
	}

	return w.write(ClinicalSummaryFile, '\t', domain.PatientColumns, records)
}

func (w *Writer) write(name string, comma rune, header []string, records [][]string) error {
	path := w.Path(name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Comma = comma

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return file.Close()
}

func pad(fields []string, width int) []string {
	for len(fields) < width {
		fields = append(fields, "")
	}
	return fields
}
