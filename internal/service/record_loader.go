package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// RecordLoader reads patient record files into typed records
type RecordLoader struct {
	logger *logrus.Logger
}

// NewRecordLoader creates a new record loader
func NewRecordLoader(logger *logrus.Logger) *RecordLoader {
	return &RecordLoader{logger: logger}
}

// Load reads and decodes one record file. The record id is the file name.
func (l *RecordLoader) Load(path string) (*domain.PatientRecord, error) {
	recordID := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.RecordError{
			Code:     domain.ErrCodeMalformedInput,
			RecordID: recordID,
			Message:  "cannot read record file",
			Err:      err,
		}
	}

	return l.Decode(recordID, data)
}

// Decode parses a record from raw JSON. The Clinical, Sample and Catalog
// sections are required; a missing Ontology section is tolerated and reported
// by the validator.
func (l *RecordLoader) Decode(recordID string, data []byte) (*domain.PatientRecord, error) {
	var record domain.PatientRecord
	if err := json.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &record); err != nil {
		return nil, &domain.RecordError{
			Code:     domain.ErrCodeMalformedInput,
			RecordID: recordID,
			Message:  fmt.Sprintf("invalid JSON: %v", err),
			Err:      err,
		}
	}
	record.RecordID = recordID

	var missing []string
	if record.Clinical == nil {
		missing = append(missing, "Clinical")
	}
	if record.Sample == nil {
		missing = append(missing, "Sample")
	}
	if record.Catalog == nil {
		missing = append(missing, "Catalog")
	}
	if len(missing) > 0 {
		return nil, domain.NewRecordError(domain.ErrCodeMalformedInput, recordID, "",
			"missing required sections: "+strings.Join(missing, ", "), nil)
	}

	l.logger.WithFields(logrus.Fields{
		"record_id":  recordID,
		"patient_id": record.PatientID(),
		"variants":   len(record.Catalog),
	}).Debug("Loaded patient record")

	return &record, nil
}

// ListRecordFiles returns the *.json files of a folder in lexical order
func ListRecordFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading input folder: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(folder, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}
