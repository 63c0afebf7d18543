package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/mito-cohort-pipeline/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func call(pos, ref, alt, het string) domain.VariantCall {
	return domain.VariantCall{
		Chr:              "chrMT",
		Pos:              domain.Scalar(pos),
		Ref:              ref,
		Alt:              alt,
		HeteroplasmyRate: domain.Scalar(het),
	}
}

// newRecord builds a valid blood record with one HPO term
func newRecord(t *testing.T, recordID, patientID string, catalog ...domain.VariantCall) *domain.PatientRecord {
	t.Helper()
	return &domain.PatientRecord{
		RecordID: recordID,
		Clinical: &domain.Clinical{PatientID: patientID, Sex: "F", AgeOfOnset: "12"},
		Sample: &domain.Sample{
			AgeAtSampling: "30",
			Tissue:        "Blood",
			Type:          "WGS",
			Haplogroup:    "H1",
		},
		Ontology: &domain.Ontology{HPO: map[string]json.RawMessage{"HP:0001250": json.RawMessage(`"Seizure"`)}},
		Catalog:  catalog,
	}
}

// MockOntologyResolver is a mock implementation of domain.OntologyResolver
type MockOntologyResolver struct {
	mock.Mock
}

func (m *MockOntologyResolver) ResolveName(ctx context.Context, hpoID string) (string, error) {
	args := m.Called(ctx, hpoID)
	return args.String(0), args.Error(1)
}

// staticResolver resolves from a fixed table
type staticResolver map[string]string

func (s staticResolver) ResolveName(_ context.Context, hpoID string) (string, error) {
	return s[hpoID], nil
}

func withTerms(record *domain.PatientRecord, termIDs ...string) *domain.PatientRecord {
	record.Ontology = &domain.Ontology{HPO: make(map[string]json.RawMessage)}
	for _, id := range termIDs {
		record.Ontology.HPO[id] = json.RawMessage(`{}`)
	}
	return record
}
