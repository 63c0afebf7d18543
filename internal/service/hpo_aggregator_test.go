package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mito-cohort-pipeline/internal/domain"
)

func TestHPOAggregator_Annotate(t *testing.T) {
	ctx := context.Background()

	t.Run("Merges terms per patient and resolves each term once", func(t *testing.T) {
		resolver := new(MockOntologyResolver)
		resolver.On("ResolveName", mock.Anything, "HP:0001250").Return("Seizure", nil).Once()
		resolver.On("ResolveName", mock.Anything, "HP:0003128").Return("Lactic acidosis", nil).Once()
		resolver.On("ResolveName", mock.Anything, "HP:9999999").Return("", nil).Once()

		records := []*domain.PatientRecord{
			withTerms(newRecord(t, "b.json", "PAT002"), "HP:0001250"),
			withTerms(newRecord(t, "a2.json", "PAT001"), "HP:0003128", "HP:0001250"),
			withTerms(newRecord(t, "a1.json", "PAT001"), "HP:0001250", "HP:9999999"),
		}

		aggregator := NewHPOAggregator(resolver, 2, newTestLogger())
		annotations, err := aggregator.Annotate(ctx, records)

		require.NoError(t, err)
		assert.Equal(t, []domain.HPOAnnotation{
			{PatientID: "PAT001", TermID: "HP:0001250", Name: "Seizure"},
			{PatientID: "PAT001", TermID: "HP:9999999", Name: ""},
			{PatientID: "PAT001", TermID: "HP:0003128", Name: "Lactic acidosis"},
			{PatientID: "PAT002", TermID: "HP:0001250", Name: "Seizure"},
		}, annotations)
		resolver.AssertExpectations(t)
	})

	t.Run("Lookup failure keeps an empty name", func(t *testing.T) {
		resolver := new(MockOntologyResolver)
		resolver.On("ResolveName", mock.Anything, "HP:0001250").Return("", errors.New("service unavailable"))

		aggregator := NewHPOAggregator(resolver, 1, newTestLogger())
		annotations, err := aggregator.Annotate(ctx, []*domain.PatientRecord{
			withTerms(newRecord(t, "a.json", "PAT001"), "HP:0001250"),
		})

		require.NoError(t, err)
		require.Len(t, annotations, 1)
		assert.Empty(t, annotations[0].Name)
	})

	t.Run("Record without ontology still gets a matrix row", func(t *testing.T) {
		bare := newRecord(t, "b.json", "PAT002")
		bare.Ontology = nil
		records := []*domain.PatientRecord{
			bare,
			withTerms(newRecord(t, "a.json", "PAT001"), "HP:0001250"),
		}

		aggregator := NewHPOAggregator(staticResolver{"HP:0001250": "Seizure"}, 1, newTestLogger())
		annotations, err := aggregator.Annotate(ctx, records)
		require.NoError(t, err)
		require.Len(t, annotations, 1)

		matrix := BuildPhenotypeMatrix(PatientIDs(records), annotations)
		assert.Equal(t, []string{"PAT001", "PAT002"}, matrix.Patients)
		assert.Equal(t, []string{"Seizure"}, matrix.Symptoms)
		assert.Equal(t, [][]int{{1}, {0}}, matrix.Cells)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		aggregator := NewHPOAggregator(staticResolver{"HP:0001250": "Seizure"}, 1, newTestLogger())
		_, err := aggregator.Annotate(cancelled, []*domain.PatientRecord{
			withTerms(newRecord(t, "a.json", "PAT001"), "HP:0001250"),
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildPhenotypeMatrix(t *testing.T) {
	matrix := BuildPhenotypeMatrix([]string{"PAT001", "PAT004"}, []domain.HPOAnnotation{
		{PatientID: "PAT001", TermID: "HP:0001250", Name: "Seizure"},
		{PatientID: "PAT001", TermID: "HP:9999999", Name: ""},
		{PatientID: "PAT002", TermID: "HP:0003128", Name: "Lactic acidosis"},
		{PatientID: "PAT002", TermID: "HP:0001250", Name: "Seizure"},
		{PatientID: "PAT003", TermID: "HP:8888888", Name: ""},
	})

	assert.Equal(t, []string{"Seizure", "Lactic acidosis"}, matrix.Symptoms)
	assert.Equal(t, []string{"PAT001", "PAT004", "PAT002", "PAT003"}, matrix.Patients)
	assert.Equal(t, [][]int{{1, 0}, {0, 0}, {1, 1}, {0, 0}}, matrix.Cells)
}

func TestPatientIDs(t *testing.T) {
	records := []*domain.PatientRecord{
		newRecord(t, "c.json", "PAT002"),
		newRecord(t, "b.json", "PAT001"),
		newRecord(t, "a.json", "PAT002"),
	}

	assert.Equal(t, []string{"PAT002", "PAT001"}, PatientIDs(records))
	assert.Empty(t, PatientIDs(nil))
}
