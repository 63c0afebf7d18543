package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// HPOAggregator resolves the phenotype terms of a cohort to their names
type HPOAggregator struct {
	resolver domain.OntologyResolver
	workers  int
	logger   *logrus.Logger
}

// NewHPOAggregator creates a new HPO aggregator. workers bounds the number of
// concurrent lookups.
func NewHPOAggregator(resolver domain.OntologyResolver, workers int, logger *logrus.Logger) *HPOAggregator {
	if workers <= 0 {
		workers = 4
	}
	return &HPOAggregator{
		resolver: resolver,
		workers:  workers,
		logger:   logger,
	}
}

// Annotate returns one annotation per distinct (patient, term) pair. Patients
// appear in record-id order and each patient's terms are merged across its
// records. Terms that cannot be resolved keep an empty name; only context
// cancellation is returned as an error.
func (a *HPOAggregator) Annotate(ctx context.Context, records []*domain.PatientRecord) ([]domain.HPOAnnotation, error) {
	sorted := make([]*domain.PatientRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordID < sorted[j].RecordID })

	var annotations []domain.HPOAnnotation
	seen := make(map[domain.HPOAnnotation]bool)
	var termIDs []string
	termIndex := make(map[string]int)

	for _, record := range sorted {
		for _, termID := range record.Ontology.TermIDs() {
			key := domain.HPOAnnotation{PatientID: record.PatientID(), TermID: termID}
			if seen[key] {
				continue
			}
			seen[key] = true
			annotations = append(annotations, key)

			if _, ok := termIndex[termID]; !ok {
				termIndex[termID] = len(termIDs)
				termIDs = append(termIDs, termID)
			}
		}
	}

	names, err := a.resolveAll(ctx, termIDs)
	if err != nil {
		return nil, err
	}

	for i := range annotations {
		annotations[i].Name = names[termIndex[annotations[i].TermID]]
	}

	a.logger.WithFields(logrus.Fields{
		"records":     len(records),
		"annotations": len(annotations),
		"terms":       len(termIDs),
	}).Info("Resolved HPO terms")

	return annotations, nil
}

// resolveAll looks up every term once. Each task writes only its own slot.
func (a *HPOAggregator) resolveAll(ctx context.Context, termIDs []string) ([]string, error) {
	names := make([]string, len(termIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, termID := range termIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			name, err := a.resolver.ResolveName(gctx, termID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				a.logger.WithFields(logrus.Fields{
					"hpo_term": termID,
					"code":     domain.ErrCodeUnresolvedOntologyTerm,
					"error":    err.Error(),
				}).Warn("HPO lookup failed, keeping empty name")
				return nil
			}
			if name == "" {
				a.logger.WithFields(logrus.Fields{
					"hpo_term": termID,
					"code":     domain.ErrCodeUnresolvedOntologyTerm,
				}).Warn("HPO term not found")
			}
			names[i] = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// PatientIDs returns the distinct patient ids of the records in record-id
// order.
func PatientIDs(records []*domain.PatientRecord) []string {
	sorted := make([]*domain.PatientRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordID < sorted[j].RecordID })

	var ids []string
	seen := make(map[string]bool)
	for _, record := range sorted {
		id := record.PatientID()
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// BuildPhenotypeMatrix builds the presence/absence table. Every listed
// patient gets a row, all zeros when it has no resolved term; patients only
// found in the annotations follow in annotation order. Symptoms are the
// distinct non-empty names in first-seen order.
func BuildPhenotypeMatrix(patients []string, annotations []domain.HPOAnnotation) domain.PhenotypeMatrix {
	var matrix domain.PhenotypeMatrix
	symptomIndex := make(map[string]int)
	patientIndex := make(map[string]int)

	addPatient := func(id string) {
		if _, ok := patientIndex[id]; !ok {
			patientIndex[id] = len(matrix.Patients)
			matrix.Patients = append(matrix.Patients, id)
		}
	}

	for _, id := range patients {
		addPatient(id)
	}
	for _, ann := range annotations {
		addPatient(ann.PatientID)
		if ann.Name == "" {
			continue
		}
		if _, ok := symptomIndex[ann.Name]; !ok {
			symptomIndex[ann.Name] = len(matrix.Symptoms)
			matrix.Symptoms = append(matrix.Symptoms, ann.Name)
		}
	}

	matrix.Cells = make([][]int, len(matrix.Patients))
	for i := range matrix.Cells {
		matrix.Cells[i] = make([]int, len(matrix.Symptoms))
	}
	for _, ann := range annotations {
		if ann.Name == "" {
			continue
		}
		matrix.Cells[patientIndex[ann.PatientID]][symptomIndex[ann.Name]] = 1
	}

	return matrix
}
