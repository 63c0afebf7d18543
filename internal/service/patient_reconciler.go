package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// PatientReconciler merges the metadata blocks of records sharing a patient id
type PatientReconciler struct {
	logger *logrus.Logger
}

// NewPatientReconciler creates a new patient reconciler
func NewPatientReconciler(logger *logrus.Logger) *PatientReconciler {
	return &PatientReconciler{logger: logger}
}

// Reconcile returns one aggregate per patient id. Fields on which the records
// agree keep their single value; disagreeing fields become the distinct values
// joined by commas, in record-id order. A patient whose records have metadata
// blocks of different lengths is reported as an InconsistentSchema error and
// left out of the result; other patients are unaffected.
func (r *PatientReconciler) Reconcile(rows map[string]domain.PatientRow) (map[string]domain.PatientAggregate, []error) {
	recordIDs := make([]string, 0, len(rows))
	for id := range rows {
		recordIDs = append(recordIDs, id)
	}
	sort.Strings(recordIDs)

	groups := make(map[string][]string)
	var order []string
	for _, id := range recordIDs {
		patientID := rows[id].PatientID
		if _, ok := groups[patientID]; !ok {
			order = append(order, patientID)
		}
		groups[patientID] = append(groups[patientID], id)
	}

	aggregates := make(map[string]domain.PatientAggregate, len(groups))
	var errs []error

	for _, patientID := range order {
		members := groups[patientID]

		blocks := make([][]string, len(members))
		for i, id := range members {
			blocks[i] = rows[id].Fields()
		}

		fields, err := mergeBlocks(patientID, members, blocks)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"patient_id": patientID,
				"records":    members,
			}).Error(err.Error())
			errs = append(errs, err)
			continue
		}

		if len(members) > 1 {
			r.logger.WithFields(logrus.Fields{
				"patient_id": patientID,
				"records":    len(members),
			}).Debug("Reconciled multi-record patient")
		}

		aggregates[patientID] = domain.PatientAggregate{
			PatientID: patientID,
			Fields:    fields,
			RecordIDs: members,
		}
	}

	return aggregates, errs
}

func mergeBlocks(patientID string, recordIDs []string, blocks [][]string) ([]string, error) {
	width := len(blocks[0])
	for i, block := range blocks[1:] {
		if len(block) != width {
			return nil, &domain.RecordError{
				Code:    domain.ErrCodeInconsistentSchema,
				Field:   "patient_id",
				Message: fmt.Sprintf("patient %s: record %s has %d metadata fields, record %s has %d", patientID, recordIDs[0], width, recordIDs[i+1], len(block)),
				Value:   patientID,
			}
		}
	}

	merged := make([]string, width)
	for col := 0; col < width; col++ {
		var distinct []string
		seen := make(map[string]bool)
		for _, block := range blocks {
			if !seen[block[col]] {
				seen[block[col]] = true
				distinct = append(distinct, block[col])
			}
		}
		merged[col] = strings.Join(distinct, ",")
	}

	return merged, nil
}
