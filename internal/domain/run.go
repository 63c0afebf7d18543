package domain

import (
	"time"
)

// Rejection records why a file or a patient was excluded from a run
type Rejection struct {
	RecordID string    `json:"record_id"`
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
}

// RunReport summarizes one pipeline run
type RunReport struct {
	RunID             string            `json:"run_id"`
	InputFolder       string            `json:"input_folder"`
	OutputFolder      string            `json:"output_folder"`
	Targets           []string          `json:"targets"`
	HetThreshold      float64           `json:"het_threshold"`
	NormalizationMode NormalizationMode `json:"normalization_mode"`
	TotalFiles        int               `json:"total_files"`
	ValidFiles        int               `json:"valid_files"`
	VariantRows       int               `json:"variant_rows"`
	Patients          int               `json:"patients"`
	Rejections        []Rejection       `json:"rejections,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// RejectionFromError builds a rejection from a pipeline error
func RejectionFromError(recordID string, err error) Rejection {
	code := CodeOf(err)
	if code == "" {
		code = ErrCodeMalformedInput
	}
	return Rejection{RecordID: recordID, Code: code, Message: err.Error()}
}
