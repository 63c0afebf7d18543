package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a pipeline failure.
type ErrorCode string

// Error codes for record, reconciliation and lookup failures
const (
	ErrCodeMalformedInput         ErrorCode = "MALFORMED_INPUT"
	ErrCodeInvalidClinicalField   ErrorCode = "INVALID_CLINICAL_FIELD"
	ErrCodeInvalidSampleField     ErrorCode = "INVALID_SAMPLE_FIELD"
	ErrCodeInvalidVariantData     ErrorCode = "INVALID_VARIANT_DATA"
	ErrCodeTargetVariantNotFound  ErrorCode = "TARGET_VARIANT_NOT_FOUND"
	ErrCodeBelowThreshold         ErrorCode = "BELOW_THRESHOLD"
	ErrCodeInconsistentSchema     ErrorCode = "INCONSISTENT_SCHEMA"
	ErrCodeUnresolvedOntologyTerm ErrorCode = "UNRESOLVED_ONTOLOGY_TERM"
)

// Sentinel errors matched with errors.Is against a RecordError of the same code.
var (
	ErrMalformedInput         = errors.New("malformed input")
	ErrInvalidClinicalField   = errors.New("invalid clinical field")
	ErrInvalidSampleField     = errors.New("invalid sample field")
	ErrInvalidVariantData     = errors.New("invalid variant data")
	ErrTargetVariantNotFound  = errors.New("target variant not found")
	ErrBelowThreshold         = errors.New("target variant below heteroplasmy threshold")
	ErrInconsistentSchema     = errors.New("inconsistent patient schema")
	ErrUnresolvedOntologyTerm = errors.New("unresolved ontology term")
	ErrNotFound               = errors.New("not found")
)

var sentinels = map[ErrorCode]error{
	ErrCodeMalformedInput:         ErrMalformedInput,
	ErrCodeInvalidClinicalField:   ErrInvalidClinicalField,
	ErrCodeInvalidSampleField:     ErrInvalidSampleField,
	ErrCodeInvalidVariantData:     ErrInvalidVariantData,
	ErrCodeTargetVariantNotFound:  ErrTargetVariantNotFound,
	ErrCodeBelowThreshold:         ErrBelowThreshold,
	ErrCodeInconsistentSchema:     ErrInconsistentSchema,
	ErrCodeUnresolvedOntologyTerm: ErrUnresolvedOntologyTerm,
}

// RecordError describes why a record, or a patient during reconciliation,
// was rejected.
type RecordError struct {
	Code     ErrorCode   `json:"code"`
	RecordID string      `json:"record_id,omitempty"`
	Field    string      `json:"field,omitempty"`
	Message  string      `json:"message"`
	Value    interface{} `json:"value,omitempty"`
	Err      error       `json:"-"`
}

// Error implements the error interface
func (e *RecordError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field '%s': %s", e.Code, e.Field, e.Message)
	}
	if e.RecordID != "" {
		msg = e.RecordID + ": " + msg
	}
	return msg
}

// Is matches the sentinel error for the record error's code.
func (e *RecordError) Is(target error) bool {
	return sentinels[e.Code] == target
}

// Unwrap exposes the underlying cause, if any.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new RecordError
func NewRecordError(code ErrorCode, recordID, field, message string, value interface{}) *RecordError {
	return &RecordError{
		Code:     code,
		RecordID: recordID,
		Field:    field,
		Message:  message,
		Value:    value,
	}
}

// CodeOf returns the error code carried by err, or an empty code.
func CodeOf(err error) ErrorCode {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
