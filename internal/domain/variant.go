package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scalar holds the raw text of a JSON scalar. Clinical exports mix quoted and
// unquoted numbers, so numeric fields are kept as text and parsed by the
// validator rather than by the decoder.
type Scalar string

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("expected scalar, got %s", string(data))
	}
	*s = Scalar(data)
	return nil
}

// MarshalJSON writes the scalar back as a JSON string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// String returns the raw text.
func (s Scalar) String() string {
	return string(s)
}

// IsEmpty reports whether the scalar carries no text.
func (s Scalar) IsEmpty() bool {
	return strings.TrimSpace(string(s)) == ""
}

// Int parses the scalar as a base-10 integer.
func (s Scalar) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(s)))
}

// Float parses the scalar as a float.
func (s Scalar) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
}

// Clinical is the patient-level section of a record.
type Clinical struct {
	PatientID  string `json:"patient_id"`
	Sex        string `json:"sex"`
	AgeOfOnset Scalar `json:"age_of_onset"`
}

// Sample is the sample-level section of a record.
type Sample struct {
	AgeAtSampling Scalar `json:"age_at_sampling"`
	Tissue        string `json:"tissue"`
	Type          string `json:"type"`
	Haplogroup    string `json:"haplogroup"`
}

// Ontology holds phenotype annotations keyed by HPO identifier. Values are
// free-form in exports and are not interpreted.
type Ontology struct {
	HPO map[string]json.RawMessage `json:"hpo"`
}

// TermIDs returns the HPO identifiers in lexical order.
func (o *Ontology) TermIDs() []string {
	if o == nil {
		return nil
	}
	ids := make([]string, 0, len(o.HPO))
	for id := range o.HPO {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VariantCall is one catalog entry of a record.
type VariantCall struct {
	Chr              string `json:"chr"`
	Pos              Scalar `json:"pos"`
	Ref              string `json:"ref"`
	Alt              string `json:"alt"`
	HeteroplasmyRate Scalar `json:"heteroplasmy_rate"`
}

// Label returns the biological identity key ref+pos+alt, e.g. "A3243G".
// The position is rendered from its integer value so "03243" and "3243"
// produce the same label.
func (v VariantCall) Label() (string, error) {
	pos, err := v.Pos.Int()
	if err != nil {
		return "", fmt.Errorf("variant position %q: %w", v.Pos, err)
	}
	return v.Ref + strconv.Itoa(pos) + v.Alt, nil
}

// Heteroplasmy returns the stored heteroplasmy percentage (0-100 scale).
func (v VariantCall) Heteroplasmy() (float64, error) {
	if v.HeteroplasmyRate.IsEmpty() {
		return 0, fmt.Errorf("heteroplasmy rate is empty")
	}
	return v.HeteroplasmyRate.Float()
}

// PatientRecord is one input file. It is read once and never mutated.
type PatientRecord struct {
	RecordID string        `json:"-"`
	Clinical *Clinical     `json:"Clinical"`
	Sample   *Sample       `json:"Sample"`
	Ontology *Ontology     `json:"Ontology"`
	Catalog  []VariantCall `json:"Catalog"`
}

// HasPhenotypes reports whether at least one HPO term is annotated.
func (r *PatientRecord) HasPhenotypes() bool {
	return r.Ontology != nil && len(r.Ontology.HPO) > 0
}

// PatientID returns the clinical patient identifier or an empty string.
func (r *PatientRecord) PatientID() string {
	if r.Clinical == nil {
		return ""
	}
	return r.Clinical.PatientID
}
