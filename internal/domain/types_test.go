package domain

import (
	"encoding/json"
	"testing"
)

func TestTissueIsKnown(t *testing.T) {
	tests := []struct {
		tissue   Tissue
		expected bool
	}{
		{TissueBlood, true},
		{TissueUrine, true},
		{TissueMuscle, true},
		{TissueHeart, true},
		{TissueBuccal, true},
		{TissueFibroblast, true},
		{Tissue("saliva"), false},
		{Tissue(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tissue), func(t *testing.T) {
			if got := tt.tissue.IsKnown(); got != tt.expected {
				t.Errorf("IsKnown(%q) = %v, want %v", tt.tissue, got, tt.expected)
			}
		})
	}

	if !TissueBlood.HasNormalizationModel() || !TissueUrine.HasNormalizationModel() {
		t.Error("Blood and urine should have normalization models")
	}
	if TissueMuscle.HasNormalizationModel() {
		t.Error("Muscle should not have a normalization model")
	}
}

func TestParseNormalizationMode(t *testing.T) {
	tests := []struct {
		input    string
		expected NormalizationMode
	}{
		{"yes", NormalizeByTissue},
		{"YES", NormalizeByTissue},
		{" no ", NormalizeNone},
		{"blood", NormalizeBlood},
		{"urine", NormalizeUrine},
		{"maybe", NormalizeNone},
		{"", NormalizeNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseNormalizationMode(tt.input); got != tt.expected {
				t.Errorf("ParseNormalizationMode(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidSex(t *testing.T) {
	for _, sex := range []string{"M", "F", ""} {
		if !IsValidSex(sex) {
			t.Errorf("Expected %q to be accepted", sex)
		}
	}
	for _, sex := range []string{"m", "Male", "X", " "} {
		if IsValidSex(sex) {
			t.Errorf("Expected %q to be rejected", sex)
		}
	}
}

func TestPatientRecordDecoding(t *testing.T) {
	raw := `{
		"Clinical": {"patient_id": "PAT001", "sex": "F", "age_of_onset": 12},
		"Sample": {"age_at_sampling": "30", "tissue": "Blood", "type": "WGS", "haplogroup": "H1"},
		"Ontology": {"hpo": {"HP:0001250": "Seizure", "HP:0000407": {"onset": 3}}},
		"Catalog": [
			{"chr": "chrMT", "pos": 3243, "ref": "A", "alt": "G", "heteroplasmy_rate": 45.0},
			{"chr": "chrMT", "pos": "73", "ref": "A", "alt": "G", "heteroplasmy_rate": "99.5"}
		]
	}`

	var record PatientRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}

	if record.PatientID() != "PAT001" {
		t.Errorf("Expected patient PAT001, got %s", record.PatientID())
	}
	if record.Clinical.AgeOfOnset != "12" {
		t.Errorf("Expected numeric age_of_onset kept as text, got %q", record.Clinical.AgeOfOnset)
	}
	if age, err := record.Sample.AgeAtSampling.Int(); err != nil || age != 30 {
		t.Errorf("Expected age 30, got %d (%v)", age, err)
	}
	if !record.HasPhenotypes() {
		t.Error("Expected phenotypes to be present")
	}

	ids := record.Ontology.TermIDs()
	if len(ids) != 2 || ids[0] != "HP:0000407" || ids[1] != "HP:0001250" {
		t.Errorf("Expected sorted term ids, got %v", ids)
	}

	label, err := record.Catalog[0].Label()
	if err != nil || label != "A3243G" {
		t.Errorf("Expected label A3243G, got %s (%v)", label, err)
	}

	het, err := record.Catalog[1].Heteroplasmy()
	if err != nil || het != 99.5 {
		t.Errorf("Expected heteroplasmy 99.5, got %v (%v)", het, err)
	}
}

func TestVariantCallLabelNormalizesPosition(t *testing.T) {
	call := VariantCall{Chr: "chrMT", Pos: "03243", Ref: "A", Alt: "G", HeteroplasmyRate: "10"}

	label, err := call.Label()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if label != "A3243G" {
		t.Errorf("Expected A3243G, got %s", label)
	}

	call.Pos = "32a43"
	if _, err := call.Label(); err == nil {
		t.Error("Expected error for non-integer position")
	}
}

func TestScalarRejectsComposite(t *testing.T) {
	var s Scalar
	if err := json.Unmarshal([]byte(`[1,2]`), &s); err == nil {
		t.Error("Expected error for array value")
	}
	if err := json.Unmarshal([]byte(`null`), &s); err != nil || !s.IsEmpty() {
		t.Errorf("Expected null to decode as empty scalar, got %q (%v)", s, err)
	}
}

func TestPatientRowFields(t *testing.T) {
	row := PatientRow{
		PatientID:     "PAT001",
		Sex:           "F",
		AgeOfOnset:    "12",
		AgeAtSampling: "30",
		Tissue:        TissueBlood,
		Type:          "WGS",
		Haplogroup:    "H1",
	}

	if got := len(row.Fields()); got != 7 {
		t.Errorf("Expected 7 metadata fields without hallmark, got %d", got)
	}

	row.M3243 = &M3243Measurement{Raw: 45, Normalized: 100}
	fields := row.Fields()
	if len(fields) != 9 {
		t.Fatalf("Expected 9 metadata fields with hallmark, got %d", len(fields))
	}
	if fields[7] != "45" || fields[8] != "100" {
		t.Errorf("Unexpected hallmark columns %v", fields[7:])
	}
}
