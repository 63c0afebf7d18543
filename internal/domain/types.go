// Package domain contains core entities for the mitochondrial cohort pipeline:
// patient records, variant calls, tissue and normalization enums, and the
// tabular rows produced from them.
//
// Heteroplasmy is carried as a fraction in [0,1] inside the normalization
// models and reported as a 0-100 percentage everywhere else.
package domain

import (
	"strings"
)

// HallmarkVariant is the MELAS-associated m.3243A>G variant, the only target
// the pipeline normalizes.
const HallmarkVariant = "A3243G"

// Tissue is the canonical sampling tissue. Unknown tissues are carried as the
// lowercased raw string and are not members of the closed set below.
type Tissue string

const (
	TissueBlood      Tissue = "blood"
	TissueUrine      Tissue = "urine"
	TissueMuscle     Tissue = "muscle"
	TissueHeart      Tissue = "heart"
	TissueBuccal     Tissue = "buccal"
	TissueFibroblast Tissue = "fibroblast"
)

// IsKnown reports whether the tissue belongs to the canonical set.
func (t Tissue) IsKnown() bool {
	switch t {
	case TissueBlood, TissueUrine, TissueMuscle, TissueHeart, TissueBuccal, TissueFibroblast:
		return true
	default:
		return false
	}
}

// HasNormalizationModel reports whether a heteroplasmy model exists for the tissue.
func (t Tissue) HasNormalizationModel() bool {
	return t == TissueBlood || t == TissueUrine
}

// String returns the string representation of the tissue.
func (t Tissue) String() string {
	return string(t)
}

// NormalizationMode selects how the hallmark heteroplasmy is corrected.
type NormalizationMode string

const (
	// NormalizeByTissue applies the model matching the declared tissue.
	NormalizeByTissue NormalizationMode = "yes"
	// NormalizeNone reports the raw value.
	NormalizeNone NormalizationMode = "no"
	// NormalizeBlood forces the blood age-decay model.
	NormalizeBlood NormalizationMode = "blood"
	// NormalizeUrine forces the urine logit model.
	NormalizeUrine NormalizationMode = "urine"
)

// ParseNormalizationMode maps user input to a mode. Unrecognized values fall
// back to NormalizeNone, matching the identity behaviour of unknown modes.
func ParseNormalizationMode(s string) NormalizationMode {
	mode := NormalizationMode(strings.ToLower(strings.TrimSpace(s)))
	if mode.IsValid() {
		return mode
	}
	return NormalizeNone
}

// IsValid validates the normalization mode.
func (m NormalizationMode) IsValid() bool {
	switch m {
	case NormalizeByTissue, NormalizeNone, NormalizeBlood, NormalizeUrine:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mode.
func (m NormalizationMode) String() string {
	return string(m)
}

// Sex values accepted in the Clinical section. An empty value means unknown.
const (
	SexMale    = "M"
	SexFemale  = "F"
	SexUnknown = ""
)

// IsValidSex reports whether the clinical sex value is accepted.
func IsValidSex(sex string) bool {
	switch sex {
	case SexMale, SexFemale, SexUnknown:
		return true
	default:
		return false
	}
}

// NormalizationContext carries the patient and sample attributes the
// tissue-specific models depend on.
type NormalizationContext struct {
	Sex           string `json:"sex"`
	AgeAtSampling int    `json:"age_at_sampling"`
	Tissue        Tissue `json:"tissue"`
}
