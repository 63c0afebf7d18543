package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// Model constants for the hallmark heteroplasmy corrections
const (
	// bloodDecayRate is the yearly retention of the variant in blood.
	bloodDecayRate = 0.977
	// bloodAgeOffset shifts the sampling age in the decay exponent.
	bloodAgeOffset = 12

	urineFemaleShift = 0.608
	urineMaleShift   = -0.625
	urineLogitScale  = 0.791
)

// tissueKeywords is checked in order; the first category with a keyword
// contained in the lowercased input wins.
var tissueKeywords = []struct {
	tissue   domain.Tissue
	keywords []string
}{
	{domain.TissueBlood, []string{"blood", "sang"}},
	{domain.TissueUrine, []string{"urine", "urines"}},
	{domain.TissueMuscle, []string{"muscle", "muscles"}},
	{domain.TissueHeart, []string{"heart"}},
	{domain.TissueBuccal, []string{"buccal"}},
	{domain.TissueFibroblast, []string{"fibroblast"}},
}

// TissueNormalizer canonicalizes tissue names and applies the tissue-specific
// heteroplasmy models.
type TissueNormalizer struct {
	logger *logrus.Logger
}

// NewTissueNormalizer creates a new tissue normalizer
func NewTissueNormalizer(logger *logrus.Logger) *TissueNormalizer {
	return &TissueNormalizer{logger: logger}
}

// Canonicalize maps a raw tissue label to a canonical tissue. Unrecognized
// labels are returned lowercased with a warning; tissue never rejects a record.
func (n *TissueNormalizer) Canonicalize(raw string) domain.Tissue {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	for _, entry := range tissueKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.tissue
			}
		}
	}

	n.logger.WithField("tissue", raw).Warn("Unrecognized tissue, keeping raw value")
	return domain.Tissue(lowered)
}

// Normalize corrects a heteroplasmy fraction according to mode. Mode "yes"
// picks the model of the declared tissue, "blood" and "urine" force a model,
// and anything else returns the input. The result is within [0,1].
func (n *TissueNormalizer) Normalize(fraction float64, nc domain.NormalizationContext, mode domain.NormalizationMode) float64 {
	fraction = math.Max(0, math.Min(1, fraction))

	switch mode {
	case domain.NormalizeByTissue:
		switch nc.Tissue {
		case domain.TissueBlood:
			return BloodModel(fraction, nc.AgeAtSampling)
		case domain.TissueUrine:
			return UrineModel(fraction, nc.Sex)
		default:
			return fraction
		}
	case domain.NormalizeBlood:
		return BloodModel(fraction, nc.AgeAtSampling)
	case domain.NormalizeUrine:
		return UrineModel(fraction, nc.Sex)
	default:
		return fraction
	}
}

// NormalizePercent normalizes a 0-100 heteroplasmy for reporting. Only blood
// and urine samples are corrected; other tissues and mode "no" keep the raw
// percentage. Both paths round to 2 decimals.
func (n *TissueNormalizer) NormalizePercent(het float64, nc domain.NormalizationContext, mode domain.NormalizationMode) float64 {
	if mode == domain.NormalizeNone || !mode.IsValid() || !nc.Tissue.HasNormalizationModel() {
		return math.Round(het*100) / 100
	}
	return ToPercent(n.Normalize(het/100, nc, mode))
}

// BloodModel corrects for the age-related decline of the variant in blood:
// min(1, fraction / 0.977^(age+12)).
func BloodModel(fraction float64, age int) float64 {
	return math.Min(1, fraction/math.Pow(bloodDecayRate, float64(age+bloodAgeOffset)))
}

// UrineModel applies the sex-stratified logit correction for urinary
// epithelium. The bounds 0 and 1 are returned unchanged.
func UrineModel(fraction float64, sex string) float64 {
	if fraction <= 0 || fraction >= 1 {
		return fraction
	}

	shift := urineMaleShift
	if sex == domain.SexFemale {
		shift = urineFemaleShift
	}

	logit := math.Log(fraction / (1 - fraction))
	adjusted := math.Exp(logit/urineLogitScale + shift)

	return math.Min(1, adjusted/(1+adjusted))
}

// ToPercent converts a fraction to a percentage rounded to two decimals
func ToPercent(fraction float64) float64 {
	return math.Round(fraction*100*100) / 100
}

// Reading is a single heteroplasmy measurement submitted outside a run
type Reading struct {
	Heteroplasmy  float64
	Tissue        string
	Sex           string
	AgeAtSampling int
	Mode          string // empty means "yes"
}

// NormalizedReading is the outcome of NormalizeReading
type NormalizedReading struct {
	Tissue     domain.Tissue            `json:"tissue"`
	Mode       domain.NormalizationMode `json:"mode"`
	Raw        float64                  `json:"raw"`
	Normalized float64                  `json:"normalized"`
}

// NormalizeReading validates a reading and applies the tissue models to it
func (n *TissueNormalizer) NormalizeReading(r Reading) (NormalizedReading, error) {
	if r.Heteroplasmy < 0 || r.Heteroplasmy > 100 {
		return NormalizedReading{}, fmt.Errorf("heteroplasmy must be within [0, 100], got %v", r.Heteroplasmy)
	}
	if !domain.IsValidSex(r.Sex) {
		return NormalizedReading{}, fmt.Errorf("sex must be M, F or empty, got %q", r.Sex)
	}
	if r.AgeAtSampling < 0 {
		return NormalizedReading{}, fmt.Errorf("age_at_sampling must be non-negative")
	}

	mode := domain.NormalizeByTissue
	if strings.TrimSpace(r.Mode) != "" {
		mode = domain.ParseNormalizationMode(r.Mode)
	}
	tissue := n.Canonicalize(r.Tissue)

	nc := domain.NormalizationContext{Sex: r.Sex, AgeAtSampling: r.AgeAtSampling, Tissue: tissue}
	return NormalizedReading{
		Tissue:     tissue,
		Mode:       mode,
		Raw:        r.Heteroplasmy,
		Normalized: n.NormalizePercent(r.Heteroplasmy, nc, mode),
	}, nil
}
