package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mito-cohort-pipeline/internal/domain"
)

func TestTissueNormalizer_Canonicalize(t *testing.T) {
	normalizer := NewTissueNormalizer(newTestLogger())

	tests := []struct {
		raw  string
		want domain.Tissue
	}{
		{"Blood", domain.TissueBlood},
		{"whole BLOOD", domain.TissueBlood},
		{"Sang total", domain.TissueBlood},
		{"Urine", domain.TissueUrine},
		{"urines", domain.TissueUrine},
		{"Skeletal muscles", domain.TissueMuscle},
		{"Heart", domain.TissueHeart},
		{"buccal swab", domain.TissueBuccal},
		{"Fibroblast culture", domain.TissueFibroblast},
		{"Saliva", domain.Tissue("saliva")},
		{"", domain.Tissue("")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := normalizer.Canonicalize(tt.raw)
			assert.Equal(t, tt.want, got)

			// canonical output is a fixed point
			assert.Equal(t, got, normalizer.Canonicalize(string(got)))
		})
	}
}

func TestBloodModel(t *testing.T) {
	t.Run("Monotonic in age and bounded", func(t *testing.T) {
		for _, fraction := range []float64{0, 0.05, 0.2, 0.45, 0.9, 1} {
			prev := BloodModel(fraction, 0)
			for age := 1; age <= 100; age++ {
				got := BloodModel(fraction, age)
				assert.GreaterOrEqual(t, got, prev, "fraction=%v age=%d", fraction, age)
				assert.LessOrEqual(t, got, 1.0)
				prev = got
			}
		}
	})

	t.Run("Closed form", func(t *testing.T) {
		want := 0.1 / math.Pow(0.977, 42)
		assert.InDelta(t, want, BloodModel(0.1, 30), 1e-12)
	})
}

func TestUrineModel(t *testing.T) {
	t.Run("Fixed points", func(t *testing.T) {
		for _, sex := range []string{"M", "F", ""} {
			assert.Equal(t, 0.0, UrineModel(0, sex))
			assert.Equal(t, 1.0, UrineModel(1, sex))
		}
	})

	t.Run("Sex adjustment", func(t *testing.T) {
		logit := math.Log(0.3 / 0.7)

		female := math.Exp(logit/0.791 + 0.608)
		assert.InDelta(t, female/(1+female), UrineModel(0.3, "F"), 1e-12)

		male := math.Exp(logit/0.791 - 0.625)
		assert.InDelta(t, male/(1+male), UrineModel(0.3, "M"), 1e-12)
		assert.InDelta(t, male/(1+male), UrineModel(0.3, ""), 1e-12)

		assert.Greater(t, UrineModel(0.3, "F"), UrineModel(0.3, "M"))
	})

	t.Run("Bounded", func(t *testing.T) {
		for f := 0.01; f < 1; f += 0.01 {
			got := UrineModel(f, "F")
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	})
}

func TestTissueNormalizer_Normalize(t *testing.T) {
	normalizer := NewTissueNormalizer(newTestLogger())
	blood := domain.NormalizationContext{Sex: "F", AgeAtSampling: 10, Tissue: domain.TissueBlood}
	urine := domain.NormalizationContext{Sex: "M", AgeAtSampling: 10, Tissue: domain.TissueUrine}
	muscle := domain.NormalizationContext{Sex: "M", AgeAtSampling: 10, Tissue: domain.TissueMuscle}

	tests := []struct {
		name string
		nc   domain.NormalizationContext
		mode domain.NormalizationMode
		want float64
	}{
		{"By tissue blood", blood, domain.NormalizeByTissue, BloodModel(0.2, 10)},
		{"By tissue urine", urine, domain.NormalizeByTissue, UrineModel(0.2, "M")},
		{"By tissue without model", muscle, domain.NormalizeByTissue, 0.2},
		{"Forced blood on urine", urine, domain.NormalizeBlood, BloodModel(0.2, 10)},
		{"Forced urine on muscle", muscle, domain.NormalizeUrine, UrineModel(0.2, "M")},
		{"Identity", blood, domain.NormalizeNone, 0.2},
		{"Unknown mode", blood, domain.NormalizationMode("maybe"), 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, normalizer.Normalize(0.2, tt.nc, tt.mode), 1e-12)
		})
	}
}

func TestToPercent(t *testing.T) {
	assert.Equal(t, 100.0, ToPercent(1))
	assert.Equal(t, 45.0, ToPercent(0.45))
	assert.Equal(t, 12.35, ToPercent(0.123456))
	assert.Equal(t, 0.0, ToPercent(0))
}

func TestTissueNormalizer_NormalizePercent(t *testing.T) {
	normalizer := NewTissueNormalizer(newTestLogger())

	blood := domain.NormalizationContext{Sex: "F", AgeAtSampling: 30, Tissue: domain.TissueBlood}
	urine := domain.NormalizationContext{Sex: "M", AgeAtSampling: 30, Tissue: domain.TissueUrine}
	muscle := domain.NormalizationContext{Sex: "M", AgeAtSampling: 30, Tissue: domain.TissueMuscle}

	tests := []struct {
		name string
		het  float64
		nc   domain.NormalizationContext
		mode domain.NormalizationMode
		want float64
	}{
		{"Blood saturates", 45, blood, domain.NormalizeByTissue, 100},
		{"Male urine", 50, urine, domain.NormalizeByTissue, 34.86},
		{"Tissue without model keeps raw", 45, muscle, domain.NormalizeByTissue, 45},
		{"Forced model still needs blood or urine", 45, muscle, domain.NormalizeBlood, 45},
		{"Mode no keeps raw", 45.5, blood, domain.NormalizeNone, 45.5},
		{"Raw value rounded to 2 decimals", 45.678, muscle, domain.NormalizeByTissue, 45.68},
		{"Mode no rounds to 2 decimals", 12.3449, blood, domain.NormalizeNone, 12.34},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizer.NormalizePercent(tt.het, tt.nc, tt.mode))
		})
	}
}

func TestTissueNormalizer_NormalizeReading(t *testing.T) {
	normalizer := NewTissueNormalizer(newTestLogger())

	tests := []struct {
		name       string
		reading    Reading
		wantTissue domain.Tissue
		wantMode   domain.NormalizationMode
		want       float64
		wantErr    bool
	}{
		{
			name:       "empty mode defaults to tissue model",
			reading:    Reading{Heteroplasmy: 45, Tissue: "Blood", Sex: "F", AgeAtSampling: 30},
			wantTissue: domain.TissueBlood,
			wantMode:   domain.NormalizeByTissue,
			want:       100,
		},
		{
			name:       "explicit no",
			reading:    Reading{Heteroplasmy: 45, Tissue: "Blood", Mode: "no"},
			wantTissue: domain.TissueBlood,
			wantMode:   domain.NormalizeNone,
			want:       45,
		},
		{
			name:       "tissue without model",
			reading:    Reading{Heteroplasmy: 12.5, Tissue: "muscle biopsy"},
			wantTissue: domain.TissueMuscle,
			wantMode:   domain.NormalizeByTissue,
			want:       12.5,
		},
		{name: "negative heteroplasmy", reading: Reading{Heteroplasmy: -1}, wantErr: true},
		{name: "bad sex", reading: Reading{Heteroplasmy: 1, Sex: "male"}, wantErr: true},
		{name: "negative age", reading: Reading{Heteroplasmy: 1, AgeAtSampling: -3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizer.NormalizeReading(tt.reading)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantTissue, got.Tissue)
			assert.Equal(t, tt.wantMode, got.Mode)
			assert.Equal(t, tt.reading.Heteroplasmy, got.Raw)
			assert.Equal(t, tt.want, got.Normalized)
		})
	}
}
