package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// maxGeneratedPosition is the highest position drawn for synthetic variants
const maxGeneratedPosition = 16658

// haplogroupWeights are lineage counts of a reference mitochondrial cohort
var haplogroupWeights = []struct {
	name   string
	weight float64
}{
	{"A", 158}, {"B", 324}, {"C", 148}, {"D", 334}, {"E", 32}, {"F", 104}, {"G", 73}, {"H", 978}, {"HV", 94},
	{"I", 63}, {"J", 240}, {"K", 198}, {"L0", 157}, {"L1", 100}, {"L2", 132}, {"L3", 199}, {"L4", 17},
	{"L5", 12}, {"L6", 3}, {"M", 686}, {"N", 248}, {"O", 3}, {"P", 28}, {"Q", 40}, {"R", 39}, {"S", 8},
	{"T", 230}, {"U", 533}, {"V", 61}, {"W", 60}, {"X", 89}, {"Y", 14}, {"Z", 27},
}

// phenotypePool holds MELAS-spectrum terms sampled into generated records
var phenotypePool = []string{
	"HP:0001250", // Seizure
	"HP:0002401", // Stroke-like episode
	"HP:0003128", // Lactic acidosis
	"HP:0000407", // Sensorineural hearing impairment
	"HP:0000819", // Diabetes mellitus
	"HP:0003198", // Myopathy
}

// GeneratedCSVColumns is the header of the generated variant table
var GeneratedCSVColumns = []string{
	"chr", "pos", "ref", "alt", "heteroplasmy_rate", "patient_id", "sex",
	"age_of_onset", "age_at_sampling", "tissue", "haplogroup",
}

// GeneratorOptions controls the size and content of a synthetic cohort
type GeneratorOptions struct {
	Patients        int
	MinVariants     int
	MaxVariants     int
	IncludeHallmark bool
}

// DefaultGeneratorOptions returns 100 patients with 30 to 50 variants each
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{Patients: 100, MinVariants: 30, MaxVariants: 50}
}

// Validate checks the option ranges
func (o GeneratorOptions) Validate() error {
	if o.Patients < 1 {
		return domain.NewRecordError(domain.ErrCodeMalformedInput, "", "patients", "must be at least 1", o.Patients)
	}
	if o.MinVariants < 0 || o.MaxVariants < o.MinVariants {
		return domain.NewRecordError(domain.ErrCodeMalformedInput, "", "variants",
			fmt.Sprintf("invalid range [%d, %d]", o.MinVariants, o.MaxVariants), nil)
	}
	return nil
}

// CohortGenerator synthesizes random control cohorts in the input schema
type CohortGenerator struct {
	rng        *rand.Rand
	haplogroup distuv.Categorical
	fraction   distuv.Uniform
	logger     *logrus.Logger
}

// NewCohortGenerator creates a generator. The same seed yields the same cohort.
func NewCohortGenerator(seed uint64, logger *logrus.Logger) *CohortGenerator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	weights := make([]float64, len(haplogroupWeights))
	for i, hg := range haplogroupWeights {
		weights[i] = hg.weight
	}

	return &CohortGenerator{
		rng:        rand.New(src),
		haplogroup: distuv.NewCategorical(weights, src),
		fraction:   distuv.Uniform{Min: 0, Max: 1, Src: src},
		logger:     logger,
	}
}

// Generate builds one record per patient. Heteroplasmy is stored as a
// percentage with one decimal so the records can be fed to the pipeline.
func (g *CohortGenerator) Generate(opts GeneratorOptions) ([]*domain.PatientRecord, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	records := make([]*domain.PatientRecord, 0, opts.Patients)
	for i := 1; i <= opts.Patients; i++ {
		records = append(records, g.patient(i, opts))
	}

	g.logger.WithFields(logrus.Fields{
		"patients":     opts.Patients,
		"min_variants": opts.MinVariants,
		"max_variants": opts.MaxVariants,
	}).Info("Generated synthetic cohort")

	return records, nil
}

func (g *CohortGenerator) patient(index int, opts GeneratorOptions) *domain.PatientRecord {
	patientID := fmt.Sprintf("PAT%03d", index)
	sex := domain.SexMale
	if g.rng.IntN(2) == 1 {
		sex = domain.SexFemale
	}
	onset := g.intBetween(1, 80)
	sampling := g.intBetween(onset, 90)
	haplogroup := haplogroupWeights[int(g.haplogroup.Rand())].name + strconv.Itoa(g.intBetween(1000, 9999))
	tissue := "Blood"
	if g.rng.IntN(2) == 1 {
		tissue = "Urine"
	}

	count := g.intBetween(opts.MinVariants, opts.MaxVariants)
	catalog := make([]domain.VariantCall, 0, count+1)
	if opts.IncludeHallmark {
		catalog = append(catalog, g.call(3243, "A", "G"))
	}
	for j := 0; j < count; j++ {
		catalog = append(catalog, g.call(g.intBetween(1, maxGeneratedPosition), g.base(), g.base()))
	}

	hpo := make(map[string]json.RawMessage)
	for _, term := range phenotypePool {
		if g.rng.IntN(3) == 0 {
			hpo[term] = json.RawMessage(`{}`)
		}
	}

	return &domain.PatientRecord{
		RecordID: patientID + ".json",
		Clinical: &domain.Clinical{
			PatientID:  patientID,
			Sex:        sex,
			AgeOfOnset: domain.Scalar(strconv.Itoa(onset)),
		},
		Sample: &domain.Sample{
			AgeAtSampling: domain.Scalar(strconv.Itoa(sampling)),
			Tissue:        tissue,
			Type:          "WGS",
			Haplogroup:    haplogroup,
		},
		Ontology: &domain.Ontology{HPO: hpo},
		Catalog:  catalog,
	}
}

func (g *CohortGenerator) call(pos int, ref, alt string) domain.VariantCall {
	// three-decimal fraction stored as a one-decimal percentage
	pct := math.Round(g.fraction.Rand()*1000) / 10
	return domain.VariantCall{
		Chr:              "chrMT",
		Pos:              domain.Scalar(strconv.Itoa(pos)),
		Ref:              ref,
		Alt:              alt,
		HeteroplasmyRate: domain.Scalar(domain.FormatPercent(pct)),
	}
}

func (g *CohortGenerator) base() string {
	return string("ATCG"[g.rng.IntN(4)])
}

// intBetween returns a uniform integer in [lo, hi]
func (g *CohortGenerator) intBetween(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

// WriteCSV writes the flat variant table, one line per catalog entry, with
// heteroplasmy as a fraction.
func WriteCSV(w io.Writer, records []*domain.PatientRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(GeneratedCSVColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, record := range records {
		for _, call := range record.Catalog {
			pct, err := call.Heteroplasmy()
			if err != nil {
				return fmt.Errorf("record %s: %w", record.RecordID, err)
			}
			line := []string{
				call.Chr,
				call.Pos.String(),
				call.Ref,
				call.Alt,
				strconv.FormatFloat(pct/100, 'f', 3, 64),
				record.Clinical.PatientID,
				record.Clinical.Sex,
				record.Clinical.AgeOfOnset.String(),
				record.Sample.AgeAtSampling.String(),
				record.Sample.Tissue,
				record.Sample.Haplogroup,
			}
			if err := cw.Write(line); err != nil {
				return fmt.Errorf("writing row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteRecords writes each record as <RecordID> into folder
func WriteRecords(folder string, records []*domain.PatientRecord) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("creating records folder: %w", err)
	}

	for _, record := range records {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", record.RecordID, err)
		}
		if err := os.WriteFile(filepath.Join(folder, record.RecordID), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", record.RecordID, err)
		}
	}

	return nil
}
