package mito

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RefSeqAccession is the revised Cambridge Reference Sequence (rCRS)
const RefSeqAccession = "NC_012920.1"

// GenomeLength is the length of the rCRS in bases
const GenomeLength = 16569

// HGVS substitution patterns accepted for mitochondrial variants
var (
	// m.3243A>G, NC_012920.1:m.3243A>G, MT:m.3243A>G
	mitoSubstitutionPattern = regexp.MustCompile(`^(?:(NC_012920\.1|NC_012920|MT|CHRM|CHRMT):)?M\.(\d+)([ATCGN])>([ATCGN])$`)
	// chrM:g.3243A>G
	genomicSubstitutionPattern = regexp.MustCompile(`^(CHRM|CHRMT|MT|NC_012920\.1):G\.(\d+)([ATCGN])>([ATCGN])$`)
)

// ParseHGVS parses a mitochondrial HGVS substitution into a label.
// Deletions, insertions and other HGVS forms are not representable as
// ref+pos+alt labels and are rejected.
func ParseHGVS(input string) (Label, error) {
	hgvs := strings.ToUpper(strings.TrimSpace(input))
	if hgvs == "" {
		return Label{}, fmt.Errorf("HGVS notation cannot be empty")
	}

	matches := mitoSubstitutionPattern.FindStringSubmatch(hgvs)
	if matches == nil {
		matches = genomicSubstitutionPattern.FindStringSubmatch(hgvs)
	}
	if matches == nil {
		return Label{}, fmt.Errorf("unsupported HGVS notation %q: expected a substitution such as m.3243A>G", input)
	}

	pos, err := strconv.Atoi(matches[2])
	if err != nil {
		return Label{}, fmt.Errorf("invalid position in %q: %w", input, err)
	}
	if pos < 1 || pos > GenomeLength {
		return Label{}, fmt.Errorf("position %d in %q is outside the mitochondrial genome (1-%d)", pos, input, GenomeLength)
	}
	if matches[3] == matches[4] {
		return Label{}, fmt.Errorf("reference and alternate alleles are identical in %q", input)
	}

	return Label{Ref: matches[3], Pos: pos, Alt: matches[4]}, nil
}

// HGVS renders the label as an rCRS substitution, e.g. m.3243A>G
func (l Label) HGVS() string {
	return fmt.Sprintf("m.%d%s>%s", l.Pos, l.Ref, l.Alt)
}

// ParseVariant accepts either a compact label (A3243G) or an HGVS
// substitution (m.3243A>G).
func ParseVariant(input string) (Label, error) {
	if strings.Contains(input, ">") {
		return ParseHGVS(input)
	}
	return ParseLabel(input)
}
