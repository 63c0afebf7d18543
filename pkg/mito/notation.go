// Package mito provides helpers for mitochondrial variant notation: allele
// alphabet checks and the compact ref+position+alt labels (e.g. "A3243G")
// used to name target variants.
package mito

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Nucleotides accepted in ref and alt alleles. N marks an unknown base.
const Nucleotides = "ATCGN"

var (
	// Compact label pattern: A3243G, T14484C, GA8993TT
	labelPattern = regexp.MustCompile(`^([ATCGN]+)(\d+)([ATCGN]+)$`)
)

// Label is a parsed variant label.
type Label struct {
	Ref string
	Pos int
	Alt string
}

// String renders the label in compact form.
func (l Label) String() string {
	return FormatLabel(l.Ref, l.Pos, l.Alt)
}

// FormatLabel builds the compact label ref+pos+alt.
func FormatLabel(ref string, pos int, alt string) string {
	return ref + strconv.Itoa(pos) + alt
}

// ValidAllele reports whether allele is non-empty and uses only A, T, C, G or N.
func ValidAllele(allele string) bool {
	if allele == "" {
		return false
	}
	for _, r := range allele {
		if !strings.ContainsRune(Nucleotides, r) {
			return false
		}
	}
	return true
}

// ParseLabel parses a compact variant label. Lowercase input is accepted.
func ParseLabel(label string) (Label, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	matches := labelPattern.FindStringSubmatch(label)
	if matches == nil {
		return Label{}, fmt.Errorf("invalid variant label %q", label)
	}

	pos, err := strconv.Atoi(matches[2])
	if err != nil {
		return Label{}, fmt.Errorf("invalid position in label %q: %w", label, err)
	}

	return Label{Ref: matches[1], Pos: pos, Alt: matches[3]}, nil
}

// ParseTargets splits a comma-separated target list ("A3243G, m.73A>G") into
// canonical labels. Empty entries are skipped and duplicates removed while
// keeping first-seen order.
func ParseTargets(list string) ([]string, error) {
	var targets []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, err := ParseVariant(part)
		if err != nil {
			return nil, err
		}
		key := label.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, key)
	}

	return targets, nil
}
