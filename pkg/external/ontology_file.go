package external

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// obographsDocument is the subset of the OBO Graphs JSON layout of hp.json
// needed to map term ids to labels.
type obographsDocument struct {
	Graphs []struct {
		Nodes []struct {
			ID    string `json:"id"`
			Label string `json:"lbl"`
		} `json:"nodes"`
	} `json:"graphs"`
}

// OntologyFile resolves HPO names from a local hp.json release
type OntologyFile struct {
	path  string
	names map[string]string
}

// LoadOntologyFile reads an OBO Graphs JSON file. Node ids are URLs ending in
// the underscore form of the term (".../HP_0001250").
func LoadOntologyFile(path string) (*OntologyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ontology file: %w", err)
	}

	var doc obographsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ontology file %s: %w", path, err)
	}
	if len(doc.Graphs) == 0 {
		return nil, fmt.Errorf("ontology file %s has no graphs", path)
	}

	names := make(map[string]string, len(doc.Graphs[0].Nodes))
	for _, node := range doc.Graphs[0].Nodes {
		key := node.ID[strings.LastIndex(node.ID, "/")+1:]
		names[key] = node.Label
	}

	return &OntologyFile{path: path, names: names}, nil
}

// ResolveName returns the label for an id in either "HP:0001250" or
// "HP_0001250" form. Unknown ids resolve to an empty name.
func (o *OntologyFile) ResolveName(_ context.Context, hpoID string) (string, error) {
	return o.names[strings.ReplaceAll(strings.TrimSpace(hpoID), ":", "_")], nil
}

// Len returns the number of terms loaded
func (o *OntologyFile) Len() int {
	return len(o.names)
}
