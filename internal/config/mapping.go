package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/tokko-sync/internal/taxonomy"
	"github.com/yourorg/tokko-sync/tokko"
)

// Mapping is the optional YAML file that tunes how listings are mapped.
//
//	post_types:
//	  candidates: [es_property, property]
//	  default: es_property
//	legacy_term_ids: true
//	taxonomy:
//	  es_type: {Casa: 137}
//	fields:
//	  - key: es_property_bedrooms
//	    sources: [room_amount, suite_amount]
//	    transform: int
//	body_sources: [rich_description, description]
type Mapping struct {
	PostTypes struct {
		Candidates []string `yaml:"candidates"`
		Default    string   `yaml:"default"`
	} `yaml:"post_types"`
	LegacyTermIDs bool                        `yaml:"legacy_term_ids"`
	Taxonomy      map[string]map[string]int64 `yaml:"taxonomy"`
	Fields        []tokko.FieldRule           `yaml:"fields"`
	BodySources   []string                    `yaml:"body_sources"`
}

func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}
	return ParseMapping(data)
}

func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}
	for _, f := range m.Fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	for axis := range m.Taxonomy {
		if !knownAxis(axis) {
			return nil, fmt.Errorf("mapping: unknown taxonomy %q", axis)
		}
	}
	return &m, nil
}

func knownAxis(name string) bool {
	for _, a := range tokko.Axes {
		if string(a) == name {
			return true
		}
	}
	return false
}

// Mapper builds the listing mapper; a nil Mapping yields the defaults.
func (m *Mapping) Mapper() *tokko.Mapper {
	if m == nil {
		return tokko.NewMapper(nil)
	}
	mp := tokko.NewMapper(tokko.MergeFields(tokko.DefaultFields(), m.Fields))
	if len(m.BodySources) > 0 {
		mp.BodySources = m.BodySources
	}
	return mp
}

// TermTable builds the static term table. Entries from the file override the
// legacy ids when both are enabled.
func (m *Mapping) TermTable() taxonomy.Table {
	if m == nil {
		return taxonomy.Table{}
	}
	t := taxonomy.Table{}
	if m.LegacyTermIDs {
		t = taxonomy.LegacyTable()
	}
	for axis, labels := range taxonomy.NewTable(m.Taxonomy) {
		if t[axis] == nil {
			t[axis] = labels
			continue
		}
		for k, id := range labels {
			t[axis][k] = id
		}
	}
	return t
}
