package matcher

import (
	"fmt"
)

// AmbiguityKind classifies an entity naming problem
type AmbiguityKind int

const (
	// AmbiguityDuplicateName means two entities carry the same name; the
	// later one can never be linked.
	AmbiguityDuplicateName AmbiguityKind = iota

	// AmbiguityShadowedName means the names differ but match each other, so
	// any query matching both links to the earlier entity.
	AmbiguityShadowedName
)

// String returns the string representation of AmbiguityKind
func (k AmbiguityKind) String() string {
	switch k {
	case AmbiguityDuplicateName:
		return "duplicate"
	case AmbiguityShadowedName:
		return "shadowed"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON output
func (k AmbiguityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DuplicateGroup is a set of entities sharing one normalized name
type DuplicateGroup struct {
	Entity EntityKind `json:"entity"`
	Name   string     `json:"name"`
	IDs    []int      `json:"ids"`
	Reason string     `json:"reason"`
}

// AmbiguousPair is two distinct entity names that match each other
type AmbiguousPair struct {
	Kind       AmbiguityKind `json:"kind"`
	Entity     EntityKind    `json:"entity"`
	FirstID    int           `json:"firstId"`
	FirstName  string        `json:"firstName"`
	SecondID   int           `json:"secondId"`
	SecondName string        `json:"secondName"`
	Reason     string        `json:"reason"`
}

// AmbiguityReport collects the naming problems of one index
type AmbiguityReport struct {
	Entity     EntityKind       `json:"entity"`
	Duplicates []DuplicateGroup `json:"duplicates"`
	Shadowed   []AmbiguousPair  `json:"shadowed"`
	Truncated  bool             `json:"truncated"`
}

// Count returns the number of reported problems
func (r *AmbiguityReport) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Duplicates) + len(r.Shadowed)
}

// Lines renders each problem as one line of text
func (r *AmbiguityReport) Lines() []string {
	if r == nil {
		return nil
	}
	lines := make([]string, 0, r.Count())
	for _, d := range r.Duplicates {
		lines = append(lines, fmt.Sprintf("%s %s: %s", d.Entity, AmbiguityDuplicateName, d.Reason))
	}
	for _, p := range r.Shadowed {
		lines = append(lines, fmt.Sprintf("%s %s: %s", p.Entity, p.Kind, p.Reason))
	}
	return lines
}

// AmbiguityDetector finds entity names on which linking is unreliable. It
// only reports; linking behavior is not changed.
type AmbiguityDetector struct {
	Config *MatchingConfig
}

// NewAmbiguityDetector creates a new detector
func NewAmbiguityDetector(config *MatchingConfig) *AmbiguityDetector {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &AmbiguityDetector{Config: config}
}

// Analyze runs every check over an index
func (ad *AmbiguityDetector) Analyze(index *NameIndex) *AmbiguityReport {
	report := &AmbiguityReport{
		Entity:     index.Kind(),
		Duplicates: ad.DetectDuplicates(index),
		Shadowed:   ad.DetectShadowedNames(index),
	}

	if limit := ad.Config.MaxAmbiguityReports; limit > 0 {
		if len(report.Duplicates) > limit {
			report.Duplicates = report.Duplicates[:limit]
			report.Truncated = true
		}
		if len(report.Shadowed) > limit {
			report.Shadowed = report.Shadowed[:limit]
			report.Truncated = true
		}
	}
	return report
}

// DetectDuplicates groups entities whose names are equal after lower-casing
// and collapsing whitespace
func (ad *AmbiguityDetector) DetectDuplicates(index *NameIndex) []DuplicateGroup {
	var groups []DuplicateGroup
	entries := index.Entries()
	processed := make(map[int]bool)

	for i, first := range entries {
		if processed[first.ID] {
			continue
		}
		key := normalizeName(first.Name)
		if key == "" {
			continue
		}

		ids := []int{first.ID}
		for j := i + 1; j < len(entries); j++ {
			second := entries[j]
			if processed[second.ID] {
				continue
			}
			if normalizeName(second.Name) == key {
				ids = append(ids, second.ID)
				processed[second.ID] = true
			}
		}

		if len(ids) > 1 {
			groups = append(groups, DuplicateGroup{
				Entity: index.Kind(),
				Name:   first.Name,
				IDs:    ids,
				Reason: fmt.Sprintf("%d %ss named %q; only id %d can be linked", len(ids), index.Kind(), first.Name, first.ID),
			})
		}
		processed[first.ID] = true
	}

	return groups
}

// DetectShadowedNames lists pairs of distinct names that match each other
// under the index's matcher, e.g. "A" and "Acme" under containment
func (ad *AmbiguityDetector) DetectShadowedNames(index *NameIndex) []AmbiguousPair {
	var pairs []AmbiguousPair
	entries := index.Entries()

	for i, first := range entries {
		firstKey := normalizeName(first.Name)
		if firstKey == "" {
			continue
		}
		for _, second := range entries[i+1:] {
			secondKey := normalizeName(second.Name)
			if secondKey == "" || secondKey == firstKey {
				continue
			}
			if !index.matches(first.Name, second.Name) {
				continue
			}
			pairs = append(pairs, AmbiguousPair{
				Kind:       AmbiguityShadowedName,
				Entity:     index.Kind(),
				FirstID:    first.ID,
				FirstName:  first.Name,
				SecondID:   second.ID,
				SecondName: second.Name,
				Reason:     ad.shadowReason(first, second),
			})
		}
	}

	return pairs
}

func (ad *AmbiguityDetector) shadowReason(first, second IndexEntry) string {
	return fmt.Sprintf("%q and %q match each other; names matching both link to id %d",
		first.Name, second.Name, first.ID)
}
