package matcher

import (
	"github.com/samber/lo"
)

// EntityKind names the kind of entity an index holds
type EntityKind string

const (
	EntityCustomer EntityKind = "customer"
	EntityProduct  EntityKind = "product"
)

// IndexEntry is one indexed entity name
type IndexEntry struct {
	ID   int
	Name string
}

// NameIndex holds entity names in insertion order. Lookups scan the entries
// in that order so the earliest matching entity always wins.
type NameIndex struct {
	kind            EntityKind
	entries         []IndexEntry
	positions       map[int]int
	matcher         NameMatcher
	matchEmptyNames bool
}

// NewNameIndex creates an empty index
func NewNameIndex(kind EntityKind, matcher NameMatcher, matchEmptyNames bool) *NameIndex {
	if matcher == nil {
		matcher = ContainmentMatcher{}
	}
	return &NameIndex{
		kind:            kind,
		positions:       make(map[int]int),
		matcher:         matcher,
		matchEmptyNames: matchEmptyNames,
	}
}

// Add indexes an entity. Adding an id that is already present renames the
// entity without changing its position.
func (ni *NameIndex) Add(id int, name string) {
	if pos, exists := ni.positions[id]; exists {
		ni.entries[pos].Name = name
		return
	}
	ni.positions[id] = len(ni.entries)
	ni.entries = append(ni.entries, IndexEntry{ID: id, Name: name})
}

// Lookup returns the id of the first entity matching query
func (ni *NameIndex) Lookup(query string) (int, bool) {
	entry, found := lo.Find(ni.entries, func(e IndexEntry) bool {
		return ni.matches(query, e.Name)
	})
	return entry.ID, found
}

// Candidates returns every entity matching query in insertion order
func (ni *NameIndex) Candidates(query string) []IndexEntry {
	return lo.Filter(ni.entries, func(e IndexEntry, _ int) bool {
		return ni.matches(query, e.Name)
	})
}

// Entries returns a copy of the indexed entries
func (ni *NameIndex) Entries() []IndexEntry {
	out := make([]IndexEntry, len(ni.entries))
	copy(out, ni.entries)
	return out
}

// Clone returns an independent copy of the index sharing its matcher
func (ni *NameIndex) Clone() *NameIndex {
	out := NewNameIndex(ni.kind, ni.matcher, ni.matchEmptyNames)
	for _, e := range ni.entries {
		out.Add(e.ID, e.Name)
	}
	return out
}

// Len returns the number of indexed entities
func (ni *NameIndex) Len() int {
	return len(ni.entries)
}

// Kind returns the entity kind of the index
func (ni *NameIndex) Kind() EntityKind {
	return ni.kind
}

func (ni *NameIndex) matches(query, name string) bool {
	if !ni.matchEmptyNames && (query == "" || name == "") {
		return false
	}
	return ni.matcher.Matches(query, name)
}

// IndexStats provides statistics about an index
type IndexStats struct {
	Kind         EntityKind
	TotalEntries int
	UniqueNames  int
	EmptyNames   int
}

// GetIndexStats returns statistics about the index
func (ni *NameIndex) GetIndexStats() IndexStats {
	names := lo.Map(ni.entries, func(e IndexEntry, _ int) string {
		return normalizeName(e.Name)
	})

	return IndexStats{
		Kind:         ni.kind,
		TotalEntries: len(ni.entries),
		UniqueNames:  len(lo.Uniq(names)),
		EmptyNames:   lo.Count(names, ""),
	}
}
