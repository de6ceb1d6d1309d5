// Package matcher links free-text invoice names to normalized entities.
//
// Extracted documents name the same customer or product in different ways:
// "J. Smith" on one invoice, "John Smith Enterprises" on another, a product
// list entry "Rod" against a line item "Steel Rod 10mm". The linker resolves
// each invoice customer and each line item to the first entity whose name
// matches under the configured NameMatcher strategy.
//
// The default strategy is best-effort bidirectional containment:
//   - case-insensitive
//   - either name may contain the other
//   - entities are tried in insertion order and the first match wins
//
// Containment can false-positive on short or common names ("A" matches
// "Acme"). That behavior is kept; AmbiguityDetector reports the entity names
// where it can happen so the output can be reviewed.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	linker, err := matcher.NewLinker(config)
//	customers := linker.NewCustomerIndex(normalizedCustomers)
//	products := linker.NewProductIndex(normalizedProducts)
//	outcome := linker.LinkInvoice(invoice, customers, products)
package matcher

import (
	"fmt"
	"strings"
)

// Strategy selects the NameMatcher used for linking
type Strategy int

const (
	// StrategyContainment links when either lower-cased name contains the
	// other. This is the best-effort default.
	StrategyContainment Strategy = iota

	// StrategyExact links only when the names are equal after lower-casing
	// and collapsing whitespace.
	StrategyExact
)

// String returns the string representation of Strategy
func (s Strategy) String() string {
	switch s {
	case StrategyContainment:
		return "containment"
	case StrategyExact:
		return "exact"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a configuration value into a Strategy
func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "containment", "contains":
		return StrategyContainment, nil
	case "exact":
		return StrategyExact, nil
	default:
		return StrategyContainment, fmt.Errorf("unknown matching strategy %q (expected containment or exact)", value)
	}
}

// MatchingConfig holds configuration parameters for name linking.
//
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): containment; an empty name is contained in
//     every name and links to the first entity
//   - StrictMatchingConfig(): exact names only
//   - RelaxedMatchingConfig(): the default without ambiguity reporting
type MatchingConfig struct {
	// Strategy selects the name comparison
	Strategy Strategy `json:"strategy"`

	// MatchEmptyNames lets an empty query or entity name take part in
	// containment. An empty string is contained in every name, so with this
	// set an unnamed line item links to the first product.
	MatchEmptyNames bool `json:"match_empty_names"`

	// MinNameLength requires the shorter name of a containment pair to have
	// at least this many characters; shorter pairs must be equal. 0 disables
	// the check.
	MinNameLength int `json:"min_name_length"`

	// ReportAmbiguous records queries that matched more than one entity
	ReportAmbiguous bool `json:"report_ambiguous"`

	// MaxAmbiguityReports caps the number of recorded ambiguous queries and
	// entity pairs. 0 means unlimited.
	MaxAmbiguityReports int `json:"max_ambiguity_reports"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Strategy:            StrategyContainment,
		MatchEmptyNames:     true,
		MinNameLength:       0,
		ReportAmbiguous:     true,
		MaxAmbiguityReports: 100,
	}
}

// StrictMatchingConfig returns a configuration for exact name matching
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Strategy:            StrategyExact,
		MatchEmptyNames:     false,
		MinNameLength:       0,
		ReportAmbiguous:     true,
		MaxAmbiguityReports: 100,
	}
}

// RelaxedMatchingConfig returns a configuration for relaxed matching
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Strategy:            StrategyContainment,
		MatchEmptyNames:     true,
		MinNameLength:       0,
		ReportAmbiguous:     false,
		MaxAmbiguityReports: 0,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.Strategy != StrategyContainment && mc.Strategy != StrategyExact {
		return fmt.Errorf("unknown matching strategy: %d", mc.Strategy)
	}

	if mc.MinNameLength < 0 {
		return fmt.Errorf("min name length cannot be negative: %d", mc.MinNameLength)
	}

	if mc.MaxAmbiguityReports < 0 {
		return fmt.Errorf("max ambiguity reports cannot be negative: %d", mc.MaxAmbiguityReports)
	}

	if mc.Strategy == StrategyExact && mc.MinNameLength > 0 {
		return fmt.Errorf("min name length only applies to the containment strategy")
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// NewNameMatcher builds the NameMatcher selected by the configuration
func (mc *MatchingConfig) NewNameMatcher() NameMatcher {
	switch mc.Strategy {
	case StrategyExact:
		return ExactMatcher{}
	default:
		return ContainmentMatcher{MinNameLength: mc.MinNameLength}
	}
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Strategy: %s, MatchEmptyNames: %t, MinNameLength: %d, ReportAmbiguous: %t}",
		mc.Strategy, mc.MatchEmptyNames, mc.MinNameLength, mc.ReportAmbiguous)
}
