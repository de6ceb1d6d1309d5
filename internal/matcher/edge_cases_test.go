package matcher

import (
	"encoding/json"
	"strings"
	"testing"
)

func createTestAmbiguousCustomers() *NameIndex {
	index := NewNameIndex(EntityCustomer, ContainmentMatcher{}, false)
	index.Add(1, "A")
	index.Add(2, "Acme")
	index.Add(3, "Globex")
	index.Add(4, "acme ")
	index.Add(5, "ACME")
	return index
}

func TestAmbiguityDetector_DetectDuplicates(t *testing.T) {
	detector := NewAmbiguityDetector(nil)
	groups := detector.DetectDuplicates(createTestAmbiguousCustomers())

	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}

	group := groups[0]
	if len(group.IDs) != 3 || group.IDs[0] != 2 || group.IDs[1] != 4 || group.IDs[2] != 5 {
		t.Errorf("unexpected duplicate ids %v", group.IDs)
	}
	if !strings.Contains(group.Reason, "only id 2 can be linked") {
		t.Errorf("unexpected reason %q", group.Reason)
	}
}

func TestAmbiguityDetector_DetectShadowedNames(t *testing.T) {
	detector := NewAmbiguityDetector(nil)
	pairs := detector.DetectShadowedNames(createTestAmbiguousCustomers())

	// "A" shadows all three spellings of Acme
	if len(pairs) != 3 {
		t.Fatalf("expected 3 shadowed pairs, got %d: %+v", len(pairs), pairs)
	}
	for _, pair := range pairs {
		if pair.FirstID != 1 {
			t.Errorf("expected 'A' to be the shadowing entity, got %d", pair.FirstID)
		}
		if pair.Kind != AmbiguityShadowedName {
			t.Errorf("expected shadowed kind, got %s", pair.Kind)
		}
	}
}

func TestAmbiguityDetector_ExactStrategyHasNoShadows(t *testing.T) {
	index := NewNameIndex(EntityProduct, ExactMatcher{}, false)
	index.Add(1, "Rod")
	index.Add(2, "Steel Rod")

	report := NewAmbiguityDetector(StrictMatchingConfig()).Analyze(index)
	if report.Count() != 0 {
		t.Errorf("expected no ambiguity under exact matching, got %d", report.Count())
	}
}

func TestAmbiguityDetector_Analyze_Truncates(t *testing.T) {
	config := DefaultMatchingConfig()
	config.MaxAmbiguityReports = 1

	report := NewAmbiguityDetector(config).Analyze(createTestAmbiguousCustomers())

	if len(report.Shadowed) != 1 {
		t.Errorf("expected shadowed pairs capped at 1, got %d", len(report.Shadowed))
	}
	if !report.Truncated {
		t.Error("expected report to be marked truncated")
	}
	if report.Entity != EntityCustomer {
		t.Errorf("expected customer entity, got %s", report.Entity)
	}
}

func TestAmbiguityKind_JSON(t *testing.T) {
	data, err := json.Marshal(AmbiguousPair{Kind: AmbiguityShadowedName})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"shadowed"`) {
		t.Errorf("expected kind rendered by name, got %s", data)
	}
}

func TestAmbiguityReport_NilCount(t *testing.T) {
	var report *AmbiguityReport
	if report.Count() != 0 {
		t.Error("expected nil report to count zero")
	}
}
