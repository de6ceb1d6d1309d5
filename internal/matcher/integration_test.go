package matcher

import (
	"fmt"
	"testing"
	"time"

	"invoice-normalizer/internal/models"
)

// TestFullLinkingWorkflow links a realistic batch under every configuration
func TestFullLinkingWorkflow(t *testing.T) {
	customers, products := createComprehensiveEntityDataset()
	invoices := createComprehensiveInvoiceDataset()

	tests := []struct {
		name             string
		config           *MatchingConfig
		expectedCustomer []int
	}{
		{"strict", StrictMatchingConfig(), []int{1, 0, 0, 3}},
		{"default", DefaultMatchingConfig(), []int{1, 2, 1, 3}},
		{"relaxed", RelaxedMatchingConfig(), []int{1, 2, 1, 3}},
		{"no_empty_names", noEmptyNamesConfig(), []int{1, 2, 0, 3}},
	}

	for _, tt := range tests {
		t.Run("Config_"+tt.name, func(t *testing.T) {
			linker, err := NewLinker(tt.config)
			if err != nil {
				t.Fatalf("Failed to create linker: %v", err)
			}
			customerIndex := linker.NewCustomerIndex(customers)
			productIndex := linker.NewProductIndex(products)

			for i, template := range invoices {
				inv := template.Clone()
				linker.LinkInvoice(inv, customerIndex, productIndex)

				got := 0
				if inv.CustomerID != nil {
					got = *inv.CustomerID
				}
				if got != tt.expectedCustomer[i] {
					t.Errorf("invoice %d: expected customer %d, got %d", inv.ID, tt.expectedCustomer[i], got)
				}
			}
		})
	}
}

func noEmptyNamesConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.MatchEmptyNames = false
	return config
}

// TestLinkingDoesNotMutateTemplates verifies that linking a clone leaves the
// original invoice untouched
func TestLinkingDoesNotMutateTemplates(t *testing.T) {
	customers, products := createComprehensiveEntityDataset()
	invoices := createComprehensiveInvoiceDataset()

	linker, _ := NewLinker(nil)
	customerIndex := linker.NewCustomerIndex(customers)
	productIndex := linker.NewProductIndex(products)

	for _, template := range invoices {
		linker.LinkInvoice(template.Clone(), customerIndex, productIndex)
	}

	for _, inv := range invoices {
		if inv.CustomerID != nil {
			t.Errorf("invoice %d: template customer was linked", inv.ID)
		}
		for _, item := range inv.Items {
			if item.ProductID != nil {
				t.Errorf("invoice %d: template item %q was linked", inv.ID, item.Name())
			}
		}
	}
}

// TestAmbiguityAnalysisIntegration checks that, for this dataset, the
// ambiguous product queries seen while linking involve reported pairs
func TestAmbiguityAnalysisIntegration(t *testing.T) {
	customers, products := createComprehensiveEntityDataset()
	invoices := createComprehensiveInvoiceDataset()

	linker, _ := NewLinker(DefaultMatchingConfig())
	productIndex := linker.NewProductIndex(products)
	report := NewAmbiguityDetector(linker.Config).Analyze(productIndex)

	shadowed := make(map[[2]int]bool)
	for _, pair := range report.Shadowed {
		shadowed[[2]int{pair.FirstID, pair.SecondID}] = true
	}
	if len(shadowed) == 0 {
		t.Fatal("Expected shadowed product names in dataset")
	}

	customerIndex := linker.NewCustomerIndex(customers)
	for _, template := range invoices {
		outcome := linker.LinkInvoice(template.Clone(), customerIndex, productIndex)
		for _, amb := range outcome.Ambiguous {
			// an empty name is contained in every product name
			if amb.Entity != EntityProduct || amb.Query == "" {
				continue
			}
			ids := amb.CandidateIDs
			for j := 1; j < len(ids); j++ {
				if !shadowed[[2]int{ids[0], ids[j]}] {
					t.Errorf("query %q matched %v but pair (%d, %d) was not reported",
						amb.Query, ids, ids[0], ids[j])
				}
			}
		}
	}
}

// TestPerformanceWithLargeDataset tests linking speed on a large batch
func TestPerformanceWithLargeDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	products := make([]*models.NormalizedProduct, 2000)
	for i := range products {
		products[i] = &models.NormalizedProduct{ID: i + 1, Name: fmt.Sprintf("Part-%05d", i)}
	}

	linker, _ := NewLinker(DefaultMatchingConfig())
	productIndex := linker.NewProductIndex(products)

	start := time.Now()
	linked := 0
	for i := 0; i < 500; i++ {
		inv := newInvoice(i+1, nil, fmt.Sprintf("part-%05d (box of 10)", i*3))
		outcome := linker.LinkInvoice(inv, nil, productIndex)
		linked += outcome.LinkedItems
	}
	elapsed := time.Since(start)

	t.Logf("Linked %d/500 items against 2000 products in %v", linked, elapsed)
	if linked != 500 {
		t.Errorf("Expected every item to link, got %d", linked)
	}
	if elapsed > 10*time.Second {
		t.Errorf("Linking took too long: %v (expected < 10s)", elapsed)
	}
}

func createComprehensiveEntityDataset() ([]*models.NormalizedCustomer, []*models.NormalizedProduct) {
	customers := []*models.NormalizedCustomer{
		{ID: 1, Name: "Acme Traders"},
		{ID: 2, Name: "Globex"},
		{ID: 3, Name: "Initech Ltd"},
	}
	products := []*models.NormalizedProduct{
		{ID: 1, Name: "Rod"},
		{ID: 2, Name: "Steel Rod"},
		{ID: 3, Name: "Copper Pipe"},
		{ID: 4, Name: "Pipe Fitting"},
	}
	return customers, products
}

func createComprehensiveInvoiceDataset() []*models.NormalizedInvoice {
	return []*models.NormalizedInvoice{
		newInvoice(1, "acme traders", "Steel Rod 10mm", "Copper Pipe"),
		newInvoice(2, models.RecordOf("name", "Globex Corporation"), "Copper Pipe 2in"),
		newInvoice(3, "", "Rod"),
		newInvoice(4, models.RecordOf("name", "Initech Ltd"), "Pipe Fitting 1/2in", nil),
	}
}
