// Command batch_generator writes synthetic extraction batches for exercising
// the normalizer on larger inputs.
//
//	go run ./testdata/generators -files 12 -invoices 500 -pattern noisy -output-dir testdata/generated
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"invoice-normalizer/internal/models"

	"github.com/shopspring/decimal"
)

// BatchGenerator generates batch JSON files
type BatchGenerator struct {
	Files     int
	Invoices  int
	StartDate time.Time
	Pattern   string
	rng       *rand.Rand
}

type catalogProduct struct {
	Name     string
	Variants []string
	Price    decimal.Decimal
	Percent  int
}

type catalogCustomer struct {
	Name     string
	Variants []string
	Phone    string
}

var catalog = []catalogProduct{
	{"Rod", []string{"Steel Rod 10mm", "ROD", "Steel rod"}, decimal.NewFromInt(50), 18},
	{"Copper Wire", []string{"Copper Wire 2.5sqmm", "copper wire"}, decimal.NewFromInt(100), 18},
	{"Bolt", []string{"Hex Bolt M8", "bolt"}, decimal.RequireFromString("12.5"), 5},
	{"Cement", []string{"Cement 50kg", "OPC Cement"}, decimal.NewFromInt(380), 28},
	{"Paint", []string{"Enamel Paint 1L", "paint"}, decimal.RequireFromString("245.75"), 12},
}

var customers = []catalogCustomer{
	{"Smith", []string{"John Smith Pvt Ltd", "J. Smith", "SMITH"}, "9876543210"},
	{"Acme Traders", []string{"Acme Traders", "ACME TRADERS LLP"}, "9123456780"},
	{"Walk-in", []string{"Walk-in", "walk-in customer"}, ""},
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for batch files")
		files     = flag.Int("files", 4, "Number of batch files to generate")
		invoices  = flag.Int("invoices", 100, "Invoices per file")
		startDate = flag.String("start-date", "2024-01-01", "First invoice date (YYYY-MM-DD)")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		pattern   = flag.String("pattern", "clean", "Generation pattern: clean, noisy")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	if *pattern != "clean" && *pattern != "noisy" {
		log.Fatalf("Unknown pattern: %s", *pattern)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &BatchGenerator{
		Files:     *files,
		Invoices:  *invoices,
		StartDate: start,
		Pattern:   *pattern,
		rng:       rand.New(rand.NewSource(*seed)),
	}

	for i := 0; i < generator.Files; i++ {
		path := filepath.Join(*outputDir, fmt.Sprintf("batch_%03d.json", i+1))
		if err := generator.WriteBatch(path, i); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	fmt.Printf("Generated %d batch files with %d invoices each in %s\n", generator.Files, generator.Invoices, *outputDir)
	fmt.Printf("Pattern: %s\n", generator.Pattern)
	fmt.Printf("Seed used: %d\n", *seed)
}

// WriteBatch writes the index-th batch file. Only the first file carries the
// product and customer lists, so later files link across files.
func (bg *BatchGenerator) WriteBatch(path string, index int) error {
	batch := models.NewRecord()

	invoices := make([]interface{}, 0, bg.Invoices)
	for i := 0; i < bg.Invoices; i++ {
		serial := fmt.Sprintf("INV-%03d-%05d", index+1, i+1)
		invoices = append(invoices, bg.invoice(serial))
	}
	if bg.Pattern == "noisy" {
		// records the extractor could not turn into objects
		invoices = append(invoices, "unparseable page", nil)
	}
	batch.Set("invoices", invoices)

	if index == 0 {
		batch.Set("products", bg.products())
		batch.Set("customers", bg.customers())
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (bg *BatchGenerator) invoice(serial string) *models.Record {
	customer := customers[bg.rng.Intn(len(customers))]
	date := bg.StartDate.AddDate(0, 0, bg.rng.Intn(365))

	inv := models.RecordOf(
		"serial", serial,
		"date", date.Format("2006-01-02"),
		"customer", bg.pick(customer.Variants),
	)

	lines := 1 + bg.rng.Intn(4)
	items := make([]interface{}, 0, lines)
	percent := 0
	for i := 0; i < lines; i++ {
		p := catalog[bg.rng.Intn(len(catalog))]
		percent = p.Percent
		items = append(items, bg.item(p))
	}
	inv.Set("items", items)

	// a GST split on the invoice lets lines without their own rate fall back
	half := decimal.NewFromInt(int64(percent)).Div(decimal.NewFromInt(2))
	inv.Set("taxes", models.RecordOf(
		"CGST", models.RecordOf("percent", half.InexactFloat64()),
		"SGST", models.RecordOf("percent", half.InexactFloat64()),
	))

	if bg.rng.Float64() < 0.2 {
		shipping := decimal.NewFromFloat(bg.rng.Float64() * 100).Round(2)
		inv.Set("charges", []interface{}{
			models.RecordOf("label", "Shipping", "amount", shipping.InexactFloat64()),
		})
	}

	return inv
}

// item renders a line in one of the shapes extractors produce
func (bg *BatchGenerator) item(p catalogProduct) *models.Record {
	qty := 1 + bg.rng.Intn(10)
	name := p.Name
	if bg.Pattern == "noisy" {
		name = bg.pick(p.Variants)
	}

	rate := decimal.NewFromInt(int64(p.Percent)).Div(decimal.NewFromInt(100))
	incl := p.Price.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)

	switch bg.rng.Intn(4) {
	case 0:
		return models.RecordOf("name", name, "qty", qty, "unitPrice", p.Price.InexactFloat64())
	case 1:
		return models.RecordOf("name", name, "quantity", fmt.Sprintf("%d", qty),
			"unitPriceExclTax", p.Price.String(), "taxPercent", p.Percent)
	case 2:
		return models.RecordOf("name", name, "qty", qty,
			"unitPriceInclTax", incl.InexactFloat64(), "tax", fmt.Sprintf("%d%%", p.Percent))
	default:
		amount := incl.Mul(decimal.NewFromInt(int64(qty)))
		return models.RecordOf("name", name, "qty", qty, "amount", "Rs "+amount.StringFixed(2))
	}
}

func (bg *BatchGenerator) products() []interface{} {
	out := make([]interface{}, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, models.RecordOf("name", p.Name, "tax", fmt.Sprintf("%d%%", p.Percent)))
	}
	return out
}

func (bg *BatchGenerator) customers() []interface{} {
	out := make([]interface{}, 0, len(customers))
	for _, c := range customers {
		rec := models.RecordOf("name", c.Name)
		if c.Phone != "" {
			rec.Set("phone", c.Phone)
		}
		out = append(out, rec)
	}
	return out
}

func (bg *BatchGenerator) pick(values []string) string {
	return values[bg.rng.Intn(len(values))]
}
