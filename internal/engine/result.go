package engine

import (
	"fmt"
	"time"

	"invoice-normalizer/internal/matcher"
	"invoice-normalizer/internal/models"
	"invoice-normalizer/internal/normalizer"
	"invoice-normalizer/pkg/errors"

	"github.com/samber/lo"
)

// Result is the normalized, cross-referenced dataset produced from one or
// more raw batches
type Result struct {
	BatchID string `json:"batchId,omitempty"`

	Invoices     []*models.NormalizedInvoice  `json:"invoices"`
	Products     []*models.NormalizedProduct  `json:"products"`
	Customers    []*models.NormalizedCustomer `json:"customers"`
	ExtraDetails string                       `json:"extraDetails"`

	Summary  *Summary     `json:"summary,omitempty"`
	Warnings []Warning    `json:"warnings,omitempty"`
	Files    []FileStatus `json:"files,omitempty"`

	Ambiguity *AmbiguityAnalysis `json:"ambiguity,omitempty"`
}

// Summary provides a high-level overview of a normalization run
type Summary struct {
	InvoiceCount  int `json:"invoiceCount"`
	ProductCount  int `json:"productCount"`
	CustomerCount int `json:"customerCount"`

	LinkedInvoices   int            `json:"linkedInvoices"`
	UnlinkedInvoices []string       `json:"unlinkedInvoices,omitempty"`
	LinkedItems      int            `json:"linkedItems"`
	UnlinkedItems    []UnlinkedItem `json:"unlinkedItems,omitempty"`

	Skipped        []normalizer.Skipped `json:"skipped,omitempty"`
	DegradedPhases []string             `json:"degradedPhases,omitempty"`

	GrandTotal float64 `json:"grandTotal"`

	StartedAt      time.Time                `json:"startedAt"`
	Duration       time.Duration            `json:"duration"`
	PhaseDurations map[string]time.Duration `json:"phaseDurations,omitempty"`
}

// UnlinkedItem is an invoice line whose name matched no product
type UnlinkedItem struct {
	InvoiceID int    `json:"invoiceId"`
	Name      string `json:"name"`
}

// Warning is a non-fatal problem encountered while processing
type Warning struct {
	Phase   string           `json:"phase"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Source  string           `json:"source,omitempty"`
}

// FileStatus records whether one input source was processed
type FileStatus struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	FileStatusSuccess = "success"
	FileStatusError   = "error"
)

// AmbiguityAnalysis collects the entity names on which linking is
// unreliable and the queries that actually hit more than one entity
type AmbiguityAnalysis struct {
	Customers *matcher.AmbiguityReport `json:"customers,omitempty"`
	Products  *matcher.AmbiguityReport `json:"products,omitempty"`
	Queries   []matcher.AmbiguousQuery `json:"queries,omitempty"`
}

// Count returns the number of reported problems
func (a *AmbiguityAnalysis) Count() int {
	if a == nil {
		return 0
	}
	return a.Customers.Count() + a.Products.Count() + len(a.Queries)
}

// WarningFromError converts an error into a warning for phase
func WarningFromError(phase string, err error) Warning {
	w := Warning{Phase: phase, Message: err.Error(), Code: errors.CodeUnexpectedError}
	if appErr, ok := errors.AsAppError(err); ok {
		w.Code = appErr.Code
		for _, key := range []string{"source", "file"} {
			if source, ok := appErr.Context[key].(string); ok {
				w.Source = source
				break
			}
		}
	}
	return w
}

// FindProduct returns the product with id, if any
func (r *Result) FindProduct(id int) (*models.NormalizedProduct, bool) {
	return lo.Find(r.Products, func(p *models.NormalizedProduct) bool { return p.ID == id })
}

// FindCustomer returns the customer with id, if any
func (r *Result) FindCustomer(id int) (*models.NormalizedCustomer, bool) {
	return lo.Find(r.Customers, func(c *models.NormalizedCustomer) bool { return c.ID == id })
}

// FindInvoice returns the invoice with id, if any
func (r *Result) FindInvoice(id int) (*models.NormalizedInvoice, bool) {
	return lo.Find(r.Invoices, func(inv *models.NormalizedInvoice) bool { return inv.ID == id })
}

// Clone returns a deep copy of the entity lists. Summary, warnings and file
// statuses are shared.
func (r *Result) Clone() *Result {
	out := *r
	out.Invoices = lo.Map(r.Invoices, func(inv *models.NormalizedInvoice, _ int) *models.NormalizedInvoice { return inv.Clone() })
	out.Products = lo.Map(r.Products, func(p *models.NormalizedProduct, _ int) *models.NormalizedProduct { return p.Clone() })
	out.Customers = lo.Map(r.Customers, func(c *models.NormalizedCustomer, _ int) *models.NormalizedCustomer { return c.Clone() })
	return &out
}

// ResultFromRecord rebuilds a result from a previously written JSON output.
// Only the entity lists and extraDetails are restored.
func ResultFromRecord(rec *models.Record) (*Result, error) {
	result := &Result{}
	if s, ok := rec.String("extraDetails"); ok {
		result.ExtraDetails = s
	}
	if s, ok := rec.String("batchId"); ok {
		result.BatchID = s
	}

	for _, key := range []string{"invoices", "products", "customers"} {
		list, err := asArray(key, rec.Get(key))
		if err != nil {
			return nil, err
		}
		for i, v := range list {
			entity, ok := v.(*models.Record)
			if !ok {
				return nil, errors.ValidationError(errors.CodeRecordSkipped,
					fmt.Sprintf("%s[%d]", key, i), models.TypeName(v), nil)
			}
			switch key {
			case "invoices":
				result.Invoices = append(result.Invoices, models.InvoiceFromRecord(entity))
			case "products":
				result.Products = append(result.Products, models.ProductFromRecord(entity))
			case "customers":
				result.Customers = append(result.Customers, models.CustomerFromRecord(entity))
			}
		}
	}

	return result, nil
}
