package matcher

import (
	"strings"
	"unicode/utf8"

	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/logger"
)

// NameMatcher decides whether a name found on an invoice refers to a
// normalized entity name. Implementations must be safe for concurrent use.
type NameMatcher interface {
	Name() string
	Matches(query, candidate string) bool
}

// ContainmentMatcher is the best-effort matcher: the names match when either
// lower-cased name is a substring of the other.
type ContainmentMatcher struct {
	// MinNameLength, when positive, requires equality for pairs whose
	// shorter name has fewer characters
	MinNameLength int
}

// Name implements NameMatcher
func (ContainmentMatcher) Name() string {
	return StrategyContainment.String()
}

// Matches implements NameMatcher
func (m ContainmentMatcher) Matches(query, candidate string) bool {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)

	if m.MinNameLength > 0 && q != c {
		shorter := utf8.RuneCountInString(q)
		if n := utf8.RuneCountInString(c); n < shorter {
			shorter = n
		}
		if shorter < m.MinNameLength {
			return false
		}
	}

	return strings.Contains(q, c) || strings.Contains(c, q)
}

// ExactMatcher matches names that are equal after lower-casing and
// collapsing runs of whitespace.
type ExactMatcher struct{}

// Name implements NameMatcher
func (ExactMatcher) Name() string {
	return StrategyExact.String()
}

// Matches implements NameMatcher
func (ExactMatcher) Matches(query, candidate string) bool {
	return normalizeName(query) == normalizeName(candidate)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Linker attaches customer and product references to normalized invoices
type Linker struct {
	Config  *MatchingConfig
	matcher NameMatcher
	logger  logger.Logger
}

// LinkOutcome describes what linking did to one invoice
type LinkOutcome struct {
	InvoiceID      int
	CustomerName   string
	CustomerLinked bool
	LinkedItems    int
	UnlinkedItems  []string
	Ambiguous      []AmbiguousQuery
}

// AmbiguousQuery is a name that matched more than one entity. The first
// candidate in insertion order was used.
type AmbiguousQuery struct {
	Entity       EntityKind `json:"entity"`
	InvoiceID    int        `json:"invoiceId"`
	Query        string     `json:"query"`
	ChosenID     int        `json:"chosenId"`
	CandidateIDs []int      `json:"candidateIds"`
}

// NewLinker creates a linker for the given configuration
func NewLinker(config *MatchingConfig) (*Linker, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Linker{
		Config:  config,
		matcher: config.NewNameMatcher(),
		logger:  logger.WithComponent("linker"),
	}, nil
}

// WithMatcher replaces the configured strategy with a custom NameMatcher
func (l *Linker) WithMatcher(m NameMatcher) *Linker {
	clone := *l
	clone.matcher = m
	return &clone
}

// WithLogger sets the logger used for link diagnostics
func (l *Linker) WithLogger(log logger.Logger) *Linker {
	clone := *l
	clone.logger = log.WithComponent("linker")
	return &clone
}

// Matcher returns the active NameMatcher
func (l *Linker) Matcher() NameMatcher {
	return l.matcher
}

// NewCustomerIndex indexes customers by name in slice order
func (l *Linker) NewCustomerIndex(customers []*models.NormalizedCustomer) *NameIndex {
	index := NewNameIndex(EntityCustomer, l.matcher, l.Config.MatchEmptyNames)
	for _, c := range customers {
		index.Add(c.ID, c.Name)
	}
	return index
}

// NewProductIndex indexes products by name in slice order
func (l *Linker) NewProductIndex(products []*models.NormalizedProduct) *NameIndex {
	index := NewNameIndex(EntityProduct, l.matcher, l.Config.MatchEmptyNames)
	for _, p := range products {
		index.Add(p.ID, p.Name)
	}
	return index
}

// LinkInvoice sets the invoice's CustomerID and each item's ProductID.
// References that do not resolve are set to nil, replacing any previous link.
func (l *Linker) LinkInvoice(inv *models.NormalizedInvoice, customers, products *NameIndex) LinkOutcome {
	outcome := LinkOutcome{
		InvoiceID:    inv.ID,
		CustomerName: inv.CustomerName(),
	}

	inv.CustomerID = nil
	if id, ok := l.resolve(customers, outcome.CustomerName, inv.ID, &outcome); ok {
		inv.CustomerID = &id
		outcome.CustomerLinked = true
	}

	for _, item := range inv.Items {
		name := item.Name()
		item.ProductID = nil
		if id, ok := l.resolve(products, name, inv.ID, &outcome); ok {
			item.ProductID = &id
			outcome.LinkedItems++
			continue
		}
		outcome.UnlinkedItems = append(outcome.UnlinkedItems, name)
	}

	if !outcome.CustomerLinked || len(outcome.UnlinkedItems) > 0 {
		l.logger.WithFields(logger.Fields{
			"invoice_id":      inv.ID,
			"customer":        outcome.CustomerName,
			"customer_linked": outcome.CustomerLinked,
			"unlinked_items":  len(outcome.UnlinkedItems),
		}).Debug("Invoice partially linked")
	}

	return outcome
}

func (l *Linker) resolve(index *NameIndex, query string, invoiceID int, outcome *LinkOutcome) (int, bool) {
	if index == nil {
		return 0, false
	}

	if !l.Config.ReportAmbiguous {
		return index.Lookup(query)
	}

	candidates := index.Candidates(query)
	if len(candidates) == 0 {
		return 0, false
	}

	if len(candidates) > 1 {
		ids := make([]int, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		outcome.Ambiguous = append(outcome.Ambiguous, AmbiguousQuery{
			Entity:       index.Kind(),
			InvoiceID:    invoiceID,
			Query:        query,
			ChosenID:     candidates[0].ID,
			CandidateIDs: ids,
		})
	}
	return candidates[0].ID, true
}
