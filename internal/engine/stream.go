package engine

import (
	"context"
	"sync"
	"time"

	"invoice-normalizer/internal/aggregator"
	"invoice-normalizer/internal/matcher"
	"invoice-normalizer/internal/models"
	"invoice-normalizer/internal/normalizer"
	"invoice-normalizer/internal/pricing"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Progress status values
const (
	ProgressProcessing = "processing"
	ProgressComplete   = "complete"
	ProgressError      = "error"
	ProgressFinished   = "finished"
)

// Progress reports the state of a stream after each source
type Progress struct {
	Source      string        `json:"source,omitempty"`
	CurrentFile int           `json:"currentFile"`
	TotalFiles  int           `json:"totalFiles,omitempty"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Invoices    int           `json:"invoices"`
	Products    int           `json:"products"`
	Customers   int           `json:"customers"`
	Elapsed     time.Duration `json:"elapsed"`
}

// ProgressCallback is called to report stream progress
type ProgressCallback func(Progress)

// Increment is the output of one source added to a stream. Products and
// customers are as normalized, before aggregation.
type Increment struct {
	Source      string                       `json:"source"`
	CurrentFile int                          `json:"currentFile"`
	Invoices    []*models.NormalizedInvoice  `json:"invoices"`
	Products    []*models.NormalizedProduct  `json:"products"`
	Customers   []*models.NormalizedCustomer `json:"customers"`
	Skipped     []normalizer.Skipped         `json:"skipped,omitempty"`
}

// Stream normalizes a sequence of batches under one session. Ids continue
// across batches and each batch links against every entity seen so far.
type Stream struct {
	service *Service
	session *normalizer.Session
	logger  logger.Logger

	mu            sync.Mutex
	invoices      []*models.NormalizedInvoice
	products      []*models.NormalizedProduct
	customers     []*models.NormalizedCustomer
	customerIndex *matcher.NameIndex
	productIndex  *matcher.NameIndex
	queries       []matcher.AmbiguousQuery
	skipped       []normalizer.Skipped
	files         []FileStatus
	warnings      []Warning
	durations     map[string]time.Duration

	callbacks  []ProgressCallback
	tracker    *logger.ProgressTracker
	expected   int
	trackFiles bool
	started    time.Time
	finished   bool
}

// NewStream opens a stream with fresh id counters
func (s *Service) NewStream() *Stream {
	session := normalizer.NewSession().WithLogger(s.logger)
	return &Stream{
		service:       s,
		session:       session,
		logger:        s.logger.WithField("batch_id", session.BatchID.String()),
		customerIndex: s.linker.NewCustomerIndex(nil),
		productIndex:  s.linker.NewProductIndex(nil),
		durations:     make(map[string]time.Duration),
		trackFiles:    true,
		started:       time.Now(),
	}
}

// BatchID returns the id of the stream's session
func (st *Stream) BatchID() string {
	return st.session.BatchID.String()
}

// Expect sets the number of sources the caller intends to add. It only
// affects progress reporting.
func (st *Stream) Expect(total int) *Stream {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.expected = total
	if st.service.config.ProgressReporting && total > 0 {
		st.tracker = logger.NewProgressTracker(logger.ProgressConfig{
			Operation: "normalize",
			Total:     int64(total),
			Logger:    st.logger,
		})
	}
	return st
}

// AddProgressCallback adds a progress callback function
func (st *Stream) AddProgressCallback(callback ProgressCallback) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.callbacks = append(st.callbacks, callback)
}

// Add normalizes, links and prices one batch. A cancelled context aborts the
// batch; nothing from it is kept, although ids it consumed are not reused.
func (st *Stream) Add(ctx context.Context, source string, batch *RawBatch) (*Increment, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.finished {
		return nil, errors.New(errors.CategoryInternal, errors.CodeUnexpectedError, "stream already finished").
			WithContext("source", source)
	}
	if batch == nil {
		batch = &RawBatch{}
	}

	current := len(st.files) + 1
	st.emit(Progress{Source: source, CurrentFile: current, Status: ProgressProcessing})

	log := st.logger.WithField("source", source)
	st.session.WithSource(source)
	inc := &Increment{Source: source, CurrentFile: current}

	start := time.Now()
	products, skippedProducts := st.session.NormalizeProducts(batch.Products)
	customers, skippedCustomers := st.session.NormalizeCustomers(batch.Customers)
	inc.Skipped = append(append(inc.Skipped, skippedProducts...), skippedCustomers...)
	st.durations[PhaseNormalize] += time.Since(start)

	// entities of this batch are visible to its own invoices
	customerIndex := st.customerIndex.Clone()
	productIndex := st.productIndex.Clone()
	for _, c := range customers {
		customerIndex.Add(c.ID, c.Name)
	}
	for _, p := range products {
		productIndex.Add(p.ID, p.Name)
	}

	start = time.Now()
	var queries []matcher.AmbiguousQuery
	for i, v := range batch.Invoices {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Normalization cancelled")
			return nil, errors.InternalError(errors.CodeCancelled, "normalization of "+sourceLabel(source), err).
				WithContext("source", source)
		}

		raw, ok := v.(*models.Record)
		if !ok {
			inc.Skipped = append(inc.Skipped, st.session.Skip(normalizer.EntityInvoice, i, 0, v))
			continue
		}

		inv, skippedItems := st.session.NewInvoice(raw)
		inc.Skipped = append(inc.Skipped, skippedItems...)

		outcome := st.service.linker.LinkInvoice(inv, customerIndex, productIndex)
		queries = append(queries, outcome.Ambiguous...)
		pricing.PriceInvoice(inv)

		inc.Invoices = append(inc.Invoices, inv)
	}
	st.durations[PhaseLink] += time.Since(start)

	inc.Products = products
	inc.Customers = customers

	st.customerIndex = customerIndex
	st.productIndex = productIndex
	st.invoices = append(st.invoices, inc.Invoices...)
	st.products = append(st.products, products...)
	st.customers = append(st.customers, customers...)
	st.queries = append(st.queries, queries...)
	st.skipped = append(st.skipped, inc.Skipped...)
	for _, sk := range inc.Skipped {
		st.addWarning(WarningFromError(PhaseNormalize, sk.Err()))
	}
	if st.trackFiles {
		st.files = append(st.files, FileStatus{File: source, Status: FileStatusSuccess})
	}
	if st.tracker != nil {
		st.tracker.Increment()
	}

	log.WithFields(logger.Fields{
		"invoices":  len(inc.Invoices),
		"products":  len(products),
		"customers": len(customers),
		"skipped":   len(inc.Skipped),
	}).Info("Source normalized")

	st.emit(Progress{Source: source, CurrentFile: current, Status: ProgressComplete})
	return inc, nil
}

// Fail records a source that could not be read or parsed
func (st *Stream) Fail(source string, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	current := len(st.files) + 1
	st.files = append(st.files, FileStatus{File: source, Status: FileStatusError, Error: err.Error()})
	w := WarningFromError("input", err)
	if w.Source == "" {
		w.Source = source
	}
	st.addWarning(w)
	if st.tracker != nil {
		st.tracker.Fail()
	}

	st.logger.WithField("source", source).WithError(err).Warn("Source failed")
	st.emit(Progress{Source: source, CurrentFile: current, Status: ProgressError, Error: err.Error()})
}

// Snapshot aggregates everything added so far into a result. The stream
// stays open and later snapshots include later sources.
func (st *Stream) Snapshot() *Result {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot()
}

// Finish closes the stream and returns the final result
func (st *Stream) Finish() *Result {
	st.mu.Lock()
	defer st.mu.Unlock()

	result := st.snapshot()
	st.finished = true
	if st.tracker != nil {
		st.tracker.Complete()
	}

	st.logger.WithFields(logger.Fields{
		"invoices":  result.Summary.InvoiceCount,
		"products":  result.Summary.ProductCount,
		"customers": result.Summary.CustomerCount,
		"warnings":  len(result.Warnings),
		"duration":  result.Summary.Duration,
	}).Info("Normalization completed")

	st.emit(Progress{Status: ProgressFinished, CurrentFile: len(st.files)})
	return result
}

func (st *Stream) snapshot() *Result {
	cfg := st.service.config
	phases := newPhaseRunner(st.logger)
	for k, v := range st.durations {
		phases.durations[k] = v
	}

	invoices := lo.Map(st.invoices, func(inv *models.NormalizedInvoice, _ int) *models.NormalizedInvoice {
		return inv.Clone()
	})

	// aggregation degrades to the normalized entities
	products := lo.Map(st.products, func(p *models.NormalizedProduct, _ int) *models.NormalizedProduct { return p.Clone() })
	phases.run(PhaseProductAggregation, errors.CodeAggregationFailed, func() {
		products = aggregator.AggregateProducts(st.products, invoices)
	})

	customers := lo.Map(st.customers, func(c *models.NormalizedCustomer, _ int) *models.NormalizedCustomer { return c.Clone() })
	phases.run(PhaseCustomerAggregation, errors.CodeAggregationFailed, func() {
		customers = aggregator.AggregateCustomers(st.customers, invoices)
	})

	var extraDetails string
	if cfg.BuildExtraDetails {
		phases.run(PhaseExtraDetails, errors.CodeSummaryFailed, func() {
			extraDetails = BuildExtraDetails(invoices)
		})
	}

	var ambiguity *AmbiguityAnalysis
	if cfg.AnalyzeAmbiguity {
		phases.run(PhaseAmbiguity, errors.CodeAnalysisFailed, func() {
			ambiguity = st.analyzeAmbiguity()
		})
	}

	result := &Result{
		BatchID:      st.BatchID(),
		Invoices:     invoices,
		Products:     products,
		Customers:    customers,
		ExtraDetails: extraDetails,
		Files:        append([]FileStatus(nil), st.files...),
		Ambiguity:    ambiguity,
	}

	warnings := append([]Warning(nil), st.warnings...)
	for _, w := range phases.warnings {
		warnings = appendCapped(warnings, w, cfg.MaxWarnings)
	}
	result.Warnings = warnings
	result.Summary = st.buildSummary(result, phases)
	return result
}

func (st *Stream) analyzeAmbiguity() *AmbiguityAnalysis {
	cfg := st.service.config.Matching
	detector := matcher.NewAmbiguityDetector(cfg)

	queries := append([]matcher.AmbiguousQuery(nil), st.queries...)
	if cfg.MaxAmbiguityReports > 0 && len(queries) > cfg.MaxAmbiguityReports {
		queries = queries[:cfg.MaxAmbiguityReports]
	}

	return &AmbiguityAnalysis{
		Customers: detector.Analyze(st.customerIndex),
		Products:  detector.Analyze(st.productIndex),
		Queries:   queries,
	}
}

func (st *Stream) buildSummary(result *Result, phases *phaseRunner) *Summary {
	summary := &Summary{
		InvoiceCount:   len(result.Invoices),
		ProductCount:   len(result.Products),
		CustomerCount:  len(result.Customers),
		Skipped:        append([]normalizer.Skipped(nil), st.skipped...),
		DegradedPhases: phases.degraded,
		StartedAt:      st.started,
		Duration:       time.Since(st.started),
		PhaseDurations: phases.durations,
	}

	grand := decimal.Zero
	for _, inv := range result.Invoices {
		grand = grand.Add(decimal.NewFromFloat(inv.Totals.Total))
		if inv.CustomerID != nil {
			summary.LinkedInvoices++
		} else {
			summary.UnlinkedInvoices = append(summary.UnlinkedInvoices, inv.Label())
		}
		for _, item := range inv.Items {
			if item.ProductID != nil {
				summary.LinkedItems++
				continue
			}
			summary.UnlinkedItems = append(summary.UnlinkedItems, UnlinkedItem{InvoiceID: inv.ID, Name: item.Name()})
		}
	}
	summary.GrandTotal = grand.Round(2).InexactFloat64()
	return summary
}

func (st *Stream) addWarning(w Warning) {
	st.warnings = appendCapped(st.warnings, w, st.service.config.MaxWarnings)
}

// emit delivers progress to every callback. Callers hold st.mu.
func (st *Stream) emit(p Progress) {
	p.TotalFiles = st.expected
	p.Invoices = len(st.invoices)
	p.Products = len(st.products)
	p.Customers = len(st.customers)
	p.Elapsed = time.Since(st.started)
	for _, cb := range st.callbacks {
		cb(p)
	}
}

func appendCapped(warnings []Warning, w Warning, limit int) []Warning {
	if limit > 0 && len(warnings) >= limit {
		return warnings
	}
	return append(warnings, w)
}

func sourceLabel(source string) string {
	if source == "" {
		return "batch"
	}
	return source
}
