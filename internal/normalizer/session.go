// Package normalizer turns raw extracted records into normalized entities.
//
// All id assignment happens through a Session. A Session is scoped to one
// batch (or one stream of batches) so that ids are 1-based and sequential
// within it and independent of any other batch processed by the same
// process.
package normalizer

import (
	"fmt"
	"sync"

	"invoice-normalizer/internal/models"
	"invoice-normalizer/internal/pricing"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/google/uuid"
)

// Entity names the kind of raw record being normalized
type Entity string

const (
	EntityInvoice  Entity = "invoice"
	EntityProduct  Entity = "product"
	EntityCustomer Entity = "customer"
	EntityItem     Entity = "item"
)

// Skipped describes a raw record that could not be normalized because it was
// not a JSON object
type Skipped struct {
	Entity Entity `json:"entity"`
	Source string `json:"source,omitempty"`
	Index  int    `json:"index"`

	// InvoiceID is set for skipped line items
	InvoiceID int    `json:"invoiceId,omitempty"`
	Type      string `json:"type"`
}

// Err renders the skip as a validation error
func (s Skipped) Err() *errors.AppError {
	field := fmt.Sprintf("%ss[%d]", s.Entity, s.Index)
	if s.Entity == EntityItem {
		field = fmt.Sprintf("invoices[id=%d].items[%d]", s.InvoiceID, s.Index)
	}
	return errors.ValidationError(errors.CodeRecordSkipped, field, s.Type, nil).
		WithContext("source", s.Source)
}

// String returns a one-line description
func (s Skipped) String() string {
	return s.Err().Message
}

// Counters is a snapshot of the next ids a session will assign
type Counters struct {
	NextInvoiceID  int `json:"nextInvoiceId"`
	NextProductID  int `json:"nextProductId"`
	NextCustomerID int `json:"nextCustomerId"`
}

// Session owns the id counters of one normalization run. It is safe for
// concurrent use, but ids are only deterministic when records are fed in a
// fixed order.
type Session struct {
	BatchID uuid.UUID
	Source  string

	mu       sync.Mutex
	counters Counters
	logger   logger.Logger
}

// NewSession starts a session with every counter at 1
func NewSession() *Session {
	id := uuid.New()
	return &Session{
		BatchID: id,
		counters: Counters{
			NextInvoiceID:  1,
			NextProductID:  1,
			NextCustomerID: 1,
		},
		logger: logger.WithComponent("normalizer").WithField("batch_id", id.String()),
	}
}

// WithLogger sets the logger used by the session
func (s *Session) WithLogger(log logger.Logger) *Session {
	s.logger = log.WithComponent("normalizer").WithField("batch_id", s.BatchID.String())
	return s
}

// WithSource labels subsequently skipped records with the name of the
// input they came from
func (s *Session) WithSource(source string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Source = source
	return s
}

// Counters returns the next ids the session will assign
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// NextInvoiceID assigns an invoice id
func (s *Session) NextInvoiceID() int {
	return s.next(&s.counters.NextInvoiceID)
}

// NextProductID assigns a product id
func (s *Session) NextProductID() int {
	return s.next(&s.counters.NextProductID)
}

// NextCustomerID assigns a customer id
func (s *Session) NextCustomerID() int {
	return s.next(&s.counters.NextCustomerID)
}

func (s *Session) next(counter *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := *counter
	*counter++
	return id
}

func (s *Session) source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Source
}

// Skip records that the value at index could not be normalized. invoiceID
// is only meaningful for line items.
func (s *Session) Skip(entity Entity, index, invoiceID int, v interface{}) Skipped {
	skipped := Skipped{
		Entity:    entity,
		Source:    s.source(),
		Index:     index,
		InvoiceID: invoiceID,
		Type:      models.TypeName(v),
	}
	s.logger.WithFields(logger.Fields{
		"entity":     entity,
		"index":      index,
		"invoice_id": invoiceID,
		"type":       skipped.Type,
	}).Warn("Skipping record that is not an object")
	return skipped
}

// NewInvoice assigns the next invoice id to a raw invoice and resolves its
// line items and invoice-level tax rate. Line items that are not objects
// are dropped and reported. Links and totals are left for the caller.
func (s *Session) NewInvoice(raw *models.Record) (*models.NormalizedInvoice, []Skipped) {
	inv := &models.NormalizedInvoice{
		ID:         s.NextInvoiceID(),
		Fields:     raw.Clone(),
		TaxPercent: pricing.ResolveInvoiceTaxPercent(raw),
	}
	if inv.Fields == nil {
		inv.Fields = models.NewRecord()
	}

	var skipped []Skipped
	rawItems, _ := raw.Get("items").([]interface{})
	for i, v := range rawItems {
		fields, ok := v.(*models.Record)
		if !ok {
			skipped = append(skipped, s.Skip(EntityItem, i, inv.ID, v))
			continue
		}
		inv.Items = append(inv.Items, models.NewLineItem(fields.Clone()))
	}

	return inv, skipped
}
