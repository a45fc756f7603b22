package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event types.
const (
	EventInvoiceCreated    = "invoice.created"
	EventInvoiceUpdated    = "invoice.updated"
	EventDiscountAllocated = "invoice.discount_allocated"
	EventLineCreated       = "line.created"
	EventLineUpdated       = "line.updated"
	EventLineDeleted       = "line.deleted"
	EventSupplierRenamed   = "supplier.renamed"
	EventItemRenamed       = "item.renamed"
	EventBatchImported     = "batch.imported"
)

// LedgerEvent announces a committed ledger mutation. Rows carries the export
// rows affected: one invoice when InvoiceID is set, the whole ledger
// otherwise.
type LedgerEvent struct {
	Type      string     `json:"type"`
	InvoiceID string     `json:"invoice_id,omitempty"`
	InvoiceNo string     `json:"invoice_no,omitempty"`
	Version   uint64     `json:"version"`
	Timestamp time.Time  `json:"timestamp"`
	Header    []string   `json:"header,omitempty"`
	Rows      [][]string `json:"rows"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(eventType, invoiceID string, version uint64) *LedgerEvent {
	return &LedgerEvent{
		Type:      eventType,
		InvoiceID: invoiceID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
