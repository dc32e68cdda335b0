package payment

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

const (
	DefaultCurrency        = "CAD"
	DefaultTransactionType = "purchase"
)

// Request is a payment the terminal is asked to collect.
type Request struct {
	amount          string
	orderID         string
	currency        string
	transactionType string
	metadata        map[string]any
}

// NewRequest builds a Request from a host document. Only amount is required.
func NewRequest(doc Document) (*Request, error) {
	amount, err := doc.RequireAmount("amount")
	if err != nil {
		return nil, err
	}

	request := &Request{
		amount:          amount,
		orderID:         doc.OptString("order_id", generateOrderID(time.Now())),
		currency:        doc.OptString("currency", DefaultCurrency),
		transactionType: doc.OptString("transaction_type", DefaultTransactionType),
	}

	if metadata := doc.OptObject("metadata"); metadata != nil {
		request.metadata = maps.Clone(metadata)
	}

	return request, nil
}

func generateOrderID(now time.Time) string {
	return fmt.Sprintf("ORD%d", now.UnixMilli())
}

func (r *Request) Amount() string          { return r.amount }
func (r *Request) OrderID() string         { return r.orderID }
func (r *Request) Currency() string        { return r.currency }
func (r *Request) TransactionType() string { return r.transactionType }

// Metadata returns a copy; nil when the request carried none.
func (r *Request) Metadata() map[string]any {
	if r.metadata == nil {
		return nil
	}
	return maps.Clone(r.metadata)
}

func (r *Request) Document() Document {
	doc := Document{
		"amount":           r.amount,
		"order_id":         r.orderID,
		"currency":         r.currency,
		"transaction_type": r.transactionType,
	}
	if r.metadata != nil {
		doc["metadata"] = maps.Clone(r.metadata)
	}

	return doc
}

func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}

func (r *Request) UnmarshalJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}

	parsed, err := NewRequest(doc)
	if err != nil {
		return err
	}

	*r = *parsed
	return nil
}
