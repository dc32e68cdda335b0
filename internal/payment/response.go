package payment

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrFieldAlreadySet = errors.New("field already set")

// Response is the outcome of a terminal transaction.
type Response struct {
	success         bool
	responseCode    string
	message         string
	transactionID   string
	amount          string
	authCode        *string
	referenceNumber *string
	timestamp       int64
}

// NewResponse stamps the response with the current wall clock in epoch millis.
func NewResponse(success bool, responseCode, message, transactionID, amount string) *Response {
	return &Response{
		success:       success,
		responseCode:  responseCode,
		message:       message,
		transactionID: transactionID,
		amount:        amount,
		timestamp:     time.Now().UnixMilli(),
	}
}

func (r *Response) Success() bool         { return r.success }
func (r *Response) ResponseCode() string  { return r.responseCode }
func (r *Response) Message() string       { return r.message }
func (r *Response) TransactionID() string { return r.transactionID }
func (r *Response) Amount() string        { return r.amount }
func (r *Response) Timestamp() int64      { return r.timestamp }

func (r *Response) AuthCode() (string, bool) {
	if r.authCode == nil {
		return "", false
	}
	return *r.authCode, true
}

func (r *Response) ReferenceNumber() (string, bool) {
	if r.referenceNumber == nil {
		return "", false
	}
	return *r.referenceNumber, true
}

// SetAuthCode may be called once.
func (r *Response) SetAuthCode(code string) error {
	if r.authCode != nil {
		return ErrFieldAlreadySet
	}
	r.authCode = &code
	return nil
}

// SetReferenceNumber may be called once.
func (r *Response) SetReferenceNumber(reference string) error {
	if r.referenceNumber != nil {
		return ErrFieldAlreadySet
	}
	r.referenceNumber = &reference
	return nil
}

func (r *Response) Document() Document {
	doc := Document{
		"success":        r.success,
		"response_code":  r.responseCode,
		"message":        r.message,
		"transaction_id": r.transactionID,
		"amount":         r.amount,
		"timestamp":      r.timestamp,
	}
	if r.authCode != nil {
		doc["auth_code"] = *r.authCode
	}
	if r.referenceNumber != nil {
		doc["reference_number"] = *r.referenceNumber
	}

	return doc
}

func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}
