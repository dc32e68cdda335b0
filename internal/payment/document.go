package payment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Document is the untyped key-value form exchanged with host applications.
type Document map[string]any

// FieldError reports a missing or malformed field of an input document.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// ParseDocument decodes a raw JSON object. Empty input yields an empty document.
func ParseDocument(raw json.RawMessage) (Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Document{}, nil
	}

	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("argument is not a JSON object: %w", err)
	}

	return doc, nil
}

// String returns a non-empty string value. Non-string values are reported as absent.
func (d Document) String(key string) (string, bool) {
	value, ok := d[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// RequireString returns the value of key or a *FieldError.
func (d Document) RequireString(key string) (string, error) {
	if _, present := d[key]; !present {
		return "", &FieldError{Field: key}
	}

	value, ok := d[key].(string)
	if !ok {
		return "", &FieldError{Field: key, Reason: "must be a string"}
	}
	if strings.TrimSpace(value) == "" {
		return "", &FieldError{Field: key, Reason: "must not be empty"}
	}

	return value, nil
}

// RequireAmount returns a positive decimal string as sent, e.g. "10.00".
func (d Document) RequireAmount(key string) (string, error) {
	value, err := d.RequireString(key)
	if err != nil {
		return "", err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", &FieldError{Field: key, Reason: "must be a decimal number"}
	}
	if !amount.IsPositive() {
		return "", &FieldError{Field: key, Reason: "must be greater than zero"}
	}

	return value, nil
}

func (d Document) OptString(key, fallback string) string {
	if value, ok := d.String(key); ok {
		return value
	}
	return fallback
}

// OptInt accepts JSON numbers and numeric strings. Fractions are truncated;
// values outside the int range yield fallback.
func (d Document) OptInt(key string, fallback int) int {
	switch value := d[key].(type) {
	case float64:
		if truncated := math.Trunc(value); truncated >= math.MinInt && truncated < math.MaxInt {
			return int(truncated)
		}
	case int:
		return value
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}

	return fallback
}

// OptObject returns a nested object, or nil when the key holds anything else.
func (d Document) OptObject(key string) map[string]any {
	value, ok := d[key].(map[string]any)
	if !ok {
		return nil
	}
	return value
}
