package payment

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Request

func TestNewRequest_Defaults(t *testing.T) {
	t.Parallel()

	request, err := NewRequest(Document{"amount": "10.00"})
	require.NoError(t, err)

	assert.Equal(t, "10.00", request.Amount())
	assert.Equal(t, "CAD", request.Currency())
	assert.Equal(t, "purchase", request.TransactionType())
	assert.True(t, strings.HasPrefix(request.OrderID(), "ORD"))
	assert.Greater(t, len(request.OrderID()), len("ORD"))
	assert.Nil(t, request.Metadata())

	_, hasMetadata := request.Document()["metadata"]
	assert.False(t, hasMetadata)
}

func TestNewRequest_RejectsBadAmount(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]Document{
		"absent":      {"currency": "USD"},
		"empty":       {"amount": ""},
		"not string":  {"amount": 10.0},
		"not decimal": {"amount": "abc"},
		"zero":        {"amount": "0.00"},
		"negative":    {"amount": "-5"},
	} {
		_, err := NewRequest(doc)
		require.Error(t, err, name)

		var fieldErr *FieldError
		require.True(t, errors.As(err, &fieldErr), name)
		assert.Equal(t, "amount", fieldErr.Field, name)
	}
}

func TestRequest_RoundTripKeepsExplicitFields(t *testing.T) {
	t.Parallel()

	in := Document{
		"amount":           "25.50",
		"order_id":         "order-42",
		"currency":         "USD",
		"transaction_type": "preauth",
		"metadata":         map[string]any{"table": "7"},
	}

	request, err := NewRequest(in)
	require.NoError(t, err)

	data, err := json.Marshal(request)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, in, decoded.Document())
}

func TestRequest_GeneratedOrderIDSurvivesRoundTrip(t *testing.T) {
	t.Parallel()

	request, err := NewRequest(Document{"amount": "1.00"})
	require.NoError(t, err)

	again, err := NewRequest(request.Document())
	require.NoError(t, err)
	assert.Equal(t, request.OrderID(), again.OrderID())
}

func TestRequest_MetadataIsCopied(t *testing.T) {
	t.Parallel()

	metadata := map[string]any{"k": "v"}
	request, err := NewRequest(Document{"amount": "1.00", "metadata": metadata})
	require.NoError(t, err)

	metadata["k"] = "changed"
	assert.Equal(t, "v", request.Metadata()["k"])
}

func TestRequest_NonObjectMetadataIgnored(t *testing.T) {
	t.Parallel()

	request, err := NewRequest(Document{"amount": "1.00", "metadata": "flat"})
	require.NoError(t, err)
	assert.Nil(t, request.Metadata())
}

func TestGenerateOrderID(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "ORD1700000000123", generateOrderID(at))
}

// Response

func TestNewResponse_Document(t *testing.T) {
	t.Parallel()

	before := time.Now().UnixMilli()
	response := NewResponse(true, "00", "APPROVED", "123456789", "10.00")
	after := time.Now().UnixMilli()

	doc := response.Document()
	assert.Equal(t, true, doc["success"])
	assert.Equal(t, "00", doc["response_code"])
	assert.Equal(t, "APPROVED", doc["message"])
	assert.Equal(t, "123456789", doc["transaction_id"])
	assert.Equal(t, "10.00", doc["amount"])
	assert.GreaterOrEqual(t, response.Timestamp(), before)
	assert.LessOrEqual(t, response.Timestamp(), after)
	assert.NotContains(t, doc, "auth_code")
	assert.NotContains(t, doc, "reference_number")
}

func TestResponse_OptionalFieldsSetOnce(t *testing.T) {
	t.Parallel()

	response := NewResponse(true, "00", "APPROVED", "1", "1.00")

	require.NoError(t, response.SetAuthCode("A1"))
	require.NoError(t, response.SetReferenceNumber("R1"))
	assert.ErrorIs(t, response.SetAuthCode("A2"), ErrFieldAlreadySet)
	assert.ErrorIs(t, response.SetReferenceNumber("R2"), ErrFieldAlreadySet)

	code, ok := response.AuthCode()
	assert.True(t, ok)
	assert.Equal(t, "A1", code)

	data, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "A1", decoded["auth_code"])
	assert.Equal(t, "R1", decoded["reference_number"])
}

// Document

func TestParseDocument(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument(nil)
	require.NoError(t, err)
	assert.Empty(t, doc)

	doc, err = ParseDocument(json.RawMessage(`{"port":"9000"}`))
	require.NoError(t, err)
	assert.Equal(t, 9000, doc.OptInt("port", 1))

	_, err = ParseDocument(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestDocument_OptInt(t *testing.T) {
	t.Parallel()

	doc := Document{"a": 12.0, "b": 1.5, "c": "x", "d": " 77 ", "e": -2.7, "f": 1e300, "g": math.Inf(1)}
	assert.Equal(t, 12, doc.OptInt("a", 0))
	assert.Equal(t, 1, doc.OptInt("b", 3))
	assert.Equal(t, -2, doc.OptInt("e", 0))
	assert.Equal(t, 6, doc.OptInt("f", 6))
	assert.Equal(t, 7, doc.OptInt("g", 7))
	assert.Equal(t, 4, doc.OptInt("c", 4))
	assert.Equal(t, 77, doc.OptInt("d", 0))
	assert.Equal(t, 5, doc.OptInt("missing", 5))
}
