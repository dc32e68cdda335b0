package bridge

import (
	"errors"
	"fmt"

	"github.com/NowakAdmin/MonerisAgent/internal/payment"
)

// Code is the stable, machine readable part of an Error.
type Code string

const (
	CodeNotInitialized Code = "not_initialized"
	CodeNotConnected   Code = "not_connected"
	CodeInvalidInput   Code = "invalid_input"
	CodeDeviceError    Code = "device_error"
	CodeUnsupported    Code = "unsupported"
	CodeInternal       Code = "internal"
)

// Error is returned for every failed command.
type Error struct {
	Code    Code
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NotInitialized() *Error {
	return &Error{Code: CodeNotInitialized, Message: "Terminal not initialized. Call initialize() first."}
}

func NotConnected() *Error {
	return &Error{Code: CodeNotConnected, Message: "Device not connected. Call connect() first."}
}

func InvalidInput(field string, message string) *Error {
	return &Error{Code: CodeInvalidInput, Field: field, Message: message}
}

func DeviceError(detail string) *Error {
	return &Error{Code: CodeDeviceError, Message: detail}
}

func Unsupported(action string) *Error {
	return &Error{Code: CodeUnsupported, Message: "Invalid action: " + action}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// failure converts a handler error into an *Error with the action prefix,
// e.g. "Payment failed: missing required field: amount".
func failure(prefix string, err error) *Error {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return &Error{Code: bridgeErr.Code, Field: bridgeErr.Field, Message: prefix + bridgeErr.Message}
	}

	var fieldErr *payment.FieldError
	if errors.As(err, &fieldErr) {
		return InvalidInput(fieldErr.Field, prefix+fieldErr.Error())
	}

	return DeviceError(fmt.Sprintf("%s%v", prefix, err))
}
