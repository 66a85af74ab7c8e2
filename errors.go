package broker

import (
	"errors"
	"fmt"
)

// Error represents a broker error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This lets errors.Is match detailed errors against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes for broker operations.
const (
	// ErrCodeDuplicateTopic indicates a topic name is already registered.
	ErrCodeDuplicateTopic = "DUPLICATE_TOPIC"

	// ErrCodeUnknownTopic indicates no topic is registered under a name.
	ErrCodeUnknownTopic = "UNKNOWN_TOPIC"

	// ErrCodeUnboundTopic indicates a producer has no topic to send to.
	ErrCodeUnboundTopic = "UNBOUND_TOPIC"

	// ErrCodeNilMessage indicates a nil message was passed in.
	ErrCodeNilMessage = "NIL_MESSAGE"

	// ErrCodeExpiredMessage indicates a message is past its TTL.
	ErrCodeExpiredMessage = "EXPIRED_MESSAGE"

	// ErrCodeMessageNotFound indicates a message id is unknown to its topic.
	ErrCodeMessageNotFound = "MESSAGE_NOT_FOUND"

	// ErrCodeNoData indicates a query returned no results.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeDatabase indicates an audit database operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
)

// Common errors. Compare with errors.Is.
var (
	ErrDuplicateTopic = &Error{Code: ErrCodeDuplicateTopic, Message: "topic already exists"}

	ErrUnknownTopic = &Error{Code: ErrCodeUnknownTopic, Message: "topic does not exist"}

	ErrUnboundTopic = &Error{Code: ErrCodeUnboundTopic, Message: "producer is not bound to a topic"}

	ErrNilMessage = &Error{Code: ErrCodeNilMessage, Message: "message is nil"}

	ErrExpiredMessage = &Error{Code: ErrCodeExpiredMessage, Message: "message has expired"}

	ErrMessageNotFound = &Error{Code: ErrCodeMessageNotFound, Message: "message not found"}

	// ErrNoData is returned when an audit query returns no results.
	ErrNoData = &Error{Code: ErrCodeNoData, Message: "no data found"}

	// ErrInvalidConfiguration is returned when broker configuration is invalid.
	ErrInvalidConfiguration = &Error{Code: ErrCodeConfiguration, Message: "invalid broker configuration"}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return HasCode(err, ErrCodeNoData)
}

// HasCode checks if any error in err's chain is an *Error with the given code.
func HasCode(err error, code string) bool {
	var brokerErr *Error
	if errors.As(err, &brokerErr) {
		return brokerErr.Code == code
	}
	return false
}

func duplicateTopic(name string) *Error {
	return NewError(ErrCodeDuplicateTopic, fmt.Sprintf("topic already exists: %s", name))
}

func unknownTopic(name string) *Error {
	return NewError(ErrCodeUnknownTopic, fmt.Sprintf("topic does not exist: %s", name))
}

func messageNotFound(topic, id string) *Error {
	return NewError(ErrCodeMessageNotFound, fmt.Sprintf("message %s not found in topic %s", id, topic))
}

func invalidName(kind, name string, cause error) *Error {
	return NewErrorWithCause(ErrCodeValidation, fmt.Sprintf("invalid %s name %q", kind, name), cause)
}
