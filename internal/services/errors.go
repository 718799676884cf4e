package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedValue     = errors.New("unsupported value")
	ErrMissingTemplateID    = errors.New("missing template identifier")
	ErrRemoteOperation      = errors.New("remote operation error")
	ErrMissingRequiredValue = errors.New("missing required value")
	ErrProtocolViolation    = errors.New("protocol violation")
	ErrEncoding             = errors.New("encoding error")
	ErrExternalTool         = errors.New("external tool error")
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrTimeout              = errors.New("timeout")
	ErrTransient            = errors.New("transient failure")
)

var markers = []error{
	ErrUnsupportedValue,
	ErrMissingTemplateID,
	ErrRemoteOperation,
	ErrMissingRequiredValue,
	ErrProtocolViolation,
	ErrEncoding,
	ErrExternalTool,
	ErrValidation,
	ErrNotFound,
	ErrTimeout,
	ErrTransient,
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker so callers can classify it with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return &wrappedError{
			marker:    marker,
			operation: strings.TrimSpace(operation),
			message:   strings.TrimSpace(message),
			cause:     err,
			text:      fmt.Sprintf("%s: %s: %s", marker, detail, err),
		}
	}
	return &wrappedError{
		marker:    marker,
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		text:      fmt.Sprintf("%s: %s", marker, detail),
	}
}

type wrappedError struct {
	marker    error
	operation string
	message   string
	cause     error
	text      string
}

func (e *wrappedError) Error() string { return e.text }

func (e *wrappedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// ErrorDetails is the structured view of an error produced by Wrap.
type ErrorDetails struct {
	Kind      string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the classification and human-readable message of err. Errors
// that were not built by Wrap report the first matching marker, if any, and use
// the full error text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		message := wrapped.message
		if message == "" {
			message = err.Error()
		} else if wrapped.cause != nil {
			message = fmt.Sprintf("%s: %s", message, wrapped.cause)
		}
		return ErrorDetails{
			Kind:      kindOf(wrapped.marker),
			Operation: wrapped.operation,
			Message:   message,
			Cause:     wrapped.cause,
		}
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return ErrorDetails{Kind: kindOf(marker), Message: err.Error()}
		}
	}
	return ErrorDetails{Kind: "unknown", Message: err.Error()}
}

func kindOf(marker error) string {
	if marker == nil {
		return "unknown"
	}
	return strings.ReplaceAll(marker.Error(), " ", "_")
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
