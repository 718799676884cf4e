package transport

import (
	"errors"
	"strings"

	"jobgraph/internal/services"
)

// RemoteError is one entry of a reply's errors list.
type RemoteError struct {
	Message   string         `json:"message"`
	Path      []any          `json:"path,omitempty"`
	Locations []Location     `json:"locations,omitempty"`
	Extension map[string]any `json:"extensions,omitempty"`
}

// Location points into the document the error refers to.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// OperationError reports a reply that carried an errors list.
type OperationError struct {
	Operation string
	Errors    []RemoteError
}

func (e *OperationError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, remote := range e.Errors {
		if msg := strings.TrimSpace(remote.Message); msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		messages = append(messages, "remote store reported an error")
	}
	prefix := "remote operation"
	if e.Operation != "" {
		prefix += " " + e.Operation
	}
	return prefix + ": " + strings.Join(messages, "; ")
}

// Is makes OperationError match services.ErrRemoteOperation.
func (e *OperationError) Is(target error) bool {
	return target == services.ErrRemoteOperation
}

// IsRemote reports whether err carries an errors list from the store.
func IsRemote(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}
