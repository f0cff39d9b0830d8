// Package errors provides the error taxonomy shared by the quote sync engine,
// its stores and its transports.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodeImportFailure     ErrorCode = "IMPORT_FAILURE"
)

// Kind classifies an error so callers can react without string matching.
type Kind string

const (
	KindUnknown      Kind = ""
	KindFetch        Kind = "fetch"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindImportFormat Kind = "import_format"
	KindStorage      Kind = "storage"
	KindBusy         Kind = "busy"
	KindClosed       Kind = "closed"
	KindInvalid      Kind = "invalid"
	KindInternal     Kind = "internal"
)

// Operation represents the operation during which the error occurred.
type Operation string

const (
	OpSync       Operation = "sync"
	OpFetch      Operation = "fetch"
	OpMerge      Operation = "merge"
	OpResolve    Operation = "resolve"
	OpResolveAll Operation = "resolve_all"
	OpPersist    Operation = "persist"
	OpLoad       Operation = "load"
	OpAdd        Operation = "add"
	OpImport     Operation = "import"
	OpExport     Operation = "export"
	OpPublish    Operation = "publish"
	OpSchedule   Operation = "schedule"
	OpClose      Operation = "close"
)

// Op converts a string into an Operation for use with E.
func Op(s string) Operation { return Operation(s) }

// Component names the package or subsystem reporting the error.
type Component string

// SyncError represents an error raised by the sync engine or one of its collaborators.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "store", "transport")
	Component string

	// Kind classifies the failure
	Kind Kind

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	if e.Err == nil {
		return msg
	}
	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// E builds a SyncError from its arguments. Recognised argument types are
// Operation, Component, Kind, ErrorCode, error and string. Strings are joined
// into the "detail" metadata entry. A nil error argument is ignored.
func E(args ...interface{}) error {
	e := &SyncError{}
	var details []string
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Component:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case ErrorCode:
			e.Code = a
		case *SyncError:
			if a == nil {
				continue
			}
			e.Err = a
			if e.Kind == KindUnknown {
				e.Kind = a.Kind
			}
			e.Retryable = e.Retryable || a.Retryable
		case error:
			e.Err = a
		case string:
			details = append(details, a)
		case nil:
		default:
			details = append(details, fmt.Sprint(a))
		}
	}
	if len(details) > 0 {
		e.Metadata = map[string]interface{}{"detail": strings.Join(details, "; ")}
	}
	return e
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Kind:      KindStorage,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// NewFetchError creates the error reported when the remote snapshot cannot be
// retrieved or parsed.
func NewFetchError(cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Kind:      KindFetch,
		Op:        OpFetch,
		Component: "remote",
		Err:       cause,
		Retryable: true,
	}
}

// NewNotFoundError reports a conflict id absent from the registry.
func NewNotFoundError(op Operation, id string) *SyncError {
	return &SyncError{
		Kind:      KindNotFound,
		Op:        op,
		Component: "registry",
		Err:       fmt.Errorf("no open conflict with id %q", id),
		Metadata:  map[string]interface{}{"id": id},
	}
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Kind:      KindValidation,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewImportFormatError reports an import payload that is not an array of records.
func NewImportFormatError(cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeImportFailure,
		Kind:      KindImportFormat,
		Op:        OpImport,
		Component: "bulk",
		Err:       cause,
	}
}

// NewNetworkError creates a new network-related SyncError
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// KindOf returns the Kind of the outermost SyncError carrying one.
func KindOf(err error) Kind {
	for err != nil {
		var syncErr *SyncError
		if !errors.As(err, &syncErr) {
			return KindUnknown
		}
		if syncErr.Kind != KindUnknown {
			return syncErr.Kind
		}
		err = syncErr.Err
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
