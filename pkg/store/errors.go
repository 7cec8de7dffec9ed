package store

import (
	"errors"
	"fmt"
)

// ErrorCode classifies orchestrator and backend failures.
type ErrorCode int

const (
	// ErrConfig indicates a malformed descriptor or kind configuration.
	// Config errors are fatal at load time.
	ErrConfig ErrorCode = iota + 1

	// ErrDuplicateStore indicates a descriptor name was registered twice.
	ErrDuplicateStore

	// ErrInitialization indicates a backend handle could not be created.
	ErrInitialization

	// ErrStoreUnavailable indicates the store is unknown, disabled, closed
	// or in the Failed state.
	ErrStoreUnavailable

	// ErrAdapter indicates the backend call itself failed.
	ErrAdapter

	// ErrUnsupported indicates the store kind does not implement the capability.
	ErrUnsupported

	// ErrTimeout indicates the store did not complete before the deadline.
	ErrTimeout

	// ErrInvalidRequest indicates a structurally invalid request.
	ErrInvalidRequest
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrConfig:
		return "ConfigError"
	case ErrDuplicateStore:
		return "DuplicateStore"
	case ErrInitialization:
		return "InitializationError"
	case ErrStoreUnavailable:
		return "StoreUnavailable"
	case ErrAdapter:
		return "AdapterError"
	case ErrUnsupported:
		return "Unsupported"
	case ErrTimeout:
		return "Timeout"
	case ErrInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// StoreError is the error type carried by every orchestrator failure.
type StoreError struct {
	Code    ErrorCode
	Store   string
	Kind    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}

	switch {
	case e.Store != "" && e.Kind != "":
		return fmt.Sprintf("%s: %s (store: %s, kind: %s)", e.Code, msg, e.Store, e.Kind)
	case e.Store != "":
		return fmt.Sprintf("%s: %s (store: %s)", e.Code, msg, e.Store)
	case e.Kind != "":
		return fmt.Sprintf("%s: %s (kind: %s)", e.Code, msg, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first StoreError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsCode reports whether any StoreError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *StoreError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewConfigError creates a ConfigError for a store (may be empty).
func NewConfigError(storeName, message string, err error) *StoreError {
	return &StoreError{Code: ErrConfig, Store: storeName, Message: message, Err: err}
}

// NewDuplicateStoreError creates a DuplicateStore error.
func NewDuplicateStoreError(storeName string) *StoreError {
	return &StoreError{
		Code:    ErrDuplicateStore,
		Store:   storeName,
		Message: "store already registered",
	}
}

// NewInitializationError creates an InitializationError.
func NewInitializationError(storeName, kind string, err error) *StoreError {
	return &StoreError{
		Code:    ErrInitialization,
		Store:   storeName,
		Kind:    kind,
		Message: "failed to initialize backend",
		Err:     err,
	}
}

// NewStoreUnavailableError creates a StoreUnavailable error.
func NewStoreUnavailableError(storeName, reason string, err error) *StoreError {
	return &StoreError{
		Code:    ErrStoreUnavailable,
		Store:   storeName,
		Message: reason,
		Err:     err,
	}
}

// NewAdapterError wraps a backend failure with the store and its kind.
// An error that already carries a StoreError code is returned unchanged.
func NewAdapterError(storeName, kind string, err error) error {
	if CodeOf(err) != 0 {
		return err
	}
	return &StoreError{
		Code:  ErrAdapter,
		Store: storeName,
		Kind:  kind,
		Err:   err,
	}
}

// NewUnsupportedError reports that kind lacks the named capability.
func NewUnsupportedError(storeName, kind, capability string) *StoreError {
	return &StoreError{
		Code:    ErrAdapter,
		Store:   storeName,
		Kind:    kind,
		Message: "capability not supported",
		Err:     &StoreError{Code: ErrUnsupported, Kind: kind, Message: capability},
	}
}

// NewTimeoutError creates a Timeout error for a store.
func NewTimeoutError(storeName string, err error) *StoreError {
	return &StoreError{
		Code:    ErrTimeout,
		Store:   storeName,
		Message: "deadline exceeded",
		Err:     err,
	}
}

// NewInvalidRequestError creates an InvalidRequest error.
func NewInvalidRequestError(message string) *StoreError {
	return &StoreError{Code: ErrInvalidRequest, Message: message}
}
