package domain

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned by adapters when called before a successful Login
var ErrNotLoggedIn = errors.New("broker session not established")

// ErrAllocationEmpty marks a run where no instrument survived allocation.
// It is informational: the run completes with zero orders.
var ErrAllocationEmpty = errors.New("no instrument survived allocation")

// ConfigurationError is fatal and aborts the run before dispatch
// (unknown broker, missing master credentials, duplicate master, bad parameters).
type ConfigurationError struct {
	Reason string
	Err    error
}

// NewConfigurationError formats a configuration error
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DataRetrievalError is returned once the snapshot fetch exhausted its attempts
type DataRetrievalError struct {
	Attempts int
	Err      error
}

func (e *DataRetrievalError) Error() string {
	return fmt.Sprintf("snapshot retrieval failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DataRetrievalError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsDataRetrievalError reports whether err wraps a DataRetrievalError
func IsDataRetrievalError(err error) bool {
	var dataErr *DataRetrievalError
	return errors.As(err, &dataErr)
}
