// Package errors provides custom error types for the hostelmon application.
//
// Only a few failures are ever surfaced to a caller. Extraction and
// classification have total fallbacks and never fail; "not found" and
// "already resolved" are outcomes, not errors. What remains is defined here:
// store failures, outbound delivery failures, remote classifier failures
// and bad configuration.
package errors

import (
	stderrors "errors"
	"fmt"
)

// PersistenceError indicates that the record store rejected a read or write.
//
// This error is returned when:
//   - Insert of a new complaint fails
//   - The conditional resolve update fails for a reason other than a lost race
//   - A lookup by token fails at the store level
//
// Recovery strategy: the caller decides on retry; the sender is still acknowledged
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence error: %s", e.Op)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new persistence error with context
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// DeliveryError wraps a failed outbound notification.
//
// Delivery is best-effort: this error is logged and counted, it never
// rolls back the lifecycle transition that triggered it.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed via %s: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("delivery failed via %s", e.Channel)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError creates a new delivery error for the named channel
func NewDeliveryError(channel string, err error) *DeliveryError {
	return &DeliveryError{Channel: channel, Err: err}
}

// ClassifierError wraps a failure of the remote (LLM-backed) classifier.
type ClassifierError struct {
	Provider string
	Err      error
}

func (e *ClassifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier %s failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("classifier %s failed", e.Provider)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// NewClassifierError creates a new classifier error
func NewClassifierError(provider string, err error) *ClassifierError {
	return &ClassifierError{Provider: provider, Err: err}
}

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// NewConfigError creates a new config error for key
func NewConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// IsPersistence checks if the error chain contains a PersistenceError
func IsPersistence(err error) bool {
	var target *PersistenceError
	return stderrors.As(err, &target)
}

// IsDelivery checks if the error chain contains a DeliveryError
func IsDelivery(err error) bool {
	var target *DeliveryError
	return stderrors.As(err, &target)
}

// IsClassifier checks if the error chain contains a ClassifierError
func IsClassifier(err error) bool {
	var target *ClassifierError
	return stderrors.As(err, &target)
}
