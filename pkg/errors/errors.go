// Package errors provides the error types used across the medharvest
// system. Remote-call failures are classified here so the backoff policy
// can pick a wait strategy, and storage conflicts get a distinct identity
// so the reconcile engine can retry them without retrying anything else.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join are re-exported so callers don't need both this package
// and the standard library one.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for the medharvest system.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the remote endpoint rejected a call for
	// exceeding its rate budget (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrOverloaded indicates the remote endpoint is overloaded or timed
	// out at a gateway (HTTP 502, 503, 504).
	ErrOverloaded = errors.New("endpoint overloaded")

	// ErrNetworkTransient indicates a connection-level failure that never
	// produced an HTTP response.
	ErrNetworkTransient = errors.New("transient network failure")

	// ErrStorageConflict indicates a concurrent write was detected at the
	// upsert boundary (conditional write matched zero rows).
	ErrStorageConflict = errors.New("storage conflict")

	// ErrRetriesExhausted marks an error that survived the full retry
	// budget and is now terminal for its page, chunk or entity.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ConfigError represents a configuration error: malformed identifiers,
// self-referential exclusions, unparseable config files. Fatal, never
// retried, and raised before any network call is made.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// ValidationError represents remote data that failed a shape check, such as
// a detail payload keyed by something that is not an identifier. The
// offending entity is skipped; the run continues.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError represents a store read miss for a keyed record.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// APIError represents an HTTP-level failure from a remote endpoint. Its
// status code determines the backoff class via Is: 429 matches
// ErrRateLimited, 502/503/504 match ErrOverloaded, anything else falls
// through to the generic retry policy.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string

	// RetryAfter carries the server's Retry-After hint when present.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 429:
		return target == ErrRateLimited
	case 502, 503, 504:
		return target == ErrOverloaded
	}
	return false
}

// NewAPIError creates a new APIError.
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{Endpoint: endpoint, StatusCode: statusCode, Message: message}
}

// NetworkError represents a connection-level failure: DNS, dial, TLS, or a
// timeout that produced no HTTP response.
type NetworkError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkTransient
}

// WrapNetwork wraps a transport failure as a NetworkError.
func WrapNetwork(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &NetworkError{Endpoint: endpoint, Err: err}
}

// ConflictError represents a lost CAS race on a keyed record.
type ConflictError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent write detected on %s %s", e.Resource, e.ID)
}

// Is implements errors.Is support.
func (e *ConflictError) Is(target error) bool {
	return target == ErrStorageConflict
}

// NewConflictError creates a new ConflictError.
func NewConflictError(resource, id string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id}
}

// ParseError represents an error when parsing data formats.
type ParseError struct {
	Format  string // "json", "yaml", "sparql-results", ...
	Source  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.Source, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapParse wraps an error as a ParseError.
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Source: source, Message: err.Error(), Err: err}
}

// IOError represents an error during file I/O.
type IOError struct {
	Operation string // "read", "write", "create", ...
	Path      string
	Err       error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO wraps an error as an IOError.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}

// ResourceError represents a failed operation on a named resource, used at
// package boundaries where a bare error would lose the what and the which.
type ResourceError struct {
	Operation string // "create", "update", "fetch", ...
	Resource  string // "concept", "run", "category", ...
	ID        string
	Err       error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %v", e.Operation, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Resource, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// WrapResource wraps an error as a ResourceError.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Err: err}
}

// HarvestError aggregates a category-level failure with the identifiers it
// affected, so partial results can be reported alongside the cause.
type HarvestError struct {
	Category string
	IDs      []string
	Err      error
}

// Error implements the error interface.
func (e *HarvestError) Error() string {
	scope := "harvest error"
	if e.Category != "" {
		scope = "harvest error for category " + e.Category
	}
	if len(e.IDs) > 0 {
		return fmt.Sprintf("%s (affected ids: %v): %v", scope, e.IDs, e.Err)
	}
	return fmt.Sprintf("%s: %v", scope, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(category string, ids []string, err error) *HarvestError {
	return &HarvestError{Category: category, IDs: ids, Err: err}
}

// Helper functions for error checking.

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsOverloaded checks if an error indicates endpoint overload.
func IsOverloaded(err error) bool {
	return errors.Is(err, ErrOverloaded)
}

// IsNetworkTransient checks if an error is a connection-level failure.
func IsNetworkTransient(err error) bool {
	return errors.Is(err, ErrNetworkTransient)
}

// IsStorageConflict checks if an error is a lost CAS race.
func IsStorageConflict(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}

// IsConfig checks if an error is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsValidation checks if an error is a data-shape validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetriesExhausted checks whether an error already consumed its retry
// budget.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}

// ExhaustRetries marks err as terminal after the retry budget is spent.
// The original classification stays reachable through Unwrap.
func ExhaustRetries(err error, attempts int) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// Retryable reports whether the backoff policy should retry err at all.
// Configuration and validation errors are never retried; rate-limit,
// overload and network failures always are; remaining HTTP errors are
// retried only for server-side status codes.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigError
	var ve *ValidationError
	if errors.As(err, &ce) || errors.As(err, &ve) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrOverloaded) || errors.Is(err, ErrNetworkTransient) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 0 || ae.StatusCode >= 500
	}
	var pe *ParseError
	// Truncated or garbled response bodies count as transient.
	return errors.As(err, &pe)
}
