/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Sentinel errors, one per failure kind. Typed errors below match them through Is.
var (
	// ErrValidation is returned when a request is malformed. Not retryable.
	ErrValidation = errors.New("validation failed")

	// ErrConditionalCheckFailed is returned when a conditional write's predicate does not hold
	ErrConditionalCheckFailed = errors.New("conditional check failed")

	// ErrTableUnavailable is returned when an item operation hits a table that is not active
	ErrTableUnavailable = errors.New("table unavailable")

	// ErrThrottling is returned when the store rejects a request for capacity reasons
	ErrThrottling = errors.New("request throttled")

	// ErrTableNotFound is returned when a table management call names an absent table
	ErrTableNotFound = errors.New("table not found")

	// ErrTableAlreadyExists is returned when creating a table whose name is taken
	ErrTableAlreadyExists = errors.New("table already exists")

	// ErrInvalidSchema is returned when a table descriptor's key schema is inconsistent
	ErrInvalidSchema = errors.New("invalid table schema")

	// ErrThroughputConfig is returned when billing mode and throughput settings disagree
	ErrThroughputConfig = errors.New("inconsistent throughput configuration")

	// ErrConcurrentModification is returned when a table is mid-transition
	ErrConcurrentModification = errors.New("table is being modified")

	// ErrMalformedAttribute is returned when a wire attribute cannot be decoded
	ErrMalformedAttribute = errors.New("malformed attribute")
)

// OpError records the operation and table that produced an error.
// Every error returned by the store client is an *OpError.
type OpError struct {
	Op    string
	Table string
	Err   error
}

func (e *OpError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("recordstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("recordstore: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Wrap attaches op and table to err. It returns nil for a nil err and does not
// double-wrap an *OpError carrying the same op.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) && oe.Op == op && oe.Table == table {
		return err
	}
	return &OpError{Op: op, Table: table, Err: err}
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConditionalCheckFailedError is returned when a put or delete condition does not hold.
// Item holds the stored item when the caller asked for it on failure.
type ConditionalCheckFailedError struct {
	Condition string
	Item      map[string]types.AttributeValue
	Err       error
}

func (e *ConditionalCheckFailedError) Error() string {
	if e.Condition == "" {
		return "conditional check failed"
	}
	return fmt.Sprintf("conditional check failed: %s", e.Condition)
}

func (e *ConditionalCheckFailedError) Is(target error) bool {
	return target == ErrConditionalCheckFailed
}

func (e *ConditionalCheckFailedError) Unwrap() error {
	return e.Err
}

// TableUnavailableError means the table exists in some non-active state or is
// still being created. Transient.
type TableUnavailableError struct {
	Table string
	Err   error
}

func (e *TableUnavailableError) Error() string {
	return fmt.Sprintf("table %q is not available", e.Table)
}

func (e *TableUnavailableError) Is(target error) bool {
	return target == ErrTableUnavailable
}

func (e *TableUnavailableError) Unwrap() error {
	return e.Err
}

// ThrottlingError wraps a capacity or rate limit rejection. Transient.
type ThrottlingError struct {
	Err error
}

func (e *ThrottlingError) Error() string {
	if e.Err == nil {
		return "request throttled"
	}
	return fmt.Sprintf("request throttled: %v", e.Err)
}

func (e *ThrottlingError) Is(target error) bool {
	return target == ErrThrottling
}

func (e *ThrottlingError) Unwrap() error {
	return e.Err
}

// TableNotFoundError represents a missing table
type TableNotFoundError struct {
	Table string
	Err   error
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

func (e *TableNotFoundError) Unwrap() error {
	return e.Err
}

// TableAlreadyExistsError represents a create against a taken name
type TableAlreadyExistsError struct {
	Table string
	Err   error
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Table)
}

func (e *TableAlreadyExistsError) Is(target error) bool {
	return target == ErrTableAlreadyExists
}

func (e *TableAlreadyExistsError) Unwrap() error {
	return e.Err
}

// InvalidSchemaError represents an inconsistent key schema or attribute definition list
type InvalidSchemaError struct {
	Attribute string
	Message   string
}

func (e *InvalidSchemaError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("invalid schema for attribute %q: %s", e.Attribute, e.Message)
	}
	return fmt.Sprintf("invalid schema: %s", e.Message)
}

func (e *InvalidSchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// ThroughputConfigError represents a billing mode and throughput mismatch
type ThroughputConfigError struct {
	BillingMode string
	Message     string
}

func (e *ThroughputConfigError) Error() string {
	return fmt.Sprintf("billing mode %s: %s", e.BillingMode, e.Message)
}

func (e *ThroughputConfigError) Is(target error) bool {
	return target == ErrThroughputConfig
}

// ConcurrentModificationError means the table is in a transitional state
type ConcurrentModificationError struct {
	Table  string
	Status string
	Err    error
}

func (e *ConcurrentModificationError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("table %q is being modified", e.Table)
	}
	return fmt.Sprintf("table %q is %s", e.Table, e.Status)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

func (e *ConcurrentModificationError) Unwrap() error {
	return e.Err
}

// MalformedAttributeError is a decode failure at a field path such as "versions[1].title"
type MalformedAttributeError struct {
	Path   string
	Reason string
}

func (e *MalformedAttributeError) Error() string {
	return fmt.Sprintf("malformed attribute at %q: %s", e.Path, e.Reason)
}

func (e *MalformedAttributeError) Is(target error) bool {
	return target == ErrMalformedAttribute
}

// Helper functions for creating errors

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionalCheckFailedError creates a new ConditionalCheckFailedError
func NewConditionalCheckFailedError(condition string, item map[string]types.AttributeValue, cause error) error {
	return &ConditionalCheckFailedError{Condition: condition, Item: item, Err: cause}
}

// NewTableNotFoundError creates a new TableNotFoundError
func NewTableNotFoundError(table string) error {
	return &TableNotFoundError{Table: table}
}

// NewTableAlreadyExistsError creates a new TableAlreadyExistsError
func NewTableAlreadyExistsError(table string) error {
	return &TableAlreadyExistsError{Table: table}
}

// NewInvalidSchemaError creates a new InvalidSchemaError
func NewInvalidSchemaError(attribute, message string) error {
	return &InvalidSchemaError{Attribute: attribute, Message: message}
}

// NewThroughputConfigError creates a new ThroughputConfigError
func NewThroughputConfigError(billingMode, message string) error {
	return &ThroughputConfigError{BillingMode: billingMode, Message: message}
}

// NewConcurrentModificationError creates a new ConcurrentModificationError
func NewConcurrentModificationError(table, status string) error {
	return &ConcurrentModificationError{Table: table, Status: status}
}

// NewMalformedAttributeError creates a new MalformedAttributeError
func NewMalformedAttributeError(path, reason string) error {
	return &MalformedAttributeError{Path: path, Reason: reason}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConditionFailed checks if an error is a conditional check failure
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionalCheckFailed)
}

// IsTableUnavailable checks if an error is a table unavailable error
func IsTableUnavailable(err error) bool {
	return errors.Is(err, ErrTableUnavailable)
}

// IsThrottling checks if an error is a throttling error
func IsThrottling(err error) bool {
	return errors.Is(err, ErrThrottling)
}

// IsTableNotFound checks if an error is a table not found error
func IsTableNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}

// IsTableAlreadyExists checks if an error is a table already exists error
func IsTableAlreadyExists(err error) bool {
	return errors.Is(err, ErrTableAlreadyExists)
}

// IsInvalidSchema checks if an error is an invalid schema error
func IsInvalidSchema(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// IsThroughputConfig checks if an error is a throughput configuration error
func IsThroughputConfig(err error) bool {
	return errors.Is(err, ErrThroughputConfig)
}

// IsConcurrentModification checks if an error is a concurrent modification error
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsMalformedAttribute checks if an error is a codec decode failure
func IsMalformedAttribute(err error) bool {
	return errors.Is(err, ErrMalformedAttribute)
}

// IsRetryable reports whether a caller may retry err with backoff.
func IsRetryable(err error) bool {
	return IsThrottling(err) || IsTableUnavailable(err)
}
