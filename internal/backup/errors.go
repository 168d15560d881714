package backup

import (
	"fmt"
)

// SyncError represents errors that occur during export, restore, and snapshot
// storage operations
type SyncError struct {
	Type    SyncErrorType          `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// SyncErrorType represents different types of sync errors
type SyncErrorType string

const (
	SyncErrorTypeRead          SyncErrorType = "READ_ERROR"
	SyncErrorTypeWrite         SyncErrorType = "WRITE_ERROR"
	SyncErrorTypeRestore       SyncErrorType = "RESTORE_ERROR"
	SyncErrorTypeValidation    SyncErrorType = "VALIDATION_ERROR"
	SyncErrorTypeStorage       SyncErrorType = "STORAGE_ERROR"
	SyncErrorTypeCompression   SyncErrorType = "COMPRESSION_ERROR"
	SyncErrorTypeEncryption    SyncErrorType = "ENCRYPTION_ERROR"
	SyncErrorTypeCorruption    SyncErrorType = "CORRUPTION_ERROR"
	SyncErrorTypeConfiguration SyncErrorType = "CONFIGURATION_ERROR"
	SyncErrorTypeNotFound      SyncErrorType = "NOT_FOUND_ERROR"
)

// NewSyncError creates a new SyncError
func NewSyncError(errorType SyncErrorType, message string, cause error) *SyncError {
	return &SyncError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors

func NewReadError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeRead, message, cause)
}

func NewWriteError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeWrite, message, cause)
}

func NewRestoreError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeRestore, message, cause)
}

func NewValidationError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeValidation, message, cause)
}

func NewStorageError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeStorage, message, cause)
}

func NewCompressionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeEncryption, message, cause)
}

func NewCorruptionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeCorruption, message, cause)
}

func NewConfigurationError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeConfiguration, message, cause)
}

func NewNotFoundError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeNotFound, message, cause)
}

// ValidationError represents validation-specific errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// IsPermanent determines if an error is permanent and should not be retried
func IsPermanent(err error) bool {
	if syncErr, ok := err.(*SyncError); ok {
		switch syncErr.Type {
		case SyncErrorTypeValidation, SyncErrorTypeCorruption, SyncErrorTypeConfiguration:
			return true
		default:
			return false
		}
	}
	return false
}
