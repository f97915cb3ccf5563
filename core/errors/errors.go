// Package errors provides standardized error types and helpers for the BELA codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrMalformedDocument indicates the source document is structurally broken
	ErrMalformedDocument = errors.New("malformed document")
	// ErrUnsupportedVersion indicates an unimplemented convention version
	ErrUnsupportedVersion = errors.New("unsupported convention version")
	// ErrMissingReferenceData indicates an optional reference dataset is unavailable
	ErrMissingReferenceData = errors.New("missing reference data")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
)

// DocumentError represents a fatal structural failure of a source document.
// Per-record decode problems are never DocumentErrors; those are collected
// as issues on the resulting transcript instead.
type DocumentError struct {
	Path    string // Source file path, if known
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *DocumentError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed document %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("malformed document: %s", e.Message)
}

func (e *DocumentError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedDocument
}

// Is matches DocumentErrors against ErrMalformedDocument even when they
// carry an underlying cause.
func (e *DocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// VersionError represents an explicit version marker naming a convention
// the decoder does not implement.
type VersionError struct {
	Marker string // The version marker found in the document
	Path   string // Source file path, if known
}

func (e *VersionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("unsupported convention version %q in %s", e.Marker, e.Path)
	}
	return fmt.Sprintf("unsupported convention version %q", e.Marker)
}

func (e *VersionError) Unwrap() error {
	return ErrUnsupportedVersion
}

// ReferenceDataError reports an unavailable optional reference dataset.
// Callers are expected to skip dependent features, not abort.
type ReferenceDataError struct {
	Dataset string // Name of the dataset (e.g., "lexicon:Mandarin")
	Err     error  // Underlying error, if any
}

func (e *ReferenceDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reference data %s unavailable: %v", e.Dataset, e.Err)
	}
	return fmt.Sprintf("reference data %s unavailable", e.Dataset)
}

func (e *ReferenceDataError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingReferenceData
}

// Is matches ReferenceDataErrors against ErrMissingReferenceData even
// when they carry an underlying cause.
func (e *ReferenceDataError) Is(target error) bool {
	return target == ErrMissingReferenceData
}

// TokenError represents a text token that does not match the active
// convention grammar. It is recoverable by contract: builders collect it
// as an issue and continue past it.
type TokenError struct {
	Token   string // The offending token text
	Message string // Why the token is invalid
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Token)
}

func (e *TokenError) Unwrap() error {
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewDocument creates a DocumentError
func NewDocument(path, message string, err error) *DocumentError {
	return &DocumentError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// NewVersion creates a VersionError
func NewVersion(marker, path string) *VersionError {
	return &VersionError{
		Marker: marker,
		Path:   path,
	}
}

// NewReferenceData creates a ReferenceDataError
func NewReferenceData(dataset string, err error) *ReferenceDataError {
	return &ReferenceDataError{
		Dataset: dataset,
		Err:     err,
	}
}

// NewToken creates a TokenError
func NewToken(token, message string) *TokenError {
	return &TokenError{
		Token:   token,
		Message: message,
	}
}

// IsFatal reports whether err belongs to the fatal half of the taxonomy
// (structural document failures and unsupported convention versions).
func IsFatal(err error) bool {
	return errors.Is(err, ErrMalformedDocument) || errors.Is(err, ErrUnsupportedVersion)
}

// Is re-exports errors.Is so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}
