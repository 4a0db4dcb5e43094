package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrIndexNotFound is returned when an index is not found
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexAlreadyExists is returned when trying to create an index that already exists
	ErrIndexAlreadyExists = errors.New("index already exists")

	// ErrDocumentNotFound is returned when a document is not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrQuerySyntax is returned when a query string cannot be compiled
	ErrQuerySyntax = errors.New("query syntax error")

	// ErrEngine is returned when the index engine fails to read or write its data
	ErrEngine = errors.New("engine error")

	// ErrUpstream is returned when the generative-text provider fails
	ErrUpstream = errors.New("upstream provider error")

	// ErrUpstreamUnavailable is returned when no generative-text provider is configured
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrCancelled is returned when the caller cancelled the request
	ErrCancelled = errors.New("request cancelled")

	// ErrMetadata is returned when metadata could not be persisted after a successful engine commit
	ErrMetadata = errors.New("metadata not persisted")
)

// Kind classifies an error for callers that need to map it to a response.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindQuerySyntax Kind = "query_syntax_error"
	KindEngine      Kind = "engine_error"
	KindUpstream    Kind = "upstream_error"
	KindCancelled   Kind = "cancelled"
	KindMetadata    Kind = "metadata_warning"
	KindInternal    Kind = "internal_error"
)

// KindOf maps any error to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMetadata):
		return KindMetadata
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrIndexNotFound), errors.Is(err, ErrDocumentNotFound):
		return KindNotFound
	case errors.Is(err, ErrIndexAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrQuerySyntax):
		return KindQuerySyntax
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstream
	case errors.Is(err, ErrEngine):
		return KindEngine
	}
	return KindInternal
}

// IndexNotFoundError represents an index not found error with context
type IndexNotFoundError struct {
	IndexName string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index named '%s' not found", e.IndexName)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

// NewIndexNotFoundError creates a new IndexNotFoundError
func NewIndexNotFoundError(indexName string) *IndexNotFoundError {
	return &IndexNotFoundError{IndexName: indexName}
}

// IndexAlreadyExistsError represents an index already exists error with context
type IndexAlreadyExistsError struct {
	IndexName string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index named '%s' already exists", e.IndexName)
}

func (e *IndexAlreadyExistsError) Is(target error) bool {
	return target == ErrIndexAlreadyExists
}

// NewIndexAlreadyExistsError creates a new IndexAlreadyExistsError
func NewIndexAlreadyExistsError(indexName string) *IndexAlreadyExistsError {
	return &IndexAlreadyExistsError{IndexName: indexName}
}

// DocumentNotFoundError represents a document not found error with context
type DocumentNotFoundError struct {
	DocumentID string
	IndexName  string
}

func (e *DocumentNotFoundError) Error() string {
	if e.IndexName != "" {
		return fmt.Sprintf("document with ID '%s' not found in index '%s'", e.DocumentID, e.IndexName)
	}
	return fmt.Sprintf("document with ID '%s' not found", e.DocumentID)
}

func (e *DocumentNotFoundError) Is(target error) bool {
	return target == ErrDocumentNotFound
}

// NewDocumentNotFoundError creates a new DocumentNotFoundError
func NewDocumentNotFoundError(documentID string, indexName ...string) *DocumentNotFoundError {
	err := &DocumentNotFoundError{DocumentID: documentID}
	if len(indexName) > 0 {
		err.IndexName = indexName[0]
	}
	return err
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// QuerySyntaxError reports why a query could not be compiled.
// Position is a byte offset into the query string, or -1 when the problem is not
// tied to a location (for example an unknown field in the request options).
type QuerySyntaxError struct {
	Position int
	Reason   string
}

func (e *QuerySyntaxError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("query syntax error at position %d: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("query syntax error: %s", e.Reason)
}

func (e *QuerySyntaxError) Is(target error) bool {
	return target == ErrQuerySyntax
}

// NewQuerySyntaxError creates a new QuerySyntaxError
func NewQuerySyntaxError(position int, format string, args ...interface{}) *QuerySyntaxError {
	return &QuerySyntaxError{Position: position, Reason: fmt.Sprintf(format, args...)}
}

// EngineError wraps a failure of the index engine for one index.
type EngineError struct {
	IndexName string
	Op        string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error on index '%s' during %s: %v", e.IndexName, e.Op, e.Err)
}

func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError
func NewEngineError(indexName, op string, err error) *EngineError {
	return &EngineError{IndexName: indexName, Op: op, Err: err}
}

// UpstreamError wraps a failure of the generative-text provider.
// StatusCode is the provider's HTTP status, or 0 when no response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream provider '%s' returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream provider '%s' failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(provider string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		StatusCode: statusCode,
		Timeout:    errors.Is(err, context.DeadlineExceeded),
		Err:        err,
	}
}

// MetadataWarning reports that the engine committed but the metadata store could not
// be updated. The index itself is intact.
type MetadataWarning struct {
	IndexName string
	Err       error
}

func (e *MetadataWarning) Error() string {
	return fmt.Sprintf("index '%s' committed but metadata was not persisted: %v", e.IndexName, e.Err)
}

func (e *MetadataWarning) Is(target error) bool {
	return target == ErrMetadata
}

func (e *MetadataWarning) Unwrap() error {
	return e.Err
}

// NewMetadataWarning creates a new MetadataWarning
func NewMetadataWarning(indexName string, err error) *MetadataWarning {
	return &MetadataWarning{IndexName: indexName, Err: err}
}

// IsWarning reports whether err only signals a recoverable metadata warning.
func IsWarning(err error) bool {
	return err != nil && KindOf(err) == KindMetadata
}
