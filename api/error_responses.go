package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/logger"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client Error Codes (4xx)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeIndexNotFound    ErrorCode = "INDEX_NOT_FOUND"
	ErrorCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrorCodeIndexExists      ErrorCode = "INDEX_ALREADY_EXISTS"
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidQuery     ErrorCode = "INVALID_QUERY"
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeRequestTooLarge  ErrorCode = "REQUEST_TOO_LARGE"

	// Server Error Codes (5xx)
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrorCodeEngineError         ErrorCode = "ENGINE_ERROR"
	ErrorCodeUpstreamFailed      ErrorCode = "UPSTREAM_FAILED"
	ErrorCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
)

// ErrorDetail provides additional context for an error
type ErrorDetail struct {
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Position *int   `json:"position,omitempty"` // byte offset into the query
}

// APIError represents a standardized API error response
type APIError struct {
	Error     string        `json:"error"`
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIErrorResponse creates a standardized error response
func APIErrorResponse(code ErrorCode, message string, details ...ErrorDetail) *APIError {
	return &APIError{
		Error:     "Request failed",
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// SendError sends a standardized error response
func SendError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...ErrorDetail) {
	errorResponse := APIErrorResponse(code, message, details...)

	if requestID, exists := c.Get(requestIDKey); exists {
		if id, ok := requestID.(string); ok {
			errorResponse.RequestID = id
		}
	}

	c.AbortWithStatusJSON(statusCode, errorResponse)
}

// SendStructuredValidationError sends a validation error with structured details
func SendStructuredValidationError(c *gin.Context, result *ValidationResult) {
	details := make([]ErrorDetail, len(result.Errors))
	for i, err := range result.Errors {
		details[i] = ErrorDetail{
			Field:   err.Field,
			Message: err.Message,
			Code:    "VALIDATION_ERROR",
		}
	}

	SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Request validation failed", details...)
}

// SendInvalidJSONError sends a standardized invalid JSON error
func SendInvalidJSONError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		SendError(c, http.StatusRequestEntityTooLarge, ErrorCodeRequestTooLarge,
			"Request body exceeds "+strconv.FormatInt(maxBytesErr.Limit, 10)+" bytes")
		return
	}
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON,
		"Invalid JSON in request body: "+err.Error())
}

// SendEngineError maps an error returned by the engine or its services to a response.
// Cancelled requests get no response.
func SendEngineError(c *gin.Context, err error) {
	switch internalErrors.KindOf(err) {
	case internalErrors.KindCancelled:
		c.Abort()
		return

	case internalErrors.KindValidation:
		var validationErr *internalErrors.ValidationError
		if errors.As(err, &validationErr) {
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, validationErr.Message,
				ErrorDetail{Field: validationErr.Field, Message: validationErr.Message, Code: "VALIDATION_ERROR"})
			return
		}
		SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())

	case internalErrors.KindNotFound:
		if errors.Is(err, internalErrors.ErrDocumentNotFound) {
			SendError(c, http.StatusNotFound, ErrorCodeDocumentNotFound, err.Error())
			return
		}
		SendError(c, http.StatusNotFound, ErrorCodeIndexNotFound, err.Error())

	case internalErrors.KindConflict:
		SendError(c, http.StatusConflict, ErrorCodeIndexExists, err.Error())

	case internalErrors.KindQuerySyntax:
		var syntaxErr *internalErrors.QuerySyntaxError
		if errors.As(err, &syntaxErr) && syntaxErr.Position >= 0 {
			SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, syntaxErr.Reason,
				ErrorDetail{Field: "query", Message: syntaxErr.Reason, Code: "QUERY_SYNTAX", Position: &syntaxErr.Position})
			return
		}
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, err.Error())

	case internalErrors.KindUpstream:
		var upstreamErr *internalErrors.UpstreamError
		switch {
		case errors.Is(err, internalErrors.ErrUpstreamUnavailable):
			SendError(c, http.StatusServiceUnavailable, ErrorCodeUpstreamUnavailable, "No generative-text provider is configured")
		case errors.As(err, &upstreamErr) && upstreamErr.Timeout:
			SendError(c, http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout, err.Error())
		default:
			SendError(c, http.StatusBadGateway, ErrorCodeUpstreamFailed, err.Error())
		}

	case internalErrors.KindEngine:
		logger.FromContext(c.Request.Context()).Error("engine error", zap.Error(err))
		SendError(c, http.StatusInternalServerError, ErrorCodeEngineError, err.Error())

	default:
		logger.FromContext(c.Request.Context()).Error("internal error", zap.Error(err))
		SendError(c, http.StatusInternalServerError, ErrorCodeInternalError, err.Error())
	}
}

// withWarnings adds the message of a recoverable metadata warning to a success body.
func withWarnings(body gin.H, err error) gin.H {
	if internalErrors.IsWarning(err) {
		body["warnings"] = []string{err.Error()}
	}
	return body
}

func isWarning(err error) bool {
	return internalErrors.IsWarning(err)
}
