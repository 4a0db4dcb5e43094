package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

var registerOnce sync.Once

// RegisterValidators adds the custom tags used by request types to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("indexname", func(fl validator.FieldLevel) bool {
				return config.ValidateIndexName(fl.Field().String()) == ""
			})
		}
	})
}

// ValidateIndexName validates an index name parameter
func ValidateIndexName(indexName string) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if msg := config.ValidateIndexName(indexName); msg != "" {
		result.AddError("indexName", msg)
	}
	return result
}

// ValidateDocumentID validates a document ID
func ValidateDocumentID(documentID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if documentID == "" {
		result.AddError("documentID", "Document ID is required")
		return result
	}

	if strings.TrimSpace(documentID) != documentID {
		result.AddError("documentID", "Document ID cannot have leading or trailing whitespace")
		return result
	}

	return result
}

// ValidateDocuments validates a slice of documents for addition
func ValidateDocuments(docs []model.RawDocument) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(docs) == 0 {
		result.AddError("documents", "No documents provided")
		return result
	}
	if len(docs) > config.MaxDocumentsPerRequest {
		result.AddError("documents", fmt.Sprintf("Too many documents in one request (%d), maximum is %d", len(docs), config.MaxDocumentsPerRequest))
		return result
	}

	for i, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			result.AddError(fmt.Sprintf("documents[%d].id", i), "Document must have a non-empty 'id'")
		}
	}

	return result
}

// bindJSON binds the request body into obj. On failure it sends the error response
// and returns false.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		result := &ValidationResult{Valid: true}
		for _, fe := range validationErrs {
			result.AddError(fieldPath(fe), describe(fe))
		}
		SendStructuredValidationError(c, result)
		return false
	}
	SendInvalidJSONError(c, err)
	return false
}

// fieldPath turns "SearchRequest.Aggregations[0].Name" into "Aggregations[0].Name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "indexname":
		return config.ValidateIndexName(fmt.Sprint(fe.Value()))
	}
	return "failed the '" + fe.Tag() + "' check"
}
