package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

// BulkRequest is the body of POST /indexes/:indexName/documents/_bulk.
type BulkRequest struct {
	Operations []model.BulkOperation `json:"operations" binding:"required,min=1,dive"`
}

// decodeDocuments accepts a single document, an array of documents or an object
// with a "documents" array. Numbers are kept as json.Number so large integers keep
// their precision.
func decodeDocuments(body []byte) ([]model.RawDocument, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("request body is empty")
	}

	decode := func(data []byte, v interface{}) error {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		return dec.Decode(v)
	}

	if body[0] == '[' {
		var docs []model.RawDocument
		if err := decode(body, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var wrapper map[string]json.RawMessage
	if err := decode(body, &wrapper); err != nil {
		return nil, err
	}
	if raw, ok := wrapper["documents"]; ok {
		var docs []model.RawDocument
		if err := decode(raw, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var doc model.RawDocument
	if err := decode(body, &doc); err != nil {
		return nil, err
	}
	return []model.RawDocument{doc}, nil
}

// AddDocumentsHandler handles adding/updating documents in an index.
func (api *API) AddDocumentsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	docs, err := decodeDocuments(body)
	if err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if result := ValidateDocuments(docs); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	indexed, err := accessor.IndexDocuments(c.Request.Context(), docs)
	if err != nil && !isWarning(err) {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{
		"message": "Documents indexed successfully",
		"indexed": indexed,
	}, err))
}

// BulkHandler applies a mixed list of index and delete operations.
func (api *API) BulkHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	var req BulkRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Operations) > config.MaxBulkOperations {
		result := &ValidationResult{Valid: true}
		result.AddError("operations", "Too many operations in one request")
		SendStructuredValidationError(c, result)
		return
	}

	resp, err := accessor.Bulk(c.Request.Context(), req.Operations)
	if err != nil && !isWarning(err) {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{
		"total":      resp.Total,
		"successful": resp.Successful,
		"failed":     resp.Failed,
		"errors":     resp.Errors,
	}, err))
}

// GetDocumentHandler returns the stored fields of a document.
func (api *API) GetDocumentHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	documentID := c.Param("documentId")
	if result := ValidateDocumentID(documentID); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	doc, err := accessor.GetDocument(documentID)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocumentHandler removes a single document.
func (api *API) DeleteDocumentHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	documentID := c.Param("documentId")
	if result := ValidateDocumentID(documentID); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	err := accessor.DeleteDocument(c.Request.Context(), documentID)
	if err != nil && !isWarning(err) {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{
		"message": "Document '" + documentID + "' deleted successfully",
	}, err))
}
