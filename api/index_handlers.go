package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

// CreateIndexRequest is the body of POST /indexes.
type CreateIndexRequest struct {
	Name   string                   `json:"name" binding:"required,indexname"`
	Fields []config.FieldDefinition `json:"fields"`
}

// defaultFields is the schema of an index created without fields.
func defaultFields() []config.FieldDefinition {
	return []config.FieldDefinition{
		{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
		{Name: "content", Type: model.FieldTypeText, Stored: true, Indexed: true},
	}
}

// CreateIndexHandler handles the request to create a new index.
// Request Body: CreateIndexRequest
func (api *API) CreateIndexHandler(c *gin.Context) {
	var req CreateIndexRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = defaultFields()
	}
	def := config.IndexDefinition{Name: req.Name, Fields: fields}
	if conflicts := def.Validate(); len(conflicts) > 0 {
		result := &ValidationResult{Valid: true}
		for _, conflict := range conflicts {
			result.AddError("fields", conflict)
		}
		SendStructuredValidationError(c, result)
		return
	}

	if err := api.engine.CreateIndex(c.Request.Context(), def); err != nil {
		SendEngineError(c, err)
		return
	}

	created, err := api.engine.GetIndexDefinition(req.Name)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Index '" + req.Name + "' created successfully",
		"index":   created,
	})
}

// ListIndexesHandler lists every index with its document count.
func (api *API) ListIndexesHandler(c *gin.Context) {
	indexes := api.engine.ListIndexes()
	c.JSON(http.StatusOK, gin.H{
		"indexes": indexes,
		"count":   len(indexes),
	})
}

// GetIndexHandler returns the definition of an index.
func (api *API) GetIndexHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	c.JSON(http.StatusOK, accessor.Definition())
}

// GetIndexStatsHandler returns statistics about an index.
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	stats, err := accessor.Stats()
	if err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DeleteIndexHandler removes an index and all of its data.
func (api *API) DeleteIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if result := ValidateIndexName(indexName); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}
	if err := api.engine.DeleteIndex(c.Request.Context(), indexName); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Index '" + indexName + "' deleted successfully"})
}
