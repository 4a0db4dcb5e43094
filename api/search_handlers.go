package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

// SearchHandler handles search requests to an index.
// Request Body: services.SearchRequest
func (api *API) SearchHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	var req services.SearchRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := accessor.Search(c.Request.Context(), req)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MultiSearchHandler runs several named queries against the same index.
// A failing query is reported in the "errors" map without failing the others.
func (api *API) MultiSearchHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	var req services.MultiSearchRequest
	if !bindJSON(c, &req) {
		return
	}

	multi, err := accessor.MultiSearch(c.Request.Context(), req)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, multi)
}

// SuggestHandler returns indexed terms starting with a prefix.
func (api *API) SuggestHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	var req model.SuggestRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := accessor.Suggest(req)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	c.JSON(http.StatusOK, resp)
}
