package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-service/model"
)

// SynonymsRequest is the body of the synonym write endpoints.
type SynonymsRequest struct {
	Synonyms []model.SynonymGroup `json:"synonyms" binding:"required,min=1,dive"`
}

// SynonymsResponse lists the synonym groups of an index.
type SynonymsResponse struct {
	Synonyms []model.SynonymGroup `json:"synonyms"`
}

// PinnedRulesRequest is the body of the pinned-rule write endpoints.
type PinnedRulesRequest struct {
	Rules []model.PinnedRule `json:"rules" binding:"required,min=1,dive"`
}

// PinnedRulesResponse lists the pinned rules of an index.
type PinnedRulesResponse struct {
	Rules []model.PinnedRule `json:"rules"`
}

// GetSynonymsHandler handles GET /indexes/:indexName/synonyms
func (api *API) GetSynonymsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	synonyms := accessor.Synonyms()
	if synonyms == nil {
		synonyms = []model.SynonymGroup{}
	}
	c.JSON(http.StatusOK, SynonymsResponse{Synonyms: synonyms})
}

// SetSynonymsHandler handles PUT /indexes/:indexName/synonyms and replaces every group.
func (api *API) SetSynonymsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	var req SynonymsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := accessor.SetSynonyms(c.Request.Context(), req.Synonyms); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, SynonymsResponse{Synonyms: accessor.Synonyms()})
}

// AddSynonymsHandler handles POST /indexes/:indexName/synonyms and appends groups.
func (api *API) AddSynonymsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	var req SynonymsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := accessor.AddSynonyms(c.Request.Context(), req.Synonyms); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, SynonymsResponse{Synonyms: accessor.Synonyms()})
}

// ClearSynonymsHandler handles DELETE /indexes/:indexName/synonyms
func (api *API) ClearSynonymsHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	if err := accessor.ClearSynonyms(c.Request.Context()); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Synonyms cleared"})
}

// GetPinnedRulesHandler handles GET /indexes/:indexName/pinned
func (api *API) GetPinnedRulesHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	rules := accessor.PinnedRules()
	if rules == nil {
		rules = []model.PinnedRule{}
	}
	c.JSON(http.StatusOK, PinnedRulesResponse{Rules: rules})
}

// SetPinnedRulesHandler handles PUT /indexes/:indexName/pinned and replaces every rule.
func (api *API) SetPinnedRulesHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	var req PinnedRulesRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := accessor.SetPinnedRules(c.Request.Context(), req.Rules); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, PinnedRulesResponse{Rules: accessor.PinnedRules()})
}

// AddPinnedRulesHandler handles POST /indexes/:indexName/pinned and appends rules.
func (api *API) AddPinnedRulesHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	var req PinnedRulesRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := accessor.AddPinnedRules(c.Request.Context(), req.Rules); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, PinnedRulesResponse{Rules: accessor.PinnedRules()})
}

// ClearPinnedRulesHandler handles DELETE /indexes/:indexName/pinned
func (api *API) ClearPinnedRulesHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}
	if err := accessor.ClearPinnedRules(c.Request.Context()); err != nil {
		SendEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pinned rules cleared"})
}
