package api

import (
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-service/services"
)

// AnswerHandler generates an answer from the top hits of a search.
// With "stream": false the answer is returned as one JSON document, otherwise it is
// sent as server-sent events: metadata, chunk..., then done or error.
func (api *API) AnswerHandler(c *gin.Context) {
	accessor := api.indexAccessor(c)
	if accessor == nil {
		return
	}

	var req services.AnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	if !api.answers.Enabled() {
		SendError(c, http.StatusServiceUnavailable, ErrorCodeUpstreamUnavailable, "No generative-text provider is configured")
		return
	}

	ctx := c.Request.Context()
	if !req.Streaming() {
		resp, err := api.answers.Answer(ctx, accessor, req)
		if err != nil {
			SendEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	stream, err := api.answers.Stream(ctx, accessor, req)
	if err != nil {
		SendEngineError(c, err)
		return
	}
	defer stream.Close()

	header := c.Writer.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		ev, ok := stream.Next(ctx)
		if !ok {
			return
		}
		c.Render(-1, sse.Event{Event: string(ev.Type), Data: ev.Data})
		c.Writer.Flush()
	}
}
