package query

import (
	"log/slog"
	"net/http"

	httperr "github.com/loghive/loghive/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the query API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/events", s.HandleListEvents)
	r.GET("/v1/stats", s.HandleStats)
}

// HandleListEvents handles GET /v1/events?topic=&limit=&offset=.
func (s *Service) HandleListEvents(c *gin.Context) {
	var query struct {
		Topic  string `form:"topic"`
		Limit  int    `form:"limit,default=100"`
		Offset int    `form:"offset,default=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.ListEvents(c.Request.Context(), query.Topic, query.Limit, query.Offset)
	if err != nil {
		slog.Error("[Query] List events failed", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailable,
			Message:   "Failed to retrieve events",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/stats.
func (s *Service) HandleStats(c *gin.Context) {
	resp, err := s.Stats(c.Request.Context())
	if err != nil {
		slog.Error("[Query] Stats read failed", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailable,
			Message:   "Failed to retrieve stats",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
