package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/sites-backend-go/internal/service"
	"github.com/jengzang/sites-backend-go/pkg/response"
)

// StatsHandler handles HTTP requests for dataset statistics
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *service.StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// GetDatasetStats handles GET /api/v1/sites/stats
func (h *StatsHandler) GetDatasetStats(c *gin.Context) {
	top, err := strconv.Atoi(c.DefaultQuery("top", "10"))
	if err != nil || top < 0 {
		response.BadRequest(c, "Invalid top parameter", err)
		return
	}

	stats, err := h.service.GetDatasetStats(c.Request.Context(), top)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get dataset statistics", err)
		return
	}

	response.Success(c, stats)
}
