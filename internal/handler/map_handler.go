package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/sites-backend-go/internal/loader"
	"github.com/jengzang/sites-backend-go/internal/models"
	"github.com/jengzang/sites-backend-go/internal/service"
	"github.com/jengzang/sites-backend-go/internal/spatial"
	"github.com/jengzang/sites-backend-go/pkg/response"
)

// bootstrapTimeout bounds a bootstrap triggered over HTTP
const bootstrapTimeout = 30 * time.Second

// MapHandler handles HTTP requests for the map loader
type MapHandler struct {
	controller *loader.Controller
	modes      *service.ModeService
}

// NewMapHandler creates a new map handler
func NewMapHandler(controller *loader.Controller, modes *service.ModeService) *MapHandler {
	return &MapHandler{controller: controller, modes: modes}
}

// GetSnapshot handles GET /api/v1/map/snapshot
func (h *MapHandler) GetSnapshot(c *gin.Context) {
	response.Success(c, snapshotResponse(h.controller.State(), c.Query("include")))
}

// UpdateViewport handles POST /api/v1/map/viewport
func (h *MapHandler) UpdateViewport(c *gin.Context) {
	var bounds models.Viewport
	if err := c.ShouldBindJSON(&bounds); err != nil {
		response.BadRequest(c, "Invalid viewport", err)
		return
	}

	if err := h.controller.OnViewportChanged(bounds); err != nil {
		switch {
		case errors.Is(err, loader.ErrInvalidViewport):
			response.BadRequest(c, "Invalid viewport", err)
		case errors.Is(err, loader.ErrClosed):
			response.ServiceUnavailable(c, "Loader is shutting down", err)
		default:
			response.Error(c, http.StatusInternalServerError, "Failed to schedule viewport query", err)
		}
		return
	}

	lat, lon := spatial.Center(bounds)
	response.Accepted(c, gin.H{
		"viewport": bounds,
		"center":   gin.H{"lat": lat, "lon": lon},
		"areaKm2":  spatial.AreaKm2(bounds),
	})
}

// Bootstrap handles POST /api/v1/map/bootstrap
func (h *MapHandler) Bootstrap(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), bootstrapTimeout)
	defer cancel()

	snap, err := h.controller.Bootstrap(ctx)
	if err != nil {
		switch {
		case errors.Is(err, loader.ErrBootstrapInProgress):
			response.Conflict(c, "Bootstrap already running", err)
		case errors.Is(err, loader.ErrColdStart):
			response.ServiceUnavailable(c, "Cold start failed, retry later", err)
		case errors.Is(err, loader.ErrClosed):
			response.ServiceUnavailable(c, "Loader is shutting down", err)
		default:
			response.Error(c, http.StatusInternalServerError, "Bootstrap failed", err)
		}
		return
	}

	response.Success(c, gin.H{
		"totalCount":   snap.TotalCount,
		"isSampled":    snap.IsSampled,
		"visibleCount": len(snap.Visible),
	})
}

// SetSafeMode handles POST /api/v1/map/safe-mode
func (h *MapHandler) SetSafeMode(c *gin.Context) {
	var req models.SafeModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	h.modes.SetSafeMode(*req.Enabled, "operator")
	response.Success(c, snapshotResponse(h.controller.State(), ""))
}

// StartWarmup handles POST /api/v1/map/warmup
func (h *MapHandler) StartWarmup(c *gin.Context) {
	started := h.controller.RunWarmupOnce()
	response.Accepted(c, gin.H{
		"started":      started,
		"hasRequested": h.controller.WarmupGuard().HasRequested(),
	})
}

func snapshotResponse(st loader.State, include string) models.MapSnapshotResponse {
	resp := models.MapSnapshotResponse{
		TotalCount:         st.TotalCount,
		IsSampled:          st.IsSampled,
		SafeMode:           st.SafeMode,
		CurrentLimit:       st.Adaptive.CurrentLimit,
		LimitMin:           st.Bounds.Min,
		LimitMax:           st.Bounds.Max,
		ConsecutiveSlow:    st.Adaptive.ConsecutiveSlow,
		ConsecutiveFailure: st.Adaptive.ConsecutiveFailures,
		VisibleCount:       len(st.Visible),
		FallbackCount:      len(st.Fallback),
	}
	switch include {
	case "ids":
		resp.VisibleIDs = models.SiteIDs(st.Visible)
	case "none":
	default:
		resp.Visible = st.Visible
	}
	return resp
}
