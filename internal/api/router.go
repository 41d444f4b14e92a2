package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/sites-backend-go/internal/config"
	"github.com/jengzang/sites-backend-go/internal/handler"
	"github.com/jengzang/sites-backend-go/internal/loader"
	"github.com/jengzang/sites-backend-go/internal/metrics"
	"github.com/jengzang/sites-backend-go/internal/middleware"
	"github.com/jengzang/sites-backend-go/internal/service"
)

// Deps holds what the router wires into handlers. The caller runs the
// Limiter's sweep loop.
type Deps struct {
	Config     *config.Config
	Controller *loader.Controller
	Modes      *service.ModeService
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	Stats      *service.StatsService
	Limiter    *middleware.RateLimiter
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		st := d.Controller.State()
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"message":    "Sites Backend API is running",
			"safeMode":   st.SafeMode,
			"totalCount": st.TotalCount,
			"time":       time.Now().UTC(),
		})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	viewport := []gin.HandlerFunc{}
	if d.Limiter != nil {
		viewport = append(viewport, middleware.RateLimit(d.Limiter))
	}
	operator := middleware.RequireOperator(d.Config.JWTSecret)

	maps := handler.NewMapHandler(d.Controller, d.Modes)
	viewport = append(viewport, maps.UpdateViewport)
	stream := handler.NewStreamHandler(d.Controller, d.Logger)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 地图加载接口
		m := api.Group("/map")
		{
			m.GET("/snapshot", maps.GetSnapshot)
			m.POST("/viewport", viewport...)
			m.POST("/bootstrap", maps.Bootstrap)
			m.POST("/safe-mode", operator, maps.SetSafeMode)
			m.POST("/warmup", operator, maps.StartWarmup)
			m.GET("/stream", stream.Stream)
		}

		// 数据集统计接口
		if d.Stats != nil {
			api.GET("/sites/stats", handler.NewStatsHandler(d.Stats).GetDatasetStats)
		}
	}

	return r
}
