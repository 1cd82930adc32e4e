package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/handler"
	"github.com/iatidata/sector-harvester/internal/middleware"
	"github.com/iatidata/sector-harvester/internal/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// activityMaxAge is the client cache lifetime of a stored activity document.
const activityMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Activity *handler.ActivityHandler
	Run      *handler.RunHandler
}

// SetupRouter configures the read API routes with their middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// Match on the escaped path so identifiers may carry %2F.
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(gin.Recovery())

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*).
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewRateLimiter(cfg.RequestsPerMinute, time.Minute)

	api := router.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		activities := api.Group("/activities")
		{
			activities.GET("", handlers.Activity.ListActivities)
			activities.GET("/:identifier", middleware.CacheControl(activityMaxAge), handlers.Activity.GetActivity)
		}

		runs := api.Group("/runs")
		runs.Use(middleware.NoStore())
		{
			runs.GET("/latest", handlers.Run.GetLatestRun)
			runs.GET("/:run_id", handlers.Run.GetRun)
		}
	}

	return router
}
