package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gradewise/gradewise-backend/internal/config"
	"github.com/gradewise/gradewise-backend/internal/handler"
	"github.com/gradewise/gradewise-backend/internal/middleware"
	"github.com/gradewise/gradewise-backend/internal/response"
	"github.com/gradewise/gradewise-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt    *handler.AttemptHandler
	Statistics *handler.StatisticsHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Autosave traffic dominates; the budget fits a client saving every
	// few seconds with headroom for reloads.
	studentLimiter := middleware.NewRateLimiter(120, time.Minute)

	// Student group (JWT).
	studentAPI := router.Group("/api/v1")
	studentAPI.Use(
		middleware.RequireStudentJWT(tokens),
		studentLimiter.Middleware(),
	)
	{
		studentAPI.GET("/assessments/:assessment_id/paper", handlers.Attempt.GetPaper)
		studentAPI.POST("/assessments/:assessment_id/attempts", handlers.Attempt.Begin)
		studentAPI.GET("/attempts", handlers.Attempt.ListMine)
		studentAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.GetState)
		studentAPI.PUT("/attempts/:attempt_id/progress", handlers.Attempt.SaveProgress)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
	}

	// WebSocket group (student WS auth via ?token=).
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(tokens))
	{
		ws.GET("/attempts/:attempt_id/clock", handlers.WS.AttemptClockStream)
	}

	// Instructor group (JWT).
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(middleware.RequireInstructorJWT(tokens))
	{
		instructorAPI.GET("/assessments/:assessment_id/statistics", handlers.Statistics.GetStatistics)
		instructorAPI.GET("/assessments/:assessment_id/attempts", handlers.Statistics.ListAttempts)
	}

	return router
}
