package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Schedule *handler.ScheduleHandler
	Exam     *handler.ExamHandler
	WS       *handler.WSHandler
	Monitor  *handler.MonitorHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// answerLimiter may be nil to disable rate limiting.
func SetupRouter(
	auth middleware.TokenValidator,
	answerLimiter *middleware.AnswerRateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Student Group (JWT, token type student) ────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth), middleware.NoStore())
	{
		studentAPI.POST("/exams/:exam_id/schedules/:schedule_id/sessions", handlers.Session.StartSession)

		sessions := studentAPI.Group("/sessions/:session_id")
		{
			sessions.GET("", handlers.Session.GetSession)
			sessions.GET("/paper", handlers.Session.GetPaper)
			sessions.GET("/time-remaining", handlers.Session.TimeRemaining)
			sessions.POST("/submit", handlers.Session.Submit)
			sessions.GET("/result", handlers.Session.GetResult)
			sessions.PUT("/questions/:question_id/status", handlers.Session.MarkStatus)

			answers := sessions.Group("/answers")
			if answerLimiter != nil {
				answers.Use(answerLimiter.Middleware())
			}
			answers.PUT("/:question_id", handlers.Session.RecordAnswer)
		}
	}

	// ─── 2. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1/student")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Admin Group (JWT, token type admin, permission per route) ──
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		schedules := adminAPI.Group("")
		schedules.Use(middleware.RequirePermission(model.PermissionSchedulesWrite))
		{
			schedules.POST("/exams/:exam_id/schedules", handlers.Schedule.CreateSchedule)
			schedules.GET("/schedules/:schedule_id", handlers.Schedule.GetSchedule)
			schedules.PUT("/schedules/:schedule_id", handlers.Schedule.UpdateSchedule)
			schedules.POST("/schedules/:schedule_id/cancel", handlers.Schedule.CancelSchedule)
		}

		adminAPI.POST("/exams/:exam_id/refresh-cache",
			middleware.RequirePermission(model.PermissionExamsRefresh), handlers.Exam.RefreshCache)
		adminAPI.GET("/exams/:exam_id/monitor",
			middleware.RequirePermission(model.PermissionExamsMonitor), handlers.Monitor.MonitorExamSSE)
		adminAPI.GET("/system/status",
			middleware.RequirePermission(model.PermissionExamsMonitor), handlers.System.Status)
	}

	return router
}
