package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerExamRoutes(authGroup, c)
		a.registerAttemptRoutes(authGroup, c)
		a.registerRemediationRoutes(authGroup, c)
		a.registerProgressRoutes(authGroup, c, cfg)
		a.registerAnalyticsRoutes(authGroup, c)
		a.registerQuestionRoutes(authGroup, c)
	}

	a.registerAdminRoutes(authGroup, c)
}

func (a *App) registerExamRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/exams", c.exam.CreateCustom)
	rg.GET("/exams/mine", c.exam.ListMine)
	rg.POST("/exams/practice", c.exam.GeneratePractice)
	rg.POST("/exams/retest", c.exam.GenerateRetest)
	rg.GET("/exams/:id", c.exam.Get)
	rg.DELETE("/exams/:id", c.exam.Delete)
	rg.POST("/exams/:id/randomize", c.exam.Randomize)
}

func (a *App) registerAttemptRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/exams/:id/attempts", c.attempt.Start)
	rg.GET("/attempts", c.attempt.ListMine)
	rg.GET("/attempts/:id", c.attempt.Get)
	rg.PUT("/attempts/:id/answers/:questionId", c.attempt.Autosave)
	rg.POST("/attempts/:id/submit", c.attempt.Submit)
}

func (a *App) registerRemediationRoutes(rg *gin.RouterGroup, c *controllers) {
	remediation := rg.Group("/remediation")
	{
		remediation.GET("/mistakes", c.remediation.ListMistakes)
		remediation.GET("/revisions", c.remediation.ListRevisions)
		remediation.PUT("/revisions", c.remediation.UpsertRevision)
		remediation.GET("/weak-topics", c.remediation.ListWeakTopics)
	}
}

func (a *App) registerProgressRoutes(rg *gin.RouterGroup, c *controllers, cfg *config.Config) {
	// 心跳按学习者单独限流
	rg.POST("/materials/:id/heartbeat",
		security.KeyedRateLimiter(cfg.RateLimit.HeartbeatsPerMinute, middleware.LearnerKey),
		c.progress.Heartbeat,
	)
	rg.GET("/topics/:id/progress", c.progress.TopicProgress)
	rg.GET("/courses/:id/progress", c.progress.CourseProgress)
}

func (a *App) registerAnalyticsRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/analytics/summary", c.analytics.Summary)
	rg.GET("/courses/:id/exam-summary", c.analytics.EnrollmentSummary)
}

func (a *App) registerQuestionRoutes(rg *gin.RouterGroup, c *controllers) {
	questions := rg.Group("/questions")
	{
		questions.POST("/select", c.question.Select)
		questions.POST("/import", c.question.Import)
		questions.POST("/import/storage", c.question.ImportFromStorage)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.PATCH("/exams/:id", c.exam.Update)
	}
}
