package app

import (
	"assess_edu_backend/docs"
	"assess_edu_backend/internal/config"
	"assess_edu_backend/internal/middleware"
	"assess_edu_backend/internal/model"
	"assess_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	// 注解里的路由已带 /api 前缀
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 公共路由（无需登录）
	router.POST("/api/register", c.auth.Register)
	router.POST("/api/login", c.auth.Login)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.Profile)

		// 学生作答
		authGroup.GET("/assessments", c.assessment.List)
		authGroup.GET("/assessments/:id", c.assessment.Get)
		authGroup.POST("/assessments/:id/attempts", c.attempt.Start)
		authGroup.POST("/attempts/:id/answers", c.attempt.SaveAnswer)
		authGroup.POST("/attempts/:id/submit", c.attempt.Submit)
		authGroup.GET("/attempts/:id/progress", c.attempt.Progress)
		authGroup.GET("/attempts/:id/review", c.attempt.Review)

		// 教师侧：定义维护、名单、预览、成绩
		teacher := authGroup.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
		{
			teacher.POST("/assessments", c.assessment.Create)
			teacher.PUT("/assessments/:id", c.assessment.Update)
			teacher.POST("/assessments/:id/publish", c.assessment.Publish)
			teacher.POST("/assessments/:id/enrollments", c.assessment.Enroll)
			teacher.POST("/assessments/:id/preview", c.attempt.StartPreview)
			teacher.DELETE("/attempts/:id/preview", c.attempt.DeletePreview)
			teacher.GET("/assessments/:id/results", c.attempt.ListResults)
		}
	}
}
