package app

import (
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/docs"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/config"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/middleware"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公开路由：无需登录
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)

		// 课程目录与详情对游客开放，登录用户可叠加个性化信息
		public.GET("/courses", middleware.TryAuthMiddleware(cfg), c.course.ListCourses)
		public.GET("/courses/:courseId", middleware.TryAuthMiddleware(cfg), c.course.GetCourse)

		// 证书验证：第三方凭编号核验，无需任何凭证
		public.GET("/certificates/verify/:certificateId", c.certificate.Verify)
	}

	// 学生/通用授权路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/auth/me", c.auth.Me)

		authGroup.POST("/courses/:courseId/enroll", c.enrollment.Enroll)
		authGroup.DELETE("/courses/:courseId/enroll", c.enrollment.Unenroll)
		authGroup.GET("/my/courses", c.enrollment.ListMyCourses)

		authGroup.GET("/courses/:courseId/progress", c.progress.GetProgress)
		authGroup.POST("/courses/:courseId/progress/complete", c.progress.CompleteLesson)
		authGroup.POST("/courses/:courseId/progress/uncomplete", c.progress.UncompleteLesson)

		authGroup.POST("/courses/:courseId/quiz/submit", c.quiz.SubmitQuiz)
		authGroup.GET("/courses/:courseId/quiz/attempts", c.quiz.ListAttempts)

		authGroup.GET("/courses/:courseId/certificate/eligibility", c.certificate.CheckEligibility)
		authGroup.POST("/courses/:courseId/certificate", c.certificate.Generate)
		authGroup.GET("/my/certificates", c.certificate.ListMine)
	}

	// 讲师路由：管理员自动放行
	instructorGroup := router.Group("/api/instructor")
	instructorGroup.Use(
		middleware.AuthMiddleware(cfg),
		middleware.ActivityMiddleware(repos.user),
		middleware.RoleMiddleware(model.Instructor),
	)
	{
		instructorGroup.GET("/courses", c.course.ListMyCourses)
		instructorGroup.POST("/courses", c.course.CreateCourse)
		instructorGroup.GET("/courses/:courseId", c.course.GetCourseAsOwner)
		instructorGroup.PUT("/courses/:courseId", c.course.UpdateCourse)
		instructorGroup.DELETE("/courses/:courseId", c.course.DeleteCourse)
		instructorGroup.PUT("/courses/:courseId/publish", c.course.PublishCourse)
		instructorGroup.PUT("/courses/:courseId/certificate-config", c.course.UpdateCertificateConfig)

		instructorGroup.POST("/courses/:courseId/sections", c.course.AddSection)
		instructorGroup.PUT("/courses/:courseId/sections/:sectionId", c.course.UpdateSection)
		instructorGroup.DELETE("/courses/:courseId/sections/:sectionId", c.course.DeleteSection)
		instructorGroup.PUT("/courses/:courseId/sections/:sectionId/position", c.course.MoveSection)

		instructorGroup.POST("/courses/:courseId/sections/:sectionId/lectures", c.course.AddLecture)
		instructorGroup.PUT("/courses/:courseId/sections/:sectionId/lectures/:lectureId", c.course.UpdateLecture)
		instructorGroup.DELETE("/courses/:courseId/sections/:sectionId/lectures/:lectureId", c.course.DeleteLecture)
		instructorGroup.PUT("/courses/:courseId/sections/:sectionId/lectures/:lectureId/position", c.course.MoveLecture)
		instructorGroup.POST("/courses/:courseId/sections/:sectionId/lectures/:lectureId/video", c.course.UploadLectureVideo)
	}
}
