package api

import (
	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
)

// RegisterRoutes 注册全部 API 路由，业务接口位于 /v1 之下，公开简历页面位于 /view。
func RegisterRoutes(router *gin.Engine, deps Deps) {
	cfg := deps.Config
	logger := deps.logger()

	scanner := deps.Scanner
	if scanner == nil {
		scanner = noopScanner{}
	}

	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.Redis, cfg.Auth, logger)
	resumeHandler := NewResumeHandler(deps.DB, deps.Storage, deps.AI, scanner, cfg.API.PublicBaseURL, cfg.API.MaxImageSize, logger)
	documentHandler := NewDocumentHandler(deps.DB, deps.Composer, deps.Engine, deps.Tasks, deps.Storage, DocumentOptions{
		RenderTimeout: cfg.Assemble.RenderTimeout,
		LinkTTL:       cfg.Assemble.LinkTTL,
		MaxRetry:      cfg.Worker.MaxRetry,
	}, logger)
	annexeHandler := NewAnnexeHandler(deps.DB, deps.Storage, scanner, cfg.API.PublicBaseURL, cfg.API.MaxAnnexeSize, logger)
	fileHandler := NewFileHandler(deps.DB, deps.Storage, cfg.API.PublicBaseURL, logger)
	aiHandler := NewAIHandler(deps.DB, deps.AI, logger)
	blobHandler := NewPreviewBlobHandler(deps.Blobs, cfg.Preview.MaxBlobSize, logger)
	adminHandler := NewAdminHandler(deps.DB, deps.Storage, logger)
	viewHandler := NewViewHandler(deps.DB, deps.Composer, logger)
	wsHandler := NewWsHandler(deps.Redis, deps.Auth, logger, cfg.API.AllowedOrigins)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	router.GET("/view/:slug", viewHandler.View)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)
		v1.GET("/files/*key", fileHandler.ServeFile)
		v1.GET("/preview-blobs/:token", blobHandler.Get)
		v1.GET("/resumes/public/:id/with-annexes", resumeHandler.GetPublicResumeWithAnnexes)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		secured := v1.Group("")
		secured.Use(authMiddleware, passwordGate)
		{
			secured.GET("/users/data", authHandler.Me)
			secured.GET("/users/resumes", resumeHandler.ListResumes)
			secured.GET("/proxy/pdf", fileHandler.ProxyPDF)

			resumes := secured.Group("/resumes")
			{
				resumes.POST("/create", resumeHandler.CreateResume)
				resumes.GET("/:id", resumeHandler.GetResume)
				resumes.PUT("/update", resumeHandler.UpdateResume)
				resumes.DELETE("/delete/:id", resumeHandler.DeleteResume)
				resumes.POST("/:id/clone", resumeHandler.CloneResume)
				resumes.GET("/:id/with-annexes", resumeHandler.GetResumeWithAnnexes)
				resumes.PUT("/:id/annexes", resumeHandler.ReplaceAnnexes)
				resumes.POST("/:id/generate-pdf", documentHandler.GeneratePDF)
				resumes.POST("/:id/final-pdf", documentHandler.RequestFinalPDF)
				resumes.GET("/:id/final-pdf/link", documentHandler.GetFinalPDFLink)
			}

			annexes := secured.Group("/annexes")
			{
				annexes.GET("/list", annexeHandler.ListAnnexes)
				annexes.POST("/upload", annexeHandler.UploadAnnexe)
				annexes.DELETE("/delete/:id", annexeHandler.DeleteAnnexe)
			}

			ai := secured.Group("/ai")
			{
				ai.POST("/translate", aiHandler.Translate)
				ai.POST("/enhance-job-desc", aiHandler.EnhanceJobDescription)
				ai.POST("/upload-resume", aiHandler.UploadResume)
			}

			secured.POST("/preview-blobs", blobHandler.Create)
			secured.DELETE("/preview-blobs/:token", blobHandler.Revoke)
		}

		v1.POST("/admin/login", authHandler.AdminLogin)
		admin := v1.Group("/admin")
		admin.Use(authMiddleware, middleware.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/users", adminHandler.Users)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/resumes", adminHandler.Resumes)
			admin.DELETE("/resumes/:id", adminHandler.DeleteResume)
		}
	}
}
