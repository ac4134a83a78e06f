package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/eduvault/eduvault-api/api/swagger"
	"github.com/eduvault/eduvault-api/internal/handler"
	"github.com/eduvault/eduvault-api/internal/middleware"
	"github.com/eduvault/eduvault-api/internal/models"
	"github.com/eduvault/eduvault-api/internal/repository"
	"github.com/eduvault/eduvault-api/internal/service"
	"github.com/eduvault/eduvault-api/pkg/cache"
	"github.com/eduvault/eduvault-api/pkg/config"
	"github.com/eduvault/eduvault-api/pkg/database"
	"github.com/eduvault/eduvault-api/pkg/logger"
	corsmiddleware "github.com/eduvault/eduvault-api/pkg/middleware/cors"
	reqidmiddleware "github.com/eduvault/eduvault-api/pkg/middleware/requestid"
	"github.com/eduvault/eduvault-api/pkg/storage"
)

// @title EduVault API
// @version 1.0.0
// @description Role-based content management backend for an educational media library
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis is an accelerator here, not a dependency. The cache
		// repository degrades to no-ops without a client.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	uploader := storage.NewUploader(uploadStore, cfg.Uploads.PublicBaseURL)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authService := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:    cfg.JWT.Secret,
		AccessTokenExpiry:    cfg.JWT.Expiration,
		RefreshTokenExpiry:   cfg.JWT.RefreshExpiration,
		VerificationTokenTTL: cfg.Auth.VerificationTokenTTL,
		Issuer:               "eduvault-api",
		SingleSession:        cfg.Auth.SingleSession,
	})
	metricsService := service.NewMetricsService()
	userService := service.NewUserService(userRepo, logr)
	fileService := service.NewFileService(fileRepo, uploader, userRepo, cacheRepo, metricsService, validate, logr, service.FileServiceConfig{
		CacheTTL:     cfg.Listing.CacheTTL,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	})
	documentService := service.NewDocumentService(documentRepo, userRepo, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, fileRepo, userRepo, validate, logr)
	categoryService := service.NewCategoryService(categoryRepo, userRepo, validate, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		exportService = service.NewExportService(exportRepo, fileRepo, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
			Retries:   cfg.Exports.WorkerRetries,
		}, validate, logr)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exportService != nil {
		exportService.Start(rootCtx)
		defer exportService.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	fileHandler := handler.NewFileHandler(fileService, cfg.Uploads.MaxFileSizeBytes)
	documentHandler := handler.NewDocumentHandler(documentService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), userHandler.List)
		users.GET("/me/capabilities", userHandler.Capabilities)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleManager), "SELF"), userHandler.Get)
		users.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), userHandler.Approve)
		users.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), userHandler.Reject)
		users.PUT("/:id/role", middleware.RequireRoles(models.RoleAdmin), userHandler.ChangeRole)
	}

	files := api.Group("/files", middleware.JWT(authService))
	{
		files.GET("", fileHandler.List)
		files.GET("/:id", fileHandler.Get)
		files.POST("", fileHandler.Upload)
		files.PATCH("/:id", fileHandler.Update)
		files.DELETE("/:id", fileHandler.Delete)
	}

	documents := api.Group("/documents", middleware.JWT(authService))
	{
		documents.GET("", documentHandler.List)
		documents.GET("/:id", documentHandler.Get)
		documents.POST("", documentHandler.Create)
		documents.PATCH("/:id", documentHandler.Update)
		documents.DELETE("/:id", documentHandler.Delete)
	}

	lessons := api.Group("/lessons", middleware.JWT(authService))
	{
		lessons.GET("", lessonHandler.List)
		lessons.GET("/:id", lessonHandler.Get)
		lessons.POST("", lessonHandler.Create)
		lessons.PATCH("/:id", lessonHandler.Update)
		lessons.DELETE("/:id", lessonHandler.Delete)
	}

	categories := api.Group("/categories", middleware.JWT(authService))
	{
		categories.GET("", categoryHandler.List)
		categories.GET("/:id", categoryHandler.Get)
		categories.POST("", categoryHandler.Create)
		categories.PATCH("/:id", categoryHandler.Update)
		categories.DELETE("/:id", categoryHandler.Delete)
	}

	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService)
		exports := api.Group("/exports")
		{
			// The download URL is pre-signed; it must work without a
			// session. Claims are still attached when a token is sent
			// so the audit row can attribute the download.
			exports.GET("/download/:token",
				middleware.OptionalJWT(authService),
				middleware.Audit(userRepo, models.AuditActionExportDownload, "export"),
				exportHandler.Download)

			authedExports := exports.Group("", middleware.JWT(authService))
			authedExports.POST("", exportHandler.Create)
			authedExports.GET("", exportHandler.List)
			authedExports.GET("/:id", exportHandler.Get)
		}
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/metrics", metricsHandler.Snapshot)
	}
	r.GET("/metrics", metricsHandler.Prometheus)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
