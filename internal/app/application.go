package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"videopath-backend/internal/background"
	"videopath-backend/internal/config"
	"videopath-backend/internal/events"
	"videopath-backend/internal/handlers"
	"videopath-backend/internal/middleware"
	"videopath-backend/internal/models"
	"videopath-backend/internal/repository"
	"videopath-backend/internal/service"
	"videopath-backend/pkg/cache"
	"videopath-backend/pkg/logger"
)

const integrityAuditJobName = "integrity-audit"

type Application struct {
	cfg *config.Config

	db          *gorm.DB
	cache       *cache.Cache
	publisher   *events.AMQPPublisher
	scheduler   *background.Scheduler
	rateLimiter *middleware.RateLimitManager

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	router *gin.Engine
	server *http.Server

	cancel context.CancelFunc
}

type repositoryContainer struct {
	Video    repository.VideoRepository
	Quiz     repository.QuizRepository
	Progress repository.ProgressRepository
}

type serviceContainer struct {
	Catalog     *service.CatalogService
	Progression *service.ProgressionService
	Progress    *service.ProgressService
	Watch       *service.WatchService
	Quiz        *service.QuizService
	Integrity   *service.IntegrityService
}

type handlerContainer struct {
	Progress      *handlers.ProgressHandler
	Quiz          *handlers.QuizHandler
	Catalog       *handlers.CatalogHandler
	AdminProgress *handlers.AdminProgressHandler
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{cfg: cfg, cancel: cancel}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.runMigrations(); err != nil {
		app.closeResources()
		return nil, err
	}

	if err := app.initInfrastructure(ctx); err != nil {
		app.closeResources()
		return nil, err
	}

	app.initRepositories()
	app.initServices()

	if err := app.initJobs(); err != nil {
		app.closeResources()
		return nil, err
	}

	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":        a.cfg.Port,
		"environment": a.cfg.Environment,
		"db_driver":   a.cfg.DBDriver,
	})

	return a.server.ListenAndServe()
}

func (a *Application) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr = err
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			logger.Error(err, "Background jobs did not stop in time", nil)
		}
	}

	a.closeResources()
	return shutdownErr
}

func (a *Application) closeResources() {
	if a.cancel != nil {
		a.cancel()
	}

	if a.rateLimiter != nil {
		_ = a.rateLimiter.Shutdown()
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Error(err, "Failed to close event publisher", nil)
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

func (a *Application) initDatabase() error {
	logger.Info("Connecting to database", map[string]interface{}{"driver": a.cfg.DBDriver})

	var dialector gorm.Dialector
	switch a.cfg.DBDriver {
	case "postgres", "":
		dialector = postgres.Open(a.cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(a.cfg.SQLitePath)
	default:
		return fmt.Errorf("unsupported database driver %q", a.cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if a.cfg.UsesSQLite() {
		// SQLite serialises writers; one connection keeps transactions from
		// failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	a.db = db
	return nil
}

func (a *Application) runMigrations() error {
	if a.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	logger.Info("Running database migrations", nil)

	if err := a.db.AutoMigrate(
		&models.Video{},
		&models.Quiz{},
		&models.QuizQuestion{},
		&models.QuizOption{},
		&models.UserProgress{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration completed", nil)
	return nil
}

func (a *Application) initInfrastructure(ctx context.Context) error {
	cacheService, err := cache.NewCache(a.cfg.RedisURL, a.cfg.EnableCache)
	if err != nil {
		// The catalog cache is optional; run without it rather than refuse to start.
		logger.Error(err, "Redis unavailable, continuing without cache", nil)
		cacheService, _ = cache.NewCache("", false)
	}
	a.cache = cacheService

	// Entries written by a previous process may predate the current schema.
	if err := a.cache.InvalidateAll(); err != nil {
		logger.Warn("Failed to flush catalog cache on startup", map[string]interface{}{"error": err.Error()})
	}

	publisher, err := events.NewPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange)
	if err != nil {
		return fmt.Errorf("failed to initialise event publisher: %w", err)
	}
	a.publisher = publisher

	a.scheduler = background.NewScheduler(background.SchedulerConfig{
		WorkerCount: a.cfg.SchedulerWorkers,
		QueueSize:   a.cfg.SchedulerQueueSize,
	})
	a.scheduler.Start(ctx)

	a.rateLimiter = middleware.NewRateLimitManager(ctx)
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		Video:    repository.NewVideoRepository(a.db),
		Quiz:     repository.NewQuizRepository(a.db),
		Progress: repository.NewProgressRepository(a.db),
	}
}

func (a *Application) initServices() {
	repos := a.repositories
	threshold := a.cfg.WatchCompletionThreshold

	catalog := service.NewCatalogService(repos.Video, repos.Quiz, repos.Progress, a.cache)
	progression := service.NewProgressionService(repos.Progress, catalog, a.publisher)
	progress := service.NewProgressService(repos.Progress, catalog, progression, threshold)
	catalog.SetCompletionRecompute(a.scheduler, progress.RunRecompute)

	a.services = serviceContainer{
		Catalog:     catalog,
		Progression: progression,
		Progress:    progress,
		Watch:       service.NewWatchService(repos.Progress, catalog, progression, threshold),
		Quiz:        service.NewQuizService(catalog, progress, progression),
		Integrity:   service.NewIntegrityService(repos.Video, repos.Quiz, repos.Progress),
	}
}

func (a *Application) initJobs() error {
	if a.cfg.IntegrityAuditInterval <= 0 {
		logger.Info("Periodic integrity audit disabled", nil)
		return nil
	}

	return a.scheduler.ScheduleEvery(background.Job{
		Name:    integrityAuditJobName,
		Run:     a.services.Integrity.RunAudit,
		Timeout: 10 * time.Minute,
	}, a.cfg.IntegrityAuditInterval)
}

func (a *Application) initHandlers() {
	a.handlers = handlerContainer{
		Progress:      handlers.NewProgressHandler(a.services.Progress, a.services.Watch),
		Quiz:          handlers.NewQuizHandler(a.services.Quiz),
		Catalog:       handlers.NewCatalogHandler(a.services.Catalog),
		AdminProgress: handlers.NewAdminProgressHandler(a.services.Progress, a.services.Catalog, a.services.Integrity),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(a.rateLimiter, a.cfg))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		learner := v1.Group("")
		learner.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
		{
			learner.GET("/progress", a.handlers.Progress.GetProgress)
			learner.GET("/progress/access", a.handlers.Progress.GetAccess)
			learner.POST("/progress/watch", a.handlers.Progress.RecordWatch)
			learner.GET("/videos", a.handlers.Progress.ListVideos)

			learner.GET("/quizzes/:id", a.handlers.Quiz.Get)
			learner.POST("/quizzes/:id/submit",
				middleware.QuizSubmitRateLimitMiddleware(a.rateLimiter, a.cfg.QuizSubmitPerMinute),
				a.handlers.Quiz.Submit,
			)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
		admin.Use(middleware.AdminMiddleware())
		{
			admin.GET("/users/:id/progress", a.handlers.AdminProgress.GetUserProgress)
			admin.DELETE("/users/:id/progress", a.handlers.AdminProgress.ResetUserProgress)
			admin.POST("/progress/recompute", a.handlers.AdminProgress.Recompute)
			admin.GET("/integrity", a.handlers.AdminProgress.Integrity)

			admin.GET("/videos", a.handlers.Catalog.ListVideos)
			admin.POST("/videos", a.handlers.Catalog.CreateVideo)
			admin.PUT("/videos/:id", a.handlers.Catalog.UpdateVideo)
			admin.PUT("/videos/:id/publish", a.handlers.Catalog.PublishVideo)
			admin.PUT("/videos/:id/unpublish", a.handlers.Catalog.UnpublishVideo)

			admin.GET("/quizzes/:id", a.handlers.Catalog.GetQuiz)
			admin.POST("/quizzes", a.handlers.Catalog.CreateQuiz)
			admin.PUT("/quizzes/:id", a.handlers.Catalog.UpdateQuiz)
		}
	}

	a.router = router
}

func (a *Application) health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"database": "ok"}

	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = "unavailable"
	}
	if a.cache.Enabled() {
		checks["cache"] = "ok"
		if err := a.cache.Ping(c.Request.Context()); err != nil {
			checks["cache"] = "degraded"
		}
	}
	if a.publisher.Enabled() {
		checks["events"] = "ok"
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": healthy,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}
