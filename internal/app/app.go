package app

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/controller"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/configwatcher"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/security"
	"learnhub_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	tracer          *sdktrace.TracerProvider
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	question    *repository.QuestionRepository
	exam        *repository.ExamRepository
	attempt     *repository.AttemptRepository
	remediation *repository.RemediationRepository
	progress    *repository.ProgressRepository
	catalog     *repository.CatalogRepository
	enrollment  *repository.EnrollmentRepository
	analytics   *repository.AnalyticsRepository
}

type services struct {
	storage     *service.StorageService
	policy      *service.Policy
	pool        *service.QuestionPoolService
	exam        *service.ExamService
	attempt     *service.AttemptService
	remediation *service.RemediationService
	progress    *service.ProgressService
	analytics   *service.AnalyticsService
}

type controllers struct {
	exam        *controller.ExamController
	attempt     *controller.AttemptController
	question    *controller.QuestionController
	remediation *controller.RemediationController
	progress    *controller.ProgressController
	analytics   *controller.AnalyticsController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		question:    repository.NewQuestionRepository(db),
		exam:        repository.NewExamRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		remediation: repository.NewRemediationRepository(db),
		progress:    repository.NewProgressRepository(db),
		catalog:     repository.NewCatalogRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		analytics:   repository.NewAnalyticsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.policy = service.NewPolicy(nil)
	s.pool = service.NewQuestionPoolService(repos.question, repos.catalog, s.storage, s.policy)
	s.remediation = service.NewRemediationService(repos.remediation, repos.question)
	s.analytics = service.NewAnalyticsService(
		repos.analytics,
		repos.catalog,
		repos.enrollment,
		rdb,
		time.Duration(cfg.Analytics.CacheTTLSeconds)*time.Second,
	)
	s.attempt = service.NewAttemptService(
		repos.attempt,
		repos.exam,
		repos.question,
		repos.enrollment,
		s.remediation,
		s.analytics,
		s.policy,
	)
	s.progress = service.NewProgressService(repos.progress, repos.catalog, s.policy, cfg.Progress)
	s.exam = service.NewExamService(
		repos.exam,
		repos.remediation,
		repos.catalog,
		repos.enrollment,
		s.pool,
		service.NewSampler(nil),
		s.policy,
		&cfg.Exam,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		exam:        controller.NewExamController(s.exam),
		attempt:     controller.NewAttemptController(s.attempt),
		question:    controller.NewQuestionController(s.pool, s.storage),
		remediation: controller.NewRemediationController(s.remediation),
		progress:    controller.NewProgressController(s.progress),
		analytics:   controller.NewAnalyticsController(s.analytics),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// StartConfigWatcher 配置文件变更后依次触发已注册的回调
func (a *App) StartConfigWatcher(ctx context.Context, path string) {
	go func() {
		err := configwatcher.WatchConfig(ctx, path, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	// 计时参数支持热更新，其余配置需重启生效
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.progress.SetConfig(newCfg.Progress)
		logger.Log.Info("progress config updated",
			zap.Float64("time_cap_multiplier", newCfg.Progress.TimeCapMultiplier),
			zap.Int("max_delta_sec", newCfg.Progress.MaxDeltaSec),
		)
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.StartConfigWatcher(watchCtx, "configs/config.yaml")

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	log.Println("Server exiting")
}
