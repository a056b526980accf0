package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/maheshrc27/postdispatch/internal/api/handlers"
	"github.com/maheshrc27/postdispatch/internal/cache"
	job "github.com/maheshrc27/postdispatch/internal/jobs"
	"github.com/maheshrc27/postdispatch/internal/metrics"
	"github.com/maheshrc27/postdispatch/internal/queue"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"github.com/maheshrc27/postdispatch/internal/repository/memory"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/maheshrc27/postdispatch/pkg/httpclient"
	"github.com/maheshrc27/postdispatch/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type repositories struct {
	posts     repository.ScheduledPostRepository
	accounts  repository.SocialAccountRepository
	groups    repository.AccountGroupRepository
	pools     repository.IpPoolRepository
	sessions  repository.IpSessionRepository
	logs      repository.RotationLogRepository
	assets    repository.MediaAssetRepository
	content   repository.ContentRepository
	workers   repository.WorkerRepository
	campaigns repository.CampaignRepository
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		zlog.Warn("redis is unreachable, using in-process caches", zap.String("addr", cfg.Redis.Addr))
	}

	var db *sql.DB
	var repos repositories
	if cfg.PostgresURI == "" {
		zlog.Warn("POSTGRES_URI is empty, using the in-memory store")
		repos = memoryRepositories(memory.NewStore())
	} else {
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			zlog.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			zlog.Fatal("database is unreachable", zap.Error(err))
		}
		if err := repository.Migrate(ctx, db); err != nil {
			zlog.Fatal("schema migration failed", zap.Error(err))
		}
		repos = sqlRepositories(db)
	}

	if cfg.Orchestrator.CampaignStore == "redis" {
		if !redisUp {
			zlog.Fatal("campaign store is redis but redis is unreachable")
		}
		repos.campaigns = repository.NewRedisCampaignRepository(rdb)
	} else if repos.campaigns == nil {
		repos.campaigns = memory.NewStore().Campaigns()
	}

	usage := cache.NewMemoryUsageCache(cfg.Limits.CacheTTL)
	if redisUp {
		usage = cache.NewUsageCache(rdb, cfg.Limits.CacheTTL, zlog.Named("cache"))
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		zlog.Fatal("failed to register metrics", zap.Error(err))
	}

	cipher, err := utils.NewCipher([]byte(cfg.SecretKey))
	if err != nil {
		zlog.Fatal("invalid SECRET_KEY", zap.Error(err))
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	producer := queue.NewProducer(client, zlog.Named("producer"))

	limitService := service.NewLimitService(repos.posts, repos.groups, repos.accounts, usage, collector, cfg.Location(), zlog.Named("limits"))
	assignmentService := service.NewIPAssignmentService(repos.pools, repos.sessions, repos.posts, zlog.Named("assignment"))
	rotationService := service.NewIPRotationService(repos.pools, repos.sessions, repos.logs,
		service.DefaultRotationStrategies(), collector, zlog.Named("rotation"))
	assetService := service.NewAssetService(cfg.R2, repos.assets, zlog.Named("assets"))
	smartScheduleService := service.NewSmartScheduleService(repos.posts, repos.accounts, repos.content, zlog.Named("smart_schedule"))
	orchestratorService := service.NewOrchestratorService(repos.posts, repos.accounts, repos.content, repos.workers,
		repos.campaigns, producer, collector, cfg.Location(), zlog.Named("orchestrator"))
	if err := orchestratorService.Restore(ctx); err != nil {
		zlog.Warn("unable to restore campaigns", zap.Error(err))
	}

	deps := service.PublishDeps{
		Posts:      repos.posts,
		Accounts:   repos.accounts,
		Content:    repos.content,
		Limits:     limitService,
		Assignment: assignmentService,
		Rotation:   rotationService,
		Assets:     assetService,
		Adapters:   service.NewPlatformAdapters(service.NewFacebookAdapter(*cfg, httpclient.New())),
		Campaigns:  orchestratorService,
		Metrics:    collector,
	}
	if cipher != nil {
		deps.Tokens = cipher
	}
	publishService := service.NewPublishService(cfg.Scheduler, deps, zlog.Named("publisher"))

	// jobs
	scheduler := job.NewPostSchedulerJob(publishService, cfg.Scheduler.PollInterval, zlog.Named("scheduler"))
	scheduler.Start()

	rotationJob := job.NewIPRotationJob(rotationService, producer, zlog.Named("rotation_job"))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(zlog)))))
	if _, err := c.AddFunc("@every "+cfg.Rotation.AutoInterval.String(), rotationJob.RotatePools); err != nil {
		zlog.Fatal("failed to schedule ip rotation", zap.Error(err))
	}
	c.Start()

	// queue
	queueW := queue.NewQueue(publishService, rotationService, repos.workers, zlog.Named("queue"))
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
		Logger:      zlog.Named("asynq").Sugar(),
	})
	mux := asynq.NewServeMux()
	queueW.Register(mux)
	go func() {
		zlog.Info("starting the asynq server")
		if err := server.Run(mux); err != nil {
			zlog.Error("asynq server stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			zlog.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"scheduler": scheduler.Status().Running,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	handlers.Handlers{
		Posts:     handlers.NewPostHandler(publishService, scheduler, producer, zlog.Named("http")),
		Limits:    handlers.NewLimitsHandler(limitService),
		Pools:     handlers.NewPoolHandler(assignmentService, rotationService, producer, zlog.Named("http")),
		Campaigns: handlers.NewCampaignHandler(orchestratorService, zlog.Named("http")),
		Schedule:  handlers.NewScheduleHandler(smartScheduleService, zlog.Named("http")),
	}.Register(app)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()
	zlog.Info("server is running", zap.String("port", cfg.Port))

	gracefulShutdown(zlog, app, scheduler, c, server, db)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if err := zcfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, err
	}
	return zcfg.Build()
}

func memoryRepositories(store *memory.Store) repositories {
	return repositories{
		posts:     store.Posts(),
		accounts:  store.Accounts(),
		groups:    store.Groups(),
		pools:     store.Pools(),
		sessions:  store.Sessions(),
		logs:      store.RotationLogs(),
		assets:    store.Assets(),
		content:   store.Content(),
		workers:   store.Workers(),
		campaigns: store.Campaigns(),
	}
}

func sqlRepositories(db *sql.DB) repositories {
	return repositories{
		posts:    repository.NewScheduledPostRepository(db),
		accounts: repository.NewSocialAccountRepository(db),
		groups:   repository.NewAccountGroupRepository(db),
		pools:    repository.NewIpPoolRepository(db),
		sessions: repository.NewIpSessionRepository(db),
		logs:     repository.NewRotationLogRepository(db),
		assets:   repository.NewMediaAssetRepository(db),
		content:  repository.NewContentRepository(db),
		workers:  repository.NewWorkerRepository(db),
	}
}

func closeDB(logger *zap.Logger, db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close database", zap.Error(err))
		return
	}
	logger.Info("database connection closed")
}

func gracefulShutdown(logger *zap.Logger, app *fiber.App, scheduler *job.PostSchedulerJob, c *cron.Cron, server *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("failed to shut down http server", zap.Error(err))
	}

	// Let the in-flight scheduler tick and rotation run finish.
	wait, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	select {
	case <-scheduler.Stop().Done():
	case <-wait.Done():
		logger.Warn("scheduler tick still running at shutdown")
	}
	select {
	case <-c.Stop().Done():
	case <-wait.Done():
	}

	server.Shutdown()
	closeDB(logger, db)
	logger.Info("server shutdown complete")
}
