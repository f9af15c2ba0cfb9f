package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	commonmw "arbiter/internal/common/http/middleware"
	"arbiter/internal/common/mq"
	"arbiter/internal/common/storage"
	"arbiter/internal/contest/controller"
	"arbiter/internal/contest/repository"
	"arbiter/internal/contest/service"
	"arbiter/internal/jobstore"
	"arbiter/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/contest_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()
	dbProvider := db.NewManager(mysqlDB)

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	jobStore, err := jobstore.NewRedisJobStore(appCfg.JobStore)
	if err != nil {
		logger.Error(context.Background(), "init job store failed", zap.Error(err))
		return
	}
	defer func() {
		_ = jobStore.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	database := dbProvider.Current()
	submissionRepo := repository.NewSubmissionRepository(database)
	problemRepo := repository.NewProblemRepository(database, redisCache)
	contestRepo := repository.NewContestRepository(database, redisCache)
	registrationRepo := repository.NewRegistrationRepository(database)

	submissionService, err := service.NewSubmissionService(service.Config{
		SubmissionRepo:   submissionRepo,
		ProblemRepo:      problemRepo,
		ContestRepo:      contestRepo,
		RegistrationRepo: registrationRepo,
		JobStore:         jobStore,
		Storage:          objStorage,
		SourceBucket:     appCfg.Contest.SourceBucket,
		SourceKeyPrefix:  appCfg.Contest.SourceKeyPrefix,
		MaxCodeBytes:     appCfg.Contest.MaxCodeBytes,
		Languages:        appCfg.Contest.Languages,
		Timeouts:         appCfg.Contest.Timeouts,
	})
	if err != nil {
		logger.Error(context.Background(), "init submission service failed", zap.Error(err))
		return
	}

	progressService, err := service.NewProgressService(submissionRepo, jobStore, appCfg.Contest.Timeouts)
	if err != nil {
		logger.Error(context.Background(), "init progress service failed", zap.Error(err))
		return
	}

	leaderboardService, err := service.NewLeaderboardService(service.LeaderboardConfig{
		ContestRepo:      contestRepo,
		ProblemRepo:      problemRepo,
		RegistrationRepo: registrationRepo,
		SubmissionRepo:   submissionRepo,
		Cache:            redisCache,
		CacheTTL:         appCfg.Contest.StandingsTTL,
		Timeouts:         appCfg.Contest.Timeouts,
	})
	if err != nil {
		logger.Error(context.Background(), "init leaderboard service failed", zap.Error(err))
		return
	}

	resultConsumer, err := service.NewResultConsumer(database, submissionRepo, registrationRepo, appCfg.Contest.Timeouts)
	if err != nil {
		logger.Error(context.Background(), "init result consumer failed", zap.Error(err))
		return
	}

	consumerOpts := appCfg.Contest.ResultsConsumer.toSubscribeOptions()
	consumerOpts.SetDefaults()
	if err := mqClient.SubscribeWithOptions(context.Background(), appCfg.Contest.ResultsTopic, resultConsumer.HandleResultMessage, &consumerOpts); err != nil {
		logger.Error(context.Background(), "subscribe results topic failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg.Server, submissionService, progressService, leaderboardService)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "contest http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

func buildHTTPServer(cfg ServerConfig, submissionService *service.SubmissionService, progressService *service.ProgressService, leaderboardService *service.LeaderboardService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	api := router.Group("/api/v1")

	submissionController := controller.NewSubmissionController(submissionService, progressService)
	submissions := api.Group("/submissions")
	submissions.POST("", submissionController.Create)
	submissions.GET("/:id", submissionController.Get)
	submissions.GET("/:id/progress", submissionController.GetProgress)
	api.GET("/problems/:id/submissions", submissionController.ListByProblem)

	leaderboardController := controller.NewLeaderboardController(leaderboardService)
	api.GET("/contests/:id/leaderboard", leaderboardController.Get)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
