package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ojstats/internal/stats"
	"ojstats/internal/stats/controller"
	"ojstats/internal/stats/event"
	"ojstats/internal/stats/repository"
	"ojstats/internal/stats/service"
	"ojstats/pkg/utils/logger"
)

const (
	defaultDatabaseConfigPath = "configs/database.yaml"
	defaultRedisConfigPath    = "configs/redis.yaml"
	defaultKafkaConfigPath    = "configs/kafka.yaml"
	defaultStatsConfigPath    = "configs/stats.yaml"

	defaultListenAddr = ":8083"
)

func main() {
	if err := logger.Init(logger.Config{Level: "info", Format: "json"}); err != nil {
		os.Exit(1)
	}
	zapLogger := logger.Zap()
	defer func() {
		_ = zapLogger.Sync()
	}()

	databasePath := getenvWithDefault("STATS_SERVICE_DATABASE_CONFIG", defaultDatabaseConfigPath)
	redisPath := getenvWithDefault("STATS_SERVICE_REDIS_CONFIG", defaultRedisConfigPath)
	kafkaPath := getenvWithDefault("STATS_SERVICE_KAFKA_CONFIG", defaultKafkaConfigPath)
	statsPath := getenvWithDefault("STATS_SERVICE_STATS_CONFIG", defaultStatsConfigPath)
	listenAddr := getenvWithDefault("STATS_SERVICE_LISTEN_ADDR", defaultListenAddr)
	configSource := stats.NewFileConfigSource(databasePath, redisPath, kafkaPath, statsPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	deps, err := stats.InitStatsService(initCtx, configSource)
	if err != nil {
		zapLogger.Error("init stats service failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			zapLogger.Error("close dependencies failed", zap.Error(closeErr))
		}
	}()

	cfg := deps.Config.Stats
	submissionStore := repository.NewSubmissionStore(deps.Database)
	problemStore := repository.NewProblemStore(deps.Database)
	idSets := repository.NewIDSetCache(submissionStore, deps.Cache, stats.DurationOrDefault(cfg.IDSetTTL))

	publisher, err := event.NewPublisher(deps.Producer)
	if err != nil {
		zapLogger.Error("init publisher failed", zap.Error(err))
		os.Exit(1)
	}

	statsService, err := service.NewStatsService(service.StatsServiceConfig{
		Store:          submissionStore,
		IDSets:         idSets,
		Cache:          deps.Cache,
		Publisher:      publisher,
		Logger:         zapLogger,
		ResultDataTTL:  stats.DurationOrDefault(cfg.ResultDataTTL),
		HotProblemsTTL: stats.DurationOrDefault(cfg.HotProblemsTTL),
		HotWindow:      stats.DurationOrDefault(cfg.HotWindow),
		HotLimit:       stats.IntOrDefault(cfg.HotLimit),
		HotMinPoints:   stats.FloatOrDefault(cfg.HotMinPoints),
		HotMaxPoints:   stats.FloatOrDefault(cfg.HotMaxPoints),
	})
	if err != nil {
		zapLogger.Error("init stats service core failed", zap.Error(err))
		os.Exit(1)
	}

	rejudgeService, err := service.NewRejudgeService(service.RejudgeServiceConfig{
		Submissions: submissionStore,
		Problems:    problemStore,
		IDSets:      idSets,
		Publisher:   publisher,
		Logger:      zapLogger,
		BatchLimit:  stats.IntOrDefault(cfg.RejudgeBatchLimit),
	})
	if err != nil {
		zapLogger.Error("init rejudge service failed", zap.Error(err))
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	statsController := controller.NewStatsController(statsService, rejudgeService)
	statsController.RegisterRoutes(engine.Group("/api/v1"), controller.AuthMiddleware(cfg.AuthSecret))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("stats service listening", zap.String("addr", listenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("stats service shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("http server shutdown failed", zap.Error(err))
	}
}

func getenvWithDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
