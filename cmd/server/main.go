package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"repogent.app/orchestrator/common/id"
	"repogent.app/orchestrator/common/logger"
	"repogent.app/orchestrator/common/otel"
	"repogent.app/orchestrator/core/config"
	"repogent.app/orchestrator/core/db"
	"repogent.app/orchestrator/internal/analyzer"
	"repogent.app/orchestrator/internal/http/middleware"
	httprouter "repogent.app/orchestrator/internal/http/router"
	"repogent.app/orchestrator/internal/queue"
	eventrouter "repogent.app/orchestrator/internal/router"
	"repogent.app/orchestrator/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "orchestrator starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream_prefix", cfg.Queue.StreamPrefix)

	messageQueue, err := queue.New(redisClient, queue.Config{
		StreamPrefix:        cfg.Queue.StreamPrefix,
		Group:               cfg.Queue.Group,
		DLQStream:           cfg.Queue.DLQStream,
		MaxPayloadSizeBytes: cfg.Limits.MaxPayloadSizeBytes,
		MaxStreamLen:        cfg.Queue.MaxStreamLen,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize message queue", "error", err)
		os.Exit(1)
	}

	rt, err := eventrouter.New(eventrouter.Config{
		MentionToken:    cfg.Router.MentionToken,
		SkipMarkerToken: cfg.Router.SkipMarkerToken,
		BotPattern:      cfg.Router.BotPattern,
		Priority:        cfg.Router.PriorityAgents(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build event router", "error", err)
		os.Exit(1)
	}

	txRunner := service.NewTxRunner(database, cfg.Limits.MaxContextSizeBytes)
	services := service.NewServices(txRunner, rt, messageQueue, slog.Default())

	logAnalyzer := analyzer.New(analyzer.Config{
		MaxLogSizeBytes: cfg.Limits.MaxLogSizeBytes,
		HeadRatio:       cfg.Limits.LogHeadRatio,
		TailRatio:       cfg.Limits.LogTailRatio,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, logAnalyzer)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := messageQueue.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "redis close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, logAnalyzer *analyzer.Analyzer) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, logAnalyzer, cfg.Agents)

	return router
}

const banner = `
██████╗ ███████╗██████╗  ██████╗  ██████╗ ███████╗███╗   ██╗████████╗
██╔══██╗██╔════╝██╔══██╗██╔═══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝
██████╔╝█████╗  ██████╔╝██║   ██║██║  ███╗█████╗  ██╔██╗ ██║   ██║
██╔══██╗██╔══╝  ██╔═══╝ ██║   ██║██║   ██║██╔══╝  ██║╚██╗██║   ██║
██║  ██║███████╗██║     ╚██████╔╝╚██████╔╝███████╗██║ ╚████║   ██║
╚═╝  ╚═╝╚══════╝╚═╝      ╚═════╝  ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝
`
