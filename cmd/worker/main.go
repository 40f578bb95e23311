package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"repogent.app/orchestrator/common/id"
	"repogent.app/orchestrator/common/logger"
	"repogent.app/orchestrator/common/otel"
	"repogent.app/orchestrator/core/config"
	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "redelivery worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.Group,
		"redelivery_timeout", cfg.Queue.RedeliveryTimeout,
		"max_attempts", cfg.Queue.MaxAttempts)

	// Different node ID than the server so ids never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

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
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream_prefix", cfg.Queue.StreamPrefix)

	queueCfg := queue.Config{
		StreamPrefix:        cfg.Queue.StreamPrefix,
		Group:               cfg.Queue.Group,
		DLQStream:           cfg.Queue.DLQStream,
		MaxPayloadSizeBytes: cfg.Limits.MaxPayloadSizeBytes,
		MaxStreamLen:        cfg.Queue.MaxStreamLen,
	}
	messageQueue, err := queue.New(redisClient, queueCfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize message queue", "error", err)
		os.Exit(1)
	}

	reclaimer := worker.NewReclaimer(redisClient, messageQueue, queueCfg, worker.ReclaimerConfig{
		Consumer:    cfg.Queue.RedisConsumer + "-reclaimer",
		MinIdle:     cfg.Queue.RedeliveryTimeout,
		Interval:    cfg.Queue.ReclaimInterval,
		BatchSize:   cfg.Queue.ReclaimBatchSize,
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	go reclaimer.Run(ctx)
	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "worker shutdown complete")
}

const banner = `
██████╗ ███████╗██████╗  ██████╗  ██████╗ ███████╗███╗   ██╗████████╗
██╔══██╗██╔════╝██╔══██╗██╔═══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝
██████╔╝█████╗  ██████╔╝██║   ██║██║  ███╗█████╗  ██╔██╗ ██║   ██║
██╔══██╗██╔══╝  ██╔═══╝ ██║   ██║██║   ██║██╔══╝  ██║╚██╗██║   ██║
██║  ██║███████╗██║     ╚██████╔╝╚██████╔╝███████╗██║ ╚████║   ██║
╚═╝  ╚═╝╚══════╝╚═╝      ╚═════╝  ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝
                        redelivery worker
`
