package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/forge-club/forge/internal/app"
	jobmetrics "github.com/forge-club/forge/internal/jobs"
	"github.com/forge-club/forge/internal/judging"
	"github.com/forge-club/forge/internal/platform/db"
	"github.com/forge-club/forge/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	tokenCodec := judging.NewTokenCodec(cfg.MagicTokenSecret)
	judgingRepo := judging.NewRepository(pool)
	judgingService := judging.NewService(judgingRepo, tokenCodec, judging.ServiceConfig{
		BaseURL:    cfg.BaseURL,
		SessionTTL: cfg.JudgeSessionTTL,
	})

	purgeTask, err := jobs.NewSessionPurgeTask(time.Now())
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionPurge, Handler: jobs.NewSessionPurgeHandler(judgingService, logger, jobmetrics.NewMetrics(nil))},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.SessionPurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
