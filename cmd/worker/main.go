package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvforge/internal/assemble"
	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/metrics"
	"cvforge/internal/pdf"
	"cvforge/internal/preview"
	"cvforge/internal/render"
	"cvforge/internal/storage"
	"cvforge/internal/tasks"
	"cvforge/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	engine, err := pdf.New(cfg.PDF.Engine, pdf.Options{
		BrowserBin: cfg.PDF.BrowserBin,
		Timeout:    cfg.PDF.Timeout,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("init pdf engine: %v", err)
	}

	renderer := &assemble.LocalRenderer{
		Source:   database.ResumeSource{DB: db},
		Composer: preview.NewComposer(render.NewRegistry(), render.RemoteOnly{}),
		Engine:   engine,
	}
	assembleHandler := worker.NewAssembleTaskHandler(db, storageClient, redisClient, renderer, assemble.Config{
		RenderTimeout: cfg.Assemble.RenderTimeout,
		FetchTimeout:  cfg.Assemble.FetchTimeout,
		Concurrency:   cfg.Assemble.Concurrency,
	}, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeDocumentAssemble, assembleHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
