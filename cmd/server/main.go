package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "mediafetch/internal/api/http"
	"mediafetch/internal/app"
	"mediafetch/internal/events"
	"mediafetch/internal/extractor/ytdlp"
	"mediafetch/internal/metrics"
	"mediafetch/internal/repository/redisrepo"
	"mediafetch/internal/services/file"
	"mediafetch/internal/services/job"
	"mediafetch/internal/services/ratelimit"
	"mediafetch/internal/services/video"
	"mediafetch/internal/storage/local"
	"mediafetch/internal/telemetry"
	"mediafetch/internal/usecase"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "mediafetch")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "mediafetch"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("downloadDir", cfg.DownloadDir),
		slog.String("scratchDir", cfg.ScratchDir),
		slog.Int("workers", cfg.WorkerCount),
		slog.Bool("rateLimitEnabled", cfg.RateLimitEnabled),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	client, err := redisrepo.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("redis connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jobTTL := time.Duration(cfg.JobTTLSeconds) * time.Second
	jobRepo := redisrepo.NewJobRepository(client, jobTTL)
	fileRepo := redisrepo.NewFileRepository(client)
	archiveRepo := redisrepo.NewJobArchiveRepository(client)
	limitRepo := redisrepo.NewRateLimitRepository(client)
	queue := redisrepo.NewJobQueue(client)

	storage, err := local.NewProvider(cfg.DownloadDir)
	if err != nil {
		logger.Error("storage init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	extractor := ytdlp.New(cfg.YTDLPPath)

	bus := events.NewBus(logger)
	bus.SubscribeAll(events.NewLoggingHandler(logger))
	bus.SubscribeAll(events.NewMetricsHandler())

	jobs := job.Manager{Repo: jobRepo}
	files := file.Manager{Repo: fileRepo, Storage: storage}
	limiter := ratelimit.Limiter{
		Repo:      limitRepo,
		Enabled:   cfg.RateLimitEnabled,
		Whitelist: cfg.RateLimitWhitelist,
		Logger:    logger,
	}

	fileTTL := time.Duration(cfg.FileTTLMinutes) * time.Minute
	createUC := usecase.CreateJob{Jobs: jobs, Queue: queue}
	statusUC := usecase.JobStatus{Jobs: jobs}
	deleteUC := usecase.DeleteJob{Jobs: jobs, Files: files, Bus: bus}
	resolveUC := usecase.ResolveVideo{Video: video.Processor{Extractor: extractor}}
	downloadUC := usecase.ExecuteDownload{
		Jobs:          jobs,
		Files:         files,
		Storage:       storage,
		Extractor:     extractor,
		Bus:           bus,
		ScratchDir:    cfg.ScratchDir,
		PublicBaseURL: cfg.PublicBaseURL,
		FileTTL:       fileTTL,
		Logger:        logger,
	}

	handler := apihttp.NewServer(createUC,
		apihttp.WithLogger(logger),
		apihttp.WithJobStatus(statusUC),
		apihttp.WithDeleteJob(deleteUC),
		apihttp.WithResolveVideo(resolveUC),
		apihttp.WithFiles(files),
		apihttp.WithLimiter(limiter, apihttp.LimitSettings{
			BatchMinute:     cfg.RateLimitBatchMinute,
			VideoOnlyDaily:  cfg.RateLimitVideoOnlyDaily,
			AudioOnlyDaily:  cfg.RateLimitAudioOnlyDaily,
			VideoAudioDaily: cfg.RateLimitVideoAudioDaily,
			TotalJobsDaily:  cfg.RateLimitTotalJobsDaily,
			EndpointHourly:  cfg.RateLimitEndpointHourly,
		}),
		apihttp.WithHealth(redisHealth{client: client}),
		apihttp.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	bus.SubscribeAll(handler.EventHandler())

	pool := usecase.WorkerPool{
		Queue:         queue,
		Download:      downloadUC,
		Count:         cfg.WorkerCount,
		MaxConcurrent: int64(cfg.WorkerCount),
		Logger:        logger,
	}
	go pool.Run(rootCtx)

	reaper := usecase.Reaper{
		Jobs:       jobRepo,
		Files:      files,
		Archive:    archiveRepo,
		ScratchDir: cfg.ScratchDir,
		Expiration: jobTTL,
		Interval:   time.Minute,
		Logger:     logger,
	}
	go reaper.Run(rootCtx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := client.Close(); err != nil {
		logger.Warn("redis close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// redisHealth backs /health with a store ping.
type redisHealth struct {
	client *redis.Client
}

func (h redisHealth) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
