// Package main is the entry point for the media-acquisition-service API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"media-acquisition-service/internal/app/service"
	"media-acquisition-service/internal/config"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/infra/backend/registry"
	"media-acquisition-service/internal/infra/blob/telegram"
	"media-acquisition-service/internal/infra/ffmpeg"
	"media-acquisition-service/internal/infra/httpclient"
	"media-acquisition-service/internal/infra/postgres"
	"media-acquisition-service/internal/infra/postgres/migrations"
	"media-acquisition-service/internal/infra/recognition"
	rediscache "media-acquisition-service/internal/infra/redis"
	"media-acquisition-service/internal/infra/search/youtube"
	"media-acquisition-service/internal/job"
	"media-acquisition-service/internal/logger"
	"media-acquisition-service/internal/transport/httpserver"
	"media-acquisition-service/internal/validator"
	"media-acquisition-service/pkg/keypool"
	"media-acquisition-service/pkg/locker"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(
		logger.Config{
			Level:  cfg.Logger.Level,
			Format: cfg.Logger.Format,
			Output: cfg.Logger.Output,
		},
		logger.SentryConfig{
			Enabled:     cfg.Sentry.Enabled,
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		},
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting media-acquisition-service",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
	)

	// Connect to database
	db, err := postgres.NewConnection(
		postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Name:         cfg.Database.Name,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  cfg.Database.MaxLifetime,
		},
		log.Logger,
	)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = postgres.Close(db) }()

	// Run migrations
	if err := migrations.Run(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	// Create repository
	repo := postgres.NewRepository(db)

	// Prepare scratch directory for pipeline workspaces
	if err := os.MkdirAll(cfg.Media.ScratchDir, 0o755); err != nil {
		log.Fatal("failed to create scratch directory", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Ping Redis to verify connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	log.Info("connected to Redis",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port),
	)

	// Create cache implementation (optional, based on config)
	var cache domain.Cache
	if cfg.Cache.Enabled {
		cache = rediscache.NewCache(redisClient, log.Logger, cfg.Cache.KeyPrefix)
		log.Info("cache enabled",
			zap.Duration("entry_ttl", cfg.Cache.EntryTTL),
			zap.Duration("search_ttl", cfg.Cache.SearchTTL),
			zap.String("key_prefix", cfg.Cache.KeyPrefix),
		)
	} else {
		log.Info("cache disabled")
	}

	// Create credential pools
	searchKeys := keypool.New(cfg.Search.Keys, cfg.Search.QuotaLimit, cfg.Search.QuotaWindow)
	apifyTokens := keypool.New(cfg.Backend.Apify.Tokens, cfg.Backend.Apify.RunLimit, cfg.Backend.Apify.RunWindow)

	// Create subprocess runner shared by every external tool
	runner := ffmpeg.ExecRunner{}

	// Build per-platform backend chains
	chains, err := registry.NewChains(cfg.Backend, apifyTokens, runner, log.Logger)
	if err != nil {
		log.Fatal("failed to build backend chains", zap.Error(err))
	}
	chainExec := service.NewChainExecutor(chains, log.Logger)

	// Create media tooling
	toolCfg := ffmpeg.Config{
		FFprobePath: cfg.Media.FFprobePath,
		FFmpegPath:  cfg.Media.FFmpegPath,
		Timeout:     cfg.Media.ToolTimeout,
	}
	probe := ffmpeg.NewProbe(toolCfg, runner, log.Logger)
	processor := ffmpeg.NewProcessor(toolCfg, probe, runner, log.Logger)
	extractor := ffmpeg.NewExtractor(toolCfg, probe, runner, log.Logger)

	// Create blob store client
	store := telegram.New(
		telegram.Config{
			Client: clientConfig(cfg.Blob.BaseURL, cfg.Blob.Timeout, cfg.Blob.Retry, cfg.Blob.CB),
			Token:  cfg.Blob.Token,
			ChatID: cfg.Blob.ChatID,
		},
		log.Logger,
	)

	// Create track search client
	searcher := youtube.New(
		youtube.Config{
			Client:     clientConfig(cfg.Search.BaseURL, cfg.Search.Timeout, cfg.Search.Retry, cfg.Search.CB),
			MaxResults: cfg.Search.MaxResults,
			SearchCost: cfg.Search.SearchCost,
			LookupCost: cfg.Search.LookupCost,
			CacheTTL:   cfg.Cache.SearchTTL,
		},
		searchKeys,
		cache,
		log.Logger,
	)

	// Create audio recognition client
	recognizer := recognition.New(
		recognition.Config{
			Client:     clientConfig(cfg.Recognition.BaseURL, cfg.Recognition.Timeout, cfg.Recognition.Retry, cfg.Recognition.CB),
			APIKey:     cfg.Recognition.APIKey,
			FpcalcPath: cfg.Recognition.FpcalcPath,
		},
		runner,
		log.Logger,
	)

	// Create services
	acquisitionSvc := service.NewAcquisitionService(
		service.AcquisitionConfig{
			ScratchDir:      cfg.Media.ScratchDir,
			PipelineTimeout: cfg.Media.PipelineTimeout,
		},
		repo,
		chainExec,
		store,
		processor,
		log.Logger,
	)
	recognitionSvc := service.NewRecognitionService(
		service.RecognitionConfig{
			ClipSeconds:   cfg.Recognition.ClipSeconds,
			MaxCandidates: cfg.Search.MaxResults,
		},
		acquisitionSvc,
		repo,
		processor,
		extractor,
		recognizer,
		searcher,
		log.Logger,
	)

	// Create distributed locker
	distLocker := locker.NewRedisLocker(redisClient, log.Logger)

	// Start scratch janitor with distributed locking
	janitor := job.NewJanitor(
		job.JanitorConfig{
			ScratchDir: cfg.Media.ScratchDir,
			Interval:   cfg.Janitor.Interval,
			MaxAge:     cfg.Janitor.MaxAge,
			MinAge:     cfg.Media.PipelineTimeout,
		},
		log.Logger,
		distLocker,
	)
	janitor.Start(cfg.Janitor.OnStartup)

	// Create validator
	v := validator.New()

	// Credential pools exposed on the admin API
	pools := map[string]*keypool.Pool{
		"search": searchKeys,
		"apify":  apifyTokens,
	}

	// Create HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Port:      cfg.App.Port,
			BodyLimit: 64 * 1024 * 1024, // recognition sample uploads
			Debug:     cfg.App.Debug,
			UploadDir: cfg.Media.ScratchDir,
		},
		acquisitionSvc,
		recognitionSvc,
		janitor,
		pools,
		db,
		v,
		log.Logger,
	)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		// Stop janitor
		janitor.Stop()

		// Shutdown server with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func clientConfig(baseURL string, timeout time.Duration, retry config.RetryConfig, cb config.CBConfig) httpclient.ClientConfig {
	return httpclient.ClientConfig{
		BaseURL: baseURL,
		Timeout: timeout,
		Retry: httpclient.RetryConfig{
			MaxAttempts: retry.MaxAttempts,
			WaitTime:    retry.WaitTime,
			MaxWaitTime: retry.MaxWaitTime,
		},
		CB: httpclient.CBConfig{
			MaxRequests:  cb.MaxRequests,
			Interval:     cb.Interval,
			Timeout:      cb.Timeout,
			FailureRatio: cb.FailureRatio,
		},
	}
}
