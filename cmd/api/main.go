package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"docpad/api/internal/app"
	"docpad/api/internal/config"
	"docpad/api/internal/gitrepo"
	"docpad/api/internal/logging"
	"docpad/api/internal/metrics"
	"docpad/api/internal/preview"
	"docpad/api/internal/render"
	"docpad/api/internal/search"
	"docpad/api/internal/store"
	"docpad/api/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create repos dir")
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, pgfts, logger)
	} else {
		searchService = search.NewService(nil, pgfts, logger)
	}
	go searchService.ReindexAll(ctx, pgfts)

	files, err := openUploads(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.UploadBackend).Msg("upload backend failed")
	}

	var views preview.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := preview.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, keeping views in memory")
			views = preview.NewMemoryStore()
		} else {
			logger.Info().Msg("Using Redis for view state")
			views = redisStore
		}
	} else {
		views = preview.NewMemoryStore()
	}
	defer views.Close()

	var measurer render.Measurer = render.DefaultEstimate()
	if cfg.ChromeMeasure {
		measurer = render.FallbackMeasurer{
			Primary:   render.ChromeMeasurer{Timeout: 10 * time.Second},
			Secondary: measurer,
		}
	}

	service := app.New(cfg, dataStore, gitService, app.Deps{
		Search:   searchService,
		Files:    files,
		Views:    views,
		Measurer: measurer,
		Metrics:  metrics.New(),
		Logger:   logger,
	})
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn().Err(err).Msg("bootstrap error (will retry on next restart)")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Bool("auth", service.AuthEnabled()).Msg("docpad API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func openUploads(ctx context.Context, cfg config.Config) (upload.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.UploadBackend)) {
	case "", "local":
		return upload.NewLocalGateway(cfg.UploadDir, cfg.UploadBaseURL)
	case "minio":
		return upload.NewMinioGateway(ctx, upload.MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKey,
			SecretAccessKey: cfg.MinioSecretKey,
			UseSSL:          cfg.MinioUseSSL,
			BucketName:      cfg.MinioBucket,
			BaseURL:         cfg.UploadBaseURL,
		})
	case "http":
		if cfg.UploadRemoteURL == "" {
			return nil, errors.New("upload_remote_url is required for the http backend")
		}
		return upload.NewHTTPGateway(cfg.UploadRemoteURL, cfg.UploadBaseURL, nil), nil
	default:
		return nil, errors.New("unknown upload backend " + cfg.UploadBackend)
	}
}
