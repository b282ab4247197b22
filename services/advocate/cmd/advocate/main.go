package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"advocateai/internal/metrics"
	"advocateai/internal/ratelimit"
	"advocateai/internal/usertoken"
	"advocateai/internal/util"
	"advocateai/pkg/ai"
	"advocateai/pkg/extract"
	"advocateai/pkg/storage"
	"advocateai/pkg/store"
	"advocateai/services/advocate/internal/app"
	"advocateai/services/advocate/internal/config"
	"advocateai/services/advocate/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	verifier, err := usertoken.NewVerifier(ctx, usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Secret:     cfg.AuthJWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     jwtLeeway,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	var (
		dataStore store.Store
		pingStore func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
		defer gs.Close()
		dataStore, pingStore = gs, gs.Ping
	} else {
		logger.Warn("databaseURL not set, using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	objects, err := newObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	timeout := time.Duration(cfg.GenerationTimeoutSeconds) * time.Second
	chatModel, err := ai.New(ai.Config{
		Provider: cfg.GenerationProvider,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Model:    cfg.ChatModel,
		Timeout:  timeout,
	})
	if err != nil {
		log.Fatalf("failed to init chat model: %v", err)
	}
	analysisModel, err := ai.New(ai.Config{
		Provider: cfg.GenerationProvider,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Model:    cfg.AnalysisModel,
		Timeout:  timeout,
	})
	if err != nil {
		log.Fatalf("failed to init analysis model: %v", err)
	}

	var extractOpts []extract.Option
	if cfg.PdftotextPath != "" {
		extractOpts = append(extractOpts, extract.WithPdftotext(cfg.PdftotextPath))
	}
	m := metrics.Global()
	appCore, err := app.New(app.Config{
		Store:             dataStore,
		Objects:           objects,
		Chat:              chatModel,
		Analysis:          analysisModel,
		Extractor:         extract.New(objects, extractOpts...),
		Metrics:           m,
		DefaultCredits:    cfg.DefaultCredits,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		GenerationTimeout: timeout,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}
	var limiterOpts []ratelimit.Option
	if cfg.RateLimitFailOpen {
		limiterOpts = append(limiterOpts, ratelimit.FailOpen())
	}
	srvCfg := server.Config{
		App:      appCore,
		Verifier: verifier,
		Metrics:  m,
		Ready: func(ctx context.Context) error {
			if pingStore != nil {
				if err := pingStore(ctx); err != nil {
					return err
				}
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.ChatRateLimitPerMinute > 0 {
		l, err := ratelimit.NewFixedWindowLimiter(rdb, "advocate:ratelimit:chat", cfg.ChatRateLimitPerMinute, time.Minute, limiterOpts...)
		if err != nil {
			log.Fatalf("failed to init chat limiter: %v", err)
		}
		srvCfg.ChatLimiter = l
	}
	if cfg.UploadRateLimitPerHour > 0 {
		l, err := ratelimit.NewFixedWindowLimiter(rdb, "advocate:ratelimit:documents", cfg.UploadRateLimitPerHour, time.Hour, limiterOpts...)
		if err != nil {
			log.Fatalf("failed to init document limiter: %v", err)
		}
		srvCfg.DocumentLimiter = l
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg.TrustedProxies = trusted

	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Streaming replies and synchronous analysis run up to the generation timeout.
		WriteTimeout: timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("advocate server listening", "addr", addr, "storage", cfg.StorageProvider, "generation", cfg.GenerationProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func newObjectStore(cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.StorageProvider == "minio" {
		expiry, err := config.ParseDuration("minioPresignExpiry", cfg.MinioPresignExpiry)
		if err != nil {
			return nil, err
		}
		return storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.StoragePublicURL,
			PresignExpiry: expiry,
			MaxReadBytes:  cfg.MaxUploadBytes,
		})
	}
	return storage.NewFileStore(cfg.StorageDir, cfg.StoragePublicURL, cfg.MaxUploadBytes)
}
