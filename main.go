package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/onsikgu/famiq/internal/analysis"
	"github.com/onsikgu/famiq/internal/config"
	"github.com/onsikgu/famiq/internal/embeddings"
	"github.com/onsikgu/famiq/internal/generator"
	"github.com/onsikgu/famiq/internal/health"
	"github.com/onsikgu/famiq/internal/httpapi"
	"github.com/onsikgu/famiq/internal/llm"
	"github.com/onsikgu/famiq/internal/novelty"
	"github.com/onsikgu/famiq/internal/prompts"
	"github.com/onsikgu/famiq/internal/tracing"
	"github.com/onsikgu/famiq/internal/usecase"
	"github.com/onsikgu/famiq/internal/vectordb"
	"github.com/onsikgu/famiq/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Startup is fail-fast: every capability is constructed and probed
	// before the first request is accepted.
	if err := ensureWritableDir(cfg.Chroma.PersistDir); err != nil {
		logger.Fatal("Persist directory not writable",
			zap.String("dir", cfg.Chroma.PersistDir),
			zap.Error(err),
		)
	}

	chroma := vectordb.NewClient(vectordb.Config{
		Host:    cfg.Chroma.Host,
		Port:    cfg.Chroma.Port,
		Timeout: cfg.Chroma.Timeout,
	}, logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := chroma.Heartbeat(startupCtx); err != nil {
		logger.Fatal("Chroma unreachable", zap.Error(err))
	}
	if err := chroma.EnsureCollection(startupCtx, cfg.Chroma.Collection); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var cache embeddings.Cache
	var redisCache *embeddings.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = embeddings.NewRedisCache(cfg.Redis.Addr)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing with local cache only",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		} else {
			cache = redisCache
		}
	}

	embedder := embeddings.NewService(embeddings.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            cfg.OpenAI.APIKey,
		DefaultModel:      cfg.OpenAI.EmbeddingModel,
		Timeout:           cfg.OpenAI.Timeout,
		CacheTTL:          cfg.Redis.CacheTTL,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		RateBurst:         cfg.OpenAI.RateBurst,
	}, cache, logger)

	chat := llm.NewClient(llm.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            cfg.OpenAI.APIKey,
		DefaultModel:      cfg.OpenAI.DefaultModel,
		Timeout:           cfg.OpenAI.Timeout,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		RateBurst:         cfg.OpenAI.RateBurst,
	}, logger)

	registry := prompts.NewRegistry(logger)
	if err := registry.LoadDirectory(cfg.Prompts.Dir); err != nil {
		logger.Fatal("Failed to load prompt templates", zap.Error(err))
	}
	if err := registry.MustHave(
		"personal_generate",
		"family_generate",
		"family_recent",
		"summary_headline",
		"answer_analysis",
	); err != nil {
		logger.Fatal("Prompt catalog incomplete", zap.Error(err))
	}

	personalGen, err := generator.New(chat, registry, generator.Options{
		Template:    "personal_generate",
		MaxContext:  cfg.RAG.TopK,
		Model:       cfg.OpenAI.DefaultModel,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build personal generator", zap.Error(err))
	}
	familyGen, err := generator.New(chat, registry, generator.Options{
		Template:    "family_generate",
		MaxContext:  cfg.RAG.FamilyTopK,
		Model:       cfg.OpenAI.DefaultModel,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build family generator", zap.Error(err))
	}
	recentGen, err := generator.New(chat, registry, generator.Options{
		Template:    "family_recent",
		MaxContext:  cfg.RAG.FamilyTopK,
		Model:       cfg.OpenAI.DefaultModel,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build family-recent generator", zap.Error(err))
	}
	summaryGen, err := generator.NewSummary(chat, registry, generator.Options{
		Template:    "summary_headline",
		Model:       cfg.OpenAI.DefaultModel,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build summary generator", zap.Error(err))
	}
	analyzer, err := analysis.New(chat, registry, "answer_analysis", cfg.OpenAI.DefaultModel, logger)
	if err != nil {
		logger.Fatal("Failed to build answer analyzer", zap.Error(err))
	}

	store := vectorstore.New(chroma, embedder, vectorstore.Config{
		MaxConcurrent: cfg.Chroma.MaxConcurrent,
		ExpectedDim:   cfg.Chroma.ExpectedEmbeddingDim,
	}, logger)

	ctrl := novelty.New(cfg.RAG.SimilarityThreshold, cfg.RAG.MaxRegeneration, logger)

	personal := usecase.NewPersonalRAG(store, personalGen, ctrl, cfg.RAG.TopK, logger)
	family := usecase.NewFamilyRAG(store, familyGen, ctrl, cfg.RAG.FamilyTopK, logger)
	recent := usecase.NewFamilyRecent(store, recentGen, ctrl, cfg.RAG.RecentPerMember, logger)
	summary := usecase.NewFamilySummary(store, summaryGen, logger)
	members := usecase.NewMemberDelete(store, logger)

	// Admin mux: metrics and detailed health.
	healthManager := health.NewManager(logger)
	healthManager.Register(health.NewChromaChecker(chroma, logger))
	if redisCache != nil {
		healthManager.Register(health.NewRedisChecker(redisCache.Client(), logger))
	}
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	health.NewHandler(healthManager).RegisterRoutes(adminMux)

	adminServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler: adminMux,
	}
	go func() {
		logger.Info("Admin server listening", zap.Int("port", cfg.Server.HealthPort))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin server failed", zap.Error(err))
		}
	}()

	// API mux.
	apiMux := http.NewServeMux()
	httpapi.NewHandler(personal, family, recent, summary, members, analyzer, logger).RegisterRoutes(apiMux)

	handler := httpapi.RequestLog(logger)(httpapi.CORS(cfg.Server.CORSAllowedOrigins)(apiMux))
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin server shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// ensureWritableDir creates the directory if needed and verifies a file can
// be written into it.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".famiq-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
