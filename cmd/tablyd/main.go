package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tably/tably/internal/cache"
	"github.com/tably/tably/internal/catalog"
	"github.com/tably/tably/internal/catalog/postgres"
	"github.com/tably/tably/internal/config"
	"github.com/tably/tably/internal/llm"
	"github.com/tably/tably/internal/metrics"
	"github.com/tably/tably/internal/recommend"
	"github.com/tably/tably/internal/reranker"
	"github.com/tably/tably/internal/server"
	"github.com/tably/tably/internal/service"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting recommendation service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"dataset_source", cfg.DatasetSource,
	)

	// Initialize the dataset source
	source, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	if closeSource != nil {
		defer closeSource()
	}

	// Load the restaurant table eagerly: an unloadable dataset means the
	// service cannot answer anything, so fail fast instead of limping.
	tables := cache.NewTableCache(source)
	table, err := tables.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load restaurant table: %w", err)
	}
	metrics.TableSize.Set(float64(table.Len()))
	slog.Info("loaded restaurant table",
		"restaurants", table.Len(),
		"cities", len(table.Cities()),
		"cuisines", len(table.Cuisines()),
	)

	// Initialize the LLM response cache
	responseCache, err := newResponseCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM cache: %w", err)
	}
	if responseCache != nil {
		defer responseCache.Close()
	}

	// Initialize the LLM provider and re-ranker
	rr := newReranker(cfg, responseCache)

	// Initialize the pipeline and service
	pipeline := recommend.NewPipeline(recommend.NewScorer(cfg.VotesCap))
	svcOpts := []service.RecommendationServiceOption{
		service.WithLogger(slog.Default()),
	}
	if rr != nil {
		svcOpts = append(svcOpts, service.WithReranker(rr))
	}
	svc := service.NewRecommendationService(tables, pipeline, service.Options{
		Limits: recommend.Limits{
			TopNDefault: cfg.TopNDefault,
			TopNMax:     cfg.TopNMax,
		},
		PoolSize:      cfg.RerankPoolSize,
		AllowedModels: cfg.AllowedModels,
	}, svcOpts...)

	// Create HTTP server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
	}, svc)

	// Start server
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// newSource selects the dataset source per DATASET_SOURCE. The returned
// close function is nil when there is nothing to release.
func newSource(ctx context.Context, cfg *config.Config) (catalog.Source, func(), error) {
	switch cfg.DatasetSource {
	case "csv":
		return catalog.NewCSVSource(cfg.DatasetCSVPath, cfg.DatasetLimit), nil, nil

	case "postgres":
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("connected to PostgreSQL")
		return postgres.NewRestaurantSource(db, cfg.DatasetLimit), db.Close, nil

	default: // huggingface
		return catalog.NewHFSource(cfg.HFDataset,
			catalog.WithHFBaseURL(cfg.HFBaseURL),
			catalog.WithHFSplit(cfg.HFSplit),
			catalog.WithHFLimit(cfg.DatasetLimit),
		), nil, nil
	}
}

// newResponseCache selects the persistent LLM cache backend.
func newResponseCache(ctx context.Context, cfg *config.Config) (cache.ResponseCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("connected to Redis LLM cache", "addr", cfg.RedisAddr)
		return c, nil

	case "memory":
		return cache.NewMemoryCache(), nil

	default: // badger
		c, err := cache.NewBadgerCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		slog.Info("opened Badger LLM cache", "dir", cfg.CacheDir)
		return c, nil
	}
}

// newReranker builds the LLM re-ranker, or nil when no provider is
// configured; without one every request serves the deterministic baseline.
func newReranker(cfg *config.Config, responseCache cache.ResponseCache) reranker.Reranker {
	var client llm.LLM

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY not set, LLM re-ranking disabled")
			return nil
		}
		client = llm.NewGeminiClient(cfg.GeminiAPIKey, llm.WithGeminiModel(cfg.GeminiModel))
		slog.Info("initialized Gemini LLM", "model", cfg.GeminiModel)

	case "ollama":
		client = llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaModel),
		)
		slog.Info("initialized Ollama LLM", "model", cfg.OllamaModel)

	default: // none
		return nil
	}

	model := cfg.GeminiModel
	if cfg.LLMProvider == "ollama" {
		model = cfg.OllamaModel
	}

	return reranker.NewLLMReranker(client,
		reranker.WithModel(model),
		reranker.WithCache(responseCache),
		reranker.WithTimeout(cfg.LLMTimeout),
		reranker.WithCacheTTL(cfg.CacheTTL),
		reranker.WithLogger(slog.Default()),
	)
}

// Ensure interfaces are satisfied at compile time
var (
	_ catalog.Source      = (*catalog.CSVSource)(nil)
	_ catalog.Source      = (*catalog.HFSource)(nil)
	_ catalog.Source      = (*postgres.RestaurantSource)(nil)
	_ cache.ResponseCache = (*cache.BadgerCache)(nil)
	_ cache.ResponseCache = (*cache.RedisCache)(nil)
	_ cache.ResponseCache = (*cache.MemoryCache)(nil)
	_ llm.LLM             = (*llm.GeminiClient)(nil)
	_ llm.LLM             = (*llm.OllamaClient)(nil)
	_ reranker.Reranker   = (*reranker.LLMReranker)(nil)
)
