package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"tileglobe/internal/cache"
	"tileglobe/internal/config"
	httphandlers "tileglobe/internal/http"
	"tileglobe/internal/image_renderer"
	"tileglobe/internal/logger"
	"tileglobe/internal/source_list"
	"tileglobe/internal/upstream"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	var normalizer image_renderer.Normalizer = image_renderer.Passthrough{}
	if cfg.Normalize {
		startVips(cfg, log)
		defer vips.Shutdown()
		normalizer = image_renderer.VipsNormalizer{}
	}

	log.Info("Starting tile proxy",
		zap.Int("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("cache", cfg.CacheType),
	)

	tileCache, err := cache.NewCache(cfg.CacheType, cfg.CacheFileDir, cfg.CacheMemoryTiles, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	if closer, ok := tileCache.(io.Closer); ok {
		defer closer.Close()
	}

	sources := source_list.New(cfg.SourcesFile, cfg.CacheFileDir, cfg.MaxZoom, log)
	if err := sources.Load(); err != nil {
		log.Fatal("Failed to load tile sources", zap.Error(err))
	}
	if counter, ok := tileCache.(source_list.Counter); ok {
		sources.UseCounter(counter)
	}
	if cfg.CacheType == "file" || cfg.CacheType == "bolt" {
		if err := sources.Scan(); err != nil {
			log.Warn("Initial scan failed", zap.Error(err))
		}
	}

	fetcher := upstream.New(upstream.Options{
		Timeout:     cfg.UpstreamTimeout,
		UserAgent:   cfg.UpstreamUserAgent,
		NegativeTTL: cfg.NegativeCacheTTL,
	}, log)
	defer fetcher.Close()

	renderer := image_renderer.New(sources, fetcher, tileCache, normalizer, log)
	handlers := httphandlers.New(cfg, log, sources, renderer)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.WarmupEnabled() {
		go renderer.Warmup(ctx, cfg.WarmupLevels, cfg.WarmupWorkers)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handlers.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func startVips(cfg *config.Config, log *zap.Logger) {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.VipsConcurrency,
		MaxCacheMem:      cfg.VipsMaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                                // Disable disk cache
		MaxCacheSize:     0,                                // Disable disk cache
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.VipsMaxCacheMB),
		zap.Int("concurrency", cfg.VipsConcurrency),
	)
}
