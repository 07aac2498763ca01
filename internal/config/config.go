package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Config is the tile proxy configuration, read from the environment.
type Config struct {
	Port              int
	DataDir           string
	CacheType         string
	CacheMemoryTiles  int
	CacheFileDir      string
	SourcesFile       string
	UpstreamTimeout   time.Duration
	UpstreamUserAgent string
	NegativeCacheTTL  time.Duration
	Normalize         bool
	VipsMaxCacheMB    int
	VipsConcurrency   int
	WarmupLevels      int
	WarmupWorkers     int
	MaxZoom           int
	LogLevel          string
	LogEncoding       string
	AllowedOrigin     string
	StaticDir         string
}

func Load() *Config {
	dataDir := expandPath(getEnv("DATA_DIR", "/data"))

	cfg := &Config{
		Port:              getEnvInt("PORT", 8080),
		DataDir:           dataDir,
		CacheType:         getEnv("CACHE", "file"),
		CacheMemoryTiles:  getEnvInt("CACHE_MEMORY_TILES", 2000),
		CacheFileDir:      expandPath(getEnv("CACHE_FILE_DIR", dataDir)),
		SourcesFile:       expandPath(getEnv("SOURCES_FILE", "")),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamUserAgent: getEnv("UPSTREAM_USER_AGENT", "tileglobe/1.0 (+https://github.com/tileglobe)"),
		NegativeCacheTTL:  getEnvDuration("NEGATIVE_CACHE_TTL", time.Minute),
		Normalize:         getEnvBool("NORMALIZE", true),
		VipsMaxCacheMB:    getEnvInt("VIPS_MAX_CACHE_MB", 256),
		VipsConcurrency:   getEnvInt("VIPS_CONCURRENCY", 1),
		WarmupLevels:      getEnvInt("WARMUP_LEVELS", -1),
		WarmupWorkers:     getEnvInt("WARMUP_WORKERS", 2),
		MaxZoom:           getEnvInt("MAX_ZOOM", 18),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogEncoding:       getEnv("LOG_ENCODING", "json"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", ""),
		StaticDir:         expandPath(getEnv("STATIC_DIR", "")),
	}

	return cfg
}

// WarmupEnabled reports whether tiles should be pre-fetched on startup.
func (c *Config) WarmupEnabled() bool {
	return c.WarmupLevels >= 0 && c.WarmupWorkers > 0
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return filepath.Clean(expanded)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
