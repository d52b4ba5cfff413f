// cmd/server/config.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-compressor/internal/batch"
	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/upload"
)

type config struct {
	HTTPAddr        string
	MediaRoot       string
	CatalogBackend  string
	CatalogPath     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CatalogKey      string
	NATSURL         string
	ProgressSubject string
	S3              upload.Options
	Retention       time.Duration
	LogLevel        slog.Level
}

func LoadConfig() (config, error) {
	cfg := config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MediaRoot:       getenv("MEDIA_ROOT", "./data/collections"),
		CatalogBackend:  strings.ToLower(getenv("CATALOG_BACKEND", "file")),
		CatalogPath:     getenv("CATALOG_PATH", "./data/collections.json"),
		RedisAddr:       getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		CatalogKey:      getenv("CATALOG_KEY", catalog.DefaultRedisKey),
		NATSURL:         getenv("NATS_URL", ""),
		ProgressSubject: getenv("PROGRESS_SUBJECT", "thumbnails.compress.progress"),
		S3: upload.Options{
			Endpoint:  getenv("S3_ENDPOINT", ""),
			Bucket:    getenv("S3_BUCKET", ""),
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			UseSSL:    getenvBool("S3_USE_SSL", false),
		},
	}

	switch cfg.CatalogBackend {
	case "file", "redis":
	default:
		return config{}, fmt.Errorf("CATALOG_BACKEND must be file or redis (got %q)", cfg.CatalogBackend)
	}

	db, err := parseNonNegativeInt(getenv("REDIS_DB", "0"), "REDIS_DB")
	if err != nil {
		return config{}, err
	}
	cfg.RedisDB = db

	retention, err := time.ParseDuration(getenv("LEDGER_RETENTION", batch.DefaultRetention.String()))
	if err != nil {
		return config{}, fmt.Errorf("invalid LEDGER_RETENTION: %w", err)
	}
	if retention <= 0 {
		return config{}, fmt.Errorf("LEDGER_RETENTION must be greater than zero (got %s)", retention)
	}
	cfg.Retention = retention

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.S3.Endpoint != "" && cfg.S3.Bucket == "" {
		return config{}, fmt.Errorf("S3_BUCKET is required when S3_ENDPOINT is set")
	}

	return cfg, nil
}

// mirrorEnabled reports whether thumbnails should be copied to object storage.
func (c config) mirrorEnabled() bool {
	return c.S3.Endpoint != ""
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenvBool(key string, defaultValue bool) bool {
	val := getenv(key, "")
	if val == "" {
		return defaultValue
	}
	return val == "true"
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
