// cmd/compress/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-compressor/internal/catalog"
)

const cliExecutable = "compress"

// options holds the flags shared by every subcommand.
type options struct {
	mediaRoot   string
	catalogPath string
	redisAddr   string
	catalogKey  string
	logLevel    string

	logger *slog.Logger
}

// openStore returns the Redis catalog when --redis-addr is set and the JSON
// file catalog otherwise.
func (o *options) openStore(ctx context.Context) (catalog.Store, func(), error) {
	if o.redisAddr == "" {
		return catalog.NewFileStore(o.catalogPath), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", o.redisAddr, err)
	}
	return catalog.NewRedisStore(rdb, o.catalogKey), func() { _ = rdb.Close() }, nil
}

func (o *options) layout() catalog.Layout {
	return catalog.Layout{Root: o.mediaRoot}
}

// NewCommand builds the root command with its subcommands.
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Generate size-budgeted thumbnails for image collections",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVar(&opts.mediaRoot, "media-root", getenv("MEDIA_ROOT", "./data/collections"), "Directory holding one subdirectory per collection")
	cmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", getenv("CATALOG_PATH", "./data/collections.json"), "Path of the JSON collection catalog")
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis-addr", getenv("REDIS_ADDR", ""), "Read the catalog from Redis instead of the JSON file")
	cmd.PersistentFlags().StringVar(&opts.catalogKey, "catalog-key", getenv("CATALOG_KEY", catalog.DefaultRedisKey), "Redis key of the catalog document")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", getenv("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newWatchCommand())
	return cmd
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
