package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sashko-guz/objstore/internal/config"
	"github.com/sashko-guz/objstore/internal/logger"
	"github.com/sashko-guz/objstore/internal/storage"
)

var (
	cfg *config.Config

	configPath  string
	storageName string
	bucket      string
	key         string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "objstore",
	Short:         "Fetch and store JSON documents in object storage",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.Init(cfg.LogLevel, cfg.LogFormat)
		if cmd.Flags().Changed("log-level") {
			logger.SetLevelFromString(logLevel)
		}
		if !cmd.Flags().Changed("config") {
			configPath = cfg.StorageConfigPath
		}
		if !cmd.Flags().Changed("storage") {
			storageName = cfg.StorageName
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./storage.json", "Path to the storage config file (env STORAGE_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&storageName, "storage", "", "Storage name from the config file, first one if empty (env STORAGE_NAME)")
	rootCmd.PersistentFlags().StringVarP(&bucket, "bucket", "b", "", "Bucket name, defaults to the storage's bucket")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")

	for _, c := range []*cobra.Command{getCmd, putCmd} {
		c.Flags().StringVarP(&key, "key", "k", "", "Object key")
		_ = c.MarkFlagRequired("key")
	}

	rootCmd.AddCommand(getCmd, putCmd, clearCacheCmd)
}

func main() {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openService builds the service for the selected storage and resolves the bucket.
func openService(ctx context.Context) (*storage.Service, storage.Params, error) {
	storageConfig, err := storage.LoadConfig(configPath)
	if err != nil {
		return nil, storage.Params{}, fmt.Errorf("load storage config: %w", err)
	}

	svc, item, err := storage.NewServiceFromConfig(ctx, storageConfig, storageName, logger.Default())
	if err != nil {
		return nil, storage.Params{}, fmt.Errorf("initialize storage: %w", err)
	}

	params := storage.Params{Bucket: bucket, Key: key}
	if params.Bucket == "" {
		params.Bucket = item.Bucket
	}
	return svc, params, nil
}

// requestContext bounds a single storage call by REQUEST_TIMEOUT_SECONDS.
func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if cfg == nil || cfg.RequestTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, cfg.RequestTimeout)
}
