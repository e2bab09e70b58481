package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/internal/adapters/immich"
	"github.com/miltos211/iCloudImmichCleanSync/internal/adapters/photos"
	"github.com/miltos211/iCloudImmichCleanSync/internal/adapters/store"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/services"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/apphome"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/config"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

var (
	// Resolved paths and configuration
	appHome *apphome.Home
	cfg     *config.Config
	log     *logger.Logger

	// Adapters
	assetStore   *store.SQLiteStore
	libProvider  *photos.CLIProvider
	remoteClient *immich.Client

	// Services
	refreshService *services.RefreshService
	syncService    *services.SyncService
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iims",
	Short: "iims - sync an iCloud photo library to Immich",
	Long: ui.StyleTitle.Render("iims") + " - iCloud to Immich Sync\n\n" +
		"Synchronizes a local photo library to an Immich server, tracking\n" +
		"per-asset state durably so runs are resumable, idempotent and safe\n" +
		"to interrupt.",
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(resetFailedCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp wires configuration, logging, adapters and services
func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	h, err := apphome.New()
	if err != nil {
		return fmt.Errorf("failed to resolve app directories: %w", err)
	}
	appHome = h
	if err := appHome.Initialize(); err != nil {
		return err
	}

	c, err := config.Load(appHome.ConfigPath)
	if err != nil {
		return err
	}
	cfg = c

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log = l

	// The config command only needs the paths above
	if cmd.Name() == "config" {
		return nil
	}

	st, err := store.Open(log, appHome.StateDBPath())
	if err != nil {
		return err
	}
	assetStore = st

	libProvider = photos.NewCLIProvider(log, cfg.HelperBinary, time.Duration(cfg.ExportTimeout)*time.Second)
	refreshService = services.NewRefreshService(assetStore, libProvider, log)

	if cfg.ServerConfigured() {
		client, err := immich.New(log, immich.Config{
			BaseURL:        cfg.ServerURL,
			APIKey:         cfg.APIKey,
			RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
			UploadTimeout:  time.Duration(cfg.UploadTimeout) * time.Second,
		})
		if err != nil {
			return err
		}
		remoteClient = client
		syncService = services.NewSyncService(assetStore, libProvider, remoteClient, log, services.SyncConfig{
			ScratchRoot: appHome.ScratchPath,
			ChunkSize:   cfg.DedupChunkSize,
			MaxRetries:  cfg.MaxRetries,
		})
	}

	return nil
}

// requireServer guards commands that need a configured remote
func requireServer() error {
	if syncService == nil {
		return fmt.Errorf("server not configured: set server_url and api_key in %s, or export IMMICH_API_URL and IMMICH_API_KEY", appHome.ConfigPath)
	}
	return nil
}

// getContext returns a context for operations
func getContext() context.Context {
	return context.Background()
}
