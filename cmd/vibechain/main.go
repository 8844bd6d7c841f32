// Package main provides the vibechain CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vibechain/internal/core"
	httpserver "vibechain/internal/http"
	"vibechain/internal/library"
	"vibechain/internal/mpd"
	"vibechain/internal/report"
	"vibechain/internal/similar"
	"vibechain/internal/tags"
	"vibechain/internal/vibe"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vibechain",
	Short: "vibechain - similar-track radio for MPD",
	Long: `vibechain seeds from the playing track (or an explicit artist and title), walks a chain of
similar tracks and queues every suggestion found in the local MPD library.`,
	SilenceUsage: true,
	RunE:         runWalk,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the library index from the MPD database",
	RunE:  runIndex,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve walks, health checks and metrics over HTTP",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	registerFlags(rootCmd)

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(indexCmd, serveCmd)
}

func runWalk(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	defer syncLogger()

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting vibechain",
		zap.String("provider", config.Similarity.Provider),
		zap.String("mode", config.Run.Mode),
		zap.Int("target_queue", config.Chain.TargetQueue),
		zap.Bool("dry_run", config.Run.DryRun))

	svcs, err := initializeServices(ctx, core.NopMetrics{})
	if err != nil {
		return err
	}
	defer svcs.close()

	summary, err := svcs.runner.Run(ctx, vibe.RequestFromConfig(config))
	if summary.Outcome != "" {
		report.PrintText(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		logger.Error("Walk failed", zap.Error(err))
		return err
	}
	return nil
}

func runIndex(_ *cobra.Command, _ []string) error {
	defer syncLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	player := mpd.NewClient(config.MPD, logger.Named("mpd"))
	defer closePlayer(player)

	started := time.Now()
	entries, err := player.Entries(ctx, newTagReader())
	if err != nil {
		return fmt.Errorf("failed to list MPD database: %w", err)
	}

	network, addr := config.MPD.Address()
	data, stats := library.Build(entries, map[string]any{
		"source":     "mpd",
		"mpd_server": network + ":" + addr,
	})
	if err := library.Save(config.Library.IndexPath, data); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	logger.Info("Library index written",
		zap.String("path", config.Library.IndexPath),
		zap.Int("files", stats.Total),
		zap.Int("tagged", stats.Tagged),
		zap.Int("unique_keys", stats.UniqueKeys),
		zap.Int("with_recording_id", stats.WithID),
		zap.Duration("took", time.Since(started)))
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	defer syncLogger()

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := httpserver.NewMetrics()
	svcs, err := initializeServices(ctx, metrics)
	if err != nil {
		return err
	}
	defer svcs.close()

	defaults := vibe.RequestFromConfig(config)
	server := httpserver.NewServer(&config.Server, logger.Named("http"), svcs.runner, defaults, svcs.player, metrics)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("vibechain serving",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("vibechain stopped with error", zap.Error(err))
		return err
	}

	logger.Info("vibechain stopped gracefully")
	return nil
}

type services struct {
	player *mpd.Client
	runner *vibe.Runner
}

func (s *services) close() {
	closePlayer(s.player)
}

func initializeServices(ctx context.Context, metrics core.Metrics) (*services, error) {
	service, err := similar.New(ctx, config, metrics, logger.Named("similar"))
	if err != nil {
		return nil, err
	}

	index := library.Load(config.Library.IndexPath, library.NewRewriter(config.Library.PathRewrites), logger.Named("library"))
	logger.Info("Library index loaded",
		zap.String("path", config.Library.IndexPath),
		zap.Int("keys", index.Len()),
		zap.Int("recording_ids", index.IDLen()))

	player := mpd.NewClient(config.MPD, logger.Named("mpd"))
	runner := vibe.NewRunner(vibe.Dependencies{
		Config:  config,
		Service: service,
		Index:   index,
		Tags:    newTagReader(),
		Player:  player,
		Metrics: metrics,
		Logger:  logger.Named("vibe"),
	})

	return &services{player: player, runner: runner}, nil
}

func newTagReader() core.TagReader {
	reader := tags.NewFileReader(config.Library.TagRoots, logger.Named("tags"))
	if config.Library.TagCacheSize <= 0 {
		return reader
	}
	return tags.NewCachingReader(reader, config.Library.TagCacheSize)
}

func closePlayer(player *mpd.Client) {
	if err := player.Close(); err != nil {
		logger.Debug("Failed to close MPD connection", zap.Error(err))
	}
}

func syncLogger() {
	// Sync fails on terminals; nothing useful can be done about it.
	_ = logger.Sync()
}
