package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/life-stream-dev/life-stream-go-bus/internal/event"
	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-bus/internal/router"
	"github.com/life-stream-dev/life-stream-go-bus/internal/server"
	"github.com/spf13/cobra"
)

var (
	configFile string
	address    string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "bus-server",
	Short: "Run the publish/subscribe bus server",
	Long: "Accept clients over TCP (and optionally WebSocket), let them subscribe to channels " +
		"and relay every published payload to the listening subscribers of matching channels.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadConfig(configFile)
		if err != nil {
			return fmt.Errorf("error occured while reading config: %w", err)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Address = address
		}
		if cmd.Flags().Changed("debug") {
			cfg.DebugMode = debugMode
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.Flags().StringVar(&address, "addr", config.DefaultAddress, "TCP address to listen on, overrides server.address")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging, overrides debug_mode")
}

func run(ctx context.Context, cfg *config.Config) error {
	loggerCallback := logger.Init(cfg)
	logger.Debug("Application initializing...")

	cleaner := event.NewCleaner(loggerCallback)
	defer cleaner.Clean()
	if cfg.Metrics.Enabled {
		cleaner.Add(event.Func(metrics.Flush))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, router.NewRouter(cfg.Router))
	if err := srv.Run(ctx); err != nil {
		logger.ErrorF("Server stopped with error: %v", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
