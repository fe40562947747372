package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyprshell/hyprshell/internal/daemon"
	"github.com/hyprshell/hyprshell/pkg/config"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hyprshelld",
		Short: "Hyprland helper daemon",
		Long:  "Scratchpads, window animations, and workspace helpers for the Hyprland compositor",
		Run:   runDaemon,
	}

	rootCmd.Flags().String("config", config.DefaultPath, "config file path")
	rootCmd.Flags().Bool("debug", false, "enable debug logging")
	rootCmd.Flags().Bool("verbose", false, "enable verbose logging")
	rootCmd.Flags().Bool("foreground", false, "run in the foreground (no-op; kept for service files)")
	rootCmd.Flags().String("metrics-addr", ":9187", "metrics server bind address (empty disables)")

	viper.BindPFlags(rootCmd.Flags())
	viper.AutomaticEnv()
	viper.SetEnvPrefix("HYPRSHELL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) {
	logger := initLogger()

	logger.WithFields(logrus.Fields{
		"version": Version,
		"commit":  Commit,
	}).Info("Starting hyprshell daemon")

	d, err := daemon.New(logger, daemon.Options{
		ConfigPath:  viper.GetString("config"),
		Version:     Version,
		MetricsAddr: viper.GetString("metrics-addr"),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize daemon")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := d.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Daemon exited with error")
	}
}

func initLogger() *logrus.Logger {
	logger := logrus.New()

	switch {
	case viper.GetBool("debug"):
		logger.SetLevel(logrus.DebugLevel)
	case viper.GetBool("verbose"):
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	return logger
}
