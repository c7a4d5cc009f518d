package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/ragent/internal/capability"
	"github.com/kalambet/ragent/internal/config"
	"github.com/kalambet/ragent/internal/storage"
	"github.com/kalambet/ragent/internal/tools"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "ragent",
	Short:         "A local tool-using agent for OpenAI-compatible models",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// loadConfig loads configuration and sets up logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

// defaultTools builds the built-in capability set with tool executions logged.
func defaultTools(cfg config.Config) (*capability.Registry, error) {
	return tools.Default(tools.Options{
		FetchRate:      cfg.Tools.FetchRate,
		FetchCacheSize: cfg.Tools.FetchCacheSize,
	}, capability.WithObserver(capability.NewLogObserver(slog.Default())))
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}
