// Package main provides the CLI entrypoint for livenotify.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "livenotify",
	Short: "Send live notifications through livenotifyd",
	Long: `livenotify is a client for the livenotifyd notification daemon.

It renders styled and layout-bound notifications, cancels them, and
listens for tap payloads the way an embedding application would.

Use 'livenotify preview' to compose request files offline without a
running daemon.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/livenotify/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// connectClient opens a session bus connection and a daemon client on it.
// The caller closes the connection.
func connectClient() (*godbus.Conn, *dbus.Client, error) {
	conn, err := godbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn, dbus.NewClient(conn, logger), nil
}

// callContext bounds one daemon call by the configured client timeout.
func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), getConfig().Client.Timeout.Duration())
}

// sendRequests sends each request in order, stopping at the first failure.
func sendRequests(reqs []Request) error {
	conn, client, err := connectClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, req := range reqs {
		ctx, cancel := callContext()
		err := client.Invoke(ctx, req.Method, req.Args)
		cancel()
		if err != nil {
			return fmt.Errorf("%s failed: %w", req.Method, err)
		}
		logger.Debug("request sent", "method", req.Method)
	}
	return nil
}
