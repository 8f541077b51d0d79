// Package main is the entry point for the livenotifyd notification daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/livenotify/internal/config"
	"github.com/jmylchreest/livenotify/internal/daemon"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/livenotify/livenotifyd.toml)")
	verbose := flag.Bool("verbose", false, "Enable debug logging regardless of [log] level")
	noReload := flag.Bool("no-reload", false, "Do not watch the config file for changes")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("livenotifyd version", version)
		os.Exit(0)
	}

	// Set up structured logging; the level follows the config until it is loaded.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			logger.Error("failed to get config path", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadDaemonConfigFile(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	opts := daemon.Options{
		Config: cfg,
		Logger: logger,
	}
	if *verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(cfg.SlogLevel())
		opts.Level = level
	}
	if !*noReload {
		opts.ConfigPath = path
	}

	logger.Info("starting livenotifyd", "version", version, "config", path)

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := daemon.New(opts).Run(ctx); err != nil {
		logger.Error("livenotifyd failed", "error", err)
		os.Exit(1)
	}

	logger.Info("livenotifyd stopped")
}
