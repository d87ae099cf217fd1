package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/repositories"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("MOODBEATS_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}

	opts := RunnerOpts{Config: config, ConfigPath: configPath, Logger: logger}

	if db, err := shared.OpenStore(config.Database); err != nil {
		logger.Warn("local store unavailable", "path", config.Database.Path, "error", err)
	} else {
		defer db.Close()
		opts.Store = repositories.NewKVStore(db)
		opts.Journal = repositories.NewJournalRepository(db)
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:    "moodbeats",
		Usage:   "Capture your mood from the camera and turn it into Spotify playlists",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
