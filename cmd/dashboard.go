package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodbeats/internal/capture"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/playlist"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/desertthunder/moodbeats/internal/ui"
	"github.com/urfave/cli/v3"
)

// Dashboard launches the live terminal dashboard: capture status plus the playlist actions.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	// Logs go to a file so they do not interfere with rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	var sess *capture.Session
	if !cmd.Bool("no-capture") {
		sess, err = r.newCaptureSession(cmd.String("source"), cmd.Duration("interval"), nil, r.logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				r.logger.Warn("capture teardown failed", "error", err)
			}
		}()
	}

	// Registered after the session teardown so it runs first.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	alerts := ui.NewAlerts(8)
	flows := playlist.NewFlows(r.api, alerts, playlist.FlowsOpts{Logger: r.logger.WithPrefix("playlist")})

	model := ui.NewModel(ctx, ui.Options{
		Session: sess,
		Flows:   flows,
		Alerts:  alerts,
		Request: models.PlaylistRequest{Days: r.config.Playlist.Days, NumTracks: r.config.Playlist.NumTracks},
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}
