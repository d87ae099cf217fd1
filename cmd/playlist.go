package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/moodbeats/internal/formatter"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/playlist"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

const chartWidth = 30

func (r *Runner) flows() *playlist.Flows {
	alert := playlist.AlertFunc(func(message string) {
		r.writePlain("⚠ %s\n", message)
	})
	return playlist.NewFlows(r.api, alert, playlist.FlowsOpts{Logger: r.logger.WithPrefix("playlist")})
}

func playlistRequest(cmd *cli.Command) models.PlaylistRequest {
	return models.PlaylistRequest{
		Days:      int(cmd.Int("days")),
		NumTracks: int(cmd.Int("tracks")),
		Mood:      cmd.String("mood"),
	}
}

// PlaylistAnalyze summarizes recorded moods.
func (r *Runner) PlaylistAnalyze(ctx context.Context, cmd *cli.Command) error {
	days := int(cmd.Int("days"))
	if days <= 0 {
		return fmt.Errorf("%w: days must be positive, got %d", shared.ErrInvalidArgument, days)
	}

	analysis, err := r.flows().Analyze(ctx, days)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(analysis, true)
	}

	r.writePlainHeader("Mood Analysis")
	r.writePlain("%s", formatter.AnalysisToText(analysis, chartWidth))
	return nil
}

// PlaylistPreview fetches recommendations and optionally exports them.
func (r *Runner) PlaylistPreview(ctx context.Context, cmd *cli.Command) error {
	req := playlistRequest(cmd)
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	recs, err := r.flows().Preview(ctx, req)
	if err != nil {
		return err
	}

	if f := cmd.String("format"); f != "" {
		format, err := formatter.ParseFormat(f)
		if err != nil {
			return err
		}
		result, err := formatter.WriteRecommendations(recs, format, cmd.String("output"))
		if err != nil {
			return err
		}
		for _, file := range result.Files {
			r.writePlain("✓ Wrote %s\n", file)
		}
		if result.CoverImage != "" {
			r.writePlain("✓ Cover saved to %s\n", result.CoverImage)
		}
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(recs, true)
	}

	text, err := formatter.RecommendationsToText(recs)
	if err != nil {
		return err
	}
	r.writePlainHeader(formatter.Title(recs.DominantMood))
	r.writePlain("%s", text)
	return nil
}

// PlaylistGenerate creates a playlist on the user's Spotify account.
func (r *Runner) PlaylistGenerate(ctx context.Context, cmd *cli.Command) error {
	req := playlistRequest(cmd)
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.writePlain("→ Generating playlist...\n")
	result, err := r.flows().Generate(ctx, req)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("✓ Playlist created\n")
	r.writePlain("%s", formatter.GenerationToText(result))
	return nil
}

// EmotionAnalyzeText classifies a piece of text on the backend.
func (r *Runner) EmotionAnalyzeText(ctx context.Context, cmd *cli.Command) error {
	text := cmd.StringArg("text")
	if text == "" {
		return fmt.Errorf("%w: text", shared.ErrMissingArgument)
	}

	result, err := r.api.AnalyzeText(ctx, text)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.writePlain("Emotion: %s (%.0f%%)\n", result.Label, result.Score*100)
	return nil
}

// EmotionTimeline prints the moods the backend has stored.
func (r *Runner) EmotionTimeline(ctx context.Context, cmd *cli.Command) error {
	points, err := r.api.MoodTimeline(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(points, true)
	}

	if len(points) == 0 {
		r.writePlain("No moods recorded yet\n")
		return nil
	}

	r.writePlainHeader("Mood Timeline")
	for _, p := range points {
		r.writePlain("%-25s %-9s %.0f%%\n", p.Timestamp, p.Mood, p.Confidence)
	}
	return nil
}

// History lists recent upload attempts from the local journal.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.journal == nil {
		_, err := r.requireStore()
		if err == nil {
			err = fmt.Errorf("%w: journal unavailable", shared.ErrServiceUnavailable)
		}
		return err
	}

	entries, err := r.journal.List(map[string]any{
		"outcome": cmd.String("outcome"),
		"limit":   int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type row struct {
			Sequence   int            `json:"sequence"`
			Emotion    string         `json:"emotion"`
			Confidence int            `json:"confidence"`
			RecordedAt time.Time      `json:"recorded_at"`
			Outcome    models.Outcome `json:"outcome"`
			Detail     string         `json:"detail,omitempty"`
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, row{e.Sequence(), e.Emotion(), e.Confidence(), e.RecordedAt(), e.Outcome(), e.Detail()})
		}
		return r.writeJSON(rows, true)
	}

	if len(entries) == 0 {
		r.writePlain("No uploads recorded yet\n")
		return nil
	}

	r.writePlainHeader("Upload History")
	for _, e := range entries {
		r.writePlain("%4d  %s  %-9s %3d%%  %s\n",
			e.Sequence(), e.RecordedAt().Local().Format(time.DateTime), e.Emotion(), e.Confidence(), e.Outcome())
	}

	counts, err := r.journal.OutcomeCounts()
	if err != nil {
		r.logger.Warn("failed to count outcomes", "error", err)
		return nil
	}
	r.writePlainln("Totals:")
	for _, o := range []models.Outcome{models.OutcomeSent, models.OutcomeSkippedNoToken, models.OutcomeSkippedDebounced, models.OutcomeFailed} {
		r.writePlain("  %-18s %d\n", o, counts[o])
	}
	return nil
}
