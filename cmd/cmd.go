// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

var (
	jsonFlag   = &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
	prettyFlag = &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true}
)

func daysFlag(r *Runner) *cli.IntFlag {
	return &cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Number of days of moods to consider", Value: r.config.Playlist.Days}
}

func playlistFlags(r *Runner) []cli.Flag {
	return []cli.Flag{
		daysFlag(r),
		&cli.IntFlag{Name: "tracks", Aliases: []string{"n"}, Usage: "Number of tracks", Value: r.config.Playlist.NumTracks},
		&cli.StringFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Use this mood instead of the analyzed one"},
		jsonFlag,
	}
}

func captureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Read frames from an image file or directory instead of the camera",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Capture interval (defaults to capture.interval from config)",
		},
	}
}

// setupCommand handles setup operations for the local store and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the local store and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "MoodBeats API base URL"},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "migrations",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupMigrations,
			},
		},
	}
}

// sessionCommand handles the MoodBeats session token.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage the MoodBeats session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in through Spotify and store the session token",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "no-browser", Usage: "Print the login URL instead of opening it"}},
				Action: r.SessionLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored session token's claims",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.SessionStatus,
			},
			{
				Name:   "verify",
				Usage:  "Check the session token against the API",
				Action: r.SessionVerify,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored session and Spotify tokens",
				Action: r.SessionLogout,
			},
			{
				Name:      "bootstrap",
				Usage:     "Bootstrap a session from a dashboard URL carrying ?token=",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Action:    r.SessionBootstrap,
			},
		},
	}
}

// spotifyCommand handles the Spotify account connection.
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account connection",
		Commands: []*cli.Command{
			{
				Name:   "connect",
				Usage:  "Connect Spotify and store the tokens delivered on the success route",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "no-browser", Usage: "Print the login URL instead of opening it"}},
				Action: r.SpotifyConnect,
			},
			{
				Name:   "status",
				Usage:  "Show whether Spotify tokens are stored",
				Action: r.SpotifyStatus,
			},
		},
	}
}

// captureCommand handles the camera capture loop.
func captureCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture emotions from the camera and upload them",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the capture loop until interrupted",
				Flags: append(captureFlags(),
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve /status, /metrics and /events on this address",
						Value: r.config.Capture.MetricsAddr,
					},
				),
				Action: r.CaptureRun,
			},
			{
				Name:   "once",
				Usage:  "Capture, classify and upload a single frame",
				Flags:  append(captureFlags(), jsonFlag),
				Action: r.CaptureOnce,
			},
		},
	}
}

// emotionCommand handles emotion analysis that does not need the camera.
func emotionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "emotion",
		Usage: "Emotion analysis",
		Commands: []*cli.Command{
			{
				Name:      "analyze-text",
				Usage:     "Classify the emotion of a piece of text",
				Arguments: []cli.Argument{&cli.StringArg{Name: "text"}},
				Flags:     []cli.Flag{jsonFlag},
				Action:    r.EmotionAnalyzeText,
			},
			{
				Name:   "timeline",
				Usage:  "Show the most recent moods stored remotely",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.EmotionTimeline,
			},
		},
	}
}

// playlistCommand handles the playlist request flows.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Analyze moods and build playlists",
		Commands: []*cli.Command{
			{
				Name:   "analyze",
				Usage:  "Summarize recorded moods",
				Flags:  []cli.Flag{daysFlag(r), jsonFlag},
				Action: r.PlaylistAnalyze,
			},
			{
				Name:  "preview",
				Usage: "Preview recommendations without creating a playlist",
				Flags: append(playlistFlags(r),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: csv, md, txt or json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Export path"},
				),
				Action: r.PlaylistPreview,
			},
			{
				Name:   "generate",
				Usage:  "Create a playlist on your Spotify account",
				Flags:  playlistFlags(r),
				Action: r.PlaylistGenerate,
			},
		},
	}
}

// historyCommand shows the local upload journal.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent emotion uploads recorded locally",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of entries", Value: 20},
			&cli.StringFlag{Name: "outcome", Usage: "Only show entries with this outcome"},
			jsonFlag,
		},
		Action: r.History,
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the MoodBeats API",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     []cli.Flag{prettyFlag},
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "Direct POST with JSON body",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// dashboardCommand returns the top-level TUI command.
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the live terminal dashboard",
		Flags: append(captureFlags(),
			&cli.BoolFlag{Name: "no-capture", Usage: "Only drive the playlist actions"},
			&cli.StringFlag{Name: "log-file", Usage: "Where to write logs while the dashboard runs", Value: "./tmp/moodbeats-dashboard.log"},
		),
		Action: r.Dashboard,
	}
}
