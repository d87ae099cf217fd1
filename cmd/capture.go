package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/capture"
	"github.com/desertthunder/moodbeats/internal/inference"
	"github.com/desertthunder/moodbeats/internal/media"
	"github.com/desertthunder/moodbeats/internal/observability"
	"github.com/urfave/cli/v3"
)

const metricsNamespace = "moodbeats"

// newCaptureSession wires camera, models and dispatcher into a capture session.
// source selects still images instead of the camera.
func (r *Runner) newCaptureSession(source string, interval time.Duration, metrics *observability.Metrics, logger *log.Logger) (*capture.Session, error) {
	store, err := r.requireStore()
	if err != nil {
		return nil, err
	}

	var camera media.Camera
	if source != "" {
		static, err := media.LoadStaticCamera(source, media.DefaultFrameInterval)
		if err != nil {
			return nil, err
		}
		camera = static
	} else {
		camera = media.NewFFmpegCamera(r.config.Camera)
	}

	manifest, err := inference.LoadManifest(r.config.Models.ManifestPath)
	if err != nil {
		return nil, err
	}

	loader := inference.NewLoader(r.config.Models, inference.LoaderOpts{
		Manifest: manifest,
		Client:   r.httpClient,
		Logger:   logger.WithPrefix("models"),
	})

	opts := capture.DispatcherOpts{
		MinInterval: r.config.Capture.UploadMinInterval,
		Metrics:     metrics,
		Logger:      logger.WithPrefix("sync"),
	}
	if r.journal != nil {
		opts.Journal = r.journal
	}
	dispatcher := capture.NewDispatcher(r.api, store, opts)

	if interval <= 0 {
		interval = r.config.Capture.Interval
	}

	acquirer := media.NewAcquirer(camera, media.NewSink(), logger.WithPrefix("camera"))
	return capture.NewSession(acquirer, loader, dispatcher, capture.SessionOpts{
		Interval: interval,
		Metrics:  metrics,
		Logger:   logger.WithPrefix("capture"),
	}), nil
}

// CaptureRun runs the capture loop until interrupted.
func (r *Runner) CaptureRun(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	addr := cmd.String("metrics-addr")
	if addr != "" {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	sess, err := r.newCaptureSession(cmd.String("source"), cmd.Duration("interval"), metrics, r.logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	var hub *observability.Hub
	if addr != "" {
		hub = observability.NewHub(16)
		status := observability.NewStatusServer(addr, func() any { return sess.Status() }, metrics, hub, r.logger.WithPrefix("status"))
		if err := status.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				r.logger.Warn("error shutting down status server", "error", err)
			}
		}()
		r.writePlain("Status: http://%s/status\n", status.Addr())
	}

	r.writePlain("→ Starting capture (Ctrl+C to stop)...\n")
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("capture unavailable: %w", err)
	}

	events := sess.Events()
	for {
		select {
		case <-ctx.Done():
			r.writePlainln("Stopping capture...")
			if err := sess.Close(); err != nil {
				r.logger.Warn("capture teardown failed", "error", err)
			}
			st := sess.Status()
			r.writePlain("✓ %d ticks\n", st.Ticks)
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if hub != nil {
				hub.Publish(ev)
			}
			r.printEvent(ev)
		}
	}
}

func (r *Runner) printEvent(ev capture.Event) {
	ts := ev.At.Local().Format(time.TimeOnly)
	switch ev.Kind {
	case capture.EventCamera, capture.EventModels:
		if ev.Err != nil {
			r.writePlain("%s %-7s %v: %v\n", ts, ev.Kind, ev.Readiness, ev.Err)
			return
		}
		r.writePlain("%s %-7s %v\n", ts, ev.Kind, ev.Readiness)
	case capture.EventUpload:
		r.writePlain("%s %-7s %v %v\n", ts, ev.Kind, ev.Emotion, ev.Outcome)
	case capture.EventTick:
		r.logger.Debug("tick", "result", ev.Result)
	}
}

// CaptureOnce captures, classifies and uploads a single frame.
func (r *Runner) CaptureOnce(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.newCaptureSession(cmd.String("source"), cmd.Duration("interval"), nil, r.logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Prepare(ctx); err != nil {
		return fmt.Errorf("capture unavailable: %w", err)
	}

	report := sess.Tick(ctx)
	if report.Result == observability.TickNoFrame {
		// The first frame can trail the stream opening.
		time.Sleep(500 * time.Millisecond)
		report = sess.Tick(ctx)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"result":  report.Result,
			"emotion": report.Emotion,
			"outcome": report.Outcome,
		}, true)
	}

	switch {
	case report.Err != nil:
		return fmt.Errorf("capture failed: %w", report.Err)
	case report.Emotion == nil:
		r.writePlain("No emotion detected (%s)\n", report.Result)
	default:
		r.writePlain("Emotion: %v\n", report.Emotion)
		r.writePlain("Upload:  %v\n", report.Outcome)
	}
	return nil
}
