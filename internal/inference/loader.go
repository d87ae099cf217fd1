package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// DefaultDownloadTimeout bounds a single artifact download.
const DefaultDownloadTimeout = 10 * time.Minute

// DefaultHostURL is the public model zoo the artifacts are fetched from.
const DefaultHostURL = "https://github.com/onnx/models/raw/main/validated/vision/body_analysis"

// Paths are the local files of a loaded manifest.
type Paths struct {
	Detector   string
	Classifier string
}

// Builder turns downloaded artifacts into a ready [Adapter].
type Builder func(m *Manifest, paths Paths) (*Adapter, error)

// Loader fetches the model artifacts into a cache directory and builds the
// adapter from them, at most once per instance. A failed load is final.
type Loader struct {
	hostURL  string
	cacheDir string
	manifest *Manifest
	build    Builder
	client   *http.Client
	timeout  time.Duration
	logger   *log.Logger

	once sync.Once

	mu      sync.Mutex
	state   models.Readiness
	err     error
	adapter *Adapter
	closed  bool
}

// LoaderOpts configures a [Loader]. Nil fields take defaults.
type LoaderOpts struct {
	Manifest *Manifest
	Builder  Builder
	Client   *http.Client
	Logger   *log.Logger
}

func NewLoader(cfg shared.ModelsConfig, opts LoaderOpts) *Loader {
	if cfg.HostURL == "" {
		cfg.HostURL = DefaultHostURL
	}
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest()
	}
	if opts.Builder == nil {
		opts.Builder = ONNXBuilder(cfg.RuntimeLibrary, cfg.ScoreThreshold)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Client.Timeout > 0 {
		// Artifacts are large; downloads are bounded per file instead.
		c := *opts.Client
		c.Timeout = 0
		opts.Client = &c
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Loader{
		hostURL:  strings.TrimRight(cfg.HostURL, "/"),
		cacheDir: shared.ExpandPath(cfg.CacheDir),
		manifest: opts.Manifest,
		build:    opts.Builder,
		client:   opts.Client,
		timeout:  cfg.DownloadTimeout,
		logger:   opts.Logger,
	}
}

func (l *Loader) Readiness() models.Readiness {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Load fetches missing artifacts and builds the adapter. Only the first call
// does any work.
func (l *Loader) Load(ctx context.Context) (*Adapter, error) {
	l.once.Do(func() { l.load(ctx) })

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adapter, l.err
}

func (l *Loader) load(ctx context.Context) {
	l.mu.Lock()
	if l.closed {
		l.state, l.err = models.Failed, fmt.Errorf("%w: loader closed", shared.ErrModelsUnavailable)
		l.mu.Unlock()
		return
	}
	l.state, _ = l.state.Next(models.Requesting)
	l.mu.Unlock()

	adapter, err := l.fetchAndBuild(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil && l.closed {
		adapter.Close()
		err = fmt.Errorf("%w: loader closed", shared.ErrModelsUnavailable)
	}
	if err != nil {
		if !errors.Is(err, shared.ErrModelsUnavailable) {
			err = fmt.Errorf("%w: %v", shared.ErrModelsUnavailable, err)
		}
		l.state, _ = l.state.Next(models.Failed)
		l.err = err
		l.logger.Error("models unavailable", "error", err)
		return
	}

	l.adapter = adapter
	l.state, _ = l.state.Next(models.Ready)
	l.logger.Info("models ready", "detector", l.manifest.Detector.Name, "classifier", l.manifest.Classifier.Name)
}

func (l *Loader) fetchAndBuild(ctx context.Context) (*Adapter, error) {
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model cache: %w", err)
	}

	var paths Paths
	var err error
	if paths.Detector, err = l.Fetch(ctx, l.manifest.Detector); err != nil {
		return nil, err
	}
	if paths.Classifier, err = l.Fetch(ctx, l.manifest.Classifier); err != nil {
		return nil, err
	}
	return l.build(l.manifest, paths)
}

// Fetch downloads a into the cache unless it is already there, returning its local path.
func (l *Loader) Fetch(ctx context.Context, a Artifact) (string, error) {
	dest := filepath.Join(l.cacheDir, a.File)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		l.logger.Debug("model cached", "file", dest)
		return dest, nil
	}

	url := l.hostURL + "/" + strings.TrimLeft(a.Path, "/")
	l.logger.Info("downloading model", "url", url)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", a.File, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", a.File, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(l.cacheDir, a.File+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", a.File, err)
	}
	if n == 0 {
		return "", fmt.Errorf("downloaded %s is empty", a.File)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", a.File, err)
	}
	return dest, nil
}

// Close releases the loaded networks. It is idempotent.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.adapter == nil {
		return nil
	}
	err := l.adapter.Close()
	l.adapter = nil
	return err
}
