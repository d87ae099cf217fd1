package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Session  SessionConfig  `toml:"session"`
	Camera   CameraConfig   `toml:"camera"`
	Models   ModelsConfig   `toml:"models"`
	Capture  CaptureConfig  `toml:"capture"`
	Database DatabaseConfig `toml:"database"`
	Playlist PlaylistConfig `toml:"playlist"`
}

// APIConfig points at the remote MoodBeats backend.
type APIConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// SessionConfig describes the local callback server and the routes it serves.
type SessionConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	EntryRoute     string        `toml:"entry_route"`
	DashboardRoute string        `toml:"dashboard_route"`
	SuccessRoute   string        `toml:"success_route"`
	LoginTimeout   time.Duration `toml:"login_timeout"`
}

// Addr returns the host:port the callback server listens on.
func (s SessionConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CameraConfig configures the ffmpeg capture process.
type CameraConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	InputFormat string `toml:"input_format"`
	Device      string `toml:"device"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	FrameRate   int    `toml:"frame_rate"`
}

// ModelsConfig locates the inference artifacts and the ONNX runtime.
type ModelsConfig struct {
	HostURL        string  `toml:"host_url"`
	CacheDir       string  `toml:"cache_dir"`
	RuntimeLibrary string  `toml:"runtime_library"`
	ManifestPath   string  `toml:"manifest_path"`
	ScoreThreshold float32 `toml:"score_threshold"`
	// DownloadTimeout bounds each artifact download, body included.
	DownloadTimeout time.Duration `toml:"download_timeout"`
}

// CaptureConfig controls the capture loop cadence.
type CaptureConfig struct {
	Interval          time.Duration `toml:"interval"`
	UploadMinInterval time.Duration `toml:"upload_min_interval"`
	MetricsAddr       string        `toml:"metrics_addr"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PlaylistConfig holds default parameters for the playlist flows.
type PlaylistConfig struct {
	Days      int `toml:"days"`
	NumTracks int `toml:"num_tracks"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault loads the config at path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("%w: api.base_url %q", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.Capture.Interval <= 0 {
		return fmt.Errorf("%w: capture.interval must be positive", ErrInvalidConfig)
	}
	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("%w: session.port %d", ErrInvalidConfig, c.Session.Port)
	}
	if c.Models.ScoreThreshold < 0 || c.Models.ScoreThreshold > 1 {
		return fmt.Errorf("%w: models.score_threshold must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
