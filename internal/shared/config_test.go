package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.BaseURL != "http://127.0.0.1:5000" {
			t.Errorf("expected api base url http://127.0.0.1:5000, got %s", config.API.BaseURL)
		}

		if config.Session.Port != 3000 {
			t.Errorf("expected session port 3000, got %d", config.Session.Port)
		}

		if config.Session.DashboardRoute != "/dashboard" {
			t.Errorf("expected dashboard route /dashboard, got %s", config.Session.DashboardRoute)
		}

		if config.Capture.Interval != 5*time.Second {
			t.Errorf("expected capture interval 5s, got %v", config.Capture.Interval)
		}

		if config.Database.Path != "./moodbeats.db" {
			t.Errorf("expected database path ./moodbeats.db, got %s", config.Database.Path)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("Session Addr", func(t *testing.T) {
		config := DefaultConfig()
		if got := config.Session.Addr(); got != "127.0.0.1:3000" {
			t.Errorf("expected 127.0.0.1:3000, got %s", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[api]
base_url = "https://moodbeats.example.com"

[capture]
interval = "10s"

[camera]
input_format = "avfoundation"
device = "0"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://moodbeats.example.com" {
			t.Errorf("expected overridden base url, got %s", config.API.BaseURL)
		}
		if config.Capture.Interval != 10*time.Second {
			t.Errorf("expected interval 10s, got %v", config.Capture.Interval)
		}
		if config.Camera.InputFormat != "avfoundation" {
			t.Errorf("expected avfoundation, got %s", config.Camera.InputFormat)
		}
		if config.Session.Port != 3000 {
			t.Errorf("unset keys should keep defaults, got port %d", config.Session.Port)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[capture]\ninterval = \"0s\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfigOrDefault Missing File", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.API.BaseURL != DefaultConfig().API.BaseURL {
			t.Error("expected defaults when file is missing")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Playlist.Days = 30

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Playlist.Days != 30 {
			t.Errorf("expected days 30, got %d", loaded.Playlist.Days)
		}
		if loaded.Capture.Interval != config.Capture.Interval {
			t.Errorf("expected interval %v, got %v", config.Capture.Interval, loaded.Capture.Interval)
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "home prefix", in: "~/models", want: filepath.Join(home, "models")},
		{name: "bare tilde", in: "~", want: home},
		{name: "absolute", in: "/var/lib/x", want: "/var/lib/x"},
		{name: "relative", in: "./db.sqlite", want: "./db.sqlite"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
