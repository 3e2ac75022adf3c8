package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables read by LoadSettings.
const (
	EnvLogLevel        = "COUNTER_LOG_LEVEL"
	EnvHTTPAddr        = "COUNTER_HTTP_ADDR"
	EnvDBPath          = "COUNTER_DB_PATH"
	EnvCaptureDir      = "COUNTER_CAPTURE_DIR"
	EnvWatchDir        = "COUNTER_WATCH_DIR"
	EnvCaptureInterval = "COUNTER_CAPTURE_INTERVAL"
	EnvDefaults        = "COUNTER_DEFAULTS"
)

// DefaultCaptureInterval matches the 3 second cadence of the camera's
// training mode.
const DefaultCaptureInterval = 3 * time.Second

// Settings holds process-level configuration.
type Settings struct {
	// LogLevel is "debug" for verbose logging, anything else for normal.
	LogLevel string

	// HTTPAddr is the listen address for the HTTP API.
	HTTPAddr string

	// DBPath is the sqlite file for count history.
	DBPath string

	// CaptureDir is where captured frames are saved and served from.
	CaptureDir string

	// WatchDir is the camera drop folder polled by the capture loop.
	// Empty disables periodic capture.
	WatchDir string

	// CaptureInterval is the period of the capture loop.
	CaptureInterval time.Duration

	// DefaultsPath is an optional counting defaults JSON file.
	DefaultsPath string
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		LogLevel:        strings.ToLower(getEnv(EnvLogLevel, "info")),
		HTTPAddr:        getEnv(EnvHTTPAddr, ":8080"),
		DBPath:          getEnv(EnvDBPath, "counter.db"),
		CaptureDir:      getEnv(EnvCaptureDir, "captures"),
		WatchDir:        os.Getenv(EnvWatchDir),
		CaptureInterval: DefaultCaptureInterval,
		DefaultsPath:    os.Getenv(EnvDefaults),
	}

	if v := os.Getenv(EnvCaptureInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s '%s': %w", EnvCaptureInterval, v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", EnvCaptureInterval, d)
		}
		s.CaptureInterval = d
	}

	if s.WatchDir != "" {
		same, err := sameDir(s.WatchDir, s.CaptureDir)
		if err != nil {
			return nil, err
		}
		if same {
			return nil, fmt.Errorf("%s and %s must differ, both are '%s'", EnvWatchDir, EnvCaptureDir, s.WatchDir)
		}
	}

	return s, nil
}

// sameDir compares two directory paths after making them absolute. Saved
// captures landing in the watched folder would be counted again.
func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("invalid directory '%s': %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("invalid directory '%s': %w", b, err)
	}
	return absA == absB, nil
}

// Debug reports whether verbose logging was requested.
func (s *Settings) Debug() bool {
	return s.LogLevel == "debug"
}

// LoadDefaults returns the counting defaults from DefaultsPath, or the
// built-in defaults when no file is configured.
func (s *Settings) LoadDefaults() (*CountingDefaults, error) {
	if s.DefaultsPath == "" {
		return EmptyCountingDefaults(), nil
	}
	return LoadCountingDefaults(s.DefaultsPath)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
