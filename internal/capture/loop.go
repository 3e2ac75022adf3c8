package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ironsheep/object-counter/internal/config"
	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/imaging"
	"github.com/ironsheep/object-counter/internal/monitoring"
	"github.com/ironsheep/object-counter/internal/store"
)

// Recorder persists count records. *store.Store implements it.
type Recorder interface {
	RecordCount(ctx context.Context, rec *store.CountRecord) error
}

// FilePrefix names the frames saved by the loop.
const FilePrefix = "CAPTURE"

// FileName returns PREFIX_<unix-millis>.png.
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%d.png", prefix, t.UnixMilli())
}

// Result is one counted capture.
type Result struct {
	File     string                 `json:"file"`
	Source   string                 `json:"source"`
	RecordID string                 `json:"record_id,omitempty"`
	Warning  string                 `json:"warning,omitempty"`
	Config   detection.Config       `json:"config"`
	Count    *detection.CountResult `json:"result"`
}

// Stats is a snapshot of the loop's progress.
type Stats struct {
	Running       bool      `json:"running"`
	Interval      string    `json:"interval"`
	Captures      int       `json:"captures"`
	Failures      int       `json:"failures"`
	Skipped       int       `json:"skipped"`
	LastCount     int       `json:"last_count"`
	LastFile      string    `json:"last_file,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastCaptureAt time.Time `json:"last_capture_at"`
}

// Loop periodically captures a frame, counts it, records the count and
// saves the frame into the capture directory.
type Loop struct {
	source   Source
	recorder Recorder
	defaults *config.CountingDefaults
	dir      string
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewLoop creates a capture loop. recorder may be nil to skip persistence;
// a non-positive interval uses config.DefaultCaptureInterval.
func NewLoop(source Source, recorder Recorder, defaults *config.CountingDefaults, captureDir string, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = config.DefaultCaptureInterval
	}
	if defaults == nil {
		defaults = config.EmptyCountingDefaults()
	}
	return &Loop{
		source:   source,
		recorder: recorder,
		defaults: defaults,
		dir:      captureDir,
		interval: interval,
		now:      time.Now,
		stats:    Stats{Interval: interval.String()},
	}
}

// Dir returns the capture directory.
func (l *Loop) Dir() string { return l.dir }

// Run captures every interval until ctx is cancelled. Individual capture
// errors are logged and counted; they never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	monitoring.Logf("capture loop started (every %s, saving to %s)", l.interval, l.dir)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture loop stopped")
			return nil
		case <-ticker.C:
			if _, err := l.CaptureNow(ctx); err != nil && !errors.Is(err, ErrNoNewFrame) {
				monitoring.Logf("capture failed: %v", err)
			}
		}
	}
}

// CaptureNow captures, counts, records and saves one frame.
func (l *Loop) CaptureNow(ctx context.Context) (*Result, error) {
	res, err := l.capture(ctx)
	l.finish(res, err)
	return res, err
}

func (l *Loop) capture(ctx context.Context) (*Result, error) {
	img, name, err := l.source.Capture(ctx)
	if err != nil {
		return nil, err
	}

	frame, err := imaging.FrameFromImage(img, l.defaults.FrameOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}

	cfg := l.defaults.CountConfig()
	count, err := detection.CountObjects(frame, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", name, err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture dir: %w", err)
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	file := FileName(FilePrefix, l.now())
	if err := os.WriteFile(filepath.Join(l.dir, file), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save capture: %w", err)
	}

	res := &Result{File: file, Source: name, Config: cfg, Count: count}

	if l.recorder != nil {
		rec := store.NewCountRecord(file, cfg, count)
		// The frame is already saved, so a store failure leaves a capture
		// without a history row rather than failing it.
		if err := l.recorder.RecordCount(ctx, rec); err != nil {
			res.Warning = fmt.Sprintf("failed to record count: %v", err)
			monitoring.Logf("capture %s: %s", file, res.Warning)
		} else {
			res.RecordID = rec.ID
		}
	}

	monitoring.Debugf("captured %s from %s: %d objects", file, name, count.Count)
	return res, nil
}

func (l *Loop) finish(res *Result, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case errors.Is(err, ErrNoNewFrame):
		l.stats.Skipped++
		return
	case err != nil:
		l.stats.Failures++
		l.stats.LastError = err.Error()
		return
	}

	l.stats.Captures++
	l.stats.LastCount = res.Count.Count
	l.stats.LastFile = res.File
	l.stats.LastError = res.Warning
	l.stats.LastCaptureAt = l.now()
}

func (l *Loop) setRunning(running bool) {
	l.mu.Lock()
	l.stats.Running = running
	l.mu.Unlock()
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
