package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/object-counter/internal/imaging"
)

// ErrNoNewFrame is returned by a Source that has nothing new to offer.
// The loop skips the tick without counting it as a failure.
var ErrNoNewFrame = errors.New("no new frame")

// Source delivers one frame per call. The returned name identifies the
// frame in count history.
type Source interface {
	Capture(ctx context.Context) (image.Image, string, error)
}

// Peeker is a Source that can show its current frame without consuming it.
type Peeker interface {
	Peek(ctx context.Context) (image.Image, string, error)
}

// Check reads a frame from src for a health check. Sources implementing
// Peeker are peeked so the next Capture still sees the frame.
func Check(ctx context.Context, src Source) (image.Image, string, error) {
	if p, ok := src.(Peeker); ok {
		return p.Peek(ctx)
	}
	return src.Capture(ctx)
}

// DirSource reads the newest image file from a camera drop folder.
//
// A file is returned once; until a newer file (or a newer write of the same
// file) appears, Capture returns ErrNoNewFrame. Frames saved by a Loop
// (FilePrefix_*) are ignored so a shared folder never feeds back into itself.
type DirSource struct {
	dir string

	mu       sync.Mutex
	lastPath string
	lastMod  time.Time
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Capture decodes the newest image in the directory.
func (s *DirSource) Capture(ctx context.Context) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	path, mod, err := newestImage(s.dir)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	seen := path == s.lastPath && !mod.After(s.lastMod)
	s.mu.Unlock()
	if seen {
		return nil, "", ErrNoNewFrame
	}

	img, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.lastPath, s.lastMod = path, mod
	s.mu.Unlock()

	return img, filepath.Base(path), nil
}

// Peek decodes the newest image without marking it as seen.
func (s *DirSource) Peek(ctx context.Context) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path, _, err := newestImage(s.dir)
	if err != nil {
		return nil, "", err
	}
	img, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, "", err
	}
	return img, filepath.Base(path), nil
}

func newestImage(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read watch dir: %w", err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !imaging.IsImageFile(e.Name()) || strings.HasPrefix(e.Name(), FilePrefix+"_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// Newest wins; ties go to the lexically greater name so the choice
		// is stable.
		if best == "" || info.ModTime().After(bestMod) ||
			(info.ModTime().Equal(bestMod) && e.Name() > filepath.Base(best)) {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime()
		}
	}

	if best == "" {
		return "", time.Time{}, ErrNoNewFrame
	}
	return best, bestMod, nil
}
