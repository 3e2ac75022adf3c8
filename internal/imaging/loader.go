package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP decoder (ESP32 frame2bmp output)
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DefaultCacheEntries is the number of decoded frames an ImageCache keeps.
const DefaultCacheEntries = 8

// ImageCache provides thread-safe caching of decoded images to avoid
// redundant disk reads when several tools inspect the same capture.
//
// Entries are keyed by path and validated against the file's modification
// time and size on every Load, so a camera overwriting the same file is
// decoded again. Images are decoded with EXIF auto-orientation so that
// phone uploads are counted the way they are displayed.
//
// # Memory Management
//
// The cache holds at most its capacity; loading a new frame into a full
// cache drops the least recently used one. A path that can no longer be
// stat'ed is evicted.
type ImageCache struct {
	mu       sync.Mutex
	capacity int
	clock    uint64
	images   map[string]*cacheEntry
}

type cacheEntry struct {
	img     image.Image
	modTime time.Time
	size    int64
	used    uint64
}

// NewImageCache creates an empty cache holding DefaultCacheEntries frames.
func NewImageCache() *ImageCache {
	return NewImageCacheSize(DefaultCacheEntries)
}

// NewImageCacheSize creates an empty cache holding at most capacity frames.
// A capacity below 1 is treated as 1.
func NewImageCacheSize(capacity int) *ImageCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ImageCache{
		capacity: capacity,
		images:   make(map[string]*cacheEntry),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP and WebP. The image is cached
// using the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	stat, err := os.Stat(path)
	if err != nil {
		c.Evict(path)
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	if e, ok := c.images[path]; ok && e.modTime.Equal(stat.ModTime()) && e.size == stat.Size() {
		c.clock++
		e.used = c.clock
		c.mu.Unlock()
		return e.img, nil
	}
	c.mu.Unlock()

	img, err := DecodeFile(path)
	if err != nil {
		c.Evict(path)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[path]; !ok && len(c.images) >= c.capacity {
		c.evictOldestLocked()
	}
	c.clock++
	c.images[path] = &cacheEntry{img: img, modTime: stat.ModTime(), size: stat.Size(), used: c.clock}

	return img, nil
}

func (c *ImageCache) evictOldestLocked() {
	var (
		oldest string
		used   uint64
	)
	for p, e := range c.images {
		if oldest == "" || e.used < used {
			oldest, used = p, e.used
		}
	}
	delete(c.images, oldest)
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// DecodeFile opens and decodes an image file without caching it.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return DecodeReader(f)
}

// DecodeReader decodes an image stream, applying EXIF orientation.
func DecodeReader(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// IsImageFile reports whether the file extension is one the cache decodes.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

// FrameInfo contains metadata about an image file as a counting input.
type FrameInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format from the file extension:
	// "png", "jpeg", "gif", "bmp", "webp" or "unknown".
	Format string `json:"format"`

	// Pixels is Width*Height, the amount of per-frame work the engine does.
	Pixels int `json:"pixels"`

	// WithinBudget reports whether the frame fits MaxScratchPixels without
	// resizing.
	WithinBudget bool `json:"within_budget"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadFrameInfo loads an image into the cache and describes it.
func LoadFrameInfo(cache *ImageCache, path string) (*FrameInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".bmp":
		format = "bmp"
	case ".webp":
		format = "webp"
	}

	bounds := img.Bounds()
	_, budgetErr := ScratchSize(bounds.Dx(), bounds.Dy())

	return &FrameInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		Pixels:        bounds.Dx() * bounds.Dy(),
		WithinBudget:  budgetErr == nil,
		FileSizeBytes: stat.Size(),
	}, nil
}
