package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/imaging"
)

// maxUploadBytes bounds an uploaded body: a full-budget RGB565 frame plus
// multipart overhead.
const maxUploadBytes = 2*imaging.MaxScratchPixels + 1<<20

// requestError marks a malformed request, answered with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// countConfig applies query overrides to the configured defaults.
func (s *Server) countConfig(q url.Values) (detection.Config, error) {
	cfg := s.defaults.CountConfig()

	ints := []struct {
		key string
		dst *int
	}{
		{"threshold", &cfg.Threshold},
		{"min_area", &cfg.MinArea},
		{"max_area", &cfg.MaxArea},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, badRequest("invalid %s: %q", p.key, v)
			}
			*p.dst = n
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"area_tol", &cfg.AreaTolerance},
		{"aspect_tol", &cfg.AspectTolerance},
	}
	for _, p := range floats {
		if v := q.Get(p.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return cfg, badRequest("invalid %s: %q", p.key, v)
			}
			*p.dst = f
		}
	}

	if v := q.Get("smart"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, badRequest("invalid smart: %q", v)
		}
		cfg.SmartMode = b
	}

	if v := q.Get("polarity"); v != "" {
		p, err := imaging.ParsePolarity(v)
		if err != nil {
			return cfg, badRequest("invalid polarity: %q", v)
		}
		cfg.Polarity = p
	}

	return cfg, nil
}

// readFrame builds a frame from the request body.
//
// Accepted bodies:
//   - multipart/form-data with the image in field "file"
//   - application/octet-stream raw pixels, with w, h and format query
//     parameters (format gray8 or rgb565)
//   - any encoded image (PNG, JPEG, GIF, BMP, WebP)
//
// The second return value names the source for history.
func (s *Server) readFrame(w http.ResponseWriter, r *http.Request) (imaging.Frame, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return imaging.Frame{}, "", badRequest("invalid multipart body: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return imaging.Frame{}, "", badRequest("missing multipart field \"file\"")
		}
		defer f.Close()
		frame, err := s.decodeFrame(f)
		return frame, filepath.Base(hdr.Filename), err

	case mediaType == "application/octet-stream":
		return readRawFrame(r)

	default:
		frame, err := s.decodeFrame(r.Body)
		return frame, "upload", err
	}
}

func (s *Server) decodeFrame(body io.Reader) (imaging.Frame, error) {
	img, err := imaging.DecodeReader(body)
	if err != nil {
		return imaging.Frame{}, badRequest("%v", err)
	}
	frame, err := imaging.FrameFromImage(img, s.defaults.FrameOptions())
	if err != nil {
		return imaging.Frame{}, err
	}
	return frame, nil
}

// readRawFrame reads a raw sensor buffer. The buffer length is not checked
// here; CountObjects reports a mismatch as ErrInvalidFrameShape.
func readRawFrame(r *http.Request) (imaging.Frame, string, error) {
	q := r.URL.Query()

	w, err := strconv.Atoi(q.Get("w"))
	if err != nil {
		return imaging.Frame{}, "", badRequest("raw frame needs integer w")
	}
	h, err := strconv.Atoi(q.Get("h"))
	if err != nil {
		return imaging.Frame{}, "", badRequest("raw frame needs integer h")
	}
	format, err := imaging.ParsePixelFormat(q.Get("format"))
	if err != nil {
		return imaging.Frame{}, "", badRequest("%v", err)
	}

	pix, err := io.ReadAll(r.Body)
	if err != nil {
		return imaging.Frame{}, "", badRequest("failed to read body: %v", err)
	}

	return imaging.Frame{Width: w, Height: h, Format: format, Pix: pix}, "raw-" + format.String(), nil
}

// capturePath resolves a file name inside the capture directory. Only bare
// image file names are accepted.
func (s *Server) capturePath(name string) (string, error) {
	if name == "" {
		return "", badRequest("missing file parameter")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", badRequest("invalid file name: %q", name)
	}
	if !imaging.IsImageFile(name) {
		return "", badRequest("not an image file: %q", name)
	}
	return filepath.Join(s.captureDir, name), nil
}
