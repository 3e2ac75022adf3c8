package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/ironsheep/object-counter/internal/capture"
	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/httputil"
	"github.com/ironsheep/object-counter/internal/imaging"
	"github.com/ironsheep/object-counter/internal/monitoring"
	"github.com/ironsheep/object-counter/internal/store"
	"github.com/ironsheep/object-counter/internal/version"
)

// writeError answers 400 for malformed requests and 500 for everything
// else, so a failed count is never reported as zero objects.
func writeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		httputil.BadRequest(w, reqErr.msg)
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) handleCountUpload(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.countConfig(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	frame, source, err := s.readFrame(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	s.count(r.Context(), w, frame, source, cfg)
}

func (s *Server) handleCountFile(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.countConfig(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("file")
	path, err := s.capturePath(name)
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := imaging.DecodeFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		httputil.NotFound(w, "file not found: "+name)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	frame, err := imaging.FrameFromImage(img, s.defaults.FrameOptions())
	if err != nil {
		writeError(w, err)
		return
	}

	s.count(r.Context(), w, frame, name, cfg)
}

// count runs the engine, records the result and writes the
// {count, sizes, w, h} response.
func (s *Server) count(ctx context.Context, w http.ResponseWriter, frame imaging.Frame, source string, cfg detection.Config) {
	res, err := detection.CountObjects(frame, cfg)
	if err != nil {
		monitoring.Logf("count %s failed: %v", source, err)
		httputil.InternalServerError(w, "counting failed: "+err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.RecordCount(ctx, store.NewCountRecord(source, cfg, res)); err != nil {
			monitoring.Logf("failed to record count for %s: %v", source, err)
		}
	}

	httputil.WriteJSONOK(w, res.Compat())
}

// blobsResponse is the raw, unfiltered labeling of a frame.
type blobsResponse struct {
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Count     int                 `json:"count"`
	Blobs     []detection.Blob    `json:"blobs"`
	Truncated bool                `json:"truncated"`
	Stats     detection.AreaStats `json:"stats"`
	Threshold int                 `json:"threshold"`
	Polarity  imaging.Polarity    `json:"polarity"`
}

func (s *Server) handleBlobs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.countConfig(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	frame, _, err := s.readFrame(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	mask, err := imaging.Threshold(frame, cfg.Threshold, cfg.Polarity)
	if err != nil {
		httputil.InternalServerError(w, "threshold failed: "+err.Error())
		return
	}
	blobs, err := detection.Label(mask)
	if err != nil {
		httputil.InternalServerError(w, "labeling failed: "+err.Error())
		return
	}

	resp := blobsResponse{
		Width:     frame.Width,
		Height:    frame.Height,
		Count:     len(blobs),
		Blobs:     blobs,
		Stats:     detection.SummarizeAreas(blobs),
		Threshold: cfg.Threshold,
		Polarity:  cfg.Polarity,
	}
	if resp.Blobs == nil {
		resp.Blobs = []detection.Blob{}
	}
	if len(resp.Blobs) > detection.MaxResultBlobs {
		resp.Blobs = resp.Blobs[:detection.MaxResultBlobs]
		resp.Truncated = true
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// systemInfo mirrors the camera firmware's /system_info page.
type systemInfo struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	GitSHA        string         `json:"git_sha"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	GoVersion     string         `json:"go_version"`
	Goroutines    int            `json:"goroutines"`
	HeapAllocKB   uint64         `json:"heap_alloc_kb"`
	SysKB         uint64         `json:"sys_kb"`
	Storage       bool           `json:"storage"`
	CaptureDir    string         `json:"capture_dir"`
	Capture       *capture.Stats `json:"capture,omitempty"`
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := systemInfo{
		Name:          version.Name,
		Version:       version.Version,
		GitSHA:        version.GitSHA,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocKB:   mem.HeapAlloc / 1024,
		SysKB:         mem.Sys / 1024,
		CaptureDir:    s.captureDir,
	}
	if s.store != nil {
		info.Storage = s.store.Ping(r.Context()) == nil
	}
	if s.capture != nil {
		stats := s.capture.Stats()
		info.Capture = &stats
	}
	httputil.WriteJSONOK(w, info)
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "history storage is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit: "+v)
			return
		}
		limit = n
	}

	recs, err := s.store.ListCounts(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "history storage is not configured")
		return
	}

	rec, err := s.store.GetCount(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "history storage is not configured")
		return
	}

	id := r.PathValue("id")
	err := s.store.DeleteCount(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"deleted": id})
}

// fileEntry describes one stored capture.
type fileEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.captureDir)
	if errors.Is(err, fs.ErrNotExist) {
		httputil.WriteJSONOK(w, []fileEntry{})
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to list captures: "+err.Error())
		return
	}

	files := []fileEntry{}
	for _, e := range entries {
		if e.IsDir() || !imaging.IsImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{Name: e.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Modified.Equal(files[j].Modified) {
			return files[i].Name > files[j].Name
		}
		return files[i].Modified.After(files[j].Modified)
	})

	httputil.WriteJSONOK(w, files)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	path, err := s.capturePath(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		httputil.NotFound(w, "file not found: "+name)
		return
	}

	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": name}); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}
	http.ServeFile(w, r, path)
}

// uploadResult describes a frame stored by /upload.
type uploadResult struct {
	File   string `json:"file"`
	Size   int    `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// handleUpload stores a multipart "file" in the capture directory so it can
// be counted later with GET /count?file=. Existing files are not replaced.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.BadRequest(w, "invalid multipart body: "+err.Error())
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, `missing multipart field "file"`)
		return
	}
	defer f.Close()

	name := filepath.Base(filepath.ToSlash(hdr.Filename))
	path, err := s.capturePath(name)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		httputil.BadRequest(w, "failed to read upload: "+err.Error())
		return
	}
	img, err := imaging.DecodeReader(bytes.NewReader(data))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := os.MkdirAll(s.captureDir, 0o755); err != nil {
		httputil.InternalServerError(w, "failed to create capture dir: "+err.Error())
		return
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		httputil.WriteJSONError(w, http.StatusConflict, "file already exists: "+name)
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to store upload: "+err.Error())
		return
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(path)
		httputil.InternalServerError(w, "failed to store upload: "+err.Error())
		return
	}
	if err := out.Close(); err != nil {
		httputil.InternalServerError(w, "failed to store upload: "+err.Error())
		return
	}

	monitoring.Logf("stored upload %s (%d bytes)", name, len(data))
	b := img.Bounds()
	httputil.WriteJSONOK(w, uploadResult{File: name, Size: len(data), Width: b.Dx(), Height: b.Dy()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	path, err := s.capturePath(name)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			httputil.NotFound(w, "file not found: "+name)
			return
		}
		httputil.InternalServerError(w, "failed to delete file: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"deleted": name})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.capture == nil {
		httputil.ServiceUnavailable(w, "capture source is not configured")
		return
	}

	res, err := s.capture.CaptureNow(r.Context())
	if errors.Is(err, capture.ErrNoNewFrame) {
		httputil.WriteJSONError(w, http.StatusConflict, "no new frame available")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "capture failed: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, res)
}

// cameraTestResult reports one frame read from the capture source.
type cameraTestResult struct {
	Success bool   `json:"success"`
	Source  string `json:"source"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// handleCameraTest reads one frame from the capture source without
// counting, saving or recording it.
func (s *Server) handleCameraTest(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		httputil.ServiceUnavailable(w, "capture source is not configured")
		return
	}

	img, name, err := capture.Check(r.Context(), s.source)
	if errors.Is(err, capture.ErrNoNewFrame) {
		httputil.WriteJSONError(w, http.StatusConflict, "no frame available")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "camera test failed: "+err.Error())
		return
	}

	b := img.Bounds()
	monitoring.Debugf("camera test: %s %dx%d", name, b.Dx(), b.Dy())
	httputil.WriteJSONOK(w, cameraTestResult{Success: true, Source: name, Width: b.Dx(), Height: b.Dy()})
}
