package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/ivf"
)

// Video summarizes one container in the served directory.
type Video struct {
	Name       string `json:"name"`
	FourCC     string `json:"fourcc"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Timebase   string `json:"timebase"`
	FrameCount uint32 `json:"frameCount"`
	Size       int64  `json:"size"`
}

type Frame struct {
	Index  int   `json:"index"`
	PTS    int64 `json:"pts"`
	Size   int   `json:"size"`
	Offset int64 `json:"offset"`
}

type VideoDetails struct {
	Video
	Frames []Frame `json:"frames"`
	// Error is set if the frame index stops early because the container is
	// damaged.
	Error string `json:"error,omitempty"`
}

type APIOption func(*API)

func APILogger(logger *slog.Logger) APIOption {
	return func(a *API) {
		a.logger = logger
	}
}

// API serves read-only information about the IVF files in one directory.
type API struct {
	logger *slog.Logger
	root   *os.Root
}

// NewAPI opens dir. Requests can only reach files inside it.
func NewAPI(dir string, opts ...APIOption) (*API, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	a := &API{
		logger: slog.Default(),
		root:   root,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *API) Close() error {
	return a.root.Close()
}

func (a *API) RegisterRoutes(mux *httprouter.Router) {
	mux.GET("/api/v1/videos", a.ListVideos)
	mux.GET("/api/v1/videos/:name", a.GetVideo)
	mux.GET("/api/v1/videos/:name/frames/:index", a.GetFrame)
}

func (a *API) ListVideos(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := fs.ReadDir(a.root.FS(), ".")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	videos := []Video{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".ivf") {
			continue
		}
		v, err := a.stat(e.Name())
		if err != nil {
			a.logger.Warn("skipping unreadable video", "name", e.Name(), "error", err)
			continue
		}
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].Name < videos[j].Name
	})
	a.writeJSON(w, videos)
}

func (a *API) GetVideo(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	reader, size, err := a.open(name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer reader.Close()

	details := VideoDetails{
		Video:  video(name, reader.Header(), size),
		Frames: []Frame{},
	}
	offset := int64(ivf.FileHeaderSize)
	for {
		ok, err := reader.ReadFrame()
		if err != nil {
			details.Error = err.Error()
			break
		}
		if !ok {
			break
		}
		details.Frames = append(details.Frames, Frame{
			Index:  len(details.Frames),
			PTS:    reader.PTS(),
			Size:   len(reader.Frame()),
			Offset: offset,
		})
		offset += ivf.FrameHeaderSize + int64(len(reader.Frame()))
	}
	a.writeJSON(w, details)
}

// GetFrame responds with the raw payload of one frame. Its pts is carried in
// the X-Pts header.
func (a *API) GetFrame(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	index, err := strconv.Atoi(p.ByName("index"))
	if err != nil || index < 0 {
		http.Error(w, fmt.Sprintf("invalid frame index %q", p.ByName("index")), http.StatusBadRequest)
		return
	}
	reader, _, err := a.open(p.ByName("name"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer reader.Close()

	for i := 0; i <= index; i++ {
		ok, err := reader.ReadFrame()
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !ok {
			http.Error(w, fmt.Sprintf("frame %v not found, video has %v frames", index, i), http.StatusNotFound)
			return
		}
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(reader.Frame())))
	w.Header().Set("X-Pts", strconv.FormatInt(reader.PTS(), 10))
	w.Header().Set("X-Frame-Index", strconv.Itoa(index))
	if _, err := w.Write(reader.Frame()); err != nil {
		a.logger.Error("failed to write frame", "error", err)
	}
}

func (a *API) open(name string) (*ivf.Reader, int64, error) {
	if !strings.EqualFold(path.Ext(name), ".ivf") {
		return nil, 0, fmt.Errorf("%v: %w", name, fs.ErrNotExist)
	}
	f, err := a.root.Open(name)
	if err != nil {
		return nil, 0, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	reader, err := ivf.NewReader(bytestream.NewStreamSource(f), ivf.WithReaderLogger(a.logger))
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%v: %w", name, err)
	}
	return reader, stat.Size(), nil
}

func (a *API) stat(name string) (Video, error) {
	reader, size, err := a.open(name)
	if err != nil {
		return Video{}, err
	}
	defer reader.Close()
	return video(name, reader.Header(), size), nil
}

func video(name string, h ivf.FileHeader, size int64) Video {
	return Video{
		Name:       name,
		FourCC:     h.FourCC.String(),
		Width:      h.Width,
		Height:     h.Height,
		Timebase:   h.Timebase.String(),
		FrameCount: h.FrameCount,
		Size:       size,
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, ivf.ErrFormat), errors.Is(err, ivf.ErrFrameTooLarge), errors.Is(err, io.ErrUnexpectedEOF):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func (a *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}
