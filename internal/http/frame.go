package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"tileglobe/internal/projection"
	"tileglobe/internal/provider"
	"tileglobe/internal/screen"
	"tileglobe/internal/selector"
	"tileglobe/internal/tile_cache"
)

const (
	frameTimeout  = 10 * time.Second
	maxViewport   = 8192
	frameMaxCalls = 64
)

type frameTile struct {
	Z   uint32 `json:"z"`
	X   uint32 `json:"x"`
	Y   uint32 `json:"y"`
	URL string `json:"url"`
}

type frameResponse struct {
	Source    string         `json:"source"`
	Camera    screen.Camera  `json:"camera"`
	Tiles     []frameTile    `json:"tiles"`
	Fallbacks []frameTile    `json:"fallbacks"`
	Satisfied bool           `json:"satisfied"`
	Frames    int            `json:"frames"`
	Records   int            `json:"records"`
	Stats     selector.Stats `json:"stats"`
}

// HandleFrame answers "which tiles would a client draw from this camera" by
// running the selector with textures that are ready immediately.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	source := q.Get("source")
	if source == "" {
		source = "osm"
	}
	src := h.sources.GetSourceByName(source)
	if src == nil {
		http.Error(w, "Unknown source", http.StatusNotFound)
		return
	}

	cam, width, height, err := parseCamera(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := selector.DefaultOptions()
	opts.MaxZoom = uint32(max(0, min(h.config.MaxZoom, src.MaxZoom, projection.MaxSupportedZoom)))
	opts.BackfaceCull = q.Get("backface") == "1" || q.Get("backface") == "true"

	cacheOpts := tile_cache.DefaultOptions()
	cacheOpts.MeshResolution = 1
	cacheOpts.Workers = 8
	cacheOpts.Logger = h.logger
	tiles := tile_cache.New(provider.Placeholder{}, cacheOpts)
	defer tiles.Close()

	viewport := screen.NewViewport(0, 0, float64(width), float64(height))
	eye := cam.Eye()
	frame := selector.Frame{
		Matrix:   cam.Matrix(viewport, opts.Ellipsoid),
		Viewport: viewport,
		Eye:      &eye,
	}

	ctx, cancel := context.WithTimeout(r.Context(), frameTimeout)
	defer cancel()
	res, frames, err := selector.Run(ctx, selector.New(tiles, opts), tiles, frame, frameMaxCalls)
	if err != nil {
		h.logger.Warn("Frame selection interrupted", zap.Error(err))
		http.Error(w, "Selection timed out", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, frameResponse{
		Source:    src.Name,
		Camera:    cam,
		Tiles:     toFrameTiles(src.Name, res.Tiles),
		Fallbacks: toFrameTiles(src.Name, res.Fallbacks),
		Satisfied: res.Satisfied,
		Frames:    frames,
		Records:   tiles.Len(),
		Stats:     res.Stats,
	})
}

func toFrameTiles(source string, records []*tile_cache.Record) []frameTile {
	out := make([]frameTile, 0, len(records))
	for _, rec := range records {
		out = append(out, frameTile{
			Z:   rec.Address.Zoom,
			X:   rec.Address.X,
			Y:   rec.Address.Y,
			URL: tilePath(source, rec.Address),
		})
	}
	return out
}

// parseCamera reads lon, lat, alt, tilt, fov (degrees), w and h.
func parseCamera(q url.Values) (screen.Camera, int, int, error) {
	var cam screen.Camera
	var err error
	fov := 45.0
	width, height := 1280, 720

	floats := []struct {
		key string
		dst *float64
		ok  func(float64) bool
	}{
		{"lon", &cam.Lon, func(v float64) bool { return v >= -180 && v <= 180 }},
		{"lat", &cam.Lat, func(v float64) bool { return v >= -90 && v <= 90 }},
		{"alt", &cam.Altitude, func(v float64) bool { return v > 1 }},
		{"tilt", &cam.Tilt, func(v float64) bool { return v >= 0 && v < 90 }},
		{"fov", &fov, func(v float64) bool { return v > 0 && v < 180 }},
	}
	cam.Altitude = 3
	for _, f := range floats {
		s := q.Get(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !f.ok(v) {
			return cam, 0, 0, fmt.Errorf("Invalid %s", f.key)
		}
		*f.dst = v
	}
	cam.FOV = mgl64.DegToRad(fov)

	if width, err = intParam(q, "w", width); err != nil {
		return cam, 0, 0, err
	}
	if height, err = intParam(q, "h", height); err != nil {
		return cam, 0, 0, err
	}
	return cam, width, height, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > maxViewport {
		return 0, fmt.Errorf("Invalid %s", key)
	}
	return v, nil
}
