package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tileglobe/internal/image_renderer"
	"tileglobe/internal/projection"
	"tileglobe/internal/provider"
	"tileglobe/internal/source_list"
	"tileglobe/internal/upstream"
)

func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	source := vars["source"]

	addr, err := parseAddress(vars["z"], vars["x"], vars["y"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.renderer.RenderTile(r.Context(), source, addr)
	if err != nil {
		status := tileErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to render tile",
				zap.String("source", source),
				zap.Stringer("tile", addr),
				zap.Error(err))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	etag := `"` + result.ETag + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if result.Cached {
		w.Header().Set("X-Tile-Cache", "hit")
	} else {
		w.Header().Set("X-Tile-Cache", "miss")
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(result.Size))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.Data)
}

func parseAddress(zs, xs, ys string) (projection.Address, error) {
	z, err := strconv.ParseUint(zs, 10, 32)
	if err != nil {
		return projection.Address{}, errors.New("Invalid zoom level")
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return projection.Address{}, errors.New("Invalid x coordinate")
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return projection.Address{}, errors.New("Invalid y coordinate")
	}
	return projection.NewAddress(uint32(z), uint32(x), uint32(y))
}

func tileErrorStatus(err error) int {
	switch {
	case image_renderer.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrUnknownSource), errors.Is(err, upstream.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

type sourceResponse struct {
	source_list.SourceInfo
	CachedSize string `json:"cached_size"`
	TileURL    string `json:"tile_url"`
}

func (h *Handlers) HandleSources(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if err := h.sources.Scan(); err != nil {
			h.logger.Warn("Failed to rescan cache", zap.Error(err))
		}
	}

	sources := h.sources.GetSources()
	resp := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		resp = append(resp, sourceResponse{
			SourceInfo: src,
			CachedSize: humanize.Bytes(uint64(src.CachedBytes)),
			TileURL:    "/img/" + src.Name + "/{z}/{x}/{y}.png",
		})
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// tilePath is the proxy path of addr, relative to the server root.
func tilePath(source string, addr projection.Address) string {
	return provider.TileURL("", source, addr)
}
