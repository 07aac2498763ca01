package image_renderer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/zap"

	"tileglobe/internal/cache"
	"tileglobe/internal/projection"
	"tileglobe/internal/source_list"
	"tileglobe/internal/upstream"
)

// TileFormat is the only format served by the proxy.
const TileFormat = "png"

// Fetcher is the origin side of the proxy.
type Fetcher interface {
	Fetch(ctx context.Context, src *source_list.SourceInfo, addr projection.Address) (*upstream.Tile, error)
}

type Renderer struct {
	sources    *source_list.Scanner
	fetcher    Fetcher
	tileCache  cache.Cache
	normalizer Normalizer
	logger     *zap.Logger
}

type TileResult struct {
	Data   []byte
	ETag   string
	Size   int
	Cached bool
}

func New(sources *source_list.Scanner, fetcher Fetcher, tileCache cache.Cache, normalizer Normalizer, logger *zap.Logger) *Renderer {
	if normalizer == nil {
		normalizer = Passthrough{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		sources:    sources,
		fetcher:    fetcher,
		tileCache:  tileCache,
		normalizer: normalizer,
		logger:     logger,
	}
}

// RenderTile returns the 256 pixel PNG for addr, from cache when possible.
func (r *Renderer) RenderTile(ctx context.Context, source string, addr projection.Address) (*TileResult, error) {
	src := r.sources.GetSourceByName(source)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", upstream.ErrUnknownSource, source)
	}
	if !addr.Valid() {
		return nil, fmt.Errorf("%w: %s", projection.ErrInvalidAddress, addr)
	}

	cacheKey := cache.NewTileKey(src.Name, addr, TileFormat)
	if cached, ok := r.tileCache.Get(cacheKey); ok {
		return &TileResult{
			Data:   cached,
			ETag:   GenerateETag(cacheKey),
			Size:   len(cached),
			Cached: true,
		}, nil
	}

	tile, err := r.fetcher.Fetch(ctx, src, addr)
	if err != nil {
		return nil, err
	}

	tileData, err := r.normalizer.Normalize(tile.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s/%s: %w", src.Name, addr, err)
	}

	r.tileCache.Set(cacheKey, tileData)
	r.logger.Debug("Rendered tile",
		zap.String("source", src.Name),
		zap.Stringer("tile", addr),
		zap.String("upstream_size", humanize.Bytes(uint64(len(tile.Data)))),
		zap.String("size", humanize.Bytes(uint64(len(tileData)))),
	)

	return &TileResult{
		Data: tileData,
		ETag: GenerateETag(cacheKey),
		Size: len(tileData),
	}, nil
}

// IsClientError reports whether err was caused by the request rather than the
// origin.
func IsClientError(err error) bool {
	return errors.Is(err, projection.ErrInvalidAddress)
}

// GenerateETag is stable for a cache key across restarts.
func GenerateETag(key cache.TileKey) string {
	hash, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		return key.Source + "-" + key.String()
	}
	return strconv.FormatUint(hash, 16)
}
