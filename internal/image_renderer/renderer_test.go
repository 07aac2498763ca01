package image_renderer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"tileglobe/internal/cache"
	"tileglobe/internal/projection"
	"tileglobe/internal/source_list"
	"tileglobe/internal/upstream"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, src *source_list.SourceInfo, addr projection.Address) (*upstream.Tile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[src.Name+"/"+addr.String()]++
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.Tile{Data: []byte(src.Name + "/" + addr.String()), ContentType: "image/png"}, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(data []byte) ([]byte, error) {
	return append([]byte("normalized:"), data...), nil
}

func newRenderer(t *testing.T, fetcher Fetcher, n Normalizer) *Renderer {
	t.Helper()
	log := zaptest.NewLogger(t)
	sources := source_list.New("", "", 18, log)
	if err := sources.Load(); err != nil {
		t.Fatal(err)
	}
	mem, err := cache.NewMemoryCache(64)
	if err != nil {
		t.Fatal(err)
	}
	return New(sources, fetcher, mem, n, log)
}

func TestRenderTileCaches(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newRenderer(t, fetcher, upperNormalizer{})
	addr := projection.Address{Zoom: 2, X: 1, Y: 3}

	first, err := r.RenderTile(context.Background(), "osm", addr)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || string(first.Data) != "normalized:osm/2/1/3" || first.Size != len(first.Data) {
		t.Errorf("first = %+v", first)
	}

	second, err := r.RenderTile(context.Background(), "osm", addr)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.ETag != first.ETag {
		t.Errorf("second = %+v", second)
	}
	if fetcher.total() != 1 {
		t.Errorf("fetched %d times", fetcher.total())
	}
}

func TestRenderTileErrors(t *testing.T) {
	ctx := context.Background()
	r := newRenderer(t, &fakeFetcher{}, nil)

	if _, err := r.RenderTile(ctx, "nope", projection.Root); !errors.Is(err, upstream.ErrUnknownSource) {
		t.Errorf("unknown source err = %v", err)
	}
	_, err := r.RenderTile(ctx, "osm", projection.Address{Zoom: 1, X: 2})
	if !errors.Is(err, projection.ErrInvalidAddress) || !IsClientError(err) {
		t.Errorf("invalid address err = %v", err)
	}

	failing := newRenderer(t, &fakeFetcher{err: upstream.ErrNotFound}, nil)
	if _, err := failing.RenderTile(ctx, "osm", projection.Root); !errors.Is(err, upstream.ErrNotFound) || IsClientError(err) {
		t.Errorf("upstream err = %v", err)
	}
}

func TestGenerateETag(t *testing.T) {
	a := cache.NewTileKey("osm", projection.Address{Zoom: 1, X: 1, Y: 0}, TileFormat)
	b := cache.NewTileKey("osm", projection.Address{Zoom: 1, X: 0, Y: 1}, TileFormat)
	c := cache.NewTileKey("debug", projection.Address{Zoom: 1, X: 1, Y: 0}, TileFormat)

	if GenerateETag(a) != GenerateETag(a) {
		t.Error("etag is not stable")
	}
	if GenerateETag(a) == GenerateETag(b) || GenerateETag(a) == GenerateETag(c) {
		t.Error("distinct tiles share an etag")
	}
}

func TestPassthrough(t *testing.T) {
	data := []byte{1, 2, 3}
	out, err := Passthrough{}.Normalize(data)
	if err != nil || string(out) != string(data) {
		t.Errorf("Normalize = %v, %v", out, err)
	}
}

func TestWarmup(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newRenderer(t, fetcher, nil)

	if n := r.Warmup(context.Background(), 2, 3); n != 1+4+16 {
		t.Errorf("warmed %d tiles", n)
	}
	for key := range fetcher.calls {
		if key[:4] != "osm/" {
			t.Errorf("debug source warmed: %s", key)
		}
	}

	// Everything is cached now.
	if n := r.Warmup(context.Background(), 2, 3); n != 21 || fetcher.total() != 21 {
		t.Errorf("second warmup rendered %d, fetched %d", n, fetcher.total())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := r.Warmup(ctx, 5, 1); n != 0 {
		t.Errorf("cancelled warmup rendered %d", n)
	}
}
