// Package upstream fetches tile images from the origin servers named by the
// source registry.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/singleflight"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"tileglobe/internal/projection"
	"tileglobe/internal/provider"
	"tileglobe/internal/source_list"
)

var (
	ErrUnknownSource = errors.New("unknown tile source")
	ErrNotFound      = errors.New("tile not found")
	ErrUpstream      = errors.New("upstream request failed")
)

// maxTileBytes guards against misbehaving origins.
const maxTileBytes = 16 << 20

type Tile struct {
	Data        []byte
	ContentType string
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// NegativeTTL is how long a failed tile is answered from memory. Zero
	// disables the negative cache.
	NegativeTTL time.Duration
	Client      *http.Client
}

type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger

	group    singleflight.Group
	failures *ttlcache.Cache[string, error]
	debug    *provider.DebugProvider
	rotation atomic.Uint64
	requests atomic.Uint64
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &Fetcher{
		client:    client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    logger,
		debug:     provider.NewDebugProvider(0),
	}
	if opts.NegativeTTL > 0 {
		f.failures = ttlcache.New[string, error](
			ttlcache.WithTTL[string, error](opts.NegativeTTL),
			ttlcache.WithDisableTouchOnHit[string, error](),
		)
		go f.failures.Start()
	}
	return f
}

// Close stops the negative cache janitor.
func (f *Fetcher) Close() {
	if f.failures != nil {
		f.failures.Stop()
	}
}

// Requests is the number of requests sent to origin servers.
func (f *Fetcher) Requests() uint64 {
	return f.requests.Load()
}

// URL expands the source template for addr. {s} rotates through the
// configured subdomains.
func (f *Fetcher) URL(src *source_list.SourceInfo, addr projection.Address) string {
	sub := ""
	if n := len(src.Subdomains); n > 0 {
		sub = src.Subdomains[f.rotation.Add(1)%uint64(n)]
	}
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(addr.Zoom), 10),
		"{x}", strconv.FormatUint(uint64(addr.X), 10),
		"{y}", strconv.FormatUint(uint64(addr.Y), 10),
		"{s}", sub,
	).Replace(src.URL)
}

// Fetch returns the origin bytes for one tile. Concurrent requests for the
// same tile share a single origin request.
func (f *Fetcher) Fetch(ctx context.Context, src *source_list.SourceInfo, addr projection.Address) (*Tile, error) {
	if src == nil {
		return nil, ErrUnknownSource
	}
	if !addr.Valid() || int(addr.Zoom) > src.MaxZoom {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, src.Name, addr)
	}
	if src.Debug {
		data, err := f.debug.Encode(ctx, addr)
		if err != nil {
			return nil, err
		}
		return &Tile{Data: data, ContentType: "image/png"}, nil
	}

	key := src.Name + "/" + addr.String()
	if f.failures != nil {
		if item := f.failures.Get(key); item != nil {
			return nil, item.Value()
		}
	}

	v, err := f.group.Do(key, func() (interface{}, error) {
		tile, err := f.get(ctx, src, addr)
		if err != nil && f.failures != nil && ctx.Err() == nil {
			f.failures.Set(key, err, ttlcache.DefaultTTL)
		}
		return tile, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tile), nil
}

func (f *Fetcher) get(ctx context.Context, src *source_list.SourceInfo, addr projection.Address) (*Tile, error) {
	// The shared request must not die with the first caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	url := f.URL(src, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	f.requests.Add(1)
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("Upstream request failed", zap.String("source", src.Name), zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, src.Name, addr)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		f.logger.Warn("Upstream returned error status",
			zap.String("source", src.Name),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}
	if len(data) > maxTileBytes {
		return nil, fmt.Errorf("%w: tile larger than %d bytes", ErrUpstream, maxTileBytes)
	}

	f.logger.Debug("Fetched upstream tile",
		zap.String("source", src.Name),
		zap.Uint32("z", addr.Zoom),
		zap.Uint32("x", addr.X),
		zap.Uint32("y", addr.Y),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))

	return &Tile{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
