package provider

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tileglobe/internal/projection"
)

// HTTPProvider fetches tiles from the tile proxy's /img route.
type HTTPProvider struct {
	BaseURL   string
	Source    string
	UserAgent string
	Client    *http.Client
	logger    *zap.Logger
}

func NewHTTPProvider(baseURL, source string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Source:    source,
		UserAgent: "tileglobe",
		Client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

func (p *HTTPProvider) URL(addr projection.Address) string {
	return TileURL(p.BaseURL, p.Source, addr)
}

// TileURL formats the proxy URL for addr: {base}/img/{source}/{z}/{x}/{y}.png.
func TileURL(baseURL, source string, addr projection.Address) string {
	return fmt.Sprintf("%s/img/%s/%d/%d/%d.png", baseURL, source, addr.Zoom, addr.X, addr.Y)
}

func (p *HTTPProvider) Fetch(ctx context.Context, addr projection.Address) (image.Image, error) {
	url := p.URL(addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)

	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}

	p.logger.Debug("Fetched tile",
		zap.Stringer("tile", addr),
		zap.String("format", format),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return ToRGBA(img, TileSize), nil
}
