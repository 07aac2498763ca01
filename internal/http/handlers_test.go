package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"tileglobe/internal/cache"
	"tileglobe/internal/config"
	"tileglobe/internal/image_renderer"
	"tileglobe/internal/source_list"
	"tileglobe/internal/upstream"
)

type testServer struct {
	*httptest.Server
	originHits *atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	hits := &atomic.Int32{}
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/0/0/0.png", "/1/0/0.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png:" + r.URL.Path))
		case "/1/1/1.png":
			http.Error(w, "broken", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(origin.Close)

	dir := t.TempDir()
	sourcesFile := filepath.Join(dir, "sources.json")
	sources := `[{"name": "osm", "url": "` + origin.URL + `/{z}/{x}/{y}.png", "max_zoom": 10}]`
	if err := os.WriteFile(sourcesFile, []byte(sources), 0644); err != nil {
		t.Fatal(err)
	}
	staticDir := filepath.Join(dir, "public")
	os.MkdirAll(staticDir, 0755)
	os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>globe</h1>"), 0644)

	cfg := &config.Config{MaxZoom: 18, StaticDir: staticDir}

	scanner := source_list.New(sourcesFile, filepath.Join(dir, "cache"), cfg.MaxZoom, log)
	if err := scanner.Load(); err != nil {
		t.Fatal(err)
	}
	tileCache, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	fetcher := upstream.New(upstream.Options{}, log)
	t.Cleanup(fetcher.Close)
	renderer := image_renderer.New(scanner, fetcher, tileCache, image_renderer.Passthrough{}, log)

	srv := httptest.NewServer(New(cfg, log, scanner, renderer).Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, originHits: hits}
}

func (s *testServer) do(t *testing.T, method, path string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("missing request id")
	}
}

func TestTileCaching(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/img/osm/1/0/0.png", nil)
	if resp.StatusCode != http.StatusOK || body != "png:/1/0/0.png" {
		t.Fatalf("first = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Tile-Cache") != "miss" || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("headers = %v", resp.Header)
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "immutable") {
		t.Errorf("cache control = %q", resp.Header.Get("Cache-Control"))
	}
	etag := resp.Header.Get("ETag")

	resp, body = s.do(t, http.MethodGet, "/img/osm/1/0/0.png", nil)
	if resp.Header.Get("X-Tile-Cache") != "hit" || resp.Header.Get("ETag") != etag || body != "png:/1/0/0.png" {
		t.Errorf("second = %v %q", resp.Header, body)
	}

	resp, body = s.do(t, http.MethodHead, "/img/osm/1/0/0.png", nil)
	if resp.StatusCode != http.StatusOK || body != "" || resp.Header.Get("Content-Length") != "14" {
		t.Errorf("head = %d %q %v", resp.StatusCode, body, resp.Header)
	}

	resp, _ = s.do(t, http.MethodGet, "/img/osm/1/0/0.png", map[string]string{"If-None-Match": etag})
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional = %d", resp.StatusCode)
	}

	if hits := s.originHits.Load(); hits != 1 {
		t.Errorf("origin hit %d times", hits)
	}
}

func TestTileErrors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		path string
		want int
	}{
		{"/img/osm/1/2/0.png", http.StatusBadRequest},
		{"/img/osm/31/0/0.png", http.StatusBadRequest},
		{"/img/osm/99999999999/0/0.png", http.StatusBadRequest},
		{"/img/nope/0/0/0.png", http.StatusNotFound},
		{"/img/osm/1/0/1.png", http.StatusNotFound},
		{"/img/osm/11/0/0.png", http.StatusNotFound},
		{"/img/osm/1/1/1.png", http.StatusBadGateway},
		{"/img/osm/-1/0/0.png", http.StatusNotFound},
	}
	for _, c := range cases {
		if resp, _ := s.do(t, http.MethodGet, c.path, nil); resp.StatusCode != c.want {
			t.Errorf("%s = %d, want %d", c.path, resp.StatusCode, c.want)
		}
	}
}

func TestDebugSourceTile(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/img/debug/3/2/1.png", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, "\x89PNG") {
		t.Errorf("debug tile = %d", resp.StatusCode)
	}
}

func TestSources(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/img/osm/0/0/0.png", nil)

	resp, body := s.do(t, http.MethodGet, "/api/sources?refresh=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sources []sourceResponse
	if err := json.Unmarshal([]byte(body), &sources); err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0].Name != "osm" || sources[1].Name != "debug" {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].CachedTiles != 1 || sources[0].CachedSize == "" {
		t.Errorf("osm = %+v", sources[0])
	}
	if sources[0].TileURL != "/img/osm/{z}/{x}/{y}.png" {
		t.Errorf("tile url = %s", sources[0].TileURL)
	}
}

func TestFrame(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/frame?alt=100&w=800&h=600", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %s", resp.StatusCode, body)
	}
	var frame frameResponse
	if err := json.Unmarshal([]byte(body), &frame); err != nil {
		t.Fatal(err)
	}
	if !frame.Satisfied || len(frame.Tiles) != 16 || frame.Stats.MaxDepth != 2 {
		t.Fatalf("frame = %+v", frame)
	}
	if frame.Tiles[0].URL != "/img/osm/2/0/0.png" {
		t.Errorf("first tile = %+v", frame.Tiles[0])
	}

	resp, body = s.do(t, http.MethodGet, "/api/frame?alt=1.0001&lat=52&lon=13", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %s", resp.StatusCode, body)
	}
	frame = frameResponse{}
	json.Unmarshal([]byte(body), &frame)
	if frame.Stats.MaxDepth > 10 {
		t.Errorf("selection exceeded the source max zoom: %d", frame.Stats.MaxDepth)
	}
}

func TestFrameValidation(t *testing.T) {
	s := newTestServer(t)
	cases := map[string]int{
		"/api/frame?alt=0.5":       http.StatusBadRequest,
		"/api/frame?lat=91":        http.StatusBadRequest,
		"/api/frame?w=0":           http.StatusBadRequest,
		"/api/frame?fov=abc":       http.StatusBadRequest,
		"/api/frame?source=nope":   http.StatusNotFound,
		"/api/frame?source=debug":  http.StatusOK,
		"/api/frame?backface=true": http.StatusOK,
	}
	for path, want := range cases {
		if resp, _ := s.do(t, http.MethodGet, path, nil); resp.StatusCode != want {
			t.Errorf("%s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestCORSAndStatic(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodOptions, "/img/osm/0/0/0.png", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", resp.StatusCode, resp.Header)
	}

	resp, _ = s.do(t, http.MethodGet, "/healthz", map[string]string{"Origin": "https://evil.example"})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}

	resp, body := s.do(t, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK || body != "<h1>globe</h1>" {
		t.Errorf("static = %d %q", resp.StatusCode, body)
	}
}
