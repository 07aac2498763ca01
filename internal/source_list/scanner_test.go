package source_list

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultSources(t *testing.T) {
	s := New("", "", 18, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	sources := s.GetSources()
	if len(sources) != 2 {
		t.Fatalf("sources = %+v", sources)
	}
	osm := s.GetSourceByName(DefaultSourceName)
	if osm == nil || osm.URL != DefaultSourceURL || osm.Debug {
		t.Errorf("osm = %+v", osm)
	}
	if dbg := s.GetSourceByName(DebugSourceName); dbg == nil || !dbg.Debug {
		t.Errorf("debug = %+v", dbg)
	}
	if s.GetSourceByName("nope") != nil {
		t.Error("unknown source found")
	}
}

func TestLoadSourcesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sources.json")
	writeFile(t, file, `{"sources": [
		{"name": "carto", "url": "https://{s}.basemaps.example/{z}/{x}/{y}.png", "subdomains": ["a", "b"], "max_zoom": 12},
		{"name": "bad name", "url": "https://example.com/{z}/{x}/{y}.png"},
		{"name": "broken", "url": "https://example.com/tiles.png"},
		{"name": "carto", "url": "https://dup.example/{z}/{x}/{y}.png"},
		{"name": "debug", "debug": true}
	]}`)

	s := New(file, "", 18, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	sources := s.GetSources()
	if len(sources) != 2 {
		t.Fatalf("sources = %+v", sources)
	}
	carto := s.GetSourceByName("carto")
	if carto == nil || carto.MaxZoom != 12 || len(carto.Subdomains) != 2 {
		t.Errorf("carto = %+v", carto)
	}
	if carto != nil && carto.URL != "https://{s}.basemaps.example/{z}/{x}/{y}.png" {
		t.Errorf("duplicate replaced the first source: %s", carto.URL)
	}
}

func TestLoadSourcesArray(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sources.json")
	writeFile(t, file, `[{"name": "topo", "url": "https://topo.example/{z}/{y}/{x}.jpg", "max_zoom": 40}]`)

	s := New(file, "", 17, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	topo := s.GetSourceByName("topo")
	if topo == nil || topo.MaxZoom != 17 {
		t.Errorf("topo = %+v, max zoom should be capped", topo)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"not json":   `{"sources": [`,
		"not a list": `{"sources": {"name": "x"}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(dir, name+".json")
			writeFile(t, file, content)
			if err := New(file, "", 18, zaptest.NewLogger(t)).Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if err := New(filepath.Join(dir, "missing.json"), "", 18, zaptest.NewLogger(t)).Load(); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestScanCountsCachedTiles(t *testing.T) {
	cacheDir := t.TempDir()
	writeFile(t, filepath.Join(cacheDir, "osm", "1", "0", "0.png"), "abcd")
	writeFile(t, filepath.Join(cacheDir, "osm", "1", "1", "0.png"), "ef")
	writeFile(t, filepath.Join(cacheDir, "osm", "1", "1", "1.png.tmp"), "partial")

	s := New("", cacheDir, 18, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	osm := s.GetSourceByName("osm")
	if osm.CachedTiles != 2 || osm.CachedBytes != 6 {
		t.Errorf("osm cached = %d tiles, %d bytes", osm.CachedTiles, osm.CachedBytes)
	}
	if dbg := s.GetSourceByName("debug"); dbg.CachedTiles != 0 {
		t.Errorf("debug cached = %d", dbg.CachedTiles)
	}
}

type fixedCounter map[string]int

func (c fixedCounter) Count(source string) (int, int64) {
	return c[source], int64(c[source] * 100)
}

func TestScanUsesCounter(t *testing.T) {
	s := New("", t.TempDir(), 18, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	s.UseCounter(fixedCounter{"osm": 3})
	if err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	if osm := s.GetSourceByName("osm"); osm.CachedTiles != 3 || osm.CachedBytes != 300 {
		t.Errorf("osm = %+v", osm)
	}
}
