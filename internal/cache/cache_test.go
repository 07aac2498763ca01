package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"tileglobe/internal/projection"
)

func testKey(source string, z, x, y uint32) TileKey {
	return NewTileKey(source, projection.Address{Zoom: z, X: x, Y: y}, "png")
}

func newCaches(t *testing.T) map[string]Cache {
	t.Helper()
	log := zaptest.NewLogger(t)
	caches := make(map[string]Cache)
	for _, typ := range []string{"memory", "file", "bolt"} {
		c, err := NewCache(typ, t.TempDir(), 16, log)
		if err != nil {
			t.Fatalf("NewCache(%q): %v", typ, err)
		}
		if closer, ok := c.(interface{ Close() error }); ok {
			t.Cleanup(func() { closer.Close() })
		}
		caches[typ] = c
	}
	return caches
}

func TestCacheRoundTrip(t *testing.T) {
	for name, c := range newCaches(t) {
		t.Run(name, func(t *testing.T) {
			key := testKey("osm", 3, 4, 5)
			if c.Has(key) {
				t.Fatal("empty cache reports a tile")
			}
			if _, ok := c.Get(key); ok {
				t.Fatal("empty cache returned a tile")
			}

			want := []byte("tile bytes")
			c.Set(key, want)
			if !c.Has(key) {
				t.Fatal("stored tile missing")
			}
			got, ok := c.Get(key)
			if !ok || !bytes.Equal(got, want) {
				t.Fatalf("Get = %q, %v", got, ok)
			}

			other := testKey("debug", 3, 4, 5)
			if c.Has(other) {
				t.Error("sources must not share tiles")
			}

			c.Clear()
			if c.Has(key) {
				t.Error("tile survived Clear")
			}
		})
	}
}

func TestFileCacheLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	c.Set(testKey("osm", 2, 1, 3), []byte("x"))

	path := filepath.Join(dir, "osm", "2", "1", "3.png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected tile at %s: %v", path, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	c, err := NewMemoryCache(2)
	if err != nil {
		t.Fatal(err)
	}
	a, b, d := testKey("s", 0, 0, 0), testKey("s", 1, 0, 0), testKey("s", 1, 1, 0)
	c.Set(a, []byte("a"))
	c.Set(b, []byte("b"))
	c.Get(a)
	c.Set(d, []byte("d"))

	if !c.Has(a) || c.Has(b) || !c.Has(d) {
		t.Errorf("has a=%v b=%v d=%v, want b evicted", c.Has(a), c.Has(b), c.Has(d))
	}
	if c.Len() != 2 {
		t.Errorf("len = %d", c.Len())
	}
}

func TestMemoryCacheRejectsZeroSize(t *testing.T) {
	if _, err := NewMemoryCache(0); err == nil {
		t.Error("expected an error for a zero sized cache")
	}
}

func TestBoltCacheCount(t *testing.T) {
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "nested", BoltFileName), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Set(testKey("osm", 1, 0, 0), []byte("abc"))
	c.Set(testKey("osm", 1, 1, 0), []byte("de"))
	c.Set(testKey("debug", 0, 0, 0), []byte("f"))

	tiles, size := c.Count("osm")
	if tiles != 2 || size != 5 {
		t.Errorf("Count(osm) = %d, %d", tiles, size)
	}
	if tiles, _ := c.Count("missing"); tiles != 0 {
		t.Errorf("Count(missing) = %d", tiles)
	}
}

func TestNoopCache(t *testing.T) {
	var c Cache = NewNoopCache()
	key := testKey("osm", 0, 0, 0)
	c.Set(key, []byte("x"))
	if c.Has(key) {
		t.Error("noop cache stored a tile")
	}
}

func TestNewCacheUnknownType(t *testing.T) {
	if _, err := NewCache("redis", t.TempDir(), 1, zaptest.NewLogger(t)); err == nil {
		t.Error("expected an error for an unknown cache type")
	}
}
