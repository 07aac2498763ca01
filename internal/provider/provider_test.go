package provider

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"tileglobe/internal/projection"
)

func TestTileURL(t *testing.T) {
	got := TileURL("http://localhost:8080", "osm", projection.Address{Zoom: 4, X: 3, Y: 9})
	if want := "http://localhost:8080/img/osm/4/3/9.png"; got != want {
		t.Errorf("TileURL = %q, want %q", got, want)
	}
}

func TestHTTPProviderFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/img/osm/1/1/1.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, image.NewNRGBA(image.Rect(0, 0, 512, 512)))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", "osm", 5*time.Second, zaptest.NewLogger(t))
	img, err := p.Fetch(context.Background(), projection.Address{Zoom: 2, X: 1, Y: 3})
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/img/osm/2/1/3.png" {
		t.Errorf("requested %q", gotPath)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds() != image.Rect(0, 0, TileSize, TileSize) {
		t.Errorf("image = %T %v, want 256x256 RGBA", img, img.Bounds())
	}

	if _, err := p.Fetch(context.Background(), projection.Address{Zoom: 1, X: 1, Y: 1}); err == nil {
		t.Error("404 should be an error")
	}
}

func TestHTTPProviderCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "osm", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Fetch(ctx, projection.Root); err == nil {
		t.Error("cancelled fetch should fail")
	}
}

func TestDebugProvider(t *testing.T) {
	p := NewDebugProvider(0)
	addr := projection.Address{Zoom: 3, X: 2, Y: 5}

	img, err := p.Fetch(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != TileSize || img.Bounds().Dy() != TileSize {
		t.Errorf("bounds = %v", img.Bounds())
	}

	data, err := p.Encode(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width != TileSize {
		t.Errorf("encoded tile config = %+v, %v", cfg, err)
	}

	p.FailOn(addr)
	if _, err := p.Fetch(context.Background(), addr); !errors.Is(err, ErrDebugFailure) {
		t.Errorf("err = %v, want ErrDebugFailure", err)
	}
}

func TestDebugProviderLatencyRespectsContext(t *testing.T) {
	p := NewDebugProvider(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Fetch(ctx, projection.Root); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	if ToRGBA(src, TileSize) != src {
		t.Error("matching RGBA image should be returned as is")
	}
	offset := image.NewNRGBA(image.Rect(10, 10, 10+TileSize, 10+TileSize))
	if got := ToRGBA(offset, TileSize); got.Bounds().Min != (image.Point{}) {
		t.Errorf("origin = %v, want zero", got.Bounds().Min)
	}
	small := image.NewGray(image.Rect(0, 0, 64, 64))
	if got := ToRGBA(small, TileSize); got.Bounds().Dx() != TileSize {
		t.Errorf("scaled width = %d", got.Bounds().Dx())
	}
}

func TestPlaceholder(t *testing.T) {
	img, err := Placeholder{}.Fetch(context.Background(), projection.Root)
	if err != nil || img.Bounds().Dx() != 1 {
		t.Fatalf("Fetch = %v, %v", img, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Placeholder{}).Fetch(ctx, projection.Root); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
