package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSelectJSON(t *testing.T) {
	out, err := run(t, "select", "--json", "--alt=100", "--width=800", "--height=600")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	var s selection
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !s.Satisfied || len(s.Tiles) != 16 || s.Stats.MaxDepth != 2 {
		t.Errorf("selection = %+v", s)
	}
}

func TestSelectTableFromEnv(t *testing.T) {
	t.Setenv("GLOBE_ALT", "100")
	t.Setenv("GLOBE_BACKFACE", "true")
	out, err := run(t, "select")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !strings.Contains(out, "2/1/1") || strings.Contains(out, "2/0/1") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestRejectsInvalidCamera(t *testing.T) {
	if _, err := run(t, "select", "--alt=0.5"); err == nil {
		t.Error("expected an error for a camera inside the globe")
	}
	if _, err := run(t, "select", "--width=0"); err == nil {
		t.Error("expected an error for an empty viewport")
	}
}

func TestBench(t *testing.T) {
	out, err := run(t, "bench", "--iterations=20", "--alt=2")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !strings.Contains(out, "20 selections") || !strings.Contains(out, "p99") {
		t.Errorf("output:\n%s", out)
	}
}

func TestTile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	out, err := run(t, "tile", "3/2/1", "--out", path, "--resolution=4")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !strings.Contains(out, "25 vertices, 32 triangles") || !strings.Contains(out, "parent  2/1/0") {
		t.Errorf("output:\n%s", out)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("image bounds %v", img.Bounds())
	}

	if _, err := run(t, "tile", "1/5/0"); err == nil {
		t.Error("expected an error for an invalid address")
	}
}
