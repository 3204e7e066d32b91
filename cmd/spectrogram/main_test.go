package main

import (
	"context"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/CrySense/pkg/crysense/audio"
)

func writeCry(t *testing.T, dir, name string) string {
	t.Helper()
	y := make([]float64, 16000)
	for i := range y {
		y[i] = 0.5 * math.Sin(2*math.Pi*450*float64(i)/16000)
	}
	path := filepath.Join(dir, name)
	if err := audio.WriteWAV(path, y, 16000); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	return path
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeCry(t, dir, "a.wav")
	writeCry(t, dir, "b.wav")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Errorf("Expected 2 recordings, got %v", paths)
	}
	if _, err := collect(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for a missing path")
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	in := writeCry(t, dir, "cry.wav")
	out := filepath.Join(dir, "cry.png")
	o := options{width: 256, height: 64}

	loader := audio.NewLoader(audio.DefaultSampleRate, dir)
	if err := renderFile(context.Background(), loader, in, out, o); err != nil {
		t.Fatalf("renderFile failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Expected PNG to be written: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 64 {
		t.Errorf("Expected 256x64, got %dx%d", cfg.Width, cfg.Height)
	}

	if err := renderFile(context.Background(), loader, filepath.Join(dir, "missing.wav"), out, o); err == nil {
		t.Error("Expected error for a missing recording")
	}
}
