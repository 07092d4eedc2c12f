package frames_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"alphareel/internal/capability"
	"alphareel/internal/frames"
	"alphareel/internal/services"
	"alphareel/internal/testsupport"
)

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	testsupport.WritePNG(t, dir, "b.png", 0)
	testsupport.WritePNG(t, dir, "A.PNG", 1)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	loaded, err := frames.Load([]string{dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var got []string
	for _, frame := range loaded {
		got = append(got, frame.Name)
		if frame.MIMEType != "" {
			t.Fatalf("expected undeclared MIME type, got %q", frame.MIMEType)
		}
		if frame.DetectedMIMEType() != "image/png" {
			t.Fatalf("expected sniffed PNG, got %q", frame.DetectedMIMEType())
		}
	}
	if diff := cmp.Diff([]string{"A.PNG", "b.png"}, got); diff != "" {
		t.Fatalf("frame names mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitFilesKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	second := testsupport.WritePNG(t, dir, "2.png", 0)
	first := testsupport.WritePNG(t, dir, "1.png", 1)
	other := filepath.Join(dir, "cover.jpg")
	testsupport.WriteFile(t, other, 4)

	loaded, err := frames.Load([]string{second, " ", first, other})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 3 || loaded[0].Name != "2.png" || loaded[2].Name != "cover.jpg" {
		t.Fatalf("unexpected frames: %+v", loaded)
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, err := frames.Load([]string{filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadPrecheckLimits(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		testsupport.WritePNG(t, dir, name, 0)
	}

	tests := []struct {
		name    string
		limits  capability.Limits
		wantErr bool
	}{
		{name: "fits", limits: capability.Limits{Tier: "full", MaxFrameCount: 3, MaxTotalSizeBytes: 1 << 20}},
		{name: "too many", limits: capability.Limits{Tier: "full", MaxFrameCount: 2, MaxTotalSizeBytes: 1 << 20}, wantErr: true},
		{name: "too large", limits: capability.Limits{Tier: "full", MaxFrameCount: 3, MaxTotalSizeBytes: 10}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := frames.Load([]string{dir}, frames.WithLimits(tt.limits))
			if tt.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil || len(loaded) != 3 {
				t.Fatalf("expected 3 frames, got %d, %v", len(loaded), err)
			}
		})
	}
}

func TestIsPNGName(t *testing.T) {
	cases := map[string]bool{
		"frame.png":  true,
		"FRAME.PNG":  true,
		"frame.apng": false,
		"png":        false,
	}
	for name, want := range cases {
		if got := frames.IsPNGName(name); got != want {
			t.Errorf("IsPNGName(%q) = %v, want %v", name, got, want)
		}
	}
}
