package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"alphareel/internal/engine"
)

func TestNewCLIWithOptions(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffmpeg"), WithScratchRoot("/var/tmp/alphareel"), WithBinary("  "))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
	if cli.scratchRoot != "/var/tmp/alphareel" {
		t.Fatalf("expected scratch root override, got %q", cli.scratchRoot)
	}
}

func TestLoadCreatesLockedWorkspace(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)

	workspace := cli.Workspace()
	if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
		t.Fatalf("expected workspace directory %q: %v", workspace, err)
	}
	if !strings.HasPrefix(cli.Version(), "ffmpeg version") {
		t.Fatalf("unexpected version banner %q", cli.Version())
	}

	other := flock.New(workspace + LockSuffix)
	locked, err := other.TryLock()
	if err != nil {
		t.Fatalf("TryLock returned error: %v", err)
	}
	if locked {
		_ = other.Unlock()
		t.Fatal("expected workspace lock to be held while loaded")
	}

	if err := cli.Load(context.Background()); err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if cli.Workspace() != workspace {
		t.Fatal("expected repeated Load to keep the workspace")
	}
}

func TestLoadFailsOnMissingBinary(t *testing.T) {
	cli := NewCLI(WithBinary(filepath.Join(t.TempDir(), "missing-ffmpeg")), WithScratchRoot(t.TempDir()))
	if err := cli.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail for a missing binary")
	}
	if cli.Loaded() {
		t.Fatal("expected runtime to stay unloaded")
	}
}

func TestLoadRejectsUnexpectedBanner(t *testing.T) {
	setHelperCommand(t, "wrongbanner")
	cli := NewCLI(WithBinary(os.Args[0]), WithScratchRoot(t.TempDir()))
	if err := cli.Load(context.Background()); err == nil {
		t.Fatal("expected Load to reject a non-ffmpeg banner")
	}
}

func TestWorkspaceFileOperations(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)

	if err := cli.WriteFile("frame_00000.png", []byte("png")); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	data, err := cli.ReadFile("frame_00000.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	names, err := cli.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if !slices.Equal(names, []string{"frame_00000.png"}) {
		t.Fatalf("unexpected listing %v", names)
	}
	if err := cli.Unlink("frame_00000.png"); err != nil {
		t.Fatalf("Unlink returned error: %v", err)
	}
	if _, err := cli.ReadFile("frame_00000.png"); !errors.Is(err, engine.ErrNotExist) {
		t.Fatalf("expected ErrNotExist after unlink, got %v", err)
	}
	if err := cli.Unlink("frame_00000.png"); !errors.Is(err, engine.ErrNotExist) {
		t.Fatalf("expected ErrNotExist for second unlink, got %v", err)
	}
}

func TestFileNamesConfinedToWorkspace(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)

	for _, name := range []string{"../escape.png", "/etc/passwd", ""} {
		if err := cli.WriteFile(name, []byte("x")); err == nil {
			t.Fatalf("expected WriteFile(%q) to be rejected", name)
		}
	}
}

func TestOperationsRequireLoad(t *testing.T) {
	cli := NewCLI()
	if err := cli.WriteFile("a.png", nil); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := cli.Invoke(context.Background(), []string{"-i", "x"}, nil); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if _, err := cli.List(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestInvokeReportsProgressAgainstStagedFrames(t *testing.T) {
	var captured []string
	setHelperCommandCapture(t, "success", &captured)
	cli := loadedCLI(t)
	for i := range 4 {
		if err := cli.WriteFile(fmt.Sprintf("frame_%05d.png", i), []byte("png")); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}

	var ratios []float64
	args := []string{"-framerate", "24", "-i", "frame_%05d.png", "-c:v", "libvpx-vp9", "output.webm"}
	if err := cli.Invoke(context.Background(), args, func(r float64) { ratios = append(ratios, r) }); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	want := []float64{0.5, 1, 1}
	if !slices.Equal(ratios, want) {
		t.Fatalf("unexpected progress ratios: got %v want %v", ratios, want)
	}
	if !slices.Equal(captured[:len(baseArgs)], baseArgs) {
		t.Fatalf("expected base arguments first, got %v", captured)
	}
	if !slices.Equal(captured[len(baseArgs):], args) {
		t.Fatalf("expected caller arguments after base, got %v", captured)
	}
	if _, err := cli.ReadFile("output.webm"); err != nil {
		t.Fatalf("expected helper to write output into the workspace: %v", err)
	}
}

func TestInvokeFailureKeepsRuntimeLoaded(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)
	setHelperCommand(t, "failure")

	err := cli.Invoke(context.Background(), []string{"-i", "frame_%05d.png", "out.webm"}, nil)
	if err == nil {
		t.Fatal("expected invoke failure")
	}
	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
	if !cli.Loaded() {
		t.Fatal("expected an ordinary failure to keep the runtime loaded")
	}
}

func TestInvokeCrashUnloadsRuntime(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)
	setHelperCommand(t, "crash")

	if err := cli.Invoke(context.Background(), []string{"-i", "frame_%05d.png", "out.webm"}, nil); err == nil {
		t.Fatal("expected invoke failure")
	}
	if cli.Loaded() {
		t.Fatal("expected a killed process to unload the runtime")
	}
}

func TestInvokeDetectsVanishedWorkspace(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)
	if err := os.RemoveAll(cli.Workspace()); err != nil {
		t.Fatalf("remove workspace: %v", err)
	}
	if err := cli.Invoke(context.Background(), []string{"out.webm"}, nil); err == nil {
		t.Fatal("expected invoke to fail without a workspace")
	}
	if cli.Loaded() {
		t.Fatal("expected runtime to be marked unloaded")
	}
}

func TestFileOperationsDetectVanishedWorkspace(t *testing.T) {
	tests := []struct {
		name string
		op   func(*CLI) error
	}{
		{"write", func(c *CLI) error { return c.WriteFile("frame_00000.png", []byte("png")) }},
		{"read", func(c *CLI) error { _, err := c.ReadFile("output.webm"); return err }},
		{"exists", func(c *CLI) error { _, err := c.Exists("output.webm"); return err }},
		{"unlink", func(c *CLI) error { return c.Unlink("frame_00000.png") }},
		{"list", func(c *CLI) error { _, err := c.List(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setHelperCommand(t, "success")
			cli := loadedCLI(t)
			if err := os.RemoveAll(cli.Workspace()); err != nil {
				t.Fatalf("remove workspace: %v", err)
			}
			if err := tt.op(cli); err == nil {
				t.Fatal("expected the operation to fail without a workspace")
			}
			if cli.Loaded() {
				t.Fatal("expected runtime to be marked unloaded")
			}
		})
	}
}

func TestMissingFileKeepsRuntimeLoaded(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)

	if _, err := cli.ReadFile("output.webm"); !errors.Is(err, engine.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	exists, err := cli.Exists("output.webm")
	if err != nil || exists {
		t.Fatalf("Exists = %v, %v; want false, nil", exists, err)
	}
	if err := cli.WriteFile("output.webm", []byte("webm")); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if exists, err := cli.Exists("output.webm"); err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
	if !cli.Loaded() {
		t.Fatal("a missing file must not unload the runtime")
	}
}

func TestDisposeRemovesWorkspaceAndLock(t *testing.T) {
	setHelperCommand(t, "success")
	cli := loadedCLI(t)
	workspace := cli.Workspace()

	if err := cli.Dispose(); err != nil {
		t.Fatalf("Dispose returned error: %v", err)
	}
	if err := cli.Dispose(); err != nil {
		t.Fatalf("second Dispose returned error: %v", err)
	}
	if cli.Loaded() {
		t.Fatal("expected runtime unloaded after Dispose")
	}
	for _, path := range []string{workspace, workspace + LockSuffix} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, got %v", path, err)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line  string
		total int
		want  float64
		ok    bool
	}{
		{"frame=5", 10, 0.5, true},
		{"frame=5", 0, 0, false},
		{"frame=abc", 10, 0, false},
		{"progress=continue", 10, 0, false},
		{"progress=end", 0, 1, true},
		{"out_time_ms=1000", 10, 0, false},
		{"garbage", 10, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProgressLine(tt.line, tt.total)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parseProgressLine(%q, %d) = %v, %v; want %v, %v", tt.line, tt.total, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSequenceMatcher(t *testing.T) {
	matcher := sequenceMatcher("frame_%05d.png")
	if matcher == nil {
		t.Fatal("expected matcher")
	}
	for name, want := range map[string]bool{
		"frame_00000.png": true,
		"frame_12345.png": true,
		"frame_0001.png":  false,
		"palette.png":     false,
		"frame_00000.gif": false,
	} {
		if got := matcher.MatchString(name); got != want {
			t.Fatalf("match %q = %v, want %v", name, got, want)
		}
	}
	if sequenceMatcher("palette.png") != nil {
		t.Fatal("expected nil matcher for plain file names")
	}
}

func loadedCLI(t *testing.T) *CLI {
	t.Helper()
	cli := NewCLI(WithBinary(os.Args[0]), WithScratchRoot(t.TempDir()))
	if err := cli.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	t.Cleanup(func() { _ = cli.Dispose() })
	return cli
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	setHelperCommandCapture(t, mode, nil)
}

func setHelperCommandCapture(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		helperMode := mode
		if slices.Contains(args, "-version") {
			helperMode = "version"
			if mode == "wrongbanner" {
				helperMode = mode
			}
		} else if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FFMPEG_HELPER_MODE="+helperMode,
			"FFMPEG_HELPER_OUTPUT="+args[len(args)-1],
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "version":
		fmt.Println("ffmpeg version 7.1-static Copyright (c) 2000-2024 the FFmpeg developers")
		fmt.Println("configuration: --enable-libvpx")
		os.Exit(0)
	case "wrongbanner":
		fmt.Println("avconv version 12.3")
		os.Exit(0)
	case "success":
		fmt.Println("frame=2")
		fmt.Println("fps=0.0")
		fmt.Println("progress=continue")
		fmt.Println("frame=4")
		fmt.Println("progress=end")
		_ = os.WriteFile(os.Getenv("FFMPEG_HELPER_OUTPUT"), []byte("encoded"), 0o600)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libvpx-vp9'")
		os.Exit(1)
	case "crash":
		proc, _ := os.FindProcess(os.Getpid())
		_ = proc.Kill()
		select {}
	default:
		os.Exit(0)
	}
}
