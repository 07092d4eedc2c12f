package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"alphareel/internal/engine"
	"alphareel/internal/logging"
)

var commandContext = exec.CommandContext

// LockSuffix is appended to a workspace path to name its ownership lock.
const LockSuffix = ".lock"

// ErrNotLoaded is returned by operations that need a loaded runtime.
var ErrNotLoaded = errors.New("ffmpeg runtime not loaded")

// baseArgs precede every invocation. Progress goes to stdout as key=value
// lines; errors go to stderr.
var baseArgs = []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-progress", "pipe:1"}

// Option configures the CLI runtime.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary = strings.TrimSpace(binary); binary != "" {
			c.binary = binary
		}
	}
}

// WithScratchRoot sets the directory that holds runtime workspaces.
func WithScratchRoot(dir string) Option {
	return func(c *CLI) {
		if dir = strings.TrimSpace(dir); dir != "" {
			c.scratchRoot = dir
		}
	}
}

// WithLogger attaches a logger for invocation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// CLI wraps the ffmpeg command-line encoder as an engine.Engine.
type CLI struct {
	binary      string
	scratchRoot string
	logger      *slog.Logger

	mu        sync.Mutex
	resolved  string
	version   string
	workspace string
	lock      *flock.Flock
	loaded    bool
}

// NewCLI constructs an unloaded CLI runtime using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{
		binary:      "ffmpeg",
		scratchRoot: os.TempDir(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	cli.logger = logging.NewComponentLogger(cli.logger, "ffmpeg")
	return cli
}

// Factory returns an engine.Factory producing CLI runtimes with opts.
func Factory(opts ...Option) engine.Factory {
	return func() (engine.Engine, error) {
		return NewCLI(opts...), nil
	}
}

// Load resolves the binary, probes its version, and creates the workspace.
func (c *CLI) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	resolved, err := exec.LookPath(c.binary)
	if err != nil {
		return fmt.Errorf("locate %s: %w", c.binary, err)
	}
	version, err := probeVersion(ctx, resolved)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.scratchRoot, 0o755); err != nil {
		return fmt.Errorf("create scratch root: %w", err)
	}
	workspace := filepath.Join(c.scratchRoot, uuid.NewString())
	lock := flock.New(workspace + LockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return fmt.Errorf("workspace %s is locked by another process", workspace)
	}
	if err := os.Mkdir(workspace, 0o700); err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return fmt.Errorf("create workspace: %w", err)
	}

	c.resolved = resolved
	c.version = version
	c.workspace = workspace
	c.lock = lock
	c.loaded = true
	c.logger.Debug("ffmpeg runtime loaded",
		logging.String("binary", resolved),
		logging.String("version", version),
		logging.String("workspace", workspace),
		logging.String(logging.FieldEventType, "runtime_loaded"),
	)
	return nil
}

func probeVersion(ctx context.Context, binary string) (string, error) {
	cmd := commandContext(ctx, binary, "-hide_banner", "-version") //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("probe %s -version: %w", binary, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(strings.ToLower(line), "ffmpeg version") {
		return "", fmt.Errorf("probe %s -version: unexpected banner %q", binary, line)
	}
	return line, nil
}

// Loaded reports whether the runtime and its workspace are usable.
func (c *CLI) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Version returns the banner line reported by the loaded binary.
func (c *CLI) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Workspace returns the workspace directory, or "" when unloaded.
func (c *CLI) Workspace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ""
	}
	return c.workspace
}

// Invoke runs ffmpeg with args inside the workspace.
func (c *CLI) Invoke(ctx context.Context, args []string, progress engine.RatioFunc) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	binary, workspace := c.resolved, c.workspace
	c.mu.Unlock()

	if _, err := os.Stat(workspace); err != nil {
		c.markUnloaded()
		return fmt.Errorf("workspace unavailable: %w", err)
	}

	total := countInputFrames(workspace, args)
	fullArgs := append(slices.Clone(baseArgs), args...)
	cmd := commandContext(ctx, binary, fullArgs...) //nolint:gosec
	cmd.Dir = workspace
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("ffmpeg invocation",
		logging.Strings("args", args),
		logging.Int("input_frames", total),
		logging.String(logging.FieldEventType, "ffmpeg_invoke"),
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanErr := readProgress(stdout, total, progress)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ProcessState != nil && exitErr.ProcessState.ExitCode() == -1 {
			// Killed by a signal; the workspace may be half written.
			c.markUnloaded()
		}
		if detail := lastLines(stderr.String(), 5); detail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("read ffmpeg progress: %w", scanErr)
	}
	return nil
}

func readProgress(r io.Reader, total int, progress engine.RatioFunc) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Text(), total)
		if ok && progress != nil {
			progress(update)
		}
	}
	return scanner.Err()
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "; "))
}

func (c *CLI) markUnloaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}

// checkWorkspace marks the runtime unloaded when a not-exist failure came
// from the workspace itself disappearing rather than from a missing file.
func (c *CLI) checkWorkspace(workspace string, err error) {
	if !errors.Is(err, fs.ErrNotExist) {
		return
	}
	if _, statErr := os.Stat(workspace); statErr != nil {
		c.logger.Warn("ffmpeg workspace disappeared",
			logging.String("workspace", workspace),
			logging.Error(statErr),
			logging.String(logging.FieldEventType, "workspace_lost"),
			logging.String(logging.FieldErrorHint, "avoid running alphareel cleanup with a zero age threshold during encodes"),
		)
		c.markUnloaded()
	}
}

func (c *CLI) resolve(name string) (string, string, error) {
	c.mu.Lock()
	loaded, workspace := c.loaded, c.workspace
	c.mu.Unlock()
	if !loaded {
		return "", "", ErrNotLoaded
	}
	if !filepath.IsLocal(name) {
		return "", "", fmt.Errorf("file name %q escapes the workspace", name)
	}
	return filepath.Join(workspace, name), workspace, nil
}

// WriteFile stores data under name in the workspace.
func (c *CLI) WriteFile(name string, data []byte) error {
	path, workspace, err := c.resolve(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		c.checkWorkspace(workspace, err)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the contents of name from the workspace.
func (c *CLI) ReadFile(name string) ([]byte, error) {
	path, workspace, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.checkWorkspace(workspace, err)
			return nil, fmt.Errorf("read %s: %w", name, engine.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether name is a regular file in the workspace.
func (c *CLI) Exists(name string) (bool, error) {
	path, workspace, err := c.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.checkWorkspace(workspace, err)
		if !c.Loaded() {
			return false, fmt.Errorf("stat %s: workspace unavailable: %w", name, err)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Mode().IsRegular(), nil
}

// Unlink removes name from the workspace.
func (c *CLI) Unlink(name string) error {
	path, workspace, err := c.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.checkWorkspace(workspace, err)
			return fmt.Errorf("unlink %s: %w", name, engine.ErrNotExist)
		}
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	return nil
}

// List returns the sorted names of regular files in the workspace.
func (c *CLI) List() ([]string, error) {
	c.mu.Lock()
	loaded, workspace := c.loaded, c.workspace
	c.mu.Unlock()
	if !loaded {
		return nil, ErrNotLoaded
	}
	entries, err := os.ReadDir(workspace)
	if err != nil {
		c.checkWorkspace(workspace, err)
		return nil, fmt.Errorf("list workspace: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Dispose removes the workspace and releases its lock.
func (c *CLI) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		c.loaded = false
		return nil
	}
	var errs []error
	if err := os.RemoveAll(c.workspace); err != nil {
		errs = append(errs, fmt.Errorf("remove workspace: %w", err))
	}
	if err := c.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock workspace: %w", err))
	}
	if err := os.Remove(c.lock.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove workspace lock: %w", err))
	}
	c.logger.Debug("ffmpeg runtime disposed",
		logging.String("workspace", c.workspace),
		logging.String(logging.FieldEventType, "runtime_disposed"),
	)
	c.lock = nil
	c.workspace = ""
	c.loaded = false
	return errors.Join(errs...)
}

var _ engine.Engine = (*CLI)(nil)
