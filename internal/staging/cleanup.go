package staging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"alphareel/internal/logging"
	"alphareel/internal/services/ffmpeg"
)

// CleanStaleResult contains the outcome of a stale workspace cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a workspace path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes scratch workspaces older than maxAge. A workspace whose
// ownership lock is held by a running encoder is skipped regardless of age.
// Orphaned lock files past maxAge are removed too.
func CleanStale(ctx context.Context, scratchDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return result
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: scratchDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}

		path := filepath.Join(scratchDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		switch {
		case entry.IsDir():
			removed, err := removeWorkspace(path)
			switch {
			case err != nil:
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logger.Warn("failed to remove stale workspace",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check paths.scratch_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			case !removed:
				result.Skipped = append(result.Skipped, path)
				logger.Debug("workspace in use; skipping",
					logging.String("path", path),
					logging.String(logging.FieldEventType, "workspace_cleanup_skipped"),
				)
			default:
				result.Removed = append(result.Removed, path)
				logger.Info("removed stale workspace",
					logging.String("path", path),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "workspace_cleanup"),
				)
			}
		case strings.HasSuffix(entry.Name(), ffmpeg.LockSuffix):
			workspace := strings.TrimSuffix(path, ffmpeg.LockSuffix)
			if _, err := os.Stat(workspace); err == nil {
				continue
			}
			if removeOrphanLock(path) {
				result.Removed = append(result.Removed, path)
			}
		}
	}

	return result
}

// removeWorkspace deletes path when no encoder holds its lock. It reports
// false without error when the lock is held.
func removeWorkspace(path string) (bool, error) {
	lock := flock.New(path + ffmpeg.LockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ffmpeg.LockSuffix)
	}()
	if err := os.RemoveAll(path); err != nil {
		return false, err
	}
	return true, nil
}

func removeOrphanLock(path string) bool {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return false
	}
	defer func() { _ = lock.Unlock() }()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false
	}
	return true
}

// ListWorkspaces returns all workspaces in the scratch directory with their metadata.
func ListWorkspaces(scratchDir string) ([]WorkspaceInfo, error) {
	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var workspaces []WorkspaceInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(scratchDir, entry.Name())
		size, _ := dirSize(path)

		workspaces = append(workspaces, WorkspaceInfo{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    size,
			InUse:   lockHeld(path + ffmpeg.LockSuffix),
		})
	}

	return workspaces, nil
}

// WorkspaceInfo contains metadata about a scratch workspace.
type WorkspaceInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	InUse   bool
}

func lockHeld(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return false
	}
	if locked {
		_ = lock.Unlock()
		return false
	}
	return true
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
