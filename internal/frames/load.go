package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"alphareel/internal/capability"
	"alphareel/internal/encoding"
	"alphareel/internal/services"
)

// Option configures Load.
type Option func(*loader)

// WithLimits rejects inputs that exceed the tier ceilings before any frame
// bytes are read.
func WithLimits(limits capability.Limits) Option {
	return func(l *loader) {
		l.limits = &limits
	}
}

type loader struct {
	limits *capability.Limits
}

// Load collects frames from the given paths in argument order.
func Load(paths []string, opts ...Option) ([]encoding.Frame, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	files, err := collect(paths)
	if err != nil {
		return nil, err
	}
	if err := l.precheck(files); err != nil {
		return nil, err
	}

	frames := make([]encoding.Frame, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file.path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "frames", "read", file.path, err)
		}
		frames = append(frames, encoding.Frame{Name: filepath.Base(file.path), Data: data})
	}
	return frames, nil
}

type candidate struct {
	path string
	size int64
}

func collect(paths []string) ([]candidate, error) {
	var files []candidate
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "frames", "stat", path, err)
		}
		if !info.IsDir() {
			files = append(files, candidate{path: path, size: info.Size()})
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "frames", "read dir", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsPNGName(entry.Name()) {
				continue
			}
			entryInfo, err := entry.Info()
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "frames", "stat", entry.Name(), err)
			}
			if !entryInfo.Mode().IsRegular() {
				continue
			}
			files = append(files, candidate{path: filepath.Join(path, entry.Name()), size: entryInfo.Size()})
		}
	}
	return files, nil
}

func (l *loader) precheck(files []candidate) error {
	if l.limits == nil {
		return nil
	}
	if len(files) > l.limits.MaxFrameCount {
		return services.Wrap(services.ErrValidation, "frames", "frame count",
			fmt.Sprintf("%d frames exceed the frame count limit of %d for the %s tier", len(files), l.limits.MaxFrameCount, l.limits.Tier), nil)
	}
	var total int64
	for _, file := range files {
		total += file.size
	}
	if total > l.limits.MaxTotalSizeBytes {
		return services.Wrap(services.ErrValidation, "frames", "total size",
			fmt.Sprintf("%d bytes exceed the total size limit of %d bytes for the %s tier", total, l.limits.MaxTotalSizeBytes, l.limits.Tier), nil)
	}
	return nil
}

// IsPNGName reports whether name carries a .png extension, ignoring case.
func IsPNGName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}
