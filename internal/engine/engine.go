// Package engine defines the narrow capability surface alphareel needs from a
// codec runtime: load it, exchange files with its private workspace, and run
// one command-line style invocation at a time.
//
// Production code drives an FFmpeg binary (see internal/services/ffmpeg);
// tests use the in-memory engine from internal/testsupport.
package engine

import (
	"context"
	"errors"
)

// ErrNotExist reports that a named file is absent from the runtime workspace.
var ErrNotExist = errors.New("file does not exist in runtime workspace")

// RatioFunc receives invocation progress as a ratio in [0,1]. Engines may call
// it with values outside that range; consumers clamp.
type RatioFunc func(ratio float64)

// Engine is a loadable codec runtime with a private virtual filesystem.
//
// Implementations are not required to support concurrent Invoke calls; the
// lifecycle manager serializes jobs.
type Engine interface {
	// Load prepares the runtime. Calling Load on a loaded engine is a no-op.
	Load(ctx context.Context) error
	// Loaded reports whether the runtime is still usable. A crashed or torn
	// down runtime reports false.
	Loaded() bool
	// Invoke runs one command with the given argument vector, relative to the
	// workspace. Progress is optional.
	Invoke(ctx context.Context, args []string, progress RatioFunc) error
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	// Exists reports whether name is present without reading it.
	Exists(name string) (bool, error)
	Unlink(name string) error
	List() ([]string, error)
	// Dispose releases the runtime and its workspace. It is idempotent.
	Dispose() error
}

// Factory constructs an unloaded engine.
type Factory func() (Engine, error)
