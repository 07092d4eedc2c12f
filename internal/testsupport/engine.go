package testsupport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"alphareel/internal/engine"
)

// InvokeFunc scripts the behaviour of one Engine.Invoke call. It runs without
// the engine lock held, so it may use the engine's file methods.
type InvokeFunc func(e *Engine, args []string, progress engine.RatioFunc) error

// Engine is an in-memory engine.Engine for tests. Its filesystem is a map and
// its default invocation concatenates the staged input frames in index order
// into the output file named by the last argument.
type Engine struct {
	mu          sync.Mutex
	files       map[string][]byte
	loaded      bool
	loadCalls   int
	disposed    int
	invocations [][]string
	canceled    int

	// LoadGate, when set, blocks Load until it is closed.
	LoadGate chan struct{}
	// LoadErr is returned by Load when set.
	LoadErr error
	// OnInvoke replaces the default invocation behaviour.
	OnInvoke InvokeFunc
	// FailWrite makes WriteFile fail for names it returns true for. It runs
	// before the failure is returned, so it may also call Crash.
	FailWrite func(name string) bool
}

// NewEngine returns an unloaded in-memory engine.
func NewEngine() *Engine {
	return &Engine{files: make(map[string][]byte)}
}

// Factory returns an engine.Factory that always yields e.
func (e *Engine) Factory() engine.Factory {
	return func() (engine.Engine, error) {
		return e, nil
	}
}

// LoadCalls reports how many times Load ran its body.
func (e *Engine) LoadCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadCalls
}

// DisposeCalls reports how many times Dispose was called.
func (e *Engine) DisposeCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Invocations returns a copy of every argument vector passed to Invoke.
func (e *Engine) Invocations() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.invocations))
	for i, args := range e.invocations {
		out[i] = slices.Clone(args)
	}
	return out
}

// CanceledInvocations counts Invoke calls that arrived with a done context.
func (e *Engine) CanceledInvocations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canceled
}

// Names returns the sorted file names currently in the filesystem.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.files))
	for name := range e.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Put stores data without going through the engine interface.
func (e *Engine) Put(name string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = slices.Clone(data)
}

// Get returns the stored data for name.
func (e *Engine) Get(name string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	return slices.Clone(data), ok
}

// Crash marks the engine unloaded, as a runtime that lost its state would.
func (e *Engine) Crash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
}

// ConcatFrames is the default invocation: it reports progress, then writes
// the concatenation of every staged frame_*.png file, in name order, to the
// file named by the last argument.
func ConcatFrames(e *Engine, args []string, progress engine.RatioFunc) error {
	if len(args) == 0 {
		return errors.New("no arguments")
	}
	var out bytes.Buffer
	for _, name := range e.Names() {
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			data, _ := e.Get(name)
			out.Write(data)
		}
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	e.Put(args[len(args)-1], out.Bytes())
	return nil
}

// Load marks the engine loaded, honouring LoadGate and LoadErr.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return nil
	}
	e.loadCalls++
	gate, loadErr := e.LoadGate, e.LoadErr
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if loadErr != nil {
		return loadErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

// Loaded reports whether the engine is loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Invoke records args and runs OnInvoke, or ConcatFrames when unset.
func (e *Engine) Invoke(ctx context.Context, args []string, progress engine.RatioFunc) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return errors.New("engine not loaded")
	}
	if ctx.Err() != nil {
		e.canceled++
	}
	e.invocations = append(e.invocations, slices.Clone(args))
	invoke := e.OnInvoke
	e.mu.Unlock()

	if invoke == nil {
		invoke = ConcatFrames
	}
	return invoke(e, args, progress)
}

// WriteFile stores data unless FailWrite rejects name.
func (e *Engine) WriteFile(name string, data []byte) error {
	if e.FailWrite != nil && e.FailWrite(name) {
		return fmt.Errorf("write %s: disk full", name)
	}
	e.Put(name, data)
	return nil
}

// ReadFile returns the stored data for name.
func (e *Engine) ReadFile(name string) ([]byte, error) {
	data, ok := e.Get(name)
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, engine.ErrNotExist)
	}
	return data, nil
}

// Exists reports whether name is stored.
func (e *Engine) Exists(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.files[name]
	return ok, nil
}

// Unlink removes name.
func (e *Engine) Unlink(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[name]; !ok {
		return fmt.Errorf("unlink %s: %w", name, engine.ErrNotExist)
	}
	delete(e.files, name)
	return nil
}

// List returns the sorted file names.
func (e *Engine) List() ([]string, error) {
	return e.Names(), nil
}

// Dispose unloads the engine and clears its filesystem.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed++
	e.loaded = false
	e.files = make(map[string][]byte)
	return nil
}

var _ engine.Engine = (*Engine)(nil)
