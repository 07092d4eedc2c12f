package codecruntime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"alphareel/internal/engine"
	"alphareel/internal/logging"
	"alphareel/internal/services"
)

// State is the lifecycle state of the managed runtime.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer receives lifecycle events, e.g. for metrics.
type Observer interface {
	RuntimeLoaded(elapsed time.Duration, err error)
	RuntimeReset()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver registers an observer for load and reset events.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		m.observer = observer
	}
}

// Manager lazily loads and owns one codec runtime.
type Manager struct {
	factory  engine.Factory
	logger   *slog.Logger
	observer Observer

	group singleflight.Group
	gate  *semaphore.Weighted

	mu      sync.Mutex
	state   State
	eng     engine.Engine
	lastErr error
	// gen counts Dispose calls; a load started before a Dispose discards
	// its engine instead of installing it.
	gen uint64
}

// New constructs a Manager that builds engines with factory. Nothing is
// loaded until the first EnsureReady or Acquire.
func New(factory engine.Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		logger:  logging.NewNop(),
		gate:    semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "codecruntime")
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsReady reports whether the runtime is loaded.
func (m *Manager) IsReady() bool {
	return m.State() == Ready
}

// LastError returns the most recent load failure, if the manager is Failed.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Failed {
		return nil
	}
	return m.lastErr
}

// EnsureReady loads the runtime if needed. Concurrent callers share one load
// and all observe its result. A caller whose ctx ends stops waiting; the
// shared load keeps going for the others. A Ready runtime whose engine no
// longer reports itself loaded is reset and reloaded.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if eng := m.readyEngine(); eng != nil {
		if eng.Loaded() {
			return nil
		}
		m.reset(eng, ErrRuntimeLost)
	}
	ch := m.group.DoChan("load", func() (any, error) {
		return nil, m.load()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) readyEngine() engine.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return nil
	}
	return m.eng
}

func (m *Manager) load() error {
	m.mu.Lock()
	if m.state == Ready {
		m.mu.Unlock()
		return nil
	}
	m.state = Initializing
	gen := m.gen
	m.mu.Unlock()

	m.logger.Debug("codec runtime loading", logging.String(logging.FieldEventType, "runtime_load_start"))
	start := time.Now()
	eng, err := m.factory()
	if err == nil {
		err = eng.Load(context.Background())
		if err != nil {
			_ = eng.Dispose()
		}
	}
	elapsed := time.Since(start)
	if m.observer != nil {
		m.observer.RuntimeLoaded(elapsed, err)
	}

	if err != nil {
		wrapped := services.Wrap(services.ErrRuntimeInit, "runtime", "load", "codec runtime failed to load", err)
		m.mu.Lock()
		if m.gen == gen {
			m.state = Failed
			m.lastErr = wrapped
		}
		m.mu.Unlock()
		logging.ErrorWithContext(m.logger, "codec runtime load failed", "runtime_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.KindRuntimeInit),
			logging.String(logging.FieldErrorHint, "check the ffmpeg binary and scratch directory (alphareel doctor)"),
			logging.Duration("elapsed", elapsed),
		)
		return wrapped
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		if err := eng.Dispose(); err != nil {
			m.logger.Debug("dispose after superseded load failed", logging.Error(err))
		}
		return services.Wrap(services.ErrRuntimeInit, "runtime", "load", "codec runtime was disposed while loading", nil)
	}
	m.eng = eng
	m.state = Ready
	m.lastErr = nil
	m.mu.Unlock()
	m.logger.Info("codec runtime ready",
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "runtime_ready"),
	)
	return nil
}

// Acquire waits for the job gate and a ready runtime, then returns a Session
// that owns the runtime until Release. Jobs queue; they are never rejected.
// A runtime left unloaded by the previous job is reloaded under the gate.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if err := m.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := m.EnsureReady(ctx); err != nil {
		m.gate.Release(1)
		return nil, err
	}
	m.mu.Lock()
	eng := m.eng
	m.mu.Unlock()
	if eng == nil {
		m.gate.Release(1)
		return nil, services.Wrap(services.ErrRuntimeInit, "runtime", "acquire", "codec runtime was disposed", nil)
	}
	return &Session{manager: m, eng: eng}, nil
}

// reset drops eng if it is still the current runtime.
func (m *Manager) reset(eng engine.Engine, cause error) {
	m.mu.Lock()
	current := m.eng == eng
	if current {
		m.eng = nil
		m.state = Uninitialized
	}
	m.mu.Unlock()
	if !current {
		return
	}
	if err := eng.Dispose(); err != nil {
		m.logger.Debug("dispose after reset failed", logging.Error(err))
	}
	if m.observer != nil {
		m.observer.RuntimeReset()
	}
	logging.WarnWithContext(m.logger, "codec runtime lost its loaded state; next job reloads", "runtime_reset",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "a crashed encoder process or removed scratch workspace forces a reload"),
		logging.String(logging.FieldImpact, "runtime reloads before the next job"),
	)
}

// Dispose releases the runtime and returns to Uninitialized. It is idempotent.
// A load still in flight disposes its engine when it finishes.
func (m *Manager) Dispose() error {
	m.mu.Lock()
	m.gen++
	eng := m.eng
	m.eng = nil
	m.state = Uninitialized
	m.lastErr = nil
	m.mu.Unlock()
	if eng == nil {
		return nil
	}
	if err := eng.Dispose(); err != nil && !errors.Is(err, engine.ErrNotExist) {
		return err
	}
	return nil
}
