package codecruntime

import (
	"context"
	"errors"
	"sync"

	"alphareel/internal/engine"
)

var (
	// ErrSessionReleased is returned by Session methods after Release.
	ErrSessionReleased = errors.New("codec runtime session released")
	// ErrRuntimeLost reports an invocation that returned cleanly but left the
	// runtime unloaded.
	ErrRuntimeLost = errors.New("codec runtime lost its loaded state")
)

// Session grants one job exclusive use of the runtime.
type Session struct {
	manager *Manager
	eng     engine.Engine

	mu       sync.Mutex
	released bool
}

func (s *Session) engine() (engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSessionReleased
	}
	return s.eng, nil
}

// WriteFile stores data in the runtime filesystem.
func (s *Session) WriteFile(name string, data []byte) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	return s.settle(eng, eng.WriteFile(name, data))
}

// ReadFile reads name from the runtime filesystem.
func (s *Session) ReadFile(name string) ([]byte, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	data, err := eng.ReadFile(name)
	return data, s.settle(eng, err)
}

// Exists reports whether name is present in the runtime filesystem.
func (s *Session) Exists(name string) (bool, error) {
	eng, err := s.engine()
	if err != nil {
		return false, err
	}
	ok, err := eng.Exists(name)
	return ok, s.settle(eng, err)
}

// Unlink removes name from the runtime filesystem.
func (s *Session) Unlink(name string) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	return s.settle(eng, eng.Unlink(name))
}

// List returns the names in the runtime filesystem.
func (s *Session) List() ([]string, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	names, err := eng.List()
	return names, s.settle(eng, err)
}

// settle resets the manager when a failed file operation left the runtime
// unloaded, and returns err unchanged.
func (s *Session) settle(eng engine.Engine, err error) error {
	if err != nil && !eng.Loaded() {
		s.manager.reset(eng, err)
	}
	return err
}

// Run invokes the runtime with args. The invocation is detached from ctx
// cancellation: once started it runs to completion or failure. An invocation
// that leaves the runtime unloaded fails and resets the manager.
func (s *Session) Run(ctx context.Context, args []string, progress engine.RatioFunc) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	err = eng.Invoke(context.WithoutCancel(ctx), args, progress)
	if !eng.Loaded() {
		if err == nil {
			err = ErrRuntimeLost
		}
		s.manager.reset(eng, err)
	}
	return err
}

// Release returns the runtime to the manager. Calling it more than once is a
// no-op.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.manager.gate.Release(1)
}
