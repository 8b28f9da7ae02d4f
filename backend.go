package mediaparser

import (
	"fmt"
	"sync/atomic"
)

// Backend identifies a native engine implementation.
type Backend uint8

const (
	BackendAuto   Backend = iota // Let the library choose the best available
	BackendGoGst                 // GStreamer through cgo bindings
	BackendPurego                // GStreamer loaded at runtime, no cgo
	backendCount
)

// backendMeta contains static metadata about a backend.
type backendMeta struct {
	Name string
	Cgo  bool
}

// Static metadata table - indexed by Backend.
var backendInfo = [backendCount]backendMeta{
	BackendAuto:   {"auto", false},
	BackendGoGst:  {"go-gst", true},
	BackendPurego: {"purego", false},
}

// Runtime state - set by init() in backend implementations.
var (
	backendAvailable [backendCount]atomic.Bool
	backendLoaders   [backendCount]func() (Engine, error)
)

// Order in which BackendAuto tries backends.
var backendPreference = [...]Backend{BackendGoGst, BackendPurego}

// String returns the backend name.
func (b Backend) String() string {
	if b >= backendCount {
		return "unknown"
	}
	return backendInfo[b].Name
}

// RequiresCgo reports whether the backend is only built with cgo.
func (b Backend) RequiresCgo() bool {
	if b >= backendCount {
		return false
	}
	return backendInfo[b].Cgo
}

// Compiled reports whether the backend is part of this build.
func (b Backend) Compiled() bool {
	if b == BackendAuto {
		for _, c := range backendPreference {
			if c.Compiled() {
				return true
			}
		}
		return false
	}
	return b < backendCount && backendLoaders[b] != nil
}

// Available reports whether the backend is compiled in and its native
// libraries load.
func (b Backend) Available() bool {
	if b >= backendCount {
		return false
	}
	if !backendAvailable[b].Load() {
		if _, err := NewEngine(b); err != nil {
			return false
		}
	}
	return backendAvailable[b].Load()
}

// registerBackend installs the loader of a compiled-in backend.
func registerBackend(b Backend, load func() (Engine, error)) {
	if b > BackendAuto && b < backendCount {
		backendLoaders[b] = load
	}
}

func setBackendAvailable(b Backend) {
	if b < backendCount {
		backendAvailable[b].Store(true)
		backendAvailable[BackendAuto].Store(true)
	}
}

// NewEngine returns the engine of backend b, loading it on first use.
func NewEngine(b Backend) (Engine, error) {
	if b >= backendCount {
		return nil, fmt.Errorf("%w: unknown backend %d", ErrEngineUnavailable, b)
	}
	if b != BackendAuto {
		load := backendLoaders[b]
		if load == nil {
			return nil, fmt.Errorf("%w: %s backend not compiled in", ErrEngineUnavailable, b)
		}
		e, err := load()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, b, err)
		}
		setBackendAvailable(b)
		return e, nil
	}

	var lastErr error
	for _, c := range backendPreference {
		if !c.Compiled() {
			continue
		}
		e, err := NewEngine(c)
		if err == nil {
			return e, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no backend compiled in", ErrEngineUnavailable)
}

// DefaultEngine returns the best available engine.
func DefaultEngine() (Engine, error) {
	return NewEngine(BackendAuto)
}
