// Package backend provides a pluggable code-generator registry.
//
// The shadercache core is backend-agnostic: it compiles variants through
// the shadercache.Compiler interface. This package lets code-generator
// implementations register themselves via init() functions and lets
// applications select one at runtime:
//
//	import _ "github.com/gogpu/shadercache/backend/nagac"
//
//	comp := backend.Default()
//	if comp == nil {
//		log.Fatal("no shader compiler available")
//	}
//	prog, err := shadercache.NewFragmentProgram(comp, desc, nil)
//
// # Available Backends
//
// - "nagac": SPIR-V generation via gogpu/naga (registered on import)
package backend

import (
	"errors"
	"sync"

	"github.com/gogpu/shadercache"
)

// ErrBackendNotAvailable is returned when a requested backend is not
// registered.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory creates a new compiler instance.
type Factory func() shadercache.Compiler

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	priority = []string{"nagac"}
)

// Register registers a compiler factory with the given name. This is
// typically called from init() functions in backend packages. If a
// backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. This is useful for
// testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a compiler instance by backend name, or nil if the backend
// is not registered.
func Get(name string) shadercache.Compiler {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns a compiler from the best available backend based on
// priority. Returns nil if no backends are registered.
func Default() shadercache.Compiler {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range priority {
		if factory, ok := backends[name]; ok {
			if c := factory(); c != nil {
				return c
			}
		}
	}

	// Fallback: return first available
	for _, factory := range backends {
		if c := factory(); c != nil {
			return c
		}
	}

	return nil
}

// MustDefault returns the default compiler or panics.
func MustDefault() shadercache.Compiler {
	c := Default()
	if c == nil {
		panic("backend: no shader compiler available")
	}
	return c
}
