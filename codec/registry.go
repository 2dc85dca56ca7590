package codec

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// DefaultBackendName is used by pipelines that do not name a backend.
const DefaultBackendName = "ffmpeg"

var registry = struct {
	mu       sync.RWMutex
	backends map[string]Backend
}{backends: map[string]Backend{}}

// Register makes a backend available by name. Backends register themselves
// from init so that importing a backend package is enough to use it.
func Register(b Backend) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.backends[b.Name()]; ok {
		panic(errors.Errorf("codec backend %q registered twice", b.Name()))
	}
	registry.backends[b.Name()] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackendName
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	b, ok := registry.backends[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (registered: %v)", name, backendNamesLocked())
	}
	return b, nil
}

// Backends lists the registered backend names.
func Backends() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return backendNamesLocked()
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(registry.backends))
	for name := range registry.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
