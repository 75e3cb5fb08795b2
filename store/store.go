package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
)

// Backend is an open collection store.
type Backend interface {
	observability.HealthChecker
	// Collection returns the named collection, creating it on first use.
	Collection(name string) (collection.Collection, error)
	// Names lists the collections that hold documents or indexes.
	Names(ctx context.Context) ([]string, error)
	Close() error
}

// Factory opens a backend from config.
type Factory func(cfg Config, log *logger.Logger) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{DriverMemory: newMemoryBackend}
)

// RegisterFactory makes a driver available to Open. Driver packages call it
// from an init function.
func RegisterFactory(driver string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[driver] = f
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open validates cfg and opens the backend registered for cfg.Driver.
func Open(cfg Config, log *logger.Logger) (Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	factoriesMu.RLock()
	f, ok := factories[cfg.Driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: driver %q is not registered", cfg.Driver)
	}
	l := log.WithComponent("store")
	l.Info("opening collection store", logger.Fields(logger.FieldDriver, cfg.Driver))
	return f(cfg, l)
}

type memoryBackend struct {
	mu          sync.Mutex
	collections map[string]*collection.Memory
}

func newMemoryBackend(Config, *logger.Logger) (Backend, error) {
	return &memoryBackend{collections: make(map[string]*collection.Memory)}, nil
}

func (b *memoryBackend) Collection(name string) (collection.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = collection.NewMemory(name)
		b.collections[name] = c
	}
	return c, nil
}

func (b *memoryBackend) Names(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.collections))
	for name := range b.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (b *memoryBackend) CheckHealth(context.Context) observability.Health {
	b.mu.Lock()
	n := len(b.collections)
	b.mu.Unlock()
	return observability.Health{
		Name:    DriverMemory,
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"collections": fmt.Sprint(n)},
	}
}

func (b *memoryBackend) Close() error { return nil }
