package drivers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"presencelight/internal/core"
)

var (
	ErrDriverNotFound      = errors.New("driver not found")
	ErrDriverAlreadyExists = errors.New("driver already registered")
)

// LightDriver is a named light controller
type LightDriver interface {
	core.LightController
	Name() string
}

// Registry manages the available light drivers
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]LightDriver
}

// NewRegistry creates a new driver registry
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]LightDriver),
	}
}

// Register adds a driver to the registry
func (r *Registry) Register(driver LightDriver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := driver.Name()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDriverAlreadyExists, name)
	}

	r.drivers[name] = driver
	return nil
}

// Get retrieves a driver by name
func (r *Registry) Get(name string) (LightDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, name)
	}

	return driver, nil
}

// List returns all registered driver names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
