package clusterizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownMode is matched by UnknownModeError.
var ErrUnknownMode = errors.New("unknown clustering mode")

// UnknownModeError reports a mode name with no registered factory.
type UnknownModeError struct {
	Name  string
	Valid []string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("choice %s is invalid. Possible choices: %s", e.Name, strings.Join(e.Valid, ", "))
}

// Is lets errors.Is(err, ErrUnknownMode) match.
func (e *UnknownModeError) Is(target error) bool { return target == ErrUnknownMode }

// Factory builds a strategy from its thresholds.
type Factory func(Params) (Clusterizer, error)

// Registry maps mode names to factories. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("clusterizer name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("clusterizer %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("clusterizer %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered mode names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the strategy registered under name. Unknown names return an
// *UnknownModeError listing the valid choices.
func (r *Registry) New(name string, p Params) (Clusterizer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownModeError{Name: name, Valid: r.Names()}
	}
	c, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return c, nil
}

// Default holds the built-in strategies.
var Default = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(ThresholdName, func(p Params) (Clusterizer, error) {
		return NewThresholdClusterizer(p)
	})
	return r
}

// New builds a strategy from the Default registry.
func New(name string, p Params) (Clusterizer, error) { return Default.New(name, p) }

// Names lists the modes of the Default registry.
func Names() []string { return Default.Names() }
