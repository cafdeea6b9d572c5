package mission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/missionctl/internal/timer"
	"github.com/rs/zerolog"
)

// KindStandard is the builtin realization kind backed by Controller.
const KindStandard = "standard"

// ErrUnknownKind is returned when no constructor is registered for a kind.
var ErrUnknownKind = errors.New("unknown mission kind")

// Options are passed to a Constructor.
type Options struct {
	Clock timer.Clock

	// Logger overrides the component logger when set.
	Logger *zerolog.Logger
}

// Constructor builds a fresh Realization.
type Constructor func(opts Options) Realization

// Factory maps realization kinds to constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		constructors: make(map[string]Constructor),
	}
}

// NewStandardFactory creates a factory with the builtin kinds registered.
func NewStandardFactory() *Factory {
	f := NewFactory()
	f.MustRegister(KindStandard, func(opts Options) Realization {
		controllerOpts := []ControllerOption{WithClock(opts.Clock)}
		if opts.Logger != nil {
			controllerOpts = append(controllerOpts, WithLogger(*opts.Logger))
		}
		return NewController(controllerOpts...)
	})
	return f
}

// Register adds a constructor for kind.
// Returns an error if the kind is already registered.
func (f *Factory) Register(kind string, ctor Constructor) error {
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("mission kind is required")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for kind %q is nil", kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.constructors[kind]; exists {
		return fmt.Errorf("mission kind %q already registered", kind)
	}
	f.constructors[kind] = ctor
	return nil
}

// MustRegister adds a constructor, panicking on error.
func (f *Factory) MustRegister(kind string, ctor Constructor) {
	if err := f.Register(kind, ctor); err != nil {
		panic(err)
	}
}

// Has reports whether kind resolves. The empty kind means KindStandard.
func (f *Factory) Has(kind string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[resolveKind(kind)]
	return ok
}

// Resolve builds a Realization for kind.
func (f *Factory) Resolve(kind string, opts Options) (Realization, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[resolveKind(kind)]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	r := ctor(opts)
	if r == nil {
		return nil, fmt.Errorf("constructor for kind %q returned nil", kind)
	}
	return r, nil
}

// Kinds returns the registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]string, 0, len(f.constructors))
	for kind := range f.constructors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Unregister removes a kind.
// Returns true if the kind was removed, false if it wasn't found.
func (f *Factory) Unregister(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind = normalizeKind(kind)
	if _, exists := f.constructors[kind]; exists {
		delete(f.constructors, kind)
		return true
	}
	return false
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func resolveKind(kind string) string {
	kind = normalizeKind(kind)
	if kind == "" {
		return KindStandard
	}
	return kind
}
