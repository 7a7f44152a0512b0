package buildconfig

import (
	"maps"
	"slices"
	"sync"

	"github.com/wolfeidau/fragpack/internal/fragment"
)

// Producer builds a fragment for the active mode.
type Producer func(mode string) fragment.Fragment

// Static wraps a fixed fragment as a Producer.
func Static(f fragment.Fragment) Producer {
	return func(string) fragment.Fragment { return f }
}

// Registry maps mode and preset names to fragment producers.
type Registry struct {
	base    Producer
	modes   map[string]Producer
	presets map[string]Producer
	mu      sync.RWMutex
}

// NewRegistry returns a registry populated with the built-in base fragment,
// mode overlays and presets.
func NewRegistry() *Registry {
	r := NewEmptyRegistry(Base)

	r.RegisterMode(ModeDevelopment, Development)
	r.RegisterMode(ModeProduction, Production)

	r.RegisterPreset(PresetAnalytics, Analytics)
	r.RegisterPreset(PresetCompress, Compress)
	r.RegisterPreset(PresetManifest, Manifest)

	return r
}

// NewEmptyRegistry returns a registry with only a base producer.
func NewEmptyRegistry(base Producer) *Registry {
	if base == nil {
		base = Static(fragment.Empty())
	}
	return &Registry{
		base:    base,
		modes:   make(map[string]Producer),
		presets: make(map[string]Producer),
	}
}

// RegisterMode registers or replaces the overlay for a mode.
func (r *Registry) RegisterMode(name string, p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes[name] = p
}

// RegisterPreset registers or replaces a preset.
func (r *Registry) RegisterPreset(name string, p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = p
}

// Modes returns the registered mode names, sorted.
func (r *Registry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.modes))
}

// Presets returns the registered preset names, sorted.
func (r *Registry) Presets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.presets))
}

// ResolveMode returns the overlay registered for mode.
func (r *Registry) ResolveMode(mode string) (fragment.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.modes[mode]
	if !ok {
		return fragment.Fragment{}, &ResolutionError{
			Kind:  "mode",
			Name:  mode,
			Known: slices.Sorted(maps.Keys(r.modes)),
		}
	}
	return p(mode), nil
}

// LoadPresets resolves each preset in order and merges them so later presets
// win over earlier ones. An empty list yields an empty fragment.
func (r *Registry) LoadPresets(mode string, names []string) (fragment.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frags := make([]fragment.Fragment, 0, len(names))
	for _, name := range names {
		p, ok := r.presets[name]
		if !ok {
			return fragment.Fragment{}, &ResolutionError{
				Kind:  "preset",
				Name:  name,
				Known: slices.Sorted(maps.Keys(r.presets)),
			}
		}
		frags = append(frags, p(mode))
	}

	return fragment.Merge(append([]fragment.Fragment{fragment.Empty()}, frags...)...), nil
}
