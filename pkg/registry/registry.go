// Package registry tracks the learning units known to a coordinator:
// which artifacts each unit persists, the codec kind per key, and the
// per-unit persistence gating (enabled, async).
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/statekeep/pkg/artifact"
)

var (
	// ErrUnknownUnit is returned for operations naming an unregistered
	// unit. This is a programmer error, never silently absorbed.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrUnknownKey is returned for operations naming a key the unit did
	// not register.
	ErrUnknownKey = errors.New("unknown key")

	// ErrDuplicateUnit is returned when a unit id is registered twice.
	ErrDuplicateUnit = errors.New("unit already registered")
)

// Unit describes one learning unit and its persistence contract.
type Unit struct {
	// ID names the unit, e.g. "qlearning".
	ID string

	// Enabled gates persistence entirely: a disabled unit's saves are
	// dropped and its loads report no prior state.
	Enabled bool

	// Async selects the save path: async units return once cached and
	// flush on a debounce; sync units flush before Save returns.
	Async bool

	// Keys maps each persisted key to its codec kind.
	Keys map[string]artifact.Kind
}

// Registry is a thread-safe unit table. Units register at process start and
// are never removed during the process lifetime.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{units: make(map[string]Unit)}
}

// RegisterUnit adds a unit. The Keys map is copied.
func (r *Registry) RegisterUnit(u Unit) error {
	if u.ID == "" {
		return fmt.Errorf("unit id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[u.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID)
	}

	keys := make(map[string]artifact.Kind, len(u.Keys))
	for k, kind := range u.Keys {
		keys[k] = kind
	}
	u.Keys = keys
	r.units[u.ID] = u
	return nil
}

// Unit returns a copy of the registered unit.
func (r *Registry) Unit(id string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[id]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	return copyUnit(u), nil
}

// Units returns all registered units, sorted by id.
func (r *Registry) Units() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, copyUnit(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Artifacts returns every (unit, key) pair of the enabled units, sorted.
// Startup warm loads iterate exactly this set; disabled units have no
// persisted presence.
func (r *Registry) Artifacts() []artifact.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []artifact.ID
	for _, u := range r.units {
		if !u.Enabled {
			continue
		}
		for k := range u.Keys {
			ids = append(ids, artifact.NewID(u.ID, k))
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Unit != ids[j].Unit {
			return ids[i].Unit < ids[j].Unit
		}
		return ids[i].Key < ids[j].Key
	})
	return ids
}

// Codec returns the codec kind registered for (unit, key).
func (r *Registry) Codec(unit, key string) (artifact.Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
	}
	kind, ok := u.Keys[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownKey, unit, key)
	}
	return kind, nil
}

func copyUnit(u Unit) Unit {
	keys := make(map[string]artifact.Kind, len(u.Keys))
	for k, kind := range u.Keys {
		keys[k] = kind
	}
	u.Keys = keys
	return u
}
