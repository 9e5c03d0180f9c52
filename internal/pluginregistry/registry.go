// Package registry is the central, process-wide registry for pluggable
// components in codeindex: language plugins, and anything else that wants
// to be referred to by a stable name across API boundaries instead of by
// passing instances around.
package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry is the global registry, keyed first by the pluggable type, then
// by name within that type.
var registryRoot = struct {
	sync.RWMutex
	Lookup map[reflect.Type]any
}{
	Lookup: make(map[reflect.Type]any),
}

// TypedReg is the per-type registry.
type typedReg[T any] struct {
	sync.RWMutex
	Lookup map[string]*Description[T]
}

func getReg[T any](create bool) (*typedReg[T], func()) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	registryRoot.RLock()
	v, ok := registryRoot.Lookup[key]
	if !ok {
		registryRoot.RUnlock()
		if !create {
			return nil, func() {}
		}
		registryRoot.Lock()
		v2, ok := registryRoot.Lookup[key]
		if ok {
			v = v2
		} else {
			v = &typedReg[T]{Lookup: make(map[string]*Description[T])}
			registryRoot.Lookup[key] = v
		}
		registryRoot.Unlock()
		registryRoot.RLock()
	}
	reg := v.(*typedReg[T])
	return reg, registryRoot.RUnlock
}

// Description describes everything needed to construct a plugin instance
// of type T under a given name.
type Description[T any] struct {
	// New constructs a new instance. The passed function unmarshals the
	// instance's configuration (if any) into the provided value.
	New func(ctx context.Context, decode func(any) error) (T, error)
	// Default signals that this plugin should be loaded even when no
	// configuration explicitly names it.
	Default bool
}

// ErrAlreadyRegistered is returned when a name is registered twice for the
// same type parameter.
var ErrAlreadyRegistered = errors.New("registry: name already registered")

// Register adds desc under name to the type-specific registry selected by
// the type parameter.
func Register[T any](name string, desc *Description[T]) error {
	tr, unlock := getReg[T](true)
	defer unlock()
	tr.Lock()
	defer tr.Unlock()
	if _, exists := tr.Lookup[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	tr.Lookup[name] = desc
	return nil
}

// Names returns every registered name for the given type parameter, sorted.
func Names[T any]() []string {
	tr, unlock := getReg[T](false)
	defer unlock()
	if tr == nil {
		return nil
	}
	tr.RLock()
	defer tr.RUnlock()
	out := make([]string, 0, len(tr.Lookup))
	for name := range tr.Lookup {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Defaults returns the names registered with Default set, sorted.
func Defaults[T any]() []string {
	tr, unlock := getReg[T](false)
	defer unlock()
	if tr == nil {
		return nil
	}
	tr.RLock()
	defer tr.RUnlock()
	out := make([]string, 0, len(tr.Lookup))
	for name, d := range tr.Lookup {
		if d.Default {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns the Description registered under name for the given type
// parameter.
func Get[T any](name string) (*Description[T], error) {
	tr, unlock := getReg[T](false)
	defer unlock()
	if tr == nil {
		var t T
		return nil, fmt.Errorf("registry: no names registered for type %T", t)
	}
	tr.RLock()
	defer tr.RUnlock()
	d, ok := tr.Lookup[name]
	if !ok {
		var t T
		return nil, fmt.Errorf("registry: type %T: unknown name %q", t, name)
	}
	return d, nil
}
