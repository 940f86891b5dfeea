package object

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var nextID atomic.Uint64

// Environment is a scope-chain variable store. Each instance guards its own
// binding map, so sibling branches working in disjoint scopes never contend;
// concurrent let bindings racing to define the same name in one scope are
// serialized by that scope's lock. The Outer chain is a strict tree: children
// point at their parent, parents never reference children.
type Environment struct {
	ID       uint64
	Bindings map[string]Value
	Outer    *Environment

	mu sync.RWMutex
}

func nextEnvID() uint64 {
	return nextID.Add(1)
}

func NewEnvironment() *Environment {
	return &Environment{
		ID:       nextEnvID(),
		Bindings: make(map[string]Value),
	}
}

// NewEnclosedEnvironment creates the child scope for a let body or a handle
// fallback. The child is discarded when that body finishes evaluating.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	return env
}

// Define adds a binding to this scope only. It never walks the parent chain.
func (e *Environment) Define(name string, val Value) {
	e.mu.Lock()
	e.Bindings[name] = val
	e.mu.Unlock()
}

func (e *Environment) Get(name string) (Value, bool) {
	e.mu.RLock()
	val, ok := e.Bindings[name]
	e.mu.RUnlock()

	if ok {
		return val, true
	}
	if e.Outer != nil {
		return e.Outer.Get(name)
	}
	return nil, false
}

// Assign mutates the nearest enclosing binding of name. It never implicitly
// creates a binding: an undefined name anywhere in the chain is an error.
func (e *Environment) Assign(name string, val Value) error {
	e.mu.Lock()
	if _, exists := e.Bindings[name]; exists {
		e.Bindings[name] = val
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if e.Outer != nil {
		return e.Outer.Assign(name, val)
	}
	return fmt.Errorf("name '%s' is not defined in any accessible scope", name)
}

// SnapshotBindings merges the parent chain's bindings and overwrites with the
// local ones, so shadowed names show their innermost value. Debug/trace use.
func (e *Environment) SnapshotBindings() map[string]Value {
	var all map[string]Value
	if e.Outer != nil {
		all = e.Outer.SnapshotBindings()
	} else {
		all = make(map[string]Value)
	}

	e.mu.RLock()
	for k, v := range e.Bindings {
		all[k] = v
	}
	e.mu.RUnlock()
	return all
}
