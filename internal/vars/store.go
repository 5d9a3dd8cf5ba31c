// Package vars implements the hub's shared variable store: named
// floating-point values guarded by per-variable reader/writer locks.
package vars

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound reports an access to a variable that was never
	// defined. Variable names are known from configuration, so a miss
	// is a protocol violation by the client.
	ErrNotFound = errors.New("vars: no such variable")

	// ErrReadOnly reports a client write to a read-only variable.
	ErrReadOnly = errors.New("vars: variable is read-only")
)

// Definition describes one variable created at startup.
type Definition struct {
	Name     string
	Default  float64
	ReadOnly bool
}

type variable struct {
	mu       sync.RWMutex
	value    float64
	readonly bool
}

// Store holds the variable set. The set itself is fixed at construction;
// only values change, each under its own lock, so operations on
// different variables never contend.
type Store struct {
	vars map[string]*variable
}

// New builds a store from the configured definitions.
func New(defs []Definition) (*Store, error) {
	s := &Store{vars: make(map[string]*variable, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("vars: variable with empty name")
		}
		if _, ok := s.vars[def.Name]; ok {
			return nil, fmt.Errorf("vars: duplicate variable %q", def.Name)
		}
		s.vars[def.Name] = &variable{value: def.Default, readonly: def.ReadOnly}
	}
	return s, nil
}

// Get returns a snapshot of the variable's value and read-only flag.
func (s *Store) Get(name string) (value float64, readonly bool, err error) {
	v, ok := s.vars[name]
	if !ok {
		return 0, false, ErrNotFound
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.readonly, nil
}

// Set replaces the variable's value on behalf of a client. Writes to
// read-only variables are rejected.
func (s *Store) Set(name string, value float64) error {
	v, ok := s.vars[name]
	if !ok {
		return ErrNotFound
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.readonly {
		return ErrReadOnly
	}
	v.value = value
	return nil
}

// Put replaces the variable's value from inside the hub, bypassing the
// read-only gate. This is how the hub refreshes variables it publishes
// itself (the resource monitor's readings).
func (s *Store) Put(name string, value float64) error {
	v, ok := s.vars[name]
	if !ok {
		return ErrNotFound
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	return nil
}

// Len returns the number of defined variables.
func (s *Store) Len() int {
	return len(s.vars)
}
