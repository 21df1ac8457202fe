package compiler

import (
	"fmt"
	"strings"
)

// Env is a stack of lexical scopes mapping names to values of type T. The
// checker instantiates it with Type, the code generator with frame slots.
//
// Lookups search from the innermost scope outwards; the first hit wins.
// Scopes remember insertion order so dumps are deterministic.
type Env[T any] struct {
	scopes []*scope[T]
}

type scope[T any] struct {
	names  []string
	values map[string]T
}

func NewEnv[T any]() *Env[T] {
	return &Env[T]{}
}

// PushScope opens a new innermost scope. Every push site pairs it with
// defer PopScope().
func (e *Env[T]) PushScope() {
	e.scopes = append(e.scopes, &scope[T]{values: make(map[string]T)})
}

func (e *Env[T]) PopScope() {
	if len(e.scopes) == 0 {
		panic("PopScope without matching PushScope")
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Depth is the number of open scopes.
func (e *Env[T]) Depth() int { return len(e.scopes) }

// Declare binds name in the innermost scope. Shadowing an outer binding is
// fine; a second binding in the same scope is ErrDuplicateDeclaration.
func (e *Env[T]) Declare(name string, v T) error {
	if len(e.scopes) == 0 {
		panic("Declare with no open scope")
	}
	s := e.scopes[len(e.scopes)-1]
	if _, ok := s.values[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateDeclaration, name)
	}
	s.names = append(s.names, name)
	s.values[name] = v
	return nil
}

func (e *Env[T]) Lookup(name string) (T, error) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v, ok := e.scopes[i].values[name]; ok {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrUndeclaredName, name)
}

func (e *Env[T]) IsDeclared(name string) bool {
	_, err := e.Lookup(name)
	return err == nil
}

// DeclaredHere reports whether the innermost scope binds name.
func (e *Env[T]) DeclaredHere(name string) bool {
	if len(e.scopes) == 0 {
		return false
	}
	_, ok := e.scopes[len(e.scopes)-1].values[name]
	return ok
}

// Update rewrites the nearest existing binding of name in place.
func (e *Env[T]) Update(name string, v T) error {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if _, ok := e.scopes[i].values[name]; ok {
			e.scopes[i].values[name] = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUndeclaredName, name)
}

// Scope calls fn for each binding of scope i (0 is outermost) in insertion
// order.
func (e *Env[T]) Scope(i int, fn func(name string, v T)) {
	s := e.scopes[i]
	for _, name := range s.names {
		fn(name, s.values[name])
	}
}

// String returns a deterministically ordered dump of the open scopes.
func (e *Env[T]) String() string {
	if len(e.scopes) == 0 {
		return "(no scopes)\n"
	}
	var sb strings.Builder
	for i := range e.scopes {
		fmt.Fprintf(&sb, "Scope %d:\n", i)
		e.Scope(i, func(name string, v T) {
			fmt.Fprintf(&sb, "  %-20s  %v\n", name, v)
		})
	}
	return sb.String()
}
