package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestEnv(t *testing.T) {
	t.Run("Shadowing", func(t *testing.T) {
		e := NewEnv[Type]()
		e.PushScope()
		be.Err(t, e.Declare("x", Int), nil)

		e.PushScope()
		be.Err(t, e.Declare("x", Float), nil)
		got, err := e.Lookup("x")
		be.Err(t, err, nil)
		be.Equal(t, got, Float)
		be.True(t, e.DeclaredHere("x"))
		e.PopScope()

		got, _ = e.Lookup("x")
		be.Equal(t, got, Int)
		be.Equal(t, e.Depth(), 1)
	})

	t.Run("Duplicate", func(t *testing.T) {
		e := NewEnv[Type]()
		e.PushScope()
		be.Err(t, e.Declare("x", Int), nil)
		be.Err(t, e.Declare("x", Long), ErrDuplicateDeclaration)
	})

	t.Run("Undeclared", func(t *testing.T) {
		e := NewEnv[int]()
		e.PushScope()
		_, err := e.Lookup("nope")
		be.Err(t, err, ErrUndeclaredName)
		be.True(t, !e.IsDeclared("nope"))
		be.Err(t, e.Update("nope", 1), ErrUndeclaredName)
	})

	t.Run("UpdateNearest", func(t *testing.T) {
		e := NewEnv[Type]()
		e.PushScope()
		_ = e.Declare("v", Auto)
		e.PushScope()
		be.True(t, !e.DeclaredHere("v"))
		be.Err(t, e.Update("v", Long), nil)
		e.PopScope()
		got, _ := e.Lookup("v")
		be.Equal(t, got, Long)
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		e := NewEnv[int]()
		e.PushScope()
		for i, name := range []string{"c", "a", "b"} {
			_ = e.Declare(name, i)
		}
		var names []string
		e.Scope(0, func(name string, _ int) { names = append(names, name) })
		be.Equal(t, names, []string{"c", "a", "b"})
		assertContains(t, e.String(), "Scope 0:")
	})

	t.Run("UnbalancedPop", func(t *testing.T) {
		defer func() {
			be.True(t, recover() != nil)
		}()
		NewEnv[int]().PopScope()
	})
}
