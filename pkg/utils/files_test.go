package utils

import (
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestOutputsFor(t *testing.T) {
	t.Run("NextToInput", func(t *testing.T) {
		o := OutputsFor(filepath.Join("progs", "sum.yaml"), "")
		be.Equal(t, o.Asm, filepath.Join("progs", "sum.s"))
		be.Equal(t, o.Stack, filepath.Join("progs", "sum_stack.json"))
		be.Equal(t, o.AsmMap, filepath.Join("progs", "sum_stack.json.asm.json"))
		be.Equal(t, o.Image, filepath.Join("progs", "sum_stack.png"))
	})

	t.Run("OutDir", func(t *testing.T) {
		o := OutputsFor(filepath.Join("progs", "sum.ast.json"), "build")
		be.Equal(t, o.Asm, filepath.Join("build", "sum.ast.s"))
	})
}

func TestResolveInput(t *testing.T) {
	abs, dir, err := ResolveInput(filepath.Join("a", "..", "a", "b.yaml"))
	be.Err(t, err, nil)
	be.True(t, filepath.IsAbs(abs))
	be.Equal(t, filepath.Base(abs), "b.yaml")
	be.Equal(t, filepath.Base(dir), "a")
	be.Equal(t, filepath.Dir(abs), dir)
}
