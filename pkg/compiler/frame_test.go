package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func layout(t *testing.T, f *FuncDecl) *Frame {
	t.Helper()
	info, err := checkProgram(nil, f)
	be.Err(t, err, nil)
	frame, err := LayoutFrame(f, info.Funcs)
	be.Err(t, err, nil)
	return frame
}

func TestLayoutFrame(t *testing.T) {
	t.Run("SiblingBlocksGetDistinctOffsets", func(t *testing.T) {
		a := declInit("int", "a", num("1"))
		b := declInit("long", "b", num("2l"))
		f := funcDecl("main", "int", nil, &If{
			Cond: boolean(true),
			Then: block(a, printStmt(id("a"))),
			Else: block(b, printStmt(id("b"))),
		})
		frame := layout(t, f)

		sa, ok := frame.Local(a, 0)
		be.True(t, ok)
		sb, ok := frame.Local(b, 0)
		be.True(t, ok)
		be.Equal(t, sa.Offset, -4)
		be.Equal(t, sb.Offset, -16) // 8-aligned below a
		be.True(t, sa.Offset-sb.Offset >= Long.Size())
		be.Equal(t, frame.Size, 16)
		be.Equal(t, frame.Size%16, 0)
	})

	t.Run("Parameters", func(t *testing.T) {
		f := funcDecl("f", "void", params("int", "x", "float", "y", "long", "z", "bool", "w"))
		frame := layout(t, f)
		var offsets []int
		for _, p := range frame.Params {
			offsets = append(offsets, p.Offset)
		}
		be.Equal(t, offsets, []int{-4, -8, -16, -17})
		be.Equal(t, frame.Size, 32)
	})

	t.Run("UnusedLocalsHaveNoStorage", func(t *testing.T) {
		u := declInit("int", "u", num("5"))
		f := funcDecl("main", "int", nil, u, assign("u", num("6")))
		frame := layout(t, f)
		s, ok := frame.Local(u, 0)
		be.True(t, ok)
		be.True(t, s.Unused)
		be.Equal(t, frame.Size, 0)
		be.Equal(t, len(frame.Slots()), 0)
	})

	t.Run("ReadInLoopHeader", func(t *testing.T) {
		i := declInit("int", "i", num("0"))
		f := funcDecl("main", "int", nil, &For{
			Init: i,
			Cond: bin("<", id("i"), num("3")),
			Body: block(),
		})
		frame := layout(t, f)
		s, _ := frame.Local(i, 0)
		be.True(t, !s.Unused)
		be.Equal(t, s.Offset, -4)
	})

	t.Run("EveryDeclarationKeepsItsSlot", func(t *testing.T) {
		outer := declInit("int", "v", num("1"))
		inner := declInit("int", "v", num("2"))
		f := funcDecl("main", "int", nil, outer, block(inner, printStmt(id("v"))), printStmt(id("v")))
		frame := layout(t, f)
		so, _ := frame.Local(outer, 0)
		si, _ := frame.Local(inner, 0)
		be.Equal(t, so.Offset, -4)
		be.Equal(t, si.Offset, -8)
		assertContains(t, frame.String(), "frame main (size 16)")
	})

	t.Run("BoolPacking", func(t *testing.T) {
		d := &VarDecl{Type: "bool", Names: []string{"p", "q"}, Inits: []Expr{boolean(true), boolean(false)}}
		l := declInit("long", "n", num("1l"))
		f := funcDecl("main", "int", nil, d, l,
			printStmt(id("p")), printStmt(id("q")), printStmt(id("n")))
		frame := layout(t, f)
		var offsets []int
		for _, s := range frame.Slots() {
			offsets = append(offsets, s.Offset)
		}
		be.Equal(t, offsets, []int{-1, -2, -16})
		be.Equal(t, frame.Size, 16)
	})

	t.Run("UncheckedDeclaration", func(t *testing.T) {
		f := funcDecl("main", "int", nil, declInit("int", "a", num("1")), printStmt(id("a")))
		sigs := NewFuncTable()
		_ = sigs.Register("main", "int", nil)
		_, err := LayoutFrame(f, sigs)
		be.Err(t, err, ErrInternal)
	})

	t.Run("MissingSignature", func(t *testing.T) {
		_, err := LayoutFrame(funcDecl("f", "int", nil), NewFuncTable())
		be.Err(t, err, ErrInternal)
	})
}

func TestSlotAddr(t *testing.T) {
	be.Equal(t, Slot{Name: "g", Global: true}.Addr(), "g(%rip)")
	be.Equal(t, Slot{Name: "x", Offset: -12}.Addr(), "-12(%rbp)")
	be.Equal(t, Slot{Name: "x", Type: Int, Offset: -12}.String(), "int x @ -12")
}
