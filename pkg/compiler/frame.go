package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Slot is the storage of one variable. Locals and parameters live at Offset
// from %rbp; globals are addressed by name.
type Slot struct {
	Name   string
	Offset int
	Type   Type
	Global bool
	// Unused marks a local that is never read. It has no storage and stores
	// to it are dropped.
	Unused bool
}

// Addr is the operand that addresses the slot.
func (s Slot) Addr() string {
	if s.Global {
		return s.Name + "(%rip)"
	}
	return fmt.Sprintf("%d(%%rbp)", s.Offset)
}

func (s Slot) String() string {
	switch {
	case s.Global:
		return fmt.Sprintf("%s %s (global)", s.Type, s.Name)
	case s.Unused:
		return fmt.Sprintf("%s %s (unused)", s.Type, s.Name)
	}
	return fmt.Sprintf("%s %s @ %d", s.Type, s.Name, s.Offset)
}

// declKey identifies one name of one declaration statement.
type declKey struct {
	decl  *VarDecl
	index int
}

// Frame is the stack layout of one function. Every declaration occurrence
// keeps its own offset for the whole function, so sibling blocks never share
// storage.
type Frame struct {
	Func   string
	Size   int
	Params []Slot

	locals map[declKey]Slot
	order  []Slot
}

// Local returns the slot of the i-th name of d. Declarations whose name is
// never read come back with Unused set.
func (f *Frame) Local(d *VarDecl, i int) (Slot, bool) {
	s, ok := f.locals[declKey{d, i}]
	return s, ok
}

// Slots lists parameters then locals in allocation order.
func (f *Frame) Slots() []Slot {
	return append(append([]Slot(nil), f.Params...), f.order...)
}

// String returns a deterministic dump of the layout.
func (f *Frame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %s (size %d)\n", f.Func, f.Size)
	for _, s := range f.Params {
		fmt.Fprintf(&sb, "  param %-16s %-12s %d\n", s.Name, s.Type, s.Offset)
	}
	for _, s := range f.order {
		fmt.Fprintf(&sb, "  local %-16s %-12s %d\n", s.Name, s.Type, s.Offset)
	}
	return sb.String()
}

// LayoutFrame runs before a function body is emitted. Parameters always get
// a slot; locals only when their name is read somewhere in the body. Slots are
// handed out top-down in program order, each aligned to its type, and the
// total is rounded up to 16 bytes.
func LayoutFrame(fn *FuncDecl, sigs *FuncTable) (*Frame, error) {
	sig, err := sigs.Lookup(fn.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: layout of %s: %v", ErrInternal, fn.Name, err)
	}
	if len(sig.Params) != len(fn.Params) {
		return nil, fmt.Errorf("%w: layout of %s: signature has %d parameters, declaration %d",
			ErrInternal, fn.Name, len(sig.Params), len(fn.Params))
	}

	f := &Frame{Func: fn.Name, locals: make(map[declKey]Slot)}
	p := 0
	alloc := func(t Type) int {
		p -= t.Size()
		p = -alignUp(-p, t.Align())
		return p
	}

	for i, param := range fn.Params {
		t := sig.Params[i]
		f.Params = append(f.Params, Slot{Name: param.Name, Type: t, Offset: alloc(t)})
	}

	used := usedNames(fn.Body)
	var layoutErr error
	walkStmt(fn.Body, func(s Stmt) {
		d, ok := s.(*VarDecl)
		if !ok || layoutErr != nil {
			return
		}
		if d.Resolved.Size() == 0 {
			layoutErr = fmt.Errorf("%w: declaration of %s on line %d has no resolved type",
				ErrInternal, strings.Join(d.Names, ", "), d.Line)
			return
		}
		for i, name := range d.Names {
			slot := Slot{Name: name, Type: d.Resolved}
			if used[name] {
				slot.Offset = alloc(d.Resolved)
				f.order = append(f.order, slot)
			} else {
				slot.Unused = true
			}
			f.locals[declKey{d, i}] = slot
		}
	})
	if layoutErr != nil {
		return nil, layoutErr
	}

	f.Size = alignUp(-p, 16)
	return f, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
