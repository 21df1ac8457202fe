package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Signature is the checked return type and ordered parameter types of a
// function.
type Signature struct {
	Return Type
	Params []Type
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s(%s)", s.Return, strings.Join(params, ", "))
}

// FuncTable is the function signature registry. It is filled from every
// function declaration before any body is checked, so calls may refer to
// functions defined later in the program.
type FuncTable struct {
	sigs  map[string]Signature
	order []string
}

func NewFuncTable() *FuncTable {
	return &FuncTable{sigs: make(map[string]Signature)}
}

// Register resolves and records a signature. auto is not allowed anywhere in
// a signature and void only as a return type.
func (ft *FuncTable) Register(name, returnTypeName string, paramTypeNames []string) error {
	if _, ok := ft.sigs[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFunction, name)
	}
	ret := FromName(returnTypeName)
	if ret == NoType || ret == Auto {
		return fmt.Errorf("%w: return type %q of %s", ErrInvalidType, returnTypeName, name)
	}
	params := make([]Type, len(paramTypeNames))
	for i, pn := range paramTypeNames {
		pt := FromName(pn)
		if pt == NoType || pt == Auto || pt == Void {
			return fmt.Errorf("%w: parameter %d of %s has type %q", ErrInvalidType, i+1, name, pn)
		}
		params[i] = pt
	}
	ft.sigs[name] = Signature{Return: ret, Params: params}
	ft.order = append(ft.order, name)
	return nil
}

func (ft *FuncTable) Lookup(name string) (Signature, error) {
	sig, ok := ft.sigs[name]
	if !ok {
		return Signature{}, fmt.Errorf("%w: %q", ErrUndeclaredFunction, name)
	}
	return sig, nil
}

// Names lists registered functions in registration order.
func (ft *FuncTable) Names() []string {
	return append([]string(nil), ft.order...)
}

func (ft *FuncTable) String() string {
	names := ft.Names()
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-20s  %s\n", name, ft.sigs[name])
	}
	return sb.String()
}
