package compiler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BinaryOp is one of the supported binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpLess
)

var opSymbols = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpPow: "**", OpLess: "<"}

func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(opSymbols) {
		return "?"
	}
	return opSymbols[op]
}

// ParseOp maps an operator symbol to its BinaryOp.
func ParseOp(sym string) (BinaryOp, bool) {
	for i, s := range opSymbols {
		if s == sym {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr leaves the result in %rax (integers, bool) or %xmm0 (float).
type Expr interface {
	exprNode()
	String() string
	Pos() int
	// Type is the type resolved by the checker, NoType before checking.
	Type() Type
}

// typed carries the checker's annotation for an expression node.
type typed struct {
	T Type
}

func (t *typed) Type() Type { return t.T }

// NumberLit is a numeric literal. Its type is fixed by its form:
//
//	10    int
//	10l   long
//	10u   unsigned int
//	1.5   float
//	1f    float
type NumberLit struct {
	typed
	Line  int
	Kind  Type // Int, Long, UInt or Float
	Value int64
	FVal  float64
}

func (*NumberLit) exprNode()  {}
func (n *NumberLit) Pos() int { return n.Line }
func (n *NumberLit) String() string {
	switch n.Kind {
	case Float:
		return strconv.FormatFloat(n.FVal, 'g', -1, 32) + "f"
	case Long:
		return fmt.Sprintf("%dl", n.Value)
	case UInt:
		return fmt.Sprintf("%du", n.Value)
	}
	return strconv.FormatInt(n.Value, 10)
}

// ParseNumber classifies a numeric literal by its spelling: a decimal point
// makes it a float; a single trailing suffix u/U, l/L or f/F selects unsigned,
// long or float. Integer literals wider than their kind are rejected.
func ParseNumber(text string) (*NumberLit, error) {
	s := text
	kind := Int
	if s != "" {
		switch s[len(s)-1] {
		case 'u', 'U':
			kind, s = UInt, s[:len(s)-1]
		case 'l', 'L':
			kind, s = Long, s[:len(s)-1]
		case 'f', 'F':
			kind, s = Float, s[:len(s)-1]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("malformed numeric literal %q", text)
	}
	if strings.Contains(s, ".") {
		kind = Float
	}
	if kind == Float {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed numeric literal %q", text)
		}
		return &NumberLit{Kind: Float, FVal: f}, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) || (err == nil && v > literalMax[kind]) {
		return nil, fmt.Errorf("numeric literal %q overflows %s", text, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed numeric literal %q", text)
	}
	return &NumberLit{Kind: kind, Value: int64(v)}, nil
}

// literalMax is the largest magnitude an integer literal of each kind can
// spell. Literals are unsigned; negative values are written as a subtraction.
var literalMax = map[Type]uint64{
	Int:  math.MaxInt32,
	UInt: math.MaxUint32,
	Long: math.MaxInt64,
}

// BoolLit is true or false.
type BoolLit struct {
	typed
	Line  int
	Value bool
}

func (*BoolLit) exprNode()  {}
func (b *BoolLit) Pos() int { return b.Line }
func (b *BoolLit) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// Ident is a read of a named variable.
//
//	print(x);
//	      ^  Ident{Name: "x"}
type Ident struct {
	typed
	Line int
	Name string
}

func (*Ident) exprNode()        {}
func (i *Ident) Pos() int       { return i.Line }
func (i *Ident) String() string { return i.Name }

// Binary represents Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | Right
//	| Op
//	Left
//
// After checking, Type() is the result type and Operand the common type both
// operands are promoted to. They only differ for '<', whose result is bool.
type Binary struct {
	typed
	Line    int
	Op      BinaryOp
	Left    Expr
	Right   Expr
	Operand Type
}

func (*Binary) exprNode()  {}
func (b *Binary) Pos() int { return b.Line }
func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Ternary represents Cond ? Then : Else.
type Ternary struct {
	typed
	Line int
	Cond Expr
	Then Expr
	Else Expr
}

func (*Ternary) exprNode()  {}
func (t *Ternary) Pos() int { return t.Line }
func (t *Ternary) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.Cond, t.Then, t.Else)
}

// Call represents name(args).
type Call struct {
	typed
	Line int
	Name string
	Args []Expr
}

func (*Call) exprNode()  {}
func (c *Call) Pos() int { return c.Line }
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
	Pos() int
}

// VarDecl represents  type a = e1, b, c = e3;
//
// Inits is index-aligned with Names; a nil entry means no initializer. For
// auto declarations the checker rewrites Type with the inferred keyword.
type VarDecl struct {
	Line     int
	Type     string
	Names    []string
	Inits    []Expr
	Resolved Type
}

func (*VarDecl) stmtNode()  {}
func (d *VarDecl) Pos() int { return d.Line }

// Init returns the initializer of the i-th name, or nil.
func (d *VarDecl) Init(i int) Expr {
	if i < len(d.Inits) {
		return d.Inits[i]
	}
	return nil
}

func (d *VarDecl) String() string {
	parts := make([]string, len(d.Names))
	for i, name := range d.Names {
		if init := d.Init(i); init != nil {
			parts[i] = fmt.Sprintf("%s = %s", name, init)
		} else {
			parts[i] = name
		}
	}
	return fmt.Sprintf("VarDecl(%s %s)", d.Type, strings.Join(parts, ", "))
}

// Assign represents  Name = Value;
type Assign struct {
	Line  int
	Name  string
	Value Expr
}

func (*Assign) stmtNode()  {}
func (a *Assign) Pos() int { return a.Line }
func (a *Assign) String() string {
	return fmt.Sprintf("Assign(%s = %s)", a.Name, a.Value)
}

// Print represents  printf("...", expr);
type Print struct {
	Line int
	Expr Expr
}

func (*Print) stmtNode()        {}
func (p *Print) Pos() int       { return p.Line }
func (p *Print) String() string { return fmt.Sprintf("Print(%s)", p.Expr) }

// Return represents  return [expr];
type Return struct {
	Line int
	Expr Expr // may be nil
}

func (*Return) stmtNode()  {}
func (r *Return) Pos() int { return r.Line }
func (r *Return) String() string {
	if r.Expr == nil {
		return "Return"
	}
	return fmt.Sprintf("Return(%s)", r.Expr)
}

// Block represents { statement; ... } and owns a lexical scope.
type Block struct {
	Line  int
	Stmts []Stmt
}

func (*Block) stmtNode()        {}
func (b *Block) Pos() int       { return b.Line }
func (b *Block) String() string { return fmt.Sprintf("Block(len=%d)", len(b.Stmts)) }

// If represents if (cond) then [else els].
type If struct {
	Line int
	Cond Expr
	Then *Block
	Else *Block // may be nil
}

func (*If) stmtNode()  {}
func (i *If) Pos() int { return i.Line }
func (i *If) String() string {
	if i.Else != nil {
		return fmt.Sprintf("If(%s then %s else %s)", i.Cond, i.Then, i.Else)
	}
	return fmt.Sprintf("If(%s then %s)", i.Cond, i.Then)
}

// While represents while (cond) body.
type While struct {
	Line int
	Cond Expr
	Body *Block
}

func (*While) stmtNode()  {}
func (w *While) Pos() int { return w.Line }
func (w *While) String() string {
	return fmt.Sprintf("While(%s do %s)", w.Cond, w.Body)
}

// For represents for (init; cond; step) body. Init, Cond and Step are
// optional. The header owns a scope that encloses the whole loop.
type For struct {
	Line int
	Init Stmt
	Cond Expr
	Step Stmt
	Body *Block
}

func (*For) stmtNode()  {}
func (f *For) Pos() int { return f.Line }
func (f *For) String() string {
	return fmt.Sprintf("For(init=%v, cond=%v, step=%v, body=%s)", f.Init, f.Cond, f.Step, f.Body)
}

// ExprStmt is a call evaluated for its side effects.
type ExprStmt struct {
	Line int
	Expr Expr
}

func (*ExprStmt) stmtNode()        {}
func (e *ExprStmt) Pos() int       { return e.Line }
func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.Expr) }

//  Top level

// Param is one declared function parameter.
type Param struct {
	Name string
	Type string
}

// FuncDecl represents  type name(params) { body }
type FuncDecl struct {
	Line       int
	Name       string
	ReturnType string
	Params     []Param
	Body       *Block
}

func (f *FuncDecl) String() string {
	return fmt.Sprintf("FuncDecl(%s %s, params=%v, body=%s)", f.ReturnType, f.Name, f.Params, f.Body)
}

// Program is the root. Top holds the top-level statements in source order:
// global declarations, and statements that run once before main.
type Program struct {
	Top   []Stmt
	Funcs []*FuncDecl
}

// Func returns the function declaration called name, or nil.
func (p *Program) Func(name string) *FuncDecl {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
