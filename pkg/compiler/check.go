package compiler

import (
	"errors"
	"fmt"
)

// Info is what the checker hands to the code generator.
type Info struct {
	Funcs *FuncTable

	// Globals maps every global name to its final type. GlobalNames keeps
	// first-declaration order.
	Globals     map[string]Type
	GlobalNames []string
}

// checker is the pass-local state of one Check call.
type checker struct {
	funcs *FuncTable
	env   *Env[Type]
	ret   *Type // nil outside functions
	info  *Info
}

// Check validates prog and annotates it in place: every expression gets its
// resolved type and every declaration its Resolved type. auto declarations
// have their Type keyword rewritten to the inferred one.
//
// Checking stops at the first violation, which is returned as a
// *SemanticError.
func Check(prog *Program) (*Info, error) {
	c := &checker{
		funcs: NewFuncTable(),
		env:   NewEnv[Type](),
		info:  &Info{Globals: make(map[string]Type)},
	}
	c.info.Funcs = c.funcs

	for _, fn := range prog.Funcs {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Type
		}
		if err := c.funcs.Register(fn.Name, fn.ReturnType, params); err != nil {
			return nil, asSemantic(err, fn.Line)
		}
	}

	c.env.PushScope()
	defer c.env.PopScope()

	for _, s := range prog.Top {
		if err := c.checkStmt(s); err != nil {
			return nil, err
		}
	}
	for _, fn := range prog.Funcs {
		if err := c.checkFunc(fn); err != nil {
			return nil, err
		}
	}
	return c.info, nil
}

var semanticKinds = []error{
	ErrInvalidType, ErrDuplicateDeclaration, ErrDuplicateFunction, ErrUndeclaredName,
	ErrUndeclaredFunction, ErrTypeMismatch, ErrArityMismatch, ErrMisplacedReturn,
}

// asSemantic attaches a line to an error from the environment or registry.
func asSemantic(err error, line int) error {
	var se *SemanticError
	if errors.As(err, &se) {
		return err
	}
	for _, kind := range semanticKinds {
		if errors.Is(err, kind) {
			return semErr(kind, line, "%s", err.Error())
		}
	}
	return err
}

func (c *checker) checkFunc(fn *FuncDecl) error {
	sig, err := c.funcs.Lookup(fn.Name)
	if err != nil {
		return asSemantic(err, fn.Line)
	}

	saved := c.ret
	c.ret = &sig.Return
	defer func() { c.ret = saved }()

	c.env.PushScope()
	defer c.env.PopScope()

	for i, p := range fn.Params {
		if err := c.bind(p.Name, sig.Params[i], fn.Line, true); err != nil {
			return err
		}
	}
	if fn.Body == nil {
		return nil
	}
	return c.checkBlock(fn.Body)
}

// bind introduces name in the innermost scope. With rebind set an existing
// binding in that same scope is overwritten instead of rejected.
func (c *checker) bind(name string, t Type, line int, rebind bool) error {
	if rebind && c.env.DeclaredHere(name) {
		return asSemantic(c.env.Update(name, t), line)
	}
	if err := c.env.Declare(name, t); err != nil {
		return asSemantic(err, line)
	}
	return nil
}

func (c *checker) checkBlock(b *Block) error {
	c.env.PushScope()
	defer c.env.PopScope()
	for _, s := range b.Stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStmt(s Stmt) error {
	switch n := s.(type) {
	case *VarDecl:
		return c.checkDecl(n)

	case *Assign:
		target, err := c.env.Lookup(n.Name)
		if err != nil {
			return asSemantic(err, n.Line)
		}
		vt, err := c.checkExpr(n.Value)
		if err != nil {
			return err
		}
		if target == Auto {
			return asSemantic(c.env.Update(n.Name, vt), n.Line)
		}
		if !IsAssignableFrom(target, vt) {
			return semErr(ErrTypeMismatch, n.Line, "cannot assign %s to %s of type %s", vt, n.Name, target)
		}
		return nil

	case *Print:
		t, err := c.checkExpr(n.Expr)
		if err != nil {
			return err
		}
		if !t.IsPrintable() {
			return semErr(ErrTypeMismatch, n.Line, "cannot print a value of type %s", t)
		}
		return nil

	case *Return:
		if c.ret == nil {
			return semErr(ErrMisplacedReturn, n.Line, "return outside any function")
		}
		want := *c.ret
		if n.Expr == nil {
			if want != Void {
				return semErr(ErrTypeMismatch, n.Line, "missing return value of type %s", want)
			}
			return nil
		}
		t, err := c.checkExpr(n.Expr)
		if err != nil {
			return err
		}
		if want == Void {
			if t == Void {
				return nil
			}
			return semErr(ErrTypeMismatch, n.Line, "void function returns a value of type %s", t)
		}
		if !IsAssignableFrom(want, t) {
			return semErr(ErrTypeMismatch, n.Line, "cannot return %s from a function returning %s", t, want)
		}
		return nil

	case *If:
		if err := c.checkCond(n.Cond, "if"); err != nil {
			return err
		}
		if err := c.checkBlock(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return c.checkBlock(n.Else)
		}
		return nil

	case *While:
		if err := c.checkCond(n.Cond, "while"); err != nil {
			return err
		}
		return c.checkBlock(n.Body)

	case *For:
		c.env.PushScope()
		defer c.env.PopScope()
		if n.Init != nil {
			if err := c.checkStmt(n.Init); err != nil {
				return err
			}
		}
		if n.Cond != nil {
			if err := c.checkCond(n.Cond, "for"); err != nil {
				return err
			}
		}
		if err := c.checkBlock(n.Body); err != nil {
			return err
		}
		if n.Step != nil {
			return c.checkStmt(n.Step)
		}
		return nil

	case *ExprStmt:
		if _, ok := n.Expr.(*Call); !ok {
			return semErr(ErrTypeMismatch, n.Line, "expression statement must be a call, got %s", n.Expr)
		}
		_, err := c.checkExpr(n.Expr)
		return err

	case *Block:
		return c.checkBlock(n)
	}
	return fmt.Errorf("%w: unexpected statement %T", ErrInternal, s)
}

func (c *checker) checkCond(e Expr, what string) error {
	t, err := c.checkExpr(e)
	if err != nil {
		return err
	}
	if t != Bool {
		return semErr(ErrTypeMismatch, e.Pos(), "%s condition must be bool, got %s", what, t)
	}
	return nil
}

// checkDecl handles both explicit and auto declarations. Declarations in the
// global scope may rebind an existing global; inside blocks a repeat in the
// same scope is a duplicate.
func (c *checker) checkDecl(d *VarDecl) error {
	global := c.env.Depth() == 1
	declared := FromName(d.Type)

	switch declared {
	case NoType, Void:
		return semErr(ErrInvalidType, d.Line, "invalid variable type %q", d.Type)

	case Auto:
		inferred := NoType
		for i, name := range d.Names {
			init := d.Init(i)
			if init == nil {
				return semErr(ErrInvalidType, d.Line, "auto variable %q requires an initializer", name)
			}
			t, err := c.checkExpr(init)
			if err != nil {
				return err
			}
			if i == 0 {
				if !t.isValue() {
					return semErr(ErrInvalidType, d.Line, "cannot infer a variable type from %s", t)
				}
				inferred = t
			} else if t != inferred {
				return semErr(ErrTypeMismatch, d.Line, "auto initializers disagree: %s is %s, expected %s", name, t, inferred)
			}
			if err := c.declareVar(name, inferred, d.Line, global); err != nil {
				return err
			}
		}
		d.Resolved = inferred
		d.Type = inferred.String()
		return nil
	}

	for i, name := range d.Names {
		if init := d.Init(i); init != nil {
			t, err := c.checkExpr(init)
			if err != nil {
				return err
			}
			if !IsAssignableFrom(declared, t) {
				return semErr(ErrTypeMismatch, d.Line, "cannot initialize %s %s with %s", declared, name, t)
			}
		}
		if err := c.declareVar(name, declared, d.Line, global); err != nil {
			return err
		}
	}
	d.Resolved = declared
	return nil
}

func (c *checker) declareVar(name string, t Type, line int, global bool) error {
	if err := c.bind(name, t, line, global); err != nil {
		return err
	}
	if global {
		if _, seen := c.info.Globals[name]; !seen {
			c.info.GlobalNames = append(c.info.GlobalNames, name)
		}
		c.info.Globals[name] = t
	}
	return nil
}

func (c *checker) checkExpr(e Expr) (Type, error) {
	switch n := e.(type) {
	case *NumberLit:
		n.T = n.Kind
		return n.T, nil

	case *BoolLit:
		n.T = Bool
		return Bool, nil

	case *Ident:
		t, err := c.env.Lookup(n.Name)
		if err != nil {
			return NoType, asSemantic(err, n.Line)
		}
		n.T = t
		return t, nil

	case *Binary:
		lt, err := c.checkExpr(n.Left)
		if err != nil {
			return NoType, err
		}
		rt, err := c.checkExpr(n.Right)
		if err != nil {
			return NoType, err
		}
		result, operand, ok := BinaryResult(n.Op, lt, rt)
		if !ok {
			return NoType, semErr(ErrTypeMismatch, n.Line, "operator %s not defined for %s and %s", n.Op, lt, rt)
		}
		n.T, n.Operand = result, operand
		return result, nil

	case *Ternary:
		if err := c.checkCond(n.Cond, "ternary"); err != nil {
			return NoType, err
		}
		tt, err := c.checkExpr(n.Then)
		if err != nil {
			return NoType, err
		}
		et, err := c.checkExpr(n.Else)
		if err != nil {
			return NoType, err
		}
		if tt != et {
			return NoType, semErr(ErrTypeMismatch, n.Line, "ternary branches differ: %s and %s", tt, et)
		}
		n.T = tt
		return tt, nil

	case *Call:
		sig, err := c.funcs.Lookup(n.Name)
		if err != nil {
			return NoType, asSemantic(err, n.Line)
		}
		if len(n.Args) != len(sig.Params) {
			return NoType, semErr(ErrArityMismatch, n.Line, "%s expects %d arguments, got %d", n.Name, len(sig.Params), len(n.Args))
		}
		for i, arg := range n.Args {
			at, err := c.checkExpr(arg)
			if err != nil {
				return NoType, err
			}
			if !IsAssignableFrom(sig.Params[i], at) {
				return NoType, semErr(ErrTypeMismatch, n.Line, "argument %d of %s: cannot use %s as %s", i+1, n.Name, at, sig.Params[i])
			}
		}
		n.T = sig.Return
		return sig.Return, nil
	}
	return NoType, fmt.Errorf("%w: unexpected expression %T", ErrInternal, e)
}
