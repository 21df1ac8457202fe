package compiler

import (
	"math"
	"strconv"
)

// constVal is a compile-time value held at the width of its type.
type constVal struct {
	t Type
	i int64
	f float32
}

func (v constVal) String() string {
	switch v.t {
	case Float:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case UInt:
		return strconv.FormatUint(uint64(uint32(v.i)), 10)
	}
	return strconv.FormatInt(v.i, 10)
}

// wrap truncates v to the width of t the way the machine register would.
func wrap(v int64, t Type) int64 {
	switch t {
	case Int:
		return int64(int32(v))
	case UInt:
		return int64(uint32(v))
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	}
	return v
}

func convertConst(v constVal, to Type) constVal {
	if v.t == to {
		return v
	}
	if to == Float {
		if v.t == UInt {
			return constVal{t: Float, f: float32(uint32(v.i))}
		}
		return constVal{t: Float, f: float32(v.i)}
	}
	if v.t == Float {
		if to == Bool {
			return constVal{t: Bool, i: wrap(boolInt(v.f != 0), Bool)}
		}
		return constVal{t: to, i: wrap(int64(v.f), to)}
	}
	return constVal{t: to, i: wrap(v.i, to)}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// evaluator computes expression values at compile time. lookup resolves
// identifiers and may be nil; floats are only evaluated when allowFloat is
// set.
type evaluator struct {
	lookup     func(name string) (constVal, bool)
	allowFloat bool
}

// foldConst evaluates an integer subtree built from literals only. It fails
// on anything it cannot prove, including division by zero and any float.
func foldConst(e Expr) (constVal, bool) {
	return evaluator{}.eval(e)
}

func (ev evaluator) eval(e Expr) (constVal, bool) {
	if t := e.Type(); t == Float && !ev.allowFloat {
		return constVal{}, false
	}
	switch n := e.(type) {
	case *NumberLit:
		if n.Kind == Float {
			return constVal{t: Float, f: float32(n.FVal)}, true
		}
		return constVal{t: n.Kind, i: wrap(n.Value, n.Kind)}, true

	case *BoolLit:
		return constVal{t: Bool, i: boolInt(n.Value)}, true

	case *Ident:
		if ev.lookup == nil {
			return constVal{}, false
		}
		v, ok := ev.lookup(n.Name)
		if !ok {
			return constVal{}, false
		}
		return convertConst(v, n.T), true

	case *Ternary:
		cond, ok := ev.eval(n.Cond)
		if !ok {
			return constVal{}, false
		}
		if cond.i != 0 {
			return ev.eval(n.Then)
		}
		return ev.eval(n.Else)

	case *Binary:
		if n.Operand == Float && !ev.allowFloat {
			return constVal{}, false
		}
		l, ok := ev.eval(n.Left)
		if !ok {
			return constVal{}, false
		}
		r, ok := ev.eval(n.Right)
		if !ok {
			return constVal{}, false
		}
		l, r = convertConst(l, n.Operand), convertConst(r, n.Operand)
		if n.Operand == Float {
			return evalFloat(n.Op, l.f, r.f)
		}
		return evalInt(n.Op, l.i, r.i, n.Operand)
	}
	return constVal{}, false
}

func evalInt(op BinaryOp, l, r int64, t Type) (constVal, bool) {
	switch op {
	case OpAdd:
		return constVal{t: t, i: wrap(l+r, t)}, true
	case OpSub:
		return constVal{t: t, i: wrap(l-r, t)}, true
	case OpMul:
		return constVal{t: t, i: wrap(l*r, t)}, true
	case OpDiv:
		if r == 0 {
			return constVal{}, false
		}
		switch t {
		case UInt:
			return constVal{t: t, i: int64(uint32(l) / uint32(r))}, true
		case Int:
			if l == math.MinInt32 && r == -1 {
				return constVal{}, false // idivl traps
			}
		case Long:
			if l == math.MinInt64 && r == -1 {
				return constVal{}, false
			}
		}
		return constVal{t: t, i: wrap(l/r, t)}, true
	case OpPow:
		return constVal{t: t, i: ipow(l, r, t)}, true
	case OpLess:
		if t == UInt {
			return constVal{t: Bool, i: boolInt(uint32(l) < uint32(r))}, true
		}
		return constVal{t: Bool, i: boolInt(l < r)}, true
	}
	return constVal{}, false
}

// ipow matches the generated count-down loop: a non-positive signed exponent
// yields 1, otherwise base is multiplied exp times with wrapping. Square and
// multiply gives the same result modulo the register width.
func ipow(base, exp int64, t Type) int64 {
	if t == UInt {
		exp = int64(uint32(exp))
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = wrap(result*base, t)
		}
		base = wrap(base*base, t)
		exp >>= 1
	}
	return result
}

func evalFloat(op BinaryOp, l, r float32) (constVal, bool) {
	switch op {
	case OpAdd:
		return constVal{t: Float, f: l + r}, true
	case OpSub:
		return constVal{t: Float, f: l - r}, true
	case OpMul:
		return constVal{t: Float, f: l * r}, true
	case OpDiv:
		return constVal{t: Float, f: l / r}, true
	case OpPow:
		if r > 1<<16 {
			return constVal{}, false
		}
		result := float32(1)
		for n := int64(r); n > 0; n-- {
			result *= l
		}
		return constVal{t: Float, f: result}, true
	case OpLess:
		return constVal{t: Bool, i: boolInt(l < r)}, true
	}
	return constVal{}, false
}
