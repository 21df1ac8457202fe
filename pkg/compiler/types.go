package compiler

// Type is one of the closed set of primitive type tags. Equality is tag
// equality; there is no structural subtyping.
type Type int

const (
	NoType Type = iota // unresolved / invalid, never a legal variable type
	Void
	Int   // int32
	Float // float32
	UInt  // uint32
	Long  // int64
	Bool
	Auto
)

var typeNames = [...]string{
	NoType: "notype",
	Void:   "void",
	Int:    "int",
	Float:  "float",
	UInt:   "unsigned int",
	Long:   "long",
	Bool:   "bool",
	Auto:   "auto",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "notype"
	}
	return typeNames[t]
}

// FromName maps a type keyword to its tag. Unknown keywords yield NoType and
// callers must treat that as an invalid declaration.
func FromName(name string) Type {
	switch name {
	case "int":
		return Int
	case "long", "long int":
		return Long
	case "float":
		return Float
	case "void":
		return Void
	case "unsigned int":
		return UInt
	case "bool":
		return Bool
	case "auto":
		return Auto
	}
	return NoType
}

// IsAssignableFrom reports whether a value of type src may be stored into
// storage of type target. Beyond exact matches the only implicit widenings are
// long<-int, unsigned<-int and float<-int.
func IsAssignableFrom(target, src Type) bool {
	if target == src {
		return true
	}
	switch target {
	case Long:
		return src == Int
	case UInt:
		return src == Int
	case Float:
		return src == Int
	}
	return false
}

// ArithResult resolves the result type of an arithmetic operator applied to
// operands of type l and r.
//
// Mixing int and unsigned int yields int, while mixing long and unsigned int
// yields long. The asymmetry is deliberate and pinned by tests.
func ArithResult(l, r Type) (Type, bool) {
	switch {
	case l == Float || r == Float:
		// float wins over any other value type, bool included
		if !l.isValue() || !r.isValue() {
			return NoType, false
		}
		return Float, true
	case l == Long && r == Long:
		return Long, true
	case (l == Long && r == Int) || (l == Int && r == Long):
		return Long, true
	case l == Int && r == Int:
		return Int, true
	case l == UInt && r == UInt:
		return UInt, true
	case (l == Int && r == UInt) || (l == UInt && r == Int):
		return Int, true
	case (l == Long && r == UInt) || (l == UInt && r == Long):
		return Long, true
	}
	return NoType, false
}

// BinaryResult resolves a binary operator. result is the type of the whole
// expression; operand is the common type both sides are promoted to before the
// operation runs. They differ only for relational operators.
func BinaryResult(op BinaryOp, l, r Type) (result, operand Type, ok bool) {
	operand, ok = ArithResult(l, r)
	if !ok {
		return NoType, NoType, false
	}
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return operand, operand, true
	case OpLess:
		return Bool, operand, true
	}
	return NoType, NoType, false
}

func (t Type) IsNumeric() bool {
	return t == Int || t == UInt || t == Long || t == Float
}

func (t Type) isValue() bool { return t.IsNumeric() || t == Bool }

func (t Type) IsInteger() bool {
	return t == Int || t == UInt || t == Long || t == Bool
}

func (t Type) IsFloat() bool { return t == Float }

// IsSigned reports whether integer arithmetic on t uses signed instructions.
func (t Type) IsSigned() bool { return t == Int || t == Long }

// IsPrintable reports whether print accepts a value of type t.
func (t Type) IsPrintable() bool {
	return t == Int || t == Long || t == UInt || t == Float || t == Bool
}

// Size is the storage size in bytes.
func (t Type) Size() int {
	switch t {
	case Bool:
		return 1
	case Int, UInt, Float:
		return 4
	case Long:
		return 8
	}
	return 0
}

// Align is the required storage alignment in bytes.
func (t Type) Align() int {
	if s := t.Size(); s > 0 {
		return s
	}
	return 1
}
