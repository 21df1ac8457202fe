package compiler

import (
	"errors"
	"fmt"
)

// Semantic errors. Every check failure unwraps to exactly one of these.
var (
	ErrInvalidType          = errors.New("invalid type")
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrDuplicateFunction    = errors.New("duplicate function")
	ErrUndeclaredName       = errors.New("undeclared name")
	ErrUndeclaredFunction   = errors.New("undeclared function")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrArityMismatch        = errors.New("arity mismatch")
	ErrMisplacedReturn      = errors.New("return outside function")
)

// Code generation errors. These are not user errors: ErrUnsupported marks
// programs that check but exceed what the backend can lower, ErrInternal marks
// a broken invariant between the checker and the generator.
var (
	ErrUnsupported = errors.New("unsupported")
	ErrInternal    = errors.New("internal compiler error")
)

// ErrorCode is a stable identifier for a class of semantic error.
type ErrorCode struct {
	Code        string
	Name        string
	Description string
}

var errorCodes = map[error]ErrorCode{
	ErrInvalidType:          {"E3001", "invalid-type", "unknown or disallowed type keyword"},
	ErrDuplicateDeclaration: {"E3002", "duplicate-declaration", "name already declared in this scope"},
	ErrDuplicateFunction:    {"E3003", "duplicate-function", "function already defined"},
	ErrUndeclaredName:       {"E3004", "undeclared-name", "use of an undeclared variable"},
	ErrUndeclaredFunction:   {"E3005", "undeclared-function", "call to an undeclared function"},
	ErrTypeMismatch:         {"E3006", "type-mismatch", "incompatible types"},
	ErrArityMismatch:        {"E3007", "arity-mismatch", "wrong number of arguments"},
	ErrMisplacedReturn:      {"E3008", "misplaced-return", "return outside any function"},
}

// CodeFor returns the catalogue entry for a semantic sentinel.
func CodeFor(err error) (ErrorCode, bool) {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return ErrorCode{}, false
}

// SemanticError is the first violation found by Check.
type SemanticError struct {
	Code ErrorCode
	Line int
	Msg  string
	Kind error
}

func (e *SemanticError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s [%s]: %s", e.Line, e.Kind, e.Code.Code, e.Msg)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code.Code, e.Msg)
}

func (e *SemanticError) Unwrap() error { return e.Kind }

func semErr(kind error, line int, format string, args ...any) *SemanticError {
	return &SemanticError{
		Code: errorCodes[kind],
		Line: line,
		Msg:  fmt.Sprintf(format, args...),
		Kind: kind,
	}
}
