package compiler

import (
	"strings"
	"testing"
)

// assertContains checks if the generated code contains the expected substring.
func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("Expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

func assertNotContains(t *testing.T, code, unexpected string) {
	t.Helper()
	if strings.Contains(code, unexpected) {
		t.Errorf("Expected code NOT to contain %q, but it did.\nCode:\n%s", unexpected, code)
	}
}

func num(text string) *NumberLit {
	n, err := ParseNumber(text)
	if err != nil {
		panic(err)
	}
	return n
}

func boolean(v bool) *BoolLit { return &BoolLit{Value: v} }

func id(name string) *Ident { return &Ident{Name: name} }

func bin(sym string, l, r Expr) *Binary {
	op, ok := ParseOp(sym)
	if !ok {
		panic("unknown operator " + sym)
	}
	return &Binary{Op: op, Left: l, Right: r}
}

func call(name string, args ...Expr) *Call { return &Call{Name: name, Args: args} }

func ternary(c, a, b Expr) *Ternary { return &Ternary{Cond: c, Then: a, Else: b} }

// decl declares names without initializers.
func decl(typ string, names ...string) *VarDecl {
	return &VarDecl{Type: typ, Names: names}
}

// declInit declares one variable with an initializer.
func declInit(typ, name string, init Expr) *VarDecl {
	return &VarDecl{Type: typ, Names: []string{name}, Inits: []Expr{init}}
}

func assign(name string, v Expr) *Assign { return &Assign{Name: name, Value: v} }

func printStmt(e Expr) *Print { return &Print{Expr: e} }

func ret(e Expr) *Return { return &Return{Expr: e} }

func block(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

func params(pairs ...string) []Param {
	var ps []Param
	for i := 0; i+1 < len(pairs); i += 2 {
		ps = append(ps, Param{Type: pairs[i], Name: pairs[i+1]})
	}
	return ps
}

func funcDecl(name, returnType string, ps []Param, body ...Stmt) *FuncDecl {
	return &FuncDecl{Name: name, ReturnType: returnType, Params: ps, Body: block(body...)}
}

// mustCompile checks and generates prog, failing the test on any error.
func mustCompile(t *testing.T, prog *Program, opts Options) *Output {
	t.Helper()
	out, err := Compile(prog, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return out
}

func mustDecode(t *testing.T, doc string) *Program {
	t.Helper()
	prog, err := DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	return prog
}
