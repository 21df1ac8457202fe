package compiler

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"x64cc/pkg/asm"
)

func TestGenerate_FoldedPower(t *testing.T) {
	r := declInit("int", "r", bin("-", bin("**", num("2"), num("10")), num("1")))
	r.Line = 2
	prog := &Program{Funcs: []*FuncDecl{funcDecl("main", "int", nil, r, printStmt(id("r")))}}
	out := mustCompile(t, prog, Options{})

	be.Equal(t, strings.Count(out.Asm, "movl $1023, %eax"), 1)
	assertNotContains(t, out.Asm, ".Lpow_loop")
	assertNotContains(t, out.Asm, "imull")
	be.Equal(t, out.LineMap[2], []string{"movl $1023, %eax", "movl %eax, -4(%rbp)"})
}

func TestGenerate_PowLoop(t *testing.T) {
	prog := &Program{Funcs: []*FuncDecl{
		funcDecl("p", "int", params("int", "b", "int", "e"), ret(bin("**", id("b"), id("e")))),
		funcDecl("q", "unsigned int", params("unsigned int", "b", "unsigned int", "e"), ret(bin("**", id("b"), id("e")))),
	}}
	out := mustCompile(t, prog, Options{})
	assertContains(t, out.Asm, ".Lpow_loop_0:")
	assertContains(t, out.Asm, "    jle .Lpow_end_0")
	assertContains(t, out.Asm, ".Lpow_loop_1:")
	assertContains(t, out.Asm, "    je .Lpow_end_1")
	assertContains(t, out.Asm, "    imull %r8d, %eax")
	assertContains(t, out.Asm, "    decl %r9d")
}

func TestGenerate_GlobalSum(t *testing.T) {
	// int x = 3; int y = 4; print(x + y);
	prog := &Program{Top: []Stmt{
		declInit("int", "x", num("3")),
		declInit("int", "y", num("4")),
		printStmt(bin("+", id("x"), id("y"))),
	}}
	out := mustCompile(t, prog, Options{})

	for _, want := range []string{
		"x:\n    .long 3",
		"y:\n    .long 4",
		"    .section .init_array,\"aw\"",
		"    .quad __x64cc_global_init",
		"__x64cc_global_init:",
		"    movl x(%rip), %eax",
		"    pushq %rax",
		"    movl y(%rip), %eax",
		"    movq %rax, %rcx",
		"    popq %rax",
		"    addl %ecx, %eax",
		"    movl %eax, %esi",
		"    leaq .Lfmt_int(%rip), %rdi",
		"    call printf@PLT",
		"    .globl main",
		"    .section .note.GNU-stack,\"\",@progbits",
	} {
		assertContains(t, out.Asm, want)
	}
	assertNotContains(t, out.Asm, ".globl __x64cc_global_init")

	l, err := asm.Parse(out.Asm)
	be.Err(t, err, nil)
	be.Err(t, l.Verify(), nil)
}

func TestGenerate_GlobalData(t *testing.T) {
	prog := &Program{Top: []Stmt{
		declInit("float", "f", num("1.5")),
		declInit("long", "n", num("3")),
		decl("bool", "b"),
		declInit("unsigned int", "u", bin("-", num("0u"), num("1u"))),
	}}
	out := mustCompile(t, prog, Options{})
	assertContains(t, out.Asm, "f:\n    .long 1069547520")
	assertContains(t, out.Asm, "    .balign 8\n    .type n, @object\n    .size n, 8\nn:\n    .quad 3")
	assertContains(t, out.Asm, "b:\n    .zero 1")
	assertContains(t, out.Asm, "u:\n    .long 4294967295")
	// all statics: no init routine
	assertNotContains(t, out.Asm, ".init_array")
}

func TestGenerate_RuntimeGlobalInit(t *testing.T) {
	prog := &Program{Top: []Stmt{
		declInit("int", "a", num("1")),
		declInit("int", "b", bin("+", id("a"), num("1"))),
	}}
	out := mustCompile(t, prog, Options{})
	assertContains(t, out.Asm, "a:\n    .long 1")
	assertContains(t, out.Asm, "b:\n    .zero 4")
	assertContains(t, out.Asm, "    movl %eax, b(%rip)")
}

func TestGenerate_ReturnVoidCall(t *testing.T) {
	// void g() { print(1); }  void f() { return g(); }
	g := funcDecl("g", "void", nil, printStmt(num("1")))
	f := funcDecl("f", "void", nil, ret(call("g")))
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{g, f}}, Options{})
	assertContains(t, out.Asm, "    call g\n    jmp .end_f\n")
}

func TestGenerate_DefaultMain(t *testing.T) {
	out := mustCompile(t, &Program{}, Options{})
	assertContains(t, out.Asm, "main:\n    pushq %rbp\n    movq %rsp, %rbp\n    xorl %eax, %eax\n    leave\n    ret")
}

func TestGenerate_FunctionLayout(t *testing.T) {
	f := funcDecl("main", "int", nil, ret(num("0")))
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{f}}, Options{})
	assertContains(t, out.Asm, "    .globl main\n    .type main, @function\nmain:\n    pushq %rbp\n    movq %rsp, %rbp\n")
	assertContains(t, out.Asm, "    movl $0, %eax\n    jmp .end_main\n")
	assertContains(t, out.Asm, ".end_main:\n    leave\n    ret")
	assertNotContains(t, out.Asm, "subq $0")
	be.Equal(t, strings.Count(out.Asm, "\nmain:\n"), 1)
}

func TestGenerate_ArgumentRegisters(t *testing.T) {
	f := funcDecl("f", "void", params("int", "a", "float", "b", "long", "c", "float", "d"))
	main := funcDecl("main", "int", nil,
		&ExprStmt{Expr: call("f", num("1"), num("2.0"), num("3"), num("4.0"))},
	)
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{f, main}}, Options{})

	// prologue spills, each class numbered on its own
	assertContains(t, out.Asm, "    movl %edi, -4(%rbp)")
	assertContains(t, out.Asm, "    movss %xmm0, -8(%rbp)")
	assertContains(t, out.Asm, "    movq %rsi, -16(%rbp)")
	assertContains(t, out.Asm, "    movss %xmm1, -20(%rbp)")
	assertContains(t, out.Asm, "    subq $32, %rsp")

	// arguments are popped in reverse into their class registers
	assertContains(t, out.Asm, "    movss (%rsp), %xmm1\n    addq $8, %rsp\n    popq %rsi\n    movss (%rsp), %xmm0\n    addq $8, %rsp\n    popq %rdi\n    call f\n")
	// int literal widened to long before the push
	assertContains(t, out.Asm, "    movl $3, %eax\n    movslq %eax, %rax\n    pushq %rax")
	assertContains(t, out.Asm, "    movss .LCF0(%rip), %xmm0")
	assertContains(t, out.Asm, ".LCF0:\n    .long 1073741824")
	assertContains(t, out.Asm, ".LCF1:\n    .long 1082130432")
}

func TestGenerate_CallAlignment(t *testing.T) {
	g := funcDecl("g", "int", nil, ret(num("1")))
	main := funcDecl("main", "int", nil,
		declInit("int", "r", bin("+", num("1"), call("g"))),
		printStmt(id("r")),
	)
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{g, main}}, Options{})
	assertContains(t, out.Asm, "    pushq %rax\n    subq $8, %rsp\n    call g\n    addq $8, %rsp\n")
}

func TestGenerate_TooManyArguments(t *testing.T) {
	ps := params("int", "a", "int", "b", "int", "c", "int", "d", "int", "e", "int", "f", "int", "g")
	_, err := Compile(&Program{Funcs: []*FuncDecl{funcDecl("seven", "void", ps)}}, Options{})
	be.Err(t, err, ErrUnsupported)
	be.Err(t, err, "codegen:")
}

func TestGenerate_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		op   string
		want []string
	}{
		{"IntDiv", "int", "/", []string{"    cltd\n    idivl %ecx"}},
		{"UIntDiv", "unsigned int", "/", []string{"    xorl %edx, %edx\n    divl %ecx"}},
		{"LongDiv", "long", "/", []string{"    cqto\n    idivq %rcx"}},
		{"LongMul", "long", "*", []string{"    imulq %rcx, %rax"}},
		{"IntSub", "int", "-", []string{"    subl %ecx, %eax"}},
		{"IntLess", "int", "<", []string{"    cmpl %ecx, %eax\n    setl %al\n    movzbl %al, %eax"}},
		{"UIntLess", "unsigned int", "<", []string{"    setb %al"}},
		{"FloatAdd", "float", "+", []string{"    movaps %xmm0, %xmm1", "    movss (%rsp), %xmm0", "    addss %xmm1, %xmm0"}},
		{"FloatDiv", "float", "/", []string{"    divss %xmm1, %xmm0"}},
		{"FloatLess", "float", "<", []string{"    ucomiss %xmm0, %xmm1\n    seta %al\n    movzbl %al, %eax"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := funcDecl("f", "void", params(tc.typ, "a", tc.typ, "b"),
				printStmt(bin(tc.op, id("a"), id("b"))),
			)
			out := mustCompile(t, &Program{Funcs: []*FuncDecl{f}}, Options{})
			for _, want := range tc.want {
				assertContains(t, out.Asm, want)
			}
		})
	}
}

func TestGenerate_Print(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want []string
	}{
		{"Float", num("1.5"), []string{"    cvtss2sd %xmm0, %xmm0", "    leaq .Lfmt_float(%rip), %rdi", "    movl $1, %eax"}},
		{"Long", num("5l"), []string{"    movq $5, %rax", "    movq %rax, %rsi", "    leaq .Lfmt_long(%rip), %rdi"}},
		{"UInt", num("5u"), []string{"    movl %eax, %esi", "    leaq .Lfmt_uint(%rip), %rdi"}},
		{"Bool", boolean(true), []string{"    movl $1, %eax", "    leaq .Lfmt_bool(%rip), %rdi"}},
		{"BigLong", num("4294967296l"), []string{"    movabsq $4294967296, %rax"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := funcDecl("main", "int", nil, printStmt(tc.expr))
			out := mustCompile(t, &Program{Funcs: []*FuncDecl{f}}, Options{})
			for _, want := range tc.want {
				assertContains(t, out.Asm, want)
			}
		})
	}
}

func TestGenerate_Conversions(t *testing.T) {
	f := funcDecl("widen", "long", params("int", "a"), ret(id("a")))
	g := funcDecl("tofloat", "float", params("unsigned int", "u"), ret(bin("+", id("u"), num("1.5"))))
	h := funcDecl("mixed", "float", params("long", "n", "float", "x"), ret(bin("+", id("n"), id("x"))))
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{f, g, h}}, Options{})
	assertContains(t, out.Asm, "    movl -4(%rbp), %eax\n    movslq %eax, %rax\n    jmp .end_widen")
	assertContains(t, out.Asm, "    movl -4(%rbp), %eax\n    movl %eax, %eax\n    cvtsi2ssq %rax, %xmm0\n    subq $8, %rsp")
	assertContains(t, out.Asm, "    movq -8(%rbp), %rax\n    cvtsi2ssq %rax, %xmm0\n    subq $8, %rsp")
}

func TestGenerate_UnusedLocal(t *testing.T) {
	f := funcDecl("main", "int", nil, declInit("int", "u", num("5")), assign("u", num("6")))
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{f}}, Options{})
	assertContains(t, out.Asm, "# u is never read, value dropped")
	assertNotContains(t, out.Asm, "(%rbp)")
	assertNotContains(t, out.Asm, "subq $")
}

func TestGenerate_ControlFlowLabels(t *testing.T) {
	x := declInit("int", "x", num("0"))
	main := funcDecl("main", "int", nil,
		x,
		&If{
			Cond: bin("<", id("x"), num("1")),
			Then: block(assign("x", num("1"))),
			Else: block(&If{Cond: boolean(true), Then: block(assign("x", num("2")))}),
		},
		&While{
			Cond: bin("<", id("x"), num("10")),
			Body: block(assign("x", bin("+", id("x"), num("1")))),
		},
		&For{
			Init: declInit("int", "i", num("0")),
			Cond: bin("<", id("i"), num("3")),
			Step: assign("i", bin("+", id("i"), num("1"))),
			Body: block(printStmt(ternary(bin("<", id("i"), num("2")), id("i"), id("x")))),
		},
		ret(id("x")),
	)
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{main}}, Options{})

	l, err := asm.Parse(out.Asm)
	be.Err(t, err, nil)
	be.Err(t, l.Verify(), nil)

	for _, label := range []string{
		".Lelse_0", ".Lendif_0", ".Lelse_1", ".Lendif_1",
		".Lwhile_2", ".Lendwhile_2", ".Lfor_3", ".Lendfor_3",
		".Lternary_else_4", ".Lternary_end_4", ".end_main",
	} {
		be.True(t, l.Defined(label))
	}
	assertContains(t, out.Asm, "    testl %eax, %eax\n    je .Lelse_0")
	assertContains(t, out.Asm, "    jmp .Lwhile_2\n.Lendwhile_2:")
	assertContains(t, out.Asm, "    je .Lendfor_3")
	assertContains(t, out.Asm, "    jmp .Lfor_3\n.Lendfor_3:")
}

func TestGenerate_BoolStorage(t *testing.T) {
	f := funcDecl("main", "int", nil,
		declInit("bool", "ok", bin("<", num("1"), num("2"))),
		printStmt(id("ok")),
	)
	out := mustCompile(t, &Program{Funcs: []*FuncDecl{f}}, Options{})
	assertContains(t, out.Asm, "    movb %al, -1(%rbp)")
	assertContains(t, out.Asm, "    movzbl -1(%rbp), %eax")
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() *Program {
		return mustDecode(t, sampleDoc)
	}
	a := mustCompile(t, build(), Options{})
	b := mustCompile(t, build(), Options{})
	be.Equal(t, a.Asm, b.Asm)
}

func TestCompile_SemanticErrorStopsOutput(t *testing.T) {
	out, err := Compile(&Program{Top: []Stmt{printStmt(id("nope"))}}, Options{})
	be.Err(t, err, ErrUndeclaredName)
	be.True(t, out == nil)

	_, _, err = CompileDocument([]byte("top: [{kind: return}]"), Options{})
	be.Err(t, err, ErrMisplacedReturn)
}
