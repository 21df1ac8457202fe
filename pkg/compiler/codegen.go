package compiler

import (
	"fmt"
	"math"
	"strings"
)

// globalInitName is the routine that runs top-level statements and the
// global initializers that do not fold. It is registered in .init_array so
// the C runtime calls it before main.
const globalInitName = "__x64cc_global_init"

var (
	intArgRegs64 = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}
	intArgRegs32 = []string{"%edi", "%esi", "%edx", "%ecx", "%r8d", "%r9d"}
	intArgRegs8  = []string{"%dil", "%sil", "%dl", "%cl", "%r8b", "%r9b"}
	floatArgRegs = []string{"%xmm0", "%xmm1", "%xmm2", "%xmm3", "%xmm4", "%xmm5", "%xmm6", "%xmm7"}
)

// print format strings, one per printable type.
var printFormats = []struct {
	label string
	t     Type
	text  string
}{
	{".Lfmt_int", Int, `%d\n`},
	{".Lfmt_uint", UInt, `%u\n`},
	{".Lfmt_long", Long, `%ld\n`},
	{".Lfmt_float", Float, `%f\n`},
	{".Lfmt_bool", Bool, `%d\n`},
}

func formatLabel(t Type) string {
	for _, f := range printFormats {
		if f.t == t {
			return f.label
		}
	}
	return ""
}

// Options selects the optional debug outputs of Generate.
type Options struct {
	// Snapshots records a frame snapshot after every statement.
	Snapshots bool
	// Annotate writes a "# SNAPIDX" comment into the assembly at every
	// snapshot. It implies Snapshots.
	Annotate bool
}

// Output is the result of code generation.
type Output struct {
	Asm       string
	Snapshots []Snapshot
	// LineMap lists the instructions emitted for each source line.
	LineMap map[int][]string
}

// CodeGen walks a checked AST and emits x86-64 GNU assembler text (AT&T
// syntax, System V calling convention).
type CodeGen struct {
	info *Info
	opts Options
	out  strings.Builder

	nextLabel       int
	currentFunction string
	frame           *Frame
	env             *Env[Slot]

	// depth counts 8-byte slots pushed since the prologue, so calls can
	// keep %rsp 16-byte aligned.
	depth int

	curLine int
	lineMap map[int][]string

	rec         *Recorder
	known       knownValues
	branchDepth int

	floatPool []uint32
}

func newCodeGen(info *Info, opts Options) *CodeGen {
	cg := &CodeGen{
		info:    info,
		opts:    opts,
		env:     NewEnv[Slot](),
		lineMap: make(map[int][]string),
		known:   make(knownValues),
	}
	if opts.Snapshots || opts.Annotate {
		cg.rec = NewRecorder()
	}
	return cg
}

// newLabel returns a fresh label number. Numbers are never reused within a
// compilation.
func (cg *CodeGen) newLabel() int {
	n := cg.nextLabel
	cg.nextLabel++
	return n
}

func (cg *CodeGen) line(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	cg.out.WriteString(text)
	cg.out.WriteByte('\n')
	if cg.curLine > 0 && strings.HasPrefix(text, "    ") {
		if instr := strings.TrimSpace(text); !strings.HasPrefix(instr, ".") && !strings.HasPrefix(instr, "#") {
			cg.lineMap[cg.curLine] = append(cg.lineMap[cg.curLine], instr)
		}
	}
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("    # "+format, args...)
}

func (cg *CodeGen) label(format string, args ...any) {
	cg.line(format+":", args...)
}

// Generate lowers a checked program. info must come from Check on the same
// program.
func Generate(prog *Program, info *Info, opts Options) (*Output, error) {
	cg := newCodeGen(info, opts)

	cg.env.PushScope()
	defer cg.env.PopScope()
	for _, name := range info.GlobalNames {
		slot := Slot{Name: name, Type: info.Globals[name], Global: true}
		if err := cg.env.Declare(name, slot); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	statics, initBody := planGlobals(prog.Top, info)

	cg.line("    .text")
	if len(initBody) > 0 {
		sigs := NewFuncTable()
		if err := sigs.Register(globalInitName, "void", nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		initFn := &FuncDecl{Name: globalInitName, ReturnType: "void", Body: &Block{Stmts: initBody}}
		if err := cg.genFunc(initFn, sigs); err != nil {
			return nil, err
		}
	}
	for _, fn := range prog.Funcs {
		if err := cg.genFunc(fn, info.Funcs); err != nil {
			return nil, err
		}
	}
	if prog.Func("main") == nil {
		cg.genDefaultMain()
	}
	text := cg.out.String()

	cg.out.Reset()
	cg.genData(statics)
	if len(initBody) > 0 {
		cg.line("")
		cg.line("    .section .init_array,\"aw\"")
		cg.line("    .balign 8")
		cg.line("    .quad %s", globalInitName)
	}
	cg.line("")
	cg.out.WriteString(text)
	cg.line("")
	cg.line("    .section .note.GNU-stack,\"\",@progbits")

	if cg.rec != nil && len(cg.rec.Snapshots()) == 0 && len(info.GlobalNames) > 0 {
		vars := make([]FrameVar, 0, len(info.GlobalNames))
		for _, name := range info.GlobalNames {
			value := unknownValue
			if v, ok := statics[name]; ok {
				value = v.String()
			}
			vars = append(vars, FrameVar{Name: name, Value: value, Type: info.Globals[name].String()})
		}
		cg.rec.Record("", "globals", 0, vars)
	}

	return &Output{
		Asm:       cg.out.String(),
		Snapshots: cg.rec.Snapshots(),
		LineMap:   cg.lineMap,
	}, nil
}

// planGlobals splits the top level into static initial values and the body
// of the global init routine. A global gets a static value when it has
// exactly one initializer, that initializer is constant, and nothing that
// runs before it can observe the variable: no earlier top-level statement
// reads or assigns the name, and no earlier one calls a function. Every other
// initializer becomes a store in the init routine, in source order.
func planGlobals(top []Stmt, info *Info) (map[string]constVal, []Stmt) {
	inits := make(map[string]int)
	for _, s := range top {
		if d, ok := s.(*VarDecl); ok {
			for i, name := range d.Names {
				if d.Init(i) != nil {
					inits[name]++
				}
			}
		}
	}

	statics := make(map[string]constVal)
	touched := make(map[string]bool)
	called := false
	observe := func(s Stmt) {
		readsStmt(s, touched)
		walkStmt(s, func(st Stmt) {
			if a, ok := st.(*Assign); ok {
				touched[a.Name] = true
			}
		})
		calls := make(map[string]bool)
		callees(s, calls)
		called = called || len(calls) > 0
	}

	var body []Stmt
	for _, s := range top {
		d, ok := s.(*VarDecl)
		if !ok {
			body = append(body, s)
			observe(s)
			continue
		}
		for i, name := range d.Names {
			init := d.Init(i)
			if init == nil {
				continue
			}
			if inits[name] == 1 && !touched[name] && !called {
				if v, ok := (evaluator{allowFloat: true}).eval(init); ok {
					statics[name] = convertConst(v, info.Globals[name])
					continue
				}
			}
			assign := &Assign{Line: d.Line, Name: name, Value: init}
			body = append(body, assign)
			observe(assign)
		}
	}
	return statics, body
}

func (cg *CodeGen) genData(statics map[string]constVal) {
	cg.line("    .data")
	for _, f := range printFormats {
		cg.label(f.label)
		cg.line("    .string \"%s\"", f.text)
	}
	for _, name := range cg.info.GlobalNames {
		t := cg.info.Globals[name]
		cg.line("    .balign %d", t.Align())
		cg.line("    .type %s, @object", name)
		cg.line("    .size %s, %d", name, t.Size())
		cg.label("%s", name)
		v, ok := statics[name]
		switch {
		case !ok:
			cg.line("    .zero %d", t.Size())
		case t == Float:
			cg.line("    .long %d", math.Float32bits(v.f))
		case t == Long:
			cg.line("    .quad %d", v.i)
		case t == Bool:
			cg.line("    .byte %d", v.i)
		default:
			cg.line("    .long %d", v.i)
		}
	}
	for i, bits := range cg.floatPool {
		cg.line("    .balign 4")
		cg.label(".LCF%d", i)
		cg.line("    .long %d", bits)
	}
}

func (cg *CodeGen) genDefaultMain() {
	cg.line("")
	cg.line("    .globl main")
	cg.label("main")
	cg.line("    pushq %%rbp")
	cg.line("    movq %%rsp, %%rbp")
	cg.line("    xorl %%eax, %%eax")
	cg.line("    leave")
	cg.line("    ret")
}

func (cg *CodeGen) genFunc(fn *FuncDecl, sigs *FuncTable) error {
	frame, err := LayoutFrame(fn, sigs)
	if err != nil {
		return err
	}
	cg.frame = frame
	cg.currentFunction = fn.Name
	cg.known = make(knownValues)
	cg.depth = 0
	cg.branchDepth = 0

	cg.env.PushScope()
	defer cg.env.PopScope()

	cg.line("")
	if fn.Name != globalInitName {
		cg.line("    .globl %s", fn.Name)
	}
	cg.line("    .type %s, @function", fn.Name)
	cg.label("%s", fn.Name)
	cg.line("    pushq %%rbp")
	cg.line("    movq %%rsp, %%rbp")
	if frame.Size > 0 {
		cg.line("    subq $%d, %%rsp", frame.Size)
	}

	ints, floats := 0, 0
	for _, p := range frame.Params {
		if cg.env.DeclaredHere(p.Name) {
			_ = cg.env.Update(p.Name, p)
		} else if err := cg.env.Declare(p.Name, p); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if p.Type == Float {
			if floats >= len(floatArgRegs) {
				return fmt.Errorf("%w: %s has more than %d float parameters", ErrUnsupported, fn.Name, len(floatArgRegs))
			}
			cg.line("    movss %s, %s", floatArgRegs[floats], p.Addr())
			floats++
			continue
		}
		if ints >= len(intArgRegs64) {
			return fmt.Errorf("%w: %s has more than %d integer parameters", ErrUnsupported, fn.Name, len(intArgRegs64))
		}
		switch p.Type {
		case Bool:
			cg.line("    movb %s, %s", intArgRegs8[ints], p.Addr())
		case Long:
			cg.line("    movq %s, %s", intArgRegs64[ints], p.Addr())
		default:
			cg.line("    movl %s, %s", intArgRegs32[ints], p.Addr())
		}
		ints++
	}
	if len(frame.Params) > 0 {
		cg.snapshot(fn.Name+" params", fn.Line)
	}

	if err := cg.genBlock(fn.Body); err != nil {
		return err
	}

	if fn.Name == "main" {
		cg.line("    xorl %%eax, %%eax")
	}
	cg.label(".end_%s", fn.Name)
	cg.line("    leave")
	cg.line("    ret")
	return nil
}

func (cg *CodeGen) genBlock(b *Block) error {
	cg.env.PushScope()
	defer cg.env.PopScope()
	for _, s := range b.Stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	prevLine := cg.curLine
	if l := s.Pos(); l > 0 {
		cg.curLine = l
	}
	defer func() { cg.curLine = prevLine }()

	switch n := s.(type) {
	case *VarDecl:
		for i, name := range n.Names {
			slot, ok := cg.frame.Local(n, i)
			if !ok {
				return fmt.Errorf("%w: no slot for %s on line %d", ErrInternal, name, n.Line)
			}
			if init := n.Init(i); init != nil {
				if err := cg.genExpr(init); err != nil {
					return err
				}
				cg.convert(init.Type(), slot.Type)
				cg.store(slot)
				cg.track(slot, init, false)
			} else if !slot.Unused {
				delete(cg.known, slot.Offset)
			}
			if cg.env.DeclaredHere(name) {
				_ = cg.env.Update(name, slot)
			} else if err := cg.env.Declare(name, slot); err != nil {
				return fmt.Errorf("%w: %v", ErrInternal, err)
			}
			cg.snapshot("decl "+name, n.Line)
		}

	case *Assign:
		slot, err := cg.env.Lookup(n.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.convert(n.Value.Type(), slot.Type)
		cg.store(slot)
		cg.track(slot, n.Value, cg.branchDepth > 0)
		cg.snapshot("assign "+n.Name, n.Line)

	case *Print:
		if err := cg.genPrint(n.Expr); err != nil {
			return err
		}
		cg.snapshot("print", n.Line)

	case *Return:
		if n.Expr != nil {
			sig, err := cg.returnType()
			if err != nil {
				return err
			}
			if err := cg.genExpr(n.Expr); err != nil {
				return err
			}
			cg.convert(n.Expr.Type(), sig)
		}
		cg.snapshot("return", n.Line)
		cg.line("    jmp .end_%s", cg.currentFunction)

	case *ExprStmt:
		cg.comment("call: %s", n.Expr)
		if err := cg.genExpr(n.Expr); err != nil {
			return err
		}

	case *Block:
		return cg.genBlock(n)

	case *If:
		id := cg.newLabel()
		if err := cg.genCond(n.Cond); err != nil {
			return err
		}
		cg.line("    je .Lelse_%d", id)
		cg.branchDepth++
		if err := cg.genBlock(n.Then); err != nil {
			return err
		}
		cg.line("    jmp .Lendif_%d", id)
		cg.label(".Lelse_%d", id)
		if n.Else != nil {
			if err := cg.genBlock(n.Else); err != nil {
				return err
			}
		}
		cg.branchDepth--
		cg.label(".Lendif_%d", id)
		cg.snapshot("if", n.Line)

	case *While:
		id := cg.newLabel()
		cg.forgetAssigned(n.Body)
		cg.label(".Lwhile_%d", id)
		if err := cg.genCond(n.Cond); err != nil {
			return err
		}
		cg.line("    je .Lendwhile_%d", id)
		cg.branchDepth++
		if err := cg.genBlock(n.Body); err != nil {
			return err
		}
		cg.branchDepth--
		cg.line("    jmp .Lwhile_%d", id)
		cg.label(".Lendwhile_%d", id)
		cg.snapshot("while", n.Line)

	case *For:
		if err := cg.genFor(n); err != nil {
			return err
		}
		cg.snapshot("for", n.Line)

	default:
		return fmt.Errorf("%w: unexpected statement %T", ErrInternal, s)
	}
	return nil
}

func (cg *CodeGen) genFor(n *For) error {
	cg.env.PushScope()
	defer cg.env.PopScope()

	id := cg.newLabel()
	if n.Init != nil {
		if err := cg.genStmt(n.Init); err != nil {
			return err
		}
	}
	cg.forgetAssigned(n.Body, n.Step)
	cg.label(".Lfor_%d", id)
	if n.Cond != nil {
		if err := cg.genCond(n.Cond); err != nil {
			return err
		}
		cg.line("    je .Lendfor_%d", id)
	}
	cg.branchDepth++
	defer func() { cg.branchDepth-- }()
	if err := cg.genBlock(n.Body); err != nil {
		return err
	}
	if n.Step != nil {
		if err := cg.genStmt(n.Step); err != nil {
			return err
		}
	}
	cg.line("    jmp .Lfor_%d", id)
	cg.label(".Lendfor_%d", id)
	return nil
}

// genCond evaluates a bool and compares it with zero.
func (cg *CodeGen) genCond(e Expr) error {
	if err := cg.genExpr(e); err != nil {
		return err
	}
	cg.line("    testl %%eax, %%eax")
	return nil
}

func (cg *CodeGen) returnType() (Type, error) {
	if cg.currentFunction == globalInitName {
		return Void, nil
	}
	sig, err := cg.info.Funcs.Lookup(cg.currentFunction)
	if err != nil {
		return NoType, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return sig.Return, nil
}

func (cg *CodeGen) genPrint(e Expr) error {
	if err := cg.genExpr(e); err != nil {
		return err
	}
	t := e.Type()
	switch t {
	case Float:
		cg.line("    cvtss2sd %%xmm0, %%xmm0")
	case Long:
		cg.line("    movq %%rax, %%rsi")
	case Int, UInt, Bool:
		cg.line("    movl %%eax, %%esi")
	default:
		return fmt.Errorf("%w: print of %s", ErrInternal, t)
	}
	cg.line("    leaq %s(%%rip), %%rdi", formatLabel(t))
	if t == Float {
		cg.line("    movl $1, %%eax")
	} else {
		cg.line("    xorl %%eax, %%eax")
	}
	cg.call("printf@PLT")
	return nil
}

// call emits a call with %rsp 16-byte aligned.
func (cg *CodeGen) call(target string) {
	if cg.depth%2 == 1 {
		cg.line("    subq $8, %%rsp")
		cg.line("    call %s", target)
		cg.line("    addq $8, %%rsp")
		return
	}
	cg.line("    call %s", target)
}

func (cg *CodeGen) push(t Type) {
	if t == Float {
		cg.line("    subq $8, %%rsp")
		cg.line("    movss %%xmm0, (%%rsp)")
	} else {
		cg.line("    pushq %%rax")
	}
	cg.depth++
}

// popFloat moves the top of the stack into reg.
func (cg *CodeGen) popFloat(reg string) {
	cg.line("    movss (%%rsp), %s", reg)
	cg.line("    addq $8, %%rsp")
	cg.depth--
}

func (cg *CodeGen) popInt(reg string) {
	cg.line("    popq %s", reg)
	cg.depth--
}

func (cg *CodeGen) load(s Slot) {
	switch s.Type {
	case Bool:
		cg.line("    movzbl %s, %%eax", s.Addr())
	case Long:
		cg.line("    movq %s, %%rax", s.Addr())
	case Float:
		cg.line("    movss %s, %%xmm0", s.Addr())
	default:
		cg.line("    movl %s, %%eax", s.Addr())
	}
}

// store writes the accumulator into s. Stores to unused locals are dropped.
func (cg *CodeGen) store(s Slot) {
	if s.Unused {
		cg.comment("%s is never read, value dropped", s.Name)
		return
	}
	switch s.Type {
	case Bool:
		cg.line("    movb %%al, %s", s.Addr())
	case Long:
		cg.line("    movq %%rax, %s", s.Addr())
	case Float:
		cg.line("    movss %%xmm0, %s", s.Addr())
	default:
		cg.line("    movl %%eax, %s", s.Addr())
	}
}

// convert changes the representation of the accumulator from one type to
// another.
func (cg *CodeGen) convert(from, to Type) {
	if from == to || from == NoType || from == Void || to == NoType || to == Void {
		return
	}
	switch to {
	case Float:
		switch from {
		case Long:
			cg.line("    cvtsi2ssq %%rax, %%xmm0")
		case UInt:
			cg.line("    movl %%eax, %%eax")
			cg.line("    cvtsi2ssq %%rax, %%xmm0")
		default:
			cg.line("    cvtsi2ssl %%eax, %%xmm0")
		}
	case Long:
		switch from {
		case Int:
			cg.line("    movslq %%eax, %%rax")
		case Float:
			cg.line("    cvttss2siq %%xmm0, %%rax")
		default:
			cg.line("    movl %%eax, %%eax")
		}
	case Bool:
		switch from {
		case Float:
			cg.line("    xorps %%xmm1, %%xmm1")
			cg.line("    ucomiss %%xmm1, %%xmm0")
		case Long:
			cg.line("    testq %%rax, %%rax")
		default:
			cg.line("    testl %%eax, %%eax")
		}
		cg.line("    setne %%al")
		cg.line("    movzbl %%al, %%eax")
	default: // Int, UInt
		if from == Float {
			cg.line("    cvttss2siq %%xmm0, %%rax")
		}
	}
}

func (cg *CodeGen) loadConst(v constVal) {
	switch v.t {
	case Float:
		cg.line("    movss .LCF%d(%%rip), %%xmm0", cg.floatConst(v.f))
	case Long:
		if v.i >= math.MinInt32 && v.i <= math.MaxInt32 {
			cg.line("    movq $%d, %%rax", v.i)
		} else {
			cg.line("    movabsq $%d, %%rax", v.i)
		}
	case UInt:
		cg.line("    movl $%d, %%eax", uint32(v.i))
	default:
		cg.line("    movl $%d, %%eax", v.i)
	}
}

func (cg *CodeGen) floatConst(f float32) int {
	bits := math.Float32bits(f)
	for i, b := range cg.floatPool {
		if b == bits {
			return i
		}
	}
	cg.floatPool = append(cg.floatPool, bits)
	return len(cg.floatPool) - 1
}

// genExpr leaves the value of e in %eax/%rax, or in %xmm0 for floats.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *NumberLit:
		v, _ := evaluator{allowFloat: true}.eval(n)
		cg.loadConst(v)

	case *BoolLit:
		cg.loadConst(constVal{t: Bool, i: boolInt(n.Value)})

	case *Ident:
		slot, err := cg.env.Lookup(n.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if slot.Unused {
			return fmt.Errorf("%w: read of %s which has no storage", ErrInternal, n.Name)
		}
		cg.load(slot)
		cg.convert(slot.Type, n.T)

	case *Binary:
		if v, ok := foldConst(n); ok {
			cg.loadConst(v)
			return nil
		}
		return cg.genBinary(n)

	case *Ternary:
		id := cg.newLabel()
		if err := cg.genCond(n.Cond); err != nil {
			return err
		}
		cg.line("    je .Lternary_else_%d", id)
		if err := cg.genExpr(n.Then); err != nil {
			return err
		}
		cg.line("    jmp .Lternary_end_%d", id)
		cg.label(".Lternary_else_%d", id)
		if err := cg.genExpr(n.Else); err != nil {
			return err
		}
		cg.label(".Lternary_end_%d", id)

	case *Call:
		return cg.genCall(n)

	default:
		return fmt.Errorf("%w: unexpected expression %T", ErrInternal, e)
	}
	return nil
}

func (cg *CodeGen) genBinary(n *Binary) error {
	operand := n.Operand
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	cg.convert(n.Left.Type(), operand)
	cg.push(operand)
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.convert(n.Right.Type(), operand)

	if operand == Float {
		cg.line("    movaps %%xmm0, %%xmm1")
		cg.popFloat("%xmm0")
		return cg.floatOp(n.Op)
	}
	cg.line("    movq %%rax, %%rcx")
	cg.popInt("%rax")
	return cg.intOp(n.Op, operand)
}

// intOp combines %eax/%rax (left) with %ecx/%rcx (right).
func (cg *CodeGen) intOp(op BinaryOp, t Type) error {
	sfx, a, c := "l", "%eax", "%ecx"
	r8, r9 := "%r8d", "%r9d"
	if t == Long {
		sfx, a, c = "q", "%rax", "%rcx"
		r8, r9 = "%r8", "%r9"
	}
	switch op {
	case OpAdd:
		cg.line("    add%s %s, %s", sfx, c, a)
	case OpSub:
		cg.line("    sub%s %s, %s", sfx, c, a)
	case OpMul:
		cg.line("    imul%s %s, %s", sfx, c, a)
	case OpDiv:
		switch t {
		case UInt:
			cg.line("    xorl %%edx, %%edx")
			cg.line("    divl %%ecx")
		case Long:
			cg.line("    cqto")
			cg.line("    idivq %%rcx")
		default:
			cg.line("    cltd")
			cg.line("    idivl %%ecx")
		}
	case OpPow:
		id := cg.newLabel()
		exit := "jle"
		if !t.IsSigned() {
			exit = "je"
		}
		cg.line("    mov%s %s, %s", sfx, a, r8)
		cg.line("    mov%s %s, %s", sfx, c, r9)
		cg.line("    mov%s $1, %s", sfx, a)
		cg.label(".Lpow_loop_%d", id)
		cg.line("    test%s %s, %s", sfx, r9, r9)
		cg.line("    %s .Lpow_end_%d", exit, id)
		cg.line("    imul%s %s, %s", sfx, r8, a)
		cg.line("    dec%s %s", sfx, r9)
		cg.line("    jmp .Lpow_loop_%d", id)
		cg.label(".Lpow_end_%d", id)
	case OpLess:
		set := "setl"
		if !t.IsSigned() {
			set = "setb"
		}
		cg.line("    cmp%s %s, %s", sfx, c, a)
		cg.line("    %s %%al", set)
		cg.line("    movzbl %%al, %%eax")
	default:
		return fmt.Errorf("%w: operator %s", ErrInternal, op)
	}
	return nil
}

// floatOp combines %xmm0 (left) with %xmm1 (right).
func (cg *CodeGen) floatOp(op BinaryOp) error {
	switch op {
	case OpAdd:
		cg.line("    addss %%xmm1, %%xmm0")
	case OpSub:
		cg.line("    subss %%xmm1, %%xmm0")
	case OpMul:
		cg.line("    mulss %%xmm1, %%xmm0")
	case OpDiv:
		cg.line("    divss %%xmm1, %%xmm0")
	case OpPow:
		id := cg.newLabel()
		cg.line("    movaps %%xmm0, %%xmm2")
		cg.line("    cvttss2si %%xmm1, %%r9d")
		cg.line("    movl $1, %%eax")
		cg.line("    cvtsi2ssl %%eax, %%xmm0")
		cg.label(".Lpow_loop_%d", id)
		cg.line("    testl %%r9d, %%r9d")
		cg.line("    jle .Lpow_end_%d", id)
		cg.line("    mulss %%xmm2, %%xmm0")
		cg.line("    decl %%r9d")
		cg.line("    jmp .Lpow_loop_%d", id)
		cg.label(".Lpow_end_%d", id)
	case OpLess:
		// left < right  <=>  right > left; unordered compares false
		cg.line("    ucomiss %%xmm0, %%xmm1")
		cg.line("    seta %%al")
		cg.line("    movzbl %%al, %%eax")
	default:
		return fmt.Errorf("%w: operator %s", ErrInternal, op)
	}
	return nil
}

// genCall evaluates arguments left to right onto the stack, then pops them
// into argument registers. Integer and float arguments are numbered
// separately.
func (cg *CodeGen) genCall(n *Call) error {
	sig, err := cg.info.Funcs.Lookup(n.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if len(sig.Params) != len(n.Args) {
		return fmt.Errorf("%w: call to %s has %d arguments, signature %d", ErrInternal, n.Name, len(n.Args), len(sig.Params))
	}

	regs := make([]string, len(n.Args))
	ints, floats := 0, 0
	for i, pt := range sig.Params {
		if pt == Float {
			if floats >= len(floatArgRegs) {
				return fmt.Errorf("%w: call to %s passes more than %d float arguments", ErrUnsupported, n.Name, len(floatArgRegs))
			}
			regs[i] = floatArgRegs[floats]
			floats++
		} else {
			if ints >= len(intArgRegs64) {
				return fmt.Errorf("%w: call to %s passes more than %d integer arguments", ErrUnsupported, n.Name, len(intArgRegs64))
			}
			regs[i] = intArgRegs64[ints]
			ints++
		}
	}

	for i, arg := range n.Args {
		if err := cg.genExpr(arg); err != nil {
			return err
		}
		cg.convert(arg.Type(), sig.Params[i])
		cg.push(sig.Params[i])
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		if sig.Params[i] == Float {
			cg.popFloat(regs[i])
		} else {
			cg.popInt(regs[i])
		}
	}
	cg.call(n.Name)
	return nil
}

// track updates the known value of a slot after a store.
func (cg *CodeGen) track(s Slot, value Expr, uncertain bool) {
	if s.Global || s.Unused {
		return
	}
	if uncertain {
		delete(cg.known, s.Offset)
		return
	}
	v, ok := cg.evaluator().eval(value)
	if !ok {
		delete(cg.known, s.Offset)
		return
	}
	cg.known[s.Offset] = convertConst(v, s.Type)
}

func (cg *CodeGen) evaluator() evaluator {
	return evaluator{
		allowFloat: true,
		lookup: func(name string) (constVal, bool) {
			slot, err := cg.env.Lookup(name)
			if err != nil || slot.Global || slot.Unused {
				return constVal{}, false
			}
			v, ok := cg.known[slot.Offset]
			return v, ok
		},
	}
}

// forgetAssigned drops the known values of every visible variable assigned
// inside a loop, since the loop head is reached with more than one value.
func (cg *CodeGen) forgetAssigned(stmts ...Stmt) {
	for _, s := range stmts {
		walkStmt(s, func(st Stmt) {
			a, ok := st.(*Assign)
			if !ok {
				return
			}
			if slot, err := cg.env.Lookup(a.Name); err == nil && !slot.Global && !slot.Unused {
				delete(cg.known, slot.Offset)
			}
		})
	}
}

// snapshot records the live frame after a statement.
func (cg *CodeGen) snapshot(label string, line int) {
	if cg.rec == nil {
		return
	}
	seen := make(map[int]bool)
	var vars []FrameVar
	for i := 1; i < cg.env.Depth(); i++ {
		cg.env.Scope(i, func(_ string, s Slot) {
			if s.Global || s.Unused || seen[s.Offset] {
				return
			}
			seen[s.Offset] = true
			vars = append(vars, FrameVar{
				Name:   s.Name,
				Value:  cg.known.describe(s),
				Offset: s.Offset,
				Type:   s.Type.String(),
			})
		})
	}
	idx := cg.rec.Record(cg.currentFunction, label, line, vars)
	if cg.opts.Annotate {
		cg.out.WriteString(fmt.Sprintf("# SNAPIDX %d %s line %d\n", idx, label, line))
	}
}
