package compiler

// usedNames returns every variable name read anywhere in b: identifiers in
// conditions, steps, initializers, call arguments and ternary branches.
// Assignment targets are writes and do not count.
func usedNames(b *Block) map[string]bool {
	used := make(map[string]bool)
	readsStmt(b, used)
	return used
}

func readsExpr(e Expr, used map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *Ident:
		used[n.Name] = true
	case *Binary:
		readsExpr(n.Left, used)
		readsExpr(n.Right, used)
	case *Ternary:
		readsExpr(n.Cond, used)
		readsExpr(n.Then, used)
		readsExpr(n.Else, used)
	case *Call:
		for _, arg := range n.Args {
			readsExpr(arg, used)
		}
	case *NumberLit, *BoolLit:
		// constants
	}
}

func readsStmt(s Stmt, used map[string]bool) {
	switch n := s.(type) {
	case nil:
		return
	case *VarDecl:
		for _, init := range n.Inits {
			readsExpr(init, used)
		}
	case *Assign:
		readsExpr(n.Value, used)
	case *Print:
		readsExpr(n.Expr, used)
	case *Return:
		readsExpr(n.Expr, used)
	case *ExprStmt:
		readsExpr(n.Expr, used)
	case *Block:
		if n == nil {
			return
		}
		for _, child := range n.Stmts {
			readsStmt(child, used)
		}
	case *If:
		readsExpr(n.Cond, used)
		readsStmt(n.Then, used)
		if n.Else != nil {
			readsStmt(n.Else, used)
		}
	case *While:
		readsExpr(n.Cond, used)
		readsStmt(n.Body, used)
	case *For:
		readsStmt(n.Init, used)
		readsExpr(n.Cond, used)
		readsStmt(n.Step, used)
		readsStmt(n.Body, used)
	}
}

// callees collects the names of functions called from s, in the manner of
// readsStmt. The inspection tool uses it to print a call graph.
func callees(s Stmt, calls map[string]bool) {
	var visit func(e Expr)
	visit = func(e Expr) {
		switch n := e.(type) {
		case *Call:
			calls[n.Name] = true
			for _, arg := range n.Args {
				visit(arg)
			}
		case *Binary:
			visit(n.Left)
			visit(n.Right)
		case *Ternary:
			visit(n.Cond)
			visit(n.Then)
			visit(n.Else)
		}
	}
	walkStmt(s, func(st Stmt) {
		switch n := st.(type) {
		case *VarDecl:
			for _, init := range n.Inits {
				visit(init)
			}
		case *Assign:
			visit(n.Value)
		case *Print:
			visit(n.Expr)
		case *Return:
			visit(n.Expr)
		case *ExprStmt:
			visit(n.Expr)
		case *If:
			visit(n.Cond)
		case *While:
			visit(n.Cond)
		case *For:
			visit(n.Cond)
		}
	})
}

// walkStmt calls fn for s and every statement nested inside it, pre-order.
func walkStmt(s Stmt, fn func(Stmt)) {
	if s == nil {
		return
	}
	if b, ok := s.(*Block); ok && b == nil {
		return
	}
	fn(s)
	switch n := s.(type) {
	case *Block:
		for _, child := range n.Stmts {
			walkStmt(child, fn)
		}
	case *If:
		walkStmt(n.Then, fn)
		if n.Else != nil {
			walkStmt(n.Else, fn)
		}
	case *While:
		walkStmt(n.Body, fn)
	case *For:
		walkStmt(n.Init, fn)
		walkStmt(n.Body, fn)
		walkStmt(n.Step, fn)
	}
}

// CallGraph maps each function of prog to the sorted set of functions it
// calls.
func CallGraph(prog *Program) map[string][]string {
	graph := make(map[string][]string, len(prog.Funcs))
	for _, fn := range prog.Funcs {
		calls := make(map[string]bool)
		callees(fn.Body, calls)
		graph[fn.Name] = sortedKeys(calls)
	}
	return graph
}
