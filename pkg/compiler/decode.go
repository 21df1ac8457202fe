package compiler

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// The parser hands programs over as YAML (JSON is accepted too). Every node
// is a mapping with a kind discriminator and an optional source line:
//
//	top:
//	  - {kind: var, line: 1, type: int, vars: [{name: x, init: {kind: num, text: "3"}}]}
//	funcs:
//	  - name: main
//	    return: int
//	    params: [{name: a, type: int}]
//	    body:
//	      - {kind: print, line: 2, expr: {kind: id, name: x}}

// DecodeError reports a malformed AST document.
type DecodeError struct {
	Line   int
	Column int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ast document %d:%d: %s", e.Line, e.Column, e.Msg)
}

func decodeErr(n *yaml.Node, format string, args ...any) error {
	return &DecodeError{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// Decode reads one program document from r.
func Decode(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

func DecodeBytes(data []byte) (*Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ast document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DecodeError{Msg: "empty document"}
	}
	root, err := fieldsOf(doc.Content[0])
	if err != nil {
		return nil, err
	}

	prog := &Program{}
	if top, ok := root.m["top"]; ok {
		if prog.Top, err = decodeStmts(top); err != nil {
			return nil, err
		}
	}
	if funcs, ok := root.m["funcs"]; ok {
		items, err := seq(funcs)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			fn, err := decodeFunc(item)
			if err != nil {
				return nil, err
			}
			prog.Funcs = append(prog.Funcs, fn)
		}
	}
	return prog, nil
}

// fields is a decoded mapping node.
type fields struct {
	node *yaml.Node
	m    map[string]*yaml.Node
}

func fieldsOf(n *yaml.Node) (fields, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return fields{}, decodeErr(n, "expected a mapping")
	}
	f := fields{node: n, m: make(map[string]*yaml.Node, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		f.m[n.Content[i].Value] = n.Content[i+1]
	}
	return f, nil
}

func seq(n *yaml.Node) ([]*yaml.Node, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, decodeErr(n, "expected a sequence")
	}
	return n.Content, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func (f fields) str(key string) (string, error) {
	n, ok := f.m[key]
	if !ok {
		return "", decodeErr(f.node, "missing %q", key)
	}
	if n.Kind != yaml.ScalarNode {
		return "", decodeErr(n, "%q must be a scalar", key)
	}
	return n.Value, nil
}

func (f fields) line() (int, error) {
	n, ok := f.m["line"]
	if !ok {
		return 0, nil
	}
	var line int
	if err := n.Decode(&line); err != nil {
		return 0, decodeErr(n, "line must be an integer")
	}
	return line, nil
}

// expr decodes a required expression field.
func (f fields) expr(key string) (Expr, error) {
	n, ok := f.m[key]
	if !ok || isNull(n) {
		return nil, decodeErr(f.node, "missing %q", key)
	}
	return decodeExpr(n)
}

// optExpr decodes an optional expression field.
func (f fields) optExpr(key string) (Expr, error) {
	n, ok := f.m[key]
	if !ok || isNull(n) {
		return nil, nil
	}
	return decodeExpr(n)
}

func (f fields) block(key string, line int) (*Block, error) {
	n, ok := f.m[key]
	if !ok {
		return nil, nil
	}
	stmts, err := decodeStmts(n)
	if err != nil {
		return nil, err
	}
	return &Block{Line: line, Stmts: stmts}, nil
}

func decodeFunc(n *yaml.Node) (*FuncDecl, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	fn := &FuncDecl{}
	if fn.Name, err = f.str("name"); err != nil {
		return nil, err
	}
	if fn.ReturnType, err = f.str("return"); err != nil {
		return nil, err
	}
	if fn.Line, err = f.line(); err != nil {
		return nil, err
	}
	if ps, ok := f.m["params"]; ok {
		items, err := seq(ps)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			pf, err := fieldsOf(item)
			if err != nil {
				return nil, err
			}
			var p Param
			if p.Name, err = pf.str("name"); err != nil {
				return nil, err
			}
			if p.Type, err = pf.str("type"); err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, p)
		}
	}
	if fn.Body, err = f.block("body", fn.Line); err != nil {
		return nil, err
	}
	if fn.Body == nil {
		fn.Body = &Block{Line: fn.Line}
	}
	return fn, nil
}

func decodeStmts(n *yaml.Node) ([]Stmt, error) {
	items, err := seq(n)
	if err != nil {
		return nil, err
	}
	stmts := make([]Stmt, 0, len(items))
	for _, item := range items {
		s, err := decodeStmt(item)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func decodeStmt(n *yaml.Node) (Stmt, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	kind, err := f.str("kind")
	if err != nil {
		return nil, err
	}
	line, err := f.line()
	if err != nil {
		return nil, err
	}

	switch kind {
	case "var":
		d := &VarDecl{Line: line}
		if d.Type, err = f.str("type"); err != nil {
			return nil, err
		}
		vars, ok := f.m["vars"]
		if !ok {
			return nil, decodeErr(n, "missing \"vars\"")
		}
		items, err := seq(vars)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, decodeErr(vars, "declaration without names")
		}
		for _, item := range items {
			vf, err := fieldsOf(item)
			if err != nil {
				return nil, err
			}
			name, err := vf.str("name")
			if err != nil {
				return nil, err
			}
			init, err := vf.optExpr("init")
			if err != nil {
				return nil, err
			}
			d.Names = append(d.Names, name)
			d.Inits = append(d.Inits, init)
		}
		return d, nil

	case "assign":
		a := &Assign{Line: line}
		if a.Name, err = f.str("name"); err != nil {
			return nil, err
		}
		if a.Value, err = f.expr("value"); err != nil {
			return nil, err
		}
		return a, nil

	case "print":
		p := &Print{Line: line}
		if p.Expr, err = f.expr("expr"); err != nil {
			return nil, err
		}
		return p, nil

	case "return":
		r := &Return{Line: line}
		if r.Expr, err = f.optExpr("expr"); err != nil {
			return nil, err
		}
		return r, nil

	case "if":
		s := &If{Line: line}
		if s.Cond, err = f.expr("cond"); err != nil {
			return nil, err
		}
		if s.Then, err = f.block("then", line); err != nil {
			return nil, err
		}
		if s.Then == nil {
			s.Then = &Block{Line: line}
		}
		if s.Else, err = f.block("else", line); err != nil {
			return nil, err
		}
		return s, nil

	case "while":
		s := &While{Line: line}
		if s.Cond, err = f.expr("cond"); err != nil {
			return nil, err
		}
		if s.Body, err = f.block("body", line); err != nil {
			return nil, err
		}
		if s.Body == nil {
			s.Body = &Block{Line: line}
		}
		return s, nil

	case "for":
		s := &For{Line: line}
		if init, ok := f.m["init"]; ok && !isNull(init) {
			if s.Init, err = decodeStmt(init); err != nil {
				return nil, err
			}
		}
		if s.Cond, err = f.optExpr("cond"); err != nil {
			return nil, err
		}
		if step, ok := f.m["step"]; ok && !isNull(step) {
			if s.Step, err = decodeStmt(step); err != nil {
				return nil, err
			}
		}
		if s.Body, err = f.block("body", line); err != nil {
			return nil, err
		}
		if s.Body == nil {
			s.Body = &Block{Line: line}
		}
		return s, nil

	case "expr":
		s := &ExprStmt{Line: line}
		if s.Expr, err = f.expr("expr"); err != nil {
			return nil, err
		}
		return s, nil

	case "block":
		b, err := f.block("body", line)
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = &Block{Line: line}
		}
		return b, nil
	}
	return nil, decodeErr(n, "unknown statement kind %q", kind)
}

func decodeExpr(n *yaml.Node) (Expr, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	kind, err := f.str("kind")
	if err != nil {
		return nil, err
	}
	line, err := f.line()
	if err != nil {
		return nil, err
	}

	switch kind {
	case "num":
		text, err := f.str("text")
		if err != nil {
			return nil, err
		}
		lit, err := ParseNumber(text)
		if err != nil {
			return nil, decodeErr(f.m["text"], "%v", err)
		}
		lit.Line = line
		return lit, nil

	case "bool":
		text, err := f.str("value")
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, decodeErr(f.m["value"], "malformed boolean %q", text)
		}
		return &BoolLit{Line: line, Value: v}, nil

	case "id":
		name, err := f.str("name")
		if err != nil {
			return nil, err
		}
		return &Ident{Line: line, Name: name}, nil

	case "binary":
		sym, err := f.str("op")
		if err != nil {
			return nil, err
		}
		op, ok := ParseOp(sym)
		if !ok {
			return nil, decodeErr(f.m["op"], "unknown operator %q", sym)
		}
		b := &Binary{Line: line, Op: op}
		if b.Left, err = f.expr("left"); err != nil {
			return nil, err
		}
		if b.Right, err = f.expr("right"); err != nil {
			return nil, err
		}
		return b, nil

	case "ternary":
		t := &Ternary{Line: line}
		if t.Cond, err = f.expr("cond"); err != nil {
			return nil, err
		}
		if t.Then, err = f.expr("then"); err != nil {
			return nil, err
		}
		if t.Else, err = f.expr("else"); err != nil {
			return nil, err
		}
		return t, nil

	case "call":
		c := &Call{Line: line}
		if c.Name, err = f.str("name"); err != nil {
			return nil, err
		}
		if args, ok := f.m["args"]; ok {
			items, err := seq(args)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				arg, err := decodeExpr(item)
				if err != nil {
					return nil, err
				}
				c.Args = append(c.Args, arg)
			}
		}
		return c, nil
	}
	return nil, decodeErr(n, "unknown expression kind %q", kind)
}
