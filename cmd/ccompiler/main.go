// Command ccompiler runs every stage of the compiler on one AST document and
// prints what each stage produced.
package main

import (
	"fmt"
	"os"
	"strings"

	"x64cc/pkg/compiler"
	"x64cc/pkg/debugview"
)

const testDocument = `top:
  - {kind: var, line: 1, type: int, vars: [{name: x, init: {kind: num, text: "10"}}]}
funcs:
  - name: main
    return: int
    line: 2
    body:
      - {kind: var, line: 3, type: auto, vars: [{name: y, init: {kind: binary, op: "**", left: {kind: num, text: "2"}, right: {kind: num, text: "5"}}}]}
      - {kind: print, line: 4, expr: {kind: binary, op: "+", left: {kind: id, name: x}, right: {kind: id, name: y}}}
`

func main() {
	doc := []byte(testDocument)
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		doc = data
	}

	// Decode
	prog, err := compiler.DecodeBytes(doc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode error:", err)
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, s := range prog.Top {
		dumpStmt(s, 1)
	}
	for _, fn := range prog.Funcs {
		fmt.Println(" ", fn)
		if fn.Body != nil {
			for _, s := range fn.Body.Stmts {
				dumpStmt(s, 2)
			}
		}
	}
	fmt.Println()

	// Check
	info, err := compiler.Check(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "semantic error:", err)
		os.Exit(1)
	}

	fmt.Println("Globals")
	for _, name := range info.GlobalNames {
		fmt.Printf("  %-20s  %s\n", name, info.Globals[name])
	}
	fmt.Println()
	fmt.Println("Functions")
	fmt.Print(info.Funcs)
	fmt.Println()

	fmt.Println("Call graph")
	graph := compiler.CallGraph(prog)
	for _, fn := range prog.Funcs {
		fmt.Printf("  %s -> %s\n", fn.Name, strings.Join(graph[fn.Name], ", "))
	}
	fmt.Println()

	fmt.Println("Frames")
	for _, fn := range prog.Funcs {
		frame, err := compiler.LayoutFrame(fn, info.Funcs)
		if err != nil {
			fmt.Fprintln(os.Stderr, "layout error:", err)
			os.Exit(1)
		}
		fmt.Print(frame)
	}
	fmt.Println()

	// Code generation
	out, err := compiler.Generate(prog, info, compiler.Options{Snapshots: true, Annotate: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(out.Asm)
	fmt.Println()

	fmt.Println("Snapshots")
	if err := debugview.WriteSnapshots(os.Stdout, out.Snapshots); err != nil {
		fmt.Fprintln(os.Stderr, "snapshot error:", err)
		os.Exit(1)
	}
}

func dumpStmt(s compiler.Stmt, depth int) {
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), s)
	var children []*compiler.Block
	switch n := s.(type) {
	case *compiler.Block:
		children = append(children, n)
	case *compiler.If:
		children = append(children, n.Then)
		if n.Else != nil {
			children = append(children, n.Else)
		}
	case *compiler.While:
		children = append(children, n.Body)
	case *compiler.For:
		children = append(children, n.Body)
	}
	for _, b := range children {
		for _, child := range b.Stmts {
			dumpStmt(child, depth+1)
		}
	}
}
