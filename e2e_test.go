package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/nalgeon/be"

	"x64cc/pkg/asm"
	"x64cc/pkg/compiler"
)

// End-to-end programs are compiled, checked with the listing verifier and,
// when a C toolchain is available on linux/amd64, linked and run.
var e2ePrograms = []struct {
	name   string
	doc    string
	stdout string
}{
	{
		name: "fib",
		doc: `funcs:
  - name: fib
    return: int
    params: [{name: n, type: int}]
    body:
      - kind: if
        cond: {kind: binary, op: "<", left: {kind: id, name: n}, right: {kind: num, text: "2"}}
        then:
          - {kind: return, expr: {kind: id, name: n}}
      - kind: return
        expr:
          kind: binary
          op: "+"
          left: {kind: call, name: fib, args: [{kind: binary, op: "-", left: {kind: id, name: n}, right: {kind: num, text: "1"}}]}
          right: {kind: call, name: fib, args: [{kind: binary, op: "-", left: {kind: id, name: n}, right: {kind: num, text: "2"}}]}
  - name: main
    return: int
    body:
      - {kind: print, expr: {kind: call, name: fib, args: [{kind: num, text: "10"}]}}
`,
		stdout: "55\n",
	},
	{
		name: "types",
		doc: `top:
  - {kind: var, type: long, vars: [{name: big, init: {kind: binary, op: "**", left: {kind: num, text: "2l"}, right: {kind: num, text: "40"}}}]}
funcs:
  - name: main
    return: int
    body:
      - {kind: var, type: unsigned int, vars: [{name: u, init: {kind: num, text: "0u"}}]}
      - {kind: assign, name: u, value: {kind: binary, op: "-", left: {kind: id, name: u}, right: {kind: num, text: "1u"}}}
      - {kind: print, expr: {kind: id, name: u}}
      - {kind: print, expr: {kind: id, name: big}}
      - {kind: print, expr: {kind: binary, op: "/", left: {kind: num, text: "5.0"}, right: {kind: num, text: "2"}}}
      - {kind: print, expr: {kind: binary, op: "<", left: {kind: num, text: "1"}, right: {kind: num, text: "2"}}}
`,
		stdout: "4294967295\n1099511627776\n2.500000\n1\n",
	},
	{
		name: "loops",
		doc: `top:
  - {kind: var, type: int, vars: [{name: total, init: {kind: num, text: "0"}}]}
  - kind: for
    init: {kind: var, type: int, vars: [{name: i, init: {kind: num, text: "1"}}]}
    cond: {kind: binary, op: "<", left: {kind: id, name: i}, right: {kind: num, text: "5"}}
    step: {kind: assign, name: i, value: {kind: binary, op: "+", left: {kind: id, name: i}, right: {kind: num, text: "1"}}}
    body:
      - {kind: assign, name: total, value: {kind: binary, op: "+", left: {kind: id, name: total}, right: {kind: id, name: i}}}
funcs:
  - name: main
    return: int
    body:
      - {kind: var, type: int, vars: [{name: n, init: {kind: num, text: "3"}}]}
      - kind: while
        cond: {kind: binary, op: "<", left: {kind: num, text: "0"}, right: {kind: id, name: n}}
        body:
          - {kind: print, expr: {kind: binary, op: "**", left: {kind: id, name: n}, right: {kind: num, text: "2"}}}
          - {kind: assign, name: n, value: {kind: binary, op: "-", left: {kind: id, name: n}, right: {kind: num, text: "1"}}}
      - {kind: print, expr: {kind: id, name: total}}
`,
		stdout: "9\n4\n1\n10\n",
	},
	{
		name: "global-assign-then-init",
		doc: `top:
  - {kind: var, type: int, vars: [{name: x}]}
  - {kind: assign, name: x, value: {kind: num, text: "2"}}
  - {kind: var, type: int, vars: [{name: x, init: {kind: num, text: "5"}}]}
  - {kind: print, expr: {kind: id, name: x}}
`,
		stdout: "5\n",
	},
	{
		name: "global-read-then-init",
		doc: `top:
  - {kind: var, type: int, vars: [{name: x}]}
  - {kind: print, expr: {kind: id, name: x}}
  - {kind: var, type: int, vars: [{name: x, init: {kind: num, text: "5"}}]}
funcs:
  - name: main
    return: int
    body:
      - {kind: print, expr: {kind: id, name: x}}
`,
		stdout: "0\n5\n",
	},
}

func TestEndToEnd(t *testing.T) {
	cc, err := exec.LookPath("cc")
	runnable := err == nil && runtime.GOOS == "linux" && runtime.GOARCH == "amd64"

	for _, p := range e2ePrograms {
		t.Run(p.name, func(t *testing.T) {
			_, out, err := compiler.CompileDocument([]byte(p.doc), compiler.Options{})
			be.Err(t, err, nil)

			listing, err := asm.Parse(out.Asm)
			be.Err(t, err, nil)
			be.Err(t, listing.Verify(), nil)

			if !runnable {
				t.Skip("no C toolchain for linux/amd64")
			}
			dir := t.TempDir()
			src := filepath.Join(dir, p.name+".s")
			bin := filepath.Join(dir, p.name)
			be.Err(t, os.WriteFile(src, []byte(out.Asm), 0o644), nil)

			if msg, err := exec.Command(cc, "-o", bin, src).CombinedOutput(); err != nil {
				t.Fatalf("link failed: %v\n%s\nAssembly:\n%s", err, msg, out.Asm)
			}
			got, err := exec.Command(bin).Output()
			be.Err(t, err, nil)
			be.Equal(t, string(got), p.stdout)
		})
	}
}
