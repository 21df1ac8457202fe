// Package casebook extracts compiler test cases from Markdown documents.
//
// A case starts at a heading "Test: <name>" and owns every fenced block up to
// the next such heading. Exactly one fence is the input program (language
// "ast", a YAML AST document); the others are assertions:
//
//	asm-contains   lines that must appear in the assembly, one per line
//	asm-absent     lines that must not appear in the assembly
//	types          "name: type" pairs for the resolved globals
//	compile-error  a substring of the expected compile error
//	frame          the expected frame layout of one function
//	snapshots      expected snapshot labels, one per line
package casebook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const InputFence = "ast"

type AssertionType string

const (
	AsmContains  AssertionType = "asm-contains"
	AsmAbsent    AssertionType = "asm-absent"
	Types        AssertionType = "types"
	CompileError AssertionType = "compile-error"
	Frame        AssertionType = "frame"
	Snapshots    AssertionType = "snapshots"
)

func isAssertion(language string) bool {
	switch AssertionType(language) {
	case AsmContains, AsmAbsent, Types, CompileError, Frame, Snapshots:
		return true
	}
	return false
}

type Assertion struct {
	Type    AssertionType
	Content string
	Line    int
}

// Lines returns the non-blank lines of the assertion, trimmed.
func (a Assertion) Lines() []string {
	var out []string
	for _, l := range strings.Split(a.Content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Pairs splits "key: value" lines.
func (a Assertion) Pairs() ([][2]string, error) {
	var out [][2]string
	for _, l := range a.Lines() {
		k, v, ok := strings.Cut(l, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'key: value', got %q", a.Line, l)
		}
		out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return out, nil
}

type Case struct {
	Name       string
	Input      string
	Line       int // line of the heading
	Assertions []Assertion
}

// Extract parses a Markdown document and returns its cases in order.
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var cur *Case
	finish := func() error {
		if cur == nil {
			return nil
		}
		if cur.Input == "" {
			return fmt.Errorf("test '%s' has no %s fence", cur.Name, InputFence)
		}
		if len(cur.Assertions) == 0 {
			return fmt.Errorf("test '%s' has no assertion fences", cur.Name)
		}
		cases = append(cases, *cur)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			name, ok := strings.CutPrefix(heading, "Test: ")
			if !ok {
				return ast.WalkContinue, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			cur = &Case{Name: name, Line: lineOf(n, markdown)}

		case *ast.FencedCodeBlock:
			language := string(n.Language(markdown))
			line := lineOf(n, markdown)
			if language == "" {
				return ast.WalkContinue, nil
			}
			if language != InputFence && !isAssertion(language) {
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s'", line, language)
			}
			if cur == nil {
				return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", line, language)
			}
			content := strings.TrimRight(blockText(n, markdown), "\n")
			if language == InputFence {
				if cur.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple %s fences in test '%s'", line, InputFence, cur.Name)
				}
				cur.Input = content
				return ast.WalkContinue, nil
			}
			cur.Assertions = append(cur.Assertions, Assertion{Type: AssertionType(language), Content: content, Line: line})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return cases, nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based source line of a block node. Fences report the
// line of their first content line.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte("\n")) + 1
}
