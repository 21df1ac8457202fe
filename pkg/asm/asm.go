// Package asm reads back the GNU assembler listings produced by the compiler.
// It does not encode anything: it classifies lines, resolves labels and
// checks that every local branch target exists, which is enough for tests and
// for the driver's -verify flag.
package asm

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

type Kind int

const (
	Blank Kind = iota
	Comment
	Label
	Directive
	Instruction
)

func (k Kind) String() string {
	switch k {
	case Comment:
		return "comment"
	case Label:
		return "label"
	case Directive:
		return "directive"
	case Instruction:
		return "instruction"
	}
	return "blank"
}

// Line is one classified source line. A line may carry labels and an
// instruction or directive at the same time; Kind names the latter when
// present.
type Line struct {
	No       int
	Kind     Kind
	Labels   []string
	Mnemonic string
	Operands []string
	Section  string
	Comment  string
}

func (l Line) String() string {
	if len(l.Operands) == 0 {
		return l.Mnemonic
	}
	return l.Mnemonic + " " + strings.Join(l.Operands, ", ")
}

// Listing is a parsed assembly file.
type Listing struct {
	Lines  []Line
	labels map[string][]int // label -> defining line numbers
}

// Parse classifies every line of code. It only fails on text that is not
// assembler syntax at all, such as a malformed label or an unterminated
// string.
func Parse(code string) (*Listing, error) {
	l := &Listing{labels: make(map[string][]int)}
	section := ".text"
	for i, raw := range strings.Split(code, "\n") {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		if p.Kind == Directive {
			switch p.Mnemonic {
			case ".text", ".data", ".bss":
				section = p.Mnemonic
			case ".section":
				if len(p.Operands) > 0 {
					section = p.Operands[0]
				}
			}
		}
		p.Section = section
		for _, lbl := range p.Labels {
			l.labels[lbl] = append(l.labels[lbl], p.No)
		}
		l.Lines = append(l.Lines, p)
	}
	return l, nil
}

func parseLine(raw string, lineNo int) (Line, error) {
	p := Line{No: lineNo}
	code, comment, err := splitComment(raw)
	if err != nil {
		return p, fmt.Errorf("line %d: %w", lineNo, err)
	}
	p.Comment = comment
	line := strings.TrimSpace(code)
	if line == "" {
		if comment != "" {
			p.Kind = Comment
		}
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 || strings.ContainsAny(line[:colon], " \t\"") {
			break
		}
		name := line[:colon]
		if !isSymbol(name) {
			return p, fmt.Errorf("invalid label '%s' on line %d", name, lineNo)
		}
		p.Labels = append(p.Labels, name)
		p.Kind = Label
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest, _ := strings.Cut(line, " ")
	if tab := strings.IndexByte(mnemonic, '\t'); tab >= 0 {
		mnemonic, rest = mnemonic[:tab], mnemonic[tab+1:]+" "+rest
	}
	p.Mnemonic = mnemonic
	p.Operands = splitOperands(strings.TrimSpace(rest))
	if strings.HasPrefix(mnemonic, ".") {
		p.Kind = Directive
	} else {
		p.Kind = Instruction
	}
	return p, nil
}

// splitComment separates code from a trailing '#' comment, honouring
// string literals.
func splitComment(raw string) (code, comment string, err error) {
	inString := false
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return raw[:i], strings.TrimSpace(raw[i+1:]), nil
			}
		}
	}
	if inString {
		return "", "", errors.New("unterminated string literal")
	}
	return raw, "", nil
}

// splitOperands splits on commas outside parentheses and quotes.
func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	var ops []string
	depth, inString, start := 0, false, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
			}
		case ',':
			if !inString && depth == 0 {
				ops = append(ops, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(ops, strings.TrimSpace(s[start:]))
}

func isSymbol(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || r == '.' || r == '$' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return s != ""
}

// IsLocal reports whether a label is private to the listing: the .L family
// and function epilogue labels.
func IsLocal(label string) bool {
	return strings.HasPrefix(label, ".L") || strings.HasPrefix(label, ".end_")
}

// Defined reports whether label is defined somewhere in the listing.
func (l *Listing) Defined(label string) bool {
	return len(l.labels[label]) > 0
}

// Labels returns every defined label, sorted.
func (l *Listing) Labels() []string {
	names := make([]string, 0, len(l.labels))
	for name := range l.labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instructions returns the instruction lines in order.
func (l *Listing) Instructions() []Line {
	var out []Line
	for _, line := range l.Lines {
		if line.Kind == Instruction {
			out = append(out, line)
		}
	}
	return out
}

// Count returns how many instructions use mnemonic.
func (l *Listing) Count(mnemonic string) int {
	n := 0
	for _, line := range l.Lines {
		if line.Kind == Instruction && line.Mnemonic == mnemonic {
			n++
		}
	}
	return n
}

// Branches returns every jump and call in order.
func (l *Listing) Branches() []Line {
	var out []Line
	for _, line := range l.Lines {
		if line.Kind == Instruction && isBranch(line.Mnemonic) {
			out = append(out, line)
		}
	}
	return out
}

func isBranch(mnemonic string) bool {
	return strings.HasPrefix(mnemonic, "j") || mnemonic == "call"
}

// Verify reports structural problems: labels defined twice, branches to
// local labels that do not exist, and instructions outside an executable
// section.
func (l *Listing) Verify() error {
	var errs []error
	for _, name := range l.Labels() {
		if lines := l.labels[name]; len(lines) > 1 {
			errs = append(errs, fmt.Errorf("duplicate label '%s' on lines %v", name, lines))
		}
	}
	for _, line := range l.Lines {
		if line.Kind != Instruction {
			continue
		}
		if line.Section != ".text" {
			errs = append(errs, fmt.Errorf("instruction %q on line %d is in section %s", line, line.No, line.Section))
		}
		if isBranch(line.Mnemonic) && len(line.Operands) == 1 {
			target := line.Operands[0]
			if IsLocal(target) && !l.Defined(target) {
				errs = append(errs, fmt.Errorf("undefined label '%s' on line %d", target, line.No))
			}
		}
	}
	return errors.Join(errs...)
}

// SourceMap maps each instruction's index in Instructions to its line
// number in the listing.
func (l *Listing) SourceMap() map[int]int {
	m := make(map[int]int)
	idx := 0
	for _, line := range l.Lines {
		if line.Kind == Instruction {
			m[idx] = line.No
			idx++
		}
	}
	return m
}

// Marks groups instructions by the "SNAPIDX n" comment that precedes them.
// Instructions before the first marker are not reported.
func (l *Listing) Marks() map[int][]Line {
	marks := make(map[int][]Line)
	current := -1
	for _, line := range l.Lines {
		if line.Kind == Comment && strings.HasPrefix(line.Comment, "SNAPIDX ") {
			fields := strings.Fields(line.Comment)
			if len(fields) >= 2 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					current = n
					marks[current] = marks[current][:0:0]
				}
			}
			continue
		}
		if line.Kind == Instruction && current >= 0 {
			marks[current] = append(marks[current], line)
		}
	}
	return marks
}
