package compiler

import (
	"fmt"
)

// Compile checks prog and lowers it to assembly. Semantic errors come back
// as *SemanticError and no output is produced.
func Compile(prog *Program, opts Options) (*Output, error) {
	info, err := Check(prog)
	if err != nil {
		return nil, err
	}
	out, err := Generate(prog, info, opts)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	return out, nil
}

// CompileDocument decodes an AST document and compiles it. The decoded
// program is returned even when checking fails, for diagnostics.
func CompileDocument(doc []byte, opts Options) (*Program, *Output, error) {
	prog, err := DecodeBytes(doc)
	if err != nil {
		return nil, nil, err
	}
	out, err := Compile(prog, opts)
	return prog, out, err
}
