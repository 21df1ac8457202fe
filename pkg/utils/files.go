package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveInput makes an input path absolute and returns it together with
// its directory.
func ResolveInput(path string) (abs, dir string, err error) {
	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve input %q: %w", path, err)
	}
	return abs, filepath.Dir(abs), nil
}

// Outputs are the files written for one compiled input.
type Outputs struct {
	Asm    string // <base>.s
	Stack  string // <base>_stack.json
	AsmMap string // <base>_stack.json.asm.json
	Image  string // <base>_stack.png
}

// OutputsFor derives output paths from the input document path. Outputs go
// to outDir, or next to the input when outDir is empty.
func OutputsFor(input, outDir string) Outputs {
	dir := filepath.Dir(input)
	if outDir != "" {
		dir = outDir
	}
	name := filepath.Base(input)
	base := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name)))
	stack := base + "_stack.json"
	return Outputs{
		Asm:    base + ".s",
		Stack:  stack,
		AsmMap: stack + ".asm.json",
		Image:  base + "_stack.png",
	}
}
