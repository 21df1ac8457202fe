// Package compiler type-checks programs of a small C-like language and
// lowers them to x86-64 assembly for the GNU assembler.
//
// Pipeline: AST document → Decode → Check → Generate → GNU as text
//
// Check annotates the tree in place and stops at the first semantic error.
// Generate lays out each function's frame, folds constant integer
// subexpressions and optionally records frame snapshots for a step
// debugger.
package compiler
