package main

import (
	"fmt"

	"github.com/alecthomas/participle/lexer"
)

type ErrorKind string

const (
	LexicalError  ErrorKind = "lexical"
	SyntaxError   ErrorKind = "syntax"
	SemanticError ErrorKind = "semantic"
)

// CompileError is the single fatal diagnostic reported for a file.
type CompileError struct {
	Kind ErrorKind
	Pos  lexer.Position
	// Rule is the grammar rule that was active, empty for lexical errors.
	Rule string
	Msg  string
}

func (e *CompileError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("%s: %s error: %s", e.Pos, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s error in %s: %s", e.Pos, e.Kind, e.Rule, e.Msg)
}

func newLexicalError(pos lexer.Position, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: LexicalError, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
