package main

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/lexer"
)

type MachineWord int16

// MaxIntegerConstant is the largest literal the VM's 16 bit constant segment accepts.
const MaxIntegerConstant = 32767

type TokenType string

const (
	InvalidToken    TokenType = ""
	Keyword         TokenType = "keyword"
	SymbolTokenType TokenType = "symbol"
	IntegerConstant TokenType = "integerConstant"
	StringConstant  TokenType = "stringConstant"
	Identifier      TokenType = "identifier"
)

type Token struct {
	tokenType TokenType
	terminal  string
	pos       lexer.Position
}

func (t Token) String() string {
	if t.tokenType == InvalidToken {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.tokenType, t.terminal)
}

// is reports whether t is the keyword or symbol terminal.
func (t Token) is(terminal string) bool {
	return (t.tokenType == Keyword || t.tokenType == SymbolTokenType) && t.terminal == terminal
}

func (t Token) asInt() (MachineWord, error) {
	word, err := strconv.Atoi(t.terminal)
	// < 0 as - is an operator
	if err != nil || word > MaxIntegerConstant || word < 0 {
		return 0, fmt.Errorf("cannot represent %s as a 16 bit integer constant", t.terminal)
	}
	return MachineWord(word), nil
}
