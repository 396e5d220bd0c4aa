package main

import (
	"io"
	"strings"
)

type markupTag int

const (
	tagClass markupTag = iota
	tagClassVarDec
	tagSubroutineDec
	tagParameterList
	tagSubroutineBody
	tagVarDec
	tagStatements
	tagLetStatement
	tagIfStatement
	tagWhileStatement
	tagDoStatement
	tagReturnStatement
	tagExpression
	tagTerm
	tagExpressionList

	tagTokens
	tagKeyword
	tagSymbol
	tagIntegerConstant
	tagStringConstant
	tagIdentifier
)

var markupTagNames = [...]string{
	tagClass:           "class",
	tagClassVarDec:     "classVarDec",
	tagSubroutineDec:   "subroutineDec",
	tagParameterList:   "parameterList",
	tagSubroutineBody:  "subroutineBody",
	tagVarDec:          "varDec",
	tagStatements:      "statements",
	tagLetStatement:    "letStatement",
	tagIfStatement:     "ifStatement",
	tagWhileStatement:  "whileStatement",
	tagDoStatement:     "doStatement",
	tagReturnStatement: "returnStatement",
	tagExpression:      "expression",
	tagTerm:            "term",
	tagExpressionList:  "expressionList",
	tagTokens:          "tokens",
	tagKeyword:         "keyword",
	tagSymbol:          "symbol",
	tagIntegerConstant: "integerConstant",
	tagStringConstant:  "stringConstant",
	tagIdentifier:      "identifier",
}

func (t markupTag) String() string {
	return markupTagNames[t]
}

func tokenTag(tokenType TokenType) markupTag {
	switch tokenType {
	case Keyword:
		return tagKeyword
	case SymbolTokenType:
		return tagSymbol
	case IntegerConstant:
		return tagIntegerConstant
	case StringConstant:
		return tagStringConstant
	}
	return tagIdentifier
}

var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// markupWriter renders a parse tree as indented markup. Rules are nested
// elements, terminals are single line elements named after their kind.
type markupWriter struct {
	output strings.Builder
	depth  int
}

func (m *markupWriter) indent() {
	m.output.WriteString(strings.Repeat("  ", m.depth))
}

func (m *markupWriter) open(tag markupTag) {
	m.indent()
	m.output.WriteString("<" + tag.String() + ">\n")
	m.depth++
}

func (m *markupWriter) close(tag markupTag) {
	m.depth--
	m.indent()
	m.output.WriteString("</" + tag.String() + ">\n")
}

func (m *markupWriter) element(tag markupTag, content string) {
	m.indent()
	m.output.WriteString("<" + tag.String() + "> " + markupEscaper.Replace(content) + " </" + tag.String() + ">\n")
}

func (m *markupWriter) terminal(token Token) {
	m.element(tokenTag(token.tokenType), token.terminal)
}

func (m *markupWriter) String() string {
	return m.output.String()
}

// WriteTokenMarkup writes the flat token listing of a file.
func WriteTokenMarkup(w io.Writer, tokens []Token) error {
	var m markupWriter
	m.output.WriteString("<" + tagTokens.String() + ">\n")
	for _, token := range tokens {
		m.terminal(token)
	}
	m.output.WriteString("</" + tagTokens.String() + ">\n")
	_, err := io.WriteString(w, m.String())
	return err
}
