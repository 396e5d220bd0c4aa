package main

import (
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/davecgh/go-spew/spew"
)

const (
	allocFunction = "Memory.alloc"

	thisPointer MachineWord = 0
	thatPointer MachineWord = 1

	// The call result of a do statement is dropped here.
	discardTemp MachineWord = 0
	// Destination address of an array assignment while its right hand side
	// is evaluated.
	arrayAddressTemp MachineWord = 3
)

// Operators lowered to OS calls instead of opcodes.
var libraryOperations = map[string]string{
	"*": "Math.multiply",
	"/": "Math.divide",
}

var statementKeywords = map[string]bool{
	"let":    true,
	"if":     true,
	"while":  true,
	"do":     true,
	"return": true,
}

// JackCompiler translates the tokens of one class into VM commands. A
// JackCompiler compiles a single class and cannot be reused.
type JackCompiler struct {
	tokens    *TokenStream
	symbols   SymbolTable
	className string
	labels    int

	// subroutineSeen rejects class variables declared after a subroutine.
	subroutineSeen bool

	class      VMWriter
	subroutine *VMWriter
	markup     *markupWriter

	logger  *log.Logger
	tracing bool
}

func NewJackCompiler(tokens []Token) *JackCompiler {
	return &JackCompiler{
		tokens:  NewTokenStream(tokens),
		symbols: NewSymbolTable(),
		logger:  log.New(io.Discard, "", 0),
	}
}

// SetTrace logs every grammar rule entered and the symbols of every
// finished subroutine to w.
func (c *JackCompiler) SetTrace(w io.Writer) {
	c.logger = log.New(w, "jackc: ", 0)
	c.tracing = true
}

// Compile parses the class and writes its VM code to w. Nothing is written
// unless the whole class compiled.
func (c *JackCompiler) Compile(w io.Writer) error {
	if err := c.compileClass(); err != nil {
		return err
	}
	_, err := c.class.WriteTo(w)
	return err
}

// CompileMarkup parses the class and writes its parse tree to w instead of
// VM code.
func (c *JackCompiler) CompileMarkup(w io.Writer) error {
	c.markup = &markupWriter{}
	if err := c.compileClass(); err != nil {
		return err
	}
	_, err := io.WriteString(w, c.markup.String())
	return err
}

func (c *JackCompiler) enter(rule markupTag) {
	if c.tracing {
		c.logger.Printf("Compiling %s at %s", rule, c.tokens.Token().pos)
	}
	if c.markup != nil {
		c.markup.open(rule)
	}
}

func (c *JackCompiler) leave(rule markupTag) {
	if c.markup != nil {
		c.markup.close(rule)
	}
}

func (c *JackCompiler) syntaxError(rule markupTag, format string, args ...interface{}) error {
	return &CompileError{
		Kind: SyntaxError,
		Pos:  c.tokens.Token().pos,
		Rule: rule.String(),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (c *JackCompiler) unexpected(rule markupTag, expectation string) error {
	return c.syntaxError(rule, "expected %s, got %s", expectation, c.tokens.Token())
}

func (c *JackCompiler) semanticError(token Token, rule markupTag, format string, args ...interface{}) error {
	return &CompileError{
		Kind: SemanticError,
		Pos:  token.pos,
		Rule: rule.String(),
		Msg:  fmt.Sprintf(format, args...),
	}
}

// advance consumes the current token and records it in the parse tree.
func (c *JackCompiler) advance() Token {
	token := c.tokens.Advance()
	if c.markup != nil {
		c.markup.terminal(token)
	}
	return token
}

func (c *JackCompiler) compileTerminal(rule markupTag, terminal string) error {
	if !c.tokens.Token().is(terminal) {
		return c.unexpected(rule, strconv.Quote(terminal))
	}
	c.advance()
	return nil
}

func (c *JackCompiler) compileIdentifier(rule markupTag) (Token, error) {
	token := c.tokens.Token()
	if token.tokenType != Identifier {
		return Token{}, c.unexpected(rule, "identifier")
	}
	return c.advance(), nil
}

func (c *JackCompiler) compileType(rule markupTag, allowVoid bool) (string, error) {
	token := c.tokens.Token()
	switch {
	case token.tokenType == Identifier,
		token.is("int"), token.is("char"), token.is("boolean"),
		allowVoid && token.is("void"):
		c.advance()
		return token.terminal, nil
	}
	if allowVoid {
		return "", c.unexpected(rule, "return type")
	}
	return "", c.unexpected(rule, "type")
}

func (c *JackCompiler) define(token Token, variableType string, symbolType SymbolType, rule markupTag) (Symbol, error) {
	symbol, err := c.symbols.Define(token.terminal, variableType, symbolType)
	if err != nil && c.markup == nil {
		return Symbol{}, c.semanticError(token, rule, "%v", err)
	}
	return symbol, nil
}

// lookupVariable resolves a variable use. The parse tree dump only mirrors
// syntax, so there an unknown name resolves to the zero Symbol.
func (c *JackCompiler) lookupVariable(token Token, rule markupTag) (Symbol, error) {
	symbol, ok := c.symbols.Lookup(token.terminal)
	if !ok && c.markup == nil {
		return Symbol{}, c.semanticError(token, rule, "undeclared variable %q", token.terminal)
	}
	return symbol, nil
}

// newLabel returns a label unique within the class.
func (c *JackCompiler) newLabel(annotation string) string {
	label := fmt.Sprintf("%s_%d_%s", c.className, c.labels, annotation)
	c.labels++
	return label
}

// 'class' className '{' classVarDec* subroutineDec* '}'
func (c *JackCompiler) compileClass() error {
	c.enter(tagClass)
	defer c.leave(tagClass)

	c.symbols.StartClass()
	if err := c.compileTerminal(tagClass, "class"); err != nil {
		return err
	}
	name, err := c.compileIdentifier(tagClass)
	if err != nil {
		return err
	}
	c.className = name.terminal
	if err := c.compileTerminal(tagClass, "{"); err != nil {
		return err
	}

	for {
		token := c.tokens.Token()
		switch {
		case token.is("static"), token.is("field"):
			if c.subroutineSeen {
				return c.syntaxError(tagClass, "%s declared after a subroutine declaration", token)
			}
			err = c.compileClassVarDec()
		case token.is("constructor"), token.is("function"), token.is("method"):
			c.subroutineSeen = true
			err = c.compileSubroutineDec()
		case token.is("}"):
			c.advance()
			if !c.tokens.Done() {
				return c.syntaxError(tagClass, "unexpected %s after the end of class %s", c.tokens.Token(), c.className)
			}
			return nil
		default:
			return c.unexpected(tagClass, "class variable declaration, subroutine declaration or \"}\"")
		}
		if err != nil {
			return err
		}
	}
}

// ('static' | 'field') type varName (',' varName)* ';'
func (c *JackCompiler) compileClassVarDec() error {
	c.enter(tagClassVarDec)
	defer c.leave(tagClassVarDec)

	symbolType := StaticSymbol
	if c.advance().terminal == "field" {
		symbolType = FieldSymbol
	}
	variableType, err := c.compileType(tagClassVarDec, false)
	if err != nil {
		return err
	}
	for {
		name, err := c.compileIdentifier(tagClassVarDec)
		if err != nil {
			return err
		}
		if _, err := c.define(name, variableType, symbolType, tagClassVarDec); err != nil {
			return err
		}
		if !c.tokens.Token().is(",") {
			break
		}
		c.advance()
	}
	return c.compileTerminal(tagClassVarDec, ";")
}

// ('constructor' | 'function' | 'method') ('void' | type) subroutineName
// '(' parameterList ')' subroutineBody
func (c *JackCompiler) compileSubroutineDec() error {
	c.enter(tagSubroutineDec)
	defer c.leave(tagSubroutineDec)

	c.symbols.StartSubroutine()
	subroutine := NewVMWriter()
	c.subroutine = &subroutine

	keyword := c.advance()
	if _, err := c.compileType(tagSubroutineDec, true); err != nil {
		return err
	}
	name, err := c.compileIdentifier(tagSubroutineDec)
	if err != nil {
		return err
	}

	switch keyword.terminal {
	case "method":
		// The receiver is the hidden argument 0.
		if _, err := c.symbols.Define("this", c.className, ArgumentSymbol); err != nil {
			return c.semanticError(keyword, tagSubroutineDec, "%v", err)
		}
		c.subroutine.WritePush(ArgumentVMSegment, 0)
		c.subroutine.WritePop(PointerVMSegment, thisPointer)
	case "constructor":
		c.subroutine.WritePush(ConstVMSegment, c.symbols.Count(FieldSymbol))
		c.subroutine.WriteCall(allocFunction, 1)
		c.subroutine.WritePop(PointerVMSegment, thisPointer)
	}

	if err := c.compileTerminal(tagSubroutineDec, "("); err != nil {
		return err
	}
	if err := c.compileParameterList(); err != nil {
		return err
	}
	if err := c.compileTerminal(tagSubroutineDec, ")"); err != nil {
		return err
	}
	if err := c.compileSubroutineBody(); err != nil {
		return err
	}

	functionName := c.className + "." + name.terminal
	c.subroutine.Prepend(formatFunction(functionName, c.symbols.Count(VarSymbol)))
	c.class.Append(c.subroutine)

	if c.tracing {
		c.logger.Printf("Compiled %s, symbols:\n%s", functionName, spew.Sdump(c.symbols.functionScopeTable))
	}
	return nil
}

// ((type varName) (',' type varName)*)?
func (c *JackCompiler) compileParameterList() error {
	c.enter(tagParameterList)
	defer c.leave(tagParameterList)

	if c.tokens.Token().is(")") {
		return nil
	}
	for {
		variableType, err := c.compileType(tagParameterList, false)
		if err != nil {
			return err
		}
		name, err := c.compileIdentifier(tagParameterList)
		if err != nil {
			return err
		}
		if _, err := c.define(name, variableType, ArgumentSymbol, tagParameterList); err != nil {
			return err
		}
		if !c.tokens.Token().is(",") {
			return nil
		}
		c.advance()
	}
}

// '{' varDec* statements '}'
func (c *JackCompiler) compileSubroutineBody() error {
	c.enter(tagSubroutineBody)
	defer c.leave(tagSubroutineBody)

	if err := c.compileTerminal(tagSubroutineBody, "{"); err != nil {
		return err
	}
	for c.tokens.Token().is("var") {
		if err := c.compileVarDec(); err != nil {
			return err
		}
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	return c.compileTerminal(tagSubroutineBody, "}")
}

// 'var' type varName (',' varName)* ';'
//
// Locals are zeroed as they are declared.
func (c *JackCompiler) compileVarDec() error {
	c.enter(tagVarDec)
	defer c.leave(tagVarDec)

	c.advance()
	variableType, err := c.compileType(tagVarDec, false)
	if err != nil {
		return err
	}
	for {
		name, err := c.compileIdentifier(tagVarDec)
		if err != nil {
			return err
		}
		symbol, err := c.define(name, variableType, VarSymbol, tagVarDec)
		if err != nil {
			return err
		}
		c.subroutine.WritePush(ConstVMSegment, 0)
		c.subroutine.WritePop(LocalVMSegment, symbol.index)

		if !c.tokens.Token().is(",") {
			break
		}
		c.advance()
	}
	return c.compileTerminal(tagVarDec, ";")
}

// statement*
func (c *JackCompiler) compileStatements() error {
	c.enter(tagStatements)
	defer c.leave(tagStatements)

	for {
		token := c.tokens.Token()
		if token.tokenType != Keyword || !statementKeywords[token.terminal] {
			return nil
		}

		var err error
		switch token.terminal {
		case "let":
			err = c.compileLetStatement()
		case "if":
			err = c.compileIfStatement()
		case "while":
			err = c.compileWhileStatement()
		case "do":
			err = c.compileDoStatement()
		case "return":
			err = c.compileReturnStatement()
		}
		if err != nil {
			return err
		}
	}
}

// 'let' varName ('[' expression ']')? '=' expression ';'
func (c *JackCompiler) compileLetStatement() error {
	c.enter(tagLetStatement)
	defer c.leave(tagLetStatement)

	c.advance()
	name, err := c.compileIdentifier(tagLetStatement)
	if err != nil {
		return err
	}
	symbol, err := c.lookupVariable(name, tagLetStatement)
	if err != nil {
		return err
	}

	if !c.tokens.Token().is("[") {
		if err := c.compileAssignedExpression(); err != nil {
			return err
		}
		c.subroutine.WritePop(symbol.symbolType.segment(), symbol.index)
		return nil
	}

	// The right hand side may index arrays itself, which moves pointer 1,
	// so the destination address waits in temp until it is evaluated.
	c.advance()
	c.subroutine.WritePush(symbol.symbolType.segment(), symbol.index)
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.compileTerminal(tagLetStatement, "]"); err != nil {
		return err
	}
	c.subroutine.WriteArithmetic(AddVMOperation)
	c.subroutine.WritePop(TempVMSegment, arrayAddressTemp)

	if err := c.compileAssignedExpression(); err != nil {
		return err
	}
	c.subroutine.WritePush(TempVMSegment, arrayAddressTemp)
	c.subroutine.WritePop(PointerVMSegment, thatPointer)
	c.subroutine.WritePop(ThatVMSegment, 0)
	return nil
}

// '=' expression ';'
func (c *JackCompiler) compileAssignedExpression() error {
	if err := c.compileTerminal(tagLetStatement, "="); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	return c.compileTerminal(tagLetStatement, ";")
}

// 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
func (c *JackCompiler) compileIfStatement() error {
	c.enter(tagIfStatement)
	defer c.leave(tagIfStatement)

	falseLabel := c.newLabel("if_false")
	endLabel := c.newLabel("if_end")

	c.advance()
	if err := c.compileCondition(tagIfStatement); err != nil {
		return err
	}
	c.subroutine.WriteArithmetic(NotVMOperation)
	c.subroutine.WriteIf(falseLabel)

	if err := c.compileBlock(tagIfStatement); err != nil {
		return err
	}
	c.subroutine.WriteGoto(endLabel)
	c.subroutine.WriteLabel(falseLabel)

	if c.tokens.Token().is("else") {
		c.advance()
		if err := c.compileBlock(tagIfStatement); err != nil {
			return err
		}
	}
	c.subroutine.WriteLabel(endLabel)
	return nil
}

// 'while' '(' expression ')' '{' statements '}'
func (c *JackCompiler) compileWhileStatement() error {
	c.enter(tagWhileStatement)
	defer c.leave(tagWhileStatement)

	startLabel := c.newLabel("while_start")
	endLabel := c.newLabel("while_end")

	c.advance()
	c.subroutine.WriteLabel(startLabel)
	if err := c.compileCondition(tagWhileStatement); err != nil {
		return err
	}
	c.subroutine.WriteArithmetic(NotVMOperation)
	c.subroutine.WriteIf(endLabel)

	if err := c.compileBlock(tagWhileStatement); err != nil {
		return err
	}
	c.subroutine.WriteGoto(startLabel)
	c.subroutine.WriteLabel(endLabel)
	return nil
}

// '(' expression ')'
func (c *JackCompiler) compileCondition(rule markupTag) error {
	if err := c.compileTerminal(rule, "("); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	return c.compileTerminal(rule, ")")
}

// '{' statements '}'
func (c *JackCompiler) compileBlock(rule markupTag) error {
	if err := c.compileTerminal(rule, "{"); err != nil {
		return err
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	return c.compileTerminal(rule, "}")
}

// 'do' subroutineCall ';'
func (c *JackCompiler) compileDoStatement() error {
	c.enter(tagDoStatement)
	defer c.leave(tagDoStatement)

	c.advance()
	if err := c.compileSubroutineCall(tagDoStatement); err != nil {
		return err
	}
	if err := c.compileTerminal(tagDoStatement, ";"); err != nil {
		return err
	}
	c.subroutine.WritePop(TempVMSegment, discardTemp)
	return nil
}

// 'return' expression? ';'
//
// Callers always pop a result, so void routines return 0.
func (c *JackCompiler) compileReturnStatement() error {
	c.enter(tagReturnStatement)
	defer c.leave(tagReturnStatement)

	c.advance()
	if c.tokens.Token().is(";") {
		c.subroutine.WritePush(ConstVMSegment, 0)
	} else if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.compileTerminal(tagReturnStatement, ";"); err != nil {
		return err
	}
	c.subroutine.WriteReturn()
	return nil
}

// term (op term)*
//
// Operators have no precedence and apply strictly left to right.
func (c *JackCompiler) compileExpression() error {
	c.enter(tagExpression)
	defer c.leave(tagExpression)

	if err := c.compileTerm(); err != nil {
		return err
	}
	for {
		token := c.tokens.Token()
		if token.tokenType != SymbolTokenType {
			return nil
		}
		operation, native := binaryOperations[token.terminal]
		function, library := libraryOperations[token.terminal]
		if !native && !library {
			return nil
		}

		c.advance()
		if err := c.compileTerm(); err != nil {
			return err
		}
		if native {
			c.subroutine.WriteArithmetic(operation)
		} else {
			c.subroutine.WriteCall(function, 2)
		}
	}
}

// integerConstant | stringConstant | keywordConstant | varName |
// varName '[' expression ']' | subroutineCall | '(' expression ')' | unaryOp term
func (c *JackCompiler) compileTerm() error {
	c.enter(tagTerm)
	defer c.leave(tagTerm)

	token := c.tokens.Token()
	switch token.tokenType {
	case IntegerConstant:
		value, err := token.asInt()
		if err != nil {
			return c.syntaxError(tagTerm, "%v", err)
		}
		c.advance()
		c.subroutine.WritePush(ConstVMSegment, value)
	case StringConstant:
		c.advance()
		c.subroutine.WriteStringConstant(token.terminal)
	case Keyword:
		switch token.terminal {
		case "true":
			c.subroutine.WritePush(ConstVMSegment, 1)
			c.subroutine.WriteArithmetic(NegVMOperation)
		case "false", "null":
			c.subroutine.WritePush(ConstVMSegment, 0)
		case "this":
			c.subroutine.WritePush(PointerVMSegment, thisPointer)
		default:
			return c.unexpected(tagTerm, "term")
		}
		c.advance()
	case Identifier:
		next := c.tokens.Peek()
		switch {
		case next.is("["):
			return c.compileArrayRead()
		case next.is("("), next.is("."):
			return c.compileSubroutineCall(tagTerm)
		}
		symbol, err := c.lookupVariable(token, tagTerm)
		if err != nil {
			return err
		}
		c.advance()
		c.subroutine.WritePush(symbol.symbolType.segment(), symbol.index)
	case SymbolTokenType:
		if token.terminal == "(" {
			c.advance()
			if err := c.compileExpression(); err != nil {
				return err
			}
			return c.compileTerminal(tagTerm, ")")
		}
		operation, ok := unaryOperations[token.terminal]
		if !ok {
			return c.unexpected(tagTerm, "term")
		}
		c.advance()
		if err := c.compileTerm(); err != nil {
			return err
		}
		c.subroutine.WriteArithmetic(operation)
	default:
		return c.unexpected(tagTerm, "term")
	}
	return nil
}

// varName '[' expression ']'
func (c *JackCompiler) compileArrayRead() error {
	name := c.advance()
	symbol, err := c.lookupVariable(name, tagTerm)
	if err != nil {
		return err
	}

	c.subroutine.WritePush(symbol.symbolType.segment(), symbol.index)
	if err := c.compileTerminal(tagTerm, "["); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.compileTerminal(tagTerm, "]"); err != nil {
		return err
	}
	c.subroutine.WriteArithmetic(AddVMOperation)
	c.subroutine.WritePop(PointerVMSegment, thatPointer)
	c.subroutine.WritePush(ThatVMSegment, 0)
	return nil
}

// subroutineName '(' expressionList ')' |
// (className | varName) '.' subroutineName '(' expressionList ')'
//
// Methods receive their object as a hidden first argument: the current
// object for unqualified calls, the variable for calls through a variable.
// A qualifier that is not a variable names a class and passes no receiver.
func (c *JackCompiler) compileSubroutineCall(rule markupTag) error {
	name, err := c.compileIdentifier(rule)
	if err != nil {
		return err
	}

	var (
		function string
		nargs    MachineWord
	)
	switch token := c.tokens.Token(); {
	case token.is("("):
		c.subroutine.WritePush(PointerVMSegment, thisPointer)
		function = c.className + "." + name.terminal
		nargs = 1
	case token.is("."):
		c.advance()
		member, err := c.compileIdentifier(rule)
		if err != nil {
			return err
		}
		if symbol, ok := c.symbols.Lookup(name.terminal); ok {
			c.subroutine.WritePush(symbol.symbolType.segment(), symbol.index)
			function = symbol.variableType + "." + member.terminal
			nargs = 1
		} else {
			function = name.terminal + "." + member.terminal
		}
	default:
		return c.unexpected(rule, `"(" or "."`)
	}

	if err := c.compileTerminal(rule, "("); err != nil {
		return err
	}
	count, err := c.compileExpressionList()
	if err != nil {
		return err
	}
	if err := c.compileTerminal(rule, ")"); err != nil {
		return err
	}
	c.subroutine.WriteCall(function, nargs+count)
	return nil
}

// (expression (',' expression)*)?
func (c *JackCompiler) compileExpressionList() (MachineWord, error) {
	c.enter(tagExpressionList)
	defer c.leave(tagExpressionList)

	if c.tokens.Token().is(")") {
		return 0, nil
	}
	var count MachineWord
	for {
		if err := c.compileExpression(); err != nil {
			return 0, err
		}
		count++
		if !c.tokens.Token().is(",") {
			return count, nil
		}
		c.advance()
	}
}
