package main

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/lexer"
)

var (
	keywordRegex         = regexp.MustCompile(`^(class|constructor|function|method|field|static|var|int|char|boolean|void|true|false|null|this|let|do|if|else|while|return)$`)
	symbolRegex          = regexp.MustCompile(`^[\{\}\[\]\(\)\.\,\;\+\-\*\/\&\|\<\>\=\~]`)
	integerConstantRegex = regexp.MustCompile(`^\d+`)
	wordRegex            = regexp.MustCompile(`^\w+`)
	whitespaceRegex      = regexp.MustCompile(`^\s+`)
)

var errNoMoreTokens = errors.New("no more tokens")

// Tokenizer classifies Jack source text one token at a time. It keeps a
// cursor into the source and the position of that cursor for diagnostics.
type Tokenizer struct {
	source string
	offset int
	line   int
	column int
	name   string

	token Token
	err   error
}

func NewTokenizer(filename, source string) *Tokenizer {
	return &Tokenizer{source: source, line: 1, column: 1, name: filename}
}

// Tokenize drains the whole input into an immutable token sequence.
func Tokenize(filename string, r io.Reader) ([]Token, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	tokenizer := NewTokenizer(filename, string(data))
	var tokens []Token
	for tokenizer.Scan() {
		tokens = append(tokens, tokenizer.Token())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (t *Tokenizer) position() lexer.Position {
	return lexer.Position{Filename: t.name, Offset: t.offset, Line: t.line, Column: t.column}
}

// skip moves the cursor n bytes forward, keeping line and column current.
func (t *Tokenizer) skip(n int) {
	for _, c := range []byte(t.source[t.offset : t.offset+n]) {
		if c == '\n' {
			t.line++
			t.column = 1
		} else {
			t.column++
		}
	}
	t.offset += n
}

// HasMoreTokens discards whitespace and comments and reports whether any
// input is left. An unclosed block comment stops the tokenizer with an error.
func (t *Tokenizer) HasMoreTokens() bool {
	if t.err != nil {
		return false
	}

	for {
		rest := t.source[t.offset:]
		switch {
		case whitespaceRegex.MatchString(rest):
			t.skip(len(whitespaceRegex.FindString(rest)))
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			} else {
				end++
			}
			t.skip(end)
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				t.err = newLexicalError(t.position(), "unclosed comment")
				t.skip(len(rest))
				return false
			}
			t.skip(end + 4)
		default:
			return rest != ""
		}
	}
}

// Advance consumes exactly one token. It must only be called after
// HasMoreTokens returned true.
func (t *Tokenizer) Advance() error {
	if t.err != nil {
		return t.err
	}

	rest := t.source[t.offset:]
	pos := t.position()

	if rest == "" {
		return errNoMoreTokens
	}

	var token Token
	switch {
	case symbolRegex.MatchString(rest):
		token = Token{tokenType: SymbolTokenType, terminal: rest[:1], pos: pos}
		t.skip(1)
	case rest[0] >= '0' && rest[0] <= '9':
		digits := integerConstantRegex.FindString(rest)
		token = Token{tokenType: IntegerConstant, terminal: digits, pos: pos}
		if _, err := token.asInt(); err != nil {
			t.err = newLexicalError(pos, "%v", err)
			return t.err
		}
		t.skip(len(digits))
	case rest[0] == '"':
		constant, length, ok := scanStringConstant(rest)
		if !ok {
			t.err = newLexicalError(pos, "unterminated string constant")
			t.skip(len(rest))
			return t.err
		}
		if len(constant) > MaxIntegerConstant {
			t.err = newLexicalError(pos, "string constant of %d characters exceeds %d", len(constant), MaxIntegerConstant)
			t.skip(length)
			return t.err
		}
		token = Token{tokenType: StringConstant, terminal: constant, pos: pos}
		t.skip(length)
	default:
		word := wordRegex.FindString(rest)
		if word == "" {
			char, _ := utf8.DecodeRuneInString(rest)
			t.err = newLexicalError(pos, "unexpected character %q", char)
			return t.err
		}
		token = Token{tokenType: Identifier, terminal: word, pos: pos}
		if keywordRegex.MatchString(word) {
			token.tokenType = Keyword
		}
		t.skip(len(word))
	}

	t.token = token
	return nil
}

// scanStringConstant reads a string constant starting at the opening quote
// of s. It returns the constant's content and the number of bytes the
// literal occupies including both quotes. Only \" and \\ are escapes.
func scanStringConstant(s string) (string, int, bool) {
	var content strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\'):
			content.WriteByte(s[i+1])
			i++
		case c == '"':
			return content.String(), i + 1, true
		default:
			content.WriteByte(c)
		}
	}
	return "", 0, false
}

// Scan advances to the next token, reporting false at the end of input or
// on the first lexical error.
func (t *Tokenizer) Scan() bool {
	if !t.HasMoreTokens() {
		return false
	}
	return t.Advance() == nil
}

func (t *Tokenizer) Err() error {
	return t.err
}

func (t *Tokenizer) Token() Token {
	return t.token
}
