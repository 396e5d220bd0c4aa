package main

import "github.com/alecthomas/participle/lexer"

// TokenStream is a cursor over an immutable token sequence with one token
// of lookahead.
type TokenStream struct {
	tokens []Token
	cursor int
	end    Token
}

func NewTokenStream(tokens []Token) *TokenStream {
	end := Token{}
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		end.pos = last.pos
		end.pos.Offset += len(last.terminal)
		end.pos.Column += len(last.terminal)
	} else {
		end.pos = lexer.Position{Line: 1, Column: 1}
	}
	return &TokenStream{tokens: tokens, end: end}
}

func (s *TokenStream) at(i int) Token {
	if i < len(s.tokens) {
		return s.tokens[i]
	}
	return s.end
}

// Token returns the current token, or an end-of-input token past the end.
func (s *TokenStream) Token() Token {
	return s.at(s.cursor)
}

// Peek returns the token after the current one.
func (s *TokenStream) Peek() Token {
	return s.at(s.cursor + 1)
}

// Advance moves past the current token and returns it.
func (s *TokenStream) Advance() Token {
	token := s.Token()
	if s.cursor < len(s.tokens) {
		s.cursor++
	}
	return token
}

func (s *TokenStream) Done() bool {
	return s.cursor >= len(s.tokens)
}
