package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for TulipScript
// ---------------------------------------------------------------------------

// Lexer tokenizes TulipScript source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	startPos := l.position()
	skipped, unterminated := l.skipWhitespaceAndComments()
	if unterminated {
		return Token{Type: TokenError, Literal: "unterminated block comment", Pos: startPos, SpaceBefore: true}
	}

	tok := l.scan()
	tok.SpaceBefore = skipped
	return tok
}

func (l *Lexer) scan() Token {
	pos := l.position()

	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	// pair emits two when the next character is second, otherwise one.
	pair := func(one TokenType, second rune, two TokenType) Token {
		first := l.ch
		l.readChar()
		if l.ch == second {
			l.readChar()
			return Token{Type: two, Literal: string([]rune{first, second}), Pos: pos}
		}
		return Token{Type: one, Literal: string(first), Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '(':
		return single(TokenLParen)
	case ch == ')':
		return single(TokenRParen)
	case ch == '[':
		return single(TokenLBracket)
	case ch == ']':
		return single(TokenRBracket)
	case ch == '{':
		return single(TokenLBrace)
	case ch == '}':
		return single(TokenRBrace)
	case ch == ',':
		return single(TokenComma)
	case ch == ':':
		return single(TokenColon)
	case ch == ';':
		return single(TokenSemicolon)

	case ch == '.':
		if isDigit(l.peekChar()) {
			return l.readNumber(pos)
		}
		return single(TokenDot)

	case ch == '+':
		switch l.peekChar() {
		case '+':
			return pair(TokenPlus, '+', TokenPlusPlus)
		case '=':
			return pair(TokenPlus, '=', TokenPlusAssign)
		}
		return single(TokenPlus)

	case ch == '-':
		switch l.peekChar() {
		case '-':
			return pair(TokenMinus, '-', TokenMinusMinus)
		case '=':
			return pair(TokenMinus, '=', TokenMinusAssign)
		}
		return single(TokenMinus)

	case ch == '*':
		switch l.peekChar() {
		case '*':
			return pair(TokenStar, '*', TokenStarStar)
		case '=':
			return pair(TokenStar, '=', TokenStarAssign)
		}
		return single(TokenStar)

	case ch == '/':
		switch l.peekChar() {
		case '_':
			return pair(TokenSlash, '_', TokenSlashUnderscore)
		case '=':
			return pair(TokenSlash, '=', TokenSlashAssign)
		}
		return single(TokenSlash)

	case ch == '%':
		return pair(TokenPercent, '%', TokenPercentPercent)
	case ch == '=':
		return pair(TokenAssign, '=', TokenEqual)
	case ch == '!':
		return pair(TokenBang, '=', TokenNotEqual)
	case ch == '<':
		return pair(TokenLess, '=', TokenLessEqual)
	case ch == '>':
		return pair(TokenGreater, '=', TokenGreaterEqual)

	case ch == '&':
		if l.peekChar() == '&' {
			return pair(TokenError, '&', TokenAnd)
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character: &", Pos: pos}

	case ch == '|':
		return pair(TokenBar, '|', TokenOr)

	case ch == '"':
		return l.readString(pos)

	case isDigit(ch):
		return l.readNumber(pos)

	case isIdentStart(ch):
		return l.readIdentifierOrKeyword(pos)

	default:
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments. It reports whether anything was skipped and whether a
// block comment ran off the end of the input.
func (l *Lexer) skipWhitespaceAndComments() (skipped, unterminated bool) {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
			skipped = true

		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			skipped = true

		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.atEOF() {
					return true, true
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			skipped = true

		default:
			return skipped, false
		}
	}
}

// readString reads a double-quoted string literal, decoding escapes.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		if l.atEOF() {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		switch l.ch {
		case '"':
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '"', '\\':
				sb.WriteRune(l.ch)
			default:
				if l.atEOF() {
					return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
				}
				sb.WriteByte('\\')
				sb.WriteRune(l.ch)
			}
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readNumber reads a decimal number: digits, optional fraction, optional
// exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return Token{Type: TokenError, Literal: "malformed exponent", Pos: pos}
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or reserved word.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// isIdentStart accepts ASCII letters, underscore, and any non-ASCII rune
// that is not white space, so emoji work as names.
func isIdentStart(ch rune) bool {
	if ch < utf8.RuneSelf {
		return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
	}
	return ch != utf8.RuneError && !unicode.IsSpace(ch)
}

// Tokenize returns every token in input, ending with TokenEOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
