package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } . , : ; |`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenDot, "."},
		{TokenComma, ","},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenBar, "|"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `+ - * / % ** /_ %% == != < <= > >= && || ! = += -= *= /= ++ --`
	expected := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenStarStar, TokenSlashUnderscore, TokenPercentPercent,
		TokenEqual, TokenNotEqual, TokenLess, TokenLessEqual,
		TokenGreater, TokenGreaterEqual, TokenAnd, TokenOr, TokenBang,
		TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign,
		TokenSlashAssign, TokenPlusPlus, TokenMinusMinus, TokenEOF,
	}

	tokens := Tokenize(input)
	if len(tokens) != len(expected) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(expected), tokens)
	}
	for i, want := range expected {
		if tokens[i].Type != want {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, want)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"0", "0"},
		{"3.14", "3.14"},
		{".5", ".5"},
		{"1e10", "1e10"},
		{"1.5e-3", "1.5e-3"},
		{"2E+5", "2E+5"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("Lexer(%q): type = %v, want NUMBER", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerNumberFollowedByField(t *testing.T) {
	// `1.` without a digit is a number then a dot.
	tokens := Tokenize("1.x")
	if tokens[0].Type != TokenNumber || tokens[0].Literal != "1" {
		t.Fatalf("token[0] = %v, want NUMBER(1)", tokens[0])
	}
	if tokens[1].Type != TokenDot {
		t.Errorf("token[1] = %v, want DOT", tokens[1])
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"keep \q"`, `keep \q`},
		{`"こんにちは"`, "こんにちは"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	for word, typ := range reservedWords {
		tok := NewLexer(word).NextToken()
		if tok.Type != typ {
			t.Errorf("Lexer(%q) = %v, want %v", word, tok.Type, typ)
		}
	}
	if got := LookupIdent("lets"); got != TokenIdentifier {
		t.Errorf("LookupIdent(lets) = %v, want IDENTIFIER", got)
	}
	if len(Keywords()) != len(reservedWords) {
		t.Errorf("Keywords() has %d entries, want %d", len(Keywords()), len(reservedWords))
	}
}

func TestLexerIdentifiers(t *testing.T) {
	tests := []string{"foo", "FooBar", "foo123", "_private", "café", "挨拶", "🌷"}
	for _, input := range tests {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenIdentifier {
			t.Errorf("Lexer(%q): type = %v, want IDENTIFIER", input, tok.Type)
		}
		if tok.Literal != input {
			t.Errorf("Lexer(%q): literal = %q", input, tok.Literal)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "a // line comment\n/* block\ncomment */ b"
	tokens := Tokenize(input)
	if len(tokens) != 3 {
		t.Fatalf("got %v, want [a b EOF]", tokens)
	}
	if tokens[0].Literal != "a" || tokens[1].Literal != "b" {
		t.Errorf("got %v", tokens)
	}
	if tokens[1].Pos.Line != 3 {
		t.Errorf("b line = %d, want 3", tokens[1].Pos.Line)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("let x\n  = 1")
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 1, Column: 5},
		{Offset: 8, Line: 2, Column: 3},
		{Offset: 10, Line: 2, Column: 5},
	}
	for i, pos := range want {
		if tokens[i].Pos != pos {
			t.Errorf("token[%d] pos = %+v, want %+v", i, tokens[i].Pos, pos)
		}
	}
}

func TestLexerSpaceBefore(t *testing.T) {
	tokens := Tokenize("Point{ Point {")
	if tokens[1].SpaceBefore {
		t.Error("Point{ should have no space before '{'")
	}
	if !tokens[3].SpaceBefore {
		t.Error("Point { should have space before '{'")
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"unterminated`, "unterminated string"},
		{"/* never closed", "unterminated block comment"},
		{"&", "unexpected character: &"},
		{"#", "unexpected character: #"},
		{"1e+", "malformed exponent"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): message = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}
