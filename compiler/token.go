package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the TulipScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14, 1e9
	TokenString     // "hello"
	TokenIdentifier // foo, Bar, 挨拶

	// Keywords
	TokenLet
	TokenConst
	TokenFunction
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenIter
	TokenIn
	TokenBreak
	TokenContinue
	TokenStruct
	TokenTrue
	TokenFalse
	TokenNull

	// Operators
	TokenPlus            // +
	TokenMinus           // -
	TokenStar            // *
	TokenSlash           // /
	TokenPercent         // %
	TokenStarStar        // **
	TokenSlashUnderscore // /_
	TokenPercentPercent  // %%
	TokenEqual           // ==
	TokenNotEqual        // !=
	TokenLess            // <
	TokenLessEqual       // <=
	TokenGreater         // >
	TokenGreaterEqual    // >=
	TokenAnd             // &&
	TokenOr              // ||
	TokenBang            // !
	TokenAssign          // =
	TokenPlusAssign      // +=
	TokenMinusAssign     // -=
	TokenStarAssign      // *=
	TokenSlashAssign     // /=
	TokenPlusPlus        // ++
	TokenMinusMinus      // --

	// Delimiters
	TokenDot       // .
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenBar       // |
)

var tokenNames = map[TokenType]string{
	TokenEOF:             "EOF",
	TokenError:           "ERROR",
	TokenNumber:          "NUMBER",
	TokenString:          "STRING",
	TokenIdentifier:      "IDENTIFIER",
	TokenLet:             "let",
	TokenConst:           "const",
	TokenFunction:        "function",
	TokenReturn:          "return",
	TokenIf:              "if",
	TokenElse:            "else",
	TokenWhile:           "while",
	TokenFor:             "for",
	TokenIter:            "iter",
	TokenIn:              "in",
	TokenBreak:           "break",
	TokenContinue:        "continue",
	TokenStruct:          "struct",
	TokenTrue:            "true",
	TokenFalse:           "false",
	TokenNull:            "null",
	TokenPlus:            "+",
	TokenMinus:           "-",
	TokenStar:            "*",
	TokenSlash:           "/",
	TokenPercent:         "%",
	TokenStarStar:        "**",
	TokenSlashUnderscore: "/_",
	TokenPercentPercent:  "%%",
	TokenEqual:           "==",
	TokenNotEqual:        "!=",
	TokenLess:            "<",
	TokenLessEqual:       "<=",
	TokenGreater:         ">",
	TokenGreaterEqual:    ">=",
	TokenAnd:             "&&",
	TokenOr:              "||",
	TokenBang:            "!",
	TokenAssign:          "=",
	TokenPlusAssign:      "+=",
	TokenMinusAssign:     "-=",
	TokenStarAssign:      "*=",
	TokenSlashAssign:     "/=",
	TokenPlusPlus:        "++",
	TokenMinusMinus:      "--",
	TokenDot:             ".",
	TokenComma:           ",",
	TokenColon:           ":",
	TokenSemicolon:       ";",
	TokenLParen:          "(",
	TokenRParen:          ")",
	TokenLBracket:        "[",
	TokenRBracket:        "]",
	TokenLBrace:          "{",
	TokenRBrace:          "}",
	TokenBar:             "|",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; the decoded value for strings
	Pos     Position // start position

	// SpaceBefore is set when white space or a comment separates this token
	// from the previous one. Struct literals need `Name{` to be adjacent.
	SpaceBefore bool
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":      TokenLet,
	"const":    TokenConst,
	"function": TokenFunction,
	"return":   TokenReturn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"iter":     TokenIter,
	"in":       TokenIn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"struct":   TokenStruct,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"null":     TokenNull,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := reservedWords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}

// Keywords returns the reserved words, for editor completion.
func Keywords() []string {
	out := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		out = append(out, w)
	}
	return out
}
