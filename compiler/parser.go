package compiler

import (
	"fmt"
	"strconv"

	"github.com/chazu/tulip/vm"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for TulipScript
// ---------------------------------------------------------------------------

// maxParams bounds parameters and call arguments; CALL has an 8-bit argc.
const maxParams = 255

// maxNesting bounds how deeply statements and expressions may nest.
const maxNesting = 256

// Parser parses TulipScript source code into an AST.
type Parser struct {
	tokens      []Token
	pos         int
	diagnostics []vm.Diagnostic
	panicMode   bool // suppresses cascading errors until the next statement
	depth       int
	tooDeep     bool // set once maxNesting is exceeded; parsing stops descending
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	return &Parser{tokens: Tokenize(input)}
}

// Parse parses a whole source unit.
func Parse(input string) (*Program, []vm.Diagnostic) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.Diagnostics()
}

// cur returns the current token.
func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

// peek returns the token n positions ahead, clamped to EOF.
func (p *Parser) peek(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

// prev returns the most recently consumed token.
func (p *Parser) prev() Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

// advance consumes the current token.
func (p *Parser) advance() Token {
	t := p.cur()
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

// check reports whether the current token has type t.
func (p *Parser) check(t TokenType) bool {
	return p.cur().Type == t
}

// match consumes the current token if it has type t.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of type t or records an error mentioning what.
func (p *Parser) expect(t TokenType, what string) (Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	p.errorAt(p.cur(), "Expected '%s' %s, got %s.", t, what, describe(p.cur()))
	return p.cur(), false
}

// errorAt records a diagnostic at tok unless already recovering.
func (p *Parser) errorAt(tok Token, format string, args ...interface{}) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	msg := fmt.Sprintf(format, args...)
	if tok.Type == TokenError {
		msg = tok.Literal
	}
	p.diagnostics = append(p.diagnostics, vm.Diagnostic{Line: tok.Pos.Line, Column: tok.Pos.Column, Message: msg})
}

// enter descends one nesting level. Once maxNesting is exceeded it records
// a single error and reports false for the rest of the parse; the caller
// must not recurse. Every call is paired with leave.
func (p *Parser) enter(what string) bool {
	p.depth++
	if p.tooDeep {
		return false
	}
	if p.depth > maxNesting {
		p.tooDeep = true
		p.panicMode = false
		p.errorAt(p.cur(), "%s nested too deeply.", what)
		return false
	}
	return true
}

func (p *Parser) leave() { p.depth-- }

// Diagnostics returns accumulated parse errors.
func (p *Parser) Diagnostics() []vm.Diagnostic {
	return p.diagnostics
}

// Errors returns accumulated parse errors as "line N: message" strings.
func (p *Parser) Errors() []string {
	out := make([]string, len(p.diagnostics))
	for i, d := range p.diagnostics {
		out[i] = d.String()
	}
	return out
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenNumber:
		return fmt.Sprintf("'%s'", tok.Literal)
	case TokenString:
		return "string"
	case TokenError:
		return tok.Literal
	}
	return fmt.Sprintf("'%s'", tok.Type)
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prev().Pos}
}

// synchronize skips to a likely statement boundary after an error.
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.check(TokenEOF) {
		if p.match(TokenSemicolon) {
			return
		}
		switch p.cur().Type {
		case TokenLet, TokenConst, TokenFunction, TokenStruct, TokenIf, TokenWhile,
			TokenFor, TokenIter, TokenReturn, TokenBreak, TokenContinue, TokenRBrace:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() *Program {
	return &Program{Stmts: p.parseStatementsUntil(TokenEOF)}
}

func (p *Parser) parseStatementsUntil(end TokenType) []Stmt {
	var stmts []Stmt
	for !p.check(end) && !p.check(TokenEOF) {
		start := p.pos
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		if p.panicMode {
			p.synchronize()
		}
		if p.pos == start {
			p.advance()
		}
	}
	return stmts
}

// endStatement consumes an optional semicolon. Without one, the next token
// must start a new line or close the enclosing construct.
func (p *Parser) endStatement() {
	if p.match(TokenSemicolon) {
		return
	}
	next := p.cur()
	switch next.Type {
	case TokenEOF, TokenRBrace, TokenElse, TokenBar:
		return
	}
	if next.Pos.Line == p.prev().Pos.Line {
		p.errorAt(next, "Unexpected %s after statement.", describe(next))
	}
}

// ParseStatement parses a single statement. It returns nil for an empty
// statement.
func (p *Parser) ParseStatement() Stmt {
	return p.parseStatement()
}

func (p *Parser) parseStatement() Stmt {
	defer p.leave()
	if !p.enter("Statement") {
		return nil
	}

	switch p.cur().Type {
	case TokenLet, TokenConst:
		s := p.parseVarDecl()
		p.endStatement()
		return s
	case TokenFunction:
		if p.peek(1).Type == TokenIdentifier {
			start := p.cur().Pos
			fn := p.parseFunctionLiteral()
			return &FunctionDecl{SpanVal: p.span(start), Fn: fn}
		}
	case TokenStruct:
		return p.parseStructDecl()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenIter:
		return p.parseIter()
	case TokenBreak:
		tok := p.advance()
		p.endStatement()
		return &Break{SpanVal: p.span(tok.Pos)}
	case TokenContinue:
		tok := p.advance()
		p.endStatement()
		return &Continue{SpanVal: p.span(tok.Pos)}
	case TokenReturn:
		return p.parseReturn()
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.advance()
		return nil
	}

	start := p.cur().Pos
	expr := p.parseExpression()
	p.endStatement()
	return &ExprStmt{SpanVal: p.span(start), Expr: expr}
}

func (p *Parser) parseVarDecl() *VarDecl {
	kw := p.advance()
	decl := &VarDecl{Const: kw.Type == TokenConst}
	name, ok := p.expect(TokenIdentifier, "after "+kw.Literal)
	if !ok {
		return decl
	}
	decl.Name = name.Literal
	if p.match(TokenAssign) {
		decl.Value = p.parseExpression()
	} else if decl.Const {
		p.errorAt(p.cur(), "Constant '%s' must be initialized.", decl.Name)
	}
	decl.SpanVal = p.span(kw.Pos)
	return decl
}

func (p *Parser) parseBlock() *Block {
	open := p.advance()
	stmts := p.parseStatementsUntil(TokenRBrace)
	p.expect(TokenRBrace, "to close block")
	return &Block{SpanVal: p.span(open.Pos), Stmts: stmts}
}

// parseBody parses a loop or branch body: a block or a single statement.
func (p *Parser) parseBody() Stmt {
	start := p.cur().Pos
	if s := p.parseStatement(); s != nil {
		return s
	}
	return &Block{SpanVal: p.span(start)}
}

func (p *Parser) parseFunctionLiteral() *FunctionLiteral {
	kw := p.advance()
	fn := &FunctionLiteral{}
	if p.check(TokenIdentifier) {
		fn.Name = p.advance().Literal
	}
	if _, ok := p.expect(TokenLParen, "before parameters"); !ok {
		return fn
	}
	seen := make(map[string]bool)
	if !p.check(TokenRParen) {
		for {
			param, ok := p.expect(TokenIdentifier, "as parameter name")
			if !ok {
				return fn
			}
			if seen[param.Literal] {
				p.errorAt(param, "Duplicate parameter '%s'.", param.Literal)
			}
			seen[param.Literal] = true
			fn.Params = append(fn.Params, param.Literal)
			if len(fn.Params) > maxParams {
				p.errorAt(param, "Can't have more than %d parameters.", maxParams)
			}
			if !p.match(TokenComma) {
				break
			}
		}
	}
	if _, ok := p.expect(TokenRParen, "after parameters"); !ok {
		return fn
	}
	if !p.check(TokenLBrace) {
		p.errorAt(p.cur(), "Expected '{' before function body, got %s.", describe(p.cur()))
		return fn
	}
	fn.Body = p.parseBlock().Stmts
	fn.SpanVal = p.span(kw.Pos)
	return fn
}

// parseFieldInits parses `name [= value]` entries separated by commas or
// semicolons up to the closing brace.
func (p *Parser) parseFieldInits(requireValue bool) []FieldInit {
	var fields []FieldInit
	seen := make(map[string]bool)
	for !p.check(TokenRBrace) && !p.check(TokenEOF) {
		name, ok := p.expect(TokenIdentifier, "as field name")
		if !ok {
			return fields
		}
		if seen[name.Literal] {
			p.errorAt(name, "Duplicate field '%s'.", name.Literal)
		}
		seen[name.Literal] = true
		f := FieldInit{Name: name.Literal, Pos: name.Pos}
		if p.match(TokenAssign) {
			f.Value = p.parseOr()
		} else if requireValue {
			p.errorAt(p.cur(), "Expected '=' after field '%s'.", name.Literal)
			return fields
		}
		fields = append(fields, f)
		if !p.match(TokenComma) {
			p.match(TokenSemicolon)
		}
	}
	p.expect(TokenRBrace, "after fields")
	return fields
}

func (p *Parser) parseStructDecl() Stmt {
	kw := p.advance()
	name, ok := p.expect(TokenIdentifier, "after struct")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenLBrace, "before struct fields"); !ok {
		return nil
	}
	fields := p.parseFieldInits(false)
	return &StructDecl{SpanVal: p.span(kw.Pos), Name: name.Literal, Fields: fields}
}

func (p *Parser) parseCondition(what string) Expr {
	p.expect(TokenLParen, "after "+what)
	cond := p.parseExpression()
	p.expect(TokenRParen, "after condition")
	return cond
}

func (p *Parser) parseIf() Stmt {
	kw := p.advance()
	stmt := &If{}
	cond := p.parseCondition("if")
	stmt.Branches = append(stmt.Branches, IfBranch{Cond: cond, Body: p.parseBody()})

	// `| (cond) body` adds an else-if arm.
	for p.check(TokenBar) && p.peek(1).Type == TokenLParen {
		p.advance()
		cond := p.parseCondition("'|'")
		stmt.Branches = append(stmt.Branches, IfBranch{Cond: cond, Body: p.parseBody()})
	}

	if p.match(TokenElse) {
		if p.check(TokenIf) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBody()
		}
	}
	stmt.SpanVal = p.span(kw.Pos)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	kw := p.advance()
	cond := p.parseCondition("while")
	body := p.parseBody()
	return &While{SpanVal: p.span(kw.Pos), Cond: cond, Body: body}
}

func (p *Parser) parseFor() Stmt {
	kw := p.advance()
	stmt := &For{}
	p.expect(TokenLParen, "after for")

	switch {
	case p.check(TokenSemicolon):
	case p.check(TokenLet) || p.check(TokenConst):
		stmt.Init = p.parseVarDecl()
	default:
		start := p.cur().Pos
		e := p.parseExpression()
		stmt.Init = &ExprStmt{SpanVal: p.span(start), Expr: e}
	}
	p.expect(TokenSemicolon, "after loop initializer")

	if !p.check(TokenSemicolon) {
		stmt.Cond = p.parseExpression()
	}
	p.expect(TokenSemicolon, "after loop condition")

	if !p.check(TokenRParen) {
		stmt.Step = p.parseExpression()
	}
	p.expect(TokenRParen, "after for clauses")

	stmt.Body = p.parseBody()
	stmt.SpanVal = p.span(kw.Pos)
	return stmt
}

func (p *Parser) parseIter() Stmt {
	kw := p.advance()
	p.expect(TokenLParen, "after iter")
	p.match(TokenLet)
	name, ok := p.expect(TokenIdentifier, "as loop variable")
	if !ok {
		return nil
	}
	p.expect(TokenIn, "after loop variable")
	iterable := p.parseExpression()
	p.expect(TokenRParen, "after iterable")
	body := p.parseBody()
	return &Iter{SpanVal: p.span(kw.Pos), Var: name.Literal, Iterable: iterable, Body: body}
}

func (p *Parser) parseReturn() Stmt {
	kw := p.advance()
	stmt := &Return{}
	next := p.cur()
	switch {
	case next.Type == TokenSemicolon, next.Type == TokenRBrace, next.Type == TokenEOF:
	case next.Pos.Line != kw.Pos.Line:
		// A bare return ends at the line break.
	default:
		stmt.Value = p.parseExpression()
	}
	p.endStatement()
	stmt.SpanVal = p.span(kw.Pos)
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions (lowest to highest precedence)
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

func isAssignOp(t TokenType) bool {
	switch t {
	case TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign:
		return true
	}
	return false
}

func (p *Parser) parseAssignment() Expr {
	start := p.cur().Pos
	left := p.parseOr()
	if !isAssignOp(p.cur().Type) {
		return left
	}
	op := p.advance()
	value := p.parseAssignment()
	switch left.(type) {
	case *Identifier, *Index, *Field:
		return &Assign{SpanVal: p.span(start), Op: op.Type, Target: left, Value: value}
	}
	p.errorAt(op, "Invalid assignment target.")
	return left
}

func (p *Parser) parseOr() Expr {
	start := p.cur().Pos
	left := p.parseAnd()
	for p.check(TokenOr) {
		op := p.advance()
		right := p.parseAnd()
		left = &Logical{SpanVal: p.span(start), Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	start := p.cur().Pos
	left := p.parseEquality()
	for p.check(TokenAnd) {
		op := p.advance()
		right := p.parseEquality()
		left = &Logical{SpanVal: p.span(start), Op: op.Type, Left: left, Right: right}
	}
	return left
}

// parseBinaryLevel parses a left-associative chain of ops over next.
func (p *Parser) parseBinaryLevel(next func() Expr, ops ...TokenType) Expr {
	start := p.cur().Pos
	left := next()
	for {
		matched := false
		for _, op := range ops {
			if p.check(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
		op := p.advance()
		right := next()
		left = &Binary{SpanVal: p.span(start), Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) parseEquality() Expr {
	return p.parseBinaryLevel(p.parseComparison, TokenEqual, TokenNotEqual)
}

func (p *Parser) parseComparison() Expr {
	return p.parseBinaryLevel(p.parseTerm, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) parseTerm() Expr {
	return p.parseBinaryLevel(p.parseFactor, TokenPlus, TokenMinus)
}

func (p *Parser) parseFactor() Expr {
	return p.parseBinaryLevel(p.parseUnary,
		TokenStar, TokenSlash, TokenPercent, TokenSlashUnderscore, TokenPercentPercent)
}

func (p *Parser) parseUnary() Expr {
	start := p.cur().Pos
	defer p.leave()
	if !p.enter("Expression") {
		return &NullLiteral{SpanVal: Span{Start: start, End: start}}
	}

	switch p.cur().Type {
	case TokenMinus, TokenBang:
		op := p.advance()
		operand := p.parseUnary()
		return &Unary{SpanVal: p.span(start), Op: op.Type, Operand: operand}
	case TokenPlusPlus, TokenMinusMinus:
		op := p.advance()
		operand := p.parseUnary()
		ident, ok := operand.(*Identifier)
		if !ok {
			p.errorAt(op, "Invalid increment target.")
			return operand
		}
		return &Increment{SpanVal: p.span(start), Target: ident, Delta: incrementDelta(op.Type), Prefix: true}
	}
	return p.parsePower()
}

func incrementDelta(t TokenType) float64 {
	if t == TokenMinusMinus {
		return -1
	}
	return 1
}

// parsePower parses `**`, which is right-associative and binds tighter than
// unary minus on its left.
func (p *Parser) parsePower() Expr {
	start := p.cur().Pos
	base := p.parsePostfix()
	if p.check(TokenStarStar) {
		op := p.advance()
		exp := p.parseUnary()
		return &Binary{SpanVal: p.span(start), Op: op.Type, Left: base, Right: exp}
	}
	return base
}

func (p *Parser) parsePostfix() Expr {
	start := p.cur().Pos
	expr := p.parsePrimary()
	for {
		switch p.cur().Type {
		case TokenLParen:
			p.advance()
			args := p.parseArguments()
			expr = &Call{SpanVal: p.span(start), Callee: expr, Args: args}

		case TokenLBracket:
			p.advance()
			expr = p.parseIndexOrSlice(expr, start)

		case TokenDot:
			p.advance()
			name, ok := p.expect(TokenIdentifier, "after '.'")
			if !ok {
				return expr
			}
			expr = &Field{SpanVal: p.span(start), Object: expr, Name: name.Literal}

		case TokenPlusPlus, TokenMinusMinus:
			if p.cur().Pos.Line != p.prev().Pos.Line {
				return expr
			}
			op := p.advance()
			ident, ok := expr.(*Identifier)
			if !ok {
				p.errorAt(op, "Invalid increment target.")
				return expr
			}
			expr = &Increment{SpanVal: p.span(start), Target: ident, Delta: incrementDelta(op.Type)}

		default:
			return expr
		}
	}
}

func (p *Parser) parseArguments() []Expr {
	var args []Expr
	if !p.check(TokenRParen) {
		for {
			if len(args) >= maxParams {
				p.errorAt(p.cur(), "Can't have more than %d arguments.", maxParams)
			}
			args = append(args, p.parseExpression())
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.expect(TokenRParen, "after arguments")
	return args
}

func (p *Parser) parseIndexOrSlice(obj Expr, start Position) Expr {
	var low Expr
	if !p.check(TokenColon) {
		low = p.parseExpression()
	}
	if p.match(TokenColon) {
		var high Expr
		if !p.check(TokenRBracket) {
			high = p.parseExpression()
		}
		p.expect(TokenRBracket, "after slice")
		return &Slice{SpanVal: p.span(start), Object: obj, Low: low, High: high}
	}
	p.expect(TokenRBracket, "after index")
	return &Index{SpanVal: p.span(start), Object: obj, Index: low}
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	start := tok.Pos

	switch tok.Type {
	case TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorAt(tok, "Invalid number '%s'.", tok.Literal)
		}
		return &NumberLiteral{SpanVal: p.span(start), Value: n}

	case TokenString:
		p.advance()
		return &StringLiteral{SpanVal: p.span(start), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.advance()
		return &BoolLiteral{SpanVal: p.span(start), Value: tok.Type == TokenTrue}

	case TokenNull:
		p.advance()
		return &NullLiteral{SpanVal: p.span(start)}

	case TokenIdentifier:
		p.advance()
		ident := &Identifier{SpanVal: p.span(start), Name: tok.Literal}
		// Name{...} and Name!{...} must be written without spaces.
		if p.check(TokenLBrace) && !p.cur().SpaceBefore {
			p.advance()
			return &StructLiteral{Type: ident, Fields: p.parseFieldInits(true), SpanVal: p.span(start)}
		}
		if p.check(TokenBang) && !p.cur().SpaceBefore &&
			p.peek(1).Type == TokenLBrace && !p.peek(1).SpaceBefore {
			p.advance()
			p.advance()
			return &StructLiteral{Type: ident, Fields: p.parseFieldInits(true), Open: true, SpanVal: p.span(start)}
		}
		return ident

	case TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen, "after expression")
		return expr

	case TokenLBracket:
		p.advance()
		arr := &ArrayLiteral{}
		for !p.check(TokenRBracket) && !p.check(TokenEOF) {
			arr.Elements = append(arr.Elements, p.parseExpression())
			if !p.match(TokenComma) {
				break
			}
		}
		p.expect(TokenRBracket, "after array elements")
		arr.SpanVal = p.span(start)
		return arr

	case TokenLBrace:
		p.advance()
		m := &MapLiteral{}
		for !p.check(TokenRBrace) && !p.check(TokenEOF) {
			m.Keys = append(m.Keys, p.parseExpression())
			p.expect(TokenColon, "after map key")
			m.Values = append(m.Values, p.parseExpression())
			if !p.match(TokenComma) {
				break
			}
		}
		p.expect(TokenRBrace, "after map entries")
		m.SpanVal = p.span(start)
		return m

	case TokenFunction:
		return p.parseFunctionLiteral()
	}

	p.errorAt(tok, "Expected expression, got %s.", describe(tok))
	return &NullLiteral{SpanVal: Span{Start: start, End: start}}
}
