package compiler

import "strings"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for TulipScript
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NullLiteral represents null.
type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// Identifier represents a variable reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// ArrayLiteral represents [a, b, c].
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// MapLiteral represents {"k": v}.
type MapLiteral struct {
	SpanVal Span
	Keys    []Expr
	Values  []Expr
}

func (n *MapLiteral) Span() Span { return n.SpanVal }
func (n *MapLiteral) node()      {}
func (n *MapLiteral) expr()      {}

// FunctionLiteral is a function body with parameters. Name is empty for
// anonymous functions.
type FunctionLiteral struct {
	SpanVal Span
	Name    string
	Params  []string
	Body    []Stmt
}

func (n *FunctionLiteral) Span() Span { return n.SpanVal }
func (n *FunctionLiteral) node()      {}
func (n *FunctionLiteral) expr()      {}

// FieldInit is a `name = value` pair in a struct declaration or literal.
type FieldInit struct {
	Name  string
	Value Expr // nil in a declaration without a default
	Pos   Position
}

// StructLiteral represents Name{f = v} or the open form Name!{f = v}.
type StructLiteral struct {
	SpanVal Span
	Type    *Identifier
	Fields  []FieldInit
	Open    bool
}

func (n *StructLiteral) Span() Span { return n.SpanVal }
func (n *StructLiteral) node()      {}
func (n *StructLiteral) expr()      {}

// Unary represents -x or !x.
type Unary struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Binary represents an arithmetic or comparison operation.
type Binary struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Logical represents a short-circuit && or ||.
type Logical struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *Logical) Span() Span { return n.SpanVal }
func (n *Logical) node()      {}
func (n *Logical) expr()      {}

// Assign represents target = value, or a compound form like target += value.
// Target is an *Identifier, *Index or *Field.
type Assign struct {
	SpanVal Span
	Op      TokenType
	Target  Expr
	Value   Expr
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}
func (n *Assign) expr()      {}

// Increment represents x++, x--, ++x and --x.
type Increment struct {
	SpanVal Span
	Target  *Identifier
	Delta   float64
	Prefix  bool
}

func (n *Increment) Span() Span { return n.SpanVal }
func (n *Increment) node()      {}
func (n *Increment) expr()      {}

// Call represents callee(args...).
type Call struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// Index represents obj[idx].
type Index struct {
	SpanVal Span
	Object  Expr
	Index   Expr
}

func (n *Index) Span() Span { return n.SpanVal }
func (n *Index) node()      {}
func (n *Index) expr()      {}

// Slice represents obj[lo:hi]; either bound may be nil.
type Slice struct {
	SpanVal Span
	Object  Expr
	Low     Expr
	High    Expr
}

func (n *Slice) Span() Span { return n.SpanVal }
func (n *Slice) node()      {}
func (n *Slice) expr()      {}

// Field represents obj.name.
type Field struct {
	SpanVal Span
	Object  Expr
	Name    string
}

func (n *Field) Span() Span { return n.SpanVal }
func (n *Field) node()      {}
func (n *Field) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// VarDecl is `let name = value` or `const name = value`.
type VarDecl struct {
	SpanVal Span
	Name    string
	Value   Expr // nil means null
	Const   bool
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// FunctionDecl is a named function declaration.
type FunctionDecl struct {
	SpanVal Span
	Fn      *FunctionLiteral
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}
func (n *FunctionDecl) stmt()      {}

// StructDecl is `struct Name { field = default, ... }`.
type StructDecl struct {
	SpanVal Span
	Name    string
	Fields  []FieldInit
}

func (n *StructDecl) Span() Span { return n.SpanVal }
func (n *StructDecl) node()      {}
func (n *StructDecl) stmt()      {}

// Block is a braced statement list with its own scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// IfBranch is one guarded arm of an if chain.
type IfBranch struct {
	Cond Expr
	Body Stmt
}

// If is `if (c) s | (c2) s2 else s3`.
type If struct {
	SpanVal  Span
	Branches []IfBranch
	Else     Stmt // may be nil
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// While is `while (cond) body`.
type While struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// For is `for (init; cond; step) body`; every clause is optional.
type For struct {
	SpanVal Span
	Init    Stmt
	Cond    Expr
	Step    Expr
	Body    Stmt
}

func (n *For) Span() Span { return n.SpanVal }
func (n *For) node()      {}
func (n *For) stmt()      {}

// Iter is `iter (let name in iterable) body`.
type Iter struct {
	SpanVal  Span
	Var      string
	Iterable Expr
	Body     Stmt
}

func (n *Iter) Span() Span { return n.SpanVal }
func (n *Iter) node()      {}
func (n *Iter) stmt()      {}

// Break exits the innermost loop.
type Break struct {
	SpanVal Span
}

func (n *Break) Span() Span { return n.SpanVal }
func (n *Break) node()      {}
func (n *Break) stmt()      {}

// Continue skips to the next iteration of the innermost loop.
type Continue struct {
	SpanVal Span
}

func (n *Continue) Span() Span { return n.SpanVal }
func (n *Continue) node()      {}
func (n *Continue) stmt()      {}

// Return exits the enclosing function.
type Return struct {
	SpanVal Span
	Value   Expr // nil means null
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}
func (n *Return) stmt()      {}

// ---------------------------------------------------------------------------
// Source file
// ---------------------------------------------------------------------------

// Program is a parsed source unit.
type Program struct {
	Stmts []Stmt
}

// Declaration names a top-level binding, for editor tooling.
type Declaration struct {
	Name   string
	Kind   string // "variable", "constant", "function" or "struct"
	Detail string
	Pos    Position
}

// Declarations lists the program's top-level bindings in source order.
func (p *Program) Declarations() []Declaration {
	var out []Declaration
	for _, s := range p.Stmts {
		switch d := s.(type) {
		case *VarDecl:
			kind := "variable"
			if d.Const {
				kind = "constant"
			}
			out = append(out, Declaration{Name: d.Name, Kind: kind, Pos: d.SpanVal.Start})
		case *FunctionDecl:
			out = append(out, Declaration{
				Name:   d.Fn.Name,
				Kind:   "function",
				Detail: d.Fn.Name + "(" + strings.Join(d.Fn.Params, ", ") + ")",
				Pos:    d.SpanVal.Start,
			})
		case *StructDecl:
			names := make([]string, len(d.Fields))
			for i, f := range d.Fields {
				names[i] = f.Name
			}
			out = append(out, Declaration{
				Name:   d.Name,
				Kind:   "struct",
				Detail: "struct " + d.Name + " { " + strings.Join(names, ", ") + " }",
				Pos:    d.SpanVal.Start,
			})
		}
	}
	return out
}
