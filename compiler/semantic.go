package compiler

import (
	"fmt"

	"github.com/chazu/tulip/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: advisory checks for editor tooling
// ---------------------------------------------------------------------------

// SemanticAnalyzer walks a parsed program and reports likely mistakes that
// the compiler accepts: references to names that are never declared, and
// statements that can never run. Its findings are warnings; globals can be
// defined by other units at run time.
type SemanticAnalyzer struct {
	warnings []vm.Diagnostic

	// Names defined before the program runs (natives, host globals)
	knownGlobals map[string]bool

	// Top-level declarations anywhere in the program
	programGlobals map[string]bool

	scopes []map[string]bool
}

// NewSemanticAnalyzer creates an analyzer that treats known as defined.
func NewSemanticAnalyzer(known []string) *SemanticAnalyzer {
	s := &SemanticAnalyzer{
		knownGlobals:   make(map[string]bool, len(known)),
		programGlobals: make(map[string]bool),
	}
	for _, name := range known {
		s.knownGlobals[name] = true
	}
	return s
}

// AddKnownGlobal adds a global to the known globals set.
func (s *SemanticAnalyzer) AddKnownGlobal(name string) {
	s.knownGlobals[name] = true
}

// Warnings returns accumulated warnings.
func (s *SemanticAnalyzer) Warnings() []vm.Diagnostic {
	return s.warnings
}

func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	s.warnings = append(s.warnings, vm.Diagnostic{
		Line:    pos.Line,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// AnalyzeProgram checks every statement of prog.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) {
	for _, d := range prog.Declarations() {
		s.programGlobals[d.Name] = true
	}
	s.analyzeStatements(prog.Stmts)
}

func (s *SemanticAnalyzer) push() {
	s.scopes = append(s.scopes, make(map[string]bool))
}

func (s *SemanticAnalyzer) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *SemanticAnalyzer) declare(name string) {
	if len(s.scopes) == 0 {
		s.programGlobals[name] = true
		return
	}
	s.scopes[len(s.scopes)-1][name] = true
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
	s.checkUnreachableCode(stmts)
}

func (s *SemanticAnalyzer) analyzeBody(body Stmt) {
	s.push()
	s.analyzeStmt(body)
	s.pop()
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *ExprStmt:
		s.analyzeExpr(st.Expr)
	case *VarDecl:
		s.analyzeExpr(st.Value)
		s.declare(st.Name)
	case *FunctionDecl:
		s.declare(st.Fn.Name)
		s.analyzeFunction(st.Fn)
	case *StructDecl:
		for _, f := range st.Fields {
			s.analyzeExpr(f.Value)
		}
		s.declare(st.Name)
	case *Block:
		s.push()
		s.analyzeStatements(st.Stmts)
		s.pop()
	case *If:
		for _, br := range st.Branches {
			s.analyzeExpr(br.Cond)
			s.analyzeBody(br.Body)
		}
		if st.Else != nil {
			s.analyzeBody(st.Else)
		}
	case *While:
		s.analyzeExpr(st.Cond)
		s.analyzeBody(st.Body)
	case *For:
		s.push()
		if st.Init != nil {
			s.analyzeStmt(st.Init)
		}
		s.analyzeExpr(st.Cond)
		s.analyzeExpr(st.Step)
		s.analyzeBody(st.Body)
		s.pop()
	case *Iter:
		s.analyzeExpr(st.Iterable)
		s.push()
		s.declare(st.Var)
		s.analyzeBody(st.Body)
		s.pop()
	case *Return:
		s.analyzeExpr(st.Value)
	}
}

func (s *SemanticAnalyzer) analyzeFunction(fn *FunctionLiteral) {
	s.push()
	for _, p := range fn.Params {
		s.declare(p)
	}
	s.analyzeStatements(fn.Body)
	s.pop()
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case nil:
	case *Identifier:
		s.checkVariableDefined(e)
	case *ArrayLiteral:
		for _, el := range e.Elements {
			s.analyzeExpr(el)
		}
	case *MapLiteral:
		for i := range e.Keys {
			s.analyzeExpr(e.Keys[i])
			s.analyzeExpr(e.Values[i])
		}
	case *FunctionLiteral:
		s.analyzeFunction(e)
	case *StructLiteral:
		s.checkVariableDefined(e.Type)
		for _, f := range e.Fields {
			s.analyzeExpr(f.Value)
		}
	case *Unary:
		s.analyzeExpr(e.Operand)
	case *Binary:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Logical:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Assign:
		s.analyzeExpr(e.Target)
		s.analyzeExpr(e.Value)
	case *Increment:
		s.checkVariableDefined(e.Target)
	case *Call:
		s.analyzeExpr(e.Callee)
		for _, arg := range e.Args {
			s.analyzeExpr(arg)
		}
	case *Index:
		s.analyzeExpr(e.Object)
		s.analyzeExpr(e.Index)
	case *Slice:
		s.analyzeExpr(e.Object)
		s.analyzeExpr(e.Low)
		s.analyzeExpr(e.High)
	case *Field:
		s.analyzeExpr(e.Object)
	}
}

func (s *SemanticAnalyzer) checkVariableDefined(id *Identifier) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i][id.Name] {
			return
		}
	}
	if s.programGlobals[id.Name] || s.knownGlobals[id.Name] {
		return
	}
	s.warnAt(id, "variable '%s' may be undefined", id.Name)
}

// checkUnreachableCode warns once about code after return, break or
// continue in the same statement list.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		var keyword string
		switch stmt.(type) {
		case *Return:
			keyword = "return"
		case *Break:
			keyword = "break"
		case *Continue:
			keyword = "continue"
		default:
			continue
		}
		if i < len(stmts)-1 {
			s.warnAt(stmts[i+1], "unreachable code after %s", keyword)
			return
		}
	}
}

// Analyze runs semantic analysis on prog and returns its warnings.
func Analyze(prog *Program, known []string) []vm.Diagnostic {
	analyzer := NewSemanticAnalyzer(known)
	analyzer.AnalyzeProgram(prog)
	return analyzer.Warnings()
}
