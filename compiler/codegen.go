package compiler

import (
	"fmt"
	"math"

	"github.com/chazu/tulip/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

const (
	maxConstants = math.MaxUint16 + 1
	maxSlots     = math.MaxUint16 + 1
	maxDepth     = math.MaxUint8
)

type local struct {
	slot     int
	constant bool
}

type scope struct {
	vars map[string]*local
}

type loopContext struct {
	breakLabel    *vm.Label
	continueLabel *vm.Label
}

// funcState is the compilation context of one function body.
type funcState struct {
	parent     *funcState
	name       string
	arity      int
	script     bool
	builder    *vm.BytecodeBuilder
	constants  []vm.Value
	constIndex map[interface{}]int // dedup number and string constants
	scopes     []*scope
	numSlots   int
	loops      []*loopContext
}

func newFuncState(parent *funcState, name string, script bool) *funcState {
	return &funcState{
		parent:     parent,
		name:       name,
		script:     script,
		builder:    vm.NewBytecodeBuilder(),
		constIndex: make(map[interface{}]int),
	}
}

func (fs *funcState) finish(unit string) *vm.Function {
	return &vm.Function{
		Name:      fs.name,
		Unit:      unit,
		Arity:     fs.arity,
		NumSlots:  fs.numSlots,
		Code:      fs.builder.Bytes(),
		Lines:     fs.builder.Lines(),
		Constants: fs.constants,
	}
}

// Compiler compiles a parsed program to a top-level vm.Function.
type Compiler struct {
	unit         string
	fs           *funcState
	constGlobals map[string]bool // globals declared const earlier in this unit
	diagnostics  []vm.Diagnostic
}

// NewCompiler creates a compiler for the named source unit.
func NewCompiler(unit string) *Compiler {
	return &Compiler{
		unit:         unit,
		constGlobals: make(map[string]bool),
	}
}

// Diagnostics returns accumulated compilation errors.
func (c *Compiler) Diagnostics() []vm.Diagnostic {
	return c.diagnostics
}

// errorf records a compilation error at node.
func (c *Compiler) errorf(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	c.diagnostics = append(c.diagnostics, vm.Diagnostic{
		Line:    pos.Line,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *Compiler) b() *vm.BytecodeBuilder {
	return c.fs.builder
}

func (c *Compiler) setLine(node Node) {
	c.b().SetLine(node.Span().Start.Line)
}

// CompileProgram compiles prog as the top-level function of the unit.
func (c *Compiler) CompileProgram(prog *Program) *vm.Function {
	c.fs = newFuncState(nil, "", true)
	for _, s := range prog.Stmts {
		c.compileStmt(s)
	}
	c.b().Emit(vm.OpPushNull)
	c.b().Emit(vm.OpReturn)
	fn := c.fs.finish(c.unit)
	c.fs = nil
	return fn
}

// ---------------------------------------------------------------------------
// Constants, scopes and variables
// ---------------------------------------------------------------------------

func (c *Compiler) addConstant(node Node, v vm.Value) uint16 {
	fs := c.fs
	var key interface{}
	switch {
	case v.IsNumber():
		key = v.Number()
	case v.IsString():
		key = v.Str()
	}
	if key != nil {
		if idx, ok := fs.constIndex[key]; ok {
			return uint16(idx)
		}
	}
	if len(fs.constants) >= maxConstants {
		if len(fs.constants) == maxConstants {
			c.errorf(node, "Too many constants in one function.")
			fs.constants = append(fs.constants, vm.Null)
		}
		return 0
	}
	idx := len(fs.constants)
	fs.constants = append(fs.constants, v)
	if key != nil {
		fs.constIndex[key] = idx
	}
	return uint16(idx)
}

func (c *Compiler) nameConstant(node Node, name string) uint16 {
	return c.addConstant(node, vm.FromString(name))
}

func (c *Compiler) beginScope() {
	c.fs.scopes = append(c.fs.scopes, &scope{vars: make(map[string]*local)})
}

func (c *Compiler) endScope() {
	c.fs.scopes = c.fs.scopes[:len(c.fs.scopes)-1]
}

// atGlobalScope reports whether declarations become globals: top-level
// statements of the script, outside any block.
func (c *Compiler) atGlobalScope() bool {
	return c.fs.script && len(c.fs.scopes) == 0
}

func (c *Compiler) declareLocal(node Node, name string, constant bool) *local {
	sc := c.fs.scopes[len(c.fs.scopes)-1]
	if _, exists := sc.vars[name]; exists {
		c.errorf(node, "Variable '%s' is already declared in this scope.", name)
	}
	if c.fs.numSlots >= maxSlots {
		c.errorf(node, "Too many local variables in one function.")
		return &local{}
	}
	l := &local{slot: c.fs.numSlots, constant: constant}
	c.fs.numSlots++
	sc.vars[name] = l
	return l
}

// resolve finds name in the enclosing scopes. depth counts function
// boundaries crossed; a nil local means the name is global.
func (c *Compiler) resolve(name string) (int, *local) {
	depth := 0
	for fs := c.fs; fs != nil; fs = fs.parent {
		for i := len(fs.scopes) - 1; i >= 0; i-- {
			if l, ok := fs.scopes[i].vars[name]; ok {
				return depth, l
			}
		}
		depth++
	}
	return 0, nil
}

func (c *Compiler) emitGet(node Node, name string) {
	depth, l := c.resolve(name)
	switch {
	case l == nil:
		c.b().EmitUint16(vm.OpGetGlobal, c.nameConstant(node, name))
	case depth == 0:
		c.b().EmitUint16(vm.OpGetLocal, uint16(l.slot))
	case depth > maxDepth:
		c.errorf(node, "Variable '%s' is nested too deeply.", name)
	default:
		c.b().EmitOuter(vm.OpGetOuter, uint8(depth), uint16(l.slot))
	}
}

// emitSet stores TOS into name, leaving it on the stack.
func (c *Compiler) emitSet(node Node, name string) {
	depth, l := c.resolve(name)
	switch {
	case l == nil:
		if c.constGlobals[name] {
			c.errorf(node, "Cannot assign to constant '%s'.", name)
		}
		c.b().EmitUint16(vm.OpSetGlobal, c.nameConstant(node, name))
	case l.constant:
		c.errorf(node, "Cannot assign to constant '%s'.", name)
	case depth == 0:
		c.b().EmitUint16(vm.OpSetLocal, uint16(l.slot))
	case depth > maxDepth:
		c.errorf(node, "Variable '%s' is nested too deeply.", name)
	default:
		c.b().EmitOuter(vm.OpSetOuter, uint8(depth), uint16(l.slot))
	}
}

// defineVariable binds TOS to name in the current scope and pops it.
func (c *Compiler) defineVariable(node Node, name string, constant bool) {
	if c.atGlobalScope() {
		if c.constGlobals[name] {
			c.errorf(node, "Cannot redeclare constant '%s'.", name)
		}
		op := vm.OpDefineGlobal
		if constant {
			op = vm.OpDefineConst
			c.constGlobals[name] = true
		}
		c.b().EmitUint16(op, c.nameConstant(node, name))
		return
	}
	l := c.declareLocal(node, name, constant)
	c.b().EmitUint16(vm.OpSetLocal, uint16(l.slot))
	c.b().Emit(vm.OpPOP)
}

func (c *Compiler) emitJump(node Node, op vm.Opcode, label *vm.Label) {
	if !c.b().EmitJump(op, label) {
		c.errorf(node, "Too much code to jump over.")
	}
}

func (c *Compiler) mark(node Node, label *vm.Label) {
	if !c.b().Mark(label) {
		c.errorf(node, "Too much code to jump over.")
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt Stmt) {
	c.setLine(stmt)
	switch s := stmt.(type) {
	case *ExprStmt:
		c.compileExpr(s.Expr)
		c.setLine(stmt)
		if c.fs.script {
			c.b().Emit(vm.OpSetLast)
		} else {
			c.b().Emit(vm.OpPOP)
		}

	case *VarDecl:
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.b().Emit(vm.OpPushNull)
		}
		c.setLine(stmt)
		c.defineVariable(s, s.Name, s.Const)

	case *FunctionDecl:
		if c.atGlobalScope() {
			c.compileClosure(s.Fn)
			c.defineVariable(s, s.Fn.Name, false)
			return
		}
		// Declare first so the body can call itself.
		l := c.declareLocal(s, s.Fn.Name, false)
		c.compileClosure(s.Fn)
		c.b().EmitUint16(vm.OpSetLocal, uint16(l.slot))
		c.b().Emit(vm.OpPOP)

	case *StructDecl:
		if len(s.Fields) > math.MaxUint8 {
			c.errorf(s, "Struct '%s' has too many fields.", s.Name)
			return
		}
		for _, f := range s.Fields {
			c.b().EmitUint16(vm.OpPushConstant, c.nameConstant(s, f.Name))
			if f.Value != nil {
				c.compileExpr(f.Value)
			} else {
				c.b().Emit(vm.OpPushNull)
			}
		}
		c.setLine(stmt)
		c.b().EmitStruct(c.nameConstant(s, s.Name), uint8(len(s.Fields)))
		c.defineVariable(s, s.Name, false)

	case *Block:
		c.beginScope()
		for _, inner := range s.Stmts {
			c.compileStmt(inner)
		}
		c.endScope()

	case *If:
		c.compileIf(s)

	case *While:
		c.compileWhile(s)

	case *For:
		c.compileFor(s)

	case *Iter:
		c.compileIter(s)

	case *Break:
		loop := c.innermostLoop(s, "break")
		if loop != nil {
			c.emitJump(s, vm.OpJump, loop.breakLabel)
		}

	case *Continue:
		loop := c.innermostLoop(s, "continue")
		if loop != nil {
			c.emitJump(s, vm.OpJump, loop.continueLabel)
		}

	case *Return:
		if c.fs.script {
			c.errorf(s, "Can't return from top-level code.")
			return
		}
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.b().Emit(vm.OpPushNull)
		}
		c.setLine(stmt)
		c.b().Emit(vm.OpReturn)

	default:
		c.errorf(stmt, "unsupported statement %T", stmt)
	}
}

func (c *Compiler) innermostLoop(node Node, keyword string) *loopContext {
	if len(c.fs.loops) == 0 {
		c.errorf(node, "'%s' outside of a loop.", keyword)
		return nil
	}
	return c.fs.loops[len(c.fs.loops)-1]
}

func (c *Compiler) pushLoop(breakLabel, continueLabel *vm.Label) {
	c.fs.loops = append(c.fs.loops, &loopContext{breakLabel: breakLabel, continueLabel: continueLabel})
}

func (c *Compiler) popLoop() {
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
}

// compileBody compiles a branch or loop body in its own scope.
func (c *Compiler) compileBody(body Stmt) {
	c.beginScope()
	c.compileStmt(body)
	c.endScope()
}

func (c *Compiler) compileIf(s *If) {
	end := c.b().NewLabel()
	for _, br := range s.Branches {
		next := c.b().NewLabel()
		c.compileExpr(br.Cond)
		c.emitJump(s, vm.OpJumpIfFalse, next)
		c.compileBody(br.Body)
		c.emitJump(s, vm.OpJump, end)
		c.mark(s, next)
	}
	if s.Else != nil {
		c.compileBody(s.Else)
	}
	c.mark(s, end)
}

func (c *Compiler) compileWhile(s *While) {
	top := c.b().NewLabel()
	exit := c.b().NewLabel()

	c.mark(s, top)
	c.compileExpr(s.Cond)
	c.emitJump(s, vm.OpJumpIfFalse, exit)

	c.pushLoop(exit, top)
	c.compileBody(s.Body)
	c.popLoop()

	c.emitJump(s, vm.OpJump, top)
	c.mark(s, exit)
}

func (c *Compiler) compileFor(s *For) {
	c.beginScope()
	if s.Init != nil {
		if e, ok := s.Init.(*ExprStmt); ok {
			c.compileExpr(e.Expr)
			c.b().Emit(vm.OpPOP)
		} else {
			c.compileStmt(s.Init)
		}
	}

	top := c.b().NewLabel()
	step := c.b().NewLabel()
	exit := c.b().NewLabel()

	c.mark(s, top)
	if s.Cond != nil {
		c.compileExpr(s.Cond)
		c.emitJump(s, vm.OpJumpIfFalse, exit)
	}

	c.pushLoop(exit, step)
	c.compileBody(s.Body)
	c.popLoop()

	c.mark(s, step)
	if s.Step != nil {
		c.compileExpr(s.Step)
		c.b().Emit(vm.OpPOP)
	}
	c.emitJump(s, vm.OpJump, top)
	c.mark(s, exit)
	c.endScope()
}

func (c *Compiler) compileIter(s *Iter) {
	c.beginScope()

	// Hidden locals hold the iterable and the cursor. Their names cannot
	// collide with identifiers.
	c.compileExpr(s.Iterable)
	iterable := c.declareLocal(s, "(iterable)", false)
	c.b().EmitUint16(vm.OpSetLocal, uint16(iterable.slot))
	c.b().Emit(vm.OpPOP)

	c.b().EmitUint16(vm.OpPushConstant, c.addConstant(s, vm.FromNumber(0)))
	cursor := c.declareLocal(s, "(cursor)", false)
	c.b().EmitUint16(vm.OpSetLocal, uint16(cursor.slot))
	c.b().Emit(vm.OpPOP)

	item := c.declareLocal(s, s.Var, false)

	top := c.b().NewLabel()
	step := c.b().NewLabel()
	exit := c.b().NewLabel()

	c.mark(s, top)
	c.setLine(s)
	c.b().EmitUint16(vm.OpGetLocal, uint16(iterable.slot))
	c.b().EmitUint16(vm.OpGetLocal, uint16(cursor.slot))
	c.emitJump(s, vm.OpIterNext, exit)
	c.b().EmitUint16(vm.OpSetLocal, uint16(item.slot))
	c.b().Emit(vm.OpPOP)

	c.pushLoop(exit, step)
	c.compileBody(s.Body)
	c.popLoop()

	c.mark(s, step)
	c.b().EmitUint16(vm.OpGetLocal, uint16(cursor.slot))
	c.b().EmitUint16(vm.OpPushConstant, c.addConstant(s, vm.FromNumber(1)))
	c.b().Emit(vm.OpAdd)
	c.b().EmitUint16(vm.OpSetLocal, uint16(cursor.slot))
	c.b().Emit(vm.OpPOP)
	c.emitJump(s, vm.OpJump, top)
	c.mark(s, exit)

	c.endScope()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:            vm.OpAdd,
	TokenMinus:           vm.OpSubtract,
	TokenStar:            vm.OpMultiply,
	TokenSlash:           vm.OpDivide,
	TokenPercent:         vm.OpModulo,
	TokenStarStar:        vm.OpPower,
	TokenSlashUnderscore: vm.OpFloorDiv,
	TokenPercentPercent:  vm.OpPercent,
	TokenEqual:           vm.OpEqual,
	TokenNotEqual:        vm.OpNotEqual,
	TokenLess:            vm.OpLess,
	TokenLessEqual:       vm.OpLessEq,
	TokenGreater:         vm.OpGreater,
	TokenGreaterEqual:    vm.OpGreaterEq,
}

var compoundOps = map[TokenType]vm.Opcode{
	TokenPlusAssign:  vm.OpAdd,
	TokenMinusAssign: vm.OpSubtract,
	TokenStarAssign:  vm.OpMultiply,
	TokenSlashAssign: vm.OpDivide,
}

func (c *Compiler) compileExpr(expr Expr) {
	c.setLine(expr)
	switch e := expr.(type) {
	case *NumberLiteral:
		c.b().EmitUint16(vm.OpPushConstant, c.addConstant(e, vm.FromNumber(e.Value)))

	case *StringLiteral:
		c.b().EmitUint16(vm.OpPushConstant, c.addConstant(e, vm.FromString(e.Value)))

	case *BoolLiteral:
		if e.Value {
			c.b().Emit(vm.OpPushTrue)
		} else {
			c.b().Emit(vm.OpPushFalse)
		}

	case *NullLiteral:
		c.b().Emit(vm.OpPushNull)

	case *Identifier:
		c.emitGet(e, e.Name)

	case *ArrayLiteral:
		if len(e.Elements) > math.MaxUint16 {
			c.errorf(e, "Too many elements in array literal.")
			return
		}
		for _, el := range e.Elements {
			c.compileExpr(el)
		}
		c.setLine(e)
		c.b().EmitUint16(vm.OpArray, uint16(len(e.Elements)))

	case *MapLiteral:
		if len(e.Keys) > math.MaxUint16 {
			c.errorf(e, "Too many entries in map literal.")
			return
		}
		for i := range e.Keys {
			c.compileExpr(e.Keys[i])
			c.compileExpr(e.Values[i])
		}
		c.setLine(e)
		c.b().EmitUint16(vm.OpMap, uint16(len(e.Keys)))

	case *FunctionLiteral:
		c.compileClosure(e)

	case *StructLiteral:
		if len(e.Fields) > math.MaxUint8 {
			c.errorf(e, "Too many fields in struct literal.")
			return
		}
		c.emitGet(e.Type, e.Type.Name)
		for _, f := range e.Fields {
			c.b().EmitUint16(vm.OpPushConstant, c.nameConstant(e, f.Name))
			c.compileExpr(f.Value)
		}
		c.setLine(e)
		c.b().EmitInstance(uint8(len(e.Fields)), e.Open)

	case *Unary:
		c.compileExpr(e.Operand)
		c.setLine(e)
		if e.Op == TokenMinus {
			c.b().Emit(vm.OpNegate)
		} else {
			c.b().Emit(vm.OpNot)
		}

	case *Binary:
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.setLine(e)
		op, ok := binaryOps[e.Op]
		if !ok {
			c.errorf(e, "Unknown operator '%s'.", e.Op)
			return
		}
		c.b().Emit(op)

	case *Logical:
		end := c.b().NewLabel()
		c.compileExpr(e.Left)
		c.setLine(e)
		if e.Op == TokenAnd {
			c.emitJump(e, vm.OpJumpFalseKeep, end)
		} else {
			c.emitJump(e, vm.OpJumpTrueKeep, end)
		}
		c.b().Emit(vm.OpPOP)
		c.compileExpr(e.Right)
		c.mark(e, end)

	case *Assign:
		c.compileAssign(e)

	case *Increment:
		c.emitGet(e.Target, e.Target.Name)
		if !e.Prefix {
			c.b().Emit(vm.OpDUP)
		}
		c.b().EmitUint16(vm.OpPushConstant, c.addConstant(e, vm.FromNumber(e.Delta)))
		c.b().Emit(vm.OpAdd)
		c.emitSet(e.Target, e.Target.Name)
		if !e.Prefix {
			c.b().Emit(vm.OpPOP)
		}

	case *Call:
		c.compileExpr(e.Callee)
		for _, arg := range e.Args {
			c.compileExpr(arg)
		}
		c.setLine(e)
		c.b().EmitByte(vm.OpCall, byte(len(e.Args)))

	case *Index:
		c.compileExpr(e.Object)
		c.compileExpr(e.Index)
		c.setLine(e)
		c.b().Emit(vm.OpIndex)

	case *Slice:
		c.compileExpr(e.Object)
		var flags byte
		if e.Low != nil {
			c.compileExpr(e.Low)
			flags |= 1
		}
		if e.High != nil {
			c.compileExpr(e.High)
			flags |= 2
		}
		c.setLine(e)
		c.b().EmitByte(vm.OpSlice, flags)

	case *Field:
		c.compileExpr(e.Object)
		c.setLine(e)
		c.b().EmitUint16(vm.OpGetField, c.nameConstant(e, e.Name))

	default:
		c.errorf(expr, "unsupported expression %T", expr)
	}
}

// compileAssign leaves the assigned value on the stack. Compound forms on
// index and field targets evaluate the target expressions twice.
func (c *Compiler) compileAssign(e *Assign) {
	compound, isCompound := compoundOps[e.Op]

	switch t := e.Target.(type) {
	case *Identifier:
		if isCompound {
			c.emitGet(t, t.Name)
		}
		c.compileExpr(e.Value)
		c.setLine(e)
		if isCompound {
			c.b().Emit(compound)
		}
		c.emitSet(t, t.Name)

	case *Index:
		c.compileExpr(t.Object)
		c.compileExpr(t.Index)
		if isCompound {
			c.compileExpr(t.Object)
			c.compileExpr(t.Index)
			c.b().Emit(vm.OpIndex)
		}
		c.compileExpr(e.Value)
		c.setLine(e)
		if isCompound {
			c.b().Emit(compound)
		}
		c.b().Emit(vm.OpSetIndex)

	case *Field:
		c.compileExpr(t.Object)
		if isCompound {
			c.compileExpr(t.Object)
			c.b().EmitUint16(vm.OpGetField, c.nameConstant(t, t.Name))
		}
		c.compileExpr(e.Value)
		c.setLine(e)
		if isCompound {
			c.b().Emit(compound)
		}
		c.b().EmitUint16(vm.OpSetField, c.nameConstant(t, t.Name))

	default:
		c.errorf(e, "Invalid assignment target.")
	}
}

// compileClosure compiles fn as a nested function and emits CLOSURE.
func (c *Compiler) compileClosure(fn *FunctionLiteral) {
	parent := c.fs
	fs := newFuncState(parent, fn.Name, false)
	fs.arity = len(fn.Params)
	c.fs = fs

	c.beginScope()
	for _, p := range fn.Params {
		c.declareLocal(fn, p, false)
	}
	for _, s := range fn.Body {
		c.compileStmt(s)
	}
	c.b().SetLine(fn.Span().End.Line)
	c.b().Emit(vm.OpPushNull)
	c.b().Emit(vm.OpReturn)
	c.endScope()

	compiled := fs.finish(c.unit)
	c.fs = parent

	// Function constants are never shared between call sites.
	idx := len(parent.constants)
	if idx >= maxConstants {
		c.errorf(fn, "Too many constants in one function.")
		return
	}
	parent.constants = append(parent.constants, vm.FromObject(compiled))
	c.setLine(fn)
	c.b().EmitUint16(vm.OpClosure, uint16(idx))
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Compile parses and compiles a source unit. Failures are returned as
// *vm.CompileError carrying every diagnostic with its line.
func Compile(source, unit string) (*vm.Function, error) {
	prog, diags := Parse(source)
	if len(diags) > 0 {
		return nil, &vm.CompileError{Unit: unit, Diagnostics: diags}
	}
	c := NewCompiler(unit)
	fn := c.CompileProgram(prog)
	if len(c.diagnostics) > 0 {
		return nil, &vm.CompileError{Unit: unit, Diagnostics: c.diagnostics}
	}
	return fn, nil
}

// Check reports every diagnostic for source without producing code.
func Check(source, unit string) []vm.Diagnostic {
	prog, diags := Parse(source)
	if len(diags) > 0 {
		return diags
	}
	c := NewCompiler(unit)
	c.CompileProgram(prog)
	return c.diagnostics
}
