package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/tulip/vm"
)

// opcodes decodes fn.Code into its opcode sequence.
func opcodes(fn *vm.Function) []vm.Opcode {
	var ops []vm.Opcode
	for i := 0; i < len(fn.Code); {
		op := vm.Opcode(fn.Code[i])
		ops = append(ops, op)
		i += 1 + op.Info().OperandBytes
	}
	return ops
}

func compileOK(t *testing.T, source string) *vm.Function {
	t.Helper()
	fn, err := Compile(source, "test")
	if err != nil {
		t.Fatalf("Compile(%q): %v", source, err)
	}
	return fn
}

// nestedFunction finds a compiled function constant by name.
func nestedFunction(t *testing.T, fn *vm.Function, name string) *vm.Function {
	t.Helper()
	for _, c := range fn.Constants {
		if f, ok := c.Object().(*vm.Function); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("no function %q among constants of %q", name, fn.Name)
	return nil
}

func assertOps(t *testing.T, got []vm.Opcode, want ...vm.Opcode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcodes = %v, want %v", got, want)
		}
	}
}

func TestCodegenExpressionStatement(t *testing.T) {
	fn := compileOK(t, "1 + 2")
	assertOps(t, opcodes(fn),
		vm.OpPushConstant, vm.OpPushConstant, vm.OpAdd, vm.OpSetLast,
		vm.OpPushNull, vm.OpReturn)
	if fn.Unit != "test" || fn.Name != "" {
		t.Errorf("script function = %q in %q", fn.Name, fn.Unit)
	}
}

func TestCodegenGlobals(t *testing.T) {
	assertOps(t, opcodes(compileOK(t, "let x = 1")),
		vm.OpPushConstant, vm.OpDefineGlobal, vm.OpPushNull, vm.OpReturn)
	assertOps(t, opcodes(compileOK(t, "const x = 1")),
		vm.OpPushConstant, vm.OpDefineConst, vm.OpPushNull, vm.OpReturn)
	assertOps(t, opcodes(compileOK(t, "y = 2")),
		vm.OpPushConstant, vm.OpSetGlobal, vm.OpSetLast, vm.OpPushNull, vm.OpReturn)
}

func TestCodegenBlockLocals(t *testing.T) {
	fn := compileOK(t, "{ let x = 1; x }")
	assertOps(t, opcodes(fn),
		vm.OpPushConstant, vm.OpSetLocal, vm.OpPOP,
		vm.OpGetLocal, vm.OpSetLast,
		vm.OpPushNull, vm.OpReturn)
	if fn.NumSlots != 1 {
		t.Errorf("NumSlots = %d, want 1", fn.NumSlots)
	}
}

func TestCodegenFunctionBody(t *testing.T) {
	fn := compileOK(t, "function f(a, b) { a }")
	assertOps(t, opcodes(fn), vm.OpClosure, vm.OpDefineGlobal, vm.OpPushNull, vm.OpReturn)

	f := nestedFunction(t, fn, "f")
	if f.Arity != 2 || f.NumSlots != 2 {
		t.Errorf("arity=%d slots=%d, want 2 and 2", f.Arity, f.NumSlots)
	}
	// Expression statements inside functions are discarded.
	assertOps(t, opcodes(f), vm.OpGetLocal, vm.OpPOP, vm.OpPushNull, vm.OpReturn)
}

func TestCodegenOuterVariables(t *testing.T) {
	fn := compileOK(t, `
function outer() {
  let a = 1
  function inner() { return a }
  return inner
}`)
	outer := nestedFunction(t, fn, "outer")
	inner := nestedFunction(t, outer, "inner")
	assertOps(t, opcodes(inner), vm.OpGetOuter, vm.OpReturn, vm.OpPushNull, vm.OpReturn)

	// GET_OUTER depth=1 slot=0
	if inner.Code[1] != 1 || inner.Code[2] != 0 || inner.Code[3] != 0 {
		t.Errorf("GET_OUTER operands = %v, want [1 0 0]", inner.Code[1:4])
	}
}

func TestCodegenLogical(t *testing.T) {
	assertOps(t, opcodes(compileOK(t, "a && b")),
		vm.OpGetGlobal, vm.OpJumpFalseKeep, vm.OpPOP, vm.OpGetGlobal,
		vm.OpSetLast, vm.OpPushNull, vm.OpReturn)
	assertOps(t, opcodes(compileOK(t, "a || b")),
		vm.OpGetGlobal, vm.OpJumpTrueKeep, vm.OpPOP, vm.OpGetGlobal,
		vm.OpSetLast, vm.OpPushNull, vm.OpReturn)
}

func TestCodegenIncrement(t *testing.T) {
	assertOps(t, opcodes(compileOK(t, "x++")),
		vm.OpGetGlobal, vm.OpDUP, vm.OpPushConstant, vm.OpAdd, vm.OpSetGlobal, vm.OpPOP,
		vm.OpSetLast, vm.OpPushNull, vm.OpReturn)
	assertOps(t, opcodes(compileOK(t, "++x")),
		vm.OpGetGlobal, vm.OpPushConstant, vm.OpAdd, vm.OpSetGlobal,
		vm.OpSetLast, vm.OpPushNull, vm.OpReturn)
}

func TestCodegenIterSlots(t *testing.T) {
	fn := compileOK(t, "iter (let x in [1, 2]) print(x)")
	// iterable, cursor and the loop variable
	if fn.NumSlots != 3 {
		t.Errorf("NumSlots = %d, want 3", fn.NumSlots)
	}
}

func TestCodegenConstantDedup(t *testing.T) {
	fn := compileOK(t, `1; 1; "a"; "a"; 2`)
	if len(fn.Constants) != 3 {
		t.Errorf("constants = %v, want 3 entries", fn.Constants)
	}
}

func TestCodegenLineTable(t *testing.T) {
	fn := compileOK(t, "let x = 1\n\nx + y")
	ops := opcodes(fn)
	offset := 0
	for _, op := range ops {
		if op == vm.OpAdd {
			break
		}
		offset += 1 + op.Info().OperandBytes
	}
	if got := fn.LineAt(offset); got != 3 {
		t.Errorf("ADD line = %d, want 3", got)
	}
	if len(fn.Lines) != len(fn.Code) {
		t.Errorf("line table has %d entries for %d bytes", len(fn.Lines), len(fn.Code))
	}
}

func TestCodegenErrors(t *testing.T) {
	tests := []struct {
		source string
		line   int
		want   string
	}{
		{"const k = 1\nk = 2", 2, "Cannot assign to constant 'k'."},
		{"const k = 1\nk++", 2, "Cannot assign to constant 'k'."},
		{"const k = 1\nlet k = 2", 2, "Cannot redeclare constant 'k'."},
		{"function f() {\n  const c = 1\n  c += 2\n}", 3, "Cannot assign to constant 'c'."},
		{"{ let a = 1; let a = 2 }", 1, "Variable 'a' is already declared in this scope."},
		{"break", 1, "'break' outside of a loop."},
		{"\ncontinue", 2, "'continue' outside of a loop."},
		{"return 1", 1, "Can't return from top-level code."},
		{"while (true) { function f() { break } }", 1, "'break' outside of a loop."},
	}

	for _, tc := range tests {
		_, err := Compile(tc.source, "test")
		var cerr *vm.CompileError
		if !errors.As(err, &cerr) {
			t.Errorf("Compile(%q): err = %v, want *vm.CompileError", tc.source, err)
			continue
		}
		d := cerr.Diagnostics[0]
		if d.Line != tc.line || d.Message != tc.want {
			t.Errorf("Compile(%q) = line %d %q, want line %d %q", tc.source, d.Line, d.Message, tc.line, tc.want)
		}
	}
}

func TestCodegenJumpTooFar(t *testing.T) {
	source := "if (true) {\n" + strings.Repeat("x = 1\n", 6000) + "}"
	_, err := Compile(source, "big")
	if err == nil || !strings.Contains(err.Error(), "Too much code to jump over.") {
		t.Fatalf("err = %v, want jump overflow", err)
	}
}

func TestCompileErrorFormat(t *testing.T) {
	_, err := Compile("let a = 1\nlet = 2", "main.tulip")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "[main.tulip] line 2:") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestCheck(t *testing.T) {
	if diags := Check("let a = 1\nprint(a)", "ok"); len(diags) != 0 {
		t.Errorf("Check(valid) = %v", diags)
	}
	if diags := Check("1 +", "bad"); len(diags) != 1 {
		t.Errorf("Check(parse error) = %v", diags)
	}
	if diags := Check("break", "bad"); len(diags) != 1 {
		t.Errorf("Check(compile error) = %v", diags)
	}
}
