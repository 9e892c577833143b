package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/tulip/vm"
)

func analyzeSource(t *testing.T, source string, known ...string) []vm.Diagnostic {
	t.Helper()
	prog, diags := Parse(source)
	if len(diags) > 0 {
		t.Fatalf("parse errors: %v", diags)
	}
	return Analyze(prog, known)
}

func hasWarning(warnings []vm.Diagnostic, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w.Message, substr) {
			return true
		}
	}
	return false
}

func TestSemanticAnalyzer_UndefinedVariable(t *testing.T) {
	warnings := analyzeSource(t, "print(undefinedVar)", "print")
	if !hasWarning(warnings, "'undefinedVar' may be undefined") {
		t.Errorf("expected warning about undefined variable, got: %v", warnings)
	}
	if hasWarning(warnings, "'print'") {
		t.Errorf("known global reported: %v", warnings)
	}
}

func TestSemanticAnalyzer_DefinedVariables(t *testing.T) {
	source := `
let total = 0
function add(x) {
  let y = x + 1
  total += y
  return later(y)
}
function later(v) { return v }
iter (let item in [1, 2]) { total += item }
for (let i = 0; i < 2; i++) { total += i }
struct P { a = total }
let p = P{a = 1}
`
	warnings := analyzeSource(t, source)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestSemanticAnalyzer_BlockScope(t *testing.T) {
	warnings := analyzeSource(t, "{ let inner = 1 }\ninner")
	if !hasWarning(warnings, "'inner' may be undefined") {
		t.Errorf("block local leaked out of scope: %v", warnings)
	}
}

func TestSemanticAnalyzer_ClosureSeesOuter(t *testing.T) {
	source := `
function outer(a) {
  return function(b) { return a + b }
}`
	if warnings := analyzeSource(t, source); len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestSemanticAnalyzer_UnreachableCode(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"function f() {\n  return 1\n  print(2)\n}", "unreachable code after return"},
		{"while (true) {\n  break\n  print(2)\n}", "unreachable code after break"},
		{"while (true) {\n  continue\n  print(2)\n}", "unreachable code after continue"},
	}
	for _, tc := range tests {
		warnings := analyzeSource(t, tc.source, "print")
		if len(warnings) != 1 || warnings[0].Message != tc.want {
			t.Errorf("%q: warnings = %v, want %q", tc.source, warnings, tc.want)
			continue
		}
		if warnings[0].Line != 3 {
			t.Errorf("%q: line = %d, want 3", tc.source, warnings[0].Line)
		}
	}
}

func TestSemanticAnalyzer_AddKnownGlobal(t *testing.T) {
	prog, _ := Parse("host_value + 1")
	a := NewSemanticAnalyzer(nil)
	a.AddKnownGlobal("host_value")
	a.AnalyzeProgram(prog)
	if len(a.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", a.Warnings())
	}
}

func TestSemanticAnalyzer_PositionInWarnings(t *testing.T) {
	warnings := analyzeSource(t, "let a = 1\n\n  missing")
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	if warnings[0].Line != 3 || warnings[0].Column != 3 {
		t.Errorf("position = %d:%d, want 3:3", warnings[0].Line, warnings[0].Column)
	}
}
