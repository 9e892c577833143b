package vm

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// callNative invokes a registered builtin directly.
func callNative(t *testing.T, v *VM, name string, args ...Value) (Value, error) {
	t.Helper()
	g, ok := v.LookupGlobal(name)
	if !ok {
		t.Fatalf("native %q not registered", name)
	}
	n, ok := g.Object().(*Native)
	if !ok {
		t.Fatalf("%q is %s, not a native", name, g.TypeName())
	}
	return n.Fn(v, args)
}

func TestNativeResults(t *testing.T) {
	v, _ := newTestVM(t)
	arr := func(vals ...Value) Value { return NewArray(vals) }
	n := FromNumber
	s := FromString

	m := NewMap()
	m.Set("a", n(1))
	m.Set("b", n(2))

	tests := []struct {
		name string
		args []Value
		want string
	}{
		{"len", []Value{s("héllo")}, "5"},
		{"len", []Value{arr(n(1), n(2))}, "2"},
		{"type", []Value{n(1)}, "number"},
		{"str", []Value{arr(n(1))}, "[1]"},
		{"num", []Value{s(" 2.5 ")}, "2.5"},
		{"sqrt", []Value{n(16)}, "4"},
		{"floor", []Value{n(2.7)}, "2"},
		{"abs", []Value{n(-3)}, "3"},
		{"sprintf", []Value{s("Value: %v"), n(42)}, "Value: 42"},
		{"sprintf", []Value{s("%s=%.1f"), s("x"), n(1.26)}, "x=1.3"},
		{"substring", []Value{s("hello"), n(1), n(3)}, "el"},
		{"str_contains", []Value{s("hello"), s("ell")}, "true"},
		{"upper", []Value{s("abc")}, "ABC"},
		{"lower", []Value{s("ABC")}, "abc"},
		{"split", []Value{s("a,b"), s(",")}, "[a, b]"},
		{"push", []Value{arr(n(1)), n(2)}, "[1, 2]"},
		{"pop", []Value{arr(n(1), n(2))}, "2"},
		{"array_sort", []Value{arr(n(3), n(1), n(2))}, "[1, 2, 3]"},
		{"array_sort", []Value{arr(s("b"), s("a"))}, "[a, b]"},
		{"array_to_string", []Value{arr(n(1), s("x"))}, "[1, x]"},
		{"array_join", []Value{arr(n(1), n(2)), arr(n(3)), arr()}, "[1, 2, 3]"},
		{"array_split", []Value{arr(n(1), s("sep"), n(2), n(3)), s("sep")}, "[[1], [2, 3]]"},
		{"array_binary_search", []Value{arr(s("apple"), s("banana"), s("cherry")), s("cherry")}, "2"},
		{"array_linear_search", []Value{arr(n(5), n(6)), n(6)}, "1"},
		{"array_linear_search", []Value{arr(n(5)), n(7)}, "-1"},
		{"map_contains_key", []Value{FromObject(m), s("a")}, "true"},
		{"map_size", []Value{FromObject(m)}, "2"},
		{"map_keys", []Value{FromObject(m)}, "[a, b]"},
	}
	for _, tt := range tests {
		got, err := callNative(t, v, tt.name, tt.args...)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if Render(got) != tt.want {
			t.Errorf("%s(...) = %q, want %q", tt.name, Render(got), tt.want)
		}
	}
}

func TestNativeErrors(t *testing.T) {
	v, _ := newTestVM(t)
	tests := []struct {
		name string
		args []Value
	}{
		{"len", []Value{FromNumber(1)}},
		{"num", []Value{FromString("abc")}},
		{"pop", []Value{NewArray(nil)}},
		{"substring", []Value{FromString("abc"), FromNumber(2), FromNumber(9)}},
		{"array_sort", []Value{NewArray([]Value{FromNumber(1), FromString("a")})}},
		{"random_between", []Value{FromNumber(5), FromNumber(1)}},
		{"read_file", []Value{FromString("")}},
	}
	for _, tt := range tests {
		if _, err := callNative(t, v, tt.name, tt.args...); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestMapRemove(t *testing.T) {
	v, _ := newTestVM(t)
	m := NewMap()
	m.Set("a", FromNumber(1))
	m.Set("b", FromNumber(2))
	if _, err := callNative(t, v, "map_remove", FromObject(m), FromString("a")); err != nil {
		t.Fatal(err)
	}
	if Render(FromObject(m)) != "{b: 2}" {
		t.Errorf("map = %s", Render(FromObject(m)))
	}
}

func TestRandomBetween(t *testing.T) {
	v, _ := newTestVM(t)
	for i := 0; i < 50; i++ {
		got, err := callNative(t, v, "random_between", FromNumber(1), FromNumber(10))
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.Atoi(Render(got))
		if err != nil || n < 1 || n > 10 {
			t.Fatalf("random_between(1, 10) = %s", Render(got))
		}
	}

	got, _ := callNative(t, v, "random_string", FromNumber(8))
	if len(got.Str()) != 8 {
		t.Errorf("random_string(8) = %q", got.Str())
	}
}

func TestClock(t *testing.T) {
	v, _ := newTestVM(t)
	got, err := callNative(t, v, "clock")
	if err != nil {
		t.Fatal(err)
	}
	if got.Number() <= 0 {
		t.Errorf("clock() = %s", Render(got))
	}
}

func TestPrintWritesToOutput(t *testing.T) {
	v, out := newTestVM(t)
	callNative(t, v, "print", FromString("a"), FromNumber(1))
	callNative(t, v, "println", FromString("b"))
	if out.String() != "a 1b\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestFileRoundTrip(t *testing.T) {
	v, _ := newTestVM(t)
	path := filepath.Join(t.TempDir(), "sub", "test.txt")

	if _, err := callNative(t, v, "write_file", FromString(path), FromString("Hello, World!")); err != nil {
		t.Fatal(err)
	}
	got, err := callNative(t, v, "read_file", FromString(path))
	if err != nil {
		t.Fatal(err)
	}
	if got.Str() != "Hello, World!" {
		t.Errorf("read_file = %q", got.Str())
	}

	_, err = callNative(t, v, "read_file", FromString(filepath.Join(t.TempDir(), "missing")))
	if err == nil || !strings.Contains(err.Error(), "Cannot read file") {
		t.Errorf("err = %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("file not written: %v", statErr)
	}
}
