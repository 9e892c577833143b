package vm

import (
	"math"
	"strings"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{0, "0"},
		{3, "3"},
		{-42, "-42"},
		{2.5, "2.5"},
		{0.1, "0.1"},
		{1000000, "1000000"},
		{1e20, "1e+20"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	m := NewMap()
	m.Set("a", FromNumber(1))
	m.Set("b", FromString("x"))

	st := &StructType{Name: "Point", Fields: []string{"x", "y"}, Defaults: []Value{FromNumber(1), FromNumber(2)}}

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null, "null"},
		{"true", True, "true"},
		{"false", False, "false"},
		{"string", FromString("hi"), "hi"},
		{"array", NewArray([]Value{FromNumber(1), FromString("a"), Null}), "[1, a, null]"},
		{"empty array", NewArray(nil), "[]"},
		{"map", FromObject(m), "{a: 1, b: x}"},
		{"struct", FromObject(st), "<struct Point>"},
		{"instance", FromObject(NewInstance(st)), "<(struct Point) x=1, y=2>"},
		{"function", FromObject(&Closure{Fn: &Function{Name: "add"}}), "<fn add>"},
		{"script", FromObject(&Function{}), "<script>"},
		{"native", FromObject(&Native{Name: "len"}), "<native fn>"},
	}
	for _, tt := range tests {
		if got := Render(tt.v); got != tt.want {
			t.Errorf("%s: Render() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRenderSelfReference(t *testing.T) {
	arr := &Array{}
	arr.Elements = []Value{FromNumber(1), FromObject(arr), FromObject(arr)}

	m := NewMap()
	m.Set("self", FromObject(m))
	m.Set("list", FromObject(arr))

	st := &StructType{Name: "Node", Fields: []string{"next"}, Defaults: []Value{Null}}
	node := NewInstance(st)
	node.SetField("next", FromObject(node))

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"array twice", FromObject(arr), "[1, [...], [...]]"},
		{"map", FromObject(m), "{self: {...}, list: [1, [...], [...]]}"},
		{"instance", FromObject(node), "<(struct Node) next=<...>>"},
	}
	for _, tt := range tests {
		if got := Render(tt.v); got != tt.want {
			t.Errorf("%s: Render() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRenderSharedNotCyclic(t *testing.T) {
	inner := NewArray([]Value{FromNumber(1)})
	outer := NewArray([]Value{inner, inner})
	if got, want := Render(outer), "[[1], [1]]"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderOutputIsBounded(t *testing.T) {
	// 2^64 leaves, no cycles.
	v := NewArray([]Value{FromString("leaf")})
	for i := 0; i < 64; i++ {
		v = NewArray([]Value{v, v})
	}
	got := Render(v)
	if len(got) > maxRenderBytes+64 {
		t.Errorf("rendered %d bytes, want at most about %d", len(got), maxRenderBytes)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated rendering does not end with ...: %q", got[len(got)-16:])
	}
}
