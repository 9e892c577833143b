package vm

import "strings"

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerStringPrimitives() {
	// substring(s, start, end) - rune-indexed, end exclusive
	vm.DefineNative("substring", 3, "substring(s, start, end) returns the characters in [start, end).",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsString() {
				return Null, Errorf("substring() expects a string, got %s.", args[0].TypeName())
			}
			if !args[1].IsInteger() || !args[2].IsInteger() {
				return Null, Errorf("substring() expects integer bounds.")
			}
			runes := []rune(args[0].Str())
			start, end := int(args[1].Number()), int(args[2].Number())
			if start < 0 || end > len(runes) || start > end {
				return Null, Errorf("substring() bounds [%d, %d) out of range for length %d.", start, end, len(runes))
			}
			return FromString(string(runes[start:end])), nil
		})

	vm.DefineNative("str_contains", 2, "str_contains(s, sub) reports whether sub occurs in s.",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsString() || !args[1].IsString() {
				return Null, Errorf("str_contains() expects two strings.")
			}
			return FromBool(strings.Contains(args[0].Str(), args[1].Str())), nil
		})

	vm.DefineNative("upper", 1, "upper(s) converts s to upper case.", stringMap("upper", strings.ToUpper))
	vm.DefineNative("lower", 1, "lower(s) converts s to lower case.", stringMap("lower", strings.ToLower))
	vm.DefineNative("trim", 1, "trim(s) removes leading and trailing white space.", stringMap("trim", strings.TrimSpace))

	vm.DefineNative("split", 2, "split(s, sep) splits s around each sep.",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsString() || !args[1].IsString() {
				return Null, Errorf("split() expects two strings.")
			}
			parts := strings.Split(args[0].Str(), args[1].Str())
			elems := make([]Value, len(parts))
			for i, p := range parts {
				elems[i] = FromString(p)
			}
			return NewArray(elems), nil
		})
}

func stringMap(name string, f func(string) string) NativeFunc {
	return func(_ *VM, args []Value) (Value, error) {
		if !args[0].IsString() {
			return Null, Errorf("%s() expects a string, got %s.", name, args[0].TypeName())
		}
		return FromString(f(args[0].Str())), nil
	}
}
