package vm

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Core Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerPrimitives() {
	vm.DefineNative("print", -1, "print(values...) writes values separated by spaces, without a newline.",
		func(v *VM, args []Value) (Value, error) {
			fmt.Fprint(v.out, joinRendered(args))
			return Null, nil
		})

	vm.DefineNative("println", -1, "println(values...) writes values separated by spaces, then a newline.",
		func(v *VM, args []Value) (Value, error) {
			fmt.Fprintln(v.out, joinRendered(args))
			return Null, nil
		})

	vm.DefineNative("len", 1, "len(x) returns the length of an array, map or string.",
		func(_ *VM, args []Value) (Value, error) {
			switch o := args[0].Object().(type) {
			case *Array:
				return FromNumber(float64(len(o.Elements))), nil
			case *Map:
				return FromNumber(float64(o.Len())), nil
			}
			if args[0].IsString() {
				return FromNumber(float64(len([]rune(args[0].Str())))), nil
			}
			return Null, Errorf("len() expects an array, map or string, got %s.", args[0].TypeName())
		})

	vm.DefineNative("type", 1, "type(x) returns the name of x's type.",
		func(_ *VM, args []Value) (Value, error) {
			return FromString(args[0].TypeName()), nil
		})

	vm.DefineNative("str", 1, "str(x) renders x as a string.",
		func(_ *VM, args []Value) (Value, error) {
			return FromString(Render(args[0])), nil
		})

	vm.DefineNative("num", 1, "num(s) parses a number from a string.",
		func(_ *VM, args []Value) (Value, error) {
			if args[0].IsNumber() {
				return args[0], nil
			}
			if !args[0].IsString() {
				return Null, Errorf("num() expects a string, got %s.", args[0].TypeName())
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str()), 64)
			if err != nil {
				return Null, Errorf("num() cannot parse %q.", args[0].Str())
			}
			return FromNumber(n), nil
		})

	vm.DefineNative("clock", 0, "clock() returns seconds since the Unix epoch.",
		func(_ *VM, _ []Value) (Value, error) {
			return FromNumber(float64(time.Now().UnixNano()) / 1e9), nil
		})

	vm.DefineNative("sqrt", 1, "sqrt(n) returns the square root of n.", numeric1("sqrt", math.Sqrt))
	vm.DefineNative("floor", 1, "floor(n) rounds n down.", numeric1("floor", math.Floor))
	vm.DefineNative("abs", 1, "abs(n) returns the absolute value of n.", numeric1("abs", math.Abs))

	vm.DefineNative("random_between", 2, "random_between(lo, hi) returns an integer in [lo, hi].",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsInteger() || !args[1].IsInteger() {
				return Null, Errorf("random_between() expects two integers.")
			}
			lo, hi := int64(args[0].Number()), int64(args[1].Number())
			if hi < lo {
				return Null, Errorf("random_between() upper bound %d is below lower bound %d.", hi, lo)
			}
			return FromNumber(float64(lo + rand.Int63n(hi-lo+1))), nil
		})

	vm.DefineNative("random_string", 1, "random_string(n) returns n random alphanumeric characters.",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsInteger() || args[0].Number() < 0 {
				return Null, Errorf("random_string() expects a non-negative integer.")
			}
			const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
			b := make([]byte, int(args[0].Number()))
			for i := range b {
				b[i] = alphabet[rand.Intn(len(alphabet))]
			}
			return FromString(string(b)), nil
		})

	vm.DefineNative("sprintf", -1, "sprintf(format, values...) formats values with Go verbs.",
		func(_ *VM, args []Value) (Value, error) {
			if len(args) == 0 || !args[0].IsString() {
				return Null, Errorf("sprintf() expects a format string.")
			}
			goArgs := make([]interface{}, len(args)-1)
			for i, a := range args[1:] {
				goArgs[i] = toGo(a)
			}
			return FromString(fmt.Sprintf(args[0].Str(), goArgs...)), nil
		})
}

func joinRendered(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Render(a)
	}
	return strings.Join(parts, " ")
}

func numeric1(name string, f func(float64) float64) NativeFunc {
	return func(_ *VM, args []Value) (Value, error) {
		if !args[0].IsNumber() {
			return Null, Errorf("%s() expects a number, got %s.", name, args[0].TypeName())
		}
		return FromNumber(f(args[0].Number())), nil
	}
}

// toGo converts a value to the Go value sprintf formats.
func toGo(v Value) interface{} {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool()
	case KindNumber:
		if v.IsInteger() {
			return int64(v.Number())
		}
		return v.Number()
	case KindString:
		return v.Str()
	}
	return Render(v)
}
