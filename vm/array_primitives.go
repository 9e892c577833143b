package vm

import "sort"

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerArrayPrimitives() {
	// push(arr, v) - appends in place, returns the array
	vm.DefineNative("push", 2, "push(arr, v) appends v to arr and returns arr.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("push", args[0])
			if err != nil {
				return Null, err
			}
			arr.Elements = append(arr.Elements, args[1])
			return args[0], nil
		})

	// pop(arr) - removes and returns the last element
	vm.DefineNative("pop", 1, "pop(arr) removes and returns the last element of arr.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("pop", args[0])
			if err != nil {
				return Null, err
			}
			n := len(arr.Elements)
			if n == 0 {
				return Null, Errorf("pop() on an empty array.")
			}
			last := arr.Elements[n-1]
			arr.Elements = arr.Elements[:n-1]
			return last, nil
		})

	vm.DefineNative("array_sort", 1, "array_sort(arr) sorts numbers or strings in place and returns arr.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("array_sort", args[0])
			if err != nil {
				return Null, err
			}
			var sortErr error
			sort.SliceStable(arr.Elements, func(i, j int) bool {
				less, err := compare(OpLess, arr.Elements[i], arr.Elements[j])
				if err != nil {
					sortErr = err
					return false
				}
				return less.Bool()
			})
			if sortErr != nil {
				return Null, Errorf("array_sort() needs all numbers or all strings.")
			}
			return args[0], nil
		})

	vm.DefineNative("array_to_string", 1, "array_to_string(arr) renders arr.",
		func(_ *VM, args []Value) (Value, error) {
			if _, err := arrayArg("array_to_string", args[0]); err != nil {
				return Null, err
			}
			return FromString(Render(args[0])), nil
		})

	vm.DefineNative("array_join", -1, "array_join(arrays...) concatenates arrays into a new array.",
		func(_ *VM, args []Value) (Value, error) {
			var elems []Value
			for _, a := range args {
				arr, err := arrayArg("array_join", a)
				if err != nil {
					return Null, err
				}
				elems = append(elems, arr.Elements...)
			}
			return NewArray(elems), nil
		})

	vm.DefineNative("array_split", 2, "array_split(arr, sep) splits arr into sub-arrays around each sep.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("array_split", args[0])
			if err != nil {
				return Null, err
			}
			var parts []Value
			current := []Value{}
			for _, e := range arr.Elements {
				if Equal(e, args[1]) {
					parts = append(parts, NewArray(current))
					current = []Value{}
					continue
				}
				current = append(current, e)
			}
			parts = append(parts, NewArray(current))
			return NewArray(parts), nil
		})

	vm.DefineNative("array_binary_search", 2, "array_binary_search(sorted, v) returns the index of v, or -1.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("array_binary_search", args[0])
			if err != nil {
				return Null, err
			}
			lo, hi := 0, len(arr.Elements)-1
			for lo <= hi {
				mid := (lo + hi) / 2
				if Equal(arr.Elements[mid], args[1]) {
					return FromNumber(float64(mid)), nil
				}
				less, err := compare(OpLess, arr.Elements[mid], args[1])
				if err != nil {
					return Null, Errorf("array_binary_search() needs all numbers or all strings.")
				}
				if less.Bool() {
					lo = mid + 1
				} else {
					hi = mid - 1
				}
			}
			return FromNumber(-1), nil
		})

	vm.DefineNative("array_linear_search", 2, "array_linear_search(arr, v) returns the index of v, or -1.",
		func(_ *VM, args []Value) (Value, error) {
			arr, err := arrayArg("array_linear_search", args[0])
			if err != nil {
				return Null, err
			}
			for i, e := range arr.Elements {
				if Equal(e, args[1]) {
					return FromNumber(float64(i)), nil
				}
			}
			return FromNumber(-1), nil
		})
}

func arrayArg(name string, v Value) (*Array, error) {
	arr, ok := v.Object().(*Array)
	if !ok {
		return nil, Errorf("%s() expects an array, got %s.", name, v.TypeName())
	}
	return arr, nil
}
