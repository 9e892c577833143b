package vm

// ---------------------------------------------------------------------------
// Map Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerDictionaryPrimitives() {
	vm.DefineNative("map_remove", 2, "map_remove(m, key) deletes key and returns m.",
		func(_ *VM, args []Value) (Value, error) {
			m, key, err := mapAndKey("map_remove", args)
			if err != nil {
				return Null, err
			}
			m.Delete(key)
			return args[0], nil
		})

	vm.DefineNative("map_contains_key", 2, "map_contains_key(m, key) reports whether key is present.",
		func(_ *VM, args []Value) (Value, error) {
			m, key, err := mapAndKey("map_contains_key", args)
			if err != nil {
				return Null, err
			}
			_, ok := m.Get(key)
			return FromBool(ok), nil
		})

	vm.DefineNative("map_size", 1, "map_size(m) returns the number of entries.",
		func(_ *VM, args []Value) (Value, error) {
			m, ok := args[0].Object().(*Map)
			if !ok {
				return Null, Errorf("map_size() expects a map, got %s.", args[0].TypeName())
			}
			return FromNumber(float64(m.Len())), nil
		})

	vm.DefineNative("map_keys", 1, "map_keys(m) returns the keys in insertion order.",
		func(_ *VM, args []Value) (Value, error) {
			m, ok := args[0].Object().(*Map)
			if !ok {
				return Null, Errorf("map_keys() expects a map, got %s.", args[0].TypeName())
			}
			keys := m.Keys()
			elems := make([]Value, len(keys))
			for i, k := range keys {
				elems[i] = FromString(k)
			}
			return NewArray(elems), nil
		})
}

func mapAndKey(name string, args []Value) (*Map, string, error) {
	m, ok := args[0].Object().(*Map)
	if !ok {
		return nil, "", Errorf("%s() expects a map, got %s.", name, args[0].TypeName())
	}
	key, err := mapKey(args[1])
	if err != nil {
		return nil, "", Errorf("%s", err.Error())
	}
	return m, key, nil
}
