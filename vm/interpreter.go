package vm

import (
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Interpreter: bytecode execution loop
// ---------------------------------------------------------------------------

// frame is one function activation.
type frame struct {
	closure *Closure
	env     *Env
	ip      int
	base    int // stack height to restore on return
}

func (f *frame) readU8() byte {
	b := f.closure.Fn.Code[f.ip]
	f.ip++
	return b
}

func (f *frame) readU16() uint16 {
	code := f.closure.Fn.Code
	v := uint16(code[f.ip]) | uint16(code[f.ip+1])<<8
	f.ip += 2
	return v
}

func (f *frame) readI16() int {
	return int(int16(f.readU16()))
}

// outer walks depth environments up the closure chain.
func (e *Env) outer(depth byte) *Env {
	for i := byte(0); i < depth && e != nil; i++ {
		e = e.Parent
	}
	return e
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// runtimeError builds a RuntimeError annotated with the current script stack.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Trace:   vm.stackTrace(),
	}
}

func (vm *VM) stackTrace() []TraceEntry {
	trace := make([]TraceEntry, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		fn := fr.closure.Fn
		trace = append(trace, TraceEntry{
			Function: fn.Name,
			Unit:     fn.Unit,
			Line:     fn.LineAt(fr.ip - 1),
		})
	}
	return trace
}

// run executes frames until the outermost one returns.
func (vm *VM) run() error {
	for {
		f := vm.frames[len(vm.frames)-1]
		fn := f.closure.Fn

		if f.ip >= len(fn.Code) {
			// Falling off the end returns null.
			vm.push(Null)
			if done := vm.returnFrom(f); done {
				return nil
			}
			continue
		}

		op := Opcode(f.readU8())
		switch op {
		case OpNOP:

		case OpPOP:
			vm.pop()

		case OpDUP:
			vm.push(vm.peek(0))

		case OpPushNull:
			vm.push(Null)

		case OpPushTrue:
			vm.push(True)

		case OpPushFalse:
			vm.push(False)

		case OpPushConstant:
			vm.push(fn.Constants[f.readU16()])

		case OpGetLocal:
			vm.push(f.env.Slots[f.readU16()])

		case OpSetLocal:
			f.env.Slots[f.readU16()] = vm.peek(0)

		case OpGetOuter:
			depth := f.readU8()
			slot := f.readU16()
			vm.push(f.env.outer(depth).Slots[slot])

		case OpSetOuter:
			depth := f.readU8()
			slot := f.readU16()
			f.env.outer(depth).Slots[slot] = vm.peek(0)

		case OpGetGlobal:
			name := fn.Constants[f.readU16()].Str()
			g, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(g.value)

		case OpSetGlobal:
			name := fn.Constants[f.readU16()].Str()
			g, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			if g.constant {
				return vm.runtimeError("Cannot assign to constant '%s'.", name)
			}
			g.value = vm.peek(0)

		case OpDefineGlobal, OpDefineConst:
			name := fn.Constants[f.readU16()].Str()
			if g, ok := vm.globals[name]; ok && g.constant {
				return vm.runtimeError("Cannot redeclare constant '%s'.", name)
			}
			vm.globals[name] = &global{value: vm.pop(), constant: op == OpDefineConst}

		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpPower, OpFloorDiv, OpPercent,
			OpLess, OpLessEq, OpGreater, OpGreaterEq:
			b := vm.pop()
			a := vm.pop()
			result, err := binaryOp(op, a, b)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(result)

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(FromBool(Equal(a, b)))

		case OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(FromBool(!Equal(a, b)))

		case OpNegate:
			v := vm.pop()
			if !v.IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(FromNumber(-v.Number()))

		case OpNot:
			vm.push(FromBool(!vm.pop().Truthy()))

		case OpJump:
			off := f.readI16()
			f.ip += off

		case OpJumpIfFalse:
			off := f.readI16()
			if !vm.pop().Truthy() {
				f.ip += off
			}

		case OpJumpFalseKeep:
			off := f.readI16()
			if !vm.peek(0).Truthy() {
				f.ip += off
			}

		case OpJumpTrueKeep:
			off := f.readI16()
			if vm.peek(0).Truthy() {
				f.ip += off
			}

		case OpCall:
			if err := vm.call(int(f.readU8())); err != nil {
				return err
			}

		case OpClosure:
			proto, ok := fn.Constants[f.readU16()].Object().(*Function)
			if !ok {
				return vm.runtimeError("CLOSURE operand is not a function.")
			}
			vm.push(FromObject(&Closure{Fn: proto, Env: f.env}))

		case OpReturn:
			if done := vm.returnFrom(f); done {
				return nil
			}

		case OpArray:
			n := int(f.readU16())
			elems := make([]Value, n)
			copy(elems, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(NewArray(elems))

		case OpMap:
			n := int(f.readU16())
			start := len(vm.stack) - 2*n
			m := NewMap()
			for i := 0; i < n; i++ {
				key, err := mapKey(vm.stack[start+2*i])
				if err != nil {
					return vm.runtimeError("%s", err.Error())
				}
				m.Set(key, vm.stack[start+2*i+1])
			}
			vm.stack = vm.stack[:start]
			vm.push(FromObject(m))

		case OpIndex:
			idx := vm.pop()
			obj := vm.pop()
			v, err := indexValue(obj, idx)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(v)

		case OpSetIndex:
			val := vm.pop()
			idx := vm.pop()
			obj := vm.pop()
			if err := setIndexValue(obj, idx, val); err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(val)

		case OpSlice:
			flags := f.readU8()
			var lo, hi Value
			if flags&2 != 0 {
				hi = vm.pop()
			}
			if flags&1 != 0 {
				lo = vm.pop()
			}
			obj := vm.pop()
			v, err := sliceValue(obj, lo, flags&1 != 0, hi, flags&2 != 0)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(v)

		case OpGetField:
			name := fn.Constants[f.readU16()].Str()
			obj := vm.pop()
			v, err := getField(obj, name)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(v)

		case OpSetField:
			name := fn.Constants[f.readU16()].Str()
			val := vm.pop()
			obj := vm.pop()
			if err := setField(obj, name, val); err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.push(val)

		case OpStruct:
			name := fn.Constants[f.readU16()].Str()
			n := int(f.readU8())
			start := len(vm.stack) - 2*n
			st := &StructType{Name: name, Fields: make([]string, n), Defaults: make([]Value, n)}
			for i := 0; i < n; i++ {
				st.Fields[i] = vm.stack[start+2*i].Str()
				st.Defaults[i] = vm.stack[start+2*i+1]
			}
			vm.stack = vm.stack[:start]
			vm.push(FromObject(st))

		case OpInstance:
			n := int(f.readU8())
			open := f.readU8() != 0
			start := len(vm.stack) - 2*n
			st, ok := vm.stack[start-1].Object().(*StructType)
			if !ok {
				return vm.runtimeError("Can only instantiate structs.")
			}
			inst := NewInstance(st)
			for i := 0; i < n; i++ {
				field := vm.stack[start+2*i].Str()
				if !open && !st.HasDeclaredField(field) {
					return vm.runtimeError("Struct %s has no field '%s'.", st.Name, field)
				}
				inst.SetField(field, vm.stack[start+2*i+1])
			}
			vm.stack = vm.stack[:start-1]
			vm.push(FromObject(inst))

		case OpIterNext:
			off := f.readI16()
			idx := vm.pop()
			iterable := vm.pop()
			elem, ok, err := iterate(iterable, int(idx.Number()))
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			if !ok {
				f.ip += off
			} else {
				vm.push(elem)
			}

		case OpSetLast:
			vm.last = vm.pop()

		default:
			return vm.runtimeError("Unknown opcode %s.", op)
		}
	}
}

// returnFrom pops f, pushing TOS onto the caller's stack. It reports
// whether the outermost frame returned.
func (vm *VM) returnFrom(f *frame) bool {
	result := vm.pop()
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		return true
	}
	vm.stack = vm.stack[:f.base]
	vm.push(result)
	return false
}

// call invokes the callee sitting below argc arguments on the stack.
func (vm *VM) call(argc int) error {
	calleeIdx := len(vm.stack) - 1 - argc
	callee := vm.stack[calleeIdx]

	switch c := callee.Object().(type) {
	case *Closure:
		if argc != c.Fn.Arity {
			return vm.runtimeError("Expected %d arguments but got %d.", c.Fn.Arity, argc)
		}
		if len(vm.frames) >= vm.maxFrames {
			return vm.runtimeError("Stack overflow.")
		}
		slots := c.Fn.NumSlots
		if slots < argc {
			slots = argc
		}
		env := &Env{Slots: make([]Value, slots), Parent: c.Env}
		copy(env.Slots, vm.stack[calleeIdx+1:])
		vm.stack = vm.stack[:calleeIdx]
		vm.frames = append(vm.frames, &frame{closure: c, env: env, base: calleeIdx})
		return nil

	case *Native:
		if c.Arity >= 0 && argc != c.Arity {
			return vm.runtimeError("%s() expects %d arguments but got %d.", c.Name, c.Arity, argc)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[calleeIdx+1:])
		vm.stack = vm.stack[:calleeIdx]
		result, err := c.Fn(vm, args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.push(result)
		return nil

	default:
		return vm.runtimeError("Can only call functions, got %s.", callee.TypeName())
	}
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func binaryOp(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpAdd:
		return add(a, b)
	case OpSubtract:
		if a.IsString() && b.IsString() {
			return FromString(strings.ReplaceAll(a.Str(), b.Str(), "")), nil
		}
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return compare(op, a, b)
	}

	if !a.IsNumber() || !b.IsNumber() {
		return Null, fmt.Errorf("Operands must be numbers.")
	}
	x, y := a.Number(), b.Number()
	switch op {
	case OpSubtract:
		return FromNumber(x - y), nil
	case OpMultiply:
		return FromNumber(x * y), nil
	case OpDivide:
		if y == 0 {
			return Null, fmt.Errorf("Division by zero.")
		}
		return FromNumber(x / y), nil
	case OpModulo:
		if y == 0 {
			return Null, fmt.Errorf("Division by zero.")
		}
		return FromNumber(math.Mod(x, y)), nil
	case OpPower:
		return FromNumber(math.Pow(x, y)), nil
	case OpFloorDiv:
		if y == 0 {
			return Null, fmt.Errorf("Division by zero.")
		}
		return FromNumber(math.Floor(x / y)), nil
	case OpPercent:
		return FromNumber(x * y / 100), nil
	}
	return Null, fmt.Errorf("Unsupported operator %s.", op)
}

func add(a, b Value) (Value, error) {
	switch {
	case a.IsNumber() && b.IsNumber():
		return FromNumber(a.Number() + b.Number()), nil
	case a.IsString() || b.IsString():
		return FromString(Render(a) + Render(b)), nil
	}

	switch x := a.Object().(type) {
	case *Array:
		if y, ok := b.Object().(*Array); ok {
			elems := make([]Value, 0, len(x.Elements)+len(y.Elements))
			elems = append(elems, x.Elements...)
			elems = append(elems, y.Elements...)
			return NewArray(elems), nil
		}
	case *Map:
		if y, ok := b.Object().(*Map); ok {
			m := NewMap()
			for _, k := range x.Keys() {
				v, _ := x.Get(k)
				m.Set(k, v)
			}
			for _, k := range y.Keys() {
				v, _ := y.Get(k)
				m.Set(k, v)
			}
			return FromObject(m), nil
		}
	case *Instance:
		if y, ok := b.Object().(*Instance); ok && x.Type == y.Type {
			out := NewInstance(x.Type)
			for _, name := range x.FieldNames() {
				xv, _ := x.Field(name)
				if yv, ok := y.Field(name); ok {
					sum, err := add(xv, yv)
					if err != nil {
						return Null, err
					}
					out.SetField(name, sum)
				} else {
					out.SetField(name, xv)
				}
			}
			for _, name := range y.FieldNames() {
				if _, ok := x.Field(name); !ok {
					yv, _ := y.Field(name)
					out.SetField(name, yv)
				}
			}
			return FromObject(out), nil
		}
	}
	return Null, fmt.Errorf("Operands must be two numbers or two strings.")
}

func compare(op Opcode, a, b Value) (Value, error) {
	var c int
	switch {
	case a.IsNumber() && b.IsNumber():
		switch {
		case a.Number() < b.Number():
			c = -1
		case a.Number() > b.Number():
			c = 1
		}
	case a.IsString() && b.IsString():
		c = strings.Compare(a.Str(), b.Str())
	default:
		return Null, fmt.Errorf("Operands must be two numbers or two strings.")
	}
	switch op {
	case OpLess:
		return FromBool(c < 0), nil
	case OpLessEq:
		return FromBool(c <= 0), nil
	case OpGreater:
		return FromBool(c > 0), nil
	default:
		return FromBool(c >= 0), nil
	}
}

// ---------------------------------------------------------------------------
// Indexing, slicing, fields, iteration
// ---------------------------------------------------------------------------

func mapKey(v Value) (string, error) {
	if v.IsObject() {
		return "", fmt.Errorf("Map keys must be strings or numbers, got %s.", v.TypeName())
	}
	return Render(v), nil
}

func intIndex(v Value) (int, error) {
	if !v.IsInteger() {
		return 0, fmt.Errorf("Index must be an integer, got %s.", Render(v))
	}
	return int(v.Number()), nil
}

func indexValue(obj, idx Value) (Value, error) {
	switch o := obj.Object().(type) {
	case *Array:
		i, err := intIndex(idx)
		if err != nil {
			return Null, err
		}
		if i < 0 || i >= len(o.Elements) {
			return Null, fmt.Errorf("Array index %d out of bounds.", i)
		}
		return o.Elements[i], nil
	case *Map:
		key, err := mapKey(idx)
		if err != nil {
			return Null, err
		}
		v, _ := o.Get(key)
		return v, nil
	case *Instance:
		return getField(obj, Render(idx))
	}
	if obj.IsString() {
		i, err := intIndex(idx)
		if err != nil {
			return Null, err
		}
		runes := []rune(obj.Str())
		if i < 0 || i >= len(runes) {
			return Null, fmt.Errorf("String index %d out of bounds.", i)
		}
		return FromString(string(runes[i])), nil
	}
	return Null, fmt.Errorf("Can only index arrays, maps and strings, got %s.", obj.TypeName())
}

func setIndexValue(obj, idx, val Value) error {
	switch o := obj.Object().(type) {
	case *Array:
		i, err := intIndex(idx)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(o.Elements) {
			return fmt.Errorf("Array index %d out of bounds.", i)
		}
		o.Elements[i] = val
		return nil
	case *Map:
		key, err := mapKey(idx)
		if err != nil {
			return err
		}
		o.Set(key, val)
		return nil
	case *Instance:
		o.SetField(Render(idx), val)
		return nil
	}
	return fmt.Errorf("Can only assign into arrays and maps, got %s.", obj.TypeName())
}

func sliceBounds(n int, lo Value, hasLo bool, hi Value, hasHi bool) (int, int, error) {
	start, end := 0, n
	var err error
	if hasLo {
		if start, err = intIndex(lo); err != nil {
			return 0, 0, err
		}
	}
	if hasHi {
		if end, err = intIndex(hi); err != nil {
			return 0, 0, err
		}
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end, nil
}

func sliceValue(obj, lo Value, hasLo bool, hi Value, hasHi bool) (Value, error) {
	if arr, ok := obj.Object().(*Array); ok {
		start, end, err := sliceBounds(len(arr.Elements), lo, hasLo, hi, hasHi)
		if err != nil {
			return Null, err
		}
		elems := make([]Value, end-start)
		copy(elems, arr.Elements[start:end])
		return NewArray(elems), nil
	}
	if obj.IsString() {
		runes := []rune(obj.Str())
		start, end, err := sliceBounds(len(runes), lo, hasLo, hi, hasHi)
		if err != nil {
			return Null, err
		}
		return FromString(string(runes[start:end])), nil
	}
	return Null, fmt.Errorf("Can only slice arrays and strings, got %s.", obj.TypeName())
}

func getField(obj Value, name string) (Value, error) {
	switch o := obj.Object().(type) {
	case *Instance:
		v, ok := o.Field(name)
		if !ok {
			return Null, fmt.Errorf("Undefined field '%s'.", name)
		}
		return v, nil
	case *Map:
		v, _ := o.Get(name)
		return v, nil
	}
	return Null, fmt.Errorf("Only instances have fields, got %s.", obj.TypeName())
}

func setField(obj Value, name string, val Value) error {
	switch o := obj.Object().(type) {
	case *Instance:
		o.SetField(name, val)
		return nil
	case *Map:
		o.Set(name, val)
		return nil
	}
	return fmt.Errorf("Only instances have fields, got %s.", obj.TypeName())
}

func iterate(iterable Value, i int) (Value, bool, error) {
	switch o := iterable.Object().(type) {
	case *Array:
		if i >= len(o.Elements) {
			return Null, false, nil
		}
		return o.Elements[i], true, nil
	case *Map:
		keys := o.Keys()
		if i >= len(keys) {
			return Null, false, nil
		}
		return FromString(keys[i]), true, nil
	}
	if iterable.IsString() {
		runes := []rune(iterable.Str())
		if i >= len(runes) {
			return Null, false, nil
		}
		return FromString(string(runes[i])), true, nil
	}
	return Null, false, fmt.Errorf("Can only iterate over arrays, maps and strings, got %s.", iterable.TypeName())
}
