package vm

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Object is implemented by every heap-allocated value.
type Object interface {
	TypeName() string
}

// Array is a growable, mutable list.
type Array struct {
	Elements []Value
}

func (a *Array) TypeName() string { return "array" }

// NewArray wraps elements (not copied) in an array value.
func NewArray(elements []Value) Value {
	return FromObject(&Array{Elements: elements})
}

// Map is a string-keyed dictionary that remembers insertion order,
// so rendering and iteration are deterministic.
type Map struct {
	keys    []string
	entries map[string]Value
}

func (m *Map) TypeName() string { return "map" }

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{entries: make(map[string]Value)}
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Set stores value under key, appending new keys at the end.
func (m *Map) Set(key string, value Value) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = value
}

// Delete removes key. It reports whether the key was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (m *Map) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// StructType is the value produced by a struct declaration.
type StructType struct {
	Name     string
	Fields   []string
	Defaults []Value
}

func (s *StructType) TypeName() string { return "struct" }

// Instance is a struct instance. Fields keep declaration order; fields
// added after construction are appended.
type Instance struct {
	Type   *StructType
	fields *Map
}

func (i *Instance) TypeName() string { return "instance" }

// NewInstance creates an instance populated with the type's defaults.
func NewInstance(t *StructType) *Instance {
	inst := &Instance{Type: t, fields: NewMap()}
	for idx, name := range t.Fields {
		inst.fields.Set(name, t.Defaults[idx])
	}
	return inst
}

// Field returns a field value.
func (i *Instance) Field(name string) (Value, bool) { return i.fields.Get(name) }

// SetField assigns a field, creating it if necessary.
func (i *Instance) SetField(name string, v Value) { i.fields.Set(name, v) }

// FieldNames returns field names in order.
func (i *Instance) FieldNames() []string { return i.fields.Keys() }

// HasDeclaredField reports whether the struct type declares name.
func (t *StructType) HasDeclaredField(name string) bool {
	for _, f := range t.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Function is a compiled function prototype: bytecode plus its constant pool.
type Function struct {
	Name      string  // empty for the top-level script
	Unit      string  // source unit name, used in diagnostics
	Arity     int     // number of parameters
	NumSlots  int     // locals including parameters
	Code      []byte  // bytecode
	Lines     []int   // source line for each byte of Code
	Constants []Value // literal pool: numbers, strings, nested functions
}

func (f *Function) TypeName() string { return "function" }

// LineAt returns the source line for the instruction at offset.
func (f *Function) LineAt(offset int) int {
	if offset < 0 || offset >= len(f.Lines) {
		if len(f.Lines) > 0 {
			return f.Lines[len(f.Lines)-1]
		}
		return 0
	}
	return f.Lines[offset]
}

// Env is a function activation's variable storage. Closures keep their
// defining Env alive so captured variables are shared by reference.
type Env struct {
	Slots  []Value
	Parent *Env
}

// Closure pairs a Function with the environment it was created in.
type Closure struct {
	Fn  *Function
	Env *Env
}

func (c *Closure) TypeName() string { return "function" }

// NativeFunc implements a builtin function.
type NativeFunc func(v *VM, args []Value) (Value, error)

// Native is a builtin function value.
type Native struct {
	Name  string
	Arity int // -1 for variadic
	Fn    NativeFunc
	Doc   string
}

func (n *Native) TypeName() string { return "native" }
