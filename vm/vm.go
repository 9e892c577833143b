package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ---------------------------------------------------------------------------
// VM: The TulipScript Virtual Machine
// ---------------------------------------------------------------------------

// DefaultMaxFrames bounds call depth when Options.MaxFrames is zero.
const DefaultMaxFrames = 1024

// ErrShutdown is returned when executing on a VM after Shutdown.
var ErrShutdown = errors.New("vm: shut down")

// ErrNoCompiler is returned by Compile when no compiler backend is installed.
var ErrNoCompiler = errors.New("vm: no compiler backend installed")

// CompileFunc turns a source unit into a top-level Function.
type CompileFunc func(source, unit string) (*Function, error)

// Options configures a VM.
type Options struct {
	Stdout    io.Writer // print/println destination; os.Stdout when nil
	Args      []string  // exposed to scripts as the global "args"
	MaxFrames int       // call depth limit; DefaultMaxFrames when zero
	Trace     io.Writer // when set, each executed unit is disassembled here first
}

type global struct {
	value    Value
	constant bool
}

// VM is the TulipScript virtual machine: a global environment, the loaded
// standard library, and the interpreter state of the unit being executed.
type VM struct {
	globals   map[string]*global
	out       io.Writer
	trace     io.Writer
	args      []string
	maxFrames int
	compile   CompileFunc

	// last holds the value of the most recent top-level expression statement.
	last Value

	stack  []Value
	frames []*frame

	shutdown bool
}

// NewVM creates a VM with the standard library installed.
func NewVM(opts *Options) *VM {
	if opts == nil {
		opts = &Options{}
	}
	vm := &VM{
		globals:   make(map[string]*global),
		out:       opts.Stdout,
		trace:     opts.Trace,
		maxFrames: opts.MaxFrames,
		stack:     make([]Value, 0, 256),
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	if vm.maxFrames <= 0 {
		vm.maxFrames = DefaultMaxFrames
	}

	vm.registerPrimitives()
	vm.registerStringPrimitives()
	vm.registerArrayPrimitives()
	vm.registerDictionaryPrimitives()
	vm.registerFilePrimitives()
	vm.registerDateTimePrimitives()
	vm.SetArgs(opts.Args)
	return vm
}

// UseCompiler installs the compiler backend used by Compile and Interpret.
func (vm *VM) UseCompiler(fn CompileFunc) {
	vm.compile = fn
}

// Compile compiles source without executing it.
func (vm *VM) Compile(source, unit string) (*Function, error) {
	if vm.compile == nil {
		return nil, ErrNoCompiler
	}
	return vm.compile(source, unit)
}

// Interpret compiles and executes a source unit, returning the unit's last
// value. Compile failures are returned as *CompileError, execution faults
// as *RuntimeError.
func (vm *VM) Interpret(source, unit string) (Value, error) {
	if vm.shutdown {
		return Null, ErrShutdown
	}
	fn, err := vm.Compile(source, unit)
	if err != nil {
		return Null, err
	}
	return vm.Execute(fn)
}

// Execute runs a compiled top-level function and returns its last value.
// A Go panic raised while executing is converted to a *RuntimeError.
func (vm *VM) Execute(fn *Function) (result Value, err error) {
	if vm.shutdown {
		return Null, ErrShutdown
	}
	if vm.trace != nil {
		fmt.Fprint(vm.trace, Disassemble(fn))
	}

	vm.last = Null
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	defer func() {
		if r := recover(); r != nil {
			rerr := &RuntimeError{Message: fmt.Sprintf("internal error: %v", r)}
			rerr.Trace = vm.stackTrace()
			result, err = Null, rerr
		}
		vm.stack = vm.stack[:0]
		vm.frames = vm.frames[:0]
	}()

	script := &Closure{Fn: fn, Env: &Env{Slots: make([]Value, fn.NumSlots)}}
	vm.frames = append(vm.frames, &frame{closure: script, env: script.Env})
	if err := vm.run(); err != nil {
		return Null, err
	}
	return vm.last, nil
}

// LastValue returns the last value recorded by the most recent execution.
func (vm *VM) LastValue() Value {
	return vm.last
}

// SetArgs replaces the script-visible "args" global.
func (vm *VM) SetArgs(args []string) {
	vm.args = append([]string(nil), args...)
	elems := make([]Value, len(vm.args))
	for i, a := range vm.args {
		elems[i] = FromString(a)
	}
	vm.Define("args", NewArray(elems))
}

// Args returns a copy of the argument vector the VM was initialized with.
func (vm *VM) Args() []string {
	return append([]string(nil), vm.args...)
}

// SetOutput redirects print/println.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Output returns the current print destination.
func (vm *VM) Output() io.Writer {
	return vm.out
}

// Define creates or replaces a mutable global.
func (vm *VM) Define(name string, v Value) {
	vm.globals[name] = &global{value: v}
}

// DefineNative registers a builtin function as a global.
func (vm *VM) DefineNative(name string, arity int, doc string, fn NativeFunc) {
	vm.Define(name, FromObject(&Native{Name: name, Arity: arity, Fn: fn, Doc: doc}))
}

// LookupGlobal returns a global's value.
func (vm *VM) LookupGlobal(name string) (Value, bool) {
	g, ok := vm.globals[name]
	if !ok {
		return Null, false
	}
	return g.value, true
}

// GlobalNames returns all global names, sorted.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.globals))
	for name := range vm.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Natives returns the registered builtin functions, sorted by name.
func (vm *VM) Natives() []*Native {
	var out []*Native
	for _, name := range vm.GlobalNames() {
		if n, ok := vm.globals[name].value.Object().(*Native); ok {
			out = append(out, n)
		}
	}
	return out
}

// Shutdown releases the global environment. Any later Interpret or Execute
// returns ErrShutdown. Calling Shutdown more than once is harmless.
func (vm *VM) Shutdown() {
	vm.shutdown = true
	vm.globals = make(map[string]*global)
	vm.stack = nil
	vm.frames = nil
	vm.last = Null
	vm.args = nil
}

// IsShutdown reports whether Shutdown has been called.
func (vm *VM) IsShutdown() bool {
	return vm.shutdown
}
