package runtime

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/tulip/compiler"
	"github.com/chazu/tulip/vm"
)

// Version is the TulipScript release reported by the CLI and the C ABI.
const Version = "0.4.0"

var log = commonlog.GetLogger("tulip.runtime")

// Runtime owns one VM, its global environment and loaded standard library.
// Execution modes are safe to call from several goroutines; they are
// serialized on the runtime's worker.
type Runtime struct {
	ID string // correlates log lines

	vm     *vm.VM
	worker *worker
	cache  *ScriptCache
	args   []string

	closed bool
	mu     sync.RWMutex
}

// Config holds runtime configuration
type Config struct {
	Args      []string  // exposed to scripts as the global `args`
	Stdout    io.Writer // print/println destination (defaults to os.Stdout)
	MaxFrames int       // call depth limit (defaults to vm.DefaultMaxFrames)
	CacheDB   string    // compiled-script cache path; empty disables caching
	Trace     io.Writer // receives a disassembly of every unit when set
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		CacheDB: os.Getenv("TULIP_CACHE_DB"),
	}
}

// New creates an independent runtime. Each runtime has its own globals.
func New(cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	r := &Runtime{
		ID:   uuid.NewString(),
		args: append([]string(nil), cfg.Args...),
	}

	r.vm = vm.NewVM(&vm.Options{
		Stdout:    cfg.Stdout,
		Args:      r.args,
		MaxFrames: cfg.MaxFrames,
		Trace:     cfg.Trace,
	})
	r.vm.UseCompiler(compiler.Compile)

	if cfg.CacheDB != "" {
		cache, err := OpenScriptCache(cfg.CacheDB)
		if err != nil {
			// The cache is an optimization; run without it.
			log.Warningf("runtime %s: script cache disabled: %s", r.ID, err)
		} else {
			r.cache = cache
		}
	}

	r.worker = newWorker(r.vm)
	log.Debugf("runtime %s: initialized with %d args", r.ID, len(r.args))
	return r, nil
}

// Close shuts down the runtime. It waits for in-flight executions and is
// safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.worker.Stop()
	r.vm.Shutdown()

	var err error
	if r.cache != nil {
		err = r.cache.Close()
		r.cache = nil
	}
	log.Debugf("runtime %s: closed", r.ID)
	return err
}

// Initialized reports whether the runtime accepts executions.
func (r *Runtime) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Args returns the argument vector captured at creation.
func (r *Runtime) Args() []string {
	return append([]string(nil), r.args...)
}

// Cache returns the compiled-script cache, or nil when disabled.
func (r *Runtime) Cache() *ScriptCache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache
}

// Globals returns the names defined in the runtime's global environment,
// natives included.
func (r *Runtime) Globals() []string {
	var names []string
	if err := r.Inspect(func(v *vm.VM) { names = v.GlobalNames() }); err != nil {
		return nil
	}
	return names
}

// Inspect runs fn on the runtime's worker with exclusive access to the VM.
// It returns ErrNotInitialized once the runtime is closed, and a
// *vm.RuntimeError if fn panics.
func (r *Runtime) Inspect(fn func(*vm.VM)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrNotInitialized
	}

	out := r.worker.Do(func(v *vm.VM) Outcome {
		fn(v)
		return Outcome{Status: StatusOK}
	})
	return out.Err
}

// ---------------------------------------------------------------------------
// Execution modes
// ---------------------------------------------------------------------------

// RunFile executes the script at path. A missing or unreadable file yields
// StatusIOError.
func (r *Runtime) RunFile(path string) Outcome {
	return r.runFile(path, false)
}

// RunFileResult executes the script at path and captures the rendered last
// value.
func (r *Runtime) RunFileResult(path string) Outcome {
	return r.runFile(path, true)
}

// Interpret executes source as the unit called name.
func (r *Runtime) Interpret(source, name string) Outcome {
	return r.execute(source, name, false)
}

// InterpretStatus executes source and reports only the status. No payload
// is produced.
func (r *Runtime) InterpretStatus(source, name string) Status {
	return r.execute(source, name, false).Status
}

// InterpretResult executes source and captures the rendered last value. On
// failure the payload holds the error description.
func (r *Runtime) InterpretResult(source, name string) Outcome {
	return r.execute(source, name, true)
}

func (r *Runtime) runFile(path string, capture bool) Outcome {
	if !r.Initialized() {
		return failure(ErrNotInitialized, capture)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Infof("runtime %s: %s", r.ID, err)
		return failure(&fileError{path: path, err: err}, capture)
	}
	return r.execute(string(data), path, capture)
}

func (r *Runtime) execute(source, name string, capture bool) Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return failure(ErrNotInitialized, capture)
	}

	out := r.worker.Do(func(v *vm.VM) Outcome {
		fn, err := r.compile(v, source, name)
		if err != nil {
			return failure(err, capture)
		}
		result, err := v.Execute(fn)
		if err != nil {
			return failure(err, capture)
		}
		if capture {
			return Outcome{Status: StatusOK, Payload: newPayload(vm.Render(result))}
		}
		return Outcome{Status: StatusOK}
	})

	if out.Err != nil {
		log.Debugf("runtime %s: %s: %s", r.ID, name, out.Status)
		if capture && out.Payload == nil {
			out = failure(out.Err, true)
		}
	}
	return out
}

// compile returns the top-level function for a unit, consulting the cache
// when one is configured. Cache failures are logged and ignored.
func (r *Runtime) compile(v *vm.VM, source, name string) (*vm.Function, error) {
	if r.cache == nil {
		return v.Compile(source, name)
	}

	key := CacheKey(name, source)
	fn, err := r.cache.Load(key)
	switch {
	case err == nil:
		log.Debugf("runtime %s: cache hit for %s", r.ID, name)
		return fn, nil
	case !errors.Is(err, ErrCacheMiss):
		log.Warningf("runtime %s: %s", r.ID, err)
	}

	fn, err = v.Compile(source, name)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Store(key, fn); err != nil {
		log.Warningf("runtime %s: %s", r.ID, err)
	}
	return fn, nil
}

// ============================================================================
// Global runtime instance (for C ABI)
// ============================================================================

var (
	globalRuntime *Runtime
	globalMu      sync.Mutex
)

// Global returns the process-wide runtime, or nil when none is active.
func Global() *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalRuntime
}

// Init creates the process-wide runtime with args exposed to scripts. A
// second Init while one is active returns ErrAlreadyInitialized and changes
// nothing.
func Init(args []string, cfg *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime != nil {
		log.Warningf("runtime %s: Init called while initialized", globalRuntime.ID)
		return ErrAlreadyInitialized
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	withArgs := *cfg
	withArgs.Args = args

	r, err := New(&withArgs)
	if err != nil {
		return err
	}
	globalRuntime = r
	return nil
}

// Free shuts down the process-wide runtime. Without one it does nothing.
func Free() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime == nil {
		return nil
	}
	err := globalRuntime.Close()
	globalRuntime = nil
	return err
}

// RunFile runs a file on the process-wide runtime.
func RunFile(path string) Outcome {
	if r := Global(); r != nil {
		return r.RunFile(path)
	}
	return failure(ErrNotInitialized, false)
}

// RunFileResult runs a file on the process-wide runtime, capturing the
// result.
func RunFileResult(path string) Outcome {
	if r := Global(); r != nil {
		return r.RunFileResult(path)
	}
	return failure(ErrNotInitialized, true)
}

// Interpret executes source on the process-wide runtime.
func Interpret(source, name string) Outcome {
	if r := Global(); r != nil {
		return r.Interpret(source, name)
	}
	return failure(ErrNotInitialized, false)
}

// InterpretStatus executes source on the process-wide runtime and returns
// only the status.
func InterpretStatus(source, name string) Status {
	if r := Global(); r != nil {
		return r.InterpretStatus(source, name)
	}
	return StatusUninitialized
}

// InterpretResult executes source on the process-wide runtime, capturing
// the result.
func InterpretResult(source, name string) Outcome {
	if r := Global(); r != nil {
		return r.InterpretResult(source, name)
	}
	return failure(ErrNotInitialized, true)
}
