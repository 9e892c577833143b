package runtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/tulip/vm"
)

// Status categorizes the result of an execution. The values follow the
// sysexits convention so a CLI can exit with them directly.
type Status int

const (
	StatusOK            Status = 0
	StatusCompileError  Status = 65 // EX_DATAERR
	StatusUninitialized Status = 69 // EX_UNAVAILABLE
	StatusRuntimeError  Status = 70 // EX_SOFTWARE
	StatusIOError       Status = 74 // EX_IOERR
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCompileError:
		return "compile error"
	case StatusUninitialized:
		return "uninitialized"
	case StatusRuntimeError:
		return "runtime error"
	case StatusIOError:
		return "i/o error"
	}
	return fmt.Sprintf("status %d", int(s))
}

var (
	// ErrNotInitialized is returned by every execution mode when no runtime
	// is active.
	ErrNotInitialized = errors.New("runtime not initialized")

	// ErrAlreadyInitialized is returned by Init when the process-wide runtime
	// already exists. The existing runtime is left untouched.
	ErrAlreadyInitialized = errors.New("runtime already initialized")

	// ErrAlreadyReleased is returned by a second Payload.Release.
	ErrAlreadyReleased = errors.New("payload already released")
)

// Payload is the owned textual result of a capturing execution. The caller
// receives the only reference and releases it exactly once.
type Payload struct {
	mu       sync.Mutex
	text     string
	released bool
}

func newPayload(text string) *Payload {
	return &Payload{text: text}
}

// String returns the payload text, or "" once released.
func (p *Payload) String() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ""
	}
	return p.text
}

// Released reports whether Release has been called.
func (p *Payload) Released() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Release gives the payload back. Only the first call succeeds.
func (p *Payload) Release() error {
	if p == nil {
		return ErrAlreadyReleased
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrAlreadyReleased
	}
	p.released = true
	p.text = ""
	return nil
}

// Outcome is the result of one execution-mode call. Payload is nil for
// non-capturing modes; Err is nil exactly when Status is StatusOK.
type Outcome struct {
	Status  Status
	Payload *Payload
	Err     error
}

// OK reports whether the execution succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// fileError marks failures to read a script from disk.
type fileError struct {
	path string
	err  error
}

func (e *fileError) Error() string {
	return fmt.Sprintf("Could not open file %q: %v", e.path, e.err)
}

func (e *fileError) Unwrap() error { return e.err }

// statusOf maps a pipeline error to its status.
func statusOf(err error) Status {
	var (
		cerr *vm.CompileError
		rerr *vm.RuntimeError
		ferr *fileError
	)
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotInitialized), errors.Is(err, vm.ErrShutdown):
		return StatusUninitialized
	case errors.As(err, &cerr), errors.Is(err, vm.ErrNoCompiler):
		return StatusCompileError
	case errors.As(err, &ferr):
		return StatusIOError
	case errors.As(err, &rerr):
		return StatusRuntimeError
	}
	return StatusRuntimeError
}

// failure builds the outcome for err. Capturing modes always carry a
// non-empty description.
func failure(err error, capture bool) Outcome {
	out := Outcome{Status: statusOf(err), Err: err}
	if capture {
		text := err.Error()
		if text == "" {
			text = out.Status.String()
		}
		out.Payload = newPayload(text)
	}
	return out
}
