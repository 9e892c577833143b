package runtime

import (
	"fmt"
	"sync"

	"github.com/chazu/tulip/vm"
)

// vmRequest represents a unit of work to be executed on the VM goroutine.
type vmRequest struct {
	fn   func(*vm.VM) Outcome
	done chan Outcome
}

// worker serializes all VM access through a single goroutine. The
// interpreter is single-threaded; concurrent host calls queue here.
type worker struct {
	vm       *vm.VM
	requests chan vmRequest // unbuffered: a send is a hand-off to loop
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// newWorker creates a worker and starts the processing goroutine.
func newWorker(v *vm.VM) *worker {
	w := &worker{
		vm:       v,
		requests: make(chan vmRequest),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes VM requests sequentially on a dedicated goroutine.
func (w *worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the VM, converting a panic into a runtime error.
func (w *worker) execute(fn func(*vm.VM) Outcome) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := &vm.RuntimeError{Message: fmt.Sprintf("internal error: %v", r)}
			out = Outcome{Status: StatusRuntimeError, Err: err}
		}
	}()
	return fn(w.vm)
}

// Do submits fn for execution on the VM goroutine and blocks until it
// completes. After Stop it returns StatusUninitialized without running fn.
func (w *worker) Do(fn func(*vm.VM) Outcome) Outcome {
	req := vmRequest{
		fn:   fn,
		done: make(chan Outcome, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return Outcome{Status: StatusUninitialized, Err: ErrNotInitialized}
	}
	return <-req.done
}

// Stop shuts down the worker goroutine, waiting for an in-flight request
// to finish. It is safe to call more than once.
func (w *worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}
