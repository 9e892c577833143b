package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Errors raised by the pipeline
// ---------------------------------------------------------------------------

// Diagnostic is a single compile-time problem.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// CompileError reports that a source unit could not be compiled.
type CompileError struct {
	Unit        string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	for i, d := range e.Diagnostics {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s] %s", e.Unit, d)
	}
	if len(e.Diagnostics) == 0 {
		fmt.Fprintf(&sb, "[%s] compilation failed", e.Unit)
	}
	return sb.String()
}

// TraceEntry is one script frame in a runtime error's stack trace.
type TraceEntry struct {
	Function string
	Unit     string
	Line     int
}

func (t TraceEntry) String() string {
	name := t.Function
	if name == "" {
		name = "<script>"
	} else {
		name += "()"
	}
	return fmt.Sprintf("at %s (%s:%d)", name, t.Unit, t.Line)
}

// RuntimeError reports an uncaught fault during execution.
type RuntimeError struct {
	Message string
	Trace   []TraceEntry // innermost frame first
}

// traceEdge is how many innermost and outermost frames Error prints when a
// trace is too long to show in full.
const traceEdge = 10

// Error renders the message and trace. Long traces keep their first and
// last traceEdge frames; Trace itself is never shortened.
func (e *RuntimeError) Error() string {
	if len(e.Trace) == 0 {
		return e.Message
	}
	var sb strings.Builder
	sb.WriteString(e.Message)
	for i, t := range e.Trace {
		if len(e.Trace) > 2*traceEdge+1 && i >= traceEdge && i < len(e.Trace)-traceEdge {
			if i == traceEdge {
				fmt.Fprintf(&sb, "\n  ... %d more frames", len(e.Trace)-2*traceEdge)
			}
			continue
		}
		sb.WriteString("\n  ")
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Line returns the line of the innermost frame, or 0 if unknown.
func (e *RuntimeError) Line() int {
	if len(e.Trace) == 0 {
		return 0
	}
	return e.Trace[0].Line
}

// nativeError is returned by natives; the interpreter adds the trace.
type nativeError struct {
	msg string
}

func (e *nativeError) Error() string { return e.msg }

// Errorf builds an error for a native function to return. The interpreter
// turns it into a RuntimeError annotated with the calling frame.
func Errorf(format string, args ...interface{}) error {
	return &nativeError{msg: fmt.Sprintf(format, args...)}
}
