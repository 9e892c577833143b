// Package main builds libtulip - the embeddable TulipScript runtime.
// This is built with -buildmode=c-shared; the generated header declares the
// Tulip_* functions below.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"

	runtime "github.com/chazu/tulip/lib/runtime"
)

var log = commonlog.GetLogger("tulip.lib")

func main() {}

func init() {
	// The host process may never run Go's exit hooks, so log lines are
	// written unbuffered. Failures of the status-only entry points are
	// reported at warning level; TULIP_LOG_VERBOSITY=-2 silences them.
	verbosity := 0
	if v, err := strconv.Atoi(os.Getenv("TULIP_LOG_VERBOSITY")); err == nil {
		verbosity = v
	}
	backend := simple.NewBackend()
	backend.Buffered = false
	backend.Configure(verbosity, nil)
	commonlog.SetBackend(backend)
}

// ============================================================================
// Conversion helpers
// ============================================================================

// goString treats NULL as the empty string.
func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func goArgs(argc C.int, argv **C.char) []string {
	if argv == nil || argc <= 0 {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	args := make([]string, len(ptrs))
	for i, p := range ptrs {
		args[i] = goString(p)
	}
	return args
}

// cText prepares payload text for a NUL-terminated C string. Embedded NUL
// bytes are written as the two characters \0 so the host sees the whole
// payload.
func cText(s string) string {
	return strings.ReplaceAll(s, "\x00", `\0`)
}

// handOff copies a captured payload into malloc'd memory owned by the host
// and releases the Go side.
func handOff(out runtime.Outcome, status *C.int) *C.char {
	if status != nil {
		*status = C.int(out.Status)
	}
	text := out.Payload.String()
	out.Payload.Release()
	return C.CString(cText(text))
}

// failureNote describes a failed execution for the log. It returns "" on
// success.
func failureNote(op string, out runtime.Outcome) string {
	if out.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s (status %d): %s", op, out.Status, int(out.Status), out.Err)
}

// reportStatus reports a failure of a status-only entry point, which has no other
// way to carry the error text to the host.
func reportStatus(op string, out runtime.Outcome) C.int {
	if note := failureNote(op, out); note != "" {
		log.Warning(note)
	}
	return C.int(out.Status)
}

// ============================================================================
// Lifecycle
// ============================================================================

//export Tulip_Init
func Tulip_Init(argc C.int, argv **C.char) {
	runtime.Init(goArgs(argc, argv), runtime.DefaultConfig())
}

//export Tulip_Free
func Tulip_Free() {
	runtime.Free()
}

// ============================================================================
// Execution
// ============================================================================

//export Tulip_RunFile
func Tulip_RunFile(path *C.char) C.int {
	return reportStatus("Tulip_RunFile", runtime.RunFile(goString(path)))
}

//export Tulip_Interpret
func Tulip_Interpret(source, name *C.char) C.int {
	return reportStatus("Tulip_Interpret", runtime.Interpret(goString(source), goString(name)))
}

// Tulip_InterpretStatus allocates no result buffer; the non-capturing
// Interpret mode already carries the error for the log.
//
//export Tulip_InterpretStatus
func Tulip_InterpretStatus(source, name *C.char) C.int {
	return reportStatus("Tulip_InterpretStatus", runtime.Interpret(goString(source), goString(name)))
}

//export Tulip_InterpretWithResult
func Tulip_InterpretWithResult(source, name *C.char, status *C.int) *C.char {
	return handOff(runtime.InterpretResult(goString(source), goString(name)), status)
}

//export Tulip_RunFileWithResult
func Tulip_RunFileWithResult(path *C.char, status *C.int) *C.char {
	return handOff(runtime.RunFileResult(goString(path)), status)
}

// ============================================================================
// Result buffers
// ============================================================================

//export Tulip_FreeResult
func Tulip_FreeResult(result *C.char) {
	if result != nil {
		C.free(unsafe.Pointer(result))
	}
}

//export Tulip_Version
func Tulip_Version() *C.char {
	return C.CString(runtime.Version)
}
