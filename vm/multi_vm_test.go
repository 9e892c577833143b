package vm

import (
	"bytes"
	"testing"
)

// ---------------------------------------------------------------------------
// Multi-VM Integration Tests
//
// Two VMs in one process must not share globals, output or arguments.
// ---------------------------------------------------------------------------

func TestMultiVM_IndependentGlobals(t *testing.T) {
	var out1, out2 bytes.Buffer
	vm1 := NewVM(&Options{Stdout: &out1, Args: []string{"one"}})
	defer vm1.Shutdown()
	vm2 := NewVM(&Options{Stdout: &out2, Args: []string{"two"}})
	defer vm2.Shutdown()

	vm1.Define("x", FromNumber(1))
	if _, ok := vm2.LookupGlobal("x"); ok {
		t.Error("global defined in vm1 is visible in vm2")
	}

	a1, _ := vm1.LookupGlobal("args")
	a2, _ := vm2.LookupGlobal("args")
	if Render(a1) != "[one]" || Render(a2) != "[two]" {
		t.Errorf("args = %s / %s", Render(a1), Render(a2))
	}

	b := NewBytecodeBuilder()
	b.EmitUint16(OpGetGlobal, 0)
	b.EmitUint16(OpPushConstant, 1)
	b.EmitByte(OpCall, 1)
	b.Emit(OpPOP)
	fn := script(b, 0, FromString("print"), FromString("hi"))

	if _, err := vm1.Execute(fn); err != nil {
		t.Fatal(err)
	}
	if out1.String() != "hi" || out2.Len() != 0 {
		t.Errorf("out1 = %q, out2 = %q", out1.String(), out2.String())
	}
}

func TestMultiVM_ShutdownIsolated(t *testing.T) {
	vm1 := NewVM(nil)
	vm2 := NewVM(nil)
	defer vm2.Shutdown()

	vm1.Shutdown()
	if vm2.IsShutdown() {
		t.Error("shutting down vm1 affected vm2")
	}
	if _, ok := vm2.LookupGlobal("println"); !ok {
		t.Error("vm2 lost its builtins")
	}
}
