package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op           Opcode
		name         string
		operandBytes int
	}{
		{OpNOP, "NOP", 0},
		{OpPOP, "POP", 0},
		{OpPushConstant, "PUSH_CONSTANT", 2},
		{OpGetOuter, "GET_OUTER", 3},
		{OpDefineConst, "DEFINE_CONST", 2},
		{OpAdd, "ADD", 0},
		{OpJumpIfFalse, "JUMP_IF_FALSE", 2},
		{OpCall, "CALL", 1},
		{OpStruct, "STRUCT", 3},
		{OpInstance, "INSTANCE", 2},
		{OpIterNext, "ITER_NEXT", 2},
		{OpSetLast, "SET_LAST", 0},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%02X: Name = %q, want %q", byte(tt.op), info.Name, tt.name)
		}
		if info.OperandBytes != tt.operandBytes {
			t.Errorf("%s: OperandBytes = %d, want %d", tt.name, info.OperandBytes, tt.operandBytes)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	if got := Opcode(0xEE).Name(); got != "UNKNOWN_EE" {
		t.Errorf("Name() = %q, want UNKNOWN_EE", got)
	}
}

// ---------------------------------------------------------------------------
// Builder tests
// ---------------------------------------------------------------------------

func TestBuilderRecordsLines(t *testing.T) {
	b := NewBytecodeBuilder()
	b.SetLine(1)
	b.Emit(OpPushNull)
	b.SetLine(7)
	b.EmitUint16(OpPushConstant, 0x0102)

	if got := b.Bytes(); len(got) != 4 || got[2] != 0x02 || got[3] != 0x01 {
		t.Fatalf("Bytes() = %v", got)
	}
	lines := b.Lines()
	if lines[0] != 1 || lines[1] != 7 || lines[3] != 7 {
		t.Errorf("Lines() = %v", lines)
	}
}

func TestForwardAndBackwardJumps(t *testing.T) {
	b := NewBytecodeBuilder()
	top := b.NewLabel()
	end := b.NewLabel()

	b.Mark(top)
	b.Emit(OpPushTrue)
	b.EmitJump(OpJumpIfFalse, end)
	b.EmitJump(OpJump, top)
	if !b.Mark(end) {
		t.Fatal("Mark(end) reported overflow")
	}

	r := NewBytecodeReader(b.Bytes())
	r.ReadU8() // PUSH_TRUE
	if op := Opcode(r.ReadU8()); op != OpJumpIfFalse {
		t.Fatalf("got %s, want JUMP_IF_FALSE", op)
	}
	fwd := r.ReadInt16()
	if target := r.Position() + int(fwd); target != b.Len() {
		t.Errorf("forward jump lands at %d, want %d", target, b.Len())
	}
	r.ReadU8() // JUMP
	back := r.ReadInt16()
	if target := r.Position() + int(back); target != 0 {
		t.Errorf("backward jump lands at %d, want 0", target)
	}
}

func TestMarkTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on second Mark")
		}
	}()
	b := NewBytecodeBuilder()
	l := b.NewLabel()
	b.Mark(l)
	b.Mark(l)
}

func TestReaderPastEnd(t *testing.T) {
	r := NewBytecodeReader([]byte{0x01})
	r.ReadU8()
	if r.HasMore() {
		t.Error("HasMore() = true at end")
	}
	if got := r.ReadU8(); got != 0 {
		t.Errorf("ReadU8 past end = %d, want 0", got)
	}
}

func TestDisassemble(t *testing.T) {
	inner := &Function{Name: "inner", Unit: "t", Code: []byte{byte(OpPushNull), byte(OpReturn)}, Lines: []int{2, 2}}
	b := NewBytecodeBuilder()
	b.SetLine(1)
	b.EmitUint16(OpClosure, 0)
	b.EmitUint16(OpDefineGlobal, 1)
	b.Emit(OpPushNull)
	b.Emit(OpReturn)
	fn := &Function{
		Unit:      "t",
		Code:      b.Bytes(),
		Lines:     b.Lines(),
		Constants: []Value{FromObject(inner), FromString("inner")},
	}

	out := Disassemble(fn)
	for _, want := range []string{"== <script> (t)", "CLOSURE", "DEFINE_GLOBAL", "(inner)", "== inner (t)"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
