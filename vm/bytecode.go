package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP Opcode = 0x00 // no operation
	OpPOP Opcode = 0x01 // discard top of stack
	OpDUP Opcode = 0x02 // duplicate top of stack
)

// Push Constants
const (
	OpPushNull     Opcode = 0x10 // push null
	OpPushTrue     Opcode = 0x11 // push true
	OpPushFalse    Opcode = 0x12 // push false
	OpPushConstant Opcode = 0x13 // push constant from pool (16-bit index)
)

// Variable Operations
const (
	OpGetLocal     Opcode = 0x20 // push local slot (16-bit slot)
	OpSetLocal     Opcode = 0x21 // store TOS into local slot, keep TOS (16-bit slot)
	OpGetOuter     Opcode = 0x22 // push enclosing-function slot (8-bit depth, 16-bit slot)
	OpSetOuter     Opcode = 0x23 // store TOS into enclosing-function slot (8-bit depth, 16-bit slot)
	OpGetGlobal    Opcode = 0x24 // push global (16-bit name constant)
	OpSetGlobal    Opcode = 0x25 // assign existing global, keep TOS (16-bit name constant)
	OpDefineGlobal Opcode = 0x26 // pop and define mutable global (16-bit name constant)
	OpDefineConst  Opcode = 0x27 // pop and define constant global (16-bit name constant)
)

// Arithmetic and logic
const (
	OpAdd       Opcode = 0x30
	OpSubtract  Opcode = 0x31
	OpMultiply  Opcode = 0x32
	OpDivide    Opcode = 0x33
	OpModulo    Opcode = 0x34
	OpPower     Opcode = 0x35
	OpFloorDiv  Opcode = 0x36 // a /_ b
	OpPercent   Opcode = 0x37 // a %% b == a percent of b
	OpNegate    Opcode = 0x38
	OpNot       Opcode = 0x39
	OpEqual     Opcode = 0x3A
	OpNotEqual  Opcode = 0x3B
	OpLess      Opcode = 0x3C
	OpLessEq    Opcode = 0x3D
	OpGreater   Opcode = 0x3E
	OpGreaterEq Opcode = 0x3F
)

// Control flow (16-bit signed offsets relative to the end of the instruction)
const (
	OpJump          Opcode = 0x40
	OpJumpIfFalse   Opcode = 0x41 // pop, jump if falsy
	OpJumpFalseKeep Opcode = 0x42 // jump if TOS falsy, leave it on the stack
	OpJumpTrueKeep  Opcode = 0x43 // jump if TOS truthy, leave it on the stack
)

// Functions
const (
	OpCall    Opcode = 0x50 // call (8-bit argc)
	OpClosure Opcode = 0x51 // create closure over current env (16-bit function constant)
	OpReturn  Opcode = 0x52 // return TOS
)

// Collections and structs
const (
	OpArray    Opcode = 0x60 // build array from N stack items (16-bit count)
	OpMap      Opcode = 0x61 // build map from N key/value pairs (16-bit count)
	OpIndex    Opcode = 0x62 // obj idx -> obj[idx]
	OpSetIndex Opcode = 0x63 // obj idx val -> val
	OpSlice    Opcode = 0x64 // obj [lo] [hi] -> slice (8-bit flags: 1=lo, 2=hi)
	OpGetField Opcode = 0x65 // obj -> obj.name (16-bit name constant)
	OpSetField Opcode = 0x66 // obj val -> val (16-bit name constant)
	OpStruct   Opcode = 0x67 // N (name, default) pairs -> struct type (16-bit name, 8-bit N)
	OpInstance Opcode = 0x68 // type + N (name, value) pairs -> instance (8-bit N, 8-bit open)
	OpIterNext Opcode = 0x69 // iterable idx -> jump if exhausted else push element (16-bit offset)
)

// Top-level bookkeeping
const (
	OpSetLast Opcode = 0x70 // pop TOS and record it as the unit's last value
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP: {"NOP", 0},
	OpPOP: {"POP", 0},
	OpDUP: {"DUP", 0},

	OpPushNull:     {"PUSH_NULL", 0},
	OpPushTrue:     {"PUSH_TRUE", 0},
	OpPushFalse:    {"PUSH_FALSE", 0},
	OpPushConstant: {"PUSH_CONSTANT", 2},

	OpGetLocal:     {"GET_LOCAL", 2},
	OpSetLocal:     {"SET_LOCAL", 2},
	OpGetOuter:     {"GET_OUTER", 3},
	OpSetOuter:     {"SET_OUTER", 3},
	OpGetGlobal:    {"GET_GLOBAL", 2},
	OpSetGlobal:    {"SET_GLOBAL", 2},
	OpDefineGlobal: {"DEFINE_GLOBAL", 2},
	OpDefineConst:  {"DEFINE_CONST", 2},

	OpAdd:       {"ADD", 0},
	OpSubtract:  {"SUBTRACT", 0},
	OpMultiply:  {"MULTIPLY", 0},
	OpDivide:    {"DIVIDE", 0},
	OpModulo:    {"MODULO", 0},
	OpPower:     {"POWER", 0},
	OpFloorDiv:  {"FLOOR_DIV", 0},
	OpPercent:   {"PERCENT", 0},
	OpNegate:    {"NEGATE", 0},
	OpNot:       {"NOT", 0},
	OpEqual:     {"EQUAL", 0},
	OpNotEqual:  {"NOT_EQUAL", 0},
	OpLess:      {"LESS", 0},
	OpLessEq:    {"LESS_EQ", 0},
	OpGreater:   {"GREATER", 0},
	OpGreaterEq: {"GREATER_EQ", 0},

	OpJump:          {"JUMP", 2},
	OpJumpIfFalse:   {"JUMP_IF_FALSE", 2},
	OpJumpFalseKeep: {"JUMP_FALSE_KEEP", 2},
	OpJumpTrueKeep:  {"JUMP_TRUE_KEEP", 2},

	OpCall:    {"CALL", 1},
	OpClosure: {"CLOSURE", 2},
	OpReturn:  {"RETURN", 0},

	OpArray:    {"ARRAY", 2},
	OpMap:      {"MAP", 2},
	OpIndex:    {"INDEX", 0},
	OpSetIndex: {"SET_INDEX", 0},
	OpSlice:    {"SLICE", 1},
	OpGetField: {"GET_FIELD", 2},
	OpSetField: {"SET_FIELD", 2},
	OpStruct:   {"STRUCT", 3},
	OpInstance: {"INSTANCE", 2},
	OpIterNext: {"ITER_NEXT", 2},

	OpSetLast: {"SET_LAST", 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences and records the source
// line of every emitted byte.
type BytecodeBuilder struct {
	bytes []byte
	lines []int
	line  int
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
		lines: make([]int, 0, 64),
	}
}

// SetLine sets the source line attributed to subsequently emitted bytes.
func (b *BytecodeBuilder) SetLine(line int) {
	b.line = line
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Lines returns the per-byte line table.
func (b *BytecodeBuilder) Lines() []int {
	return b.lines
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

func (b *BytecodeBuilder) put(data ...byte) {
	for _, d := range data {
		b.bytes = append(b.bytes, d)
		b.lines = append(b.lines, b.line)
	}
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.put(byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.put(byte(op), operand)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.put(byte(op), byte(operand), byte(operand>>8))
}

// EmitOuter appends GET_OUTER or SET_OUTER.
func (b *BytecodeBuilder) EmitOuter(op Opcode, depth uint8, slot uint16) {
	b.put(byte(op), depth, byte(slot), byte(slot>>8))
}

// EmitStruct appends a STRUCT instruction.
func (b *BytecodeBuilder) EmitStruct(name uint16, nFields uint8) {
	b.put(byte(OpStruct), byte(name), byte(name>>8), nFields)
}

// EmitInstance appends an INSTANCE instruction.
func (b *BytecodeBuilder) EmitInstance(nFields uint8, open bool) {
	var o byte
	if open {
		o = 1
	}
	b.put(byte(OpInstance), nFields, o)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// MaxJump is the largest distance a 16-bit jump can cover.
const MaxJump = 1<<15 - 1

// Label represents a jump target that may not be known yet.
type Label struct {
	resolved bool
	position int   // target (if resolved)
	refs     []int // operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches forward jumps.
// It returns false if any patched offset does not fit in 16 bits.
func (b *BytecodeBuilder) Mark(label *Label) bool {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	ok := true
	for _, ref := range label.refs {
		offset := label.position - (ref + 2)
		if offset > MaxJump {
			ok = false
		}
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
	return ok
}

// EmitJump emits a jump instruction targeting label. It returns false if a
// backward jump does not fit in 16 bits.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) bool {
	b.put(byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.put(byte(offset), byte(offset>>8))
		return offset >= -MaxJump-1
	}
	label.refs = append(label.refs, len(b.bytes))
	b.put(0, 0)
	return true
}

// ---------------------------------------------------------------------------
// Bytecode reader
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader over bc.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current offset.
func (r *BytecodeReader) Position() int { return r.pos }

// HasMore reports whether unread bytes remain.
func (r *BytecodeReader) HasMore() bool { return r.pos < len(r.bytes) }

// ReadU8 reads one byte, returning 0 past the end.
func (r *BytecodeReader) ReadU8() byte {
	if r.pos >= len(r.bytes) {
		return 0
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a little-endian 16-bit operand.
func (r *BytecodeReader) ReadUint16() uint16 {
	lo := r.ReadU8()
	hi := r.ReadU8()
	return uint16(lo) | uint16(hi)<<8
}

// ReadInt16 reads a little-endian signed 16-bit operand.
func (r *BytecodeReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble renders fn and its nested functions as readable text.
func Disassemble(fn *Function) string {
	var sb strings.Builder
	disassembleInto(&sb, fn)
	return sb.String()
}

func disassembleInto(sb *strings.Builder, fn *Function) {
	name := fn.Name
	if name == "" {
		name = "<script>"
	}
	fmt.Fprintf(sb, "== %s (%s) arity=%d slots=%d ==\n", name, fn.Unit, fn.Arity, fn.NumSlots)

	r := NewBytecodeReader(fn.Code)
	for r.HasMore() {
		pos := r.Position()
		op := Opcode(r.ReadU8())
		fmt.Fprintf(sb, "%04d %4d %-16s", pos, fn.LineAt(pos), op.Name())
		switch op {
		case OpPushConstant, OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpDefineConst,
			OpGetField, OpSetField, OpClosure:
			idx := r.ReadUint16()
			fmt.Fprintf(sb, " %d", idx)
			if int(idx) < len(fn.Constants) {
				fmt.Fprintf(sb, " (%s)", Render(fn.Constants[idx]))
			}
		case OpGetLocal, OpSetLocal, OpArray, OpMap:
			fmt.Fprintf(sb, " %d", r.ReadUint16())
		case OpGetOuter, OpSetOuter:
			depth := r.ReadU8()
			fmt.Fprintf(sb, " depth=%d slot=%d", depth, r.ReadUint16())
		case OpJump, OpJumpIfFalse, OpJumpFalseKeep, OpJumpTrueKeep, OpIterNext:
			off := r.ReadInt16()
			fmt.Fprintf(sb, " -> %04d", r.Position()+int(off))
		case OpCall, OpSlice:
			fmt.Fprintf(sb, " %d", r.ReadU8())
		case OpStruct:
			idx := r.ReadUint16()
			fmt.Fprintf(sb, " %d fields=%d", idx, r.ReadU8())
		case OpInstance:
			n := r.ReadU8()
			fmt.Fprintf(sb, " fields=%d open=%d", n, r.ReadU8())
		}
		sb.WriteByte('\n')
	}

	for _, c := range fn.Constants {
		if nested, ok := c.Object().(*Function); ok {
			sb.WriteByte('\n')
			disassembleInto(sb, nested)
		}
	}
}
