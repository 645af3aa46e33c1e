package wasm

import (
	"errors"
	"testing"
)

func TestDecodeInstructionRejectsUnknownOpcodes(t *testing.T) {
	cases := [][]byte{
		{OpPrefixMisc, 0x0A, 0x00, 0x00}, // memory.copy
		{OpPrefixVector, 0x00},           // vector space
		{0xD0, 0x70},                     // ref.null
		{0x06},                           // unassigned
		{0xBC},                           // i32.reinterpret_f32, outside the encoded set
	}
	for _, code := range cases {
		if _, _, err := DecodeInstruction(code); !errors.Is(err, ErrUnknownOpcode) {
			t.Errorf("DecodeInstruction(% x) err = %v, want ErrUnknownOpcode", code, err)
		}
	}
}

func TestKnownOpcodeCoversImmediateTable(t *testing.T) {
	for op := range immKinds {
		if !KnownOpcode(op) {
			t.Errorf("opcode 0x%02X carries an immediate but is not known", op)
		}
	}
	for _, op := range []byte{OpUnreachable, OpNop, OpEnd, OpReturn, OpDrop, OpSelect, OpI32Add, OpF64PromoteF32} {
		if !KnownOpcode(op) {
			t.Errorf("opcode 0x%02X must be known", op)
		}
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpBlock, Imm: BlockImm{Result: BlockTypeEmpty}},
		{Opcode: OpI32Const, Imm: I32Imm{Value: -42}},
		{Opcode: OpLocalTee, Imm: IndexImm{Index: 3}},
		{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1}, Default: 2}},
		{Opcode: OpI32Load, Imm: MemImm{Align: 2, Offset: 16}},
		{Opcode: OpEnd},
	}
	decoded, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("got %d instructions, want %d", len(decoded), len(instrs))
	}
	for i, ins := range decoded {
		if ins.Opcode != instrs[i].Opcode {
			t.Errorf("instr %d: opcode 0x%02X, want 0x%02X", i, ins.Opcode, instrs[i].Opcode)
		}
	}
}
