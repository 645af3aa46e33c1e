package wasm

import "fmt"

// ErrUnknownOpcode is returned for opcodes outside the closed set this
// package encodes, including the 0xFC/0xFD multi-byte prefixes.
var ErrUnknownOpcode = fmt.Errorf("unknown opcode")

// DecodeInstruction decodes one instruction from the front of code,
// returning it and the number of bytes consumed. The immediate layout
// is looked up from the opcode, mirroring AppendInstruction. An opcode
// outside the known set is an error, never a guess: misreading its
// immediate bytes as opcodes would corrupt everything after it.
func DecodeInstruction(code []byte) (Instruction, int, error) {
	if len(code) == 0 {
		return Instruction{}, 0, ErrTruncated
	}
	op := code[0]
	if !KnownOpcode(op) {
		return Instruction{}, 0, fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, op)
	}
	pos := 1

	switch ImmKindOf(op) {
	case ImmNone:
		return Instruction{Opcode: op}, pos, nil

	case ImmIndex:
		v, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: IndexImm{Index: uint32(v)}}, pos + n, nil

	case ImmI32:
		v, n, err := DecodeSLEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: I32Imm{Value: int32(v)}}, pos + n, nil

	case ImmI64:
		v, n, err := DecodeSLEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: I64Imm{Value: v}}, pos + n, nil

	case ImmF32:
		v, err := DecodeF32(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: F32Imm{Value: v}}, pos + 4, nil

	case ImmF64:
		v, err := DecodeF64(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: F64Imm{Value: v}}, pos + 8, nil

	case ImmBlock:
		if pos >= len(code) {
			return Instruction{}, 0, ErrTruncated
		}
		return Instruction{Opcode: op, Imm: BlockImm{Result: code[pos]}}, pos + 1, nil

	case ImmBrTable:
		count, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		labels := make([]uint32, 0, count)
		for i := uint64(0); i < count; i++ {
			l, n, err := DecodeULEB128(code[pos:])
			if err != nil {
				return Instruction{}, 0, err
			}
			labels = append(labels, uint32(l))
			pos += n
		}
		def, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: BrTableImm{Labels: labels, Default: uint32(def)}}, pos + n, nil

	case ImmCallIndirect:
		typeIdx, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		tableIdx, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: CallIndirectImm{TypeIdx: uint32(typeIdx), TableIdx: uint32(tableIdx)}}, pos + n, nil

	case ImmMemarg:
		align, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		offset, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: MemImm{Align: uint32(align), Offset: uint32(offset)}}, pos + n, nil

	case ImmMemIdx:
		v, n, err := DecodeULEB128(code[pos:])
		if err != nil {
			return Instruction{}, 0, err
		}
		return Instruction{Opcode: op, Imm: MemIdxImm{MemIdx: uint32(v)}}, pos + n, nil
	}
	return Instruction{}, 0, ErrTruncated
}

// DecodeInstructions decodes a whole expression, including its
// terminating end opcode.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pos := 0; pos < len(code); {
		ins, n, err := DecodeInstruction(code[pos:])
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
		pos += n
	}
	return out, nil
}

// EncodeInstructions is the inverse of DecodeInstructions.
func EncodeInstructions(instrs []Instruction) []byte {
	var out []byte
	for _, ins := range instrs {
		out = AppendInstruction(out, ins)
	}
	return out
}
