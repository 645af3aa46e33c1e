package wasm

// ImmKind classifies the immediate an opcode carries on the wire. The
// encoding width and signedness of every operand follow from this table
// alone, which keeps the builder's byte output auditable against the
// binary format independently of any lowering logic.
type ImmKind int

const (
	ImmNone         ImmKind = iota
	ImmIndex                // ULEB128 index: locals, globals, calls, branches
	ImmI32                  // SLEB128 32-bit constant
	ImmI64                  // SLEB128 64-bit constant
	ImmF32                  // 4-byte little-endian IEEE754
	ImmF64                  // 8-byte little-endian IEEE754
	ImmBlock                // single block type byte
	ImmBrTable              // label vector + default label
	ImmCallIndirect         // type index + table index
	ImmMemarg               // ULEB128 align + ULEB128 offset
	ImmMemIdx               // ULEB128 memory index
)

var immKinds = map[byte]ImmKind{
	OpBlock: ImmBlock,
	OpLoop:  ImmBlock,
	OpIf:    ImmBlock,

	OpBr:      ImmIndex,
	OpBrIf:    ImmIndex,
	OpBrTable: ImmBrTable,
	OpCall:    ImmIndex,
	OpCallInd: ImmCallIndirect,

	OpLocalGet:  ImmIndex,
	OpLocalSet:  ImmIndex,
	OpLocalTee:  ImmIndex,
	OpGlobalGet: ImmIndex,
	OpGlobalSet: ImmIndex,

	OpI32Const: ImmI32,
	OpI64Const: ImmI64,
	OpF32Const: ImmF32,
	OpF64Const: ImmF64,

	OpI32Load:    ImmMemarg,
	OpI64Load:    ImmMemarg,
	OpF32Load:    ImmMemarg,
	OpF64Load:    ImmMemarg,
	OpI32Load8S:  ImmMemarg,
	OpI32Load8U:  ImmMemarg,
	OpI32Load16S: ImmMemarg,
	OpI32Load16U: ImmMemarg,
	OpI32Store:   ImmMemarg,
	OpI64Store:   ImmMemarg,
	OpF32Store:   ImmMemarg,
	OpF64Store:   ImmMemarg,
	OpI32Store8:  ImmMemarg,
	OpI32Store16: ImmMemarg,

	OpMemorySize: ImmMemIdx,
	OpMemoryGrow: ImmMemIdx,
}

// ImmKindOf returns the immediate kind for an opcode. Opcodes absent from
// the table carry no immediate.
func ImmKindOf(op byte) ImmKind {
	if k, ok := immKinds[op]; ok {
		return k
	}
	return ImmNone
}

// Multi-byte opcode prefixes. Instructions in these spaces carry a
// second LEB128 opcode and their own immediate layouts.
const (
	OpPrefixMisc   byte = 0xFC // saturating truncation, bulk memory
	OpPrefixVector byte = 0xFD // SIMD
)

// KnownOpcode reports whether op is a single-byte opcode this package
// encodes and decodes. The set is closed on purpose: an opcode outside
// it (including the 0xFC and 0xFD prefixes) has an immediate layout the
// immediate table does not describe, and guessing ImmNone would shear
// the byte stream.
func KnownOpcode(op byte) bool {
	switch {
	case op <= OpElse:
		return true
	case op >= OpEnd && op <= OpCallInd:
		return true
	case op == OpDrop || op == OpSelect:
		return true
	case op >= OpLocalGet && op <= OpGlobalSet:
		return true
	case op >= OpI32Load && op <= OpI32Load16U:
		return true
	case op >= OpI32Store && op <= OpI32Store16:
		return true
	case op == OpMemorySize || op == OpMemoryGrow:
		return true
	case op >= OpI32Const && op <= OpF64PromoteF32:
		return true
	}
	return false
}
