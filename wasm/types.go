package wasm

import "strings"

// ValType is a WebAssembly value type byte.
type ValType byte

const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	}
	return "unknown"
}

// FuncType is a function signature. Signatures are deduplicated by the
// builder using Key, so structurally equal signatures share one type entry.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Key returns a structural identity for signature deduplication.
func (ft FuncType) Key() string {
	var b strings.Builder
	for _, p := range ft.Params {
		b.WriteByte(byte(p))
	}
	b.WriteByte(':')
	for _, r := range ft.Results {
		b.WriteByte(byte(r))
	}
	return b.String()
}

// Equal reports structural equality of two signatures.
func (ft FuncType) Equal(other FuncType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i, p := range ft.Params {
		if p != other.Params[i] {
			return false
		}
	}
	for i, r := range ft.Results {
		if r != other.Results[i] {
			return false
		}
	}
	return true
}

// Instruction is one opcode plus its immediate. The immediate type is
// dictated by the opcode (see ImmKindOf), never by the call site.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// IndexImm is the unsigned index immediate used by local.*, global.*,
// call, br, and br_if.
type IndexImm struct {
	Index uint32
}

// I32Imm is the signed constant immediate of i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm is the signed constant immediate of i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm is the fixed-width float immediate of f32.const.
type F32Imm struct {
	Value float32
}

// F64Imm is the fixed-width float immediate of f64.const.
type F64Imm struct {
	Value float64
}

// BlockImm is the block type immediate of block, loop, and if.
// Result is the encoded block type byte: BlockTypeEmpty or a ValType.
type BlockImm struct {
	Result byte
}

// BrTableImm is the label vector immediate of br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallIndirectImm is the (type, table) immediate of call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// MemImm is the (align, offset) immediate of load and store instructions.
type MemImm struct {
	Align  uint32
	Offset uint32
}

// MemIdxImm is the memory index immediate of memory.size and memory.grow.
type MemIdxImm struct {
	MemIdx uint32
}

// Limits describe a memory or table size range. Max is optional.
type Limits struct {
	Max *uint32
	Min uint32
}

// Function is one locally defined function in a module definition.
// When ExportName is non-empty the builder adds a function export.
type Function struct {
	Name       string
	ExportName string
	Signature  FuncType
	Locals     []ValType
	Body       []Instruction
}

// Global is one module global. Init must be a constant instruction.
type Global struct {
	Name       string
	ExportName string
	Init       Instruction
	Type       ValType
	Mutable    bool
}

// Import is one imported entity. Exactly one of the descriptor fields is
// set, matching Kind.
type Import struct {
	Module  string
	Name    string
	Func    *FuncType
	Global  *GlobalType
	Memory  *Limits
	Table   *TableType
	Kind    byte
}

// GlobalType describes an imported global.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

// TableType describes a table of funcref elements.
type TableType struct {
	Limits Limits
}

// Export is an explicit export entry. Functions with ExportName set and
// the module memory are exported implicitly; this covers everything else.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// MemoryDef describes the module memory. The builder exports it as
// "memory" automatically.
type MemoryDef struct {
	Limits Limits
}

// DataSegment is an active data segment at a constant i32 offset.
type DataSegment struct {
	Bytes  []byte
	Offset int32
}

// ElementSegment is an active funcref element segment at a constant offset.
type ElementSegment struct {
	FuncIndices []uint32
	Offset      int32
	TableIdx    uint32
}

// ModuleDefinition is the structured description of one module, produced
// by a front end and consumed exactly once by the builder.
//
// The function index space is imported functions in declaration order
// followed by the locally defined Functions; every export and the start
// index must resolve within that combined space.
type ModuleDefinition struct {
	// Types lists signatures that must occupy the front of the type table
	// in order (after structural dedup), so immediates that name a type
	// index, like call_indirect, stay stable across encoding.
	Types     []FuncType
	Functions []Function
	Globals   []Global
	Memory    *MemoryDef
	Tables    []TableType
	Imports   []Import
	Exports   []Export
	Elements  []ElementSegment
	Data      []DataSegment
	Start     *uint32
}

// NumImportedFuncs counts the imported functions, which occupy the front
// of the function index space.
func (d *ModuleDefinition) NumImportedFuncs() int {
	n := 0
	for _, imp := range d.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}
