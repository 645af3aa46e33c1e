package wasm

import "fmt"

// Builder assembles a module from individual entity registrations and
// serializes it with Build. Each Add method returns the index assigned in
// that entity's space.
//
// Imports must be registered before local functions and globals so that
// the combined index spaces come out in declaration order.
type Builder struct {
	types   []FuncType
	typeIdx map[string]uint32

	imports      []Import
	numImpFuncs  uint32
	numImpGlobs  uint32
	numImpTables uint32
	numImpMems   uint32

	funcs    []Function
	funcType []uint32
	tables   []TableType
	memory   *Limits
	globals  []Global
	exports  []Export
	elements []ElementSegment
	data     []DataSegment
	start    *uint32
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{typeIdx: make(map[string]uint32)}
}

// AddType registers a function signature, deduplicating structurally equal
// signatures. Repeated calls with an equal signature return the same index.
func (b *Builder) AddType(ft FuncType) uint32 {
	key := ft.Key()
	if idx, ok := b.typeIdx[key]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, ft)
	b.typeIdx[key] = idx
	return idx
}

// AddImport registers an import and returns its index within the imported
// portion of its kind's index space.
func (b *Builder) AddImport(imp Import) uint32 {
	switch imp.Kind {
	case KindFunc:
		if imp.Func == nil {
			panic("wasm: function import without signature")
		}
		b.AddType(*imp.Func)
		b.imports = append(b.imports, imp)
		b.numImpFuncs++
		return b.numImpFuncs - 1
	case KindGlobal:
		if imp.Global == nil {
			panic("wasm: global import without type")
		}
		b.imports = append(b.imports, imp)
		b.numImpGlobs++
		return b.numImpGlobs - 1
	case KindMemory:
		if imp.Memory == nil {
			panic("wasm: memory import without limits")
		}
		b.imports = append(b.imports, imp)
		b.numImpMems++
		return b.numImpMems - 1
	case KindTable:
		if imp.Table == nil {
			panic("wasm: table import without type")
		}
		b.imports = append(b.imports, imp)
		b.numImpTables++
		return b.numImpTables - 1
	}
	panic(fmt.Sprintf("wasm: unknown import kind %d", imp.Kind))
}

// AddFunction registers a locally defined function, auto-registering its
// signature's type entry. If the function carries an ExportName it is also
// exported under that name. The returned index is in the combined function
// index space (imports first).
func (b *Builder) AddFunction(fn Function) uint32 {
	typeIdx := b.AddType(fn.Signature)
	idx := b.numImpFuncs + uint32(len(b.funcs))
	b.funcs = append(b.funcs, fn)
	b.funcType = append(b.funcType, typeIdx)
	if fn.ExportName != "" {
		b.AddExport(fn.ExportName, KindFunc, idx)
	}
	return idx
}

// AddTable registers a funcref table.
func (b *Builder) AddTable(t TableType) uint32 {
	idx := b.numImpTables + uint32(len(b.tables))
	b.tables = append(b.tables, t)
	return idx
}

// AddMemory sets the module memory. At most one memory is supported.
func (b *Builder) AddMemory(lim Limits) uint32 {
	if b.memory != nil {
		panic("wasm: module already has a memory")
	}
	b.memory = &lim
	return b.numImpMems
}

// AddGlobal registers a module global.
func (b *Builder) AddGlobal(g Global) uint32 {
	idx := b.numImpGlobs + uint32(len(b.globals))
	b.globals = append(b.globals, g)
	if g.ExportName != "" {
		b.AddExport(g.ExportName, KindGlobal, idx)
	}
	return idx
}

// AddExport registers an explicit export entry.
func (b *Builder) AddExport(name string, kind byte, index uint32) uint32 {
	b.exports = append(b.exports, Export{Name: name, Kind: kind, Index: index})
	return uint32(len(b.exports) - 1)
}

// AddElement registers an active funcref element segment.
func (b *Builder) AddElement(e ElementSegment) uint32 {
	b.elements = append(b.elements, e)
	return uint32(len(b.elements) - 1)
}

// AddData registers an active data segment.
func (b *Builder) AddData(d DataSegment) uint32 {
	b.data = append(b.data, d)
	return uint32(len(b.data) - 1)
}

// SetStart sets the start function index.
func (b *Builder) SetStart(funcIdx uint32) {
	b.start = &funcIdx
}

// hasExport reports whether an export with the given name already exists.
func (b *Builder) hasExport(name string) bool {
	for _, e := range b.exports {
		if e.Name == name {
			return true
		}
	}
	return false
}

// FromDefinition wires a full module definition into a builder and
// serializes it. The module memory, when present, is auto-exported as
// "memory"; named functions and globals export themselves; explicit
// exports not already implied are added verbatim.
func FromDefinition(def *ModuleDefinition) ([]byte, error) {
	b := NewBuilder()

	for _, ft := range def.Types {
		b.AddType(ft)
	}
	for _, imp := range def.Imports {
		b.AddImport(imp)
	}
	if def.Memory != nil {
		b.AddMemory(def.Memory.Limits)
	}
	for _, t := range def.Tables {
		b.AddTable(t)
	}
	for _, g := range def.Globals {
		b.AddGlobal(g)
	}
	for _, fn := range def.Functions {
		b.AddFunction(fn)
	}
	if def.Memory != nil && !b.hasExport("memory") {
		b.AddExport("memory", KindMemory, b.numImpMems)
	}
	for _, e := range def.Exports {
		if !b.hasExport(e.Name) {
			b.AddExport(e.Name, e.Kind, e.Index)
		}
	}
	for _, e := range def.Elements {
		b.AddElement(e)
	}
	for _, d := range def.Data {
		b.AddData(d)
	}
	if def.Start != nil {
		b.SetStart(*def.Start)
	}

	numFuncs := b.numImpFuncs + uint32(len(b.funcs))
	for _, e := range b.exports {
		if e.Kind == KindFunc && e.Index >= numFuncs {
			return nil, fmt.Errorf("export %q: function index %d out of range (%d functions)", e.Name, e.Index, numFuncs)
		}
	}
	if b.start != nil && *b.start >= numFuncs {
		return nil, fmt.Errorf("start function index %d out of range (%d functions)", *b.start, numFuncs)
	}

	return b.Build(), nil
}

// Build serializes the module: magic and version followed by the sections
// in canonical order. Sections with zero entries are omitted entirely.
func (b *Builder) Build() []byte {
	out := append([]byte{}, MagicBytes...)

	if len(b.types) > 0 {
		out = b.appendSection(out, SectionType, b.encodeTypeSection())
	}
	if len(b.imports) > 0 {
		out = b.appendSection(out, SectionImport, b.encodeImportSection())
	}
	if len(b.funcs) > 0 {
		out = b.appendSection(out, SectionFunction, b.encodeFuncSection())
	}
	if len(b.tables) > 0 {
		out = b.appendSection(out, SectionTable, b.encodeTableSection())
	}
	if b.memory != nil {
		out = b.appendSection(out, SectionMemory, b.encodeMemorySection())
	}
	if len(b.globals) > 0 {
		out = b.appendSection(out, SectionGlobal, b.encodeGlobalSection())
	}
	if len(b.exports) > 0 {
		out = b.appendSection(out, SectionExport, b.encodeExportSection())
	}
	if b.start != nil {
		out = b.appendSection(out, SectionStart, AppendULEB128(nil, uint64(*b.start)))
	}
	if len(b.elements) > 0 {
		out = b.appendSection(out, SectionElement, b.encodeElementSection())
	}
	if len(b.funcs) > 0 {
		out = b.appendSection(out, SectionCode, b.encodeCodeSection())
	}
	if len(b.data) > 0 {
		out = b.appendSection(out, SectionData, b.encodeDataSection())
	}

	return out
}

func (b *Builder) appendSection(dst []byte, id byte, content []byte) []byte {
	dst = append(dst, id)
	dst = AppendULEB128(dst, uint64(len(content)))
	return append(dst, content...)
}

func (b *Builder) encodeTypeSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.types)))
	for _, ft := range b.types {
		sec = append(sec, FuncTypeMarker)
		sec = AppendULEB128(sec, uint64(len(ft.Params)))
		for _, p := range ft.Params {
			sec = append(sec, byte(p))
		}
		sec = AppendULEB128(sec, uint64(len(ft.Results)))
		for _, r := range ft.Results {
			sec = append(sec, byte(r))
		}
	}
	return sec
}

func appendName(dst []byte, s string) []byte {
	dst = AppendULEB128(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendLimits(dst []byte, lim Limits) []byte {
	if lim.Max != nil {
		dst = append(dst, LimitsHasMax)
		dst = AppendULEB128(dst, uint64(lim.Min))
		return AppendULEB128(dst, uint64(*lim.Max))
	}
	dst = append(dst, LimitsNoMax)
	return AppendULEB128(dst, uint64(lim.Min))
}

func (b *Builder) encodeImportSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.imports)))
	for _, imp := range b.imports {
		sec = appendName(sec, imp.Module)
		sec = appendName(sec, imp.Name)
		sec = append(sec, imp.Kind)
		switch imp.Kind {
		case KindFunc:
			sec = AppendULEB128(sec, uint64(b.typeIdx[imp.Func.Key()]))
		case KindTable:
			sec = append(sec, RefTypeFuncref)
			sec = appendLimits(sec, imp.Table.Limits)
		case KindMemory:
			sec = appendLimits(sec, *imp.Memory)
		case KindGlobal:
			sec = append(sec, byte(imp.Global.Type))
			if imp.Global.Mutable {
				sec = append(sec, 0x01)
			} else {
				sec = append(sec, 0x00)
			}
		}
	}
	return sec
}

func (b *Builder) encodeFuncSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.funcs)))
	for _, typeIdx := range b.funcType {
		sec = AppendULEB128(sec, uint64(typeIdx))
	}
	return sec
}

func (b *Builder) encodeTableSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.tables)))
	for _, t := range b.tables {
		sec = append(sec, RefTypeFuncref)
		sec = appendLimits(sec, t.Limits)
	}
	return sec
}

func (b *Builder) encodeMemorySection() []byte {
	sec := AppendULEB128(nil, 1)
	return appendLimits(sec, *b.memory)
}

func (b *Builder) encodeGlobalSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.globals)))
	for _, g := range b.globals {
		sec = append(sec, byte(g.Type))
		if g.Mutable {
			sec = append(sec, 0x01)
		} else {
			sec = append(sec, 0x00)
		}
		sec = AppendInstruction(sec, g.Init)
		sec = append(sec, OpEnd)
	}
	return sec
}

func (b *Builder) encodeExportSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.exports)))
	for _, e := range b.exports {
		sec = appendName(sec, e.Name)
		sec = append(sec, e.Kind)
		sec = AppendULEB128(sec, uint64(e.Index))
	}
	return sec
}

func (b *Builder) encodeElementSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.elements)))
	for _, e := range b.elements {
		sec = append(sec, 0x00) // active, table 0, funcref
		sec = append(sec, OpI32Const)
		sec = AppendSLEB128(sec, int64(e.Offset))
		sec = append(sec, OpEnd)
		sec = AppendULEB128(sec, uint64(len(e.FuncIndices)))
		for _, idx := range e.FuncIndices {
			sec = AppendULEB128(sec, uint64(idx))
		}
	}
	return sec
}

func (b *Builder) encodeCodeSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.funcs)))
	for _, fn := range b.funcs {
		body := encodeBody(fn)
		sec = AppendULEB128(sec, uint64(len(body)))
		sec = append(sec, body...)
	}
	return sec
}

func (b *Builder) encodeDataSection() []byte {
	sec := AppendULEB128(nil, uint64(len(b.data)))
	for _, d := range b.data {
		sec = append(sec, 0x00) // active, memory 0
		sec = append(sec, OpI32Const)
		sec = AppendSLEB128(sec, int64(d.Offset))
		sec = append(sec, OpEnd)
		sec = AppendULEB128(sec, uint64(len(d.Bytes)))
		sec = append(sec, d.Bytes...)
	}
	return sec
}

// encodeBody encodes one function body: run-length encoded local groups,
// the instruction stream, then the terminating end the caller never
// supplies.
func encodeBody(fn Function) []byte {
	type localGroup struct {
		count uint32
		vt    ValType
	}
	var groups []localGroup
	for _, l := range fn.Locals {
		if len(groups) > 0 && groups[len(groups)-1].vt == l {
			groups[len(groups)-1].count++
		} else {
			groups = append(groups, localGroup{1, l})
		}
	}

	body := AppendULEB128(nil, uint64(len(groups)))
	for _, g := range groups {
		body = AppendULEB128(body, uint64(g.count))
		body = append(body, byte(g.vt))
	}

	for _, ins := range fn.Body {
		body = AppendInstruction(body, ins)
	}
	return append(body, OpEnd)
}

// AppendInstruction encodes one instruction. The immediate encoding follows
// ImmKindOf; a mismatched immediate is a caller bug and panics.
func AppendInstruction(dst []byte, ins Instruction) []byte {
	dst = append(dst, ins.Opcode)
	switch ImmKindOf(ins.Opcode) {
	case ImmNone:
		return dst
	case ImmIndex:
		imm := ins.Imm.(IndexImm)
		return AppendULEB128(dst, uint64(imm.Index))
	case ImmI32:
		imm := ins.Imm.(I32Imm)
		return AppendSLEB128(dst, int64(imm.Value))
	case ImmI64:
		imm := ins.Imm.(I64Imm)
		return AppendSLEB128(dst, imm.Value)
	case ImmF32:
		imm := ins.Imm.(F32Imm)
		return AppendF32(dst, imm.Value)
	case ImmF64:
		imm := ins.Imm.(F64Imm)
		return AppendF64(dst, imm.Value)
	case ImmBlock:
		imm := ins.Imm.(BlockImm)
		return append(dst, imm.Result)
	case ImmBrTable:
		imm := ins.Imm.(BrTableImm)
		dst = AppendULEB128(dst, uint64(len(imm.Labels)))
		for _, l := range imm.Labels {
			dst = AppendULEB128(dst, uint64(l))
		}
		return AppendULEB128(dst, uint64(imm.Default))
	case ImmCallIndirect:
		imm := ins.Imm.(CallIndirectImm)
		dst = AppendULEB128(dst, uint64(imm.TypeIdx))
		return AppendULEB128(dst, uint64(imm.TableIdx))
	case ImmMemarg:
		imm := ins.Imm.(MemImm)
		dst = AppendULEB128(dst, uint64(imm.Align))
		return AppendULEB128(dst, uint64(imm.Offset))
	case ImmMemIdx:
		imm := ins.Imm.(MemIdxImm)
		return AppendULEB128(dst, uint64(imm.MemIdx))
	}
	panic(fmt.Sprintf("wasm: opcode 0x%02X has unhandled immediate kind", ins.Opcode))
}
