// Package binscan provides raw section-level access to a WASM binary
// for the optimizer passes.
//
// A parsed module is a flat list of sections with untouched payloads;
// a pass decodes only the sections it needs, rewrites them, and the
// module re-serializes around the edit. Nothing here validates deeper
// than the framing, the pipeline runs the host validator up front.
package binscan

import (
	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/wasm"
)

// Section is one raw top-level section.
type Section struct {
	Data []byte
	ID   byte
}

// Module is a section-framed view of a binary.
type Module struct {
	Sections []Section
}

// Parse splits a binary into sections after checking the header.
func Parse(data []byte) (*Module, error) {
	if len(data) < 8 {
		return nil, errors.InvalidModule("binary too short: %d bytes", len(data))
	}
	for i, b := range wasm.MagicBytes {
		if data[i] != b {
			return nil, errors.InvalidModule("bad magic at byte %d", i)
		}
	}

	m := &Module{}
	pos := 8
	for pos < len(data) {
		id := data[pos]
		pos++
		size, n, err := wasm.DecodeULEB128(data[pos:])
		if err != nil {
			return nil, errors.InvalidModule("bad section size for id %d", id)
		}
		pos += n
		if pos+int(size) > len(data) {
			return nil, errors.InvalidModule("section %d overruns the binary", id)
		}
		m.Sections = append(m.Sections, Section{ID: id, Data: data[pos : pos+int(size)]})
		pos += int(size)
	}
	return m, nil
}

// Encode re-serializes the module, preserving section order.
func (m *Module) Encode() []byte {
	out := append([]byte(nil), wasm.MagicBytes...)
	for _, sec := range m.Sections {
		out = append(out, sec.ID)
		out = wasm.AppendULEB128(out, uint64(len(sec.Data)))
		out = append(out, sec.Data...)
	}
	return out
}

// Section returns the first section with the given id, or nil.
func (m *Module) Section(id byte) *Section {
	for i := range m.Sections {
		if m.Sections[i].ID == id {
			return &m.Sections[i]
		}
	}
	return nil
}

// LocalGroup is one run-length-encoded local declaration group.
type LocalGroup struct {
	Count uint32
	Type  byte
}

// FuncBody is one decoded code-section entry.
type FuncBody struct {
	Locals []LocalGroup
	Instrs []wasm.Instruction
}

// NumLocals sums the declared (non-param) local count.
func (b *FuncBody) NumLocals() uint32 {
	var n uint32
	for _, g := range b.Locals {
		n += g.Count
	}
	return n
}

// ParseCode decodes the code section payload into per-function bodies.
func ParseCode(data []byte) ([]FuncBody, error) {
	count, pos, err := readU32(data, 0)
	if err != nil {
		return nil, err
	}
	bodies := make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		pos = n
		if pos+int(size) > len(data) {
			return nil, errors.InvalidModule("function %d body overruns the code section", i)
		}
		body, err := parseBody(data[pos : pos+int(size)])
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
		pos += int(size)
	}
	return bodies, nil
}

func parseBody(data []byte) (FuncBody, error) {
	var body FuncBody
	groups, pos, err := readU32(data, 0)
	if err != nil {
		return body, err
	}
	for i := uint32(0); i < groups; i++ {
		count, n, err := readU32(data, pos)
		if err != nil {
			return body, err
		}
		pos = n
		if pos >= len(data) {
			return body, errors.InvalidModule("truncated local group")
		}
		body.Locals = append(body.Locals, LocalGroup{Count: count, Type: data[pos]})
		pos++
	}
	instrs, err := wasm.DecodeInstructions(data[pos:])
	if err != nil {
		return body, errors.InvalidModule("bad instruction stream: %v", err)
	}
	body.Instrs = instrs
	return body, nil
}

// EncodeCode is the inverse of ParseCode.
func EncodeCode(bodies []FuncBody) []byte {
	out := wasm.AppendULEB128(nil, uint64(len(bodies)))
	for _, body := range bodies {
		enc := wasm.AppendULEB128(nil, uint64(len(body.Locals)))
		for _, g := range body.Locals {
			enc = wasm.AppendULEB128(enc, uint64(g.Count))
			enc = append(enc, g.Type)
		}
		enc = append(enc, wasm.EncodeInstructions(body.Instrs)...)
		out = wasm.AppendULEB128(out, uint64(len(enc)))
		out = append(out, enc...)
	}
	return out
}

// Export is one decoded export-section entry.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// ParseExports decodes the export section payload.
func ParseExports(data []byte) ([]Export, error) {
	count, pos, err := readU32(data, 0)
	if err != nil {
		return nil, err
	}
	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		nameLen, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		pos = n
		if pos+int(nameLen)+1 > len(data) {
			return nil, errors.InvalidModule("truncated export entry")
		}
		name := string(data[pos : pos+int(nameLen)])
		pos += int(nameLen)
		kind := data[pos]
		pos++
		idx, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		pos = n
		exports = append(exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return exports, nil
}

// CountImportedFuncs walks the import section payload and counts the
// function imports, which occupy the front of the function index space.
func CountImportedFuncs(data []byte) (uint32, error) {
	count, pos, err := readU32(data, 0)
	if err != nil {
		return 0, err
	}
	var funcs uint32
	for i := uint32(0); i < count; i++ {
		// module and field names
		for j := 0; j < 2; j++ {
			l, n, err := readU32(data, pos)
			if err != nil {
				return 0, err
			}
			pos = n + int(l)
			if pos > len(data) {
				return 0, errors.InvalidModule("truncated import name")
			}
		}
		if pos >= len(data) {
			return 0, errors.InvalidModule("truncated import descriptor")
		}
		kind := data[pos]
		pos++
		switch kind {
		case wasm.KindFunc:
			funcs++
			_, n, err := readU32(data, pos)
			if err != nil {
				return 0, err
			}
			pos = n
		case wasm.KindTable:
			if pos >= len(data) {
				return 0, errors.InvalidModule("truncated table import")
			}
			pos++ // reftype
			var err error
			pos, err = skipLimits(data, pos)
			if err != nil {
				return 0, err
			}
		case wasm.KindMemory:
			var err error
			pos, err = skipLimits(data, pos)
			if err != nil {
				return 0, err
			}
		case wasm.KindGlobal:
			if pos+2 > len(data) {
				return 0, errors.InvalidModule("truncated global import")
			}
			pos += 2 // valtype + mutability
		default:
			return 0, errors.InvalidModule("unknown import kind %d", kind)
		}
	}
	return funcs, nil
}

// CustomName reads the name of a custom section payload, returning the
// name and the offset where its contents begin.
func CustomName(data []byte) (string, int) {
	l, pos, err := readU32(data, 0)
	if err != nil || pos+int(l) > len(data) {
		return "", 0
	}
	return string(data[pos : pos+int(l)]), pos + int(l)
}

func skipLimits(data []byte, pos int) (int, error) {
	if pos >= len(data) {
		return 0, errors.InvalidModule("truncated limits")
	}
	flag := data[pos]
	pos++
	bounds := 1
	if flag == wasm.LimitsHasMax {
		bounds = 2
	}
	for i := 0; i < bounds; i++ {
		_, n, err := readU32(data, pos)
		if err != nil {
			return 0, err
		}
		pos = n
	}
	return pos, nil
}

// readU32 decodes a ULEB128 value at pos, returning the value and the
// position after it.
func readU32(data []byte, pos int) (uint32, int, error) {
	if pos >= len(data) {
		return 0, 0, errors.InvalidModule("truncated varint")
	}
	v, n, err := wasm.DecodeULEB128(data[pos:])
	if err != nil {
		return 0, 0, errors.InvalidModule("bad varint: %v", err)
	}
	return uint32(v), pos + n, nil
}

// ParseFunctionTypes decodes the function section payload: one type
// index per locally defined function, in code-section order.
func ParseFunctionTypes(data []byte) ([]uint32, error) {
	count, pos, err := readU32(data, 0)
	if err != nil {
		return nil, err
	}
	types := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		types = append(types, idx)
		pos = n
	}
	return types, nil
}

// ParseTypeParamCounts reads the parameter count of every entry in the
// type section, which is all local compaction needs from it.
func ParseTypeParamCounts(data []byte) ([]uint32, error) {
	count, pos, err := readU32(data, 0)
	if err != nil {
		return nil, err
	}
	params := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos >= len(data) || data[pos] != wasm.FuncTypeMarker {
			return nil, errors.InvalidModule("type %d is not a function type", i)
		}
		pos++
		np, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		pos = n + int(np)
		if pos > len(data) {
			return nil, errors.InvalidModule("truncated type entry")
		}
		nr, n, err := readU32(data, pos)
		if err != nil {
			return nil, err
		}
		pos = n + int(nr)
		if pos > len(data) {
			return nil, errors.InvalidModule("truncated type entry")
		}
		params = append(params, np)
	}
	return params, nil
}

// ParseStart reads the start section's function index.
func ParseStart(data []byte) (uint32, error) {
	idx, _, err := readU32(data, 0)
	return idx, err
}
