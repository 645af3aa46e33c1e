package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// LocalCompactPass removes declared locals that no instruction
// references and renumbers the rest. Parameter slots sit below the
// declared locals in the index space and are never touched; a function
// that uses every declared local is left as is.
type LocalCompactPass struct{}

func (p *LocalCompactPass) Name() string { return "local-compaction" }

func (p *LocalCompactPass) Run(data []byte) ([]byte, bool, error) {
	m, err := binscan.Parse(data)
	if err != nil {
		return nil, false, err
	}
	codeSec := m.Section(wasm.SectionCode)
	if codeSec == nil {
		return data, false, nil
	}
	paramCounts, err := bodyParamCounts(m)
	if err != nil {
		return nil, false, err
	}
	bodies, err := binscan.ParseCode(codeSec.Data)
	if err != nil {
		return nil, false, err
	}

	modified := false
	for i := range bodies {
		if compactLocals(&bodies[i], paramCounts[i]) {
			modified = true
		}
	}
	if !modified {
		return data, false, nil
	}
	codeSec.Data = binscan.EncodeCode(bodies)
	return m.Encode(), true, nil
}

// bodyParamCounts resolves the parameter count of every code-section
// entry through the function and type sections.
func bodyParamCounts(m *binscan.Module) ([]uint32, error) {
	var typeParams []uint32
	if sec := m.Section(wasm.SectionType); sec != nil {
		var err error
		typeParams, err = binscan.ParseTypeParamCounts(sec.Data)
		if err != nil {
			return nil, err
		}
	}
	var funcTypes []uint32
	if sec := m.Section(wasm.SectionFunction); sec != nil {
		var err error
		funcTypes, err = binscan.ParseFunctionTypes(sec.Data)
		if err != nil {
			return nil, err
		}
	}

	counts := make([]uint32, len(funcTypes))
	for i, t := range funcTypes {
		if int(t) < len(typeParams) {
			counts[i] = typeParams[t]
		}
	}
	return counts, nil
}

func compactLocals(body *binscan.FuncBody, numParams uint32) bool {
	numLocals := body.NumLocals()
	if numLocals == 0 {
		return false
	}

	used := make(map[uint32]bool)
	for _, ins := range body.Instrs {
		switch ins.Opcode {
		case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
			used[ins.Imm.(wasm.IndexImm).Index] = true
		}
	}

	// Expand the RLE groups into one flat type list.
	types := make([]byte, 0, numLocals)
	for _, g := range body.Locals {
		for i := uint32(0); i < g.Count; i++ {
			types = append(types, g.Type)
		}
	}

	// Old local slot -> new slot for the ones that stay.
	remap := make(map[uint32]uint32)
	var kept []byte
	for i, typ := range types {
		old := numParams + uint32(i)
		if used[old] {
			remap[old] = numParams + uint32(len(kept))
			kept = append(kept, typ)
		}
	}
	if len(kept) == len(types) {
		return false
	}

	for i := range body.Instrs {
		ins := &body.Instrs[i]
		switch ins.Opcode {
		case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
			idx := ins.Imm.(wasm.IndexImm).Index
			if idx >= numParams {
				ins.Imm = wasm.IndexImm{Index: remap[idx]}
			}
		}
	}

	// Re-group the surviving types.
	body.Locals = nil
	for _, typ := range kept {
		n := len(body.Locals)
		if n > 0 && body.Locals[n-1].Type == typ {
			body.Locals[n-1].Count++
			continue
		}
		body.Locals = append(body.Locals, binscan.LocalGroup{Count: 1, Type: typ})
	}
	return true
}
