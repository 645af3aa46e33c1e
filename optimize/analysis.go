package optimize

import (
	"go.uber.org/zap"

	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// callGraph maps each function index to the functions it directly
// calls. Indices cover the whole function space, imports included.
type callGraph map[uint32][]uint32

// buildCallGraph decodes every body and records its direct call edges.
func buildCallGraph(m *binscan.Module) (callGraph, uint32, error) {
	var numImported uint32
	if sec := m.Section(wasm.SectionImport); sec != nil {
		var err error
		numImported, err = binscan.CountImportedFuncs(sec.Data)
		if err != nil {
			return nil, 0, err
		}
	}

	cg := make(callGraph)
	sec := m.Section(wasm.SectionCode)
	if sec == nil {
		return cg, numImported, nil
	}
	bodies, err := binscan.ParseCode(sec.Data)
	if err != nil {
		return nil, 0, err
	}
	for i, body := range bodies {
		caller := numImported + uint32(i)
		for _, ins := range body.Instrs {
			if ins.Opcode == wasm.OpCall {
				cg[caller] = append(cg[caller], ins.Imm.(wasm.IndexImm).Index)
			}
		}
	}
	return cg, numImported, nil
}

// reachableFrom computes the transitive closure of callees from the
// given roots by fixed-point iteration.
func (cg callGraph) reachableFrom(roots map[uint32]bool) map[uint32]bool {
	result := make(map[uint32]bool, len(roots))
	for r := range roots {
		result[r] = true
	}
	changed := true
	for changed {
		changed = false
		for caller, callees := range cg {
			if !result[caller] {
				continue
			}
			for _, callee := range callees {
				if !result[callee] {
					result[callee] = true
					changed = true
				}
			}
		}
	}
	return result
}

// exportRoots collects the function indices reachable directly from
// the export and start sections.
func exportRoots(m *binscan.Module) (map[uint32]bool, error) {
	roots := make(map[uint32]bool)
	if sec := m.Section(wasm.SectionExport); sec != nil {
		exports, err := binscan.ParseExports(sec.Data)
		if err != nil {
			return nil, err
		}
		for _, exp := range exports {
			if exp.Kind == wasm.KindFunc {
				roots[exp.Index] = true
			}
		}
	}
	if sec := m.Section(wasm.SectionStart); sec != nil {
		idx, err := binscan.ParseStart(sec.Data)
		if err != nil {
			return nil, err
		}
		roots[idx] = true
	}
	return roots, nil
}

// RemoveUnusedPass reports functions unreachable from any export or
// the start function. Removing them requires remapping every function
// index in the call, element, and export sections, which this pass
// does not do; it logs the candidates and leaves the bytes unchanged.
type RemoveUnusedPass struct{}

func (p *RemoveUnusedPass) Name() string { return "remove-unused" }

func (p *RemoveUnusedPass) Run(data []byte) ([]byte, bool, error) {
	m, err := binscan.Parse(data)
	if err != nil {
		return nil, false, err
	}
	cg, numImported, err := buildCallGraph(m)
	if err != nil {
		return nil, false, err
	}
	roots, err := exportRoots(m)
	if err != nil {
		return nil, false, err
	}
	live := cg.reachableFrom(roots)

	var numDefined int
	if sec := m.Section(wasm.SectionFunction); sec != nil {
		types, err := binscan.ParseFunctionTypes(sec.Data)
		if err != nil {
			return nil, false, err
		}
		numDefined = len(types)
	}

	var unused []uint32
	for i := 0; i < numDefined; i++ {
		idx := numImported + uint32(i)
		if !live[idx] {
			unused = append(unused, idx)
		}
	}
	if len(unused) > 0 {
		Logger().Info("unreachable functions detected",
			zap.Uint32s("functions", unused),
			zap.Int("total", numDefined))
	}
	return data, false, nil
}

// inlineBodyLimit is the largest body, in instructions, considered an
// inline candidate.
const inlineBodyLimit = 8

// InlineSmallFunctionsPass reports functions with a single call site
// and a body small enough to inline. Splicing a body into its caller
// needs local remapping and return rewriting, which this pass does not
// do; it logs the candidates and leaves the bytes unchanged.
type InlineSmallFunctionsPass struct{}

func (p *InlineSmallFunctionsPass) Name() string { return "inline-small-functions" }

func (p *InlineSmallFunctionsPass) Run(data []byte) ([]byte, bool, error) {
	m, err := binscan.Parse(data)
	if err != nil {
		return nil, false, err
	}
	sec := m.Section(wasm.SectionCode)
	if sec == nil {
		return data, false, nil
	}
	bodies, err := binscan.ParseCode(sec.Data)
	if err != nil {
		return nil, false, err
	}
	cg, numImported, err := buildCallGraph(m)
	if err != nil {
		return nil, false, err
	}

	callSites := make(map[uint32]int)
	for _, callees := range cg {
		for _, callee := range callees {
			callSites[callee]++
		}
	}

	var candidates []uint32
	for i, body := range bodies {
		idx := numImported + uint32(i)
		if callSites[idx] == 1 && len(body.Instrs) <= inlineBodyLimit {
			candidates = append(candidates, idx)
		}
	}
	if len(candidates) > 0 {
		Logger().Info("inline candidates detected",
			zap.Uint32s("functions", candidates),
			zap.Int("bodyLimit", inlineBodyLimit))
	}
	return data, false, nil
}
