package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// DeadCodePass drops instructions that can never execute. Reachability
// is keyed by block-nesting depth: once unreachable, return, br, or
// br_table executes at depth D, everything at depth >= D is dead until
// an else or a closing end brings control back to D, mirroring the
// binary format's own unreachable-code rule. The pass only removes
// instructions, so the output body is never longer than the input.
type DeadCodePass struct{}

func (p *DeadCodePass) Name() string { return "dead-code-elimination" }

func (p *DeadCodePass) Run(data []byte) ([]byte, bool, error) {
	return rewriteCode(data, func(body *binscan.FuncBody) bool {
		out, changed := elimDead(body.Instrs)
		if changed {
			body.Instrs = out
		}
		return changed
	})
}

func elimDead(instrs []wasm.Instruction) ([]wasm.Instruction, bool) {
	out := make([]wasm.Instruction, 0, len(instrs))
	changed := false

	depth := 0
	reachable := true
	deadDepth := 0

	for _, ins := range instrs {
		if !reachable {
			switch ins.Opcode {
			case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
				depth++
				changed = true
				continue
			case wasm.OpElse:
				if depth == deadDepth {
					// The else arm of a live if starts fresh.
					out = append(out, ins)
					reachable = true
					continue
				}
				changed = true
				continue
			case wasm.OpEnd:
				if depth == deadDepth {
					out = append(out, ins)
					depth--
					reachable = true
					continue
				}
				depth--
				changed = true
				continue
			default:
				changed = true
				continue
			}
		}

		out = append(out, ins)
		switch ins.Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			depth++
		case wasm.OpEnd:
			depth--
		case wasm.OpUnreachable, wasm.OpReturn, wasm.OpBr, wasm.OpBrTable:
			reachable = false
			deadDepth = depth
		}
	}
	return out, changed
}
