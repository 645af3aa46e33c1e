package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// BlockMergePass removes syntactically empty block/end pairs. The scan
// repeats to a fixed point so a shell of nested empty blocks collapses
// in one run. An empty block contains no instructions, so no branch
// can target it and removing it shifts no relative depths.
type BlockMergePass struct{}

func (p *BlockMergePass) Name() string { return "block-merging" }

func (p *BlockMergePass) Run(data []byte) ([]byte, bool, error) {
	return rewriteCode(data, func(body *binscan.FuncBody) bool {
		changed := false
		for {
			out, more := dropEmptyBlocks(body.Instrs)
			if !more {
				return changed
			}
			body.Instrs = out
			changed = true
		}
	})
}

func dropEmptyBlocks(instrs []wasm.Instruction) ([]wasm.Instruction, bool) {
	out := make([]wasm.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		ins := instrs[i]
		if ins.Opcode == wasm.OpBlock && i+1 < len(instrs) &&
			instrs[i+1].Opcode == wasm.OpEnd &&
			ins.Imm.(wasm.BlockImm).Result == wasm.BlockTypeEmpty {
			changed = true
			i++
			continue
		}
		out = append(out, ins)
	}
	return out, changed
}
