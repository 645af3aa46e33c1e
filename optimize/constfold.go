package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// ConstFoldPass folds the three-instruction window
// i32.const A; i32.const B; <binop> into one i32.const, with 32-bit
// wraparound arithmetic and shift counts masked to five bits. After a
// fold the scan backs up one slot so the folded constant can combine
// with an adjacent window, which makes a second run over the pass's own
// output a no-op.
type ConstFoldPass struct{}

func (p *ConstFoldPass) Name() string { return "constant-folding" }

func (p *ConstFoldPass) Run(data []byte) ([]byte, bool, error) {
	return rewriteCode(data, func(body *binscan.FuncBody) bool {
		out, changed := foldConstants(body.Instrs)
		if changed {
			body.Instrs = out
		}
		return changed
	})
}

func foldConstants(instrs []wasm.Instruction) ([]wasm.Instruction, bool) {
	out := append([]wasm.Instruction(nil), instrs...)
	changed := false

	for i := 0; i+2 < len(out); {
		a, aOK := i32Const(out[i])
		b, bOK := i32Const(out[i+1])
		if !aOK || !bOK {
			i++
			continue
		}
		folded, ok := foldI32(a, b, out[i+2].Opcode)
		if !ok {
			i++
			continue
		}
		out[i] = wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: folded}}
		out = append(out[:i+1], out[i+3:]...)
		changed = true
		if i > 0 {
			i--
		}
	}
	return out, changed
}

func i32Const(ins wasm.Instruction) (int32, bool) {
	if ins.Opcode != wasm.OpI32Const {
		return 0, false
	}
	return ins.Imm.(wasm.I32Imm).Value, true
}

func foldI32(a, b int32, op byte) (int32, bool) {
	switch op {
	case wasm.OpI32Add:
		return a + b, true
	case wasm.OpI32Sub:
		return a - b, true
	case wasm.OpI32Mul:
		return a * b, true
	case wasm.OpI32And:
		return a & b, true
	case wasm.OpI32Or:
		return a | b, true
	case wasm.OpI32Xor:
		return a ^ b, true
	case wasm.OpI32Shl:
		return a << (uint32(b) & 31), true
	case wasm.OpI32ShrS:
		return a >> (uint32(b) & 31), true
	case wasm.OpI32ShrU:
		return int32(uint32(a) >> (uint32(b) & 31)), true
	}
	return 0, false
}
