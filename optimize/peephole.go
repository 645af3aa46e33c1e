package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// PeepholePass simplifies fixed two-instruction windows in one
// left-to-right scan per function body. A match consumes its window;
// scanning continues past it without overlap.
//
// Rules:
//   - nop is removed
//   - const 0; add and const 1; mul drop both (identity)
//   - const 0; mul becomes drop; const 0
//   - local.set x; local.get x becomes local.tee x
//   - local.get x; local.set x is removed (self-move)
type PeepholePass struct{}

func (p *PeepholePass) Name() string { return "peephole" }

func (p *PeepholePass) Run(data []byte) ([]byte, bool, error) {
	return rewriteCode(data, func(body *binscan.FuncBody) bool {
		out, changed := peephole(body.Instrs)
		if changed {
			body.Instrs = out
		}
		return changed
	})
}

func peephole(instrs []wasm.Instruction) ([]wasm.Instruction, bool) {
	out := make([]wasm.Instruction, 0, len(instrs))
	changed := false

	for i := 0; i < len(instrs); i++ {
		ins := instrs[i]

		if ins.Opcode == wasm.OpNop {
			changed = true
			continue
		}

		if i+1 < len(instrs) {
			next := instrs[i+1]

			// Arithmetic identities on a constant right operand; the
			// const and the operator must be the same width.
			if c, ok := constValue(ins); ok {
				i32 := ins.Opcode == wasm.OpI32Const
				switch {
				case c == 0 && i32 && next.Opcode == wasm.OpI32Add,
					c == 0 && !i32 && next.Opcode == wasm.OpI64Add,
					c == 1 && i32 && next.Opcode == wasm.OpI32Mul,
					c == 1 && !i32 && next.Opcode == wasm.OpI64Mul:
					changed = true
					i++
					continue
				case c == 0 && i32 && next.Opcode == wasm.OpI32Mul:
					out = append(out,
						wasm.Instruction{Opcode: wasm.OpDrop},
						wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}})
					changed = true
					i++
					continue
				case c == 0 && !i32 && next.Opcode == wasm.OpI64Mul:
					out = append(out,
						wasm.Instruction{Opcode: wasm.OpDrop},
						wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 0}})
					changed = true
					i++
					continue
				}
			}

			// set x; get x keeps the value on the stack: that is tee.
			if ins.Opcode == wasm.OpLocalSet && next.Opcode == wasm.OpLocalGet &&
				sameIndex(ins, next) {
				out = append(out, wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: ins.Imm})
				changed = true
				i++
				continue
			}

			// get x; set x moves a local onto itself.
			if ins.Opcode == wasm.OpLocalGet && next.Opcode == wasm.OpLocalSet &&
				sameIndex(ins, next) {
				changed = true
				i++
				continue
			}
		}

		out = append(out, ins)
	}
	return out, changed
}

// constValue extracts an integer constant's value, if ins is one.
func constValue(ins wasm.Instruction) (int64, bool) {
	switch ins.Opcode {
	case wasm.OpI32Const:
		return int64(ins.Imm.(wasm.I32Imm).Value), true
	case wasm.OpI64Const:
		return ins.Imm.(wasm.I64Imm).Value, true
	}
	return 0, false
}

func sameIndex(a, b wasm.Instruction) bool {
	return a.Imm.(wasm.IndexImm).Index == b.Imm.(wasm.IndexImm).Index
}
