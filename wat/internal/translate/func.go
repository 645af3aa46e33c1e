package translate

import (
	"math/bits"
	"strings"

	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat/internal/opcode"
	"github.com/forgelab/wasmforge/wat/internal/sexpr"
	"github.com/forgelab/wasmforge/wat/internal/token"
)

func (t *translator) lowerFunc(n *sexpr.Node) error {
	fn := wasm.Function{Name: firstIdent(n)}
	funcIdx := t.numImpFuncs + uint32(len(t.def.Functions))

	localNames := make(map[string]uint32)
	var exportNames []string
	var bodyItems []sexpr.Item
	var nextIdx uint32

	for i, it := range n.Items {
		if i == 0 && it.IsAtom() && strings.HasPrefix(it.Atom.Value, "$") {
			continue
		}
		if !it.IsNode() {
			bodyItems = append(bodyItems, it)
			continue
		}
		node := it.Node
		switch node.Type {
		case "export":
			exportNames = append(exportNames, exportNameOf(node))
		case "type":
			idx, err := t.resolveIndex(node, t.typeNames, "type")
			if err != nil {
				return err
			}
			if int(idx) >= len(t.def.Types) {
				return errors.OutOfBounds(errors.PhaseTranslate, "type", int(idx), len(t.def.Types))
			}
			fn.Signature = t.def.Types[idx]
			nextIdx = uint32(len(fn.Signature.Params))
		case "param":
			if name := firstIdent(node); name != "" {
				localNames[name] = nextIdx
			}
			types, err := paramTypes(node)
			if err != nil {
				return err
			}
			fn.Signature.Params = append(fn.Signature.Params, types...)
			nextIdx += uint32(len(types))
		case "result":
			types, err := paramTypes(node)
			if err != nil {
				return err
			}
			fn.Signature.Results = append(fn.Signature.Results, types...)
		case "local":
			if name := firstIdent(node); name != "" {
				localNames[name] = nextIdx
			}
			types, err := paramTypes(node)
			if err != nil {
				return err
			}
			fn.Locals = append(fn.Locals, types...)
			nextIdx += uint32(len(types))
		default:
			bodyItems = append(bodyItems, it)
		}
	}

	if len(exportNames) > 0 {
		fn.ExportName = exportNames[0]
		for _, name := range exportNames[1:] {
			t.def.Exports = append(t.def.Exports, wasm.Export{Name: name, Kind: wasm.KindFunc, Index: funcIdx})
		}
	}

	fb := newFuncBody(t, localNames)
	if err := fb.lowerItems(bodyItems); err != nil {
		return err
	}
	fn.Body = fb.body

	t.def.Functions = append(t.def.Functions, fn)
	return nil
}

// funcBody carries the per-function lowering state: the local name scope
// and the label stack that branches resolve against. Both are discarded
// when the function's codegen completes.
type funcBody struct {
	t          *translator
	localNames map[string]uint32
	labels     []string
	body       []wasm.Instruction
}

func newFuncBody(t *translator, localNames map[string]uint32) *funcBody {
	return &funcBody{t: t, localNames: localNames}
}

func (fb *funcBody) emit(op byte, imm interface{}) {
	fb.body = append(fb.body, wasm.Instruction{Opcode: op, Imm: imm})
}

func (fb *funcBody) pushLabel(name string) {
	fb.labels = append(fb.labels, name)
}

func (fb *funcBody) popLabel() {
	if len(fb.labels) > 0 {
		fb.labels = fb.labels[:len(fb.labels)-1]
	}
}

// resolveLabel turns a label reference into the relative nesting depth
// counted outward from the branch site: current depth minus declaration
// depth minus one.
func (fb *funcBody) resolveLabel(v string, line int) (uint32, error) {
	if !strings.HasPrefix(v, "$") {
		return parseU32(v, line)
	}
	for i := len(fb.labels) - 1; i >= 0; i-- {
		if fb.labels[i] == v {
			return uint32(len(fb.labels) - 1 - i), nil
		}
	}
	return 0, errors.UnresolvedName(errors.PhaseTranslate, "label", v, line)
}

func (fb *funcBody) resolveLocal(v string, line int) (uint32, error) {
	if strings.HasPrefix(v, "$") {
		if idx, ok := fb.localNames[v]; ok {
			return idx, nil
		}
		return 0, errors.UnresolvedName(errors.PhaseTranslate, "local", v, line)
	}
	return parseU32(v, line)
}

// lowerItems walks a mixed sequence of folded forms and flat atoms.
func (fb *funcBody) lowerItems(items []sexpr.Item) error {
	for i := 0; i < len(items); {
		n, err := fb.lowerAt(items, i)
		if err != nil {
			return err
		}
		i += n
	}
	return nil
}

// lowerAt lowers the instruction starting at items[i], returning how many
// items it consumed.
func (fb *funcBody) lowerAt(items []sexpr.Item, i int) (int, error) {
	it := items[i]
	if it.IsNode() {
		return 1, fb.lowerItem(it)
	}
	return fb.lowerFlat(items, i)
}

// lowerItem lowers one folded form: nested operand forms first, then the
// head instruction.
func (fb *funcBody) lowerItem(it sexpr.Item) error {
	n := it.Node
	switch n.Type {
	case "block", "loop":
		return fb.lowerBlock(n)
	case "if":
		return fb.lowerIf(n)
	case "br_table":
		return fb.lowerBrTable(n)
	case "call_indirect":
		return fb.lowerCallIndirect(n)
	}

	// Operands of a folded form are its nested children, emitted first.
	for _, child := range n.Items {
		if child.IsNode() {
			if err := fb.lowerItem(child); err != nil {
				return err
			}
		}
	}
	return fb.emitNamed(n)
}

// emitNamed emits the head instruction of a folded form, reading its
// immediate from the form's atom children.
func (fb *funcBody) emitNamed(n *sexpr.Node) error {
	atoms := atomsOf(n)
	return fb.emitOp(n.Type, atoms, n.Line, n.Col)
}

// emitOp encodes one named instruction with the given immediate atoms.
func (fb *funcBody) emitOp(name string, atoms []*token.Token, line, col int) error {
	switch name {
	case "call":
		if len(atoms) == 0 {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(line, col).Detail("call without target").Build()
		}
		idx, err := fb.t.lookupOrParse(atoms[0].Value, fb.t.funcNames, "function", atoms[0].Line)
		if err != nil {
			return err
		}
		fb.emit(wasm.OpCall, wasm.IndexImm{Index: idx})
		return nil

	case "br", "br_if":
		if len(atoms) == 0 {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(line, col).Detail("%s without label", name).Build()
		}
		depth, err := fb.resolveLabel(atoms[0].Value, atoms[0].Line)
		if err != nil {
			return err
		}
		op := wasm.OpBr
		if name == "br_if" {
			op = wasm.OpBrIf
		}
		fb.emit(op, wasm.IndexImm{Index: depth})
		return nil

	case "local.get", "local.set", "local.tee":
		if len(atoms) == 0 {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(line, col).Detail("%s without index", name).Build()
		}
		idx, err := fb.resolveLocal(atoms[0].Value, atoms[0].Line)
		if err != nil {
			return err
		}
		info, _ := opcode.Lookup(name)
		fb.emit(info.Opcode, wasm.IndexImm{Index: idx})
		return nil

	case "global.get", "global.set":
		if len(atoms) == 0 {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(line, col).Detail("%s without index", name).Build()
		}
		idx, err := fb.t.lookupOrParse(atoms[0].Value, fb.t.globalNames, "global", atoms[0].Line)
		if err != nil {
			return err
		}
		info, _ := opcode.Lookup(name)
		fb.emit(info.Opcode, wasm.IndexImm{Index: idx})
		return nil

	case "i32.const", "i64.const", "f32.const", "f64.const":
		if len(atoms) == 0 {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(line, col).Detail("%s without value", name).Build()
		}
		return fb.emitConst(name, atoms[0])

	case "memory.size", "memory.grow":
		info, _ := opcode.Lookup(name)
		fb.emit(info.Opcode, wasm.MemIdxImm{MemIdx: 0})
		return nil
	}

	info, ok := opcode.Lookup(name)
	if !ok {
		return errors.New(errors.PhaseTranslate, errors.KindUnresolvedName).
			At(line, col).Detail("unknown instruction %q", name).Build()
	}
	if info.HasMemarg {
		imm, err := parseMemarg(atoms, info.NaturalAlign)
		if err != nil {
			return err
		}
		fb.emit(info.Opcode, imm)
		return nil
	}
	fb.emit(info.Opcode, nil)
	return nil
}

func (fb *funcBody) emitConst(name string, tok *token.Token) error {
	switch name {
	case "i32.const":
		v, err := parseI32(tok.Value, tok.Line)
		if err != nil {
			return err
		}
		fb.emit(wasm.OpI32Const, wasm.I32Imm{Value: v})
	case "i64.const":
		v, err := parseI64(tok.Value, tok.Line)
		if err != nil {
			return err
		}
		fb.emit(wasm.OpI64Const, wasm.I64Imm{Value: v})
	case "f32.const":
		v, err := parseF32(tok.Value, tok.Line)
		if err != nil {
			return err
		}
		fb.emit(wasm.OpF32Const, wasm.F32Imm{Value: v})
	case "f64.const":
		v, err := parseF64(tok.Value, tok.Line)
		if err != nil {
			return err
		}
		fb.emit(wasm.OpF64Const, wasm.F64Imm{Value: v})
	}
	return nil
}

// lowerBlock lowers a folded (block ...) or (loop ...) form.
func (fb *funcBody) lowerBlock(n *sexpr.Node) error {
	op := wasm.OpBlock
	if n.Type == "loop" {
		op = wasm.OpLoop
	}

	label := firstIdent(n)
	blockType, bodyStart := blockTypeOf(n)

	fb.emit(op, wasm.BlockImm{Result: blockType})
	fb.pushLabel(label)
	if err := fb.lowerItems(n.Items[bodyStart:]); err != nil {
		return err
	}
	fb.popLabel()
	fb.emit(wasm.OpEnd, nil)
	return nil
}

// lowerIf lowers a folded (if ...) form: condition operands first, then
// the if with its then and optional else arms.
func (fb *funcBody) lowerIf(n *sexpr.Node) error {
	label := firstIdent(n)
	blockType, bodyStart := blockTypeOf(n)

	var thenNode, elseNode *sexpr.Node
	var condItems []sexpr.Item
	for _, it := range n.Items[bodyStart:] {
		if it.IsNode() && it.Node.Type == "then" {
			thenNode = it.Node
			continue
		}
		if it.IsNode() && it.Node.Type == "else" {
			elseNode = it.Node
			continue
		}
		condItems = append(condItems, it)
	}

	if err := fb.lowerItems(condItems); err != nil {
		return err
	}
	fb.emit(wasm.OpIf, wasm.BlockImm{Result: blockType})
	fb.pushLabel(label)
	if thenNode != nil {
		if err := fb.lowerItems(thenNode.Items); err != nil {
			return err
		}
	}
	if elseNode != nil {
		fb.emit(wasm.OpElse, nil)
		if err := fb.lowerItems(elseNode.Items); err != nil {
			return err
		}
	}
	fb.popLabel()
	fb.emit(wasm.OpEnd, nil)
	return nil
}

func (fb *funcBody) lowerBrTable(n *sexpr.Node) error {
	for _, it := range n.Items {
		if it.IsNode() {
			if err := fb.lowerItem(it); err != nil {
				return err
			}
		}
	}

	var depths []uint32
	for _, tok := range atomsOf(n) {
		d, err := fb.resolveLabel(tok.Value, tok.Line)
		if err != nil {
			return err
		}
		depths = append(depths, d)
	}
	if len(depths) == 0 {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("br_table without labels").Build()
	}
	fb.emit(wasm.OpBrTable, wasm.BrTableImm{
		Labels:  depths[:len(depths)-1],
		Default: depths[len(depths)-1],
	})
	return nil
}

func (fb *funcBody) lowerCallIndirect(n *sexpr.Node) error {
	var typeIdx uint32
	for _, it := range n.Items {
		if it.IsNode() && it.Node.Type == "type" {
			idx, err := fb.t.resolveIndex(it.Node, fb.t.typeNames, "type")
			if err != nil {
				return err
			}
			typeIdx = idx
			continue
		}
		if it.IsNode() {
			if err := fb.lowerItem(it); err != nil {
				return err
			}
		}
	}
	fb.emit(wasm.OpCallInd, wasm.CallIndirectImm{TypeIdx: typeIdx, TableIdx: 0})
	return nil
}

// lowerFlat lowers one flat-form instruction starting at items[i]:
// a bare keyword followed by its immediate atoms.
func (fb *funcBody) lowerFlat(items []sexpr.Item, i int) (int, error) {
	tok := items[i].Atom
	name := tok.Value

	switch name {
	case "block", "loop":
		op := wasm.OpBlock
		if name == "loop" {
			op = wasm.OpLoop
		}
		consumed := 1
		label := ""
		blockType := wasm.BlockTypeEmpty
		if i+consumed < len(items) && items[i+consumed].IsAtom() && strings.HasPrefix(items[i+consumed].Atom.Value, "$") {
			label = items[i+consumed].Atom.Value
			consumed++
		}
		if i+consumed < len(items) && items[i+consumed].IsNode() && items[i+consumed].Node.Type == "result" {
			types, err := paramTypes(items[i+consumed].Node)
			if err != nil {
				return 0, err
			}
			if len(types) == 1 {
				blockType = byte(types[0])
			}
			consumed++
		}
		fb.emit(op, wasm.BlockImm{Result: blockType})
		fb.pushLabel(label)
		return consumed, nil

	case "if":
		consumed := 1
		label := ""
		blockType := wasm.BlockTypeEmpty
		if i+consumed < len(items) && items[i+consumed].IsAtom() && strings.HasPrefix(items[i+consumed].Atom.Value, "$") {
			label = items[i+consumed].Atom.Value
			consumed++
		}
		if i+consumed < len(items) && items[i+consumed].IsNode() && items[i+consumed].Node.Type == "result" {
			types, err := paramTypes(items[i+consumed].Node)
			if err != nil {
				return 0, err
			}
			if len(types) == 1 {
				blockType = byte(types[0])
			}
			consumed++
		}
		fb.emit(wasm.OpIf, wasm.BlockImm{Result: blockType})
		fb.pushLabel(label)
		return consumed, nil

	case "else":
		fb.emit(wasm.OpElse, nil)
		return 1, nil

	case "end":
		fb.popLabel()
		fb.emit(wasm.OpEnd, nil)
		return 1, nil

	case "call_indirect":
		var typeIdx uint32
		consumed := 1
		if i+1 < len(items) && items[i+1].IsNode() && items[i+1].Node.Type == "type" {
			idx, err := fb.t.resolveIndex(items[i+1].Node, fb.t.typeNames, "type")
			if err != nil {
				return 0, err
			}
			typeIdx = idx
			consumed = 2
		}
		fb.emit(wasm.OpCallInd, wasm.CallIndirectImm{TypeIdx: typeIdx, TableIdx: 0})
		return consumed, nil

	case "br_table":
		var depths []uint32
		consumed := 1
		for i+consumed < len(items) && items[i+consumed].IsAtom() && isLabelAtom(items[i+consumed].Atom) {
			tok := items[i+consumed].Atom
			d, err := fb.resolveLabel(tok.Value, tok.Line)
			if err != nil {
				return 0, err
			}
			depths = append(depths, d)
			consumed++
		}
		if len(depths) == 0 {
			return 0, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				At(tok.Line, tok.Col).Detail("br_table without labels").Build()
		}
		fb.emit(wasm.OpBrTable, wasm.BrTableImm{
			Labels:  depths[:len(depths)-1],
			Default: depths[len(depths)-1],
		})
		return consumed, nil
	}

	// Immediate atoms that belong to this instruction.
	var atoms []*token.Token
	consumed := 1
	for i+consumed < len(items) && items[i+consumed].IsAtom() && isImmediateAtom(name, items[i+consumed].Atom) {
		atoms = append(atoms, items[i+consumed].Atom)
		consumed++
	}
	if err := fb.emitOp(name, atoms, tok.Line, tok.Col); err != nil {
		return 0, err
	}
	return consumed, nil
}

// isImmediateAtom reports whether an atom is an immediate of the named
// flat-form instruction rather than the next instruction.
func isImmediateAtom(name string, tok *token.Token) bool {
	switch {
	case tok.Type == token.Number:
		return needsImmediate(name)
	case strings.HasPrefix(tok.Value, "$"):
		return needsImmediate(name)
	case strings.HasPrefix(tok.Value, "offset=") || strings.HasPrefix(tok.Value, "align="):
		return true
	}
	return false
}

func needsImmediate(name string) bool {
	switch name {
	case "call", "br", "br_if",
		"local.get", "local.set", "local.tee",
		"global.get", "global.set",
		"i32.const", "i64.const", "f32.const", "f64.const":
		return true
	}
	return false
}

func isLabelAtom(tok *token.Token) bool {
	return tok.Type == token.Number || strings.HasPrefix(tok.Value, "$")
}

// atomsOf collects the atom children of a folded form, skipping a
// leading $name on forms that carry one.
func atomsOf(n *sexpr.Node) []*token.Token {
	var atoms []*token.Token
	for _, it := range n.Items {
		if it.IsAtom() {
			atoms = append(atoms, it.Atom)
		}
	}
	return atoms
}

// blockTypeOf reads an optional leading $name and (result t) annotation,
// returning the encoded block type and the index of the first body item.
func blockTypeOf(n *sexpr.Node) (byte, int) {
	start := 0
	if len(n.Items) > 0 && n.Items[0].IsAtom() && strings.HasPrefix(n.Items[0].Atom.Value, "$") {
		start = 1
	}
	if start < len(n.Items) && n.Items[start].IsNode() && n.Items[start].Node.Type == "result" {
		types, err := paramTypes(n.Items[start].Node)
		if err == nil && len(types) == 1 {
			return byte(types[0]), start + 1
		}
		return wasm.BlockTypeEmpty, start + 1
	}
	return wasm.BlockTypeEmpty, start
}

// parseMemarg reads offset= and align= immediates. The align immediate
// is encoded as the log2 of the byte alignment.
func parseMemarg(atoms []*token.Token, naturalAlign uint32) (wasm.MemImm, error) {
	imm := wasm.MemImm{Align: naturalAlign}
	for _, tok := range atoms {
		switch {
		case strings.HasPrefix(tok.Value, "offset="):
			v, err := parseU32(strings.TrimPrefix(tok.Value, "offset="), tok.Line)
			if err != nil {
				return imm, err
			}
			imm.Offset = v
		case strings.HasPrefix(tok.Value, "align="):
			v, err := parseU32(strings.TrimPrefix(tok.Value, "align="), tok.Line)
			if err != nil {
				return imm, err
			}
			if v == 0 || v&(v-1) != 0 {
				return imm, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					At(tok.Line, tok.Col).Detail("alignment %d is not a power of two", v).Build()
			}
			imm.Align = uint32(bits.TrailingZeros32(v))
		}
	}
	return imm, nil
}
