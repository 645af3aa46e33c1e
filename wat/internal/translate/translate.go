// Package translate lowers a parsed WAT S-expression tree into a
// structured module definition.
//
// Translation runs two passes over the module form: a pre-scan that
// assigns function, global, table, and memory indices in declaration
// order (imports first) so forward references resolve, then a full pass
// that lowers each form.
package translate

import (
	"fmt"
	"strings"

	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat/internal/sexpr"
)

type translator struct {
	def *wasm.ModuleDefinition

	typeKeys    map[string]uint32 // structural key -> index, mirrors builder dedup
	typeNames   map[string]uint32
	funcNames   map[string]uint32
	globalNames map[string]uint32
	tableNames  map[string]uint32
	memNames    map[string]uint32

	numImpFuncs   uint32
	numImpGlobals uint32
}

// Module translates a parsed WAT tree. The root form must be a module.
func Module(root *sexpr.Node) (*wasm.ModuleDefinition, error) {
	if root.Type != "module" {
		return nil, errors.UnexpectedToken(errors.PhaseTranslate, fmt.Sprintf("%q form", root.Type), "'module'", root.Line, root.Col)
	}

	t := &translator{
		def:         &wasm.ModuleDefinition{},
		typeKeys:    make(map[string]uint32),
		typeNames:   make(map[string]uint32),
		funcNames:   make(map[string]uint32),
		globalNames: make(map[string]uint32),
		tableNames:  make(map[string]uint32),
		memNames:    make(map[string]uint32),
	}

	if err := t.prescan(root); err != nil {
		return nil, err
	}
	if err := t.lower(root); err != nil {
		return nil, err
	}
	return t.def, nil
}

// addType mirrors the builder's idempotent structural type registration,
// so type indices predicted here match the encoded type table.
func (t *translator) addType(ft wasm.FuncType) uint32 {
	key := ft.Key()
	if idx, ok := t.typeKeys[key]; ok {
		return idx
	}
	idx := uint32(len(t.def.Types))
	t.def.Types = append(t.def.Types, ft)
	t.typeKeys[key] = idx
	return idx
}

// prescan assigns indices in declaration order, counting imports first,
// so that later forms can reference entities declared after them.
func (t *translator) prescan(root *sexpr.Node) error {
	var funcIdx, globalIdx, tableIdx, memIdx uint32

	// Imports occupy the front of each index space.
	for _, it := range root.Items {
		if !it.IsNode() || it.Node.Type != "import" {
			continue
		}
		desc := lastNode(it.Node)
		if desc == nil {
			return errors.New(errors.PhaseTranslate, errors.KindUnexpectedToken).
				At(it.Node.Line, it.Node.Col).
				Detail("import without descriptor").Build()
		}
		name := firstIdent(desc)
		switch desc.Type {
		case "func":
			if name != "" {
				t.funcNames[name] = funcIdx
			}
			funcIdx++
		case "global":
			if name != "" {
				t.globalNames[name] = globalIdx
			}
			globalIdx++
		case "table":
			if name != "" {
				t.tableNames[name] = tableIdx
			}
			tableIdx++
		case "memory":
			if name != "" {
				t.memNames[name] = memIdx
			}
			memIdx++
		}
	}
	t.numImpFuncs = funcIdx
	t.numImpGlobals = globalIdx

	// Local declarations continue each space.
	for _, it := range root.Items {
		if !it.IsNode() {
			continue
		}
		n := it.Node
		name := firstIdent(n)
		switch n.Type {
		case "func":
			if name != "" {
				t.funcNames[name] = funcIdx
			}
			funcIdx++
		case "global":
			if name != "" {
				t.globalNames[name] = globalIdx
			}
			globalIdx++
		case "table":
			if name != "" {
				t.tableNames[name] = tableIdx
			}
			tableIdx++
		case "memory":
			if name != "" {
				t.memNames[name] = memIdx
			}
			memIdx++
		case "type":
			if err := t.prescanType(n, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *translator) prescanType(n *sexpr.Node, name string) error {
	fn := lastNode(n)
	if fn == nil || fn.Type != "func" {
		return errors.New(errors.PhaseTranslate, errors.KindUnexpectedToken).
			At(n.Line, n.Col).
			Detail("type form must contain a func signature").Build()
	}
	sig, err := t.parseSignature(fn.Items)
	if err != nil {
		return err
	}
	idx := t.addType(sig)
	if name != "" {
		t.typeNames[name] = idx
	}
	return nil
}

// lower walks the module items in order, lowering each top-level form.
func (t *translator) lower(root *sexpr.Node) error {
	for _, it := range root.Items {
		if !it.IsNode() {
			tok := it.Atom
			return errors.UnexpectedToken(errors.PhaseTranslate, tok.Value, "a form", tok.Line, tok.Col)
		}
		n := it.Node
		var err error
		switch n.Type {
		case "type":
			// handled in prescan
		case "import":
			err = t.lowerImport(n)
		case "func":
			err = t.lowerFunc(n)
		case "global":
			err = t.lowerGlobal(n)
		case "memory":
			err = t.lowerMemory(n)
		case "table":
			err = t.lowerTable(n)
		case "export":
			err = t.lowerExport(n)
		case "elem":
			err = t.lowerElem(n)
		case "data":
			err = t.lowerData(n)
		case "start":
			err = t.lowerStart(n)
		default:
			err = errors.Unsupported(errors.PhaseTranslate, fmt.Sprintf("form %q", n.Type))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *translator) lowerImport(n *sexpr.Node) error {
	var names []string
	for _, it := range n.Items {
		if isStringAtom(it) {
			names = append(names, unescape(it.Atom.Value))
		}
	}
	if len(names) != 2 {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).
			Detail("import needs module and field names").Build()
	}
	desc := lastNode(n)

	imp := wasm.Import{Module: names[0], Name: names[1]}
	switch desc.Type {
	case "func":
		sig, err := t.parseSignature(desc.Items)
		if err != nil {
			return err
		}
		imp.Kind = wasm.KindFunc
		imp.Func = &sig
	case "global":
		gt, err := t.parseGlobalType(desc)
		if err != nil {
			return err
		}
		imp.Kind = wasm.KindGlobal
		imp.Global = gt
	case "memory":
		lim, err := t.parseLimits(desc)
		if err != nil {
			return err
		}
		imp.Kind = wasm.KindMemory
		imp.Memory = lim
	case "table":
		lim, err := t.parseLimits(desc)
		if err != nil {
			return err
		}
		imp.Kind = wasm.KindTable
		imp.Table = &wasm.TableType{Limits: *lim}
	default:
		return errors.Unsupported(errors.PhaseTranslate, fmt.Sprintf("import kind %q", desc.Type))
	}

	t.def.Imports = append(t.def.Imports, imp)
	return nil
}

func (t *translator) lowerGlobal(n *sexpr.Node) error {
	g := wasm.Global{Name: firstIdent(n)}

	var typeDone bool
	var initItems []sexpr.Item
	for _, it := range n.Items {
		switch {
		case it.IsAtom() && strings.HasPrefix(it.Atom.Value, "$"):
			// name, already captured
		case it.IsAtom():
			vt, err := valType(it.Atom.Value)
			if err != nil {
				return errors.UnresolvedName(errors.PhaseTranslate, "value type", it.Atom.Value, it.Atom.Line)
			}
			g.Type = vt
			typeDone = true
		case it.Node.Type == "mut":
			vt, err := nodeValType(it.Node)
			if err != nil {
				return err
			}
			g.Type = vt
			g.Mutable = true
			typeDone = true
		case it.Node.Type == "export":
			g.ExportName = exportNameOf(it.Node)
		default:
			initItems = append(initItems, it)
		}
	}
	if !typeDone {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("global without type").Build()
	}
	if len(initItems) != 1 || !initItems[0].IsNode() {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("global needs one constant init form").Build()
	}

	fb := newFuncBody(t, nil)
	if err := fb.lowerItem(initItems[0]); err != nil {
		return err
	}
	if len(fb.body) != 1 {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("global init must be a single constant instruction").Build()
	}
	g.Init = fb.body[0]

	t.def.Globals = append(t.def.Globals, g)
	return nil
}

func (t *translator) lowerMemory(n *sexpr.Node) error {
	if t.def.Memory != nil {
		return errors.Unsupported(errors.PhaseTranslate, "multiple memories")
	}
	var exportName string
	for _, it := range n.Items {
		if it.IsNode() && it.Node.Type == "export" {
			exportName = exportNameOf(it.Node)
		}
	}
	lim, err := t.parseLimits(n)
	if err != nil {
		return err
	}
	t.def.Memory = &wasm.MemoryDef{Limits: *lim}
	if exportName != "" {
		t.def.Exports = append(t.def.Exports, wasm.Export{Name: exportName, Kind: wasm.KindMemory, Index: 0})
	}
	return nil
}

func (t *translator) lowerTable(n *sexpr.Node) error {
	lim, err := t.parseLimits(n)
	if err != nil {
		return err
	}
	t.def.Tables = append(t.def.Tables, wasm.TableType{Limits: *lim})
	return nil
}

func (t *translator) lowerExport(n *sexpr.Node) error {
	name := ""
	for _, it := range n.Items {
		if isStringAtom(it) {
			name = unescape(it.Atom.Value)
		}
	}
	desc := lastNode(n)
	if name == "" || desc == nil {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("export needs a name and a descriptor").Build()
	}

	var kind byte
	var idx uint32
	var err error
	switch desc.Type {
	case "func":
		kind = wasm.KindFunc
		idx, err = t.resolveIndex(desc, t.funcNames, "function")
	case "global":
		kind = wasm.KindGlobal
		idx, err = t.resolveIndex(desc, t.globalNames, "global")
	case "memory":
		kind = wasm.KindMemory
		idx, err = t.resolveIndex(desc, t.memNames, "memory")
	case "table":
		kind = wasm.KindTable
		idx, err = t.resolveIndex(desc, t.tableNames, "table")
	default:
		return errors.Unsupported(errors.PhaseTranslate, fmt.Sprintf("export kind %q", desc.Type))
	}
	if err != nil {
		return err
	}

	t.def.Exports = append(t.def.Exports, wasm.Export{Name: name, Kind: kind, Index: idx})
	return nil
}

func (t *translator) lowerElem(n *sexpr.Node) error {
	seg := wasm.ElementSegment{}
	offsetDone := false
	for _, it := range n.Items {
		switch {
		case it.IsNode() && it.Node.Type == "i32.const" && !offsetDone:
			v, err := parseI32(firstAtomValue(it.Node), it.Node.Line)
			if err != nil {
				return err
			}
			seg.Offset = v
			offsetDone = true
		case it.IsAtom() && it.Atom.Value == "func":
			// element list marker
		case it.IsAtom():
			idx, err := t.lookupOrParse(it.Atom.Value, t.funcNames, "function", it.Atom.Line)
			if err != nil {
				return err
			}
			seg.FuncIndices = append(seg.FuncIndices, idx)
		}
	}
	if !offsetDone {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("elem needs an i32.const offset").Build()
	}
	t.def.Elements = append(t.def.Elements, seg)
	return nil
}

func (t *translator) lowerData(n *sexpr.Node) error {
	seg := wasm.DataSegment{}
	offsetDone := false
	for _, it := range n.Items {
		switch {
		case it.IsNode() && it.Node.Type == "i32.const":
			v, err := parseI32(firstAtomValue(it.Node), it.Node.Line)
			if err != nil {
				return err
			}
			seg.Offset = v
			offsetDone = true
		case isStringAtom(it):
			seg.Bytes = append(seg.Bytes, []byte(unescape(it.Atom.Value))...)
		}
	}
	if !offsetDone {
		return errors.Unsupported(errors.PhaseTranslate, "passive data segments")
	}
	t.def.Data = append(t.def.Data, seg)
	return nil
}

func (t *translator) lowerStart(n *sexpr.Node) error {
	if len(n.Items) != 1 || !n.Items[0].IsAtom() {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			At(n.Line, n.Col).Detail("start needs one function reference").Build()
	}
	idx, err := t.lookupOrParse(n.Items[0].Atom.Value, t.funcNames, "function", n.Items[0].Atom.Line)
	if err != nil {
		return err
	}
	t.def.Start = &idx
	return nil
}

// resolveIndex reads the single index child of a descriptor form.
func (t *translator) resolveIndex(n *sexpr.Node, names map[string]uint32, space string) (uint32, error) {
	for _, it := range n.Items {
		if it.IsAtom() {
			return t.lookupOrParse(it.Atom.Value, names, space, it.Atom.Line)
		}
	}
	return 0, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
		At(n.Line, n.Col).Detail("%s descriptor without index", space).Build()
}

// lookupOrParse resolves a $name against a name map or parses a numeric
// index. An unknown name is a diagnostic, never a silent index 0.
func (t *translator) lookupOrParse(v string, names map[string]uint32, space string, line int) (uint32, error) {
	if strings.HasPrefix(v, "$") {
		if idx, ok := names[v]; ok {
			return idx, nil
		}
		return 0, errors.UnresolvedName(errors.PhaseTranslate, space, v, line)
	}
	return parseU32(v, line)
}
