// Package codegen lowers a TypeScript-subset syntax tree to a
// structured module definition.
//
// Functions compile in two passes: every declared local, including ones
// nested inside if/while/for bodies and for-loop initializers, is
// collected into one flat slot table first, then the body is emitted.
// The binary format requires all locals declared ahead of the
// instruction stream, so late declarations cannot be appended during
// emission.
package codegen

import (
	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/tscript/internal/ast"
	"github.com/forgelab/wasmforge/wasm"
)

type globalSlot struct {
	index uint32
	typ   wasm.ValType
}

type Generator struct {
	def     *wasm.ModuleDefinition
	funcIdx map[string]uint32
	funcSig map[string]wasm.FuncType
	globals map[string]globalSlot
}

// Generate lowers a whole program. Class methods flatten to functions
// named ClassName_method and class properties become globals before any
// function body is compiled, so bodies can reference them freely.
func Generate(prog *ast.Program) (*wasm.ModuleDefinition, error) {
	g := &Generator{
		def:     &wasm.ModuleDefinition{},
		funcIdx: make(map[string]uint32),
		funcSig: make(map[string]wasm.FuncType),
		globals: make(map[string]globalSlot),
	}

	funcs, err := g.flatten(prog)
	if err != nil {
		return nil, err
	}

	// Index every function before compiling any body, so calls resolve
	// regardless of declaration order.
	for i, fn := range funcs {
		g.funcIdx[fn.Name] = uint32(i)
		g.funcSig[fn.Name] = g.signature(fn)
	}

	for _, fn := range funcs {
		if err := g.lowerFunc(fn); err != nil {
			return nil, err
		}
	}
	return g.def, nil
}

// flatten walks top-level statements, registering globals and
// collecting the function list in declaration order.
func (g *Generator) flatten(prog *ast.Program) ([]*ast.FuncDecl, error) {
	var funcs []*ast.FuncDecl
	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			funcs = append(funcs, s)
		case *ast.ClassDecl:
			for i := range s.Props {
				prop := &s.Props[i]
				name := s.Name + "_" + prop.Name
				if err := g.addGlobal(name, prop.Type, prop.Init, true, prop.Line); err != nil {
					return nil, err
				}
				// Property access inside methods uses the bare name.
				g.globals[prop.Name] = g.globals[name]
			}
			for _, m := range s.Methods {
				flat := *m
				flat.Name = s.Name + "_" + m.Name
				funcs = append(funcs, &flat)
			}
		case *ast.VarDecl:
			mutable := s.Kind != ast.KindConst
			if err := g.addGlobal(s.Name, s.Type, s.Init, mutable, s.Line); err != nil {
				return nil, err
			}
		default:
			line, col := stmt.Pos()
			return nil, errors.New(errors.PhaseCodegen, errors.KindUnsupported).
				At(line, col).
				Detail("only declarations are allowed at top level").Build()
		}
	}
	return funcs, nil
}

// addGlobal registers a module global with a constant initializer.
func (g *Generator) addGlobal(name, annotation string, init ast.Expr, mutable bool, line int) error {
	typ := mapType(annotation)
	if annotation == "" && init != nil {
		typ = inferLiteralType(init)
	}
	instr, err := constInit(init, typ, line)
	if err != nil {
		return err
	}
	idx := uint32(len(g.def.Globals))
	g.def.Globals = append(g.def.Globals, wasm.Global{
		Name:    name,
		Type:    typ,
		Mutable: mutable,
		Init:    instr,
	})
	g.globals[name] = globalSlot{index: idx, typ: typ}
	return nil
}

// constInit evaluates a literal (or negated literal) initializer into a
// single const instruction. A missing initializer zero-fills.
func constInit(init ast.Expr, typ wasm.ValType, line int) (wasm.Instruction, error) {
	value := 0.0
	switch e := init.(type) {
	case nil:
	case *ast.NumberLit:
		value = e.Value
	case *ast.BoolLit:
		if e.Value {
			value = 1
		}
	case *ast.UnaryExpr:
		lit, ok := e.X.(*ast.NumberLit)
		if !ok || e.Op != "-" {
			l, c := e.Pos()
			return wasm.Instruction{}, errors.New(errors.PhaseCodegen, errors.KindUnsupported).
				At(l, c).Detail("global initializer must be a literal").Build()
		}
		value = -lit.Value
	default:
		l, c := init.Pos()
		return wasm.Instruction{}, errors.New(errors.PhaseCodegen, errors.KindUnsupported).
			At(l, c).Detail("global initializer must be a literal").Build()
	}

	switch typ {
	case wasm.ValI64:
		return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: int64(value)}}, nil
	case wasm.ValF32:
		return wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: float32(value)}}, nil
	case wasm.ValF64:
		return wasm.Instruction{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: value}}, nil
	}
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(value)}}, nil
}

func (g *Generator) signature(fn *ast.FuncDecl) wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range fn.Params {
		ft.Params = append(ft.Params, mapType(p.Type))
	}
	if fn.Result != "" && fn.Result != "void" {
		ft.Results = []wasm.ValType{mapType(fn.Result)}
	}
	return ft
}

// mapType maps a source type annotation to a value type. number is f64,
// boolean is i32, the four value types pass through, and anything else
// defaults to i32.
func mapType(name string) wasm.ValType {
	switch name {
	case "number", "f64":
		return wasm.ValF64
	case "f32":
		return wasm.ValF32
	case "i64":
		return wasm.ValI64
	}
	return wasm.ValI32
}

// inferLiteralType types an unannotated initializer: fractional numbers
// are f64, everything else is i32.
func inferLiteralType(e ast.Expr) wasm.ValType {
	switch lit := e.(type) {
	case *ast.NumberLit:
		if !lit.IsInt {
			return wasm.ValF64
		}
	case *ast.UnaryExpr:
		return inferLiteralType(lit.X)
	}
	return wasm.ValI32
}

type localSlot struct {
	index uint32
	typ   wasm.ValType
}

// funcGen holds the per-function compile state: the flat local slot
// table and the emitted body.
type funcGen struct {
	g         *Generator
	fn        *ast.FuncDecl
	sig       wasm.FuncType
	slots     map[string]localSlot
	locals    []wasm.ValType // declared locals, params excluded
	body      []wasm.Instruction
	numParams uint32
}

func (g *Generator) lowerFunc(fn *ast.FuncDecl) error {
	fg := &funcGen{
		g:     g,
		fn:    fn,
		sig:   g.funcSig[fn.Name],
		slots: make(map[string]localSlot),
	}
	for i, p := range fn.Params {
		fg.slots[p.Name] = localSlot{index: uint32(i), typ: fg.sig.Params[i]}
	}
	fg.numParams = uint32(len(fn.Params))

	fg.collectLocals(fn.Body.Stmts)

	if err := fg.stmts(fn.Body.Stmts); err != nil {
		return err
	}

	// A result-bearing function only produces its value through return
	// statements. When the last top-level statement is control flow whose
	// arms all return, nothing flows out of the final end, so the frame
	// needs a terminator to type-check.
	if len(fg.sig.Results) > 0 && !endsInReturn(fn.Body.Stmts) {
		fg.emit(wasm.OpUnreachable, nil)
	}

	g.def.Functions = append(g.def.Functions, wasm.Function{
		Name:       fn.Name,
		ExportName: fn.Name,
		Signature:  fg.sig,
		Locals:     fg.locals,
		Body:       fg.body,
	})
	return nil
}

// endsInReturn reports whether the statement list ends in a return,
// directly or through a trailing block.
func endsInReturn(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BlockStmt:
		return endsInReturn(s.Stmts)
	}
	return false
}

// collectLocals assigns a slot to every declaration in the body,
// recursing into nested control flow. A redeclared name reuses its
// first slot.
func (fg *funcGen) collectLocals(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarDecl:
			fg.declareLocal(s)
		case *ast.BlockStmt:
			fg.collectLocals(s.Stmts)
		case *ast.IfStmt:
			fg.collectLocals(s.Then.Stmts)
			if s.Else != nil {
				fg.collectLocals([]ast.Stmt{s.Else})
			}
		case *ast.WhileStmt:
			fg.collectLocals(s.Body.Stmts)
		case *ast.ForStmt:
			if s.Init != nil {
				fg.collectLocals([]ast.Stmt{s.Init})
			}
			fg.collectLocals(s.Body.Stmts)
		}
	}
}

func (fg *funcGen) declareLocal(s *ast.VarDecl) {
	if _, exists := fg.slots[s.Name]; exists {
		return
	}
	typ := mapType(s.Type)
	if s.Type == "" && s.Init != nil {
		typ = fg.inferType(s.Init)
	}
	idx := fg.numParams + uint32(len(fg.locals))
	fg.locals = append(fg.locals, typ)
	fg.slots[s.Name] = localSlot{index: idx, typ: typ}
}

func (fg *funcGen) emit(op byte, imm interface{}) {
	fg.body = append(fg.body, wasm.Instruction{Opcode: op, Imm: imm})
}

func (fg *funcGen) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := fg.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fg *funcGen) stmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Init == nil {
			return nil
		}
		slot := fg.slots[s.Name]
		if err := fg.expr(s.Init, slot.typ); err != nil {
			return err
		}
		fg.emit(wasm.OpLocalSet, wasm.IndexImm{Index: slot.index})
		return nil

	case *ast.ExprStmt:
		hasValue, err := fg.exprForEffect(s.X)
		if err != nil {
			return err
		}
		if hasValue {
			fg.emit(wasm.OpDrop, nil)
		}
		return nil

	case *ast.ReturnStmt:
		if s.Value != nil {
			if len(fg.sig.Results) == 0 {
				l, c := s.Pos()
				return errors.New(errors.PhaseCodegen, errors.KindInvalidData).
					At(l, c).Detail("return with value in void function %q", fg.fn.Name).Build()
			}
			if err := fg.expr(s.Value, fg.sig.Results[0]); err != nil {
				return err
			}
		}
		fg.emit(wasm.OpReturn, nil)
		return nil

	case *ast.BlockStmt:
		return fg.stmts(s.Stmts)

	case *ast.IfStmt:
		return fg.ifStmt(s)

	case *ast.WhileStmt:
		return fg.loop(s.Cond, nil, s.Body)

	case *ast.ForStmt:
		if s.Init != nil {
			if err := fg.stmt(s.Init); err != nil {
				return err
			}
		}
		return fg.loop(s.Cond, s.Post, s.Body)
	}

	line, col := stmt.Pos()
	return errors.New(errors.PhaseCodegen, errors.KindUnsupported).
		At(line, col).Detail("statement not supported here").Build()
}

func (fg *funcGen) ifStmt(s *ast.IfStmt) error {
	if err := fg.expr(s.Cond, wasm.ValI32); err != nil {
		return err
	}
	fg.emit(wasm.OpIf, wasm.BlockImm{Result: wasm.BlockTypeEmpty})
	if err := fg.stmts(s.Then.Stmts); err != nil {
		return err
	}
	if s.Else != nil {
		fg.emit(wasm.OpElse, nil)
		if err := fg.stmt(s.Else); err != nil {
			return err
		}
	}
	fg.emit(wasm.OpEnd, nil)
	return nil
}

// loop lowers while and for bodies to the block/loop pair: the block is
// the break target, the loop header the continue target. The negated
// condition branches out of the block, the back edge re-enters the
// loop. A for loop passes its increment as post, emitted before the
// back edge.
func (fg *funcGen) loop(cond ast.Expr, post ast.Expr, body *ast.BlockStmt) error {
	fg.emit(wasm.OpBlock, wasm.BlockImm{Result: wasm.BlockTypeEmpty})
	fg.emit(wasm.OpLoop, wasm.BlockImm{Result: wasm.BlockTypeEmpty})

	if cond != nil {
		if err := fg.expr(cond, wasm.ValI32); err != nil {
			return err
		}
		fg.emit(wasm.OpI32Eqz, nil)
		fg.emit(wasm.OpBrIf, wasm.IndexImm{Index: 1})
	}

	if err := fg.stmts(body.Stmts); err != nil {
		return err
	}

	if post != nil {
		hasValue, err := fg.exprForEffect(post)
		if err != nil {
			return err
		}
		if hasValue {
			fg.emit(wasm.OpDrop, nil)
		}
	}

	fg.emit(wasm.OpBr, wasm.IndexImm{Index: 0})
	fg.emit(wasm.OpEnd, nil)
	fg.emit(wasm.OpEnd, nil)
	return nil
}
