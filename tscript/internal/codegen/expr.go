package codegen

import (
	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/tscript/internal/ast"
	"github.com/forgelab/wasmforge/wasm"
)

// binOps maps a source operator and operand type to its opcode.
// Divisions and ordered comparisons use the signed integer variants;
// the subset has no unsigned type.
var binOps = map[wasm.ValType]map[string]byte{
	wasm.ValI32: {
		"+": wasm.OpI32Add, "-": wasm.OpI32Sub, "*": wasm.OpI32Mul,
		"/": wasm.OpI32DivS, "%": wasm.OpI32RemS,
		"&": wasm.OpI32And, "|": wasm.OpI32Or, "^": wasm.OpI32Xor,
		"<<": wasm.OpI32Shl, ">>": wasm.OpI32ShrS, ">>>": wasm.OpI32ShrU,
		"==": wasm.OpI32Eq, "!=": wasm.OpI32Ne,
		"<": wasm.OpI32LtS, ">": wasm.OpI32GtS,
		"<=": wasm.OpI32LeS, ">=": wasm.OpI32GeS,
	},
	wasm.ValI64: {
		"+": wasm.OpI64Add, "-": wasm.OpI64Sub, "*": wasm.OpI64Mul,
		"/": wasm.OpI64DivS, "%": wasm.OpI64RemS,
		"&": wasm.OpI64And, "|": wasm.OpI64Or, "^": wasm.OpI64Xor,
		"<<": wasm.OpI64Shl, ">>": wasm.OpI64ShrS, ">>>": wasm.OpI64ShrU,
		"==": wasm.OpI64Eq, "!=": wasm.OpI64Ne,
		"<": wasm.OpI64LtS, ">": wasm.OpI64GtS,
		"<=": wasm.OpI64LeS, ">=": wasm.OpI64GeS,
	},
	wasm.ValF32: {
		"+": wasm.OpF32Add, "-": wasm.OpF32Sub, "*": wasm.OpF32Mul, "/": wasm.OpF32Div,
		"==": wasm.OpF32Eq, "!=": wasm.OpF32Ne,
		"<": wasm.OpF32Lt, ">": wasm.OpF32Gt,
		"<=": wasm.OpF32Le, ">=": wasm.OpF32Ge,
	},
	wasm.ValF64: {
		"+": wasm.OpF64Add, "-": wasm.OpF64Sub, "*": wasm.OpF64Mul, "/": wasm.OpF64Div,
		"==": wasm.OpF64Eq, "!=": wasm.OpF64Ne,
		"<": wasm.OpF64Lt, ">": wasm.OpF64Gt,
		"<=": wasm.OpF64Le, ">=": wasm.OpF64Ge,
	},
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// expr emits code leaving one value of the wanted type on the stack.
func (fg *funcGen) expr(e ast.Expr, want wasm.ValType) error {
	got, err := fg.emitExpr(e, want)
	if err != nil {
		return err
	}
	if got == want {
		return nil
	}
	line, col := e.Pos()
	return errors.New(errors.PhaseCodegen, errors.KindInvalidData).
		At(line, col).
		Detail("expression has type %s, want %s", got, want).Build()
}

// exprForEffect emits an expression evaluated for its side effects,
// reporting whether a value was left on the stack.
func (fg *funcGen) exprForEffect(e ast.Expr) (bool, error) {
	want := fg.inferType(e)
	if call, ok := e.(*ast.CallExpr); ok {
		sig, known := fg.g.funcSig[call.Callee]
		if known && len(sig.Results) == 0 {
			_, err := fg.callFunc(call)
			return false, err
		}
	}
	if _, err := fg.emitExpr(e, want); err != nil {
		return false, err
	}
	return true, nil
}

// emitExpr lowers one expression. The hint steers the type of numeric
// literals; the return value is the type actually produced.
func (fg *funcGen) emitExpr(e ast.Expr, hint wasm.ValType) (wasm.ValType, error) {
	switch x := e.(type) {
	case *ast.NumberLit:
		return fg.emitNumber(x, hint), nil

	case *ast.BoolLit:
		v := int32(0)
		if x.Value {
			v = 1
		}
		fg.emit(wasm.OpI32Const, wasm.I32Imm{Value: v})
		return wasm.ValI32, nil

	case *ast.StringLit:
		return 0, errors.New(errors.PhaseCodegen, errors.KindUnsupported).
			At(x.Line, x.Col).
			Detail("string values have no numeric lowering").Build()

	case *ast.Ident:
		return fg.emitIdent(x)

	case *ast.UnaryExpr:
		return fg.emitUnary(x, hint)

	case *ast.BinaryExpr:
		return fg.emitBinary(x, hint)

	case *ast.AssignExpr:
		return fg.emitAssign(x)

	case *ast.CondExpr:
		return fg.emitCond(x, hint)

	case *ast.CallExpr:
		return fg.emitCall(x)
	}
	line, col := e.Pos()
	return 0, errors.New(errors.PhaseCodegen, errors.KindUnsupported).
		At(line, col).Detail("expression not supported").Build()
}

func (fg *funcGen) emitNumber(x *ast.NumberLit, hint wasm.ValType) wasm.ValType {
	// An integer-form literal follows the hint; a fractional literal is
	// always floating point.
	typ := hint
	if !x.IsInt && typ != wasm.ValF32 {
		typ = wasm.ValF64
	}
	switch typ {
	case wasm.ValI64:
		fg.emit(wasm.OpI64Const, wasm.I64Imm{Value: int64(x.Value)})
	case wasm.ValF32:
		fg.emit(wasm.OpF32Const, wasm.F32Imm{Value: float32(x.Value)})
	case wasm.ValF64:
		fg.emit(wasm.OpF64Const, wasm.F64Imm{Value: x.Value})
	default:
		typ = wasm.ValI32
		fg.emit(wasm.OpI32Const, wasm.I32Imm{Value: int32(x.Value)})
	}
	return typ
}

func (fg *funcGen) emitIdent(x *ast.Ident) (wasm.ValType, error) {
	if slot, ok := fg.slots[x.Name]; ok {
		fg.emit(wasm.OpLocalGet, wasm.IndexImm{Index: slot.index})
		return slot.typ, nil
	}
	if slot, ok := fg.g.globals[x.Name]; ok {
		fg.emit(wasm.OpGlobalGet, wasm.IndexImm{Index: slot.index})
		return slot.typ, nil
	}
	return 0, errors.UnresolvedName(errors.PhaseCodegen, "variable", x.Name, x.Line)
}

func (fg *funcGen) emitUnary(x *ast.UnaryExpr, hint wasm.ValType) (wasm.ValType, error) {
	if x.Op == "!" {
		if err := fg.expr(x.X, wasm.ValI32); err != nil {
			return 0, err
		}
		fg.emit(wasm.OpI32Eqz, nil)
		return wasm.ValI32, nil
	}

	// Negation: floats have a dedicated opcode, integers subtract from
	// zero, which needs the zero emitted before the operand.
	typ := fg.inferType(x.X)
	if typ == wasm.ValI32 && (hint == wasm.ValF64 || hint == wasm.ValF32 || hint == wasm.ValI64) {
		typ = hint
	}
	switch typ {
	case wasm.ValF64:
		if err := fg.expr(x.X, typ); err != nil {
			return 0, err
		}
		fg.emit(wasm.OpF64Neg, nil)
	case wasm.ValF32:
		if err := fg.expr(x.X, typ); err != nil {
			return 0, err
		}
		fg.emit(wasm.OpF32Neg, nil)
	case wasm.ValI64:
		fg.emit(wasm.OpI64Const, wasm.I64Imm{Value: 0})
		if err := fg.expr(x.X, typ); err != nil {
			return 0, err
		}
		fg.emit(wasm.OpI64Sub, nil)
	default:
		fg.emit(wasm.OpI32Const, wasm.I32Imm{Value: 0})
		if err := fg.expr(x.X, wasm.ValI32); err != nil {
			return 0, err
		}
		fg.emit(wasm.OpI32Sub, nil)
	}
	return typ, nil
}

func (fg *funcGen) emitBinary(x *ast.BinaryExpr, hint wasm.ValType) (wasm.ValType, error) {
	// Logical operators take i32 truth values on both sides. Without
	// short-circuit blocks both operands always evaluate; the subset
	// has no side-effect-bearing conditions that rely on skipping.
	if x.Op == "&&" || x.Op == "||" {
		if err := fg.expr(x.X, wasm.ValI32); err != nil {
			return 0, err
		}
		if err := fg.expr(x.Y, wasm.ValI32); err != nil {
			return 0, err
		}
		if x.Op == "&&" {
			fg.emit(wasm.OpI32And, nil)
		} else {
			fg.emit(wasm.OpI32Or, nil)
		}
		return wasm.ValI32, nil
	}

	operand := fg.operandType(x, hint)
	ops, ok := binOps[operand]
	if !ok {
		ops = binOps[wasm.ValI32]
		operand = wasm.ValI32
	}
	op, ok := ops[x.Op]
	if !ok {
		return 0, errors.New(errors.PhaseCodegen, errors.KindUnknownOperator).
			At(x.Line, x.Col).
			Detail("operator %q is not defined for %s", x.Op, operand).Build()
	}

	if err := fg.expr(x.X, operand); err != nil {
		return 0, err
	}
	if err := fg.expr(x.Y, operand); err != nil {
		return 0, err
	}
	fg.emit(op, nil)

	if isComparison(x.Op) {
		return wasm.ValI32, nil
	}
	return operand, nil
}

// operandType picks the common operand type for a binary expression:
// the first non-literal side wins, literal-only expressions follow the
// hint for arithmetic and default to i32.
func (fg *funcGen) operandType(x *ast.BinaryExpr, hint wasm.ValType) wasm.ValType {
	lt := fg.inferType(x.X)
	rt := fg.inferType(x.Y)
	if isFloat(lt) || isFloat(rt) {
		if lt == wasm.ValF32 || rt == wasm.ValF32 {
			return wasm.ValF32
		}
		return wasm.ValF64
	}
	if lt == wasm.ValI64 || rt == wasm.ValI64 {
		return wasm.ValI64
	}
	if literalOnly(x.X) && literalOnly(x.Y) && !isComparison(x.Op) &&
		(hint == wasm.ValF64 || hint == wasm.ValF32 || hint == wasm.ValI64) {
		return hint
	}
	return wasm.ValI32
}

func isFloat(t wasm.ValType) bool {
	return t == wasm.ValF32 || t == wasm.ValF64
}

func literalOnly(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.NumberLit:
		return true
	case *ast.UnaryExpr:
		return literalOnly(x.X)
	case *ast.BinaryExpr:
		return literalOnly(x.X) && literalOnly(x.Y)
	}
	return false
}

// emitAssign lowers assignment so the assigned value stays usable:
// locals end in local.tee, globals re-read after global.set.
func (fg *funcGen) emitAssign(x *ast.AssignExpr) (wasm.ValType, error) {
	if slot, ok := fg.slots[x.Target.Name]; ok {
		if x.Op != "=" {
			fg.emit(wasm.OpLocalGet, wasm.IndexImm{Index: slot.index})
		}
		if err := fg.expr(x.Value, slot.typ); err != nil {
			return 0, err
		}
		if x.Op != "=" {
			if err := fg.compoundOp(x, slot.typ); err != nil {
				return 0, err
			}
		}
		fg.emit(wasm.OpLocalTee, wasm.IndexImm{Index: slot.index})
		return slot.typ, nil
	}

	if slot, ok := fg.g.globals[x.Target.Name]; ok {
		if x.Op != "=" {
			fg.emit(wasm.OpGlobalGet, wasm.IndexImm{Index: slot.index})
		}
		if err := fg.expr(x.Value, slot.typ); err != nil {
			return 0, err
		}
		if x.Op != "=" {
			if err := fg.compoundOp(x, slot.typ); err != nil {
				return 0, err
			}
		}
		fg.emit(wasm.OpGlobalSet, wasm.IndexImm{Index: slot.index})
		fg.emit(wasm.OpGlobalGet, wasm.IndexImm{Index: slot.index})
		return slot.typ, nil
	}

	return 0, errors.UnresolvedName(errors.PhaseCodegen, "variable", x.Target.Name, x.Line)
}

func (fg *funcGen) compoundOp(x *ast.AssignExpr, typ wasm.ValType) error {
	base := x.Op[:1] // "+=" -> "+"
	op, ok := binOps[typ][base]
	if !ok {
		return errors.New(errors.PhaseCodegen, errors.KindUnknownOperator).
			At(x.Line, x.Col).
			Detail("operator %q is not defined for %s", x.Op, typ).Build()
	}
	fg.emit(op, nil)
	return nil
}

// emitCond lowers the ternary to a typed if/else whose arms both
// produce the result type.
func (fg *funcGen) emitCond(x *ast.CondExpr, hint wasm.ValType) (wasm.ValType, error) {
	typ := fg.inferType(x.Then)
	if typ == wasm.ValI32 && (hint == wasm.ValF64 || hint == wasm.ValF32 || hint == wasm.ValI64) {
		typ = hint
	}
	if err := fg.expr(x.Cond, wasm.ValI32); err != nil {
		return 0, err
	}
	fg.emit(wasm.OpIf, wasm.BlockImm{Result: byte(typ)})
	if err := fg.expr(x.Then, typ); err != nil {
		return 0, err
	}
	fg.emit(wasm.OpElse, nil)
	if err := fg.expr(x.Else, typ); err != nil {
		return 0, err
	}
	fg.emit(wasm.OpEnd, nil)
	return typ, nil
}

// emitCall lowers a call in value position. A callee with no result
// leaves nothing on the stack, so using it as a value is a diagnostic.
func (fg *funcGen) emitCall(x *ast.CallExpr) (wasm.ValType, error) {
	sig, err := fg.callFunc(x)
	if err != nil {
		return 0, err
	}
	if len(sig.Results) == 0 {
		return 0, errors.New(errors.PhaseCodegen, errors.KindInvalidData).
			At(x.Line, x.Col).
			Detail("%s has no result and cannot be used as a value", x.Callee).Build()
	}
	return sig.Results[0], nil
}

// callFunc resolves the callee against the module's function table and
// emits the arguments and the call. An unknown callee is a diagnostic;
// arguments are not emitted for it.
func (fg *funcGen) callFunc(x *ast.CallExpr) (wasm.FuncType, error) {
	idx, ok := fg.g.funcIdx[x.Callee]
	if !ok {
		return wasm.FuncType{}, errors.UnresolvedName(errors.PhaseCodegen, "function", x.Callee, x.Line)
	}
	sig := fg.g.funcSig[x.Callee]
	if len(x.Args) != len(sig.Params) {
		return wasm.FuncType{}, errors.New(errors.PhaseCodegen, errors.KindInvalidData).
			At(x.Line, x.Col).
			Detail("%s takes %d arguments, got %d", x.Callee, len(sig.Params), len(x.Args)).Build()
	}
	for i, arg := range x.Args {
		if err := fg.expr(arg, sig.Params[i]); err != nil {
			return wasm.FuncType{}, err
		}
	}
	fg.emit(wasm.OpCall, wasm.IndexImm{Index: idx})
	return sig, nil
}

// inferType statically types an expression without emitting code,
// used for local slot inference and literal hints.
func (fg *funcGen) inferType(e ast.Expr) wasm.ValType {
	switch x := e.(type) {
	case *ast.NumberLit:
		if !x.IsInt {
			return wasm.ValF64
		}
		return wasm.ValI32
	case *ast.BoolLit, *ast.StringLit:
		return wasm.ValI32
	case *ast.Ident:
		if slot, ok := fg.slots[x.Name]; ok {
			return slot.typ
		}
		if slot, ok := fg.g.globals[x.Name]; ok {
			return slot.typ
		}
		return wasm.ValI32
	case *ast.UnaryExpr:
		if x.Op == "!" {
			return wasm.ValI32
		}
		return fg.inferType(x.X)
	case *ast.BinaryExpr:
		if isComparison(x.Op) || x.Op == "&&" || x.Op == "||" {
			return wasm.ValI32
		}
		lt := fg.inferType(x.X)
		rt := fg.inferType(x.Y)
		if isFloat(lt) || isFloat(rt) {
			if lt == wasm.ValF32 || rt == wasm.ValF32 {
				return wasm.ValF32
			}
			return wasm.ValF64
		}
		if lt == wasm.ValI64 || rt == wasm.ValI64 {
			return wasm.ValI64
		}
		return wasm.ValI32
	case *ast.AssignExpr:
		if slot, ok := fg.slots[x.Target.Name]; ok {
			return slot.typ
		}
		if slot, ok := fg.g.globals[x.Target.Name]; ok {
			return slot.typ
		}
		return wasm.ValI32
	case *ast.CondExpr:
		return fg.inferType(x.Then)
	case *ast.CallExpr:
		if sig, ok := fg.g.funcSig[x.Callee]; ok && len(sig.Results) > 0 {
			return sig.Results[0]
		}
		return wasm.ValI32
	}
	return wasm.ValI32
}
