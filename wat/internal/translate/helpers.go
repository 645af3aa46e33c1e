package translate

import (
	"strconv"
	"strings"

	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat/internal/sexpr"
	"github.com/forgelab/wasmforge/wat/internal/token"
)

func isStringAtom(it sexpr.Item) bool {
	return it.IsAtom() && it.Atom.Type == token.String
}

// firstIdent returns the leading $name of a form, if any.
func firstIdent(n *sexpr.Node) string {
	if len(n.Items) > 0 && n.Items[0].IsAtom() && strings.HasPrefix(n.Items[0].Atom.Value, "$") {
		return n.Items[0].Atom.Value
	}
	return ""
}

// lastNode returns the final nested form of a node, which is where WAT
// keeps import/export descriptors.
func lastNode(n *sexpr.Node) *sexpr.Node {
	for i := len(n.Items) - 1; i >= 0; i-- {
		if n.Items[i].IsNode() {
			return n.Items[i].Node
		}
	}
	return nil
}

func firstAtomValue(n *sexpr.Node) string {
	for _, it := range n.Items {
		if it.IsAtom() {
			return it.Atom.Value
		}
	}
	return ""
}

// exportNameOf reads the string child of an inline (export "name") form.
func exportNameOf(n *sexpr.Node) string {
	for _, it := range n.Items {
		if isStringAtom(it) {
			return unescape(it.Atom.Value)
		}
	}
	return ""
}

func valType(s string) (wasm.ValType, error) {
	switch s {
	case "i32":
		return wasm.ValI32, nil
	case "i64":
		return wasm.ValI64, nil
	case "f32":
		return wasm.ValF32, nil
	case "f64":
		return wasm.ValF64, nil
	}
	return 0, errors.New(errors.PhaseTranslate, errors.KindUnresolvedName).
		Detail("unknown value type %q", s).Build()
}

// nodeValType reads the single value type child of a form like (mut i32).
func nodeValType(n *sexpr.Node) (wasm.ValType, error) {
	for _, it := range n.Items {
		if it.IsAtom() {
			return valType(it.Atom.Value)
		}
	}
	return 0, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
		At(n.Line, n.Col).Detail("%s form without value type", n.Type).Build()
}

// parseSignature collects the (param ...) and (result ...) children of a
// func form into a signature. Named params contribute one type each;
// unnamed forms may list several.
func (t *translator) parseSignature(items []sexpr.Item) (wasm.FuncType, error) {
	var ft wasm.FuncType
	for _, it := range items {
		if !it.IsNode() {
			continue
		}
		switch it.Node.Type {
		case "param":
			types, err := paramTypes(it.Node)
			if err != nil {
				return ft, err
			}
			ft.Params = append(ft.Params, types...)
		case "result":
			types, err := paramTypes(it.Node)
			if err != nil {
				return ft, err
			}
			ft.Results = append(ft.Results, types...)
		}
	}
	return ft, nil
}

// paramTypes reads the types of one (param ...), (result ...), or
// (local ...) form, skipping a leading $name.
func paramTypes(n *sexpr.Node) ([]wasm.ValType, error) {
	var types []wasm.ValType
	for _, it := range n.Items {
		if !it.IsAtom() || strings.HasPrefix(it.Atom.Value, "$") {
			continue
		}
		vt, err := valType(it.Atom.Value)
		if err != nil {
			return nil, errors.New(errors.PhaseTranslate, errors.KindUnresolvedName).
				At(it.Atom.Line, it.Atom.Col).
				Detail("unknown value type %q", it.Atom.Value).Build()
		}
		types = append(types, vt)
	}
	return types, nil
}

func (t *translator) parseGlobalType(n *sexpr.Node) (*wasm.GlobalType, error) {
	for _, it := range n.Items {
		if it.IsNode() && it.Node.Type == "mut" {
			vt, err := nodeValType(it.Node)
			if err != nil {
				return nil, err
			}
			return &wasm.GlobalType{Type: vt, Mutable: true}, nil
		}
		if it.IsAtom() && !strings.HasPrefix(it.Atom.Value, "$") {
			vt, err := valType(it.Atom.Value)
			if err != nil {
				return nil, err
			}
			return &wasm.GlobalType{Type: vt}, nil
		}
	}
	return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
		At(n.Line, n.Col).Detail("global descriptor without type").Build()
}

// parseLimits reads min and optional max from a memory or table form,
// ignoring names, inline exports, and the funcref element type keyword.
func (t *translator) parseLimits(n *sexpr.Node) (*wasm.Limits, error) {
	var nums []uint32
	for _, it := range n.Items {
		if !it.IsAtom() || it.Atom.Type != token.Number {
			continue
		}
		v, err := parseU32(it.Atom.Value, it.Atom.Line)
		if err != nil {
			return nil, err
		}
		nums = append(nums, v)
	}
	switch len(nums) {
	case 1:
		return &wasm.Limits{Min: nums[0]}, nil
	case 2:
		max := nums[1]
		return &wasm.Limits{Min: nums[0], Max: &max}, nil
	}
	return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
		At(n.Line, n.Col).Detail("%s needs min and optional max", n.Type).Build()
}

func numberError(v string, line int, cause error) *errors.Error {
	return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
		At(line, 0).
		Detail("invalid number %q", v).
		Cause(cause).Build()
}

func cleanNumber(v string) string {
	return strings.ReplaceAll(v, "_", "")
}

func parseU32(v string, line int) (uint32, error) {
	n, err := strconv.ParseUint(cleanNumber(v), 0, 32)
	if err != nil {
		return 0, numberError(v, line, err)
	}
	return uint32(n), nil
}

func parseI32(v string, line int) (int32, error) {
	s := cleanNumber(v)
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		return int32(n), nil
	}
	// i32.const accepts the unsigned form of the same bit pattern.
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, numberError(v, line, err)
	}
	return int32(n), nil
}

func parseI64(v string, line int) (int64, error) {
	s := cleanNumber(v)
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n, nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, numberError(v, line, err)
	}
	return int64(n), nil
}

func parseF64(v string, line int) (float64, error) {
	f, err := strconv.ParseFloat(cleanNumber(v), 64)
	if err != nil {
		return 0, numberError(v, line, err)
	}
	return f, nil
}

func parseF32(v string, line int) (float32, error) {
	f, err := strconv.ParseFloat(cleanNumber(v), 32)
	if err != nil {
		return 0, numberError(v, line, err)
	}
	return float32(f), nil
}

// unescape processes WAT string escapes: the named escapes, \\ and \",
// and two-digit hex byte escapes.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '\'':
			b.WriteByte('\'')
		default:
			if i+1 < len(s) {
				if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i++
					continue
				}
			}
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
