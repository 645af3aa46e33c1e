package wat

import (
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat/internal/sexpr"
	"github.com/forgelab/wasmforge/wat/internal/token"
	"github.com/forgelab/wasmforge/wat/internal/translate"
)

// Compile turns WAT source into canonical binary WASM bytes.
func Compile(source string) ([]byte, error) {
	def, err := Translate(source)
	if err != nil {
		return nil, err
	}
	return wasm.FromDefinition(def)
}

// Translate parses WAT source into a module definition without encoding
// it. Callers that need structural information (function and export
// counts, signatures) use this and encode separately.
func Translate(source string) (*wasm.ModuleDefinition, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		return nil, err
	}
	root, err := sexpr.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return translate.Module(root)
}
