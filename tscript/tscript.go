package tscript

import (
	"github.com/forgelab/wasmforge/tscript/internal/codegen"
	"github.com/forgelab/wasmforge/tscript/internal/parser"
	"github.com/forgelab/wasmforge/wasm"
)

// Compile turns TypeScript-subset source into canonical binary WASM
// bytes. Every top-level function is exported under its own name.
func Compile(source string) ([]byte, error) {
	def, err := Translate(source)
	if err != nil {
		return nil, err
	}
	return wasm.FromDefinition(def)
}

// Translate parses and lowers source into a module definition without
// encoding it.
func Translate(source string) (*wasm.ModuleDefinition, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return codegen.Generate(prog)
}
