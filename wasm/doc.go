// Package wasm provides the WebAssembly binary encoding layer of the
// toolchain: LEB128 and IEEE754 primitives, the structured module
// definition produced by the front ends, and the builder that turns a
// definition into canonical WASM bytes.
//
// # Building a module
//
// Front ends populate a ModuleDefinition and hand it to FromDefinition:
//
//	def := &wasm.ModuleDefinition{
//		Functions: []wasm.Function{{
//			ExportName: "add",
//			Signature: wasm.FuncType{
//				Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
//				Results: []wasm.ValType{wasm.ValI32},
//			},
//			Body: []wasm.Instruction{
//				{Opcode: wasm.OpLocalGet, Imm: wasm.IndexImm{Index: 0}},
//				{Opcode: wasm.OpLocalGet, Imm: wasm.IndexImm{Index: 1}},
//				{Opcode: wasm.OpI32Add},
//			},
//		}},
//	}
//	bytes, err := wasm.FromDefinition(def)
//
// The lower-level Builder can also be driven directly; each Add method
// returns the index assigned in that entity's space.
//
// # Encoding rules
//
// Every list is a ULEB128 count followed by entries; strings are ULEB128
// length plus UTF-8 bytes; integer constants use signed LEB128; every
// index operand uses unsigned LEB128; f32/f64 are little-endian IEEE754.
// Function locals are run-length encoded into (count, type) groups and the
// builder appends the terminating end opcode itself.
//
// The operand encoding for each opcode is a closed table (see ImmKindOf),
// never a property of the call site.
//
// # Failure model
//
// The builder trusts its callers: an opcode paired with the wrong
// immediate type is a programmer error and panics. External-input
// validation is the host validator's job (see Validate).
package wasm
