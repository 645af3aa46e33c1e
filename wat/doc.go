// Package wat compiles WebAssembly Text format into binary WASM.
//
// The pipeline is tokenize, parse into an S-expression tree, then
// translate in two passes: a prescan assigns indices to every named
// declaration so forward references resolve, and a second pass lowers
// forms into a module definition encoded by the wasm package.
//
// Basic usage:
//
//	bytes, err := wat.Compile(`(module
//		(func (export "add") (param i32 i32) (result i32)
//			(i32.add (local.get 0) (local.get 1)))
//	)`)
//
// Supported features:
//   - Functions with params, results, locals (named and indexed)
//   - Imports and exports, including inline (export "name") forms
//   - Memory, global, table declarations; data and elem segments
//   - Control flow: if/then/else, loop, block, br, br_if, br_table
//   - call, call_indirect with type references
//   - Folded and flat instruction forms
//   - i32/i64/f32/f64 arithmetic, comparisons, conversions
//   - Memory load/store with offset= and align= immediates
//   - Comments: line (;;) and block (; ;), nested
//
// Not supported: SIMD (v128), threads/atomics, exception handling,
// reference types beyond funcref tables, multi-value block types.
package wat
