// Package tscript compiles a TypeScript-like subset into binary WASM.
//
// The pipeline is lex, recursive-descent parse into a syntax tree, then
// a code generator that lowers structured control flow onto the block,
// loop, and if constructs of the binary format.
//
// Supported grammar: top-level function declarations, classes (methods
// flatten to ClassName_method functions, properties become globals),
// const/let/var, if/else, while, C-style for, return, and expression
// statements with the usual arithmetic, bitwise, relational, logical,
// ternary, and assignment operators.
//
// Type annotations map onto value types: number is f64, boolean is
// i32, the i32/i64/f32/f64 names pass through, and anything else
// defaults to i32. Unannotated declarations infer from their
// initializer.
//
// Unresolved variables, unresolved call targets, and operators with no
// lowering for their operand type are reported as diagnostics; nothing
// is silently dropped.
package tscript
