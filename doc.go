// Package wasmforge is a WebAssembly authoring toolchain: two source
// front ends, a canonical binary encoder, and a byte-level optimizer,
// wired together behind a single compiler object.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	wasmforge/           Root package: Compiler, result cache
//	├── wasm/            Binary encoding primitives, module builder, host validation
//	├── wat/             WAT text format to WASM binary compiler
//	├── tscript/         TypeScript-subset to WASM binary compiler
//	├── optimize/        Validate-then-rewrite binary optimizer pipeline
//	└── errors/          Structured error types shared by all phases
//
// Data flows one way: source text enters a front end, which produces a
// wasm.ModuleDefinition; the builder serializes it to canonical bytes;
// the optimizer consumes and produces raw bytes. Every output buffer
// conforms exactly to the WebAssembly binary format.
//
// # Quick Start
//
// Compile a WAT module and shrink it:
//
//	c := wasmforge.New()
//	res := c.Generate(`(module (func (export "answer") (result i32) (i32.const 42)))`, wasmforge.LanguageWAT)
//	if !res.Success {
//	    log.Fatal(res.Errors)
//	}
//
//	out, stats, err := c.Optimize(ctx, res.Wasm, optimize.LevelSize)
//	fmt.Printf("%d -> %d bytes\n", stats.OriginalSize, stats.OptimizedSize)
//
// # Concurrency
//
// Compilation and optimization build all state per call, so a Compiler
// is safe for concurrent use. The only shared mutable state is the
// bounded result cache, which is mutex-guarded; writers racing on the
// same content hash store byte-identical values.
//
// # Error Handling
//
// Generate never panics on bad source: lexical, syntax, and codegen
// failures come back as structured messages in CompilationResult.Errors
// with line and column positions. Optimize validates its input with a
// real WebAssembly host before any pass runs and refuses invalid bytes
// outright; a failing pass is contained and skipped, never fatal.
package wasmforge
