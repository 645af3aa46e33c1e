// Package optimize runs binary-level rewrite passes over compiled WASM
// bytes.
//
// Run validates its input against the host validator first and aborts
// before any pass if the binary is already broken. Each pass is a
// byte-to-byte function that parses only the sections it needs; a pass
// that fails or panics is logged and skipped, and the pipeline always
// completes with the best bytes obtained so far.
//
// The optimization level picks the pass list: size runs everything
// that shrinks the binary, speed skips local compaction and name
// stripping, aggressive adds the analysis-only passes that report
// unreachable functions and inline candidates.
package optimize
