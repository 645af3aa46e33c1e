// Package errors provides structured error types for the wasmforge toolchain.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries source position and a cause chain, so
// front-end diagnostics can report exact locations while binary-level errors
// wrap the underlying failure.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseParse, errors.KindUnexpectedToken).
//		At(line, col).
//		Detail("expected ')', got %q", tok).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnexpectedChar('@', line, col)
//	err := errors.UnresolvedName(errors.PhaseTranslate, "function", "$f", line)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
