package wasmforge

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/forgelab/wasmforge/optimize"
	"github.com/forgelab/wasmforge/wasm"
)

const watAdd = `(module
  (func (export "add") (param i32 i32) (result i32)
    (i32.add (local.get 0) (local.get 1))))`

const tsAdd = `function add(a: i32, b: i32): i32 { return a + b; }`

func TestGenerateWAT(t *testing.T) {
	c := New()
	res := c.Generate(watAdd, LanguageWAT)
	if !res.Success {
		t.Fatalf("generate failed: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if !bytes.HasPrefix(res.Wasm, wasm.MagicBytes[:4]) {
		t.Fatalf("output does not start with wasm magic: % x", res.Wasm[:8])
	}
	if res.Stats.FunctionCount != 1 {
		t.Fatalf("FunctionCount = %d, want 1", res.Stats.FunctionCount)
	}
	if res.Stats.ExportCount != 1 {
		t.Fatalf("ExportCount = %d, want 1", res.Stats.ExportCount)
	}
	if res.Stats.SourceSize != len(watAdd) || res.Stats.OutputSize != len(res.Wasm) {
		t.Fatalf("size stats wrong: %+v", res.Stats)
	}
	if err := wasm.Validate(context.Background(), res.Wasm); err != nil {
		t.Fatalf("output does not validate: %v", err)
	}
}

func TestGenerateTypeScript(t *testing.T) {
	c := New()
	res := c.Generate(tsAdd, LanguageTypeScript)
	if !res.Success {
		t.Fatalf("generate failed: %v", res.Errors)
	}

	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)
	mod, err := rt.Instantiate(ctx, res.Wasm)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	got, err := mod.ExportedFunction("add").Call(ctx, 2, 3)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got[0] != 5 {
		t.Fatalf("add(2, 3) = %d, want 5", got[0])
	}
}

func TestGenerateReportsErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lang   Language
		want   string
	}{
		{"wat_unclosed", "(module (func", LanguageWAT, "unexpected_eof"},
		{"wat_unknown_op", "(module (func (i32.frobnicate)))", LanguageWAT, "i32.frobnicate"},
		{"ts_unresolved", "function f(): i32 { return x; }", LanguageTypeScript, "x"},
		{"ts_bad_token", "function f() { @ }", LanguageTypeScript, "unexpected_char"},
		{"unknown_lang", "(module)", Language("rust"), "unknown language"},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Generate(tt.source, tt.lang)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Wasm != nil {
				t.Fatal("failed compilation must not produce bytes")
			}
			if len(res.Errors) == 0 {
				t.Fatal("expected structured errors")
			}
			if !strings.Contains(res.Errors[0], tt.want) {
				t.Fatalf("error %q does not mention %q", res.Errors[0], tt.want)
			}
		})
	}
}

func TestGenerateWarnsOnNoExports(t *testing.T) {
	c := New()
	res := c.Generate("(module)", LanguageWAT)
	if !res.Success {
		t.Fatalf("generate failed: %v", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one no-export warning", res.Warnings)
	}
}

func TestGenerateCaches(t *testing.T) {
	c := New()
	first := c.Generate(watAdd, LanguageWAT)
	if !first.Success {
		t.Fatalf("generate failed: %v", first.Errors)
	}
	if c.cache.len() != 1 {
		t.Fatalf("cache holds %d entries, want 1", c.cache.len())
	}

	second := c.Generate(watAdd, LanguageWAT)
	if !bytes.Equal(first.Wasm, second.Wasm) {
		t.Fatal("cached result differs from original")
	}
	if c.cache.len() != 1 {
		t.Fatalf("repeat compile grew the cache to %d entries", c.cache.len())
	}

	// Mutating a returned slice must not poison later hits.
	second.Wasm[0] = 0xFF
	third := c.Generate(watAdd, LanguageWAT)
	if !bytes.Equal(first.Wasm, third.Wasm) {
		t.Fatal("cache returned mutated bytes")
	}
}

func TestGenerateFailuresNotCached(t *testing.T) {
	c := New()
	c.Generate("(module (func", LanguageWAT)
	if c.cache.len() != 0 {
		t.Fatalf("failed compilation was cached")
	}
}

func TestOptimizeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New()
	res := c.Generate(`(module
  (func (export "f") (result i32)
    nop
    i32.const 2
    i32.const 3
    i32.add))`, LanguageWAT)
	if !res.Success {
		t.Fatalf("generate failed: %v", res.Errors)
	}

	out, stats, err := c.Optimize(ctx, res.Wasm, optimize.LevelSize)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if stats.OptimizedSize != len(out) {
		t.Fatalf("OptimizedSize = %d, want %d", stats.OptimizedSize, len(out))
	}
	if len(out) >= len(res.Wasm) {
		t.Fatalf("expected shrink, got %d -> %d bytes", len(res.Wasm), len(out))
	}
	if err := wasm.Validate(ctx, out); err != nil {
		t.Fatalf("optimized output does not validate: %v", err)
	}
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	c := New()
	if _, _, err := c.Optimize(context.Background(), []byte("not wasm"), optimize.LevelSize); err == nil {
		t.Fatal("expected validation error")
	}
}
