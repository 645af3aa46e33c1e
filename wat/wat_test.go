package wat

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/forgelab/wasmforge/wasm"
)

// Integration tests for the public Compile() API.
// Unit tests live in the internal packages.

func TestCompile(t *testing.T) {
	t.Run("empty_module", func(t *testing.T) {
		out, err := Compile("(module)")
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(out) != 8 {
			t.Errorf("expected 8 bytes, got %d", len(out))
		}
		if out[0] != 0x00 || out[1] != 0x61 || out[2] != 0x73 || out[3] != 0x6D {
			t.Error("invalid WASM magic")
		}
	})

	t.Run("simple_function", func(t *testing.T) {
		out, err := Compile(`(module
			(func (export "add") (param i32 i32) (result i32)
				(i32.add (local.get 0) (local.get 1))))`)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(out) < 20 {
			t.Errorf("output too small: %d bytes", len(out))
		}
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name, wat, wantErr string
	}{
		{"missing_module", "(func)", "module"},
		{"unclosed", "(module", "unexpected end"},
		{"unknown_instr", "(module (func (bogus)))", "unknown instruction"},
		{"unknown_type", "(module (func (param bogus)))", "unknown value type"},
		{"unknown_label", "(module (func (block (br $x))))", "$x"},
		{"unknown_func", "(module (func (call $missing)))", "$missing"},
		{"unknown_local", "(module (func (local.get $nope)))", "$nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.wat)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
		})
	}
}

// TestBranchDepth pins the relative-depth encoding for named labels:
// a branch to the outer of two nested blocks is depth 1 at the site.
func TestBranchDepth(t *testing.T) {
	def, err := Translate(`(module
		(func
			(block $outer
				(block $inner
					(br $outer)))))`)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(def.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(def.Functions))
	}
	var brs []uint32
	for _, ins := range def.Functions[0].Body {
		if ins.Opcode == wasm.OpBr {
			brs = append(brs, ius(ins))
		}
	}
	if len(brs) != 1 || brs[0] != 1 {
		t.Errorf("expected single br with depth 1, got %v", brs)
	}
}

func ius(ins wasm.Instruction) uint32 {
	return ins.Imm.(wasm.IndexImm).Index
}

// TestLoopBranchDepth: br_if to a loop label targets the loop header.
func TestLoopBranchDepth(t *testing.T) {
	def, err := Translate(`(module
		(func (local $i i32)
			(block $exit
				(loop $top
					(br_if $exit (i32.eqz (local.get $i)))
					(br $top)))))`)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	body := def.Functions[0].Body
	var brIf, br *wasm.Instruction
	for i := range body {
		switch body[i].Opcode {
		case wasm.OpBrIf:
			brIf = &body[i]
		case wasm.OpBr:
			br = &body[i]
		}
	}
	if brIf == nil || ius(*brIf) != 1 {
		t.Errorf("br_if $exit should have depth 1, got %+v", brIf)
	}
	if br == nil || ius(*br) != 0 {
		t.Errorf("br $top should have depth 0, got %+v", br)
	}
}

// TestWasmValidation compiles each source and has wazero accept it.
func TestWasmValidation(t *testing.T) {
	tests := []struct {
		name string
		wat  string
	}{
		{"memory", "(module (memory 1 10))"},
		{"table", "(module (table 10 funcref))"},
		{"global", "(module (global (mut i32) (i32.const 0)))"},
		{"named_global", `(module (global $g i32 (i32.const 42)))`},
		{"start", "(module (func $main) (start $main))"},
		{"export_memory", `(module (memory (export "mem") 1))`},

		{"func_params", "(module (func (param i32 i64 f32 f64)))"},
		{"func_locals", "(module (func (local i32) (local.set 0 (i32.const 1))))"},
		{"named_params", `(module (func (param $a i32) (param $b i32) (result i32)
			(i32.add (local.get $a) (local.get $b))))`},
		{"multi_export", `(module (func (export "a") (export "b")))`},

		{"if_else", `(module (func (result i32)
			(if (result i32) (i32.const 1)
				(then (i32.const 10))
				(else (i32.const 20)))))`},
		{"block_result", `(module (func (result i32)
			(block (result i32) (i32.const 7))))`},
		{"br_table", `(module (func (param i32)
			(block $a (block $b
				(br_table $a $b $a (local.get 0))))))`},
		{"return", `(module (func (result i32) (return (i32.const 3))))`},
		{"unreachable", "(module (func unreachable))"},
		{"select", `(module (func (result i32)
			(select (i32.const 1) (i32.const 2) (i32.const 0))))`},

		{"call", `(module
			(func $one (result i32) (i32.const 1))
			(func (result i32) (call $one)))`},
		{"call_indirect", `(module
			(type $t (func (result i32)))
			(table 1 funcref)
			(func $f (result i32) (i32.const 9))
			(elem (i32.const 0) $f)
			(func (result i32) (call_indirect (type $t) (i32.const 0))))`},

		{"memory_ops", `(module (memory 1)
			(func (i32.store (i32.const 0) (i32.const 1))
				(drop (i32.load (i32.const 0)))))`},
		{"memarg", `(module (memory 1)
			(func (drop (i32.load offset=4 align=4 (i32.const 0)))))`},
		{"data", `(module (memory 1) (data (i32.const 8) "hi\00"))`},
		{"memory_grow", `(module (memory 1)
			(func (drop (memory.grow (i32.const 1)))))`},

		{"import_func", `(module (import "env" "log" (func (param i32))))`},
		{"import_then_local", `(module
			(import "env" "log" (func $log (param i32)))
			(func (call $log (i32.const 5))))`},

		{"flat_form", `(module (func (result i32)
			i32.const 2
			i32.const 3
			i32.add))`},
		{"flat_block", `(module (func
			block $b
				br $b
			end))`},

		{"conversions", `(module (func (result f64)
			(f64.convert_i32_s (i32.const -4))))`},
		{"float_math", `(module (func (result f32)
			(f32.sqrt (f32.mul (f32.const 2) (f32.const 8)))))`},
		{"i64", `(module (func (result i64)
			(i64.mul (i64.const 6) (i64.const 7))))`},
		{"comments", `(module ;; line
			(; block (; nested ;) ;) (func))`},
	}
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Compile(tt.wat)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if err := wasm.Validate(ctx, out); err != nil {
				t.Errorf("wazero rejected output: %v", err)
			}
		})
	}
}

// TestExecute compiles and runs exported functions under wazero.
func TestExecute(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, src, export string, want uint64, args ...uint64) {
		t.Helper()
		bin, err := Compile(src)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
		defer r.Close(ctx)
		mod, err := r.Instantiate(ctx, bin)
		if err != nil {
			t.Fatalf("instantiate: %v", err)
		}
		res, err := mod.ExportedFunction(export).Call(ctx, args...)
		if err != nil {
			t.Fatalf("call %s: %v", export, err)
		}
		if res[0] != want {
			t.Errorf("%s(%v) = %d, want %d", export, args, res[0], want)
		}
	}

	t.Run("add", func(t *testing.T) {
		run(t, `(module
			(func (export "add") (param i32 i32) (result i32)
				(i32.add (local.get 0) (local.get 1))))`,
			"add", 5, 2, 3)
	})

	t.Run("factorial_loop", func(t *testing.T) {
		run(t, `(module
			(func (export "fac") (param $n i32) (result i32)
				(local $acc i32)
				(local.set $acc (i32.const 1))
				(block $done
					(loop $top
						(br_if $done (i32.le_s (local.get $n) (i32.const 1)))
						(local.set $acc (i32.mul (local.get $acc) (local.get $n)))
						(local.set $n (i32.sub (local.get $n) (i32.const 1)))
						(br $top)))
				(local.get $acc)))`,
			"fac", 120, 5)
	})

	t.Run("global_counter", func(t *testing.T) {
		run(t, `(module
			(global $c (mut i32) (i32.const 10))
			(func (export "bump") (result i32)
				(global.set $c (i32.add (global.get $c) (i32.const 1)))
				(global.get $c)))`,
			"bump", 11)
	})

	t.Run("if_select_max", func(t *testing.T) {
		run(t, `(module
			(func (export "max") (param $a i32) (param $b i32) (result i32)
				(if (result i32) (i32.gt_s (local.get $a) (local.get $b))
					(then (local.get $a))
					(else (local.get $b)))))`,
			"max", 9, 4, 9)
	})

	t.Run("memory_roundtrip", func(t *testing.T) {
		run(t, `(module
			(memory 1)
			(func (export "rt") (param $v i32) (result i32)
				(i32.store (i32.const 16) (local.get $v))
				(i32.load (i32.const 16))))`,
			"rt", 77, 77)
	})
}
