package tscript

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/forgelab/wasmforge/wasm"
)

func instantiate(t *testing.T, src string) api.Module {
	t.Helper()
	bin, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { r.Close(ctx) })
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func call(t *testing.T, mod api.Module, name string, args ...uint64) uint64 {
	t.Helper()
	res, err := mod.ExportedFunction(name).Call(context.Background(), args...)
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

func TestCompileAdd(t *testing.T) {
	mod := instantiate(t, `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}`)
	if got := call(t, mod, "add", 2, 3); got != 5 {
		t.Errorf("add(2,3) = %d, want 5", got)
	}
}

// TestWhileSum checks the while lowering against the closed-form
// triangular number for several n.
func TestWhileSum(t *testing.T) {
	mod := instantiate(t, `
		function sum(n: i32): i32 {
			let total: i32 = 0;
			let i: i32 = 1;
			while (i <= n) {
				total += i;
				i++;
			}
			return total;
		}`)
	for _, n := range []uint64{0, 1, 2, 5, 10, 100} {
		want := n * (n + 1) / 2
		if got := call(t, mod, "sum", n); got != want {
			t.Errorf("sum(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestForLoop(t *testing.T) {
	mod := instantiate(t, `
		function fact(n: i32): i32 {
			let acc: i32 = 1;
			for (let i: i32 = 2; i <= n; i++) {
				acc *= i;
			}
			return acc;
		}`)
	cases := map[uint64]uint64{0: 1, 1: 1, 5: 120, 7: 5040}
	for n, want := range cases {
		if got := call(t, mod, "fact", n); got != want {
			t.Errorf("fact(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestIfElse(t *testing.T) {
	mod := instantiate(t, `
		function max(a: i32, b: i32): i32 {
			if (a > b) {
				return a;
			} else {
				return b;
			}
		}
		function sign(x: i32): i32 {
			if (x > 0) {
				return 1;
			} else if (x < 0) {
				return 0 - 1;
			}
			return 0;
		}`)
	if got := call(t, mod, "max", 4, 9); got != 9 {
		t.Errorf("max(4,9) = %d, want 9", got)
	}
	if got := call(t, mod, "sign", 7); got != 1 {
		t.Errorf("sign(7) = %d, want 1", got)
	}
	if got := int32(call(t, mod, "sign", uint64(uint32(math.MaxUint32)))); got != -1 {
		t.Errorf("sign(-1) = %d, want -1", got)
	}
	if got := call(t, mod, "sign", 0); got != 0 {
		t.Errorf("sign(0) = %d, want 0", got)
	}
}

func TestAllArmsReturn(t *testing.T) {
	// Every path through the body returns, so nothing falls out of the
	// final end; the frame must still type-check and execute correctly.
	src := `
		function clamp01(x: i32): i32 {
			if (x < 0) {
				return 0;
			} else {
				if (x > 1) {
					return 1;
				} else {
					return x;
				}
			}
		}`

	def, err := Translate(src)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	body := def.Functions[0].Body
	if last := body[len(body)-1]; last.Opcode != wasm.OpUnreachable {
		t.Fatalf("body ends with opcode 0x%02X, want unreachable", last.Opcode)
	}

	mod := instantiate(t, src)
	if got := call(t, mod, "clamp01", 5); got != 1 {
		t.Errorf("clamp01(5) = %d, want 1", got)
	}
	if got := call(t, mod, "clamp01", 0); got != 0 {
		t.Errorf("clamp01(0) = %d, want 0", got)
	}
	if got := call(t, mod, "clamp01", 1); got != 1 {
		t.Errorf("clamp01(1) = %d, want 1", got)
	}
}

func TestTernary(t *testing.T) {
	mod := instantiate(t, `
		function pick(c: i32, a: i32, b: i32): i32 {
			return c ? a : b;
		}`)
	if got := call(t, mod, "pick", 1, 10, 20); got != 10 {
		t.Errorf("pick(1,10,20) = %d, want 10", got)
	}
	if got := call(t, mod, "pick", 0, 10, 20); got != 20 {
		t.Errorf("pick(0,10,20) = %d, want 20", got)
	}
}

func TestNumberIsF64(t *testing.T) {
	mod := instantiate(t, `
		function half(x: number): number {
			return x / 2;
		}`)
	res, err := mod.ExportedFunction("half").Call(context.Background(),
		api.EncodeF64(7.0))
	if err != nil {
		t.Fatalf("call half: %v", err)
	}
	if got := api.DecodeF64(res[0]); got != 3.5 {
		t.Errorf("half(7) = %v, want 3.5", got)
	}
}

func TestCallBetweenFunctions(t *testing.T) {
	mod := instantiate(t, `
		function square(x: i32): i32 {
			return x * x;
		}
		function sumOfSquares(a: i32, b: i32): i32 {
			return square(a) + square(b);
		}`)
	if got := call(t, mod, "sumOfSquares", 3, 4); got != 25 {
		t.Errorf("sumOfSquares(3,4) = %d, want 25", got)
	}
}

// Forward reference: callee declared after the caller.
func TestForwardCall(t *testing.T) {
	mod := instantiate(t, `
		function twiceNext(x: i32): i32 {
			return bump(bump(x));
		}
		function bump(x: i32): i32 {
			return x + 1;
		}`)
	if got := call(t, mod, "twiceNext", 5); got != 7 {
		t.Errorf("twiceNext(5) = %d, want 7", got)
	}
}

func TestGlobals(t *testing.T) {
	mod := instantiate(t, `
		const BASE: i32 = 100;
		let counter: i32 = 0;
		function next(): i32 {
			counter = counter + 1;
			return BASE + counter;
		}`)
	if got := call(t, mod, "next"); got != 101 {
		t.Errorf("first next() = %d, want 101", got)
	}
	if got := call(t, mod, "next"); got != 102 {
		t.Errorf("second next() = %d, want 102", got)
	}
}

func TestClassLowering(t *testing.T) {
	mod := instantiate(t, `
		class Counter {
			count: i32 = 0;
			increment(): i32 {
				count += 1;
				return count;
			}
			reset(): i32 {
				count = 0;
				return count;
			}
		}`)
	if got := call(t, mod, "Counter_increment"); got != 1 {
		t.Errorf("Counter_increment() = %d, want 1", got)
	}
	if got := call(t, mod, "Counter_increment"); got != 2 {
		t.Errorf("Counter_increment() = %d, want 2", got)
	}
	if got := call(t, mod, "Counter_reset"); got != 0 {
		t.Errorf("Counter_reset() = %d, want 0", got)
	}
}

func TestNestedLocalsCollected(t *testing.T) {
	// Locals declared inside nested control flow must land in the flat
	// slot table ahead of emission.
	mod := instantiate(t, `
		function weird(n: i32): i32 {
			let out: i32 = 0;
			if (n > 0) {
				let doubled: i32 = n * 2;
				out = doubled;
			}
			while (out > 100) {
				let step: i32 = 10;
				out -= step;
			}
			return out;
		}`)
	if got := call(t, mod, "weird", 3); got != 6 {
		t.Errorf("weird(3) = %d, want 6", got)
	}
	if got := call(t, mod, "weird", 75); got != 100 {
		t.Errorf("weird(75) = %d, want 100", got)
	}
}

func TestOperators(t *testing.T) {
	mod := instantiate(t, `
		function bitmix(a: i32, b: i32): i32 {
			return ((a & b) | (a ^ b)) + (a << 1) - (b >> 1);
		}
		function logic(a: i32, b: i32): i32 {
			return a > 0 && b > 0 || a == b;
		}
		function rem(a: i32, b: i32): i32 {
			return a % b;
		}`)
	want := uint64(((6 & 3) | (6 ^ 3)) + (6 << 1) - (3 >> 1))
	if got := call(t, mod, "bitmix", 6, 3); got != want {
		t.Errorf("bitmix(6,3) = %d, want %d", got, want)
	}
	if got := call(t, mod, "logic", 1, 2); got != 1 {
		t.Errorf("logic(1,2) = %d, want 1", got)
	}
	if got := call(t, mod, "logic", 0, 0); got != 1 {
		t.Errorf("logic(0,0) = %d, want 1", got)
	}
	if got := call(t, mod, "rem", 17, 5); got != 2 {
		t.Errorf("rem(17,5) = %d, want 2", got)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name, src, wantErr string
	}{
		{"unresolved_call", `function f(): i32 { return missing(1); }`, "missing"},
		{"unresolved_var", `function f(): i32 { return nope; }`, "nope"},
		{"bad_token", `function f() { return @; }`, "unexpected"},
		{"unterminated_string", `function f() { let s = "abc; }`, "unterminated"},
		{"missing_paren", `function f( { }`, "unexpected"},
		{"float_shift", `function f(x: f64): f64 { return x << 1; }`, "not defined"},
		{"top_level_expr", `1 + 2;`, "top level"},
		{"void_as_value", `function ping() { } function f(): i32 { return ping(); }`, "cannot be used as a value"},
		{"void_in_arith", `function ping() { } function f(): i32 { return 1 + ping(); }`, "cannot be used as a value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
		})
	}
}

// Every compiled module must pass the host validator.
func TestOutputValidates(t *testing.T) {
	sources := []string{
		`function noop() { }`,
		`function id(x: i32): i32 { return x; }`,
		`let g: number = 2.5; function get(): number { return g; }`,
		`function cond(x: i32): i32 { return x > 10 ? x - 10 : x; }`,
		`function drop2(x: i32) { x + 1; }`,
		`function ping() { } function poke() { ping(); }`,
	}
	ctx := context.Background()
	for _, src := range sources {
		bin, err := Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q) failed: %v", src, err)
		}
		if err := wasm.Validate(ctx, bin); err != nil {
			t.Errorf("Compile(%q) output rejected: %v", src, err)
		}
	}
}
