package optimize

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat"
)

func compile(t *testing.T, src string) []byte {
	t.Helper()
	bin, err := wat.Compile(src)
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	return bin
}

func callExport(t *testing.T, bin []byte, name string, args ...uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction(name).Call(ctx, args...)
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

// firstBody decodes the first function body of a binary.
func firstBody(t *testing.T, bin []byte) binscan.FuncBody {
	t.Helper()
	m, err := binscan.Parse(bin)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sec := m.Section(wasm.SectionCode)
	if sec == nil {
		t.Fatal("no code section")
	}
	bodies, err := binscan.ParseCode(sec.Data)
	if err != nil {
		t.Fatalf("parse code: %v", err)
	}
	return bodies[0]
}

func TestRunRejectsInvalidInput(t *testing.T) {
	if _, _, err := Run(context.Background(), []byte("not wasm at all"), LevelSize); err == nil {
		t.Fatal("expected validation error before any pass")
	}
}

func TestRunNoneLevel(t *testing.T) {
	bin := compile(t, `(module (func (export "f") (result i32) (i32.const 1)))`)
	out, stats, err := Run(context.Background(), bin, LevelNone)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(out, bin) {
		t.Error("none level must not change the bytes")
	}
	if len(stats.PassesApplied) != 0 {
		t.Errorf("none level applied passes: %v", stats.PassesApplied)
	}
}

func TestConstFold(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (result i32)
			i32.const 2
			i32.const 3
			i32.add))`)

	pass := &ConstFoldPass{}
	out, modified, err := pass.Run(bin)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !modified {
		t.Fatal("expected the window to fold")
	}

	body := firstBody(t, out)
	if len(body.Instrs) != 2 { // folded const + end
		t.Fatalf("expected 2 instructions after fold, got %d", len(body.Instrs))
	}
	if v, ok := body.Instrs[0].Imm.(wasm.I32Imm); !ok || v.Value != 5 {
		t.Errorf("folded constant = %+v, want i32 5", body.Instrs[0].Imm)
	}
	if got := callExport(t, out, "f"); got != 5 {
		t.Errorf("f() = %d, want 5", got)
	}

	// Folding its own output again reports no modification.
	again, modified, err := pass.Run(out)
	if err != nil {
		t.Fatalf("refold: %v", err)
	}
	if modified {
		t.Error("second fold run must report modified=false")
	}
	if !bytes.Equal(again, out) {
		t.Error("second fold run changed bytes")
	}
}

func TestConstFoldChains(t *testing.T) {
	// 2 3 add 4 add folds to 9 within one run.
	bin := compile(t, `(module
		(func (export "f") (result i32)
			i32.const 2
			i32.const 3
			i32.add
			i32.const 4
			i32.add))`)
	out, modified, err := (&ConstFoldPass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("fold chain: modified=%v err=%v", modified, err)
	}
	body := firstBody(t, out)
	if len(body.Instrs) != 2 {
		t.Fatalf("chain did not fully fold: %d instructions", len(body.Instrs))
	}
	if got := callExport(t, out, "f"); got != 9 {
		t.Errorf("f() = %d, want 9", got)
	}
}

func TestConstFoldWraparound(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (result i32)
			i32.const 2147483647
			i32.const 1
			i32.add))`)
	out, modified, err := (&ConstFoldPass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("fold: modified=%v err=%v", modified, err)
	}
	if got := int32(callExport(t, out, "f")); got != -2147483648 {
		t.Errorf("f() = %d, want wraparound to MinInt32", got)
	}
}

func TestPeephole(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (param i32) (result i32)
			nop
			local.get 0
			i32.const 0
			i32.add))`)
	out, modified, err := (&PeepholePass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("peephole: modified=%v err=%v", modified, err)
	}
	body := firstBody(t, out)
	if len(body.Instrs) != 2 { // local.get + end
		t.Errorf("expected nop and identity-add removed, got %d instructions", len(body.Instrs))
	}
	if got := callExport(t, out, "f", 42); got != 42 {
		t.Errorf("f(42) = %d, want 42", got)
	}
}

func TestPeepholeSetGetBecomesTee(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (param i32) (result i32)
			(local $t i32)
			local.get 0
			local.set $t
			local.get $t))`)
	out, modified, err := (&PeepholePass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("peephole: modified=%v err=%v", modified, err)
	}
	body := firstBody(t, out)
	var sawTee bool
	for _, ins := range body.Instrs {
		if ins.Opcode == wasm.OpLocalTee {
			sawTee = true
		}
		if ins.Opcode == wasm.OpLocalSet {
			t.Error("local.set survived the tee rewrite")
		}
	}
	if !sawTee {
		t.Error("expected a local.tee")
	}
	if got := callExport(t, out, "f", 7); got != 7 {
		t.Errorf("f(7) = %d, want 7", got)
	}
}

func TestDeadCode(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (result i32)
			i32.const 11
			return
			i32.const 22
			drop
			i32.const 33
			drop))`)

	before := firstBody(t, bin)
	out, modified, err := (&DeadCodePass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("dce: modified=%v err=%v", modified, err)
	}
	after := firstBody(t, out)
	if len(after.Instrs) >= len(before.Instrs) {
		t.Errorf("dce did not shrink the body: %d -> %d", len(before.Instrs), len(after.Instrs))
	}
	if got := callExport(t, out, "f"); got != 11 {
		t.Errorf("f() = %d, want 11", got)
	}
}

func TestDeadCodePreservesElseArm(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (param i32) (result i32)
			(if (result i32) (local.get 0)
				(then (return (i32.const 1)))
				(else (i32.const 2)))))`)
	out, _, err := (&DeadCodePass{}).Run(bin)
	if err != nil {
		t.Fatalf("dce: %v", err)
	}
	if err := wasm.Validate(context.Background(), out); err != nil {
		t.Fatalf("dce output invalid: %v", err)
	}
	if got := callExport(t, out, "f", 1); got != 1 {
		t.Errorf("f(1) = %d, want 1", got)
	}
	if got := callExport(t, out, "f", 0); got != 2 {
		t.Errorf("f(0) = %d, want 2", got)
	}
}

func TestLocalCompaction(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (param i32) (result i32)
			(local $used i32)
			(local $unused1 i64)
			(local $unused2 f64)
			local.get 0
			local.set $used
			local.get $used))`)

	before := firstBody(t, bin)
	out, modified, err := (&LocalCompactPass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("compact: modified=%v err=%v", modified, err)
	}
	after := firstBody(t, out)
	if after.NumLocals() >= before.NumLocals() {
		t.Errorf("local count did not decrease: %d -> %d", before.NumLocals(), after.NumLocals())
	}
	if after.NumLocals() != 1 {
		t.Errorf("expected 1 surviving local, got %d", after.NumLocals())
	}
	for _, arg := range []uint64{0, 5, 999} {
		if got := callExport(t, out, "f", arg); got != arg {
			t.Errorf("f(%d) = %d, want %d", arg, got, arg)
		}
	}
}

func TestLocalCompactionAllUsed(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (param i32) (result i32)
			(local $a i32)
			(local.set $a (local.get 0))
			(local.get $a)))`)
	out, modified, err := (&LocalCompactPass{}).Run(bin)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if modified {
		t.Error("fully used locals must be untouched")
	}
	if !bytes.Equal(out, bin) {
		t.Error("bytes changed without modification")
	}
}

func TestBlockMerge(t *testing.T) {
	bin := compile(t, `(module
		(func (export "f") (result i32)
			(block (block (block)))
			i32.const 4))`)
	out, modified, err := (&BlockMergePass{}).Run(bin)
	if err != nil || !modified {
		t.Fatalf("merge: modified=%v err=%v", modified, err)
	}
	body := firstBody(t, out)
	for _, ins := range body.Instrs {
		if ins.Opcode == wasm.OpBlock {
			t.Error("empty block survived merging")
		}
	}
	if got := callExport(t, out, "f"); got != 4 {
		t.Errorf("f() = %d, want 4", got)
	}
}

func TestCompactNames(t *testing.T) {
	bin := compile(t, `(module (func (export "f")))`)

	// Append a "name" custom section; custom sections may appear after
	// any other section.
	payload := wasm.AppendULEB128(nil, uint64(len("name")))
	payload = append(payload, "name"...)
	payload = append(payload, 0xDE, 0xAD)
	withNames := append(append([]byte(nil), bin...), wasm.SectionCustom)
	withNames = wasm.AppendULEB128(withNames, uint64(len(payload)))
	withNames = append(withNames, payload...)

	out, modified, err := (&CompactNamesPass{}).Run(withNames)
	if err != nil || !modified {
		t.Fatalf("strip: modified=%v err=%v", modified, err)
	}
	if !bytes.Equal(out, bin) {
		t.Error("stripping the name section should restore the original bytes")
	}

	// No names: nothing to do.
	_, modified, err = (&CompactNamesPass{}).Run(bin)
	if err != nil {
		t.Fatalf("strip clean: %v", err)
	}
	if modified {
		t.Error("pass modified a module without name sections")
	}
}

func TestAnalysisPassesReportOnly(t *testing.T) {
	bin := compile(t, `(module
		(func $dead (result i32) (i32.const 0))
		(func $tiny (result i32) (i32.const 1))
		(func (export "main") (result i32) (call $tiny)))`)

	for _, pass := range []Pass{&RemoveUnusedPass{}, &InlineSmallFunctionsPass{}} {
		out, modified, err := pass.Run(bin)
		if err != nil {
			t.Fatalf("%s: %v", pass.Name(), err)
		}
		if modified {
			t.Errorf("%s must be detection-only", pass.Name())
		}
		if !bytes.Equal(out, bin) {
			t.Errorf("%s changed bytes", pass.Name())
		}
	}
}

// failingPass always errors, standing in for a buggy pass.
type failingPass struct{}

func (failingPass) Name() string { return "failing" }
func (failingPass) Run([]byte) ([]byte, bool, error) {
	panic("deliberate failure")
}

func TestPassFailureIsContained(t *testing.T) {
	_, _, err := runContained(failingPass{}, nil)
	if err == nil {
		t.Fatal("expected the panic surfaced as an error")
	}
}

func TestRunSurvivesFailingPass(t *testing.T) {
	bin := compile(t, `(module (func (export "f") (result i32) nop (i32.const 7)))`)

	ctx := context.Background()
	out, stats, err := RunPasses(ctx, bin, []Pass{failingPass{}, &PeepholePass{}})
	if err != nil {
		t.Fatalf("RunPasses: %v", err)
	}
	if err := wasm.Validate(ctx, out); err != nil {
		t.Fatalf("output invalid after failing pass: %v", err)
	}
	if got := callExport(t, out, "f"); got != 7 {
		t.Errorf("f() = %d, want 7", got)
	}
	for _, name := range stats.PassesApplied {
		if name == "failing" {
			t.Error("failing pass recorded as applied")
		}
	}
}

// bulkMemoryModule is a hand-assembled valid module whose body uses the
// 0xFC-prefixed memory.copy instruction: () -> nothing, three zero
// operands, zero-length copy.
var bulkMemoryModule = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, // header
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type: () -> ()
	0x03, 0x02, 0x01, 0x00, // function: func 0 uses type 0
	0x05, 0x03, 0x01, 0x00, 0x01, // memory: min 1, no max
	0x0A, 0x0E, 0x01, 0x0C, 0x00, // code: one 12-byte body, no locals
	0x41, 0x00, 0x41, 0x00, 0x41, 0x00, // i32.const 0 x3
	0xFC, 0x0A, 0x00, 0x00, // memory.copy
	0x0B, // end
}

func TestUnknownOpcodesLeftUntouched(t *testing.T) {
	ctx := context.Background()
	if err := wasm.Validate(ctx, bulkMemoryModule); err != nil {
		t.Fatalf("fixture must be host-valid: %v", err)
	}

	// The rewrite passes cannot describe the 0xFC immediate layout, so
	// they must refuse the body rather than shear the byte stream.
	for _, pass := range []Pass{&PeepholePass{}, &ConstFoldPass{}, &DeadCodePass{}, &BlockMergePass{}, &LocalCompactPass{}} {
		if _, modified, err := pass.Run(bulkMemoryModule); err == nil && modified {
			t.Errorf("%s rewrote a body it cannot decode", pass.Name())
		}
	}

	out, _, err := Run(ctx, bulkMemoryModule, LevelSize)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := wasm.Validate(ctx, out); err != nil {
		t.Fatalf("pipeline corrupted a module it cannot decode: %v", err)
	}
}

func TestRunPipeline(t *testing.T) {
	bin := compile(t, `(module
		(func (export "calc") (result i32)
			(local $unused i64)
			nop
			i32.const 2
			i32.const 3
			i32.add
			return
			i32.const 99
			drop))`)

	ctx := context.Background()
	out, stats, err := Run(ctx, bin, LevelSize)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := wasm.Validate(ctx, out); err != nil {
		t.Fatalf("optimized output invalid: %v", err)
	}
	if got := callExport(t, out, "calc"); got != 5 {
		t.Errorf("calc() = %d, want 5", got)
	}
	if len(out) >= len(bin) {
		t.Errorf("expected the binary to shrink: %d -> %d", len(bin), len(out))
	}
	if stats.SizeSaved != stats.OriginalSize-stats.OptimizedSize {
		t.Error("stats arithmetic inconsistent")
	}
	if len(stats.PassesApplied) == 0 {
		t.Error("expected applied passes recorded")
	}
}
