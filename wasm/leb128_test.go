package wasm

import (
	"bytes"
	"math"
	"testing"
)

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 63, 64, 127, 128, 129, 255, 256,
		16383, 16384, 65535, math.MaxUint32, math.MaxUint32 + 1,
		math.MaxUint64,
	}
	for _, v := range values {
		enc := AppendULEB128(nil, v)
		got, n, err := DecodeULEB128(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
		if n != len(enc) {
			t.Errorf("value %d: consumed %d of %d bytes", v, n, len(enc))
		}
		if n != ULEB128Len(v) {
			t.Errorf("value %d: ULEB128Len says %d, encoded %d", v, ULEB128Len(v), n)
		}
	}
}

func TestSLEB128RoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 2, -2, 63, -64, 64, -65, 127, -128, 128,
		8191, -8192, math.MaxInt32, math.MinInt32,
		math.MaxInt64, math.MinInt64,
	}
	for _, v := range values {
		enc := AppendSLEB128(nil, v)
		got, n, err := DecodeSLEB128(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
		if n != len(enc) {
			t.Errorf("value %d: consumed %d of %d bytes", v, n, len(enc))
		}
	}
}

func TestKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"u_0", AppendULEB128(nil, 0), []byte{0x00}},
		{"u_624485", AppendULEB128(nil, 624485), []byte{0xE5, 0x8E, 0x26}},
		{"s_neg1", AppendSLEB128(nil, -1), []byte{0x7F}},
		{"s_neg123456", AppendSLEB128(nil, -123456), []byte{0xC0, 0xBB, 0x78}},
		{"s_64", AppendSLEB128(nil, 64), []byte{0xC0, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got % X, want % X", tt.got, tt.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		if _, _, err := DecodeULEB128([]byte{0x80, 0x80}); err != ErrTruncated {
			t.Errorf("expected ErrTruncated, got %v", err)
		}
	})
	t.Run("overflow", func(t *testing.T) {
		long := bytes.Repeat([]byte{0x80}, 11)
		if _, _, err := DecodeULEB128(long); err != ErrOverflow {
			t.Errorf("expected ErrOverflow, got %v", err)
		}
		if _, _, err := DecodeSLEB128(long); err != ErrOverflow {
			t.Errorf("expected ErrOverflow, got %v", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, _, err := DecodeSLEB128(nil); err != ErrTruncated {
			t.Errorf("expected ErrTruncated, got %v", err)
		}
	})
}

func TestFloatRoundTrip(t *testing.T) {
	f32s := []float32{0, 1, -1, 3.14, float32(math.Inf(1)), math.MaxFloat32}
	for _, v := range f32s {
		enc := AppendF32(nil, v)
		if len(enc) != 4 {
			t.Fatalf("f32 width %d", len(enc))
		}
		got, err := DecodeF32(enc)
		if err != nil || got != v {
			t.Errorf("f32 round trip %v: got %v err %v", v, got, err)
		}
	}

	f64s := []float64{0, 1, -1, 2.718281828, math.Inf(-1), math.MaxFloat64}
	for _, v := range f64s {
		enc := AppendF64(nil, v)
		if len(enc) != 8 {
			t.Fatalf("f64 width %d", len(enc))
		}
		got, err := DecodeF64(enc)
		if err != nil || got != v {
			t.Errorf("f64 round trip %v: got %v err %v", v, got, err)
		}
	}

	// NaN must survive bit-exactly, not just semantically.
	nan := AppendF64(nil, math.NaN())
	back, _ := DecodeF64(nan)
	if !math.IsNaN(back) {
		t.Error("NaN did not round trip")
	}
}
