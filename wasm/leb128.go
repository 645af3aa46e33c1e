package wasm

import (
	"encoding/binary"
	"errors"
	"math"
)

// LEB128 and IEEE754 primitives for the WebAssembly binary format.
// The append/decode pairs operate on byte slices because both the builder
// and the optimizer's section scanner work over in-memory buffers.

// ErrOverflow is returned when a LEB128 value exceeds the maximum bit width.
var ErrOverflow = errors.New("leb128: overflow")

// ErrTruncated is returned when a varint runs past the end of the input.
var ErrTruncated = errors.New("leb128: truncated")

// AppendULEB128 appends the unsigned LEB128 encoding of v.
func AppendULEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendSLEB128 appends the signed LEB128 encoding of v.
func AppendSLEB128(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// DecodeULEB128 decodes an unsigned LEB128 value from the front of data,
// returning the value and the number of bytes consumed.
func DecodeULEB128(data []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, b := range data {
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, ErrTruncated
}

// DecodeSLEB128 decodes a signed LEB128 value from the front of data,
// returning the value and the number of bytes consumed.
func DecodeSLEB128(data []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i, b := range data {
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, i + 1, nil
		}
		if shift >= 70 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, ErrTruncated
}

// ULEB128Len returns the encoded length of v without allocating.
func ULEB128Len(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// AppendF32 appends the 4-byte little-endian IEEE754 encoding of v.
func AppendF32(dst []byte, v float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return append(dst, buf[:]...)
}

// AppendF64 appends the 8-byte little-endian IEEE754 encoding of v.
func AppendF64(dst []byte, v float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return append(dst, buf[:]...)
}

// DecodeF32 decodes a little-endian float32 from the front of data.
func DecodeF32(data []byte) (float32, error) {
	if len(data) < 4 {
		return 0, ErrTruncated
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// DecodeF64 decodes a little-endian float64 from the front of data.
func DecodeF64(data []byte) (float64, error) {
	if len(data) < 8 {
		return 0, ErrTruncated
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
}
