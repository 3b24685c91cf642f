// Copyright (c) 2025 Quantfeed Corp
//
// Zig-zag mapping between signed deltas and unsigned code space.
// Slice kernels are unrolled over 8 lanes; the per-element form is kept for
// tails and as the reference path in tests.

package compress

///////////////////////////////////////////////////////////////////////////////

// EncodeZigZag32 maps a signed 32-bit value to unsigned code space.
func EncodeZigZag32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

// DecodeZigZag32 reverses EncodeZigZag32.
func DecodeZigZag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// EncodeZigZag64 maps a signed 64-bit value to unsigned code space.
func EncodeZigZag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// DecodeZigZag64 reverses EncodeZigZag64.
func DecodeZigZag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

///////////////////////////////////////////////////////////////////////////////

// EncodeZigZagSlice32 writes the zig-zag codes of src into dst.
// dst must be at least len(src) long.
func EncodeZigZagSlice32(src []int32, dst []uint32) {
	n := len(src) &^ 7
	for i := 0; i < n; i += 8 {
		s := src[i : i+8 : i+8]
		d := dst[i : i+8 : i+8]
		d[0] = uint32((s[0] << 1) ^ (s[0] >> 31))
		d[1] = uint32((s[1] << 1) ^ (s[1] >> 31))
		d[2] = uint32((s[2] << 1) ^ (s[2] >> 31))
		d[3] = uint32((s[3] << 1) ^ (s[3] >> 31))
		d[4] = uint32((s[4] << 1) ^ (s[4] >> 31))
		d[5] = uint32((s[5] << 1) ^ (s[5] >> 31))
		d[6] = uint32((s[6] << 1) ^ (s[6] >> 31))
		d[7] = uint32((s[7] << 1) ^ (s[7] >> 31))
	}
	for i := n; i < len(src); i++ {
		dst[i] = EncodeZigZag32(src[i])
	}
}

// DecodeZigZagSlice32 reverses EncodeZigZagSlice32.
func DecodeZigZagSlice32(src []uint32, dst []int32) {
	n := len(src) &^ 7
	for i := 0; i < n; i += 8 {
		s := src[i : i+8 : i+8]
		d := dst[i : i+8 : i+8]
		d[0] = int32(s[0]>>1) ^ -int32(s[0]&1)
		d[1] = int32(s[1]>>1) ^ -int32(s[1]&1)
		d[2] = int32(s[2]>>1) ^ -int32(s[2]&1)
		d[3] = int32(s[3]>>1) ^ -int32(s[3]&1)
		d[4] = int32(s[4]>>1) ^ -int32(s[4]&1)
		d[5] = int32(s[5]>>1) ^ -int32(s[5]&1)
		d[6] = int32(s[6]>>1) ^ -int32(s[6]&1)
		d[7] = int32(s[7]>>1) ^ -int32(s[7]&1)
	}
	for i := n; i < len(src); i++ {
		dst[i] = DecodeZigZag32(src[i])
	}
}

// EncodeZigZagSlice64 writes the zig-zag codes of src into dst.
// dst must be at least len(src) long.
func EncodeZigZagSlice64(src []int64, dst []uint64) {
	n := len(src) &^ 3
	for i := 0; i < n; i += 4 {
		s := src[i : i+4 : i+4]
		d := dst[i : i+4 : i+4]
		d[0] = uint64((s[0] << 1) ^ (s[0] >> 63))
		d[1] = uint64((s[1] << 1) ^ (s[1] >> 63))
		d[2] = uint64((s[2] << 1) ^ (s[2] >> 63))
		d[3] = uint64((s[3] << 1) ^ (s[3] >> 63))
	}
	for i := n; i < len(src); i++ {
		dst[i] = EncodeZigZag64(src[i])
	}
}

// DecodeZigZagSlice64 reverses EncodeZigZagSlice64.
func DecodeZigZagSlice64(src []uint64, dst []int64) {
	n := len(src) &^ 3
	for i := 0; i < n; i += 4 {
		s := src[i : i+4 : i+4]
		d := dst[i : i+4 : i+4]
		d[0] = int64(s[0]>>1) ^ -int64(s[0]&1)
		d[1] = int64(s[1]>>1) ^ -int64(s[1]&1)
		d[2] = int64(s[2]>>1) ^ -int64(s[2]&1)
		d[3] = int64(s[3]>>1) ^ -int64(s[3]&1)
	}
	for i := n; i < len(src); i++ {
		dst[i] = DecodeZigZag64(src[i])
	}
}
