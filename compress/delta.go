// Copyright (c) 2025 Quantfeed Corp
//
// Chunked prefix-diff delta coding. The "previous" scalar is carried
// between blocks so the transform is reversible in a single pass with a
// running accumulator.

package compress

///////////////////////////////////////////////////////////////////////////////

// DeltaEncodeInt64 writes src[i] - prev into dst, where prev starts at
// initial and tracks src. dst may alias src.
func DeltaEncodeInt64(src []int64, initial int64, dst []int64) {
	prev := initial
	for i, v := range src {
		dst[i] = v - prev
		prev = v
	}
}

// DeltaDecodeInt64 reverses DeltaEncodeInt64: dst[i] = initial + sum(src[..i]).
// dst may alias src.
func DeltaDecodeInt64(src []int64, initial int64, dst []int64) {
	acc := initial
	for i, d := range src {
		acc += d
		dst[i] = acc
	}
}

// DeltaEncodeUint64 is the unsigned form used for time columns, where
// values are non-decreasing and deltas stay non-negative.
func DeltaEncodeUint64(src []uint64, initial uint64, dst []uint64) {
	prev := initial
	for i, v := range src {
		dst[i] = v - prev
		prev = v
	}
}

// DeltaDecodeUint64 reverses DeltaEncodeUint64.
func DeltaDecodeUint64(src []uint64, initial uint64, dst []uint64) {
	acc := initial
	for i, d := range src {
		acc += d
		dst[i] = acc
	}
}

// DeltaEncodeUint32 is the 32-bit unsigned form for in-hour time offsets.
func DeltaEncodeUint32(src []uint32, initial uint32, dst []uint32) {
	prev := initial
	for i, v := range src {
		dst[i] = v - prev
		prev = v
	}
}

// DeltaDecodeUint32 reverses DeltaEncodeUint32.
func DeltaDecodeUint32(src []uint32, initial uint32, dst []uint32) {
	acc := initial
	for i, d := range src {
		acc += d
		dst[i] = acc
	}
}
