// Copyright (c) 2025 Quantfeed Corp
//
// Run-length token streams.
//
// with-repeats: a run of k equal values v whose value fits in `bits` is
// emitted as ((v<<1)|1) | (k<<(bits+1)); a single value (or one whose value
// does not fit `bits`) is emitted as (v<<1). The LSB distinguishes run
// tokens from singletons.
//
// zero-runs: only v==0 forms runs; a run of k zeros is (k<<1)|1, any other
// value is (v<<1).

package compress

///////////////////////////////////////////////////////////////////////////////

// maxSingleton32 bounds values on the u32 token path: a singleton is
// left-shifted once, so values must stay below 2^31. Columns exceeding this
// are promoted to the u64 path before run-length coding.
const maxSingleton32 = 1<<31 - 1

// EncodeWithRepeats32 appends run-length tokens for src to dst and returns
// it. Values must not exceed maxSingleton32.
func EncodeWithRepeats32(src []uint32, bits uint, dst []uint32) []uint32 {
	maxRun := uint32(1)<<(31-bits) - 1
	valueLimit := uint32(1)<<bits - 1
	for i := 0; i < len(src); {
		v := src[i]
		run := uint32(1)
		for int(run) < int(maxRun) && i+int(run) < len(src) && src[i+int(run)] == v {
			run++
		}
		if run >= 2 && v <= valueLimit {
			dst = append(dst, ((v<<1)|1)|(run<<(bits+1)))
			i += int(run)
		} else {
			dst = append(dst, v<<1)
			i++
		}
	}
	return dst
}

// DecodeWithRepeats32 reverses EncodeWithRepeats32, appending decoded values
// to dst.
func DecodeWithRepeats32(tokens []uint32, bits uint, dst []uint32) []uint32 {
	valueMask := uint32(1)<<bits - 1
	for _, token := range tokens {
		if token&1 != 0 {
			v := (token >> 1) & valueMask
			run := token >> (bits + 1)
			for ; run > 0; run-- {
				dst = append(dst, v)
			}
		} else {
			dst = append(dst, token>>1)
		}
	}
	return dst
}

// EncodeWithRepeats64 is the u64 token form used after column promotion.
func EncodeWithRepeats64(src []uint64, bits uint, dst []uint64) []uint64 {
	maxRun := uint64(1)<<(63-bits) - 1
	valueLimit := uint64(1)<<bits - 1
	for i := 0; i < len(src); {
		v := src[i]
		run := uint64(1)
		for run < maxRun && i+int(run) < len(src) && src[i+int(run)] == v {
			run++
		}
		if run >= 2 && v <= valueLimit {
			dst = append(dst, ((v<<1)|1)|(run<<(bits+1)))
			i += int(run)
		} else {
			dst = append(dst, v<<1)
			i++
		}
	}
	return dst
}

// DecodeWithRepeats64 reverses EncodeWithRepeats64.
func DecodeWithRepeats64(tokens []uint64, bits uint, dst []uint64) []uint64 {
	valueMask := uint64(1)<<bits - 1
	for _, token := range tokens {
		if token&1 != 0 {
			v := (token >> 1) & valueMask
			run := token >> (bits + 1)
			for ; run > 0; run-- {
				dst = append(dst, v)
			}
		} else {
			dst = append(dst, token>>1)
		}
	}
	return dst
}

///////////////////////////////////////////////////////////////////////////////

// EncodeZeroRuns32 appends zero-run tokens for src to dst and returns it.
// Only zero forms runs; all other values emit singleton tokens.
func EncodeZeroRuns32(src []uint32, dst []uint32) []uint32 {
	const maxRun = maxSingleton32
	for i := 0; i < len(src); {
		if src[i] == 0 {
			run := uint32(1)
			for run < maxRun && i+int(run) < len(src) && src[i+int(run)] == 0 {
				run++
			}
			dst = append(dst, (run<<1)|1)
			i += int(run)
		} else {
			dst = append(dst, src[i]<<1)
			i++
		}
	}
	return dst
}

// DecodeZeroRuns32 reverses EncodeZeroRuns32, appending decoded values to
// dst.
func DecodeZeroRuns32(tokens []uint32, dst []uint32) []uint32 {
	for _, token := range tokens {
		if token&1 != 0 {
			for run := token >> 1; run > 0; run-- {
				dst = append(dst, 0)
			}
		} else {
			dst = append(dst, token>>1)
		}
	}
	return dst
}

// EncodeZeroRuns64 is the u64 token form used after column promotion.
func EncodeZeroRuns64(src []uint64, dst []uint64) []uint64 {
	const maxRun = uint64(1)<<63 - 1
	for i := 0; i < len(src); {
		if src[i] == 0 {
			run := uint64(1)
			for run < maxRun && i+int(run) < len(src) && src[i+int(run)] == 0 {
				run++
			}
			dst = append(dst, (run<<1)|1)
			i += int(run)
		} else {
			dst = append(dst, src[i]<<1)
			i++
		}
	}
	return dst
}

// DecodeZeroRuns64 reverses EncodeZeroRuns64.
func DecodeZeroRuns64(tokens []uint64, dst []uint64) []uint64 {
	for _, token := range tokens {
		if token&1 != 0 {
			for run := token >> 1; run > 0; run-- {
				dst = append(dst, 0)
			}
		} else {
			dst = append(dst, token>>1)
		}
	}
	return dst
}
