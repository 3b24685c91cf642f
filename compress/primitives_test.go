// Copyright (c) 2025 Quantfeed Corp

package compress_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

func randomWithRepeats(rng *rand.Rand, size int, maxValue uint32, repeatProb float64) []uint32 {
	data := make([]uint32, size)
	data[0] = rng.Uint32() % (maxValue + 1)
	for i := 1; i < size; i++ {
		if rng.Float64() < repeatProb {
			data[i] = data[i-1]
		} else {
			data[i] = rng.Uint32() % (maxValue + 1)
		}
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("ZigZag", func() {
	It("should invert for boundary values", func() {
		for _, v := range []int64{0, 1, -1, 63, -64, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64} {
			Expect(compress.DecodeZigZag64(compress.EncodeZigZag64(v))).To(Equal(v))
		}
		for _, v := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
			Expect(compress.DecodeZigZag32(compress.EncodeZigZag32(v))).To(Equal(v))
		}
	})

	It("unrolled slice kernels should match the scalar path", func() {
		rng := rand.New(rand.NewSource(12345))
		src := make([]int32, 1003) // odd length exercises the tail
		for i := range src {
			src[i] = int32(rng.Uint32())
		}
		unrolled := make([]uint32, len(src))
		compress.EncodeZigZagSlice32(src, unrolled)
		for i, v := range src {
			Expect(unrolled[i]).To(Equal(compress.EncodeZigZag32(v)))
		}
		back := make([]int32, len(src))
		compress.DecodeZigZagSlice32(unrolled, back)
		Expect(back).To(Equal(src))

		src64 := make([]int64, 517)
		for i := range src64 {
			src64[i] = int64(rng.Uint64())
		}
		unrolled64 := make([]uint64, len(src64))
		compress.EncodeZigZagSlice64(src64, unrolled64)
		back64 := make([]int64, len(src64))
		compress.DecodeZigZagSlice64(unrolled64, back64)
		Expect(back64).To(Equal(src64))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("Delta", func() {
	It("should invert with a running accumulator", func() {
		rng := rand.New(rand.NewSource(777))
		src := make([]int64, 400)
		acc := int64(1_000_000)
		for i := range src {
			acc += rng.Int63n(2001) - 1000
			src[i] = acc
		}
		initial := int64(999_500)
		deltas := make([]int64, len(src))
		compress.DeltaEncodeInt64(src, initial, deltas)
		decoded := make([]int64, len(src))
		compress.DeltaDecodeInt64(deltas, initial, decoded)
		Expect(decoded).To(Equal(src))
	})

	It("should compose with zig-zag", func() {
		src := []int64{100, 99, 99, 101, 150, 150, 80}
		deltas := make([]int64, len(src))
		compress.DeltaEncodeInt64(src, src[0], deltas)
		zz := make([]uint64, len(src))
		compress.EncodeZigZagSlice64(deltas, zz)
		unzz := make([]int64, len(src))
		compress.DecodeZigZagSlice64(zz, unzz)
		decoded := make([]int64, len(src))
		compress.DeltaDecodeInt64(unzz, src[0], decoded)
		Expect(decoded).To(Equal(src))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("Frequency", func() {
	It("should be a bijection with a sorted, duplicate-free dictionary", func() {
		rng := rand.New(rand.NewSource(12345))
		src := make([]uint32, 5000)
		for i := range src {
			src[i] = 1 + rng.Uint32()%10
		}
		codes := make([]uint32, len(src))
		sortedValues, sortedToCode := compress.EncodeFrequency32(src, codes)

		for j := 1; j < len(sortedValues); j++ {
			Expect(sortedValues[j]).To(BeNumerically(">", sortedValues[j-1]))
		}
		seen := make(map[uint32]bool)
		for _, code := range sortedToCode {
			Expect(seen[code]).To(BeFalse())
			seen[code] = true
			Expect(int(code)).To(BeNumerically("<", len(sortedValues)))
		}

		decoded := make([]uint32, len(src))
		Expect(compress.DecodeFrequency32(codes, sortedValues, sortedToCode, decoded)).To(Succeed())
		Expect(decoded).To(Equal(src))
	})

	It("should order codes by descending count, ties by ascending value", func() {
		// 7 appears 3x, 3 appears 2x, 5 and 9 appear once
		src := []uint32{7, 3, 7, 5, 7, 3, 9}
		codes := make([]uint32, len(src))
		sortedValues, sortedToCode := compress.EncodeFrequency32(src, codes)
		Expect(sortedValues).To(Equal([]uint32{3, 5, 7, 9}))
		// codes: 7 -> 0, 3 -> 1, then 5 before 9
		Expect(sortedToCode).To(Equal([]uint32{1, 2, 0, 3}))
	})

	It("should round-trip the u64 dictionary path", func() {
		src := []uint64{1 << 40, 1 << 40, 7, 7, 7, 1 << 40, 9}
		codes := make([]uint32, len(src))
		sortedValues, sortedToCode := compress.EncodeFrequency64(src, codes)
		decoded := make([]uint64, len(src))
		Expect(compress.DecodeFrequency64(codes, sortedValues, sortedToCode, decoded)).To(Succeed())
		Expect(decoded).To(Equal(src))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("RunLength", func() {
	It("with-repeats should invert across sizes and widths", func() {
		rng := rand.New(rand.NewSource(12345))
		for _, size := range []int{1, 2, 1000, 10000} {
			for _, bits := range []uint{3, 5, 8, 12, 16} {
				src := randomWithRepeats(rng, size, uint32(1)<<bits-1, 0.7)
				tokens := compress.EncodeWithRepeats32(src, bits, nil)
				decoded := compress.DecodeWithRepeats32(tokens, bits, nil)
				Expect(decoded).To(Equal(src))
			}
		}
	})

	It("with-repeats should pass oversized values through as singletons", func() {
		bits := uint(4)
		src := []uint32{100, 100, 100, 3, 3, 3}
		tokens := compress.EncodeWithRepeats32(src, bits, nil)
		// 100 does not fit 4 bits: three singletons; 3 fits: one run token
		Expect(len(tokens)).To(Equal(4))
		Expect(compress.DecodeWithRepeats32(tokens, bits, nil)).To(Equal(src))
	})

	It("zero-runs should collapse zeros only", func() {
		src := []uint32{0, 0, 0, 0, 5, 0, 7, 7, 0, 0}
		tokens := compress.EncodeZeroRuns32(src, nil)
		Expect(len(tokens)).To(Equal(6)) // run(4), 5, run(1), 7, 7, run(2)
		Expect(compress.DecodeZeroRuns32(tokens, nil)).To(Equal(src))
	})

	It("u64 variants should invert", func() {
		src := []uint64{0, 0, 1 << 50, 9, 9, 9, 0}
		Expect(compress.DecodeZeroRuns64(compress.EncodeZeroRuns64(src, nil), nil)).To(Equal(src))
		Expect(compress.DecodeWithRepeats64(compress.EncodeWithRepeats64(src, 4, nil), 4, nil)).To(Equal(src))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("BitPacking", func() {
	It("should invert for full blocks, tails and zero blocks", func() {
		rng := rand.New(rand.NewSource(12345))
		for _, size := range []int{0, 1, 127, 128, 129, 1000} {
			for _, width := range []uint{0, 1, 7, 13, 32} {
				src := make([]uint32, size)
				for i := range src {
					if width == 32 {
						src[i] = rng.Uint32()
					} else {
						src[i] = rng.Uint32() & (uint32(1)<<width - 1)
					}
				}
				buf := compress.AppendPackedU32(nil, src)
				decoded, offset, err := compress.ReadPackedU32(buf, 0, uint64(size), nil)
				Expect(err).To(BeNil())
				Expect(offset).To(Equal(len(buf)))
				if size == 0 {
					Expect(decoded).To(BeEmpty())
				} else {
					Expect(decoded).To(Equal(src))
				}
			}
		}
	})

	It("should reject truncated input", func() {
		src := make([]uint32, 256)
		for i := range src {
			src[i] = uint32(i)
		}
		buf := compress.AppendPackedU32(nil, src)
		_, _, err := compress.ReadPackedU32(buf[:len(buf)/2], 0, 256, nil)
		Expect(err).ToNot(BeNil())
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("Varint", func() {
	It("should invert across the value range", func() {
		for _, v := range []uint64{0, 1, 127, 128, 16383, 16384, math.MaxUint32, math.MaxUint64} {
			buf := compress.AppendUvarint(nil, v)
			decoded, offset, err := compress.ReadUvarint(buf, 0)
			Expect(err).To(BeNil())
			Expect(offset).To(Equal(len(buf)))
			Expect(decoded).To(Equal(v))
		}
	})

	It("should reject a value that ends mid-stream", func() {
		buf := compress.AppendUvarint(nil, math.MaxUint64)
		_, _, err := compress.ReadUvarint(buf[:3], 0)
		Expect(err).ToNot(BeNil())
	})
})
