// Copyright (c) 2025 Quantfeed Corp
//
// Shared column stream codec.
//
// A dictionary column carries zig-zag deltas through frequency
// substitution, run-length coding, and block bit-packing. Each column tries
// the u32 path first and re-encodes into the u64 varint path when any value
// would not survive the u32 token shift (auto-promotion). The first column
// byte records the path in its LSB so decoders dispatch on it.
//
// Layout, u32 path (flags LSB = 0):
//   flags byte
//   [tokenBits byte]               (with-repeats columns only)
//   vbyte(dictSize)
//   packed u32: sorted-delta value dictionary
//   packed u32: zig-zag-delta index permutation
//   packed u32: run-length tokens over the code stream
//
// Layout, u64 path (flags LSB = 1): same streams, vbyte-encoded.

package compress

import (
	"math/bits"

	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// rleKind selects the run-length stage of a dictionary column.
type rleKind uint8

const (
	rleZeroRuns    rleKind = iota // price: only code 0 forms runs
	rleWithRepeats                // volume: dense small codes repeat
)

const (
	colFlagU64 = 0x01
)

// withRepeatsBits picks the with-repeats value width for a code stream,
// clamped to the 3..5 range where densely repeating scaled values live.
func withRepeatsBits(maxCode uint32) uint {
	b := uint(bits.Len32(maxCode))
	if b < 3 {
		return 3
	}
	if b > 5 {
		return 5
	}
	return b
}

///////////////////////////////////////////////////////////////////////////////

// appendDictColumn encodes one dictionary column of zig-zagged values.
func appendDictColumn(buf []byte, zz []uint64, kind rleKind, ctx *Context) []byte {
	u32Path := true
	for _, v := range zz {
		if v > maxSingleton32 {
			u32Path = false
			break
		}
	}

	codes := ctx.codes(len(zz))

	if u32Path {
		vals := ctx.ValuesU32[:0]
		for _, v := range zz {
			vals = append(vals, uint32(v))
		}
		ctx.ValuesU32 = vals

		sortedValues, sortedToCode := EncodeFrequency32(vals, codes)

		var tokenBits uint
		buf = append(buf, 0x00)
		if kind == rleWithRepeats {
			var maxCode uint32
			for _, c := range codes {
				if c > maxCode {
					maxCode = c
				}
			}
			tokenBits = withRepeatsBits(maxCode)
			buf = append(buf, byte(tokenBits))
		}
		buf = AppendUvarint(buf, uint64(len(sortedValues)))

		// sorted-delta over the ascending dictionary
		diffs := ctx.DeltasU32[:0]
		prev := uint32(0)
		for _, v := range sortedValues {
			diffs = append(diffs, v-prev)
			prev = v
		}
		ctx.DeltasU32 = diffs
		buf = AppendPackedU32(buf, diffs)

		// zig-zag-delta over the index permutation
		perm := diffs[:0]
		prevCode := int64(0)
		for _, c := range sortedToCode {
			perm = append(perm, uint32(EncodeZigZag64(int64(c)-prevCode)))
			prevCode = int64(c)
		}
		buf = AppendPackedU32(buf, perm)

		tokens := ctx.TokensU32[:0]
		if kind == rleZeroRuns {
			tokens = EncodeZeroRuns32(codes, tokens)
		} else {
			tokens = EncodeWithRepeats32(codes, tokenBits, tokens)
		}
		ctx.TokensU32 = tokens
		return AppendPackedU32(buf, tokens)
	}

	// u64 path
	sortedValues, sortedToCode := EncodeFrequency64(zz, codes)

	var tokenBits uint
	buf = append(buf, colFlagU64)
	if kind == rleWithRepeats {
		var maxCode uint32
		for _, c := range codes {
			if c > maxCode {
				maxCode = c
			}
		}
		tokenBits = withRepeatsBits(maxCode)
		buf = append(buf, byte(tokenBits))
	}
	buf = AppendUvarint(buf, uint64(len(sortedValues)))

	diffs := ctx.DeltasU64[:0]
	prev := uint64(0)
	for _, v := range sortedValues {
		diffs = append(diffs, v-prev)
		prev = v
	}
	ctx.DeltasU64 = diffs
	buf = AppendVarintU64(buf, diffs)

	perm := diffs[:0]
	prevCode := int64(0)
	for _, c := range sortedToCode {
		perm = append(perm, EncodeZigZag64(int64(c)-prevCode))
		prevCode = int64(c)
	}
	buf = AppendVarintU64(buf, perm)

	codes64 := ctx.u64(len(codes))
	for i, c := range codes {
		codes64[i] = uint64(c)
	}
	tokens := ctx.TokensU64[:0]
	if kind == rleZeroRuns {
		tokens = EncodeZeroRuns64(codes64, tokens)
	} else {
		tokens = EncodeWithRepeats64(codes64, tokenBits, tokens)
	}
	ctx.TokensU64 = tokens
	return AppendVarintU64(buf, tokens)
}

// readDictColumn decodes one dictionary column of count zig-zagged values
// into dst (which must be count long).
func readDictColumn(buf []byte, offset int, count int, kind rleKind, ctx *Context, dst []uint64) (int, error) {
	if offset >= len(buf) {
		return offset, dfh.TruncatedError(offset+1, len(buf))
	}
	flags := buf[offset]
	offset++

	var tokenBits uint
	if kind == rleWithRepeats {
		if offset >= len(buf) {
			return offset, dfh.TruncatedError(offset+1, len(buf))
		}
		tokenBits = uint(buf[offset])
		offset++
		if tokenBits == 0 || tokenBits > 31 {
			return offset, dfh.OverflowError("token bits", uint64(tokenBits), 31)
		}
	}

	dictSize, offset, err := ReadUvarint(buf, offset)
	if err != nil {
		return offset, err
	}
	if dictSize > uint64(count) {
		return offset, dfh.OverflowError("dictionary size", dictSize, uint64(count))
	}

	if flags&colFlagU64 == 0 {
		diffs := ctx.DeltasU32[:0]
		diffs, offset, err = ReadPackedU32(buf, offset, dictSize, diffs)
		if err != nil {
			return offset, err
		}
		if uint64(len(diffs)) != dictSize {
			return offset, dfh.OverflowError("dictionary entries", uint64(len(diffs)), dictSize)
		}
		sortedValues := ctx.ValuesU32[:0]
		prev := uint32(0)
		for _, d := range diffs {
			prev += d
			sortedValues = append(sortedValues, prev)
		}
		ctx.ValuesU32 = sortedValues

		perm := diffs[:0]
		perm, offset, err = ReadPackedU32(buf, offset, dictSize, perm)
		if err != nil {
			return offset, err
		}
		sortedToCode := make([]uint32, len(perm))
		prevCode := int64(0)
		for i, zz := range perm {
			prevCode += DecodeZigZag64(uint64(zz))
			sortedToCode[i] = uint32(prevCode)
		}

		tokens := ctx.TokensU32[:0]
		tokens, offset, err = ReadPackedU32(buf, offset, uint64(count), tokens)
		if err != nil {
			return offset, err
		}
		ctx.TokensU32 = tokens
		codes := ctx.codes(0)
		if kind == rleZeroRuns {
			codes = DecodeZeroRuns32(tokens, codes)
		} else {
			codes = DecodeWithRepeats32(tokens, tokenBits, codes)
		}
		ctx.CodesU32 = codes
		if len(codes) != count {
			return offset, dfh.OverflowError("column values", uint64(len(codes)), uint64(count))
		}

		vals := make([]uint32, count)
		if err := DecodeFrequency32(codes, sortedValues, sortedToCode, vals); err != nil {
			return offset, err
		}
		for i, v := range vals {
			dst[i] = uint64(v)
		}
		return offset, nil
	}

	// u64 path
	diffs := ctx.DeltasU64[:0]
	diffs, offset, err = ReadVarintU64(buf, offset, dictSize, diffs)
	if err != nil {
		return offset, err
	}
	if uint64(len(diffs)) != dictSize {
		return offset, dfh.OverflowError("dictionary entries", uint64(len(diffs)), dictSize)
	}
	sortedValues := make([]uint64, 0, len(diffs))
	prev := uint64(0)
	for _, d := range diffs {
		prev += d
		sortedValues = append(sortedValues, prev)
	}

	perm := diffs[:0]
	perm, offset, err = ReadVarintU64(buf, offset, dictSize, perm)
	if err != nil {
		return offset, err
	}
	sortedToCode := make([]uint32, len(perm))
	prevCode := int64(0)
	for i, zz := range perm {
		prevCode += DecodeZigZag64(zz)
		sortedToCode[i] = uint32(prevCode)
	}

	tokens := ctx.TokensU64[:0]
	tokens, offset, err = ReadVarintU64(buf, offset, uint64(count), tokens)
	if err != nil {
		return offset, err
	}
	ctx.TokensU64 = tokens
	codes64 := ctx.u64(0)
	if kind == rleZeroRuns {
		codes64 = DecodeZeroRuns64(tokens, codes64)
	} else {
		codes64 = DecodeWithRepeats64(tokens, tokenBits, codes64)
	}
	ctx.ScaledU64 = codes64
	if len(codes64) != count {
		return offset, dfh.OverflowError("column values", uint64(len(codes64)), uint64(count))
	}
	codes := ctx.codes(count)
	for i, c := range codes64 {
		if c > 0xFFFFFFFF {
			return offset, dfh.OverflowError("frequency code", c, 0xFFFFFFFF)
		}
		codes[i] = uint32(c)
	}
	return offset, DecodeFrequency64(codes, sortedValues, sortedToCode, dst)
}

///////////////////////////////////////////////////////////////////////////////

// appendTimeColumn encodes in-segment time deltas (u32) with with-repeats
// run-length coding followed by block packing.
func appendTimeColumn(buf []byte, deltas []uint32, ctx *Context) []byte {
	var maxDelta uint32
	for _, d := range deltas {
		if d > maxDelta {
			maxDelta = d
		}
	}
	tokenBits := uint(bits.Len32(maxDelta))
	if tokenBits < 4 {
		tokenBits = 4
	}
	if tokenBits > 14 {
		tokenBits = 14
	}
	buf = append(buf, byte(tokenBits))
	tokens := ctx.TokensU32[:0]
	tokens = EncodeWithRepeats32(deltas, tokenBits, tokens)
	ctx.TokensU32 = tokens
	return AppendPackedU32(buf, tokens)
}

// readTimeColumn reverses appendTimeColumn into dst (count long).
func readTimeColumn(buf []byte, offset int, count int, ctx *Context, dst []uint32) (int, error) {
	if offset >= len(buf) {
		return offset, dfh.TruncatedError(offset+1, len(buf))
	}
	tokenBits := uint(buf[offset])
	offset++
	if tokenBits == 0 || tokenBits > 31 {
		return offset, dfh.OverflowError("token bits", uint64(tokenBits), 31)
	}
	tokens := ctx.TokensU32[:0]
	tokens, offset, err := ReadPackedU32(buf, offset, uint64(count), tokens)
	if err != nil {
		return offset, err
	}
	ctx.TokensU32 = tokens
	values := DecodeWithRepeats32(tokens, tokenBits, dst[:0])
	if len(values) != count {
		return offset, dfh.OverflowError("time values", uint64(len(values)), uint64(count))
	}
	return offset, nil
}

///////////////////////////////////////////////////////////////////////////////

// appendZigZagColumn encodes a plain zig-zag column (received-time deltas):
// packed u32 when every value fits, vbyte u64 otherwise.
func appendZigZagColumn(buf []byte, zz []uint64, ctx *Context) []byte {
	u32Path := true
	for _, v := range zz {
		if v > 0xFFFFFFFF {
			u32Path = false
			break
		}
	}
	if u32Path {
		buf = append(buf, 0x00)
		vals := ctx.ValuesU32[:0]
		for _, v := range zz {
			vals = append(vals, uint32(v))
		}
		ctx.ValuesU32 = vals
		return AppendPackedU32(buf, vals)
	}
	buf = append(buf, colFlagU64)
	return AppendVarintU64(buf, zz)
}

// readZigZagColumn reverses appendZigZagColumn into dst (count long).
func readZigZagColumn(buf []byte, offset int, count int, ctx *Context, dst []uint64) (int, error) {
	if offset >= len(buf) {
		return offset, dfh.TruncatedError(offset+1, len(buf))
	}
	flags := buf[offset]
	offset++
	if flags&colFlagU64 == 0 {
		vals := ctx.ValuesU32[:0]
		vals, offset, err := ReadPackedU32(buf, offset, uint64(count), vals)
		if err != nil {
			return offset, err
		}
		ctx.ValuesU32 = vals
		if len(vals) != count {
			return offset, dfh.OverflowError("column values", uint64(len(vals)), uint64(count))
		}
		for i, v := range vals {
			dst[i] = uint64(v)
		}
		return offset, nil
	}
	vals, offset, err := ReadVarintU64(buf, offset, uint64(count), dst[:0])
	if err != nil {
		return offset, err
	}
	if len(vals) != count {
		return offset, dfh.OverflowError("column values", uint64(len(vals)), uint64(count))
	}
	return offset, nil
}
