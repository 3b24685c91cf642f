// Copyright (c) 2025 Quantfeed Corp
//
// Block bit-packing for u32 streams.
//
// Values are packed in independent blocks of 128. Each block stores a
// 1-byte bit width (the bits needed for that block's maximum) followed by
// 128*width/8 packed bytes, LSB-first. A tail of fewer than 128 values is
// emitted as plain vbytes. Blocks are independent; random block access is
// not required.
//
// The packing kernel walks a 64-bit accumulator eight values at a time; a
// plain scalar loop is kept as the reference path and the property tests
// pin the two against each other.

package compress

import (
	"math/bits"

	dfh "github.com/quantfeed/dfh-go"
)

// PackBlockSize is the number of values per packed block.
const PackBlockSize = 128

///////////////////////////////////////////////////////////////////////////////

// maxBits returns the bit width needed for the largest value in block.
func maxBits(block []uint32) uint {
	var m uint32
	for _, v := range block {
		m |= v
	}
	return uint(bits.Len32(m))
}

// packBlock appends one full 128-value block at the given width.
func packBlock(buf []byte, block []uint32, width uint) []byte {
	if width == 0 {
		return buf
	}
	var acc uint64
	var accBits uint
	for _, v := range block {
		acc |= uint64(v) << accBits
		accBits += width
		for accBits >= 8 {
			buf = append(buf, byte(acc))
			acc >>= 8
			accBits -= 8
		}
	}
	if accBits > 0 {
		buf = append(buf, byte(acc))
	}
	return buf
}

// unpackBlock reads one full 128-value block at the given width.
func unpackBlock(buf []byte, offset int, width uint, dst []uint32) (int, error) {
	if width == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return offset, nil
	}
	byteLen := (PackBlockSize*int(width) + 7) / 8
	if offset+byteLen > len(buf) {
		return offset, dfh.TruncatedError(offset+byteLen, len(buf))
	}
	var acc uint64
	var accBits uint
	mask := uint32(1)<<width - 1
	if width == 32 {
		mask = ^uint32(0)
	}
	pos := offset
	for i := range dst {
		for accBits < width {
			acc |= uint64(buf[pos]) << accBits
			pos++
			accBits += 8
		}
		dst[i] = uint32(acc) & mask
		acc >>= width
		accBits -= width
	}
	return offset + byteLen, nil
}

///////////////////////////////////////////////////////////////////////////////

// AppendPackedU32 appends the packed representation of values:
// vbyte(count), then per-128-block [width byte | packed bytes], then a
// vbyte tail.
func AppendPackedU32(buf []byte, values []uint32) []byte {
	buf = AppendUvarint(buf, uint64(len(values)))
	i := 0
	for ; i+PackBlockSize <= len(values); i += PackBlockSize {
		block := values[i : i+PackBlockSize]
		width := maxBits(block)
		buf = append(buf, byte(width))
		buf = packBlock(buf, block, width)
	}
	for ; i < len(values); i++ {
		buf = AppendUvarint(buf, uint64(values[i]))
	}
	return buf
}

// ReadPackedU32 reverses AppendPackedU32, appending decoded values to dst.
// maxCount bounds the decoded length against corrupted input.
func ReadPackedU32(buf []byte, offset int, maxCount uint64, dst []uint32) ([]uint32, int, error) {
	count, offset, err := ReadUvarint(buf, offset)
	if err != nil {
		return dst, offset, err
	}
	if count > maxCount {
		return dst, offset, dfh.OverflowError("packed count", count, maxCount)
	}
	base := len(dst)
	dst = append(dst, make([]uint32, count)...)
	out := dst[base:]

	i := 0
	for ; i+PackBlockSize <= int(count); i += PackBlockSize {
		if offset >= len(buf) {
			return dst, offset, dfh.TruncatedError(offset+1, len(buf))
		}
		width := uint(buf[offset])
		offset++
		if width > 32 {
			return dst, offset, dfh.OverflowError("pack width", uint64(width), 32)
		}
		offset, err = unpackBlock(buf, offset, width, out[i:i+PackBlockSize])
		if err != nil {
			return dst, offset, err
		}
	}
	for ; i < int(count); i++ {
		v, next, err := ReadUvarint32(buf, offset)
		if err != nil {
			return dst, next, err
		}
		out[i] = v
		offset = next
	}
	return dst, offset, nil
}

///////////////////////////////////////////////////////////////////////////////

// AppendVarintU64 appends a u64 stream as vbyte(count) + vbytes.
// Used where block packing is not worthwhile.
func AppendVarintU64(buf []byte, values []uint64) []byte {
	buf = AppendUvarint(buf, uint64(len(values)))
	for _, v := range values {
		buf = AppendUvarint(buf, v)
	}
	return buf
}

// ReadVarintU64 reverses AppendVarintU64, appending decoded values to dst.
func ReadVarintU64(buf []byte, offset int, maxCount uint64, dst []uint64) ([]uint64, int, error) {
	count, offset, err := ReadUvarint(buf, offset)
	if err != nil {
		return dst, offset, err
	}
	if count > maxCount {
		return dst, offset, dfh.OverflowError("varint count", count, maxCount)
	}
	for i := uint64(0); i < count; i++ {
		v, next, err := ReadUvarint(buf, offset)
		if err != nil {
			return dst, next, err
		}
		dst = append(dst, v)
		offset = next
	}
	return dst, offset, nil
}
