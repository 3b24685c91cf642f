// Copyright (c) 2025 Quantfeed Corp
//
// Unsigned vbyte (varint) primitives: 7 data bits per byte, continuation
// flag in the MSB. Used wherever block bit-packing is not worthwhile
// (u64 streams, small counts, headers).

package compress

import dfh "github.com/quantfeed/dfh-go"

// AppendUvarint appends the vbyte encoding of v to buf.
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// ReadUvarint decodes a vbyte value from buf starting at offset. It returns
// the value and the new offset, or an error if buf ends mid-value.
func ReadUvarint(buf []byte, offset int) (uint64, int, error) {
	var value uint64
	var shift uint
	for {
		if offset >= len(buf) {
			return 0, offset, dfh.TruncatedError(offset+1, len(buf))
		}
		b := buf[offset]
		offset++
		if shift == 63 && b > 1 {
			return 0, offset, dfh.OverflowError("varint", uint64(b), 1)
		}
		value |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return value, offset, nil
		}
		shift += 7
	}
}

// AppendUvarint32 appends the vbyte encoding of a 32-bit value.
func AppendUvarint32(buf []byte, v uint32) []byte {
	return AppendUvarint(buf, uint64(v))
}

// ReadUvarint32 decodes a vbyte value that must fit 32 bits.
func ReadUvarint32(buf []byte, offset int) (uint32, int, error) {
	v, next, err := ReadUvarint(buf, offset)
	if err != nil {
		return 0, next, err
	}
	if v > 0xFFFFFFFF {
		return 0, next, dfh.OverflowError("varint32", v, 0xFFFFFFFF)
	}
	return uint32(v), next, nil
}
