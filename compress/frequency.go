// Copyright (c) 2025 Quantfeed Corp
//
// Frequency substitution: map every distinct value to a dense code ordered
// by descending frequency (ties by ascending value), so hot values land in
// the low code range where run-length and bit-packing bite hardest.
//
// The encoder emits the value dictionary sorted ASCENDING (so it delta-
// compresses well) plus an index-permutation vector mapping each sorted
// position to its assigned code. The decoder rebuilds code -> value from
// those two streams.

package compress

import "sort"

///////////////////////////////////////////////////////////////////////////////

// EncodeFrequency32 replaces each src value with its frequency code, writing
// codes into dst (len(dst) >= len(src)). It returns the value dictionary
// sorted ascending and the permutation sortedToCode, where
// sortedToCode[j] is the code assigned to sortedValues[j].
func EncodeFrequency32(src []uint32, dst []uint32) (sortedValues []uint32, sortedToCode []uint32) {
	if len(src) == 0 {
		return nil, nil
	}
	counts := make(map[uint32]uint32, 64)
	for _, v := range src {
		counts[v]++
	}

	type valueCount struct {
		value uint32
		count uint32
	}
	byFreq := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		byFreq = append(byFreq, valueCount{v, c})
	}
	sort.Slice(byFreq, func(i, j int) bool {
		if byFreq[i].count != byFreq[j].count {
			return byFreq[i].count > byFreq[j].count
		}
		return byFreq[i].value < byFreq[j].value
	})

	codeOf := make(map[uint32]uint32, len(byFreq))
	for code, vc := range byFreq {
		codeOf[vc.value] = uint32(code)
	}
	for i, v := range src {
		dst[i] = codeOf[v]
	}

	sortedValues = make([]uint32, 0, len(byFreq))
	for _, vc := range byFreq {
		sortedValues = append(sortedValues, vc.value)
	}
	sort.Slice(sortedValues, func(i, j int) bool { return sortedValues[i] < sortedValues[j] })

	sortedToCode = make([]uint32, len(sortedValues))
	for j, v := range sortedValues {
		sortedToCode[j] = codeOf[v]
	}
	return sortedValues, sortedToCode
}

// DecodeFrequency32 reverses EncodeFrequency32 for a u32 dictionary:
// it rebuilds codeToValue from (sortedValues, sortedToCode) and maps the
// code stream back to values. dst must be at least len(codes) long.
func DecodeFrequency32(codes []uint32, sortedValues []uint32, sortedToCode []uint32, dst []uint32) error {
	codeToValue := make([]uint32, len(sortedValues))
	for j, code := range sortedToCode {
		if int(code) >= len(codeToValue) {
			return errFrequencyCode(uint64(code), uint64(len(codeToValue)))
		}
		codeToValue[code] = sortedValues[j]
	}
	for i, code := range codes {
		if int(code) >= len(codeToValue) {
			return errFrequencyCode(uint64(code), uint64(len(codeToValue)))
		}
		dst[i] = codeToValue[code]
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// EncodeFrequency64 is the u64-dictionary form used after column promotion.
// Codes are still dense u32 (the dictionary can never exceed the tick
// count).
func EncodeFrequency64(src []uint64, dst []uint32) (sortedValues []uint64, sortedToCode []uint32) {
	if len(src) == 0 {
		return nil, nil
	}
	counts := make(map[uint64]uint32, 64)
	for _, v := range src {
		counts[v]++
	}

	type valueCount struct {
		value uint64
		count uint32
	}
	byFreq := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		byFreq = append(byFreq, valueCount{v, c})
	}
	sort.Slice(byFreq, func(i, j int) bool {
		if byFreq[i].count != byFreq[j].count {
			return byFreq[i].count > byFreq[j].count
		}
		return byFreq[i].value < byFreq[j].value
	})

	codeOf := make(map[uint64]uint32, len(byFreq))
	for code, vc := range byFreq {
		codeOf[vc.value] = uint32(code)
	}
	for i, v := range src {
		dst[i] = codeOf[v]
	}

	sortedValues = make([]uint64, 0, len(byFreq))
	for _, vc := range byFreq {
		sortedValues = append(sortedValues, vc.value)
	}
	sort.Slice(sortedValues, func(i, j int) bool { return sortedValues[i] < sortedValues[j] })

	sortedToCode = make([]uint32, len(sortedValues))
	for j, v := range sortedValues {
		sortedToCode[j] = codeOf[v]
	}
	return sortedValues, sortedToCode
}

// DecodeFrequency64 reverses EncodeFrequency64.
func DecodeFrequency64(codes []uint32, sortedValues []uint64, sortedToCode []uint32, dst []uint64) error {
	codeToValue := make([]uint64, len(sortedValues))
	for j, code := range sortedToCode {
		if int(code) >= len(codeToValue) {
			return errFrequencyCode(uint64(code), uint64(len(codeToValue)))
		}
		codeToValue[code] = sortedValues[j]
	}
	for i, code := range codes {
		if int(code) >= len(codeToValue) {
			return errFrequencyCode(uint64(code), uint64(len(codeToValue)))
		}
		dst[i] = codeToValue[code]
	}
	return nil
}
