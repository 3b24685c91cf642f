// Copyright (c) 2025 Quantfeed Corp
//
// Fixed-layout funding-rate segment codec. Funding streams are a few
// records per hour, so there is no columnar stage; the array is dumped
// behind a signature and a count.

package compress

import (
	"encoding/binary"
	"math"

	dfh "github.com/quantfeed/dfh-go"
)

// FundingSignatureRaw marks the raw binary funding format.
const FundingSignatureRaw = 0x00

// EncodeFundingRaw appends the raw encoding of rates to buf and returns it.
func EncodeFundingRaw(buf []byte, rates []dfh.FundingRate) []byte {
	buf = append(buf, FundingSignatureRaw)
	buf = AppendUvarint(buf, uint64(len(rates)))
	var rec [dfh.FundingRate_Size]byte
	for i := range rates {
		rate := &rates[i]
		binary.LittleEndian.PutUint64(rec[0:8], rate.TimeMs)
		binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(rate.Rate))
		binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(rate.MarkPrice))
		binary.LittleEndian.PutUint32(rec[24:28], rate.PeriodHours)
		buf = append(buf, rec[:]...)
	}
	return buf
}

// DecodeFundingRaw decodes a raw funding blob.
func DecodeFundingRaw(input []byte) ([]dfh.FundingRate, error) {
	if len(input) == 0 {
		return nil, dfh.TruncatedError(1, 0)
	}
	if input[0] != FundingSignatureRaw {
		return nil, dfh.ErrBadSignature
	}
	count, offset, err := ReadUvarint(input, 1)
	if err != nil {
		return nil, err
	}
	need := offset + int(count)*dfh.FundingRate_Size
	if count > uint64(len(input)) || need > len(input) {
		return nil, dfh.TruncatedError(need, len(input))
	}
	rates := make([]dfh.FundingRate, count)
	for i := range rates {
		rec := input[offset : offset+dfh.FundingRate_Size]
		rates[i].TimeMs = binary.LittleEndian.Uint64(rec[0:8])
		rates[i].Rate = math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16]))
		rates[i].MarkPrice = math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24]))
		rates[i].PeriodHours = binary.LittleEndian.Uint32(rec[24:28])
		offset += dfh.FundingRate_Size
	}
	return rates, nil
}
