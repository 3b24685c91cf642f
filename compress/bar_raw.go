// Copyright (c) 2025 Quantfeed Corp
//
// Raw binary bar serializer, signature 0x00: fixed-layout dump of the bar
// array after a typed header.

package compress

import (
	"encoding/binary"
	"math"

	dfh "github.com/quantfeed/dfh-go"
)

// BarSignatureRaw marks the raw binary bar format.
const BarSignatureRaw = 0x00

const (
	barHeader1_DigitsMask = 0x1F
	barHeader1_BidBased   = 0x20
	barHeader1_AskBased   = 0x40
	barHeader1_LastBased  = 0x80

	barHeader2_DigitsMask  = 0x1F
	barHeader2_Volume      = 0x20
	barHeader2_QuoteVolume = 0x40
	barHeader2_TickVolume  = 0x80

	barHeader3_DigitsMask     = 0x1F
	barHeader3_BuyVolume      = 0x20
	barHeader3_BuyQuoteVolume = 0x40
	barHeader3_Spread         = 0x80

	barHeader4_SpreadLast = 0x10
	barHeader4_SpreadAvg  = 0x20
	barHeader4_SpreadMax  = 0x40
	barHeader4_Finalized  = 0x80
)

///////////////////////////////////////////////////////////////////////////////

// appendBarHeader appends the four config header bytes plus the timeframe,
// base interval, and expiration varints shared by both bar formats.
func appendBarHeader(buf []byte, bars []dfh.MarketBar, config *dfh.BarCodecConfig) []byte {
	header := config.PriceDigits & barHeader1_DigitsMask
	if config.HasFlag(dfh.BarFlag_BidBased) {
		header |= barHeader1_BidBased
	}
	if config.HasFlag(dfh.BarFlag_AskBased) {
		header |= barHeader1_AskBased
	}
	if config.HasFlag(dfh.BarFlag_LastBased) {
		header |= barHeader1_LastBased
	}
	buf = append(buf, header)

	header = config.VolumeDigits & barHeader2_DigitsMask
	if config.HasFlag(dfh.BarFlag_EnableVolume) {
		header |= barHeader2_Volume
	}
	if config.HasFlag(dfh.BarFlag_EnableQuoteVolume) {
		header |= barHeader2_QuoteVolume
	}
	if config.HasFlag(dfh.BarFlag_EnableTickVolume) {
		header |= barHeader2_TickVolume
	}
	buf = append(buf, header)

	header = config.QuoteVolumeDigits & barHeader3_DigitsMask
	if config.HasFlag(dfh.BarFlag_EnableBuyVolume) {
		header |= barHeader3_BuyVolume
	}
	if config.HasFlag(dfh.BarFlag_EnableBuyQuoteVolume) {
		header |= barHeader3_BuyQuoteVolume
	}
	if config.HasFlag(dfh.BarFlag_EnableSpread) {
		header |= barHeader3_Spread
	}
	buf = append(buf, header)

	header = 0
	if config.HasFlag(dfh.BarFlag_SpreadLast) {
		header |= barHeader4_SpreadLast
	}
	if config.HasFlag(dfh.BarFlag_SpreadAvg) {
		header |= barHeader4_SpreadAvg
	}
	if config.HasFlag(dfh.BarFlag_SpreadMax) {
		header |= barHeader4_SpreadMax
	}
	if config.HasFlag(dfh.BarFlag_FinalizedBars) {
		header |= barHeader4_Finalized
	}
	buf = append(buf, header)

	durationMs := config.TimeFrame.SegmentDurationMs()
	baseUnixInterval := bars[0].TimeMs / durationMs
	baseTime := baseUnixInterval * durationMs

	buf = AppendUvarint(buf, uint64(config.TimeFrame))
	buf = AppendUvarint(buf, baseUnixInterval)
	buf = AppendUvarint(buf, EncodeZigZag64(int64(config.ExpirationTimeMs)-int64(baseTime)))
	buf = AppendUvarint(buf, EncodeZigZag64(int64(config.NextExpirationTimeMs)-int64(baseTime)))
	return buf
}

// readBarHeader decodes the shared bar header into config, returning the
// base time of the segment.
func readBarHeader(input []byte, offset int, config *dfh.BarCodecConfig) (baseTime uint64, next int, err error) {
	if offset+4 > len(input) {
		return 0, offset, dfh.TruncatedError(offset+4, len(input))
	}
	h1, h2, h3, h4 := input[offset], input[offset+1], input[offset+2], input[offset+3]
	offset += 4

	config.PriceDigits = h1 & barHeader1_DigitsMask
	config.SetFlag(dfh.BarFlag_BidBased, h1&barHeader1_BidBased != 0)
	config.SetFlag(dfh.BarFlag_AskBased, h1&barHeader1_AskBased != 0)
	config.SetFlag(dfh.BarFlag_LastBased, h1&barHeader1_LastBased != 0)

	config.VolumeDigits = h2 & barHeader2_DigitsMask
	config.SetFlag(dfh.BarFlag_EnableVolume, h2&barHeader2_Volume != 0)
	config.SetFlag(dfh.BarFlag_EnableQuoteVolume, h2&barHeader2_QuoteVolume != 0)
	config.SetFlag(dfh.BarFlag_EnableTickVolume, h2&barHeader2_TickVolume != 0)

	config.QuoteVolumeDigits = h3 & barHeader3_DigitsMask
	config.SetFlag(dfh.BarFlag_EnableBuyVolume, h3&barHeader3_BuyVolume != 0)
	config.SetFlag(dfh.BarFlag_EnableBuyQuoteVolume, h3&barHeader3_BuyQuoteVolume != 0)
	config.SetFlag(dfh.BarFlag_EnableSpread, h3&barHeader3_Spread != 0)

	config.SetFlag(dfh.BarFlag_SpreadLast, h4&barHeader4_SpreadLast != 0)
	config.SetFlag(dfh.BarFlag_SpreadAvg, h4&barHeader4_SpreadAvg != 0)
	config.SetFlag(dfh.BarFlag_SpreadMax, h4&barHeader4_SpreadMax != 0)
	config.SetFlag(dfh.BarFlag_FinalizedBars, h4&barHeader4_Finalized != 0)

	timeFrame, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return 0, offset, err
	}
	config.TimeFrame = dfh.TimeFrame(timeFrame)

	baseUnixInterval, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return 0, offset, err
	}
	durationMs := config.TimeFrame.SegmentDurationMs()
	baseTime = baseUnixInterval * durationMs

	expZz, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return 0, offset, err
	}
	config.ExpirationTimeMs = uint64(int64(baseTime) + DecodeZigZag64(expZz))

	nextExpZz, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return 0, offset, err
	}
	config.NextExpirationTimeMs = uint64(int64(baseTime) + DecodeZigZag64(nextExpZz))

	return baseTime, offset, nil
}

///////////////////////////////////////////////////////////////////////////////

// EncodeBarsRaw appends the raw binary encoding of bars to buf and returns
// it. Fails with ErrInvalidConfig unless STORE_RAW_BINARY is set.
func EncodeBarsRaw(buf []byte, bars []dfh.MarketBar, config *dfh.BarCodecConfig) ([]byte, error) {
	if err := config.Validate(); err != nil {
		return buf, err
	}
	if !config.HasFlag(dfh.BarFlag_StoreRawBinary) {
		return buf, dfh.ErrInvalidConfig
	}

	buf = append(buf, BarSignatureRaw)
	buf = AppendUvarint(buf, uint64(len(bars)))
	if len(bars) == 0 {
		return buf, nil
	}
	buf = appendBarHeader(buf, bars, config)

	var rec [dfh.MarketBar_Size]byte
	for i := range bars {
		bar := &bars[i]
		binary.LittleEndian.PutUint64(rec[0:8], bar.TimeMs)
		binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(bar.Open))
		binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(bar.High))
		binary.LittleEndian.PutUint64(rec[24:32], math.Float64bits(bar.Low))
		binary.LittleEndian.PutUint64(rec[32:40], math.Float64bits(bar.Close))
		binary.LittleEndian.PutUint64(rec[40:48], math.Float64bits(bar.Volume))
		binary.LittleEndian.PutUint64(rec[48:56], math.Float64bits(bar.QuoteVolume))
		binary.LittleEndian.PutUint64(rec[56:64], math.Float64bits(bar.BuyVolume))
		binary.LittleEndian.PutUint64(rec[64:72], math.Float64bits(bar.BuyQuoteVolume))
		binary.LittleEndian.PutUint32(rec[72:76], bar.Spread)
		binary.LittleEndian.PutUint32(rec[76:80], bar.TickVolume)
		buf = append(buf, rec[:]...)
	}
	return buf, nil
}

// DecodeBarsRaw decodes a raw binary bar blob.
func DecodeBarsRaw(input []byte) ([]dfh.MarketBar, dfh.BarCodecConfig, error) {
	var config dfh.BarCodecConfig
	if len(input) == 0 {
		return nil, config, dfh.TruncatedError(1, 0)
	}
	if input[0] != BarSignatureRaw {
		return nil, config, dfh.ErrBadSignature
	}

	numBars, offset, err := ReadUvarint(input, 1)
	if err != nil {
		return nil, config, err
	}
	config.SetFlag(dfh.BarFlag_StoreRawBinary, true)
	if numBars == 0 {
		return nil, config, nil
	}

	if _, offset, err = readBarHeader(input, offset, &config); err != nil {
		return nil, config, err
	}

	need := offset + int(numBars)*dfh.MarketBar_Size
	if numBars > uint64(len(input)) || need > len(input) {
		return nil, config, dfh.TruncatedError(need, len(input))
	}

	bars := make([]dfh.MarketBar, numBars)
	for i := range bars {
		rec := input[offset : offset+dfh.MarketBar_Size]
		bars[i].TimeMs = binary.LittleEndian.Uint64(rec[0:8])
		bars[i].Open = math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16]))
		bars[i].High = math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24]))
		bars[i].Low = math.Float64frombits(binary.LittleEndian.Uint64(rec[24:32]))
		bars[i].Close = math.Float64frombits(binary.LittleEndian.Uint64(rec[32:40]))
		bars[i].Volume = math.Float64frombits(binary.LittleEndian.Uint64(rec[40:48]))
		bars[i].QuoteVolume = math.Float64frombits(binary.LittleEndian.Uint64(rec[48:56]))
		bars[i].BuyVolume = math.Float64frombits(binary.LittleEndian.Uint64(rec[56:64]))
		bars[i].BuyQuoteVolume = math.Float64frombits(binary.LittleEndian.Uint64(rec[64:72]))
		bars[i].Spread = binary.LittleEndian.Uint32(rec[72:76])
		bars[i].TickVolume = binary.LittleEndian.Uint32(rec[76:80])
		offset += dfh.MarketBar_Size
	}
	return bars, config, nil
}
