// Copyright (c) 2025 Quantfeed Corp
//
// Columnar tick codec, signature 0x01.
//
// Header layout (bit-exact):
//   byte 0     signature 0x01
//   vbyte      tick count
//   byte       header1 = price_digits[0..5) | tick_flags[5] | trade_based[6]
//   byte       header2 = volume_digits[0..5) | recv_time[5] | enable_volume[6]
//              | last_updated_of_tick0[7]
//   vbyte      base unix hour
//   vbyte      initial scaled price (u64)
//   vbyte      tick count echo (sanity)
// followed by the price, volume, time, side-flag and received-time columns.

package compress

import (
	dfh "github.com/quantfeed/dfh-go"
)

// TickSignatureV1 marks the columnar tick format.
const TickSignatureV1 = 0x01

const (
	tickHeader1_DigitsMask = 0x1F
	tickHeader1_TickFlags  = 0x20
	tickHeader1_TradeBased = 0x40

	tickHeader2_DigitsMask   = 0x1F
	tickHeader2_RecvTime     = 0x20
	tickHeader2_EnableVolume = 0x40
	tickHeader2_Last0Updated = 0x80
)

///////////////////////////////////////////////////////////////////////////////

// EncodeTicksV1 appends the columnar encoding of ticks to buf and returns
// it. Config precision is asserted before any column is touched.
func EncodeTicksV1(buf []byte, ticks []dfh.MarketTick, config *dfh.TickCodecConfig, ctx *Context) ([]byte, error) {
	if err := config.Validate(); err != nil {
		return buf, err
	}

	buf = append(buf, TickSignatureV1)
	buf = AppendUvarint(buf, uint64(len(ticks)))
	if len(ticks) == 0 {
		return buf, nil
	}

	header1 := config.PriceDigits & tickHeader1_DigitsMask
	if config.HasFlag(dfh.TickCodec_EnableTickFlags) {
		header1 |= tickHeader1_TickFlags
	}
	if config.HasFlag(dfh.TickCodec_TradeBased) {
		header1 |= tickHeader1_TradeBased
	}
	buf = append(buf, header1)

	header2 := config.VolumeDigits & tickHeader2_DigitsMask
	if config.HasFlag(dfh.TickCodec_EnableRecvTime) {
		header2 |= tickHeader2_RecvTime
	}
	if config.HasFlag(dfh.TickCodec_EnableVolume) {
		header2 |= tickHeader2_EnableVolume
	}
	if ticks[0].HasFlag(dfh.TickFlag_LastUpdated) {
		header2 |= tickHeader2_Last0Updated
	}
	buf = append(buf, header2)

	baseUnixHour := dfh.MsToHour(ticks[0].TimeMs)
	baseMs := dfh.HourToMs(baseUnixHour)
	initialPrice := uint64(dfh.ScaleToInt64(ticks[0].Last, config.PriceDigits))

	buf = AppendUvarint(buf, baseUnixHour)
	buf = AppendUvarint(buf, initialPrice)
	buf = AppendUvarint(buf, uint64(len(ticks)))

	n := len(ticks)

	// price column: scale, delta vs initial, zig-zag, dictionary pipeline
	zz := make([]uint64, n)
	prevScaled := int64(initialPrice)
	for i := range ticks {
		scaled := dfh.ScaleToInt64(ticks[i].Last, config.PriceDigits)
		zz[i] = EncodeZigZag64(scaled - prevScaled)
		prevScaled = scaled
	}
	buf = appendDictColumn(buf, zz, rleZeroRuns, ctx)

	// volume column
	if config.HasFlag(dfh.TickCodec_EnableVolume) {
		prevVol := int64(0)
		for i := range ticks {
			scaled := int64(dfh.ScaleToUint64(ticks[i].Volume, config.VolumeDigits))
			zz[i] = EncodeZigZag64(scaled - prevVol)
			prevVol = scaled
		}
		buf = appendDictColumn(buf, zz, rleWithRepeats, ctx)
	}

	// time column: in-hour offsets never overflow u32 within one segment
	timeDeltas := make([]uint32, n)
	prevOffset := uint32(0)
	for i := range ticks {
		offset := uint32(ticks[i].TimeMs - baseMs)
		timeDeltas[i] = offset - prevOffset
		prevOffset = offset
	}
	buf = appendTimeColumn(buf, timeDeltas, ctx)

	// side-flag column, one bit per tick, MSB-first
	if config.HasFlag(dfh.TickCodec_EnableTickFlags) {
		sideBytes := make([]byte, (n+7)/8)
		for i := range ticks {
			if ticks[i].HasFlag(dfh.TickFlag_TickFromBuy) {
				sideBytes[i/8] |= 0x80 >> (i % 8)
			}
		}
		buf = append(buf, sideBytes...)
	}

	// received-time column: delta from time_ms, zig-zag
	if config.HasFlag(dfh.TickCodec_EnableRecvTime) {
		for i := range ticks {
			zz[i] = EncodeZigZag64(int64(ticks[i].ReceivedMs) - int64(ticks[i].TimeMs))
		}
		buf = appendZigZagColumn(buf, zz, ctx)
	}

	return buf, nil
}

///////////////////////////////////////////////////////////////////////////////

// DecodeTicksV1 decodes a columnar tick blob. It returns the ticks and the
// config that produced them. Errors never leave partial output.
func DecodeTicksV1(input []byte, ctx *Context) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	var config dfh.TickCodecConfig
	if len(input) == 0 {
		return nil, config, dfh.TruncatedError(1, 0)
	}
	if input[0] != TickSignatureV1 {
		return nil, config, dfh.ErrBadSignature
	}

	numTicks, offset, err := ReadUvarint(input, 1)
	if err != nil {
		return nil, config, err
	}
	if numTicks == 0 {
		return nil, config, nil
	}
	if numTicks > uint64(len(input))*2 {
		return nil, config, dfh.OverflowError("tick count", numTicks, uint64(len(input))*2)
	}

	if offset+2 > len(input) {
		return nil, config, dfh.TruncatedError(offset+2, len(input))
	}
	header1 := input[offset]
	header2 := input[offset+1]
	offset += 2

	config.PriceDigits = header1 & tickHeader1_DigitsMask
	config.SetFlag(dfh.TickCodec_EnableTickFlags, header1&tickHeader1_TickFlags != 0)
	config.SetFlag(dfh.TickCodec_TradeBased, header1&tickHeader1_TradeBased != 0)
	config.VolumeDigits = header2 & tickHeader2_DigitsMask
	config.SetFlag(dfh.TickCodec_EnableRecvTime, header2&tickHeader2_RecvTime != 0)
	config.SetFlag(dfh.TickCodec_EnableVolume, header2&tickHeader2_EnableVolume != 0)
	last0Updated := header2&tickHeader2_Last0Updated != 0

	baseUnixHour, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return nil, config, err
	}
	initialPrice, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return nil, config, err
	}
	echo, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return nil, config, err
	}
	if echo != numTicks {
		return nil, config, dfh.OverflowError("tick count echo", echo, numTicks)
	}

	n := int(numTicks)
	baseMs := dfh.HourToMs(baseUnixHour)
	ticks := make([]dfh.MarketTick, n)

	// price column
	zz := make([]uint64, n)
	if offset, err = readDictColumn(input, offset, n, rleZeroRuns, ctx, zz); err != nil {
		return nil, config, err
	}
	prevScaled := int64(initialPrice)
	for i := range ticks {
		delta := DecodeZigZag64(zz[i])
		prevScaled += delta
		ticks[i].Last = dfh.UnscaleInt64(prevScaled, config.PriceDigits)
		if i == 0 {
			if last0Updated {
				ticks[i].SetFlag(dfh.TickFlag_LastUpdated)
			}
		} else if delta != 0 {
			ticks[i].SetFlag(dfh.TickFlag_LastUpdated)
		}
	}

	// volume column
	if config.HasFlag(dfh.TickCodec_EnableVolume) {
		if offset, err = readDictColumn(input, offset, n, rleWithRepeats, ctx, zz); err != nil {
			return nil, config, err
		}
		prevVol := int64(0)
		for i := range ticks {
			prevVol += DecodeZigZag64(zz[i])
			ticks[i].Volume = dfh.UnscaleInt64(prevVol, config.VolumeDigits)
			ticks[i].SetFlag(dfh.TickFlag_VolumeUpdated)
		}
	}

	// time column
	timeDeltas := make([]uint32, n)
	if offset, err = readTimeColumn(input, offset, n, ctx, timeDeltas); err != nil {
		return nil, config, err
	}
	prevOffset := uint32(0)
	for i := range ticks {
		prevOffset += timeDeltas[i]
		ticks[i].TimeMs = baseMs + uint64(prevOffset)
	}

	// side-flag column
	if config.HasFlag(dfh.TickCodec_EnableTickFlags) {
		sideLen := (n + 7) / 8
		if offset+sideLen > len(input) {
			return nil, config, dfh.TruncatedError(offset+sideLen, len(input))
		}
		sideBytes := input[offset : offset+sideLen]
		offset += sideLen
		for i := range ticks {
			if sideBytes[i/8]&(0x80>>(i%8)) != 0 {
				ticks[i].SetFlag(dfh.TickFlag_TickFromBuy)
			} else {
				ticks[i].SetFlag(dfh.TickFlag_TickFromSell)
			}
		}
	}

	// received-time column
	if config.HasFlag(dfh.TickCodec_EnableRecvTime) {
		if offset, err = readZigZagColumn(input, offset, n, ctx, zz); err != nil {
			return nil, config, err
		}
		for i := range ticks {
			ticks[i].ReceivedMs = uint64(int64(ticks[i].TimeMs) + DecodeZigZag64(zz[i]))
		}
	}

	return ticks, config, nil
}
