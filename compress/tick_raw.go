// Copyright (c) 2025 Quantfeed Corp
//
// Raw binary tick fallback, signature 0x00. Fixed-layout dump of the tick
// array after a typed header; used when STORE_RAW_BINARY is set.

package compress

import (
	"encoding/binary"
	"math"

	dfh "github.com/quantfeed/dfh-go"
)

// TickSignatureRaw marks the raw binary tick format.
const TickSignatureRaw = 0x00

///////////////////////////////////////////////////////////////////////////////

// EncodeTicksRaw appends the raw binary encoding of ticks to buf and
// returns it. Fails with ErrInvalidConfig unless STORE_RAW_BINARY is set.
func EncodeTicksRaw(buf []byte, ticks []dfh.MarketTick, config *dfh.TickCodecConfig) ([]byte, error) {
	if err := config.Validate(); err != nil {
		return buf, err
	}
	if !config.HasFlag(dfh.TickCodec_StoreRawBinary) {
		return buf, dfh.ErrInvalidConfig
	}

	buf = append(buf, TickSignatureRaw)
	buf = AppendUvarint(buf, uint64(len(ticks)))

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
	buf = append(buf, header2)

	var rec [dfh.MarketTick_Size]byte
	for i := range ticks {
		tick := &ticks[i]
		binary.LittleEndian.PutUint64(rec[0:8], math.Float64bits(tick.Ask))
		binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(tick.Bid))
		binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(tick.Last))
		binary.LittleEndian.PutUint64(rec[24:32], math.Float64bits(tick.Volume))
		binary.LittleEndian.PutUint64(rec[32:40], tick.TimeMs)
		binary.LittleEndian.PutUint64(rec[40:48], tick.ReceivedMs)
		binary.LittleEndian.PutUint64(rec[48:56], uint64(tick.Flags))
		buf = append(buf, rec[:]...)
	}
	return buf, nil
}

// DecodeTicksRaw decodes a raw binary tick blob.
func DecodeTicksRaw(input []byte) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	var config dfh.TickCodecConfig
	if len(input) == 0 {
		return nil, config, dfh.TruncatedError(1, 0)
	}
	if input[0] != TickSignatureRaw {
		return nil, config, dfh.ErrBadSignature
	}

	numTicks, offset, err := ReadUvarint(input, 1)
	if err != nil {
		return nil, config, err
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
	config.SetFlag(dfh.TickCodec_StoreRawBinary, true)

	need := offset + int(numTicks)*dfh.MarketTick_Size
	if numTicks > uint64(len(input)) || need > len(input) {
		return nil, config, dfh.TruncatedError(need, len(input))
	}

	ticks := make([]dfh.MarketTick, numTicks)
	for i := range ticks {
		rec := input[offset : offset+dfh.MarketTick_Size]
		ticks[i].Ask = math.Float64frombits(binary.LittleEndian.Uint64(rec[0:8]))
		ticks[i].Bid = math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16]))
		ticks[i].Last = math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24]))
		ticks[i].Volume = math.Float64frombits(binary.LittleEndian.Uint64(rec[24:32]))
		ticks[i].TimeMs = binary.LittleEndian.Uint64(rec[32:40])
		ticks[i].ReceivedMs = binary.LittleEndian.Uint64(rec[40:48])
		ticks[i].Flags = dfh.TickUpdateFlags(binary.LittleEndian.Uint64(rec[48:56]))
		offset += dfh.MarketTick_Size
	}
	return ticks, config, nil
}
