// Copyright (c) 2025 Quantfeed Corp
//
// Columnar bar codec, signature 0x01. Shares the header of the raw format
// and mirrors the tick pipeline per column. The close column is a delta
// chain seeded by the header's initial close; open, high and low are deltas
// against the rolling previous close, so the close column is encoded and
// decoded first. Spread and tick volume are u32 columns; the optional
// volume columns are scaled u64.

package compress

import (
	dfh "github.com/quantfeed/dfh-go"
)

// BarSignatureV1 marks the columnar bar format.
const BarSignatureV1 = 0x01

///////////////////////////////////////////////////////////////////////////////

// EncodeBarsV1 appends the columnar encoding of bars to buf and returns it.
func EncodeBarsV1(buf []byte, bars []dfh.MarketBar, config *dfh.BarCodecConfig, ctx *Context) ([]byte, error) {
	if err := config.Validate(); err != nil {
		return buf, err
	}

	buf = append(buf, BarSignatureV1)
	buf = AppendUvarint(buf, uint64(len(bars)))
	if len(bars) == 0 {
		return buf, nil
	}
	buf = appendBarHeader(buf, bars, config)

	n := len(bars)
	durationMs := config.TimeFrame.SegmentDurationMs()
	baseTime := (bars[0].TimeMs / durationMs) * durationMs

	// time column: in-segment offsets, delta, with-repeats
	timeDeltas := make([]uint32, n)
	prevOffset := uint32(0)
	for i := range bars {
		offset := uint32(bars[i].TimeMs - baseTime)
		timeDeltas[i] = offset - prevOffset
		prevOffset = offset
	}
	buf = appendTimeColumn(buf, timeDeltas, ctx)

	scaledClose := make([]int64, n)
	for i := range bars {
		scaledClose[i] = dfh.ScaleToInt64(bars[i].Close, config.PriceDigits)
	}
	buf = AppendUvarint(buf, EncodeZigZag64(scaledClose[0]))

	// close column: delta chain seeded by the initial close
	zz := make([]uint64, n)
	ref := scaledClose[0]
	for i := range bars {
		zz[i] = EncodeZigZag64(scaledClose[i] - ref)
		ref = scaledClose[i]
	}
	buf = appendDictColumn(buf, zz, rleZeroRuns, ctx)

	// open/high/low columns: deltas against the rolling previous close
	for _, column := range []func(*dfh.MarketBar) float64{
		func(b *dfh.MarketBar) float64 { return b.Open },
		func(b *dfh.MarketBar) float64 { return b.High },
		func(b *dfh.MarketBar) float64 { return b.Low },
	} {
		for i := range bars {
			prevClose := scaledClose[0]
			if i > 0 {
				prevClose = scaledClose[i-1]
			}
			scaled := dfh.ScaleToInt64(column(&bars[i]), config.PriceDigits)
			zz[i] = EncodeZigZag64(scaled - prevClose)
		}
		buf = appendDictColumn(buf, zz, rleZeroRuns, ctx)
	}

	// spread and tick-volume columns
	if config.HasFlag(dfh.BarFlag_EnableSpread) {
		for i := range bars {
			zz[i] = uint64(bars[i].Spread)
		}
		buf = appendDictColumn(buf, zz, rleWithRepeats, ctx)
	}
	if config.HasFlag(dfh.BarFlag_EnableTickVolume) {
		for i := range bars {
			zz[i] = uint64(bars[i].TickVolume)
		}
		buf = appendDictColumn(buf, zz, rleWithRepeats, ctx)
	}

	// optional volume columns
	type volumeColumn struct {
		flag   dfh.BarStorageFlags
		get    func(*dfh.MarketBar) float64
		digits uint8
	}
	for _, col := range []volumeColumn{
		{dfh.BarFlag_EnableVolume, func(b *dfh.MarketBar) float64 { return b.Volume }, config.VolumeDigits},
		{dfh.BarFlag_EnableQuoteVolume, func(b *dfh.MarketBar) float64 { return b.QuoteVolume }, config.QuoteVolumeDigits},
		{dfh.BarFlag_EnableBuyVolume, func(b *dfh.MarketBar) float64 { return b.BuyVolume }, config.VolumeDigits},
		{dfh.BarFlag_EnableBuyQuoteVolume, func(b *dfh.MarketBar) float64 { return b.BuyQuoteVolume }, config.QuoteVolumeDigits},
	} {
		if !config.HasFlag(col.flag) {
			continue
		}
		for i := range bars {
			zz[i] = dfh.ScaleToUint64(col.get(&bars[i]), col.digits)
		}
		buf = appendDictColumn(buf, zz, rleWithRepeats, ctx)
	}

	return buf, nil
}

///////////////////////////////////////////////////////////////////////////////

// DecodeBarsV1 decodes a columnar bar blob.
func DecodeBarsV1(input []byte, ctx *Context) ([]dfh.MarketBar, dfh.BarCodecConfig, error) {
	var config dfh.BarCodecConfig
	if len(input) == 0 {
		return nil, config, dfh.TruncatedError(1, 0)
	}
	if input[0] != BarSignatureV1 {
		return nil, config, dfh.ErrBadSignature
	}

	numBars, offset, err := ReadUvarint(input, 1)
	if err != nil {
		return nil, config, err
	}
	if numBars == 0 {
		return nil, config, nil
	}
	if numBars > uint64(len(input))*2 {
		return nil, config, dfh.OverflowError("bar count", numBars, uint64(len(input))*2)
	}

	baseTime, offset, err := readBarHeader(input, offset, &config)
	if err != nil {
		return nil, config, err
	}

	n := int(numBars)
	bars := make([]dfh.MarketBar, n)

	// time column
	timeDeltas := make([]uint32, n)
	if offset, err = readTimeColumn(input, offset, n, ctx, timeDeltas); err != nil {
		return nil, config, err
	}
	prevOffset := uint32(0)
	for i := range bars {
		prevOffset += timeDeltas[i]
		bars[i].TimeMs = baseTime + uint64(prevOffset)
	}

	initialCloseZz, offset, err := ReadUvarint(input, offset)
	if err != nil {
		return nil, config, err
	}
	initialClose := DecodeZigZag64(initialCloseZz)

	// close column first: it seeds the reference chain for open/high/low
	zz := make([]uint64, n)
	if offset, err = readDictColumn(input, offset, n, rleZeroRuns, ctx, zz); err != nil {
		return nil, config, err
	}
	scaledClose := make([]int64, n)
	ref := initialClose
	for i := range bars {
		ref += DecodeZigZag64(zz[i])
		scaledClose[i] = ref
		bars[i].Close = dfh.UnscaleInt64(ref, config.PriceDigits)
	}

	for _, assign := range []func(*dfh.MarketBar, float64){
		func(b *dfh.MarketBar, v float64) { b.Open = v },
		func(b *dfh.MarketBar, v float64) { b.High = v },
		func(b *dfh.MarketBar, v float64) { b.Low = v },
	} {
		if offset, err = readDictColumn(input, offset, n, rleZeroRuns, ctx, zz); err != nil {
			return nil, config, err
		}
		for i := range bars {
			prevClose := scaledClose[0]
			if i > 0 {
				prevClose = scaledClose[i-1]
			}
			assign(&bars[i], dfh.UnscaleInt64(prevClose+DecodeZigZag64(zz[i]), config.PriceDigits))
		}
	}

	if config.HasFlag(dfh.BarFlag_EnableSpread) {
		if offset, err = readDictColumn(input, offset, n, rleWithRepeats, ctx, zz); err != nil {
			return nil, config, err
		}
		for i := range bars {
			bars[i].Spread = uint32(zz[i])
		}
	}
	if config.HasFlag(dfh.BarFlag_EnableTickVolume) {
		if offset, err = readDictColumn(input, offset, n, rleWithRepeats, ctx, zz); err != nil {
			return nil, config, err
		}
		for i := range bars {
			bars[i].TickVolume = uint32(zz[i])
		}
	}

	type volumeColumn struct {
		flag   dfh.BarStorageFlags
		set    func(*dfh.MarketBar, float64)
		digits uint8
	}
	for _, col := range []volumeColumn{
		{dfh.BarFlag_EnableVolume, func(b *dfh.MarketBar, v float64) { b.Volume = v }, config.VolumeDigits},
		{dfh.BarFlag_EnableQuoteVolume, func(b *dfh.MarketBar, v float64) { b.QuoteVolume = v }, config.QuoteVolumeDigits},
		{dfh.BarFlag_EnableBuyVolume, func(b *dfh.MarketBar, v float64) { b.BuyVolume = v }, config.VolumeDigits},
		{dfh.BarFlag_EnableBuyQuoteVolume, func(b *dfh.MarketBar, v float64) { b.BuyQuoteVolume = v }, config.QuoteVolumeDigits},
	} {
		if !config.HasFlag(col.flag) {
			continue
		}
		if offset, err = readDictColumn(input, offset, n, rleWithRepeats, ctx, zz); err != nil {
			return nil, config, err
		}
		for i := range bars {
			col.set(&bars[i], dfh.UnscaleUint64(zz[i], col.digits))
		}
	}

	return bars, config, nil
}
