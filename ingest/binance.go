// Copyright (c) 2025 Quantfeed Corp
//
// Binance spot and futures trade exports (one CSV inside a .zip):
//   id,price,qty,quoteQty,time,isBuyerMaker,isBestMatch   (spot)
//   id,price,qty,quote_qty,time,is_buyer_maker            (futures)
// time is milliseconds since the epoch. A maker-side buyer means the
// aggressor sold.

package ingest

import (
	"bytes"
	"fmt"

	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

const binanceNumCols = 7

const (
	binanceColPrice      = 1
	binanceColQty        = 2
	binanceColTime       = 4
	binanceColBuyerMaker = 5
	binanceColBestMatch  = 6
)

// ParseBinanceTrades parses a Binance trade CSV (already extracted from its
// zip container) into a tick sequence.
func ParseBinanceTrades(content []byte, opts Options) (*dfh.TickSequence, error) {
	priceDigits, volumeDigits := opts.PriceDigits, opts.VolumeDigits
	if opts.AutoDetectPrecision {
		priceDigits, volumeDigits = detectPrecision(content, binanceColPrice, binanceColQty, binanceNumCols, true)
	}

	sequence := &dfh.TickSequence{
		PriceDigits:  priceDigits,
		VolumeDigits: volumeDigits,
	}

	fields := make([][]byte, 0, binanceNumCols)
	line, rest := nextLine(content)
	if !bytes.HasPrefix(line, []byte("id")) {
		rest = content
	}

	var prevPrice float64
	row := 0
	for len(rest) > 0 {
		line, rest = nextLine(rest)
		if len(line) == 0 {
			continue
		}
		row++
		if opts.MaxRows > 0 && row > opts.MaxRows {
			break
		}
		fields = splitFields(line, fields, binanceNumCols)
		if len(fields) < binanceColBuyerMaker+1 {
			return nil, fmt.Errorf("binance row %d: %d fields", row, len(fields))
		}

		price, err := parseFloatBytes(fields[binanceColPrice])
		if err != nil {
			return nil, fmt.Errorf("binance row %d: price: %w", row, err)
		}
		qty, err := parseFloatBytes(fields[binanceColQty])
		if err != nil {
			return nil, fmt.Errorf("binance row %d: qty: %w", row, err)
		}
		timeMs, err := parseUintBytes(fields[binanceColTime])
		if err != nil {
			return nil, fmt.Errorf("binance row %d: time: %w", row, err)
		}

		tick := dfh.MarketTick{
			Last:   price,
			Volume: qty,
			TimeMs: timeMs,
		}

		if isTrue(fields[binanceColBuyerMaker]) {
			tick.SetFlag(dfh.TickFlag_TickFromSell)
		} else {
			tick.SetFlag(dfh.TickFlag_TickFromBuy)
		}
		if len(fields) > binanceColBestMatch && isTrue(fields[binanceColBestMatch]) {
			tick.SetFlag(dfh.TickFlag_BestMatch)
		}
		if row == 1 || !dfh.CompareWithPrecision(price, prevPrice, priceDigits) {
			tick.SetFlag(dfh.TickFlag_LastUpdated)
		}
		tick.SetFlag(dfh.TickFlag_VolumeUpdated)
		prevPrice = price

		sequence.Ticks = append(sequence.Ticks, tick)
	}
	return sequence, nil
}

// isTrue matches the True/true spellings used across Binance exports.
func isTrue(b []byte) bool {
	return bytes.Equal(b, []byte("True")) || bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("1"))
}
