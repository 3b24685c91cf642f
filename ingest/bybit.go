// Copyright (c) 2025 Quantfeed Corp
//
// Bybit futures trade exports (.csv.gz after decompression):
//   timestamp,symbol,side,size,price,tickDirection,trdMatchID,grossValue,
//   homeNotional,foreignNotional
// timestamp is fractional seconds since the epoch.

package ingest

import (
	"bytes"
	"fmt"

	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

const bybitNumCols = 10

const (
	bybitColTimestamp = 0
	bybitColSide      = 2
	bybitColSize      = 3
	bybitColPrice     = 4
	bybitColTickDir   = 5
)

// ParseBybitTrades parses a decompressed Bybit futures trade export into a
// tick sequence. Rows must be time-ordered within the file (Bybit exports
// are); ordering is validated downstream by the storage upsert.
func ParseBybitTrades(content []byte, opts Options) (*dfh.TickSequence, error) {
	priceDigits, volumeDigits := opts.PriceDigits, opts.VolumeDigits
	if opts.AutoDetectPrecision {
		priceDigits, volumeDigits = detectPrecision(content, bybitColPrice, bybitColSize, bybitNumCols, true)
	}

	sequence := &dfh.TickSequence{
		PriceDigits:  priceDigits,
		VolumeDigits: volumeDigits,
	}

	fields := make([][]byte, 0, bybitNumCols)
	line, rest := nextLine(content)
	if !bytes.HasPrefix(line, []byte("timestamp")) {
		// some exports ship headerless
		rest = content
	}

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
		fields = splitFields(line, fields, bybitNumCols)
		if len(fields) < bybitColTickDir+1 {
			return nil, fmt.Errorf("bybit row %d: %d fields", row, len(fields))
		}

		seconds, err := parseFloatBytes(fields[bybitColTimestamp])
		if err != nil {
			return nil, fmt.Errorf("bybit row %d: timestamp: %w", row, err)
		}
		size, err := parseFloatBytes(fields[bybitColSize])
		if err != nil {
			return nil, fmt.Errorf("bybit row %d: size: %w", row, err)
		}
		price, err := parseFloatBytes(fields[bybitColPrice])
		if err != nil {
			return nil, fmt.Errorf("bybit row %d: price: %w", row, err)
		}

		tick := dfh.MarketTick{
			Last:   price,
			Volume: size,
			TimeMs: uint64(seconds * 1000.0),
		}

		switch {
		case bytes.Equal(fields[bybitColSide], []byte("Buy")):
			tick.SetFlag(dfh.TickFlag_TickFromBuy)
		case bytes.Equal(fields[bybitColSide], []byte("Sell")):
			tick.SetFlag(dfh.TickFlag_TickFromSell)
		default:
			return nil, fmt.Errorf("bybit row %d: side %q", row, fields[2])
		}

		// tickDirection: Plus/Minus ticks moved the price, Zero* did not
		dir := fields[bybitColTickDir]
		if bytes.Equal(dir, []byte("PlusTick")) || bytes.Equal(dir, []byte("MinusTick")) {
			tick.SetFlag(dfh.TickFlag_LastUpdated)
		}
		tick.SetFlag(dfh.TickFlag_VolumeUpdated)

		sequence.Ticks = append(sequence.Ticks, tick)
	}
	return sequence, nil
}
