// Copyright (c) 2025 Quantfeed Corp
//
// Bar and tick sequence transforms: cropping, segment splitting, gap
// filling and resampling.
//
// Resampling assumes contiguous input (no missing bars); run FillMissingBars
// first when the source has gaps.

package dfh

import "sort"

///////////////////////////////////////////////////////////////////////////////

// CropTicksByTime returns the sub-slice of ticks with
// startTimeMs <= TimeMs < endTimeMs. Ticks must be time-ordered.
// The result aliases the input.
func CropTicksByTime(ticks []MarketTick, startTimeMs, endTimeMs uint64) []MarketTick {
	lo := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].TimeMs >= startTimeMs
	})
	hi := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].TimeMs >= endTimeMs
	})
	return ticks[lo:hi]
}

// CropBarsByTime returns the sub-slice of bars with
// startTimeMs <= TimeMs < endTimeMs. Bars must be time-ordered.
// The result aliases the input.
func CropBarsByTime(bars []MarketBar, startTimeMs, endTimeMs uint64) []MarketBar {
	lo := sort.Search(len(bars), func(i int) bool {
		return bars[i].TimeMs >= startTimeMs
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return bars[i].TimeMs >= endTimeMs
	})
	return bars[lo:hi]
}

///////////////////////////////////////////////////////////////////////////////

// SplitTicksByHour splits a time-ordered tick batch into hour segments.
// Returns ErrOutOfOrder if the batch violates time order. The segments alias
// the input slice.
func SplitTicksByHour(ticks []MarketTick) ([][]MarketTick, error) {
	if len(ticks) == 0 {
		return nil, nil
	}
	var segments [][]MarketTick
	segStart := 0
	currentHour := MsToHour(ticks[0].TimeMs)
	for i := 1; i < len(ticks); i++ {
		if ticks[i].TimeMs < ticks[i-1].TimeMs {
			return nil, ErrOutOfOrder
		}
		if hour := MsToHour(ticks[i].TimeMs); hour != currentHour {
			segments = append(segments, ticks[segStart:i])
			segStart = i
			currentHour = hour
		}
	}
	return append(segments, ticks[segStart:]), nil
}

// SplitBarsBySegment splits a time-ordered bar batch into storage segments
// of the given duration (see TimeFrame.SegmentDurationMs). Returns
// ErrOutOfOrder if the batch violates time order.
func SplitBarsBySegment(bars []MarketBar, segmentDurationMs uint64) ([][]MarketBar, error) {
	if len(bars) == 0 {
		return nil, nil
	}
	var segments [][]MarketBar
	segStart := 0
	currentUnit := bars[0].TimeMs / segmentDurationMs
	for i := 1; i < len(bars); i++ {
		if bars[i].TimeMs < bars[i-1].TimeMs {
			return nil, ErrOutOfOrder
		}
		if unit := bars[i].TimeMs / segmentDurationMs; unit != currentUnit {
			segments = append(segments, bars[segStart:i])
			segStart = i
			currentUnit = unit
		}
	}
	return append(segments, bars[segStart:]), nil
}

///////////////////////////////////////////////////////////////////////////////

// FillMissingBars fills gaps in a sorted bar sequence with flat zero-volume
// bars carrying the previous close and the last observed spread. The range
// [startTimeMs, endTimeMs) is covered at barIntervalMs steps.
func FillMissingBars(bars []MarketBar, barIntervalMs, startTimeMs, endTimeMs uint64) []MarketBar {
	if len(bars) == 0 {
		return nil
	}
	result := make([]MarketBar, 0, (endTimeMs-startTimeMs)/barIntervalMs+1)

	index := 0
	lastSpread := bars[0].Spread
	for expected := startTimeMs; expected < endTimeMs; expected += barIntervalMs {
		if index < len(bars) && bars[index].TimeMs == expected {
			result = append(result, bars[index])
			lastSpread = bars[index].Spread
			index++
			continue
		}
		price := bars[0].Close
		if index > 0 {
			price = bars[index-1].Close
		}
		result = append(result, MarketBar{
			TimeMs: expected,
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Spread: lastSpread,
		})
	}
	return result
}

///////////////////////////////////////////////////////////////////////////////

// SpreadAggregation selects how the spread column is carried through
// resampling.
type SpreadAggregation uint8

const (
	SpreadAgg_Last SpreadAggregation = iota // spread of the last sub-bar
	SpreadAgg_Avg                           // mean spread over sub-bars
	SpreadAgg_Max                           // maximum spread over sub-bars
)

// ResampleMarketBars aggregates bars into a higher timeframe. Input must be
// sorted and contiguous (no gaps); bucket boundaries are aligned to
// targetIntervalMs. Spread is carried per the given aggregation mode.
func ResampleMarketBars(bars []MarketBar, targetIntervalMs uint64, agg SpreadAggregation) []MarketBar {
	if len(bars) == 0 {
		return nil
	}
	result := make([]MarketBar, 0, len(bars)/2+1)

	current := bars[0]
	current.TimeMs = (bars[0].TimeMs / targetIntervalMs) * targetIntervalMs
	nextBucket := current.TimeMs + targetIntervalMs
	spreadSum := uint64(current.Spread)
	spreadCount := uint64(1)

	flush := func() {
		if agg == SpreadAgg_Avg && spreadCount > 0 {
			current.Spread = uint32(spreadSum / spreadCount)
		}
		result = append(result, current)
	}

	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		if bar.TimeMs >= nextBucket {
			flush()
			current = bar
			current.TimeMs = nextBucket
			nextBucket += targetIntervalMs
			spreadSum = uint64(bar.Spread)
			spreadCount = 1
			continue
		}
		if bar.High > current.High {
			current.High = bar.High
		}
		if bar.Low < current.Low {
			current.Low = bar.Low
		}
		current.Close = bar.Close
		current.Volume += bar.Volume
		current.QuoteVolume += bar.QuoteVolume
		current.BuyVolume += bar.BuyVolume
		current.BuyQuoteVolume += bar.BuyQuoteVolume
		current.TickVolume += bar.TickVolume
		switch agg {
		case SpreadAgg_Last:
			current.Spread = bar.Spread
		case SpreadAgg_Max:
			if bar.Spread > current.Spread {
				current.Spread = bar.Spread
			}
		case SpreadAgg_Avg:
			spreadSum += uint64(bar.Spread)
			spreadCount++
		}
	}
	flush()
	return result
}

// ResampleMarketBarsInPlace is the allocating-free variant: it writes the
// resampled bars over the head of the input slice and returns the shortened
// slice.
func ResampleMarketBarsInPlace(bars []MarketBar, targetIntervalMs uint64, agg SpreadAggregation) []MarketBar {
	resampled := ResampleMarketBars(bars, targetIntervalMs, agg)
	n := copy(bars, resampled)
	return bars[:n]
}
