// Copyright (c) 2025 Quantfeed Corp
//
// StreamTickBuffer holds at most one hour of ticks for a single
// (symbol, provider) and reconstructs bid/ask while maintaining a
// one-second chunk index for sub-hour span queries.
//
// Loading a non-contiguous hour first primes spread state from the
// preceding hour, then reloads the target hour fresh. Spans returned by
// SetTickSpan borrow the buffer and die on the next load or append.

package core

import (
	"sort"

	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// TickLoader supplies one hour of ticks starting at startTimeMs.
type TickLoader func(startTimeMs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error)

// StreamTickBuffer owns its tick vector and chunk index.
type StreamTickBuffer struct {
	ticks  []dfh.MarketTick
	chunks []uint32

	prevTick    dfh.MarketTick
	span        dfh.MarketTickSpan
	hasPrevData bool

	codecConfig  dfh.TickCodecConfig
	bidaskConfig dfh.BidAskRestoreConfig

	startTimeMs uint64
	endTimeMs   uint64

	noneProcessor    noneSpreadProcessor
	fixedProcessor   fixedSpreadProcessor
	dynamicProcessor dynamicSpreadProcessor
	medianProcessor  medianSpreadProcessor
	processor        spreadProcessor
}

// NewStreamTickBuffer returns an empty buffer with the None spread model.
func NewStreamTickBuffer() *StreamTickBuffer {
	b := &StreamTickBuffer{
		chunks: make([]uint32, chunkCount),
	}
	b.processor = &b.noneProcessor
	return b
}

// SetBidAskConfig installs the reconstruction configuration and selects the
// matching processor.
func (b *StreamTickBuffer) SetBidAskConfig(config dfh.BidAskRestoreConfig) error {
	switch config.Mode {
	case dfh.BidAskModel_None:
		b.processor = &b.noneProcessor
	case dfh.BidAskModel_FixedSpread:
		b.processor = &b.fixedProcessor
	case dfh.BidAskModel_DynamicSpread:
		b.processor = &b.dynamicProcessor
	case dfh.BidAskModel_MedianSpread:
		b.processor = &b.medianProcessor
	default:
		return dfh.ErrInvalidConfig
	}
	b.bidaskConfig = config
	return nil
}

// BidAskConfig returns the active reconstruction configuration.
func (b *StreamTickBuffer) BidAskConfig() dfh.BidAskRestoreConfig {
	return b.bidaskConfig
}

// CodecConfig returns the codec configuration of the last load.
func (b *StreamTickBuffer) CodecConfig() dfh.TickCodecConfig {
	return b.codecConfig
}

// TickCount returns the number of buffered ticks.
func (b *StreamTickBuffer) TickCount() int {
	return len(b.ticks)
}

// StartTimeMs returns the hour start of the current load.
func (b *StreamTickBuffer) StartTimeMs() uint64 {
	return b.startTimeMs
}

// LatestTick returns the last buffered tick, or nil when empty.
func (b *StreamTickBuffer) LatestTick() *dfh.MarketTick {
	if len(b.ticks) == 0 {
		return nil
	}
	return &b.ticks[len(b.ticks)-1]
}

///////////////////////////////////////////////////////////////////////////////

// Fetch loads the hour containing timeMs. A load contiguous with the
// previous one retains the running spread state; any other load primes
// state from the preceding hour first.
func (b *StreamTickBuffer) Fetch(timeMs uint64, loader TickLoader) error {
	startTimeMs := dfh.StartOfHourMs(timeMs)

	var err error
	switch {
	case !b.hasPrevData:
		err = b.reload(startTimeMs, loader)
	case timeMs >= b.endTimeMs && timeMs < b.endTimeMs+dfh.MsPerHour:
		// contiguous next hour: keep the running state
		b.ticks, b.codecConfig, err = loader(startTimeMs)
	default:
		err = b.reload(startTimeMs, loader)
	}
	if err != nil {
		return err
	}

	b.startTimeMs = startTimeMs
	b.endTimeMs = startTimeMs + dfh.MsPerHour
	b.span = dfh.MarketTickSpan{}

	if len(b.ticks) == 0 {
		for i := range b.chunks {
			b.chunks[i] = 0
		}
		b.hasPrevData = false
		return nil
	}

	return b.processor.process(
		b.ticks, b.chunks,
		&b.prevTick, &b.hasPrevData,
		&b.codecConfig, &b.bidaskConfig,
		b.startTimeMs, b.endTimeMs)
}

// reload primes spread state from the hour preceding startTimeMs, then
// loads the target hour fresh.
func (b *StreamTickBuffer) reload(startTimeMs uint64, loader TickLoader) error {
	b.hasPrevData = false
	if startTimeMs < dfh.MsPerHour {
		var err error
		b.ticks, b.codecConfig, err = loader(startTimeMs)
		return err
	}
	prevTimeMs := startTimeMs - dfh.MsPerHour

	prevTicks, prevConfig, err := loader(prevTimeMs)
	if err != nil {
		return err
	}
	if len(prevTicks) > 0 {
		b.codecConfig = prevConfig
		if err := b.processor.process(
			prevTicks, b.chunks,
			&b.prevTick, &b.hasPrevData,
			&b.codecConfig, &b.bidaskConfig,
			prevTimeMs, startTimeMs); err != nil {
			return err
		}
	}

	b.ticks, b.codecConfig, err = loader(startTimeMs)
	return err
}

///////////////////////////////////////////////////////////////////////////////

// SetTickSpan computes the span of buffered ticks with
// startTimeMs <= time < endTimeMs using the chunk index for the coarse
// bounds and linear refinement inside the boundary chunks.
func (b *StreamTickBuffer) SetTickSpan(startTimeMs, endTimeMs uint64) dfh.MarketTickSpan {
	b.span = dfh.MarketTickSpan{}
	if len(b.ticks) == 0 || endTimeMs <= startTimeMs {
		return b.span
	}

	startPos := b.chunkFloor(startTimeMs)
	endPos := b.chunkFloor(endTimeMs + dfh.MsPerSec - 1)

	lo := -1
	for i := startPos; i <= endPos; i++ {
		if b.ticks[i].TimeMs >= startTimeMs {
			lo = i
			break
		}
	}
	if lo < 0 {
		return b.span
	}
	for i := endPos; i >= lo; i-- {
		if b.ticks[i].TimeMs < endTimeMs {
			b.span = dfh.MarketTickSpan{Data: b.ticks[lo : i+1]}
			return b.span
		}
	}
	return b.span
}

// Span returns the last computed span.
func (b *StreamTickBuffer) Span() dfh.MarketTickSpan {
	return b.span
}

// chunkFloor maps a timestamp into the chunk index, clamped to the buffer
// hour.
func (b *StreamTickBuffer) chunkFloor(timeMs uint64) int {
	if timeMs <= b.startTimeMs {
		return int(b.chunks[0])
	}
	sec := dfh.MsToSec(timeMs - b.startTimeMs)
	if sec >= uint64(len(b.chunks)) {
		sec = uint64(len(b.chunks) - 1)
	}
	pos := int(b.chunks[sec])
	if pos >= len(b.ticks) {
		pos = len(b.ticks) - 1
	}
	return pos
}

///////////////////////////////////////////////////////////////////////////////

// DBWriter persists one filled hour of ticks when a real-time append
// crosses the hour boundary.
type DBWriter func(ticks []dfh.MarketTick) error

// AppendTicks streams real-time ticks into the buffer. Appends must be
// strictly after the last stored tick; a filled hour is flushed through
// dbWriter before the buffer moves to the next hour. When
// calcLastUpdated is set, LAST_UPDATED is derived from price changes at
// the configured precision.
func (b *StreamTickBuffer) AppendTicks(newTicks []dfh.MarketTick, dbWriter DBWriter, calcLastUpdated bool) error {
	if len(newTicks) == 0 {
		return nil
	}
	b.span = dfh.MarketTickSpan{}

	for _, tick := range newTicks {
		if len(b.ticks) > 0 && tick.TimeMs <= b.ticks[len(b.ticks)-1].TimeMs {
			return dfh.ErrOutOfOrder
		}

		if len(b.ticks) > 0 && calcLastUpdated {
			last := &b.ticks[len(b.ticks)-1]
			if !dfh.CompareWithPrecision(tick.Last, last.Last, b.codecConfig.PriceDigits) {
				tick.SetFlag(dfh.TickFlag_LastUpdated)
			}
		}

		if len(b.ticks) == 0 {
			b.startTimeMs = dfh.StartOfHourMs(tick.TimeMs)
			b.endTimeMs = b.startTimeMs + dfh.MsPerHour
		}

		if tick.TimeMs >= b.endTimeMs {
			if err := dbWriter(b.ticks); err != nil {
				return err
			}
			b.ticks = b.ticks[:0]
			b.startTimeMs = dfh.StartOfHourMs(tick.TimeMs)
			b.endTimeMs = b.startTimeMs + dfh.MsPerHour
		}

		b.ticks = append(b.ticks, tick)
	}

	return b.processor.process(
		b.ticks, b.chunks,
		&b.prevTick, &b.hasPrevData,
		&b.codecConfig, &b.bidaskConfig,
		b.startTimeMs, b.endTimeMs)
}

///////////////////////////////////////////////////////////////////////////////

// FindTickIndex returns the index of the first buffered tick at or after
// timeMs, using binary search. Exposed for sub-second probes that bypass
// the chunk index.
func (b *StreamTickBuffer) FindTickIndex(timeMs uint64) int {
	return sort.Search(len(b.ticks), func(i int) bool {
		return b.ticks[i].TimeMs >= timeMs
	})
}
