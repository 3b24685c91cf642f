// Copyright (c) 2025 Quantfeed Corp
//
// Bid/ask spread reconstruction. Four interchangeable processors share one
// signature and run as a single forward pass over an hour of ticks,
// populating the one-second chunk index as a byproduct.
//
// Trade ticks carry exactly one of TICK_FROM_BUY / TICK_FROM_SELL; anything
// else is a fatal ErrInvalidTick.

package core

import (
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// chunkCount is the size of the per-second chunk index: one entry per
// second of the hour plus a sentinel.
const chunkCount = int(dfh.SecPerHour) + 1

// spreadProcessor restores bid/ask over one buffer load. Implementations
// own their cross-call state inline.
type spreadProcessor interface {
	process(
		ticks []dfh.MarketTick,
		chunks []uint32,
		prevTick *dfh.MarketTick,
		hasPrevData *bool,
		codecConfig *dfh.TickCodecConfig,
		bidaskConfig *dfh.BidAskRestoreConfig,
		startTimeMs, endTimeMs uint64,
	) error
}

// restoreDigits resolves the reconstruction precision: the bid/ask config
// wins when set, otherwise the codec precision of the buffer.
func restoreDigits(codecConfig *dfh.TickCodecConfig, bidaskConfig *dfh.BidAskRestoreConfig) uint8 {
	if bidaskConfig.PriceDigits != 0 {
		return bidaskConfig.PriceDigits
	}
	return codecConfig.PriceDigits
}

///////////////////////////////////////////////////////////////////////////////

// chunkIndexer fills the per-second offset table while the processors walk
// the tick array. Entry k ends up holding the index of the first tick with
// time_ms >= startTimeMs + k*1000.
type chunkIndexer struct {
	chunks         []uint32
	fragment       int
	fragmentTimeMs uint64
}

func newChunkIndexer(chunks []uint32, startTimeMs uint64) chunkIndexer {
	chunks[0] = 0
	return chunkIndexer{
		chunks:         chunks,
		fragment:       1,
		fragmentTimeMs: startTimeMs + dfh.MsPerSec,
	}
}

// advance records every second boundary crossed up to the tick at index i.
func (c *chunkIndexer) advance(tickTimeMs uint64, i int) {
	for tickTimeMs >= c.fragmentTimeMs && c.fragment < len(c.chunks) {
		c.chunks[c.fragment] = uint32(i)
		c.fragment++
		c.fragmentTimeMs += dfh.MsPerSec
	}
}

// finish points every remaining entry at the last tick.
func (c *chunkIndexer) finish(tickCount int) {
	for ; c.fragment < len(c.chunks); c.fragment++ {
		c.chunks[c.fragment] = uint32(tickCount - 1)
	}
}

///////////////////////////////////////////////////////////////////////////////

// noneSpreadProcessor leaves bid/ask as stored; it only maintains the chunk
// index and derives LAST_UPDATED for the first tick against the previous
// buffer.
type noneSpreadProcessor struct{}

func (p *noneSpreadProcessor) process(
	ticks []dfh.MarketTick,
	chunks []uint32,
	prevTick *dfh.MarketTick,
	hasPrevData *bool,
	codecConfig *dfh.TickCodecConfig,
	bidaskConfig *dfh.BidAskRestoreConfig,
	startTimeMs, endTimeMs uint64,
) error {
	if len(ticks) == 0 {
		return nil
	}
	digits := restoreDigits(codecConfig, bidaskConfig)

	if *hasPrevData {
		if !dfh.CompareWithPrecision(ticks[0].Last, prevTick.Last, digits) {
			ticks[0].SetFlag(dfh.TickFlag_LastUpdated)
		}
	}

	indexer := newChunkIndexer(chunks, startTimeMs)
	for i := range ticks {
		indexer.advance(ticks[i].TimeMs, i)
	}
	indexer.finish(len(ticks))

	*prevTick = ticks[len(ticks)-1]
	*hasPrevData = true
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// fixedSpreadProcessor applies a constant spread around the trade price:
// BUY prints sit on the ask, SELL prints on the bid.
type fixedSpreadProcessor struct{}

func (p *fixedSpreadProcessor) process(
	ticks []dfh.MarketTick,
	chunks []uint32,
	prevTick *dfh.MarketTick,
	hasPrevData *bool,
	codecConfig *dfh.TickCodecConfig,
	bidaskConfig *dfh.BidAskRestoreConfig,
	startTimeMs, endTimeMs uint64,
) error {
	if len(ticks) == 0 {
		return nil
	}
	digits := restoreDigits(codecConfig, bidaskConfig)
	spread := float64(bidaskConfig.FixedSpread) * dfh.StepSize(digits)

	tick := &ticks[0]
	if *hasPrevData {
		if !dfh.CompareWithPrecision(tick.Last, prevTick.Last, digits) {
			tick.SetFlag(dfh.TickFlag_LastUpdated)
		}
	}
	if err := applyFixedSides(tick, spread); err != nil {
		return err
	}
	if tick.HasFlag(dfh.TickFlag_LastUpdated) {
		tick.SetFlag(dfh.TickFlag_AskUpdated)
		tick.SetFlag(dfh.TickFlag_BidUpdated)
	}

	indexer := newChunkIndexer(chunks, startTimeMs)
	indexer.advance(tick.TimeMs, 0)

	for i := 1; i < len(ticks); i++ {
		tick := &ticks[i]
		if tick.HasFlag(dfh.TickFlag_LastUpdated) {
			if err := applyFixedSides(tick, spread); err != nil {
				return err
			}
			tick.SetFlag(dfh.TickFlag_AskUpdated)
			tick.SetFlag(dfh.TickFlag_BidUpdated)
		} else {
			tick.Bid = ticks[i-1].Bid
			tick.Ask = ticks[i-1].Ask
		}
		indexer.advance(tick.TimeMs, i)
	}
	indexer.finish(len(ticks))

	*prevTick = ticks[len(ticks)-1]
	*hasPrevData = true
	return nil
}

// applyFixedSides anchors the quote on the trade side and offsets the
// other side by the spread.
func applyFixedSides(tick *dfh.MarketTick, spread float64) error {
	switch {
	case tick.HasFlag(dfh.TickFlag_TickFromBuy):
		tick.Ask = tick.Last
		tick.Bid = tick.Ask - spread
	case tick.HasFlag(dfh.TickFlag_TickFromSell):
		tick.Bid = tick.Last
		tick.Ask = tick.Bid + spread
	default:
		return dfh.ErrInvalidTick
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// dynamicSpreadProcessor observes the spread from BUY/SELL transitions: a
// BUY print above the preceding SELL print implies spread = buy - sell, and
// symmetrically. The most recent observed spread persists between
// transitions; the fixed spread seeds the state.
type dynamicSpreadProcessor struct {
	prevSpread float64
}

func (p *dynamicSpreadProcessor) process(
	ticks []dfh.MarketTick,
	chunks []uint32,
	prevTick *dfh.MarketTick,
	hasPrevData *bool,
	codecConfig *dfh.TickCodecConfig,
	bidaskConfig *dfh.BidAskRestoreConfig,
	startTimeMs, endTimeMs uint64,
) error {
	if len(ticks) == 0 {
		return nil
	}
	digits := restoreDigits(codecConfig, bidaskConfig)

	if !*hasPrevData {
		p.prevSpread = float64(bidaskConfig.FixedSpread) * dfh.StepSize(digits)
	}

	tick := &ticks[0]
	if *hasPrevData {
		if !dfh.CompareWithPrecision(tick.Last, prevTick.Last, digits) {
			tick.SetFlag(dfh.TickFlag_LastUpdated)
		}
		p.observeTransition(tick, prevTick, digits)
	}
	if err := applyFixedSides(tick, p.prevSpread); err != nil {
		return err
	}
	if tick.HasFlag(dfh.TickFlag_LastUpdated) {
		tick.SetFlag(dfh.TickFlag_AskUpdated)
		tick.SetFlag(dfh.TickFlag_BidUpdated)
	}

	indexer := newChunkIndexer(chunks, startTimeMs)
	indexer.advance(tick.TimeMs, 0)

	for i := 1; i < len(ticks); i++ {
		tick := &ticks[i]
		if tick.HasFlag(dfh.TickFlag_LastUpdated) {
			p.observeTransition(tick, &ticks[i-1], digits)
			if err := applyFixedSides(tick, p.prevSpread); err != nil {
				return err
			}
			tick.SetFlag(dfh.TickFlag_AskUpdated)
			tick.SetFlag(dfh.TickFlag_BidUpdated)
		} else {
			tick.Bid = ticks[i-1].Bid
			tick.Ask = ticks[i-1].Ask
		}
		indexer.advance(tick.TimeMs, i)
	}
	indexer.finish(len(ticks))

	*prevTick = ticks[len(ticks)-1]
	*hasPrevData = true
	return nil
}

// observeTransition updates the running spread on BUY-after-SELL and
// SELL-after-BUY prints.
func (p *dynamicSpreadProcessor) observeTransition(tick, prev *dfh.MarketTick, digits uint8) {
	if tick.HasFlag(dfh.TickFlag_TickFromBuy) &&
		prev.HasFlag(dfh.TickFlag_TickFromSell) && tick.Last > prev.Last {
		p.prevSpread = dfh.NormalizeDouble(tick.Last-prev.Last, digits)
	} else if tick.HasFlag(dfh.TickFlag_TickFromSell) &&
		prev.HasFlag(dfh.TickFlag_TickFromBuy) && tick.Last < prev.Last {
		p.prevSpread = dfh.NormalizeDouble(prev.Last-tick.Last, digits)
	}
}

///////////////////////////////////////////////////////////////////////////////

// medianSpreadProcessor uses the dynamic trigger rule but applies
// median(prev2, prev, current) so a single outlier print cannot distort the
// quote. The two-element history survives across buffer loads and fully
// reseeds to the fixed spread whenever hasPrevData drops.
type medianSpreadProcessor struct {
	prevSpread  float64
	prev2Spread float64
}

func (p *medianSpreadProcessor) process(
	ticks []dfh.MarketTick,
	chunks []uint32,
	prevTick *dfh.MarketTick,
	hasPrevData *bool,
	codecConfig *dfh.TickCodecConfig,
	bidaskConfig *dfh.BidAskRestoreConfig,
	startTimeMs, endTimeMs uint64,
) error {
	if len(ticks) == 0 {
		return nil
	}
	digits := restoreDigits(codecConfig, bidaskConfig)

	var filterSpread float64
	if !*hasPrevData {
		filterSpread = float64(bidaskConfig.FixedSpread) * dfh.StepSize(digits)
		p.prevSpread = filterSpread
		p.prev2Spread = filterSpread
	} else {
		filterSpread = p.prevSpread
	}

	tick := &ticks[0]
	if *hasPrevData {
		if !dfh.CompareWithPrecision(tick.Last, prevTick.Last, digits) {
			tick.SetFlag(dfh.TickFlag_LastUpdated)
		}
		filterSpread = p.filter(tick, prevTick, digits, filterSpread)
	}
	if err := applyFixedSides(tick, filterSpread); err != nil {
		return err
	}
	if tick.HasFlag(dfh.TickFlag_LastUpdated) {
		tick.SetFlag(dfh.TickFlag_AskUpdated)
		tick.SetFlag(dfh.TickFlag_BidUpdated)
	}

	indexer := newChunkIndexer(chunks, startTimeMs)
	indexer.advance(tick.TimeMs, 0)

	for i := 1; i < len(ticks); i++ {
		tick := &ticks[i]
		if tick.HasFlag(dfh.TickFlag_LastUpdated) {
			filterSpread = p.filter(tick, &ticks[i-1], digits, filterSpread)
			if err := applyFixedSides(tick, filterSpread); err != nil {
				return err
			}
			tick.SetFlag(dfh.TickFlag_AskUpdated)
			tick.SetFlag(dfh.TickFlag_BidUpdated)
		} else {
			tick.Bid = ticks[i-1].Bid
			tick.Ask = ticks[i-1].Ask
		}
		indexer.advance(tick.TimeMs, i)
	}
	indexer.finish(len(ticks))

	*prevTick = ticks[len(ticks)-1]
	*hasPrevData = true
	return nil
}

// filter runs the transition rule and the three-point median, returning the
// spread to apply for this tick.
func (p *medianSpreadProcessor) filter(tick, prev *dfh.MarketTick, digits uint8, filterSpread float64) float64 {
	var observed float64
	triggered := false
	if tick.HasFlag(dfh.TickFlag_TickFromBuy) &&
		prev.HasFlag(dfh.TickFlag_TickFromSell) && tick.Last > prev.Last {
		observed = dfh.NormalizeDouble(tick.Last-prev.Last, digits)
		triggered = true
	} else if tick.HasFlag(dfh.TickFlag_TickFromSell) &&
		prev.HasFlag(dfh.TickFlag_TickFromBuy) && tick.Last < prev.Last {
		observed = dfh.NormalizeDouble(prev.Last-tick.Last, digits)
		triggered = true
	}
	if !triggered {
		return filterSpread
	}
	filtered := dfh.MedianFilter(p.prev2Spread, p.prevSpread, observed)
	p.prev2Spread = p.prevSpread
	p.prevSpread = observed
	return filtered
}
