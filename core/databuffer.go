// Copyright (c) 2025 Quantfeed Corp
//
// MarketDataBuffer is the pool of per-(symbol, provider) stream buffers
// driven by the bus during replay. Pairs are addressed by the flat data
// index provider*symbolCount + symbol.

package core

import (
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// MarketDataBuffer owns one StreamTickBuffer per (symbol, provider) pair.
type MarketDataBuffer struct {
	source  MarketDataSource
	buffers []*StreamTickBuffer

	symbolCount   int
	providerCount int
}

// NewMarketDataBuffer builds the pool over the given source.
func NewMarketDataBuffer(source MarketDataSource) *MarketDataBuffer {
	symbolCount := source.SymbolCount()
	providerCount := source.ProviderCount()
	buffers := make([]*StreamTickBuffer, symbolCount*providerCount)
	for i := range buffers {
		buffers[i] = NewStreamTickBuffer()
	}
	return &MarketDataBuffer{
		source:        source,
		buffers:       buffers,
		symbolCount:   symbolCount,
		providerCount: providerCount,
	}
}

// DataIndex flattens a (symbol, provider) pair.
func (m *MarketDataBuffer) DataIndex(symbolIndex, providerIndex uint16) int {
	return int(providerIndex)*m.symbolCount + int(symbolIndex)
}

// SymbolCount returns the symbol dimension of the pool.
func (m *MarketDataBuffer) SymbolCount() int {
	return m.symbolCount
}

// ProviderCount returns the provider dimension of the pool.
func (m *MarketDataBuffer) ProviderCount() int {
	return m.providerCount
}

// SetBidAskConfig installs one reconstruction configuration across the
// pool.
func (m *MarketDataBuffer) SetBidAskConfig(config dfh.BidAskRestoreConfig) error {
	for _, buffer := range m.buffers {
		if err := buffer.SetBidAskConfig(config); err != nil {
			return err
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// loaderFor adapts the source to one pair's TickLoader.
func (m *MarketDataBuffer) loaderFor(dataIndex int) TickLoader {
	symbolIndex := uint16(dataIndex % m.symbolCount)
	providerIndex := uint16(dataIndex / m.symbolCount)
	return func(startTimeMs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
		return m.source.FetchTicks(symbolIndex, providerIndex, startTimeMs, startTimeMs+dfh.MsPerHour)
	}
}

// SetTickSpan loads the hour covering endTimeMs into the pair's buffer if
// needed (prefetching the previous hour for spread priming) and computes
// the span [startTimeMs, endTimeMs).
func (m *MarketDataBuffer) SetTickSpan(dataIndex int, startTimeMs, endTimeMs uint64) error {
	buffer := m.buffers[dataIndex]
	target := dfh.StartOfHourMs(endTimeMs - 1)
	if buffer.StartTimeMs() != target || buffer.TickCount() == 0 {
		if err := buffer.Fetch(endTimeMs-1, m.loaderFor(dataIndex)); err != nil {
			return err
		}
	}
	buffer.SetTickSpan(startTimeMs, endTimeMs)
	return nil
}

// Span returns the last computed span for a pair.
func (m *MarketDataBuffer) Span(dataIndex int) dfh.MarketTickSpan {
	return m.buffers[dataIndex].Span()
}

// LatestTick returns the last tick of the pair's current span, or nil.
func (m *MarketDataBuffer) LatestTick(dataIndex int) *dfh.MarketTick {
	span := m.buffers[dataIndex].Span()
	if span.Empty() {
		return nil
	}
	return &span.Data[span.Size()-1]
}

// Buffer exposes one pair's buffer for configuration and tests.
func (m *MarketDataBuffer) Buffer(dataIndex int) *StreamTickBuffer {
	return m.buffers[dataIndex]
}
