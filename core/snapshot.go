// Copyright (c) 2025 Quantfeed Corp
//
// MarketSnapshot is the immutable read-only view handed to listeners at
// one instant of simulation time. It wraps the buffer pool and forbids
// direct access to it.

package core

import (
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// EventType flags describe why a snapshot was delivered.
type EventType uint32

const (
	Event_Start      EventType = 1 << 0
	Event_TimerEvent EventType = 1 << 1
	Event_TickUpdate EventType = 1 << 2
)

///////////////////////////////////////////////////////////////////////////////

// MarketSnapshot borrows the buffer pool for the duration of one listener
// callback. Spans read through it die with the next bus update.
type MarketSnapshot struct {
	buffers *MarketDataBuffer
	timeMs  uint64
	flags   EventType
}

// TimeMs returns the simulation time of the snapshot.
func (s *MarketSnapshot) TimeMs() uint64 {
	return s.timeMs
}

// HasFlag reports whether the given event flag is set.
func (s *MarketSnapshot) HasFlag(flag EventType) bool {
	return (s.flags & flag) != 0
}

// TickSpan returns the current span for a (symbol, provider) pair.
func (s *MarketSnapshot) TickSpan(symbolIndex, providerIndex uint16) dfh.MarketTickSpan {
	return s.buffers.Span(s.buffers.DataIndex(symbolIndex, providerIndex))
}

// TickCount returns the size of the pair's current span.
func (s *MarketSnapshot) TickCount(symbolIndex, providerIndex uint16) int {
	return s.TickSpan(symbolIndex, providerIndex).Size()
}

// LatestTick returns the newest tick of the pair's span, or nil when the
// span is empty.
func (s *MarketSnapshot) LatestTick(symbolIndex, providerIndex uint16) *dfh.MarketTick {
	return s.buffers.LatestTick(s.buffers.DataIndex(symbolIndex, providerIndex))
}
