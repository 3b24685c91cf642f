// Copyright (c) 2025 Quantfeed Corp
//
// MarketDataBus: subscription registry, timer coalescing, and snapshot
// fan-out in simulation time order.
//
// Listeners register into a slot array (the subscription id is the slot
// index, lowest disabled slot reused, 64 slots). Every registration change
// rebuilds the timer plan: one timer group per distinct non-zero period,
// carrying the union bitset of the group's tick subscriptions and the
// group's listeners. Dispatch walks fire times monotonically; when a call
// lands between the next two fire times exactly one group fires
// (single-step), when it jumps past several fire times the due groups fire
// as a union per fire time (catch-up).

package core

import (
	"fmt"
	"io"
	"sort"

	"github.com/bits-and-blooms/bitset"
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// MarketDataListener receives snapshots from the bus. Errors are recorded
// to the bus diagnostic sink and do not abort dispatch.
type MarketDataListener interface {
	OnUpdate(snapshot *MarketSnapshot) error
}

// MaxSubscribers bounds the slot array (matches the internal bitmap
// width).
const MaxSubscribers = 64

///////////////////////////////////////////////////////////////////////////////

type subData struct {
	subsTicks *bitset.BitSet
	listener  MarketDataListener
	periodMs  uint32
	enabled   bool
}

func (s *subData) reset() {
	s.subsTicks.ClearAll()
	s.listener = nil
	s.periodMs = 0
	s.enabled = false
}

type timerGroup struct {
	listeners    []MarketDataListener
	subsTicks    []uint // flat data indices of the group's union bitset
	nextTimeMs   uint64
	periodMs     uint32
}

///////////////////////////////////////////////////////////////////////////////

// MarketDataBus coalesces heterogeneous timer periods and tick
// subscriptions across listeners and drives the buffer pool.
type MarketDataBus struct {
	buffers *MarketDataBuffer

	subData []subData
	subIDs  map[MarketDataListener]int

	timerGroups []timerGroup

	lastTimeMs uint64
	started    bool

	// reusable scratch to avoid per-update allocation
	scratchSubs      *bitset.BitSet
	scratchListeners []MarketDataListener

	diag io.Writer
}

// NewMarketDataBus builds a bus over the given source.
func NewMarketDataBus(source MarketDataSource) *MarketDataBus {
	buffers := NewMarketDataBuffer(source)
	return &MarketDataBus{
		buffers:     buffers,
		subIDs:      make(map[MarketDataListener]int),
		scratchSubs: bitset.New(uint(buffers.SymbolCount() * buffers.ProviderCount())),
		diag:        io.Discard,
	}
}

// Buffers exposes the pool for configuration (bid/ask model, prefetch).
func (b *MarketDataBus) Buffers() *MarketDataBuffer {
	return b.buffers
}

// SetDiagnosticSink redirects listener-error reporting. nil restores the
// default discard sink.
func (b *MarketDataBus) SetDiagnosticSink(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	b.diag = w
}

///////////////////////////////////////////////////////////////////////////////

// Register adds a listener and returns its subscription id (the slot
// index). Registering the same listener twice fails.
func (b *MarketDataBus) Register(listener MarketDataListener) (int, error) {
	if _, ok := b.subIDs[listener]; ok {
		return -1, fmt.Errorf("%w: listener already registered", dfh.ErrInvalidConfig)
	}

	bits := uint(b.buffers.SymbolCount() * b.buffers.ProviderCount())
	for subID := range b.subData {
		if b.subData[subID].enabled {
			continue
		}
		b.subData[subID].reset()
		b.subData[subID].subsTicks = bitset.New(bits)
		b.subData[subID].listener = listener
		b.subData[subID].enabled = true
		b.subIDs[listener] = subID
		b.initTimer(b.lastTimeMs)
		return subID, nil
	}

	if len(b.subData) >= MaxSubscribers {
		return -1, dfh.ErrTooManySubscribers
	}
	subID := len(b.subData)
	b.subData = append(b.subData, subData{
		subsTicks: bitset.New(bits),
		listener:  listener,
		enabled:   true,
	})
	b.subIDs[listener] = subID
	b.initTimer(b.lastTimeMs)
	return subID, nil
}

// Unregister removes a listener, zeroing its slot and compacting the
// trailing tail when possible.
func (b *MarketDataBus) Unregister(listener MarketDataListener) bool {
	subID, ok := b.subIDs[listener]
	if !ok {
		return false
	}
	delete(b.subIDs, listener)
	b.subData[subID].reset()
	for len(b.subData) > 0 && !b.subData[len(b.subData)-1].enabled {
		b.subData = b.subData[:len(b.subData)-1]
	}
	b.initTimer(b.lastTimeMs)
	return true
}

// SubscribeTimer sets a listener's timer period; zero disables the timer.
func (b *MarketDataBus) SubscribeTimer(subID int, periodMs uint32) bool {
	if subID < 0 || subID >= len(b.subData) || !b.subData[subID].enabled {
		return false
	}
	b.subData[subID].periodMs = periodMs
	b.initTimer(b.lastTimeMs)
	return true
}

// UnsubscribeTimer disables a listener's timer.
func (b *MarketDataBus) UnsubscribeTimer(subID int) bool {
	return b.SubscribeTimer(subID, 0)
}

// SubscribeTicks adds a (symbol, provider) pair to a listener's tick set.
func (b *MarketDataBus) SubscribeTicks(subID int, symbolIndex, providerIndex uint16) bool {
	if subID < 0 || subID >= len(b.subData) || !b.subData[subID].enabled {
		return false
	}
	b.subData[subID].subsTicks.Set(uint(b.buffers.DataIndex(symbolIndex, providerIndex)))
	b.initTimer(b.lastTimeMs)
	return true
}

// UnsubscribeTicks removes a (symbol, provider) pair from a listener's
// tick set.
func (b *MarketDataBus) UnsubscribeTicks(subID int, symbolIndex, providerIndex uint16) bool {
	if subID < 0 || subID >= len(b.subData) || !b.subData[subID].enabled {
		return false
	}
	b.subData[subID].subsTicks.Clear(uint(b.buffers.DataIndex(symbolIndex, providerIndex)))
	b.initTimer(b.lastTimeMs)
	return true
}

// UnsubscribeAllTicks clears a listener's tick set.
func (b *MarketDataBus) UnsubscribeAllTicks(subID int) bool {
	if subID < 0 || subID >= len(b.subData) || !b.subData[subID].enabled {
		return false
	}
	b.subData[subID].subsTicks.ClearAll()
	b.initTimer(b.lastTimeMs)
	return true
}

///////////////////////////////////////////////////////////////////////////////

// initTimer rebuilds the timer plan from the current subscription state.
// Groups are ordered by ascending period so dispatch is deterministic.
func (b *MarketDataBus) initTimer(nowMs uint64) {
	periods := make(map[uint32]bool)
	for i := range b.subData {
		if b.subData[i].enabled && b.subData[i].periodMs != 0 {
			periods[b.subData[i].periodMs] = true
		}
	}
	sorted := make([]uint32, 0, len(periods))
	for period := range periods {
		sorted = append(sorted, period)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	b.timerGroups = b.timerGroups[:0]
	for _, period := range sorted {
		b.scratchSubs.ClearAll()
		var listeners []MarketDataListener
		for i := range b.subData {
			if !b.subData[i].enabled || b.subData[i].periodMs != period {
				continue
			}
			b.scratchSubs.InPlaceUnion(b.subData[i].subsTicks)
			listeners = append(listeners, b.subData[i].listener)
		}
		indices := make([]uint, 0, b.scratchSubs.Count())
		for idx, ok := b.scratchSubs.NextSet(0); ok; idx, ok = b.scratchSubs.NextSet(idx + 1) {
			indices = append(indices, idx)
		}
		b.timerGroups = append(b.timerGroups, timerGroup{
			listeners:  listeners,
			subsTicks:  indices,
			nextTimeMs: uint64(period) + dfh.StartOfPeriodMs(uint64(period), nowMs),
			periodMs:   period,
		})
	}
}

///////////////////////////////////////////////////////////////////////////////

// Start seeds the timer plan at timeMs and fires a START snapshot to every
// enabled listener.
func (b *MarketDataBus) Start(timeMs uint64) {
	b.lastTimeMs = timeMs
	for i := range b.timerGroups {
		group := &b.timerGroups[i]
		group.nextTimeMs = uint64(group.periodMs) + dfh.StartOfPeriodMs(uint64(group.periodMs), timeMs)
	}
	b.started = true

	snapshot := &MarketSnapshot{buffers: b.buffers, timeMs: timeMs, flags: Event_Start}
	for i := range b.subData {
		if !b.subData[i].enabled {
			continue
		}
		b.dispatchOne(b.subData[i].listener, snapshot)
	}
}

// Update advances simulation time to currentMs, firing every pending timer
// group in monotone fire-time order. Backward time is the caller's
// responsibility.
func (b *MarketDataBus) Update(currentMs uint64) error {
	if !b.started || len(b.timerGroups) == 0 {
		b.lastTimeMs = currentMs
		return nil
	}

	for {
		fireTime, due := b.dueGroups(currentMs)
		if len(due) == 0 {
			return nil
		}

		if len(due) == 1 {
			// single-step case: fire exactly one timer group
			group := &b.timerGroups[due[0]]
			if err := b.setSpans(group.subsTicks, b.lastTimeMs, fireTime); err != nil {
				return err
			}
			snapshot := &MarketSnapshot{buffers: b.buffers, timeMs: fireTime, flags: Event_TimerEvent | Event_TickUpdate}
			for _, listener := range group.listeners {
				b.dispatchOne(listener, snapshot)
			}
		} else {
			// catch-up case: several groups share the fire time; fan out to
			// the union once
			b.scratchListeners = b.scratchListeners[:0]
			b.scratchSubs.ClearAll()
			for _, groupIndex := range due {
				group := &b.timerGroups[groupIndex]
				for _, dataIndex := range group.subsTicks {
					b.scratchSubs.Set(dataIndex)
				}
				b.scratchListeners = append(b.scratchListeners, group.listeners...)
			}
			indices := make([]uint, 0, b.scratchSubs.Count())
			for idx, ok := b.scratchSubs.NextSet(0); ok; idx, ok = b.scratchSubs.NextSet(idx + 1) {
				indices = append(indices, idx)
			}
			if err := b.setSpans(indices, b.lastTimeMs, fireTime); err != nil {
				return err
			}
			snapshot := &MarketSnapshot{buffers: b.buffers, timeMs: fireTime, flags: Event_TimerEvent | Event_TickUpdate}
			for _, listener := range b.scratchListeners {
				b.dispatchOne(listener, snapshot)
			}
		}

		for _, groupIndex := range due {
			b.timerGroups[groupIndex].nextTimeMs += uint64(b.timerGroups[groupIndex].periodMs)
		}
		b.lastTimeMs = fireTime
	}
}

// dueGroups returns the earliest pending fire time not after currentMs and
// the indices of every group due at that time.
func (b *MarketDataBus) dueGroups(currentMs uint64) (uint64, []int) {
	fireTime := uint64(0)
	var due []int
	for i := range b.timerGroups {
		next := b.timerGroups[i].nextTimeMs
		if next > currentMs {
			continue
		}
		if len(due) == 0 || next < fireTime {
			fireTime = next
			due = due[:0]
			due = append(due, i)
		} else if next == fireTime {
			due = append(due, i)
		}
	}
	return fireTime, due
}

// setSpans refreshes the buffers of every subscribed pair for
// [startTimeMs, endTimeMs).
func (b *MarketDataBus) setSpans(indices []uint, startTimeMs, endTimeMs uint64) error {
	for _, dataIndex := range indices {
		if err := b.buffers.SetTickSpan(int(dataIndex), startTimeMs, endTimeMs); err != nil {
			return err
		}
	}
	return nil
}

// dispatchOne delivers a snapshot to one listener. A listener that raises
// does not abort the remaining listeners.
func (b *MarketDataBus) dispatchOne(listener MarketDataListener, snapshot *MarketSnapshot) {
	if err := listener.OnUpdate(snapshot); err != nil {
		fmt.Fprintf(b.diag, "listener error at %d: %v\n", snapshot.TimeMs(), err)
	}
}

///////////////////////////////////////////////////////////////////////////////

// ListenerHandle ties a registration to its bus so that dropping the
// handle unregisters the listener. Both sides outlive the session; no
// shared ownership.
type ListenerHandle struct {
	bus   *MarketDataBus
	id    int
	owner MarketDataListener
}

// NewListenerHandle registers listener and returns its handle.
func NewListenerHandle(bus *MarketDataBus, listener MarketDataListener) (*ListenerHandle, error) {
	id, err := bus.Register(listener)
	if err != nil {
		return nil, err
	}
	return &ListenerHandle{bus: bus, id: id, owner: listener}, nil
}

// ID returns the subscription id.
func (h *ListenerHandle) ID() int {
	return h.id
}

// Close unregisters the listener. Safe to call more than once.
func (h *ListenerHandle) Close() {
	if h.bus != nil {
		h.bus.Unregister(h.owner)
		h.bus = nil
	}
}
