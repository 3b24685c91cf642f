// Copyright (c) 2025 Quantfeed Corp
//
// Tick-level market data model.
//
// Adapted from the DataFeedHub tick structures:
//   https://github.com/NewYaroslav/DataFeedHub
//
// All timestamps are unsigned 64-bit milliseconds since the Unix epoch.

package dfh

///////////////////////////////////////////////////////////////////////////////

// TickUpdateFlags is a bitset describing why a tick exists and which of its
// fields carry fresh information.
type TickUpdateFlags uint64

const (
	TickFlag_None          TickUpdateFlags = 0
	TickFlag_BidUpdated    TickUpdateFlags = 1 << 0 // Bid price updated
	TickFlag_AskUpdated    TickUpdateFlags = 1 << 1 // Ask price updated
	TickFlag_LastUpdated   TickUpdateFlags = 1 << 2 // Last trade price updated
	TickFlag_VolumeUpdated TickUpdateFlags = 1 << 3 // Volume updated
	TickFlag_TickFromBuy   TickUpdateFlags = 1 << 4 // Tick resulted from a buy trade
	TickFlag_TickFromSell  TickUpdateFlags = 1 << 5 // Tick resulted from a sell trade
	TickFlag_BestMatch     TickUpdateFlags = 1 << 6 // Trade matched the best book price
)

// TickStatusFlags describes the provenance of a tick stream.
type TickStatusFlags uint64

const (
	TickStatus_None        TickStatusFlags = 0
	TickStatus_Realtime    TickStatusFlags = 1 << 0
	TickStatus_Initialized TickStatusFlags = 1 << 1
)

///////////////////////////////////////////////////////////////////////////////

// MarketTick is one trade print or quote update.
// For trade-only streams bid/ask are zero until reconstructed (see core).
type MarketTick struct {
	Ask        float64         `json:"ask"`
	Bid        float64         `json:"bid"`
	Last       float64         `json:"last"`
	Volume     float64         `json:"volume"`
	TimeMs     uint64          `json:"time_ms"`
	ReceivedMs uint64          `json:"received_ms"`
	Flags      TickUpdateFlags `json:"flags"`
}

// MarketTick_Size is the raw binary footprint of one MarketTick.
const MarketTick_Size = 56

// HasFlag returns true if the given flag is set.
func (t *MarketTick) HasFlag(flag TickUpdateFlags) bool {
	return (t.Flags & flag) != 0
}

// SetFlag sets the given flag.
func (t *MarketTick) SetFlag(flag TickUpdateFlags) {
	t.Flags |= flag
}

// ClearFlag clears the given flag.
func (t *MarketTick) ClearFlag(flag TickUpdateFlags) {
	t.Flags &^= flag
}

// IsTrade reports whether the tick carries a trade side.
func (t *MarketTick) IsTrade() bool {
	return t.HasFlag(TickFlag_TickFromBuy) || t.HasFlag(TickFlag_TickFromSell)
}

///////////////////////////////////////////////////////////////////////////////

// MarketTickSpan is a borrowed, read-only view over a contiguous run of ticks
// inside a StreamTickBuffer. It is valid only until the owning buffer is
// reloaded or appended to.
type MarketTickSpan struct {
	Data []MarketTick
}

// Size returns the number of ticks in the span.
func (s MarketTickSpan) Size() int {
	return len(s.Data)
}

// Empty reports whether the span holds no ticks.
func (s MarketTickSpan) Empty() bool {
	return len(s.Data) == 0
}

///////////////////////////////////////////////////////////////////////////////

// TickCodecFlags select optional tick columns and codec behavior.
type TickCodecFlags uint64

const (
	TickCodec_None            TickCodecFlags = 0
	TickCodec_EnableTickFlags TickCodecFlags = 1 << 0 // encode the per-tick side flag column
	TickCodec_EnableRecvTime  TickCodecFlags = 1 << 1 // encode the received-time column
	TickCodec_EnableVolume    TickCodecFlags = 1 << 2 // encode the volume column
	TickCodec_TradeBased      TickCodecFlags = 1 << 3 // stream holds trade prints only (last price)
	TickCodec_StoreRawBinary  TickCodecFlags = 1 << 4 // bypass the columnar pipeline
)

// TickCodecConfig carries the parameters needed to encode or decode one tick
// segment. Digit fields are decimal places and must not exceed MaxDigits.
type TickCodecConfig struct {
	PriceDigits  uint8          `json:"price_digits"`
	VolumeDigits uint8          `json:"volume_digits"`
	Flags        TickCodecFlags `json:"flags"`
}

// MaxDigits bounds the decimal precision of any codec digit field.
const MaxDigits = 18

// HasFlag returns true if the given codec flag is set.
func (c *TickCodecConfig) HasFlag(flag TickCodecFlags) bool {
	return (c.Flags & flag) != 0
}

// SetFlag sets or clears the given codec flag.
func (c *TickCodecConfig) SetFlag(flag TickCodecFlags, value bool) {
	if value {
		c.Flags |= flag
	} else {
		c.Flags &^= flag
	}
}

// Validate checks precision bounds.
func (c *TickCodecConfig) Validate() error {
	if c.PriceDigits > MaxDigits || c.VolumeDigits > MaxDigits {
		return ErrInvalidConfig
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// TickSequence is an ordered batch of ticks for one (symbol, provider) pair.
// Invariant: Ticks[i].TimeMs <= Ticks[i+1].TimeMs, non-strict for same-ms
// bursts.
type TickSequence struct {
	Ticks         []MarketTick
	SymbolIndex   uint16
	ProviderIndex uint16
	PriceDigits   uint8
	VolumeDigits  uint8
}

// IsOrdered reports whether the sequence satisfies the time-order invariant.
func (s *TickSequence) IsOrdered() bool {
	for i := 1; i < len(s.Ticks); i++ {
		if s.Ticks[i].TimeMs < s.Ticks[i-1].TimeMs {
			return false
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////////

// BidAskModel selects the bid/ask reconstruction algorithm.
type BidAskModel uint8

const (
	BidAskModel_None          BidAskModel = 0 // use stored bid/ask as-is
	BidAskModel_FixedSpread   BidAskModel = 1 // constant spread around last
	BidAskModel_DynamicSpread BidAskModel = 2 // spread observed from BUY/SELL transitions
	BidAskModel_MedianSpread  BidAskModel = 3 // median-filtered transition spread
)

func (m BidAskModel) String() string {
	switch m {
	case BidAskModel_None:
		return "none"
	case BidAskModel_FixedSpread:
		return "fixed"
	case BidAskModel_DynamicSpread:
		return "dynamic"
	case BidAskModel_MedianSpread:
		return "median"
	default:
		return "unknown"
	}
}

// BidAskRestoreConfig parameterizes bid/ask reconstruction.
// FixedSpread is expressed in price points: the applied spread is
// FixedSpread / 10^PriceDigits. A zero PriceDigits defers to the codec
// config of the buffer being processed.
type BidAskRestoreConfig struct {
	Mode        BidAskModel `json:"mode"`
	FixedSpread uint32      `json:"fixed_spread"`
	PriceDigits uint8       `json:"price_digits"`
}
