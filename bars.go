// Copyright (c) 2025 Quantfeed Corp
//
// OHLCV bar data model.
//
// Adapted from the DataFeedHub bar structures:
//   https://github.com/NewYaroslav/DataFeedHub

package dfh

///////////////////////////////////////////////////////////////////////////////

// TimeFrame enumerates the supported bar aggregation periods.
type TimeFrame uint32

const (
	TimeFrame_Unknown TimeFrame = 0
	TimeFrame_S1      TimeFrame = 1
	TimeFrame_S3      TimeFrame = 3
	TimeFrame_S5      TimeFrame = 5
	TimeFrame_S15     TimeFrame = 15
	TimeFrame_M1      TimeFrame = 60
	TimeFrame_M5      TimeFrame = 300
	TimeFrame_M15     TimeFrame = 900
	TimeFrame_M30     TimeFrame = 1800
	TimeFrame_H1      TimeFrame = 3600
	TimeFrame_H4      TimeFrame = 14400
	TimeFrame_D1      TimeFrame = 86400
)

// DurationMs returns the bar period in milliseconds.
func (tf TimeFrame) DurationMs() uint64 {
	return uint64(tf) * MsPerSec
}

// SegmentDurationMs returns the storage segment window for the timeframe:
// one hour for second bars, one day for minute and H1 bars, one week for
// H4 and D1 bars.
func (tf TimeFrame) SegmentDurationMs() uint64 {
	switch tf {
	case TimeFrame_S1, TimeFrame_S3, TimeFrame_S5, TimeFrame_S15:
		return MsPerHour
	case TimeFrame_M1, TimeFrame_M5, TimeFrame_M15, TimeFrame_M30, TimeFrame_H1:
		return MsPerDay
	case TimeFrame_H4, TimeFrame_D1:
		return MsPerWeek
	default:
		return MsPerHour
	}
}

func (tf TimeFrame) String() string {
	switch tf {
	case TimeFrame_S1:
		return "S1"
	case TimeFrame_S3:
		return "S3"
	case TimeFrame_S5:
		return "S5"
	case TimeFrame_S15:
		return "S15"
	case TimeFrame_M1:
		return "M1"
	case TimeFrame_M5:
		return "M5"
	case TimeFrame_M15:
		return "M15"
	case TimeFrame_M30:
		return "M30"
	case TimeFrame_H1:
		return "H1"
	case TimeFrame_H4:
		return "H4"
	case TimeFrame_D1:
		return "D1"
	default:
		return "UNKNOWN"
	}
}

///////////////////////////////////////////////////////////////////////////////

// BarStorageFlags control which bar columns are stored and how spread is
// aggregated. BID/ASK/LAST_BASED are mutually exclusive price bases.
type BarStorageFlags uint64

const (
	BarFlag_None BarStorageFlags = 0

	BarFlag_BidBased  BarStorageFlags = 1 << 0
	BarFlag_AskBased  BarStorageFlags = 1 << 1
	BarFlag_LastBased BarStorageFlags = 1 << 2

	BarFlag_EnableVolume         BarStorageFlags = 1 << 3
	BarFlag_EnableQuoteVolume    BarStorageFlags = 1 << 4
	BarFlag_EnableTickVolume     BarStorageFlags = 1 << 5
	BarFlag_EnableBuyVolume      BarStorageFlags = 1 << 6
	BarFlag_EnableBuyQuoteVolume BarStorageFlags = 1 << 7
	BarFlag_EnableSpread         BarStorageFlags = 1 << 8

	BarFlag_SpreadLast BarStorageFlags = 1 << 9
	BarFlag_SpreadAvg  BarStorageFlags = 1 << 10
	BarFlag_SpreadMax  BarStorageFlags = 1 << 11

	BarFlag_StoreRawBinary BarStorageFlags = 1 << 12
	BarFlag_FinalizedBars  BarStorageFlags = 1 << 13
)

///////////////////////////////////////////////////////////////////////////////

// MarketBar is one OHLCV bar. Spread is expressed in tick units at bar
// close; TickVolume counts price updates inside the bar.
// Invariant: Low <= min(Open, Close) <= max(Open, Close) <= High.
type MarketBar struct {
	TimeMs         uint64  `json:"time_ms"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume,omitempty"`
	QuoteVolume    float64 `json:"quote_volume,omitempty"`
	BuyVolume      float64 `json:"buy_volume,omitempty"`
	BuyQuoteVolume float64 `json:"buy_quote_volume,omitempty"`
	Spread         uint32  `json:"spread"`
	TickVolume     uint32  `json:"tick_volume"`
}

// MarketBar_Size is the raw binary footprint of one MarketBar.
const MarketBar_Size = 80

// IsCoherent reports whether the OHLC invariant holds.
func (b *MarketBar) IsCoherent() bool {
	lo, hi := b.Open, b.Open
	if b.Close < lo {
		lo = b.Close
	}
	if b.Close > hi {
		hi = b.Close
	}
	return b.Low <= lo && hi <= b.High
}

///////////////////////////////////////////////////////////////////////////////

// BarCodecConfig carries the parameters needed to encode or decode one bar
// segment.
type BarCodecConfig struct {
	TickSize             float64         `json:"tick_size"`
	ExpirationTimeMs     uint64          `json:"expiration_time_ms"`
	NextExpirationTimeMs uint64          `json:"next_expiration_time_ms"`
	TimeFrame            TimeFrame       `json:"time_frame"`
	Flags                BarStorageFlags `json:"flags"`
	PriceDigits          uint8           `json:"price_digits"`
	VolumeDigits         uint8           `json:"volume_digits"`
	QuoteVolumeDigits    uint8           `json:"quote_volume_digits"`
}

// HasFlag returns true if the given storage flag is set.
func (c *BarCodecConfig) HasFlag(flag BarStorageFlags) bool {
	return (c.Flags & flag) != 0
}

// SetFlag sets or clears the given storage flag.
func (c *BarCodecConfig) SetFlag(flag BarStorageFlags, value bool) {
	if value {
		c.Flags |= flag
	} else {
		c.Flags &^= flag
	}
}

// Validate checks precision bounds and price-basis exclusivity.
func (c *BarCodecConfig) Validate() error {
	if c.PriceDigits > MaxDigits ||
		c.VolumeDigits > MaxDigits ||
		c.QuoteVolumeDigits > MaxDigits {
		return ErrInvalidConfig
	}
	basis := 0
	for _, flag := range []BarStorageFlags{BarFlag_BidBased, BarFlag_AskBased, BarFlag_LastBased} {
		if c.HasFlag(flag) {
			basis++
		}
	}
	if basis > 1 {
		return ErrInvalidConfig
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// BarSequence is an ordered batch of bars for one (symbol, provider) pair.
type BarSequence struct {
	Bars          []MarketBar
	Config        BarCodecConfig
	SymbolIndex   uint16
	ProviderIndex uint16
}

// IsOrdered reports whether bar start times are strictly increasing.
func (s *BarSequence) IsOrdered() bool {
	for i := 1; i < len(s.Bars); i++ {
		if s.Bars[i].TimeMs <= s.Bars[i-1].TimeMs {
			return false
		}
	}
	return true
}
