// Copyright (c) 2025 Quantfeed Corp
//
// Funding-rate data model for perpetual futures.

package dfh

///////////////////////////////////////////////////////////////////////////////

// FundingRate is one funding observation: the rate applied at TimeMs and the
// mark price it was computed against.
type FundingRate struct {
	TimeMs      uint64  `json:"time_ms"`
	Rate        float64 `json:"rate"`
	MarkPrice   float64 `json:"mark_price"`
	PeriodHours uint32  `json:"period_hours"`
}

// FundingRate_Size is the raw binary footprint of one FundingRate.
const FundingRate_Size = 32

///////////////////////////////////////////////////////////////////////////////

// FundingRateSequence is an ordered batch of funding rates for one
// (symbol, provider) pair.
type FundingRateSequence struct {
	Rates         []FundingRate
	SymbolIndex   uint16
	ProviderIndex uint16
}

// IsOrdered reports whether funding times are strictly increasing.
func (s *FundingRateSequence) IsOrdered() bool {
	for i := 1; i < len(s.Rates); i++ {
		if s.Rates[i].TimeMs <= s.Rates[i-1].TimeMs {
			return false
		}
	}
	return true
}
