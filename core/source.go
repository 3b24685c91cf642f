// Copyright (c) 2025 Quantfeed Corp
//
// Read-path abstraction between the replay core and the storage layer.

package core

import (
	dfh "github.com/quantfeed/dfh-go"
)

// MarketDataSource supplies decoded ticks for (symbol, provider) pairs.
// storage.TickDB satisfies the fetch side; the registry of known symbols
// and providers comes from the session setup.
type MarketDataSource interface {
	// FetchTicks returns ticks in [startTs, endTs) with the codec config of
	// the last decoded segment. A missing range is an empty read.
	FetchTicks(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error)

	// SymbolCount and ProviderCount bound the (symbol, provider) index
	// space used by subscriptions and buffer pools.
	SymbolCount() int
	ProviderCount() int
}
