// Copyright (c) 2025 Quantfeed Corp

package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/core"
)

///////////////////////////////////////////////////////////////////////////////

// loadHour runs one buffer fetch over the given ticks with the given
// bid/ask model.
func loadHour(ticks []dfh.MarketTick, bidask dfh.BidAskRestoreConfig, codec dfh.TickCodecConfig) (*core.StreamTickBuffer, error) {
	buffer := core.NewStreamTickBuffer()
	if err := buffer.SetBidAskConfig(bidask); err != nil {
		return nil, err
	}
	loader := hourLoader(map[uint64][]dfh.MarketTick{hourStart: ticks}, codec)
	if err := buffer.Fetch(hourStart, loader); err != nil {
		return nil, err
	}
	return buffer, nil
}

// markPriceChanges sets LAST_UPDATED the way the codec derives it: whenever
// the price moves at the stream precision.
func markPriceChanges(ticks []dfh.MarketTick, digits uint8) []dfh.MarketTick {
	for i := 1; i < len(ticks); i++ {
		if !dfh.CompareWithPrecision(ticks[i].Last, ticks[i-1].Last, digits) {
			ticks[i].SetFlag(dfh.TickFlag_LastUpdated)
		}
	}
	return ticks
}

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("FixedSpreadProcessor", func() {
	It("should anchor the quote on the trade side with a constant spread", func() {
		// alternating BUY/SELL over {100, 101}, digits 0, spread 2
		var ticks []dfh.MarketTick
		for i := 0; i < 10; i++ {
			last := 100.0
			if i%2 == 1 {
				last = 101.0
			}
			ticks = append(ticks, tradeTick(hourStart+uint64(i)*250, last, i%2 == 0))
		}
		ticks = markPriceChanges(ticks, 0)

		buffer, err := loadHour(ticks,
			dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_FixedSpread, FixedSpread: 2, PriceDigits: 0},
			dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_TradeBased})
		Expect(err).To(BeNil())

		span := buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour)
		Expect(span.Size()).To(Equal(len(ticks)))
		for _, tick := range span.Data {
			if tick.HasFlag(dfh.TickFlag_TickFromBuy) {
				Expect(tick.Ask).To(Equal(tick.Last))
				Expect(tick.Bid).To(Equal(tick.Last - 2))
			} else {
				Expect(tick.Bid).To(Equal(tick.Last))
				Expect(tick.Ask).To(Equal(tick.Last + 2))
			}
			Expect(tick.Ask - tick.Bid).To(Equal(2.0))
		}
	})

	It("should fail on a tick with neither side flag", func() {
		ticks := []dfh.MarketTick{{TimeMs: hourStart + 100, Last: 100}}
		_, err := loadHour(ticks,
			dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_FixedSpread, FixedSpread: 1},
			dfh.TickCodecConfig{PriceDigits: 0})
		Expect(err).To(MatchError(dfh.ErrInvalidTick))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("MedianSpreadProcessor", func() {
	It("should apply the median of the spread history on a transition", func() {
		// (t=0, 100, BUY), (t=250, 100, SELL), (t=500, 101, BUY)
		ticks := markPriceChanges([]dfh.MarketTick{
			tradeTick(hourStart, 100, true),
			tradeTick(hourStart+250, 100, false),
			tradeTick(hourStart+500, 101, true),
		}, 0)

		buffer, err := loadHour(ticks,
			dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_MedianSpread, FixedSpread: 1, PriceDigits: 0},
			dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_TradeBased})
		Expect(err).To(BeNil())

		span := buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour)
		Expect(span.Size()).To(Equal(3))

		// transition spread = 101-100 = 1; median(1, 1, 1) = 1
		third := span.Data[2]
		Expect(third.Ask).To(Equal(101.0))
		Expect(third.Bid).To(Equal(100.0))
		Expect(third.HasFlag(dfh.TickFlag_BidUpdated)).To(BeTrue())
		Expect(third.HasFlag(dfh.TickFlag_AskUpdated)).To(BeTrue())
	})

	It("should damp a single outlier transition", func() {
		ticks := markPriceChanges([]dfh.MarketTick{
			tradeTick(hourStart, 100, true),
			tradeTick(hourStart+100, 100, false),
			tradeTick(hourStart+200, 101, true), // spread 1
			tradeTick(hourStart+300, 100, false),
			tradeTick(hourStart+400, 120, true), // outlier spread 20
		}, 0)

		buffer, err := loadHour(ticks,
			dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_MedianSpread, FixedSpread: 1, PriceDigits: 0},
			dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_TradeBased})
		Expect(err).To(BeNil())

		span := buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour)
		last := span.Data[span.Size()-1]
		// median(1, 1, 20) = 1, so the outlier applies a spread of 1
		Expect(last.Ask).To(Equal(120.0))
		Expect(last.Bid).To(Equal(119.0))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("DynamicSpreadProcessor", func() {
	It("should persist the last observed spread between transitions", func() {
		ticks := markPriceChanges([]dfh.MarketTick{
			tradeTick(hourStart, 100, false),
			tradeTick(hourStart+100, 103, true), // spread 3
			tradeTick(hourStart+200, 103, true),
			tradeTick(hourStart+300, 104, true),
		}, 0)

		buffer, err := loadHour(ticks,
			dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_DynamicSpread, FixedSpread: 1, PriceDigits: 0},
			dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_TradeBased})
		Expect(err).To(BeNil())

		span := buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour)
		// tick at 104 is BUY after BUY: no transition, spread stays 3
		last := span.Data[span.Size()-1]
		Expect(last.Ask).To(Equal(104.0))
		Expect(last.Bid).To(Equal(101.0))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("SpreadInvariants", func() {
	It("ask should never drop below bid under any model", func() {
		var ticks []dfh.MarketTick
		prices := []float64{100, 101, 100, 102, 99, 100, 101, 103, 100}
		for i, price := range prices {
			ticks = append(ticks, tradeTick(hourStart+uint64(i)*400, price, i%3 != 0))
		}
		ticks = markPriceChanges(ticks, 0)

		for _, mode := range []dfh.BidAskModel{
			dfh.BidAskModel_FixedSpread,
			dfh.BidAskModel_DynamicSpread,
			dfh.BidAskModel_MedianSpread,
		} {
			input := append([]dfh.MarketTick(nil), ticks...)
			buffer, err := loadHour(input,
				dfh.BidAskRestoreConfig{Mode: mode, FixedSpread: 2, PriceDigits: 0},
				dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_TradeBased})
			Expect(err).To(BeNil())
			span := buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour)
			for _, tick := range span.Data {
				Expect(tick.Ask).To(BeNumerically(">=", tick.Bid), "model %s", mode)
			}
		}
	})
})
