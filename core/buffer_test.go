// Copyright (c) 2025 Quantfeed Corp

package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/core"
)

///////////////////////////////////////////////////////////////////////////////

const hourStart = uint64(1_704_067_200_000) // 2024-01-01T00:00:00Z

// tradeTick builds a trade print with the given side.
func tradeTick(timeMs uint64, last float64, buy bool) dfh.MarketTick {
	tick := dfh.MarketTick{TimeMs: timeMs, Last: last}
	if buy {
		tick.SetFlag(dfh.TickFlag_TickFromBuy)
	} else {
		tick.SetFlag(dfh.TickFlag_TickFromSell)
	}
	return tick
}

// hourLoader serves canned hours keyed by start time.
func hourLoader(hours map[uint64][]dfh.MarketTick, config dfh.TickCodecConfig) core.TickLoader {
	return func(startTimeMs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
		ticks := hours[startTimeMs]
		out := append([]dfh.MarketTick(nil), ticks...)
		return out, config, nil
	}
}

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("StreamTickBuffer", func() {
	var config dfh.TickCodecConfig

	BeforeEach(func() {
		config = dfh.TickCodecConfig{PriceDigits: 2, Flags: dfh.TickCodec_EnableTickFlags | dfh.TickCodec_TradeBased}
	})

	Context("span queries", func() {
		It("every span tick should satisfy start <= t < end, and none outside", func() {
			ticks := make([]dfh.MarketTick, 0, 3600)
			for i := 0; i < 3600; i++ {
				ticks = append(ticks, tradeTick(hourStart+uint64(i)*1000+uint64(i%7)*10, 100, i%2 == 0))
			}
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_None})).To(Succeed())
			loader := hourLoader(map[uint64][]dfh.MarketTick{hourStart: ticks}, config)
			Expect(buffer.Fetch(hourStart, loader)).To(Succeed())

			for _, window := range [][2]uint64{
				{hourStart, hourStart + 1000},
				{hourStart + 10_000, hourStart + 11_000},
				{hourStart + 500, hourStart + 2500},
				{hourStart + 3_599_000, hourStart + dfh.MsPerHour},
				{hourStart, hourStart + dfh.MsPerHour},
			} {
				start, end := window[0], window[1]
				span := buffer.SetTickSpan(start, end)
				inWindow := 0
				for _, tick := range ticks {
					if tick.TimeMs >= start && tick.TimeMs < end {
						inWindow++
					}
				}
				Expect(span.Size()).To(Equal(inWindow), "window [%d, %d)", start, end)
				for _, tick := range span.Data {
					Expect(tick.TimeMs).To(BeNumerically(">=", start))
					Expect(tick.TimeMs).To(BeNumerically("<", end))
				}
			}
		})

		It("should return an empty span when nothing intersects", func() {
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_None})).To(Succeed())
			loader := hourLoader(map[uint64][]dfh.MarketTick{
				hourStart: {tradeTick(hourStart+1000, 100, true)},
			}, config)
			Expect(buffer.Fetch(hourStart, loader)).To(Succeed())
			Expect(buffer.SetTickSpan(hourStart+2000, hourStart+3000).Empty()).To(BeTrue())
		})
	})

	Context("hour loads", func() {
		It("should clear the chunk index on an empty hour", func() {
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_None})).To(Succeed())
			loader := hourLoader(map[uint64][]dfh.MarketTick{}, config)
			Expect(buffer.Fetch(hourStart, loader)).To(Succeed())
			Expect(buffer.TickCount()).To(Equal(0))
			Expect(buffer.SetTickSpan(hourStart, hourStart+dfh.MsPerHour).Empty()).To(BeTrue())
		})

		It("a contiguous next-hour load should retain spread state", func() {
			transition := tradeTick(hourStart+2000, 102, true) // BUY over SELL: spread 2
			transition.SetFlag(dfh.TickFlag_LastUpdated)
			hours := map[uint64][]dfh.MarketTick{
				hourStart: {
					tradeTick(hourStart+1000, 100, false),
					transition,
				},
				hourStart + dfh.MsPerHour: {
					tradeTick(hourStart+dfh.MsPerHour+1000, 102, true),
				},
			}
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{
				Mode: dfh.BidAskModel_DynamicSpread, FixedSpread: 1, PriceDigits: 0,
			})).To(Succeed())
			loader := hourLoader(hours, config)

			Expect(buffer.Fetch(hourStart, loader)).To(Succeed())
			Expect(buffer.Fetch(hourStart+dfh.MsPerHour, loader)).To(Succeed())

			// the hour-two BUY print keeps the observed spread of 2
			latest := buffer.LatestTick()
			Expect(latest).ToNot(BeNil())
			Expect(latest.Ask).To(Equal(102.0))
			Expect(latest.Bid).To(Equal(100.0))
		})
	})

	Context("real-time appends", func() {
		It("should reject non-monotone appends", func() {
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_None})).To(Succeed())
			writer := func(ticks []dfh.MarketTick) error { return nil }
			Expect(buffer.AppendTicks([]dfh.MarketTick{
				tradeTick(hourStart+1000, 100, true),
				tradeTick(hourStart+2000, 100, false),
			}, writer, false)).To(Succeed())
			err := buffer.AppendTicks([]dfh.MarketTick{
				tradeTick(hourStart+1500, 100, true),
			}, writer, false)
			Expect(err).To(MatchError(dfh.ErrOutOfOrder))
		})

		It("should flush the filled hour when a tick crosses the boundary", func() {
			buffer := core.NewStreamTickBuffer()
			Expect(buffer.SetBidAskConfig(dfh.BidAskRestoreConfig{Mode: dfh.BidAskModel_None})).To(Succeed())
			var flushed [][]dfh.MarketTick
			writer := func(ticks []dfh.MarketTick) error {
				flushed = append(flushed, append([]dfh.MarketTick(nil), ticks...))
				return nil
			}
			Expect(buffer.AppendTicks([]dfh.MarketTick{
				tradeTick(hourStart+1000, 100, true),
				tradeTick(hourStart+2000, 100, false),
				tradeTick(hourStart+dfh.MsPerHour+500, 101, true),
			}, writer, false)).To(Succeed())

			Expect(len(flushed)).To(Equal(1))
			Expect(len(flushed[0])).To(Equal(2))
			Expect(buffer.TickCount()).To(Equal(1))
		})
	})
})
