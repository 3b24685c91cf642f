// Copyright (c) 2025 Quantfeed Corp

package compress_test

import (
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

// hourOfTicks builds the scenario fixture: count ticks uniformly spaced over
// one hour starting 2024-01-01T00:00:00Z, prices cycling a four-step grid,
// constant volume, alternating BUY/SELL.
func hourOfTicks(count int, startMs uint64) []dfh.MarketTick {
	prices := []float64{10000.00, 10000.01, 10000.02, 10000.03}
	stepMs := dfh.MsPerHour / uint64(count)
	ticks := make([]dfh.MarketTick, count)
	for i := range ticks {
		ticks[i] = dfh.MarketTick{
			Last:   prices[i%len(prices)],
			Volume: 0.5,
			TimeMs: startMs + uint64(i)*stepMs,
		}
		if i%2 == 0 {
			ticks[i].SetFlag(dfh.TickFlag_TickFromBuy)
		} else {
			ticks[i].SetFlag(dfh.TickFlag_TickFromSell)
		}
	}
	return ticks
}

var scenarioStartMs = uint64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("TickSerializer", func() {
	Context("columnar V1", func() {
		It("should round-trip the single-hour scenario under 8 KiB", func() {
			ticks := hourOfTicks(1000, scenarioStartMs)
			config := dfh.TickCodecConfig{
				PriceDigits:  2,
				VolumeDigits: 3,
				Flags:        dfh.TickCodec_EnableTickFlags | dfh.TickCodec_EnableVolume | dfh.TickCodec_TradeBased,
			}

			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			Expect(blob[0]).To(Equal(byte(compress.TickSignatureV1)))
			Expect(len(blob)).To(BeNumerically("<", 8*1024))

			decoded, decodedConfig, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decodedConfig.PriceDigits).To(Equal(config.PriceDigits))
			Expect(decodedConfig.VolumeDigits).To(Equal(config.VolumeDigits))
			Expect(decodedConfig.HasFlag(dfh.TickCodec_EnableTickFlags)).To(BeTrue())
			Expect(decodedConfig.HasFlag(dfh.TickCodec_TradeBased)).To(BeTrue())

			Expect(len(decoded)).To(Equal(len(ticks)))
			for i := range ticks {
				Expect(decoded[i].TimeMs).To(Equal(ticks[i].TimeMs))
				Expect(decoded[i].Last).To(BeNumerically("~", ticks[i].Last, 0.005))
				Expect(decoded[i].Volume).To(BeNumerically("~", ticks[i].Volume, 0.0005))
				Expect(decoded[i].HasFlag(dfh.TickFlag_TickFromBuy)).To(Equal(ticks[i].HasFlag(dfh.TickFlag_TickFromBuy)))
				Expect(decoded[i].HasFlag(dfh.TickFlag_TickFromSell)).To(Equal(ticks[i].HasFlag(dfh.TickFlag_TickFromSell)))
			}
		})

		It("should derive LAST_UPDATED from non-zero price deltas", func() {
			ticks := []dfh.MarketTick{
				{Last: 100.0, TimeMs: scenarioStartMs, Flags: dfh.TickFlag_TickFromBuy},
				{Last: 100.0, TimeMs: scenarioStartMs + 100, Flags: dfh.TickFlag_TickFromSell},
				{Last: 101.0, TimeMs: scenarioStartMs + 200, Flags: dfh.TickFlag_TickFromBuy},
			}
			config := dfh.TickCodecConfig{PriceDigits: 0, Flags: dfh.TickCodec_EnableTickFlags | dfh.TickCodec_TradeBased}

			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			decoded, _, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decoded[1].HasFlag(dfh.TickFlag_LastUpdated)).To(BeFalse())
			Expect(decoded[2].HasFlag(dfh.TickFlag_LastUpdated)).To(BeTrue())
		})

		It("should carry the received-time column when enabled", func() {
			ticks := hourOfTicks(100, scenarioStartMs)
			for i := range ticks {
				ticks[i].ReceivedMs = ticks[i].TimeMs + uint64(i%7)
			}
			config := dfh.TickCodecConfig{
				PriceDigits:  2,
				VolumeDigits: 3,
				Flags: dfh.TickCodec_EnableTickFlags | dfh.TickCodec_EnableVolume |
					dfh.TickCodec_EnableRecvTime | dfh.TickCodec_TradeBased,
			}
			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			decoded, _, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			for i := range ticks {
				Expect(decoded[i].ReceivedMs).To(Equal(ticks[i].ReceivedMs))
			}
		})

		It("should promote price columns with deltas past i32 range", func() {
			ticks := []dfh.MarketTick{
				{Last: 0.01, TimeMs: scenarioStartMs, Flags: dfh.TickFlag_TickFromBuy},
				{Last: 90_000_000_000.0, TimeMs: scenarioStartMs + 1, Flags: dfh.TickFlag_TickFromSell},
				{Last: 0.02, TimeMs: scenarioStartMs + 2, Flags: dfh.TickFlag_TickFromBuy},
			}
			config := dfh.TickCodecConfig{PriceDigits: 2, Flags: dfh.TickCodec_EnableTickFlags | dfh.TickCodec_TradeBased}
			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			decoded, _, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			for i := range ticks {
				Expect(decoded[i].Last).To(BeNumerically("~", ticks[i].Last, 0.005))
			}
		})

		It("should round-trip random bursts with same-ms ticks", func() {
			rng := rand.New(rand.NewSource(12345))
			ticks := make([]dfh.MarketTick, 2000)
			timeMs := scenarioStartMs
			price := 42000.00
			for i := range ticks {
				if rng.Float64() > 0.3 {
					timeMs += uint64(rng.Intn(2000))
				}
				price += float64(rng.Intn(41)-20) / 100.0
				ticks[i] = dfh.MarketTick{
					Last:   price,
					Volume: float64(rng.Intn(1000)) / 1000.0,
					TimeMs: timeMs,
				}
				if rng.Intn(2) == 0 {
					ticks[i].SetFlag(dfh.TickFlag_TickFromBuy)
				} else {
					ticks[i].SetFlag(dfh.TickFlag_TickFromSell)
				}
			}
			config := dfh.TickCodecConfig{
				PriceDigits:  2,
				VolumeDigits: 3,
				Flags:        dfh.TickCodec_EnableTickFlags | dfh.TickCodec_EnableVolume | dfh.TickCodec_TradeBased,
			}
			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			decoded, _, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(len(decoded)).To(Equal(len(ticks)))
			for i := range ticks {
				Expect(decoded[i].TimeMs).To(Equal(ticks[i].TimeMs))
				Expect(decoded[i].Last).To(BeNumerically("~", ticks[i].Last, 0.005))
				Expect(decoded[i].Volume).To(BeNumerically("~", ticks[i].Volume, 0.0005))
			}
		})
	})

	Context("raw V0", func() {
		It("should round-trip bit-for-bit", func() {
			ticks := hourOfTicks(64, scenarioStartMs)
			config := dfh.TickCodecConfig{
				PriceDigits:  2,
				VolumeDigits: 3,
				Flags:        dfh.TickCodec_EnableTickFlags | dfh.TickCodec_StoreRawBinary,
			}
			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			Expect(blob[0]).To(Equal(byte(compress.TickSignatureRaw)))
			decoded, decodedConfig, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decodedConfig.HasFlag(dfh.TickCodec_StoreRawBinary)).To(BeTrue())
			Expect(decoded).To(Equal(ticks))
		})

		It("should refuse raw encoding without the flag", func() {
			config := dfh.TickCodecConfig{PriceDigits: 2}
			_, err := compress.EncodeTicksRaw(nil, hourOfTicks(4, scenarioStartMs), &config)
			Expect(err).To(MatchError(dfh.ErrInvalidConfig))
		})
	})

	Context("failure semantics", func() {
		It("should reject out-of-range precision", func() {
			config := dfh.TickCodecConfig{PriceDigits: 19}
			serializer := compress.NewTickSerializer()
			_, err := serializer.Serialize(nil, hourOfTicks(4, scenarioStartMs), &config)
			Expect(err).To(MatchError(dfh.ErrInvalidConfig))
		})

		It("should reject an unknown signature", func() {
			serializer := compress.NewTickSerializer()
			_, _, err := serializer.Deserialize([]byte{0x7F, 0x00})
			Expect(err).To(MatchError(dfh.ErrBadSignature))
			Expect(serializer.IsValidSignature([]byte{0x7F})).To(BeFalse())
			Expect(serializer.IsValidSignature([]byte{0x01})).To(BeTrue())
			Expect(serializer.IsValidSignature(nil)).To(BeFalse())
		})

		It("should reject truncated input without partial output", func() {
			ticks := hourOfTicks(500, scenarioStartMs)
			config := dfh.TickCodecConfig{
				PriceDigits:  2,
				VolumeDigits: 3,
				Flags:        dfh.TickCodec_EnableTickFlags | dfh.TickCodec_EnableVolume | dfh.TickCodec_TradeBased,
			}
			serializer := compress.NewTickSerializer()
			blob, err := serializer.Serialize(nil, ticks, &config)
			Expect(err).To(BeNil())
			decoded, _, err := serializer.Deserialize(blob[:len(blob)/3])
			Expect(err).ToNot(BeNil())
			Expect(decoded).To(BeNil())
		})
	})
})
