// Copyright (c) 2025 Quantfeed Corp

package compress_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

// dayOfBars builds contiguous M1 bars with coherent OHLC.
func dayOfBars(count int, startMs uint64) []dfh.MarketBar {
	rng := rand.New(rand.NewSource(424242))
	bars := make([]dfh.MarketBar, count)
	close := 25000.00
	for i := range bars {
		open := close
		high := open + float64(rng.Intn(500))/100.0
		low := open - float64(rng.Intn(500))/100.0
		close = low + float64(rng.Intn(int((high-low)*100)+1))/100.0
		bars[i] = dfh.MarketBar{
			TimeMs:      startMs + uint64(i)*dfh.MsPerMin,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      float64(rng.Intn(100_000)) / 1000.0,
			QuoteVolume: float64(rng.Intn(1_000_000)) / 100.0,
			Spread:      uint32(rng.Intn(10)),
			TickVolume:  uint32(rng.Intn(5000)),
		}
	}
	return bars
}

func barEquals(a, b dfh.MarketBar, priceTol, volumeTol float64) {
	Expect(b.TimeMs).To(Equal(a.TimeMs))
	Expect(b.Open).To(BeNumerically("~", a.Open, priceTol))
	Expect(b.High).To(BeNumerically("~", a.High, priceTol))
	Expect(b.Low).To(BeNumerically("~", a.Low, priceTol))
	Expect(b.Close).To(BeNumerically("~", a.Close, priceTol))
	Expect(b.Volume).To(BeNumerically("~", a.Volume, volumeTol))
	Expect(b.Spread).To(Equal(a.Spread))
	Expect(b.TickVolume).To(Equal(a.TickVolume))
}

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("BarSerializer", func() {
	var config dfh.BarCodecConfig

	BeforeEach(func() {
		config = dfh.BarCodecConfig{
			TimeFrame:         dfh.TimeFrame_M1,
			PriceDigits:       2,
			VolumeDigits:      3,
			QuoteVolumeDigits: 2,
			Flags: dfh.BarFlag_LastBased | dfh.BarFlag_EnableVolume |
				dfh.BarFlag_EnableQuoteVolume | dfh.BarFlag_EnableTickVolume |
				dfh.BarFlag_EnableSpread | dfh.BarFlag_SpreadLast |
				dfh.BarFlag_FinalizedBars,
		}
	})

	Context("columnar V1", func() {
		It("should round-trip a day of M1 bars", func() {
			bars := dayOfBars(1440, scenarioStartMs)
			serializer := compress.NewBarSerializer()
			blob, err := serializer.Serialize(nil, bars, &config)
			Expect(err).To(BeNil())
			Expect(blob[0]).To(Equal(byte(compress.BarSignatureV1)))
			Expect(len(blob)).To(BeNumerically("<", 1440*dfh.MarketBar_Size))

			decoded, decodedConfig, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decodedConfig.TimeFrame).To(Equal(dfh.TimeFrame_M1))
			Expect(decodedConfig.PriceDigits).To(Equal(config.PriceDigits))
			Expect(len(decoded)).To(Equal(len(bars)))
			for i := range bars {
				barEquals(bars[i], decoded[i], 0.005, 0.0005)
			}
		})

		It("should carry expiration times relative to the segment base", func() {
			bars := dayOfBars(60, scenarioStartMs)
			config.ExpirationTimeMs = scenarioStartMs + 30*dfh.MsPerDay
			config.NextExpirationTimeMs = scenarioStartMs + 60*dfh.MsPerDay
			serializer := compress.NewBarSerializer()
			blob, err := serializer.Serialize(nil, bars, &config)
			Expect(err).To(BeNil())
			_, decodedConfig, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decodedConfig.ExpirationTimeMs).To(Equal(config.ExpirationTimeMs))
			Expect(decodedConfig.NextExpirationTimeMs).To(Equal(config.NextExpirationTimeMs))
		})

		It("should reject mutually exclusive price bases", func() {
			config.Flags |= dfh.BarFlag_BidBased
			serializer := compress.NewBarSerializer()
			_, err := serializer.Serialize(nil, dayOfBars(4, scenarioStartMs), &config)
			Expect(err).To(MatchError(dfh.ErrInvalidConfig))
		})
	})

	Context("raw V0", func() {
		It("should round-trip bit-for-bit", func() {
			bars := dayOfBars(32, scenarioStartMs)
			config.SetFlag(dfh.BarFlag_StoreRawBinary, true)
			serializer := compress.NewBarSerializer()
			blob, err := serializer.Serialize(nil, bars, &config)
			Expect(err).To(BeNil())
			Expect(blob[0]).To(Equal(byte(compress.BarSignatureRaw)))
			decoded, decodedConfig, err := serializer.Deserialize(blob)
			Expect(err).To(BeNil())
			Expect(decodedConfig.HasFlag(dfh.BarFlag_StoreRawBinary)).To(BeTrue())
			Expect(decoded).To(Equal(bars))
		})

		It("should refuse raw encoding without the flag", func() {
			_, err := compress.EncodeBarsRaw(nil, dayOfBars(4, scenarioStartMs), &config)
			Expect(err).To(MatchError(dfh.ErrInvalidConfig))
		})
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("Compressor", func() {
	It("should round-trip without dictionaries", func() {
		compressor, err := compress.NewCompressor()
		Expect(err).To(BeNil())
		defer compressor.Close()

		blob := make([]byte, 10000)
		for i := range blob {
			blob[i] = byte(i % 37)
		}
		compressed := compressor.Compress(nil, blob)
		Expect(compressed[0]).To(Equal(byte(0))) // no dictionary
		Expect(len(compressed)).To(BeNumerically("<", len(blob)))

		decompressed, err := compressor.Decompress(nil, compressed)
		Expect(err).To(BeNil())
		Expect(decompressed).To(Equal(blob))
	})

	It("should fail decoding when the named dictionary is missing", func() {
		compressor, err := compress.NewCompressor()
		Expect(err).To(BeNil())
		defer compressor.Close()
		_, err = compressor.Decompress(nil, []byte{0x05, 0x00, 0x00})
		Expect(err).To(MatchError(dfh.ErrDictionaryMissing))
	})

	It("should bucket blob sizes", func() {
		Expect(compress.BucketForSize(100)).To(Equal(compress.DictBucket_Small))
		Expect(compress.BucketForSize(64 << 10)).To(Equal(compress.DictBucket_Medium))
		Expect(compress.BucketForSize(2 << 20)).To(Equal(compress.DictBucket_Large))
	})
})
