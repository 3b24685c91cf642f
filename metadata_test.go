// Copyright (c) 2025 Quantfeed Corp

package dfh_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
)

var _ = Describe("Metadata", func() {
	Context("correctness", func() {
		It("record sizes should be fixed at 64 bytes", func() {
			// If these change, key layouts and stored databases break.
			Expect(dfh.TickMetadata_Size).To(Equal(64))
			Expect(dfh.BarMetadata_Size).To(Equal(64))
			Expect(dfh.FundingMetadata_Size).To(Equal(64))

			var tick dfh.TickMetadata
			Expect(len(tick.AppendTo(nil))).To(Equal(dfh.TickMetadata_Size))
			var bar dfh.BarMetadata
			Expect(len(bar.AppendTo(nil))).To(Equal(dfh.BarMetadata_Size))
			var funding dfh.FundingMetadata
			Expect(len(funding.AppendTo(nil))).To(Equal(dfh.FundingMetadata_Size))
		})
	})

	Context("round-trip", func() {
		It("tick metadata should survive encode/decode", func() {
			metadata := dfh.TickMetadata{
				SymbolID:       7,
				ProviderID:     3,
				PriceDigits:    2,
				VolumeDigits:   3,
				Flags:          dfh.TickCodec_EnableTickFlags | dfh.TickCodec_TradeBased,
				StartTs:        1_704_067_200_000,
				EndTs:          1_704_070_800_000,
				PriceTickSize:  0.01,
				VolumeStepSize: 0.001,
			}
			var decoded dfh.TickMetadata
			Expect(decoded.Fill_Raw(metadata.AppendTo(nil))).To(Succeed())
			Expect(decoded).To(Equal(metadata))
		})

		It("bar metadata should survive encode/decode", func() {
			metadata := dfh.BarMetadata{
				SymbolID:             1,
				ProviderID:           2,
				TimeFrame:            dfh.TimeFrame_M1,
				PriceDigits:          2,
				VolumeDigits:         3,
				QuoteVolumeDigits:    2,
				Flags:                dfh.BarFlag_LastBased | dfh.BarFlag_EnableVolume,
				StartTs:              1_704_067_200_000,
				EndTs:                1_704_153_600_000,
				TickSize:             0.01,
				ExpirationTimeMs:     1_706_659_200_000,
				NextExpirationTimeMs: 1_709_251_200_000,
			}
			var decoded dfh.BarMetadata
			Expect(decoded.Fill_Raw(metadata.AppendTo(nil))).To(Succeed())
			Expect(decoded).To(Equal(metadata))
		})

		It("funding metadata should survive encode/decode", func() {
			metadata := dfh.FundingMetadata{
				SymbolID:    9,
				ProviderID:  1,
				PeriodHours: 8,
				StartTs:     1_704_067_200_000,
				EndTs:       1_704_096_000_000,
			}
			var decoded dfh.FundingMetadata
			Expect(decoded.Fill_Raw(metadata.AppendTo(nil))).To(Succeed())
			Expect(decoded).To(Equal(metadata))
		})

		It("short records should be rejected", func() {
			var metadata dfh.TickMetadata
			Expect(metadata.Fill_Raw(make([]byte, 32))).ToNot(Succeed())
		})
	})
})
