// Copyright (c) 2025 Quantfeed Corp

package ingest_test

import (
	"archive/zip"
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/ingest"
)

///////////////////////////////////////////////////////////////////////////////

const bybitSample = `timestamp,symbol,side,size,price,tickDirection,trdMatchID,grossValue,homeNotional,foreignNotional
1704067200.1234,BTCUSDT,Buy,0.005,42000.50,PlusTick,00000000-0000-0000-0000-000000000001,21000250000,0.005,210.0025
1704067200.5678,BTCUSDT,Sell,0.010,42000.00,MinusTick,00000000-0000-0000-0000-000000000002,42000000000,0.010,420
1704067201.0000,BTCUSDT,Sell,0.010,42000.00,ZeroMinusTick,00000000-0000-0000-0000-000000000003,42000000000,0.010,420
`

const binanceSample = `id,price,qty,quoteQty,time,isBuyerMaker,isBestMatch
1001,42000.50,0.00500,210.0025,1704067200123,False,True
1002,42000.00,0.01000,420.0000,1704067200567,True,True
1003,42000.00,0.02500,1050.0000,1704067201000,True,False
`

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("ParseBybitTrades", func() {
	It("should map columns, sides and fractional-second timestamps", func() {
		sequence, err := ingest.ParseBybitTrades([]byte(bybitSample), ingest.Options{AutoDetectPrecision: true})
		Expect(err).To(BeNil())
		Expect(len(sequence.Ticks)).To(Equal(3))

		first := sequence.Ticks[0]
		Expect(first.TimeMs).To(Equal(uint64(1704067200123)))
		Expect(first.Last).To(Equal(42000.50))
		Expect(first.Volume).To(Equal(0.005))
		Expect(first.HasFlag(dfh.TickFlag_TickFromBuy)).To(BeTrue())
		Expect(first.HasFlag(dfh.TickFlag_LastUpdated)).To(BeTrue())

		second := sequence.Ticks[1]
		Expect(second.HasFlag(dfh.TickFlag_TickFromSell)).To(BeTrue())
		Expect(second.HasFlag(dfh.TickFlag_LastUpdated)).To(BeTrue())

		// ZeroMinusTick did not move the price
		Expect(sequence.Ticks[2].HasFlag(dfh.TickFlag_LastUpdated)).To(BeFalse())
	})

	It("should auto-detect precision from decimal places", func() {
		sequence, err := ingest.ParseBybitTrades([]byte(bybitSample), ingest.Options{AutoDetectPrecision: true})
		Expect(err).To(BeNil())
		Expect(sequence.PriceDigits).To(Equal(uint8(1)))
		Expect(sequence.VolumeDigits).To(Equal(uint8(3)))
	})

	It("should reject malformed rows", func() {
		_, err := ingest.ParseBybitTrades([]byte("timestamp,a\n123.4,garbage\n"), ingest.Options{})
		Expect(err).ToNot(BeNil())
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("ParseBinanceTrades", func() {
	It("should map maker sides and millisecond timestamps", func() {
		sequence, err := ingest.ParseBinanceTrades([]byte(binanceSample), ingest.Options{AutoDetectPrecision: true})
		Expect(err).To(BeNil())
		Expect(len(sequence.Ticks)).To(Equal(3))

		first := sequence.Ticks[0]
		Expect(first.TimeMs).To(Equal(uint64(1704067200123)))
		// buyer was the taker: a buy-aggressed trade
		Expect(first.HasFlag(dfh.TickFlag_TickFromBuy)).To(BeTrue())
		Expect(first.HasFlag(dfh.TickFlag_BestMatch)).To(BeTrue())

		second := sequence.Ticks[1]
		Expect(second.HasFlag(dfh.TickFlag_TickFromSell)).To(BeTrue())
		Expect(second.HasFlag(dfh.TickFlag_LastUpdated)).To(BeTrue())

		third := sequence.Ticks[2]
		Expect(third.HasFlag(dfh.TickFlag_LastUpdated)).To(BeFalse())
		Expect(third.HasFlag(dfh.TickFlag_BestMatch)).To(BeFalse())
	})

	It("should auto-detect precision", func() {
		sequence, err := ingest.ParseBinanceTrades([]byte(binanceSample), ingest.Options{AutoDetectPrecision: true})
		Expect(err).To(BeNil())
		Expect(sequence.PriceDigits).To(Equal(uint8(1)))
		Expect(sequence.VolumeDigits).To(Equal(uint8(3)))
	})
})

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("ExtractFirstZipEntry", func() {
	It("should return the first file's content", func() {
		var archive bytes.Buffer
		zipWriter := zip.NewWriter(&archive)
		entry, err := zipWriter.Create("BTCUSDT-trades-2024-01-01.csv")
		Expect(err).To(BeNil())
		_, err = entry.Write([]byte(binanceSample))
		Expect(err).To(BeNil())
		Expect(zipWriter.Close()).To(Succeed())

		content, err := ingest.ExtractFirstZipEntry(archive.Bytes())
		Expect(err).To(BeNil())
		Expect(string(content)).To(Equal(binanceSample))
	})

	It("should reject an empty archive", func() {
		var archive bytes.Buffer
		zipWriter := zip.NewWriter(&archive)
		Expect(zipWriter.Close()).To(Succeed())
		_, err := ingest.ExtractFirstZipEntry(archive.Bytes())
		Expect(err).ToNot(BeNil())
	})
})
