// Copyright (c) 2025 Quantfeed Corp
//
// Exchange export ingest: raw trade CSVs to tick sequences.
//
// Parsing is hand-rolled over byte slices rather than encoding/csv: the
// precision auto-detection pass alone touches millions of rows per file,
// and none of the exports quote or escape fields.

package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zip"
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// PrecisionScanRows caps the number of rows inspected by precision
// auto-detection.
const PrecisionScanRows = 3_000_000

// Options control a parse run.
type Options struct {
	PriceDigits         uint8
	VolumeDigits        uint8
	AutoDetectPrecision bool // scan decimal places instead of trusting the digits above
	MaxRows             int  // 0 = no limit
}

///////////////////////////////////////////////////////////////////////////////

// ExtractFirstZipEntry returns the decompressed content of the first file
// inside a zip archive (Binance exports hold exactly one CSV).
func ExtractFirstZipEntry(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	if len(reader.File) == 0 {
		return nil, fmt.Errorf("zip archive holds no files")
	}
	entry, err := reader.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", reader.File[0].Name, err)
	}
	defer entry.Close()
	content, err := io.ReadAll(entry)
	if err != nil {
		return nil, fmt.Errorf("read zip entry %q: %w", reader.File[0].Name, err)
	}
	return content, nil
}

///////////////////////////////////////////////////////////////////////////////

// nextLine splits content at the next newline, tolerating trailing \r.
func nextLine(content []byte) (line, rest []byte) {
	nl := bytes.IndexByte(content, '\n')
	if nl < 0 {
		return content, nil
	}
	line = content[:nl]
	rest = content[nl+1:]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, rest
}

// splitFields cuts a CSV line into at most n comma-separated fields.
func splitFields(line []byte, fields [][]byte, n int) [][]byte {
	fields = fields[:0]
	for len(fields) < n-1 {
		comma := bytes.IndexByte(line, ',')
		if comma < 0 {
			break
		}
		fields = append(fields, line[:comma])
		line = line[comma+1:]
	}
	return append(fields, line)
}

// parseFloatBytes parses an ASCII decimal without allocating.
func parseFloatBytes(b []byte) (float64, error) {
	return strconv.ParseFloat(string(b), 64)
}

// parseUintBytes parses an ASCII unsigned integer.
func parseUintBytes(b []byte) (uint64, error) {
	return strconv.ParseUint(string(b), 10, 64)
}

///////////////////////////////////////////////////////////////////////////////

// detectPrecision scans up to PrecisionScanRows rows counting the maximum
// number of significant decimal places in the price and size columns.
func detectPrecision(content []byte, priceCol, sizeCol, numCols int, skipHeader bool) (priceDigits, volumeDigits uint8) {
	fields := make([][]byte, 0, numCols)
	rest := content
	if skipHeader {
		_, rest = nextLine(rest)
	}
	var priceMax, sizeMax int
	for row := 0; row < PrecisionScanRows && len(rest) > 0; row++ {
		var line []byte
		line, rest = nextLine(rest)
		if len(line) == 0 {
			continue
		}
		fields = splitFields(line, fields, numCols)
		if len(fields) <= priceCol || len(fields) <= sizeCol {
			continue
		}
		if d := dfh.DecimalDigits(fields[priceCol]); d > priceMax {
			priceMax = d
		}
		if d := dfh.DecimalDigits(fields[sizeCol]); d > sizeMax {
			sizeMax = d
		}
	}
	if priceMax > int(dfh.MaxDigits) {
		priceMax = int(dfh.MaxDigits)
	}
	if sizeMax > int(dfh.MaxDigits) {
		sizeMax = int(dfh.MaxDigits)
	}
	return uint8(priceMax), uint8(sizeMax)
}
