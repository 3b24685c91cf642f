// Copyright (c) 2025 Quantfeed Corp

package file

import (
	"fmt"
	"io"

	dfh "github.com/quantfeed/dfh-go"
	"github.com/segmentio/encoding/json"
)

////////////////////////////////////////////////////////////////////////////////

// WriteAsJson writes a value marshalled as JSON to the writer, returning any error.
func WriteAsJson[T any](val *T, writer io.Writer) error {
	jstr, err := json.Marshal(val)
	if err != nil {
		return err
	}
	_, err = writer.Write(jstr)
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte{'\n'})
	return err
}

////////////////////////////////////////////////////////////////////////////////

// tickRecord is the JSON-lines envelope for one exported tick.
type tickRecord struct {
	Symbol   uint16 `json:"symbol_id"`
	Provider uint16 `json:"provider_id"`
	dfh.MarketTick
}

// WriteTicksAsJson writes ticks as JSON lines to the writer.
func WriteTicksAsJson(symbolID, providerID uint16, ticks []dfh.MarketTick, writer io.Writer) error {
	for i := range ticks {
		record := tickRecord{Symbol: symbolID, Provider: providerID, MarketTick: ticks[i]}
		if err := WriteAsJson(&record, writer); err != nil {
			return fmt.Errorf("json write failed: %w", err)
		}
	}
	return nil
}

// WriteBarsAsJson writes bars as JSON lines to the writer.
func WriteBarsAsJson(bars []dfh.MarketBar, writer io.Writer) error {
	for i := range bars {
		if err := WriteAsJson(&bars[i], writer); err != nil {
			return fmt.Errorf("json write failed: %w", err)
		}
	}
	return nil
}

// WriteMetadataAsJson writes tick metadata records as JSON lines.
func WriteMetadataAsJson(records []dfh.TickMetadata, writer io.Writer) error {
	for i := range records {
		if err := WriteAsJson(&records[i], writer); err != nil {
			return fmt.Errorf("json write failed: %w", err)
		}
	}
	return nil
}
