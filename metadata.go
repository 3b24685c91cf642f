// Copyright (c) 2025 Quantfeed Corp
//
// Fixed-size per-(symbol, provider) metadata records.
//
// Records are 64 bytes, 8-byte aligned, written field-by-field in
// little-endian order. Layout offsets are fixed; size-assertion tests keep
// them honest.

package dfh

import (
	"encoding/binary"
	"math"
)

///////////////////////////////////////////////////////////////////////////////

const (
	TickMetadata_Size    = 64
	BarMetadata_Size     = 64
	FundingMetadata_Size = 64
)

// MetadataKey packs (symbol, provider) into the 32-bit metadata sub-database
// key: [provider:16 | symbol:16].
func MetadataKey(symbolID, providerID uint16) uint32 {
	return (uint32(providerID) << 16) | uint32(symbolID)
}

// SegmentKey packs (symbol, provider, segment unit) into the 64-bit segment
// sub-database key: [segment_unit:32 | provider:16 | symbol:16].
func SegmentKey(symbolID, providerID uint16, segmentUnit uint32) uint64 {
	return (uint64(segmentUnit) << 32) | (uint64(providerID) << 16) | uint64(symbolID)
}

// SplitSegmentKey reverses SegmentKey.
func SplitSegmentKey(key uint64) (symbolID, providerID uint16, segmentUnit uint32) {
	return uint16(key), uint16(key >> 16), uint32(key >> 32)
}

///////////////////////////////////////////////////////////////////////////////

// TickMetadata describes one stored tick stream. StartTs/EndTs cover every
// tick ever upserted; they only ever widen.
type TickMetadata struct {
	SymbolID       uint16         `json:"symbol_id"`
	ProviderID     uint16         `json:"provider_id"`
	PriceDigits    uint8          `json:"price_digits"`
	VolumeDigits   uint8          `json:"volume_digits"`
	Flags          TickCodecFlags `json:"flags"`
	StartTs        uint64         `json:"start_ts"`
	EndTs          uint64         `json:"end_ts"`
	PriceTickSize  float64        `json:"price_tick_size"`
	VolumeStepSize float64        `json:"volume_step_size"`
}

// CodecConfig derives the codec configuration recorded in the metadata.
func (m *TickMetadata) CodecConfig() TickCodecConfig {
	return TickCodecConfig{
		PriceDigits:  m.PriceDigits,
		VolumeDigits: m.VolumeDigits,
		Flags:        m.Flags,
	}
}

// Fill_Raw decodes a TickMetadata from its 64-byte record.
func (m *TickMetadata) Fill_Raw(b []byte) error {
	if len(b) < TickMetadata_Size {
		return TruncatedError(TickMetadata_Size, len(b))
	}
	m.SymbolID = binary.LittleEndian.Uint16(b[0:2])
	m.ProviderID = binary.LittleEndian.Uint16(b[2:4])
	m.PriceDigits = b[4]
	m.VolumeDigits = b[5]
	m.Flags = TickCodecFlags(binary.LittleEndian.Uint64(b[8:16]))
	m.StartTs = binary.LittleEndian.Uint64(b[16:24])
	m.EndTs = binary.LittleEndian.Uint64(b[24:32])
	m.PriceTickSize = math.Float64frombits(binary.LittleEndian.Uint64(b[32:40]))
	m.VolumeStepSize = math.Float64frombits(binary.LittleEndian.Uint64(b[40:48]))
	return nil
}

// AppendTo appends the 64-byte record to buf and returns the result.
func (m *TickMetadata) AppendTo(buf []byte) []byte {
	var b [TickMetadata_Size]byte
	binary.LittleEndian.PutUint16(b[0:2], m.SymbolID)
	binary.LittleEndian.PutUint16(b[2:4], m.ProviderID)
	b[4] = m.PriceDigits
	b[5] = m.VolumeDigits
	binary.LittleEndian.PutUint64(b[8:16], uint64(m.Flags))
	binary.LittleEndian.PutUint64(b[16:24], m.StartTs)
	binary.LittleEndian.PutUint64(b[24:32], m.EndTs)
	binary.LittleEndian.PutUint64(b[32:40], math.Float64bits(m.PriceTickSize))
	binary.LittleEndian.PutUint64(b[40:48], math.Float64bits(m.VolumeStepSize))
	return append(buf, b[:]...)
}

///////////////////////////////////////////////////////////////////////////////

// BarMetadata describes one stored bar stream.
type BarMetadata struct {
	SymbolID             uint16          `json:"symbol_id"`
	ProviderID           uint16          `json:"provider_id"`
	TimeFrame            TimeFrame       `json:"time_frame"`
	PriceDigits          uint8           `json:"price_digits"`
	VolumeDigits         uint8           `json:"volume_digits"`
	QuoteVolumeDigits    uint8           `json:"quote_volume_digits"`
	Flags                BarStorageFlags `json:"flags"`
	StartTs              uint64          `json:"start_ts"`
	EndTs                uint64          `json:"end_ts"`
	TickSize             float64         `json:"tick_size"`
	ExpirationTimeMs     uint64          `json:"expiration_time_ms"`
	NextExpirationTimeMs uint64          `json:"next_expiration_time_ms"`
}

// CodecConfig derives the codec configuration recorded in the metadata.
func (m *BarMetadata) CodecConfig() BarCodecConfig {
	return BarCodecConfig{
		TickSize:             m.TickSize,
		ExpirationTimeMs:     m.ExpirationTimeMs,
		NextExpirationTimeMs: m.NextExpirationTimeMs,
		TimeFrame:            m.TimeFrame,
		Flags:                m.Flags,
		PriceDigits:          m.PriceDigits,
		VolumeDigits:         m.VolumeDigits,
		QuoteVolumeDigits:    m.QuoteVolumeDigits,
	}
}

// Fill_Raw decodes a BarMetadata from its 64-byte record.
func (m *BarMetadata) Fill_Raw(b []byte) error {
	if len(b) < BarMetadata_Size {
		return TruncatedError(BarMetadata_Size, len(b))
	}
	m.SymbolID = binary.LittleEndian.Uint16(b[0:2])
	m.ProviderID = binary.LittleEndian.Uint16(b[2:4])
	m.TimeFrame = TimeFrame(binary.LittleEndian.Uint16(b[4:6]))
	m.PriceDigits = b[6]
	m.VolumeDigits = b[7]
	m.QuoteVolumeDigits = b[8]
	m.Flags = BarStorageFlags(binary.LittleEndian.Uint64(b[16:24]))
	m.StartTs = binary.LittleEndian.Uint64(b[24:32])
	m.EndTs = binary.LittleEndian.Uint64(b[32:40])
	m.TickSize = math.Float64frombits(binary.LittleEndian.Uint64(b[40:48]))
	m.ExpirationTimeMs = binary.LittleEndian.Uint64(b[48:56])
	m.NextExpirationTimeMs = binary.LittleEndian.Uint64(b[56:64])
	return nil
}

// AppendTo appends the 64-byte record to buf and returns the result.
func (m *BarMetadata) AppendTo(buf []byte) []byte {
	var b [BarMetadata_Size]byte
	binary.LittleEndian.PutUint16(b[0:2], m.SymbolID)
	binary.LittleEndian.PutUint16(b[2:4], m.ProviderID)
	binary.LittleEndian.PutUint16(b[4:6], uint16(m.TimeFrame))
	b[6] = m.PriceDigits
	b[7] = m.VolumeDigits
	b[8] = m.QuoteVolumeDigits
	binary.LittleEndian.PutUint64(b[16:24], uint64(m.Flags))
	binary.LittleEndian.PutUint64(b[24:32], m.StartTs)
	binary.LittleEndian.PutUint64(b[32:40], m.EndTs)
	binary.LittleEndian.PutUint64(b[40:48], math.Float64bits(m.TickSize))
	binary.LittleEndian.PutUint64(b[48:56], m.ExpirationTimeMs)
	binary.LittleEndian.PutUint64(b[56:64], m.NextExpirationTimeMs)
	return append(buf, b[:]...)
}

///////////////////////////////////////////////////////////////////////////////

// FundingMetadata describes one stored funding-rate stream.
type FundingMetadata struct {
	SymbolID    uint16 `json:"symbol_id"`
	ProviderID  uint16 `json:"provider_id"`
	PeriodHours uint32 `json:"period_hours"`
	StartTs     uint64 `json:"start_ts"`
	EndTs       uint64 `json:"end_ts"`
}

// Fill_Raw decodes a FundingMetadata from its 64-byte record.
func (m *FundingMetadata) Fill_Raw(b []byte) error {
	if len(b) < FundingMetadata_Size {
		return TruncatedError(FundingMetadata_Size, len(b))
	}
	m.SymbolID = binary.LittleEndian.Uint16(b[0:2])
	m.ProviderID = binary.LittleEndian.Uint16(b[2:4])
	m.PeriodHours = binary.LittleEndian.Uint32(b[4:8])
	m.StartTs = binary.LittleEndian.Uint64(b[8:16])
	m.EndTs = binary.LittleEndian.Uint64(b[16:24])
	return nil
}

// AppendTo appends the 64-byte record to buf and returns the result.
func (m *FundingMetadata) AppendTo(buf []byte) []byte {
	var b [FundingMetadata_Size]byte
	binary.LittleEndian.PutUint16(b[0:2], m.SymbolID)
	binary.LittleEndian.PutUint16(b[2:4], m.ProviderID)
	binary.LittleEndian.PutUint32(b[4:8], m.PeriodHours)
	binary.LittleEndian.PutUint64(b[8:16], m.StartTs)
	binary.LittleEndian.PutUint64(b[16:24], m.EndTs)
	return append(buf, b[:]...)
}
