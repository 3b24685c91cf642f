// Copyright (c) 2025 Quantfeed Corp
//
// Tick serializer entry point. Format selection is a single dispatch on the
// config (encode) or the signature byte (decode); the columnar path reuses
// the serializer's scratch context across calls.

package compress

import (
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// TickSerializer encodes and decodes tick segments. It is not safe for
// concurrent use; callers keep one per writer or reader.
type TickSerializer struct {
	ctx *Context
}

// NewTickSerializer returns a TickSerializer with a fresh scratch context.
func NewTickSerializer() *TickSerializer {
	return &TickSerializer{ctx: NewContext()}
}

// Serialize appends the encoding of ticks under config to buf and returns
// it. STORE_RAW_BINARY selects the raw fallback; everything else goes
// through the columnar V1 pipeline.
func (s *TickSerializer) Serialize(buf []byte, ticks []dfh.MarketTick, config *dfh.TickCodecConfig) ([]byte, error) {
	if config.HasFlag(dfh.TickCodec_StoreRawBinary) {
		return EncodeTicksRaw(buf, ticks, config)
	}
	return EncodeTicksV1(buf, ticks, config, s.ctx)
}

// Deserialize decodes a tick blob, dispatching on its signature byte.
// On error the returned tick slice is nil; no partial results.
func (s *TickSerializer) Deserialize(input []byte) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	if len(input) == 0 {
		return nil, dfh.TickCodecConfig{}, dfh.TruncatedError(1, 0)
	}
	switch input[0] {
	case TickSignatureRaw:
		return DecodeTicksRaw(input)
	case TickSignatureV1:
		return DecodeTicksV1(input, s.ctx)
	default:
		return nil, dfh.TickCodecConfig{}, dfh.ErrBadSignature
	}
}

// IsValidSignature reports whether the blob starts with a known tick codec
// signature. Pure; reads only byte 0.
func (s *TickSerializer) IsValidSignature(input []byte) bool {
	if len(input) == 0 {
		return false
	}
	return input[0] == TickSignatureRaw || input[0] == TickSignatureV1
}
