// Copyright (c) 2025 Quantfeed Corp
//
// Bar serializer entry point, mirroring the tick serializer dispatch.

package compress

import (
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// BarSerializer encodes and decodes bar segments. Not safe for concurrent
// use.
type BarSerializer struct {
	ctx *Context
}

// NewBarSerializer returns a BarSerializer with a fresh scratch context.
func NewBarSerializer() *BarSerializer {
	return &BarSerializer{ctx: NewContext()}
}

// Serialize appends the encoding of bars under config to buf and returns
// it. STORE_RAW_BINARY selects the raw fixed-layout format.
func (s *BarSerializer) Serialize(buf []byte, bars []dfh.MarketBar, config *dfh.BarCodecConfig) ([]byte, error) {
	if config.HasFlag(dfh.BarFlag_StoreRawBinary) {
		return EncodeBarsRaw(buf, bars, config)
	}
	return EncodeBarsV1(buf, bars, config, s.ctx)
}

// Deserialize decodes a bar blob, dispatching on its signature byte.
func (s *BarSerializer) Deserialize(input []byte) ([]dfh.MarketBar, dfh.BarCodecConfig, error) {
	if len(input) == 0 {
		return nil, dfh.BarCodecConfig{}, dfh.TruncatedError(1, 0)
	}
	switch input[0] {
	case BarSignatureRaw:
		return DecodeBarsRaw(input)
	case BarSignatureV1:
		return DecodeBarsV1(input, s.ctx)
	default:
		return nil, dfh.BarCodecConfig{}, dfh.ErrBadSignature
	}
}

// IsValidSignature reports whether the blob starts with a known bar codec
// signature. Pure; reads only byte 0.
func (s *BarSerializer) IsValidSignature(input []byte) bool {
	if len(input) == 0 {
		return false
	}
	return input[0] == BarSignatureRaw || input[0] == BarSignatureV1
}
