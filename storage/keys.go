// Copyright (c) 2025 Quantfeed Corp
//
// Key encoding for the MDBX sub-databases. Keys are little-endian
// integers: 64-bit [segment_unit:32 | provider:16 | symbol:16] for
// segments, 32-bit [provider:16 | symbol:16] for metadata.

package storage

import (
	"encoding/binary"

	dfh "github.com/quantfeed/dfh-go"
)

// segmentKeyBytes renders a segment key for MDBX integer-key lookups.
func segmentKeyBytes(symbolID, providerID uint16, segmentUnit uint32) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], dfh.SegmentKey(symbolID, providerID, segmentUnit))
	return b[:]
}

// metadataKeyBytes renders a metadata key for MDBX integer-key lookups.
func metadataKeyBytes(symbolID, providerID uint16) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], dfh.MetadataKey(symbolID, providerID))
	return b[:]
}

// metadataKeyFromBytes decodes a metadata key read back from a cursor scan.
func metadataKeyFromBytes(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:4])
}
