// Copyright (c) 2025 Quantfeed Corp
//
// Entropy stage: ZSTD over the post-columnar blobs, with trained
// dictionaries selected by blob size bucket. The chosen dictionary id is
// the single leading byte of the entropy-layer output, so decoding is
// dictionary-self-identifying. Id 0 means no dictionary.

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

// DictBucket is the blob size class selecting a trained dictionary.
type DictBucket uint8

const (
	DictBucket_One    DictBucket = 0 // all-sizes fallback
	DictBucket_Small  DictBucket = 1 // < 64 KiB
	DictBucket_Medium DictBucket = 2 // < 2 MiB
	DictBucket_Large  DictBucket = 3 // >= 2 MiB
)

const (
	DictBucket_SmallLimit  = 64 << 10
	DictBucket_MediumLimit = 2 << 20
)

// BucketForSize returns the size bucket for a blob length.
func BucketForSize(size int) DictBucket {
	switch {
	case size < DictBucket_SmallLimit:
		return DictBucket_Small
	case size < DictBucket_MediumLimit:
		return DictBucket_Medium
	default:
		return DictBucket_Large
	}
}

func (b DictBucket) String() string {
	switch b {
	case DictBucket_One:
		return "one"
	case DictBucket_Small:
		return "small"
	case DictBucket_Medium:
		return "medium"
	case DictBucket_Large:
		return "large"
	default:
		return "unknown"
	}
}

///////////////////////////////////////////////////////////////////////////////

// dictionary ids on the wire: 0 = none, otherwise 1 + bucket-specific ids.
const (
	dictID_None = 0x00
)

// Compressor is the entropy wrapper applied to serialized segments. Trained
// dictionaries are registered per bucket; buckets without a dictionary fall
// back to the `one` dictionary, and to plain ZSTD when none is registered
// at all. Safe for concurrent use once dictionaries are registered.
type Compressor struct {
	mu       sync.RWMutex
	dicts    map[uint8][]byte    // wire id -> dictionary bytes
	byBucket map[DictBucket]uint8 // bucket -> wire id

	plainEncoder *zstd.Encoder
	plainDecoder *zstd.Decoder

	encoders map[uint8]*zstd.Encoder
	decoders map[uint8]*zstd.Decoder
}

// NewCompressor returns a Compressor with no registered dictionaries.
func NewCompressor() (*Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Compressor{
		dicts:        make(map[uint8][]byte),
		byBucket:     make(map[DictBucket]uint8),
		plainEncoder: encoder,
		plainDecoder: decoder,
		encoders:     make(map[uint8]*zstd.Encoder),
		decoders:     make(map[uint8]*zstd.Decoder),
	}, nil
}

// RegisterDictionary installs a trained dictionary for a bucket under the
// given wire id (must be non-zero). Registering the same id twice replaces
// the dictionary.
func (c *Compressor) RegisterDictionary(bucket DictBucket, id uint8, dict []byte) error {
	if id == dictID_None {
		return fmt.Errorf("%w: dictionary id 0 is reserved", dfh.ErrInvalidConfig)
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderDict(dict))
	if err != nil {
		return err
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderDicts(dict))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dicts[id] = dict
	c.byBucket[bucket] = id
	c.encoders[id] = encoder
	c.decoders[id] = decoder
	return nil
}

// dictionaryFor resolves the wire id for a blob size: the bucket's own
// dictionary, the `one` fallback, or none.
func (c *Compressor) dictionaryFor(size int) uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.byBucket[BucketForSize(size)]; ok {
		return id
	}
	if id, ok := c.byBucket[DictBucket_One]; ok {
		return id
	}
	return dictID_None
}

// Compress appends [dict id byte | zstd frame] for blob to dst and returns
// it.
func (c *Compressor) Compress(dst []byte, blob []byte) []byte {
	id := c.dictionaryFor(len(blob))
	dst = append(dst, id)
	if id == dictID_None {
		return c.plainEncoder.EncodeAll(blob, dst)
	}
	c.mu.RLock()
	encoder := c.encoders[id]
	c.mu.RUnlock()
	return encoder.EncodeAll(blob, dst)
}

// Decompress reverses Compress, appending the raw blob to dst. A blob that
// names an unregistered dictionary fails with ErrDictionaryMissing.
func (c *Compressor) Decompress(dst []byte, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return dst, dfh.TruncatedError(1, 0)
	}
	id := input[0]
	frame := input[1:]
	if id == dictID_None {
		return c.plainDecoder.DecodeAll(frame, dst)
	}
	c.mu.RLock()
	decoder, ok := c.decoders[id]
	c.mu.RUnlock()
	if !ok {
		return dst, fmt.Errorf("%w: id %d", dfh.ErrDictionaryMissing, id)
	}
	return decoder.DecodeAll(frame, dst)
}

// Close releases the underlying zstd codecs.
func (c *Compressor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plainEncoder.Close()
	c.plainDecoder.Close()
	for _, encoder := range c.encoders {
		encoder.Close()
	}
	for _, decoder := range c.decoders {
		decoder.Close()
	}
}
