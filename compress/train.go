// Copyright (c) 2025 Quantfeed Corp
//
// ZSTD dictionary training over collected segment blobs.
//
// The training corpus is capped at 4 GiB by pruning middle samples (head
// and tail segments tend to bracket the interesting distribution shifts).
// Dictionaries are trained on the standard size ladder; the trainer CLI
// emits them as Go source so deployments link them in as constants.

package compress

import (
	"fmt"

	"github.com/klauspost/compress/dict"
	"github.com/klauspost/compress/zstd"
)

///////////////////////////////////////////////////////////////////////////////

// TrainCorpusLimit caps the total size of the training corpus.
const TrainCorpusLimit = 4 << 30

// TrainDictSizesKiB is the ladder of dictionary sizes to train.
var TrainDictSizesKiB = []int{
	10, 25, 50, 75, 100, 125, 150, 200, 250, 300, 400, 500,
	750, 1000, 1500, 2000, 5000, 10000,
}

///////////////////////////////////////////////////////////////////////////////

// PruneCorpus drops middle samples until the corpus total fits
// TrainCorpusLimit. The head and tail halves are kept in order.
func PruneCorpus(samples [][]byte) [][]byte {
	total := 0
	for _, s := range samples {
		total += len(s)
	}
	for total > TrainCorpusLimit && len(samples) > 2 {
		mid := len(samples) / 2
		total -= len(samples[mid])
		samples = append(samples[:mid], samples[mid+1:]...)
	}
	return samples
}

// SplitCorpusByBucket partitions samples into size buckets. The `one`
// bucket always receives every sample.
func SplitCorpusByBucket(samples [][]byte) map[DictBucket][][]byte {
	buckets := map[DictBucket][][]byte{
		DictBucket_One: samples,
	}
	for _, s := range samples {
		bucket := BucketForSize(len(s))
		buckets[bucket] = append(buckets[bucket], s)
	}
	return buckets
}

// TrainDictionary trains one ZSTD dictionary of maxSizeKiB over the given
// samples.
func TrainDictionary(samples [][]byte, maxSizeKiB int) ([]byte, error) {
	if len(samples) < 8 {
		return nil, fmt.Errorf("dictionary training needs at least 8 samples, have %d", len(samples))
	}
	raw, err := dict.BuildZstdDict(samples, dict.Options{
		MaxDictSize:    maxSizeKiB << 10,
		HashBytes:      6,
		ZstdDictCompat: true,
		ZstdLevel:      zstd.SpeedBetterCompression,
	})
	if err != nil {
		return nil, fmt.Errorf("dictionary training failed: %w", err)
	}
	return raw, nil
}

// TrainResult is one trained dictionary with its compression score over a
// held-out evaluation set (compressed bytes per input byte; lower wins).
type TrainResult struct {
	Bucket  DictBucket
	SizeKiB int
	Dict    []byte
	Score   float64
}

// TrainBucketDictionaries walks the size ladder for one bucket and returns
// the dictionary with the best evaluation score.
func TrainBucketDictionaries(bucket DictBucket, samples [][]byte, eval [][]byte) (*TrainResult, error) {
	var best *TrainResult
	for _, sizeKiB := range TrainDictSizesKiB {
		raw, err := TrainDictionary(samples, sizeKiB)
		if err != nil {
			return nil, err
		}
		score, err := evaluateDictionary(raw, eval)
		if err != nil {
			return nil, err
		}
		if best == nil || score < best.Score {
			best = &TrainResult{Bucket: bucket, SizeKiB: sizeKiB, Dict: raw, Score: score}
		}
	}
	return best, nil
}

// evaluateDictionary compresses the evaluation set with the dictionary and
// returns compressed bytes per input byte.
func evaluateDictionary(raw []byte, eval [][]byte) (float64, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderDict(raw))
	if err != nil {
		return 0, err
	}
	defer encoder.Close()

	var inBytes, outBytes int
	for _, sample := range eval {
		compressed := encoder.EncodeAll(sample, nil)
		inBytes += len(sample)
		outBytes += len(compressed)
	}
	if inBytes == 0 {
		return 1, nil
	}
	return float64(outBytes) / float64(inBytes), nil
}
