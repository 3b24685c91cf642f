// Copyright (c) 2025 Quantfeed Corp
//
// Segmented bar storage over MDBX. Segment windows are timeframe-dependent
// (hour / day / week, see TimeFrame.SegmentDurationMs); one timeframe is
// stored per (symbol, provider) stream and recorded in the metadata.

package storage

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

const (
	barsDBName        = "bars"
	barMetadataDBName = "bar_metadata"
)

// BarDB stores and retrieves bar segments.
type BarDB struct {
	conn       *Connection
	serializer *compress.BarSerializer
	compressor *compress.Compressor

	metadata map[uint32]dfh.BarMetadata

	dbiBars     mdbx.DBI
	dbiMetadata mdbx.DBI
	started     bool

	scratch []byte
}

// NewBarDB returns a BarDB over the given connection.
func NewBarDB(conn *Connection, compressor *compress.Compressor) *BarDB {
	return &BarDB{
		conn:       conn,
		serializer: compress.NewBarSerializer(),
		compressor: compressor,
		metadata:   make(map[uint32]dfh.BarMetadata),
	}
}

// Start opens the sub-databases and loads the metadata cache.
func (db *BarDB) Start() error {
	err := db.conn.Update(func(txn *mdbx.Txn) error {
		var err error
		if db.dbiBars, err = txn.OpenDBISimple(barsDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", barsDBName, err)
		}
		if db.dbiMetadata, err = txn.OpenDBISimple(barMetadataDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", barMetadataDBName, err)
		}
		cursor, err := txn.OpenCursor(db.dbiMetadata)
		if err != nil {
			return err
		}
		defer cursor.Close()
		for key, value, err := cursor.Get(nil, nil, mdbx.First); ; key, value, err = cursor.Get(nil, nil, mdbx.Next) {
			if err != nil {
				if mdbx.IsNotFound(err) {
					return nil
				}
				return err
			}
			var metadata dfh.BarMetadata
			if err := metadata.Fill_Raw(value); err != nil {
				return err
			}
			db.metadata[metadataKeyFromBytes(key)] = metadata
		}
	})
	if err != nil {
		return err
	}
	db.started = true
	return nil
}

// Stop closes the sub-database handles.
func (db *BarDB) Stop() {
	if !db.started {
		return
	}
	env := db.conn.Env()
	env.CloseDBI(db.dbiBars)
	env.CloseDBI(db.dbiMetadata)
	db.started = false
}

///////////////////////////////////////////////////////////////////////////////

// CachedMetadata returns the cached metadata for a (symbol, provider).
func (db *BarDB) CachedMetadata(symbolID, providerID uint16) (dfh.BarMetadata, bool) {
	metadata, ok := db.metadata[dfh.MetadataKey(symbolID, providerID)]
	return metadata, ok
}

///////////////////////////////////////////////////////////////////////////////

// UpsertBars stores a time-ordered bar batch, splitting it into
// timeframe-dependent segments with replace-whole-segment semantics.
func (db *BarDB) UpsertBars(symbolID, providerID uint16, bars []dfh.MarketBar, config *dfh.BarCodecConfig) error {
	if !db.started {
		return dfh.ErrStorageNotInitialized
	}
	if len(bars) == 0 {
		return nil
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.TimeFrame == dfh.TimeFrame_Unknown {
		return dfh.ErrInvalidConfig
	}

	segmentDuration := config.TimeFrame.SegmentDurationMs()
	segments, err := dfh.SplitBarsBySegment(bars, segmentDuration)
	if err != nil {
		return err
	}

	startTs := bars[0].TimeMs
	endTs := bars[len(bars)-1].TimeMs

	metadataKey := dfh.MetadataKey(symbolID, providerID)
	metadata, known := db.metadata[metadataKey]
	if !known {
		metadata = dfh.BarMetadata{
			SymbolID:             symbolID,
			ProviderID:           providerID,
			TimeFrame:            config.TimeFrame,
			PriceDigits:          config.PriceDigits,
			VolumeDigits:         config.VolumeDigits,
			QuoteVolumeDigits:    config.QuoteVolumeDigits,
			Flags:                config.Flags,
			StartTs:              startTs,
			EndTs:                endTs,
			TickSize:             config.TickSize,
			ExpirationTimeMs:     config.ExpirationTimeMs,
			NextExpirationTimeMs: config.NextExpirationTimeMs,
		}
	} else {
		if metadata.TimeFrame != config.TimeFrame {
			return fmt.Errorf("%w: stream is %s, batch is %s",
				dfh.ErrInvalidConfig, metadata.TimeFrame, config.TimeFrame)
		}
		metadata.PriceDigits = config.PriceDigits
		metadata.VolumeDigits = config.VolumeDigits
		metadata.QuoteVolumeDigits = config.QuoteVolumeDigits
		metadata.Flags = config.Flags
		metadata.TickSize = config.TickSize
		metadata.ExpirationTimeMs = config.ExpirationTimeMs
		metadata.NextExpirationTimeMs = config.NextExpirationTimeMs
		if startTs < metadata.StartTs {
			metadata.StartTs = startTs
		}
		if endTs > metadata.EndTs {
			metadata.EndTs = endTs
		}
	}

	err = db.conn.Update(func(txn *mdbx.Txn) error {
		if err := txn.Put(db.dbiMetadata, metadataKeyBytes(symbolID, providerID),
			metadata.AppendTo(nil), 0); err != nil {
			return err
		}
		for _, segment := range segments {
			blob, err := db.serializer.Serialize(db.scratch[:0], segment, config)
			if err != nil {
				return err
			}
			db.scratch = blob
			compressed := db.compressor.Compress(nil, blob)
			segmentUnit := uint32(segment[0].TimeMs / segmentDuration)
			if err := txn.Put(db.dbiBars, segmentKeyBytes(symbolID, providerID, segmentUnit),
				compressed, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.metadata[metadataKey] = metadata
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// FetchBars reads bars in [startTs, endTs) for the stream's recorded
// timeframe. Missing segments are legal gaps.
func (db *BarDB) FetchBars(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.MarketBar, dfh.BarCodecConfig, error) {
	var config dfh.BarCodecConfig
	if !db.started {
		return nil, config, dfh.ErrStorageNotInitialized
	}
	if endTs <= startTs {
		return nil, config, nil
	}
	metadata, ok := db.metadata[dfh.MetadataKey(symbolID, providerID)]
	if !ok {
		return nil, config, nil
	}
	segmentDuration := metadata.TimeFrame.SegmentDurationMs()
	startUnit := startTs / segmentDuration
	endUnit := (endTs - 1) / segmentDuration

	var bars []dfh.MarketBar
	err := db.conn.View(func(txn *mdbx.Txn) error {
		for unit := startUnit; unit <= endUnit; unit++ {
			value, err := txn.Get(db.dbiBars, segmentKeyBytes(symbolID, providerID, uint32(unit)))
			if err != nil {
				if mdbx.IsNotFound(err) {
					continue
				}
				return err
			}
			blob, err := db.compressor.Decompress(db.scratch[:0], value)
			if err != nil {
				return err
			}
			db.scratch = blob
			segment, segmentConfig, err := db.serializer.Deserialize(blob)
			if err != nil {
				return err
			}
			bars = append(bars, segment...)
			config = segmentConfig
		}
		return nil
	})
	if err != nil {
		return nil, config, err
	}

	bars = dfh.CropBarsByTime(bars, startTs, endTs)
	return bars, config, nil
}
