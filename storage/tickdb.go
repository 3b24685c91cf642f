// Copyright (c) 2025 Quantfeed Corp
//
// Hourly segmented tick storage over MDBX.
//
// Two sub-databases: "ticks" (u64 integer keys, compressed hour segments)
// and "tick_metadata" (u32 integer keys, 64-byte TickMetadata records).
// Upserts replace whole segments; partial-hour merges are unsupported.
// The metadata cache is populated on Start and mutated only after a
// successful commit, so a failed upsert leaves it untouched.

package storage

import (
	"fmt"
	"sort"

	"github.com/erigontech/mdbx-go/mdbx"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

const (
	ticksDBName        = "ticks"
	tickMetadataDBName = "tick_metadata"
)

// TickDB stores and retrieves hourly tick segments.
type TickDB struct {
	conn       *Connection
	serializer *compress.TickSerializer
	compressor *compress.Compressor

	metadata map[uint32]dfh.TickMetadata

	dbiTicks    mdbx.DBI
	dbiMetadata mdbx.DBI
	started     bool

	scratch []byte
}

// NewTickDB returns a TickDB over the given connection, sharing the
// process-wide entropy compressor.
func NewTickDB(conn *Connection, compressor *compress.Compressor) *TickDB {
	return &TickDB{
		conn:       conn,
		serializer: compress.NewTickSerializer(),
		compressor: compressor,
		metadata:   make(map[uint32]dfh.TickMetadata),
	}
}

// Start opens the sub-databases and loads the metadata cache.
func (db *TickDB) Start() error {
	err := db.conn.Update(func(txn *mdbx.Txn) error {
		var err error
		if db.dbiTicks, err = txn.OpenDBISimple(ticksDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", ticksDBName, err)
		}
		if db.dbiMetadata, err = txn.OpenDBISimple(tickMetadataDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", tickMetadataDBName, err)
		}
		return db.loadMetadata(txn)
	})
	if err != nil {
		return err
	}
	db.started = true
	return nil
}

// Stop closes the sub-database handles.
func (db *TickDB) Stop() {
	if !db.started {
		return
	}
	env := db.conn.Env()
	env.CloseDBI(db.dbiTicks)
	env.CloseDBI(db.dbiMetadata)
	db.started = false
}

func (db *TickDB) loadMetadata(txn *mdbx.Txn) error {
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
		var metadata dfh.TickMetadata
		if err := metadata.Fill_Raw(value); err != nil {
			return err
		}
		db.metadata[metadataKeyFromBytes(key)] = metadata
	}
}

///////////////////////////////////////////////////////////////////////////////

// CachedMetadata returns the cached metadata for a (symbol, provider), if
// present.
func (db *TickDB) CachedMetadata(symbolID, providerID uint16) (dfh.TickMetadata, bool) {
	metadata, ok := db.metadata[dfh.MetadataKey(symbolID, providerID)]
	return metadata, ok
}

// AllCachedMetadata returns a copy of every cached metadata record.
func (db *TickDB) AllCachedMetadata() []dfh.TickMetadata {
	records := make([]dfh.TickMetadata, 0, len(db.metadata))
	for _, metadata := range db.metadata {
		records = append(records, metadata)
	}
	sort.Slice(records, func(i, j int) bool {
		return dfh.MetadataKey(records[i].SymbolID, records[i].ProviderID) <
			dfh.MetadataKey(records[j].SymbolID, records[j].ProviderID)
	})
	return records
}

// UpsertMetadata writes one metadata record, updating cache and KV in the
// same transaction.
func (db *TickDB) UpsertMetadata(metadata dfh.TickMetadata) error {
	if !db.started {
		return dfh.ErrStorageNotInitialized
	}
	key := dfh.MetadataKey(metadata.SymbolID, metadata.ProviderID)
	if cached, ok := db.metadata[key]; ok && cached == metadata {
		return nil
	}
	err := db.conn.Update(func(txn *mdbx.Txn) error {
		return txn.Put(db.dbiMetadata, metadataKeyBytes(metadata.SymbolID, metadata.ProviderID),
			metadata.AppendTo(nil), 0)
	})
	if err != nil {
		return err
	}
	db.metadata[key] = metadata
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// UpsertTicks stores a time-ordered tick batch, splitting it into hour
// segments that each replace any previously stored segment for that hour.
// Metadata widens to cover the batch and adopts the latest precision; the
// write-back is part of the same transaction.
func (db *TickDB) UpsertTicks(symbolID, providerID uint16, ticks []dfh.MarketTick, config *dfh.TickCodecConfig) error {
	if !db.started {
		return dfh.ErrStorageNotInitialized
	}
	if len(ticks) == 0 {
		return nil
	}
	if err := config.Validate(); err != nil {
		return err
	}

	segments, err := dfh.SplitTicksByHour(ticks)
	if err != nil {
		return err
	}

	startTs := ticks[0].TimeMs
	endTs := ticks[len(ticks)-1].TimeMs

	metadataKey := dfh.MetadataKey(symbolID, providerID)
	metadata, known := db.metadata[metadataKey]
	if !known {
		metadata = dfh.TickMetadata{
			SymbolID:       symbolID,
			ProviderID:     providerID,
			PriceDigits:    config.PriceDigits,
			VolumeDigits:   config.VolumeDigits,
			Flags:          config.Flags,
			StartTs:        startTs,
			EndTs:          endTs,
			PriceTickSize:  dfh.StepSize(config.PriceDigits),
			VolumeStepSize: dfh.StepSize(config.VolumeDigits),
		}
	} else {
		if metadata.PriceDigits != config.PriceDigits {
			metadata.PriceDigits = config.PriceDigits
			metadata.PriceTickSize = dfh.StepSize(config.PriceDigits)
		}
		if metadata.VolumeDigits != config.VolumeDigits {
			metadata.VolumeDigits = config.VolumeDigits
			metadata.VolumeStepSize = dfh.StepSize(config.VolumeDigits)
		}
		metadata.Flags = config.Flags
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
			unixHour := uint32(dfh.MsToHour(segment[0].TimeMs))
			if err := txn.Put(db.dbiTicks, segmentKeyBytes(symbolID, providerID, unixHour),
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

// FetchTicks reads ticks in [startTs, endTs). Missing hour segments are
// legal gaps, not errors; the returned config carries the precision of the
// last decoded segment.
func (db *TickDB) FetchTicks(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	var config dfh.TickCodecConfig
	if !db.started {
		return nil, config, dfh.ErrStorageNotInitialized
	}
	if endTs <= startTs {
		return nil, config, nil
	}

	startHour := dfh.MsToHour(startTs)
	endHour := dfh.MsToHour(endTs - 1)

	var ticks []dfh.MarketTick
	err := db.conn.View(func(txn *mdbx.Txn) error {
		for unixHour := startHour; unixHour <= endHour; unixHour++ {
			value, err := txn.Get(db.dbiTicks, segmentKeyBytes(symbolID, providerID, uint32(unixHour)))
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
			ticks = append(ticks, segment...)
			config = segmentConfig
		}
		return nil
	})
	if err != nil {
		return nil, config, err
	}

	ticks = dfh.CropTicksByTime(ticks, startTs, endTs)
	return ticks, config, nil
}
