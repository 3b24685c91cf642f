// Copyright (c) 2025 Quantfeed Corp
//
// Hourly segmented funding-rate storage over MDBX, mirroring the tick
// layout with the fixed-layout funding codec.

package storage

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/compress"
)

///////////////////////////////////////////////////////////////////////////////

const (
	fundingDBName         = "funding"
	fundingMetadataDBName = "funding_metadata"
)

// FundingDB stores and retrieves hourly funding-rate segments.
type FundingDB struct {
	conn       *Connection
	compressor *compress.Compressor

	metadata map[uint32]dfh.FundingMetadata

	dbiFunding  mdbx.DBI
	dbiMetadata mdbx.DBI
	started     bool

	scratch []byte
}

// NewFundingDB returns a FundingDB over the given connection.
func NewFundingDB(conn *Connection, compressor *compress.Compressor) *FundingDB {
	return &FundingDB{
		conn:       conn,
		compressor: compressor,
		metadata:   make(map[uint32]dfh.FundingMetadata),
	}
}

// Start opens the sub-databases and loads the metadata cache.
func (db *FundingDB) Start() error {
	err := db.conn.Update(func(txn *mdbx.Txn) error {
		var err error
		if db.dbiFunding, err = txn.OpenDBISimple(fundingDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", fundingDBName, err)
		}
		if db.dbiMetadata, err = txn.OpenDBISimple(fundingMetadataDBName, mdbx.Create|mdbx.IntegerKey); err != nil {
			return fmt.Errorf("open %q: %w", fundingMetadataDBName, err)
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
			var metadata dfh.FundingMetadata
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
func (db *FundingDB) Stop() {
	if !db.started {
		return
	}
	env := db.conn.Env()
	env.CloseDBI(db.dbiFunding)
	env.CloseDBI(db.dbiMetadata)
	db.started = false
}

///////////////////////////////////////////////////////////////////////////////

// CachedMetadata returns the cached metadata for a (symbol, provider).
func (db *FundingDB) CachedMetadata(symbolID, providerID uint16) (dfh.FundingMetadata, bool) {
	metadata, ok := db.metadata[dfh.MetadataKey(symbolID, providerID)]
	return metadata, ok
}

///////////////////////////////////////////////////////////////////////////////

// UpsertRates stores a time-ordered funding batch in hourly segments.
func (db *FundingDB) UpsertRates(symbolID, providerID uint16, rates []dfh.FundingRate) error {
	if !db.started {
		return dfh.ErrStorageNotInitialized
	}
	if len(rates) == 0 {
		return nil
	}
	for i := 1; i < len(rates); i++ {
		if rates[i].TimeMs < rates[i-1].TimeMs {
			return dfh.ErrOutOfOrder
		}
	}

	type segment struct {
		unixHour uint32
		rates    []dfh.FundingRate
	}
	var segments []segment
	segStart := 0
	currentHour := dfh.MsToHour(rates[0].TimeMs)
	for i := 1; i < len(rates); i++ {
		if hour := dfh.MsToHour(rates[i].TimeMs); hour != currentHour {
			segments = append(segments, segment{uint32(currentHour), rates[segStart:i]})
			segStart = i
			currentHour = hour
		}
	}
	segments = append(segments, segment{uint32(currentHour), rates[segStart:]})

	metadataKey := dfh.MetadataKey(symbolID, providerID)
	metadata, known := db.metadata[metadataKey]
	if !known {
		metadata = dfh.FundingMetadata{
			SymbolID:    symbolID,
			ProviderID:  providerID,
			PeriodHours: rates[0].PeriodHours,
			StartTs:     rates[0].TimeMs,
			EndTs:       rates[len(rates)-1].TimeMs,
		}
	} else {
		if rates[0].TimeMs < metadata.StartTs {
			metadata.StartTs = rates[0].TimeMs
		}
		if rates[len(rates)-1].TimeMs > metadata.EndTs {
			metadata.EndTs = rates[len(rates)-1].TimeMs
		}
		metadata.PeriodHours = rates[len(rates)-1].PeriodHours
	}

	err := db.conn.Update(func(txn *mdbx.Txn) error {
		if err := txn.Put(db.dbiMetadata, metadataKeyBytes(symbolID, providerID),
			metadata.AppendTo(nil), 0); err != nil {
			return err
		}
		for _, seg := range segments {
			blob := compress.EncodeFundingRaw(db.scratch[:0], seg.rates)
			db.scratch = blob
			compressed := db.compressor.Compress(nil, blob)
			if err := txn.Put(db.dbiFunding, segmentKeyBytes(symbolID, providerID, seg.unixHour),
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

// FetchRates reads funding rates in [startTs, endTs).
func (db *FundingDB) FetchRates(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.FundingRate, error) {
	if !db.started {
		return nil, dfh.ErrStorageNotInitialized
	}
	if endTs <= startTs {
		return nil, nil
	}
	startHour := dfh.MsToHour(startTs)
	endHour := dfh.MsToHour(endTs - 1)

	var rates []dfh.FundingRate
	err := db.conn.View(func(txn *mdbx.Txn) error {
		for unixHour := startHour; unixHour <= endHour; unixHour++ {
			value, err := txn.Get(db.dbiFunding, segmentKeyBytes(symbolID, providerID, uint32(unixHour)))
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
			segment, err := compress.DecodeFundingRaw(blob)
			if err != nil {
				return err
			}
			rates = append(rates, segment...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// crop to the requested window
	lo := 0
	for lo < len(rates) && rates[lo].TimeMs < startTs {
		lo++
	}
	hi := len(rates)
	for hi > lo && rates[hi-1].TimeMs >= endTs {
		hi--
	}
	return rates[lo:hi], nil
}
