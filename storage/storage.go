// Copyright (c) 2025 Quantfeed Corp
//
// Storage bundles the per-entity DBs over one shared MDBX environment and
// one process-wide entropy compressor.

package storage

import (
	"github.com/quantfeed/dfh-go/compress"
)

// Storage owns the MDBX connection and the tick, bar and funding DBs.
type Storage struct {
	Conn    *Connection
	Ticks   *TickDB
	Bars    *BarDB
	Funding *FundingDB

	compressor *compress.Compressor
}

// Open connects the environment and constructs the per-entity DBs. Call
// Start before reading or writing.
func Open(config Config) (*Storage, error) {
	conn, err := Connect(config)
	if err != nil {
		return nil, err
	}
	compressor, err := compress.NewCompressor()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Storage{
		Conn:       conn,
		Ticks:      NewTickDB(conn, compressor),
		Bars:       NewBarDB(conn, compressor),
		Funding:    NewFundingDB(conn, compressor),
		compressor: compressor,
	}, nil
}

// Compressor exposes the shared entropy stage for dictionary registration.
func (s *Storage) Compressor() *compress.Compressor {
	return s.compressor
}

// Start opens every sub-database and loads the metadata caches.
func (s *Storage) Start() error {
	if err := s.Ticks.Start(); err != nil {
		return err
	}
	if err := s.Bars.Start(); err != nil {
		return err
	}
	return s.Funding.Start()
}

// Close stops the DBs and releases the environment.
func (s *Storage) Close() {
	s.Funding.Stop()
	s.Bars.Stop()
	s.Ticks.Stop()
	s.compressor.Close()
	s.Conn.Close()
}
