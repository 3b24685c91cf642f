// Copyright (c) 2025 Quantfeed Corp
//
// MDBX environment wrapper. The environment is shared across every
// sub-database and must be opened exactly once per process; the per-entity
// DB handles are cheap wrappers over it.

package storage

import (
	"fmt"
	"os"

	"github.com/erigontech/mdbx-go/mdbx"
	dfh "github.com/quantfeed/dfh-go"
)

///////////////////////////////////////////////////////////////////////////////

const (
	// DefaultMapSize is the upper bound of the memory map.
	DefaultMapSize = 1 << 40 // 1 TiB

	// DefaultMaxDBs bounds the number of named sub-databases.
	DefaultMaxDBs = 16

	defaultFileMode os.FileMode = 0o644
)

// Config parameterizes the MDBX environment.
type Config struct {
	Path     string // directory holding the environment
	MapSize  int    // memory map upper bound; 0 selects DefaultMapSize
	ReadOnly bool
}

// Connection owns the MDBX environment handle.
type Connection struct {
	env    *mdbx.Env
	config Config
}

// Connect opens the MDBX environment at config.Path.
func Connect(config Config) (*Connection, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dfh.ErrTransactionFailed, err)
	}
	if err = env.SetOption(mdbx.OptMaxDB, DefaultMaxDBs); err != nil {
		env.Close()
		return nil, fmt.Errorf("%w: %v", dfh.ErrTransactionFailed, err)
	}
	mapSize := config.MapSize
	if mapSize == 0 {
		mapSize = DefaultMapSize
	}
	if err = env.SetGeometry(-1, -1, mapSize, -1, -1, 4096); err != nil {
		env.Close()
		return nil, fmt.Errorf("%w: %v", dfh.ErrTransactionFailed, err)
	}

	flags := uint(mdbx.Durable | mdbx.NoReadahead)
	if config.ReadOnly {
		flags |= mdbx.Readonly
	}
	if err = env.Open(config.Path, flags, defaultFileMode); err != nil {
		env.Close()
		return nil, fmt.Errorf("%w: open %s: %v", dfh.ErrTransactionFailed, config.Path, err)
	}
	return &Connection{env: env, config: config}, nil
}

// Env exposes the raw environment handle to the per-entity DBs.
func (c *Connection) Env() *mdbx.Env {
	return c.env
}

// Update runs fn inside a read-write transaction. The transaction commits
// when fn returns nil and aborts otherwise; MDBX serializes writers.
func (c *Connection) Update(fn func(txn *mdbx.Txn) error) error {
	if err := c.env.Update(fn); err != nil {
		return fmt.Errorf("%w: %v", dfh.ErrTransactionFailed, err)
	}
	return nil
}

// View runs fn inside a read-only snapshot transaction.
func (c *Connection) View(fn func(txn *mdbx.Txn) error) error {
	if err := c.env.View(fn); err != nil {
		return fmt.Errorf("%w: %v", dfh.ErrTransactionFailed, err)
	}
	return nil
}

// Close releases the environment. Callers stop every DB first.
func (c *Connection) Close() {
	c.env.Close()
}
