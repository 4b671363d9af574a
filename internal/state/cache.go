// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/playwarden/internal/models"
)

// ErrCacheMiss is returned by a Cache that holds no state.
var ErrCacheMiss = errors.New("state cache miss")

// Cache is the fast tier in front of the durable file.
type Cache interface {
	Load() (models.SystemState, error)
	Store(models.SystemState) error
	Close() error
}

const systemStateKey = "system:state"

// BadgerCache keeps the system state under one key in BadgerDB.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerCache opens a cache at path, or in memory when path is empty.
// A zero ttl keeps entries until overwritten.
func OpenBadgerCache(path string, ttl time.Duration) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state cache: %w", err)
	}
	return NewBadgerCache(db, ttl), nil
}

// NewBadgerCache wraps an already open database.
func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	return &BadgerCache{db: db, ttl: ttl}
}

// Load implements Cache.
func (c *BadgerCache) Load() (models.SystemState, error) {
	var st models.SystemState
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(systemStateKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return models.SystemState{}, err
	}
	return normalize(st), nil
}

// Store implements Cache.
func (c *BadgerCache) Store(st models.SystemState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(systemStateKey), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close implements Cache.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
