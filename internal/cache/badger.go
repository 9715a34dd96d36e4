package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache is a ResponseCache backed by an embedded BadgerDB, the
// default persistent backend: entries survive process restarts without any
// external infrastructure.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) a Badger store at dir.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache at %s: %w", dir, err)
	}
	return &BadgerCache{db: db}, nil
}

// NewBadgerCacheFromDB wraps an already-open database. Used by tests with
// an in-memory instance.
func NewBadgerCacheFromDB(db *badger.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

// Get returns the cached value for key, or a miss if absent or expired.
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}

	return value, true, nil
}

// Set upserts the value for key with the given TTL (0 = no expiry).
func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

var _ ResponseCache = (*BadgerCache)(nil)
