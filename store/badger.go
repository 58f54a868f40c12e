package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements StateStore on a badger database.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds settings for opening the state database.
type BadgerConfig struct {
	// Path is the data directory.
	Path string

	// SyncWrites forces fsync on every commit. The contract relies on
	// committed operations surviving a crash, so this defaults to on;
	// tests may disable it.
	SyncWrites bool
}

// NewBadgerStore opens (or creates) the state database at the given path.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.SyncWrites = config.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Get returns the value for a key, or ErrNotFound.
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Commit writes all records in a single badger transaction.
func (s *BadgerStore) Commit(records []Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := txn.Set(r.Key, r.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Iterate calls fn for every key with the given prefix, in key order.
func (s *BadgerStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ StateStore = (*BadgerStore)(nil)
