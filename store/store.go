// Package store provides the durable key-value state layer for the contract.
//
// The contract keeps authoritative state in memory and commits every
// successful operation's touched records in a single atomic write, so a
// restart reconstructs exactly the state of the last committed operation.
package store

import "errors"

// ErrNotFound is returned by Get when no value exists for a key.
var ErrNotFound = errors.New("key not found")

// Record is a single key-value pair in a commit batch.
type Record struct {
	Key   []byte
	Value []byte
}

// StateStore is a durable key-value store with atomic batch commits.
type StateStore interface {
	// Get returns the value for a key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Commit writes all records atomically. Either every record is
	// persisted or none are.
	Commit(records []Record) error

	// Iterate calls fn for every key with the given prefix. Returning an
	// error from fn stops iteration and propagates the error.
	Iterate(prefix []byte, fn func(key, value []byte) error) error

	// Close releases store resources.
	Close() error
}
