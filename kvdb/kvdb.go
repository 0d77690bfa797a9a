// Package kvdb abstracts over the concrete storage engine backing swap
// persistence. The daemon stores one record per swap, keyed by its
// SwapId, plus the per-ledger substate records nested inside it; which
// engine holds that data is an operational choice, not a concern of the
// swap state machine.
package kvdb

import "errors"

// ErrBucketNotFound is returned when a named bucket does not exist.
var ErrBucketNotFound = errors.New("kvdb: bucket not found")

// ErrKeyNotFound is returned when a key does not exist within a bucket.
var ErrKeyNotFound = errors.New("kvdb: key not found")

// Backend is a minimal key-value store abstraction. Swap records are
// serialized by the caller (channeldb) and stored as opaque blobs; kvdb
// itself is agnostic to their shape.
type Backend interface {
	// View opens a read-only transaction.
	View(func(tx ReadTx) error) error

	// Update opens a read-write transaction. If fn returns an error, the
	// transaction is rolled back.
	Update(func(tx ReadWriteTx) error) error

	// Close releases the backend's resources.
	Close() error
}

// ReadTx exposes read-only bucket access within a transaction.
type ReadTx interface {
	ReadBucket(name []byte) (ReadBucket, error)
}

// ReadWriteTx exposes read-write bucket access within a transaction.
type ReadWriteTx interface {
	ReadTx

	CreateTopLevelBucket(name []byte) (ReadWriteBucket, error)
	ReadWriteBucket(name []byte) (ReadWriteBucket, error)
}

// ReadBucket allows lookups and ordered iteration over a bucket's keys.
type ReadBucket interface {
	Get(key []byte) []byte
	ForEach(func(k, v []byte) error) error
}

// ReadWriteBucket extends ReadBucket with mutation.
type ReadWriteBucket interface {
	ReadBucket

	Put(key, value []byte) error
	Delete(key []byte) error
}
