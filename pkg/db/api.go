// Package db defines the key-value storage the persisted configurations live in.
package db

// Reader is the read side of a store.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Scan calls fn for each key with the given prefix in key order and stops at the first error
	// fn returns. The slices are only valid during the call and fn must not write to the store.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

type KVStore interface {
	Reader
	Writer
	NewBatch() Batch
	Close() error
}

// Batch collects writes that become visible together on Commit. A batch is single-use and must
// be closed whether or not it was committed.
type Batch interface {
	Writer
	Commit() error
	Close() error
}
