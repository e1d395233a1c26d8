package pebble

import (
	"github.com/cockroachdb/pebble"

	"github.com/eigerco/isel/pkg/db"
)

type batchState uint8

const (
	batchOpen batchState = iota
	batchCommitted
	batchClosed
)

// Batch is not safe for concurrent use.
type Batch struct {
	batch *pebble.Batch
	state batchState
}

func (p *KVStore) NewBatch() db.Batch {
	return &Batch{batch: p.db.NewBatch()}
}

func (b *Batch) Put(key, value []byte) error {
	if b.state != batchOpen {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.state != batchOpen {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *Batch) Commit() error {
	if b.state != batchOpen {
		return ErrBatchDone
	}
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.state = batchCommitted
	return nil
}

// Close releases the batch, dropping uncommitted writes. Closing twice is a no-op.
func (b *Batch) Close() error {
	if b.state == batchClosed {
		return nil
	}
	b.state = batchClosed
	return b.batch.Close()
}
