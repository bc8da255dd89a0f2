package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger is an optional persistent storage table backed by an embedded LSM
// tree, for deployments that need the storage table to survive a restart.
// The default remains Memory; operators opt in via config.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if necessary) a Badger database at dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrBadInput
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return out, nil
}

func (b *Badger) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrBadInput
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return nil
}

func (b *Badger) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrBadInput
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return nil
}

func (b *Badger) Clear() error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return nil
}

func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return nil
}

// Keys returns every key currently stored, read via a single read-only
// iterator transaction with value prefetch disabled.
func (b *Badger) Keys() ([][]byte, error) {
	var out [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemIO, err)
	}
	return out, nil
}
