// Package storage implements the storage table (C5): an opaque key/value
// map exposed to authenticated clients. Table is the contract; Memory is the
// default in-process implementation, and Badger (badger.go) is an optional
// persistent backend.
package storage

import "errors"

var (
	// ErrNotFound is returned by Get/Delete for an absent key.
	ErrNotFound = errors.New("storage: not found")
	// ErrBadInput is returned for an empty key.
	ErrBadInput = errors.New("storage: bad input")
	// ErrSystemIO wraps failures from a persistent backend.
	ErrSystemIO = errors.New("storage: system io")
)

// Table is the contract the dispatch layer's serve() handlers program
// against; both Memory and Badger satisfy it so the backend is swappable
// via config without touching call sites.
type Table interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Clear() error
	Close() error
	// Keys returns every stored key, in no particular order. It exists for
	// offline inspection (vaultadm's storage list); the dispatch layer's
	// serve() handlers never call it.
	Keys() ([][]byte, error)
}
