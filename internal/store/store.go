// Package store persists strategy snapshots so an in-flight trade survives a
// restart.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing is stored under a key
var ErrNotFound = errors.New("store: not found")

// Keys of the persisted snapshots
const (
	KeyParameters = "strategy_params"
	KeyTrade      = "pairs_trade"
	KeyRuntime    = "engine_state"
)

// Store saves opaque blobs under fixed keys. Save must be atomic: a reader
// sees either the previous blob or the new one.
type Store interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
