// Package storage provides the durable key-value stores that hold bearer
// tokens and session cache entries.
package storage

import "context"

// Store is a durable key-value store with single-key atomicity.
//
// Get reports found=false for a missing key; that is not an error.
// Remove is idempotent.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
