// Package kvstore provides the key-value persistence layer for training
// content. The store contract is eventually consistent: a successful Put is
// not guaranteed to be visible to an immediately following Get.
package kvstore

import "context"

// Store reads and writes namespaced JSON values. Get returns (nil, nil) when
// the key is not visible. Reads of multiple keys may be issued concurrently.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// DefaultNamespace scopes keys when no namespace is configured.
const DefaultNamespace = "training"
