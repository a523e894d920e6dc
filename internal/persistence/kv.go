package persistence

import "context"

// KV is a string key/value namespace. Session lifetimes are backed by one KV each.
type KV interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
