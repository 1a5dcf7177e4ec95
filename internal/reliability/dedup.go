// Package reliability holds the cross-cutting primitives wrapped around
// calls into the external text-generation dependency: request deduplication
// and retry with exponential backoff.
package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Deduplicator guarantees at-most-one in-flight execution of a logical
// operation identified by a string key. Concurrent callers with the same key
// all observe the result of the single execution. Once an execution settles
// the key is released, so a later call with the same key runs again: this
// is a concurrency-window dedup, not a cache.
type Deduplicator struct {
	group singleflight.Group
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Do executes op under the given key, or waits for an identical in-flight
// call and returns its result.
func (d *Deduplicator) Do(ctx context.Context, key string, op func(ctx context.Context) (string, error)) (string, error) {
	result, err, shared := d.group.Do(key, func() (any, error) {
		return op(ctx)
	})
	if shared {
		slog.Debug("request deduplicated", "key", key)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Key canonicalizes request parts (prompt, model, ...) into a stable
// fixed-length dedup key.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
