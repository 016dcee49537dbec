package cache

import (
	"context"
	"time"
)

// CachedEntry is the stored form of a result collection: the opaque
// serialized payload plus the instant it was written. Entries are
// overwritten wholesale on refresh, never mutated in place.
type CachedEntry struct {
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// EvictionPolicy bounds a logical collection by item count. When an insert
// pushes the collection above HighWater, the store evicts oldest entries
// (by timestamp) down to LowWater.
type EvictionPolicy struct {
	LowWater  int `json:"low_water"`
	HighWater int `json:"high_water"`
}

var DefaultEvictionPolicy = EvictionPolicy{LowWater: 40, HighWater: 60}

type CacheStats struct {
	Entries   int64      `json:"entries"`
	TotalSize int64      `json:"total_size"`
	HumanSize string     `json:"human_size"`
	Oldest    *time.Time `json:"oldest,omitempty"`
}

// IResultStore is the persistent key-value store for cached inline result
// collections. Get returns (nil, nil) on a missing key; individual reads
// and writes are atomic, so a reader never observes a partially written
// entry.
type IResultStore interface {
	Get(ctx context.Context, key string) (*CachedEntry, error)
	Put(ctx context.Context, key string, entry CachedEntry, policy EvictionPolicy) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (CacheStats, error)
	Clear(ctx context.Context) error
	Close() error
}
