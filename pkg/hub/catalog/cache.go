package catalog

import (
	"context"
	"time"
)

const (
	// SnapshotCacheKey holds the JSON-encoded flattened catalog.
	SnapshotCacheKey = "hub:catalog:snapshot"
	// GenerationCacheKey changes after every committed write. A snapshot is
	// only served while it carries the current generation.
	GenerationCacheKey = "hub:catalog:generation"
)

// Cache is the subset of a key/value store the catalog needs.
// Get returns ("", nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// snapshot is the cached form of FetchAll.
type snapshot struct {
	Generation string              `json:"generation"`
	Resources  []FlattenedResource `json:"resources"`
}
