package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	"github.com/lumio-chat/inlinegw/infrastructure/valkey"
	"github.com/sirupsen/logrus"
)

// ValkeyResultStore implements cache.IResultStore on Valkey. Entries are
// JSON blobs; a sorted set scored by write timestamp keeps the eviction
// order without scanning the keyspace.
type ValkeyResultStore struct {
	client *valkey.Client
	base   string
}

func NewValkeyResultStore(client *valkey.Client) *ValkeyResultStore {
	return &ValkeyResultStore{client: client, base: client.Key("inline")}
}

func (s *ValkeyResultStore) dataKey(key string) string {
	return s.base + ":" + key
}

func (s *ValkeyResultStore) indexKey() string {
	return s.base + ":index"
}

// decodeCachedEntry parses a stored blob. A failure marks the entry as
// undecodable; callers treat that as a miss.
func decodeCachedEntry(data []byte) (*domainCache.CachedEntry, bool) {
	var entry domainCache.CachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

func (s *ValkeyResultStore) Get(ctx context.Context, key string) (*domainCache.CachedEntry, error) {
	inner := s.client.Inner()
	data, err := inner.Do(ctx, inner.B().Get().Key(s.dataKey(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached entry: %w", err)
	}

	entry, ok := decodeCachedEntry(data)
	if !ok {
		// Corrupt entry is a miss, not an error.
		logrus.Warnf("[RESULTSTORE] Dropping undecodable entry %s", key)
		_ = s.Delete(ctx, key)
		return nil, nil
	}
	return entry, nil
}

func (s *ValkeyResultStore) Put(ctx context.Context, key string, entry domainCache.CachedEntry, policy domainCache.EvictionPolicy) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached entry: %w", err)
	}

	inner := s.client.Inner()
	if err := inner.Do(ctx, inner.B().Set().Key(s.dataKey(key)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to store cached entry: %w", err)
	}

	score := float64(entry.Timestamp.UnixMilli())
	cmd := inner.B().Zadd().Key(s.indexKey()).ScoreMember().ScoreMember(score, key).Build()
	if err := inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to index cached entry: %w", err)
	}

	return s.evict(ctx, policy)
}

// evict trims the collection down to the low watermark once it exceeds the
// high watermark, oldest score first.
func (s *ValkeyResultStore) evict(ctx context.Context, policy domainCache.EvictionPolicy) error {
	inner := s.client.Inner()
	count, err := inner.Do(ctx, inner.B().Zcard().Key(s.indexKey()).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to count cached entries: %w", err)
	}
	excess := evictionExcess(count, policy)
	if excess == 0 {
		return nil
	}

	victims, err := inner.Do(ctx, inner.B().Zrange().
		Key(s.indexKey()).
		Min("0").
		Max(strconv.FormatInt(excess-1, 10)).
		Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("failed to list eviction victims: %w", err)
	}
	if len(victims) == 0 {
		return nil
	}

	dataKeys := make([]string, len(victims))
	for i, v := range victims {
		dataKeys[i] = s.dataKey(v)
	}
	if err := inner.Do(ctx, inner.B().Del().Key(dataKeys...).Build()).Error(); err != nil {
		return fmt.Errorf("failed to evict entries: %w", err)
	}
	if err := inner.Do(ctx, inner.B().Zrem().Key(s.indexKey()).Member(victims...).Build()).Error(); err != nil {
		return fmt.Errorf("failed to unindex evicted entries: %w", err)
	}
	return nil
}

func (s *ValkeyResultStore) Delete(ctx context.Context, key string) error {
	inner := s.client.Inner()
	if err := inner.Do(ctx, inner.B().Del().Key(s.dataKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete cached entry: %w", err)
	}
	if err := inner.Do(ctx, inner.B().Zrem().Key(s.indexKey()).Member(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to unindex cached entry: %w", err)
	}
	return nil
}

func (s *ValkeyResultStore) Count(ctx context.Context) (int64, error) {
	inner := s.client.Inner()
	return inner.Do(ctx, inner.B().Zcard().Key(s.indexKey()).Build()).AsInt64()
}

func (s *ValkeyResultStore) Stats(ctx context.Context) (domainCache.CacheStats, error) {
	inner := s.client.Inner()
	scored, err := inner.Do(ctx, inner.B().Zrange().
		Key(s.indexKey()).
		Min("0").
		Max("-1").
		Withscores().
		Build()).AsZScores()
	if err != nil {
		return domainCache.CacheStats{}, fmt.Errorf("failed to list cached entries: %w", err)
	}

	stats := domainCache.CacheStats{Entries: int64(len(scored))}
	if len(scored) == 0 {
		stats.HumanSize = humanize.Bytes(0)
		return stats, nil
	}

	oldest := time.UnixMilli(int64(scored[0].Score)).UTC()
	stats.Oldest = &oldest

	keys := make([]string, len(scored))
	for i, z := range scored {
		keys[i] = s.dataKey(z.Member)
	}
	values, err := inner.Do(ctx, inner.B().Mget().Key(keys...).Build()).AsStrSlice()
	if err != nil {
		return domainCache.CacheStats{}, fmt.Errorf("failed to size cached entries: %w", err)
	}
	for _, v := range values {
		stats.TotalSize += int64(len(v))
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.TotalSize))
	return stats, nil
}

func (s *ValkeyResultStore) Clear(ctx context.Context) error {
	inner := s.client.Inner()
	members, err := inner.Do(ctx, inner.B().Zrange().
		Key(s.indexKey()).
		Min("0").
		Max("-1").
		Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("failed to list cached entries: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, s.dataKey(m))
	}
	keys = append(keys, s.indexKey())
	return inner.Do(ctx, inner.B().Del().Key(keys...).Build()).Error()
}

func (s *ValkeyResultStore) Close() error {
	s.client.Close()
	return nil
}
