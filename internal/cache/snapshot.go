package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
)

// Snapshot is one cached set of quotes with its fetch time.
type Snapshot struct {
	FetchedAt time.Time           `json:"fetched_at"`
	Quotes    []models.AssetQuote `json:"quotes"`
}

// SnapshotStore persists market snapshots keyed by request signature.
// Get returns (nil, nil) on a miss.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*Snapshot, error)
	Set(ctx context.Context, key string, snap *Snapshot) error
}

// MemoryStore is the default in-process SnapshotStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return snap, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = snap
	return nil
}

// MarketCache serves provider snapshots with a short TTL. An expired entry
// is kept around so it can be served when the refresh comes back
// rate-limited (availability over freshness).
type MarketCache struct {
	store SnapshotStore
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// DefaultMarketTTL is how long a snapshot is considered fresh.
const DefaultMarketTTL = 30 * time.Second

func NewMarketCache(store SnapshotStore, ttl time.Duration, log *zap.Logger) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{store: store, ttl: ttl, log: log, now: time.Now}
}

// GetOrFetch returns the cached quotes for key if fresh, otherwise calls
// fetch. A rate-limited fetch falls back to the stale entry when one
// exists; any other failure propagates. A successful fetch overwrites the
// entry with a fresh timestamp.
func (c *MarketCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]models.AssetQuote, error)) ([]models.AssetQuote, error) {
	stale, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("snapshot store read failed, treating as miss", zap.String("key", key), zap.Error(err))
		stale = nil
	}
	if stale != nil && c.now().Sub(stale.FetchedAt) < c.ttl {
		return stale.Quotes, nil
	}

	quotes, err := fetch(ctx)
	if err != nil {
		if stale != nil && apperrors.IsRateLimited(err) {
			c.log.Info("upstream rate limited, serving stale snapshot",
				zap.String("key", key),
				zap.Duration("age", c.now().Sub(stale.FetchedAt)))
			return stale.Quotes, nil
		}
		return nil, err
	}

	if serr := c.store.Set(ctx, key, &Snapshot{FetchedAt: c.now(), Quotes: quotes}); serr != nil {
		c.log.Warn("snapshot store write failed", zap.String("key", key), zap.Error(serr))
	}
	return quotes, nil
}

// KeyForIDs builds the cache key for an id-pinned markets request. The id
// list is sorted so logically identical requests share one entry.
func KeyForIDs(currency string, ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return fmt.Sprintf("markets:%s:ids=%s", strings.ToLower(currency), strings.Join(sorted, ","))
}

// KeyForLimit builds the cache key for a top-N markets request.
func KeyForLimit(currency string, limit int) string {
	return fmt.Sprintf("markets:%s:top=%d", strings.ToLower(currency), limit)
}
