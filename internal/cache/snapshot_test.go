package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
)

func testQuotes(price float64) []models.AssetQuote {
	return []models.AssetQuote{
		{ID: "bitcoin", Symbol: "BTC", PriceUSD: price, Source: "coingecko"},
	}
}

func TestGetOrFetch_FreshEntrySkipsFetch(t *testing.T) {
	c := NewMarketCache(NewMemoryStore(), DefaultMarketTTL, zap.NewNop())
	ctx := context.Background()
	fetches := 0
	fetch := func(context.Context) ([]models.AssetQuote, error) {
		fetches++
		return testQuotes(50000), nil
	}

	for i := 0; i < 3; i++ {
		quotes, err := c.GetOrFetch(ctx, "k", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch #%d failed: %v", i, err)
		}
		if len(quotes) != 1 || quotes[0].PriceUSD != 50000 {
			t.Fatalf("GetOrFetch #%d returned %v", i, quotes)
		}
	}
	if fetches != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", fetches)
	}
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	c := NewMarketCache(NewMemoryStore(), DefaultMarketTTL, zap.NewNop())
	ctx := context.Background()
	price := 50000.0
	fetch := func(context.Context) ([]models.AssetQuote, error) {
		return testQuotes(price), nil
	}

	if _, err := c.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatalf("Initial fetch failed: %v", err)
	}

	// Age the entry one second past the TTL.
	c.now = func() time.Time { return time.Now().Add(DefaultMarketTTL + time.Second) }
	price = 51000

	quotes, err := c.GetOrFetch(ctx, "k", fetch)
	if err != nil {
		t.Fatalf("Refetch failed: %v", err)
	}
	if quotes[0].PriceUSD != 51000 {
		t.Errorf("Expected the refreshed price 51000, got %f", quotes[0].PriceUSD)
	}
}

func TestGetOrFetch_ServesStaleOnRateLimit(t *testing.T) {
	c := NewMarketCache(NewMemoryStore(), DefaultMarketTTL, zap.NewNop())
	ctx := context.Background()

	ok := func(context.Context) ([]models.AssetQuote, error) { return testQuotes(50000), nil }
	if _, err := c.GetOrFetch(ctx, "k", ok); err != nil {
		t.Fatalf("Initial fetch failed: %v", err)
	}

	c.now = func() time.Time { return time.Now().Add(DefaultMarketTTL + time.Second) }
	rateLimited := func(context.Context) ([]models.AssetQuote, error) {
		return nil, apperrors.Upstream("coingecko", apperrors.UpstreamRateLimited, "429")
	}

	quotes, err := c.GetOrFetch(ctx, "k", rateLimited)
	if err != nil {
		t.Fatalf("Expected the stale snapshot, got error: %v", err)
	}
	if quotes[0].PriceUSD != 50000 {
		t.Errorf("Expected the stale price 50000, got %f", quotes[0].PriceUSD)
	}
}

func TestGetOrFetch_NonRateLimitFailurePropagates(t *testing.T) {
	c := NewMarketCache(NewMemoryStore(), DefaultMarketTTL, zap.NewNop())
	ctx := context.Background()

	ok := func(context.Context) ([]models.AssetQuote, error) { return testQuotes(50000), nil }
	if _, err := c.GetOrFetch(ctx, "k", ok); err != nil {
		t.Fatalf("Initial fetch failed: %v", err)
	}

	c.now = func() time.Time { return time.Now().Add(DefaultMarketTTL + time.Second) }
	down := func(context.Context) ([]models.AssetQuote, error) {
		return nil, apperrors.Upstream("coingecko", apperrors.UpstreamUnavailable, "503")
	}

	// A stale entry exists, but only rate limiting unlocks it.
	if _, err := c.GetOrFetch(ctx, "k", down); !apperrors.IsUpstream(err) {
		t.Errorf("Expected the upstream error to propagate, got %v", err)
	}
}

func TestGetOrFetch_RateLimitWithoutStaleEntryFails(t *testing.T) {
	c := NewMarketCache(NewMemoryStore(), DefaultMarketTTL, zap.NewNop())
	rateLimited := func(context.Context) ([]models.AssetQuote, error) {
		return nil, apperrors.Upstream("coingecko", apperrors.UpstreamRateLimited, "429")
	}

	if _, err := c.GetOrFetch(context.Background(), "k", rateLimited); !apperrors.IsRateLimited(err) {
		t.Errorf("Expected the rate limit error with no stale fallback, got %v", err)
	}
}

type failingStore struct{ readErr error }

func (s *failingStore) Get(context.Context, string) (*Snapshot, error) { return nil, s.readErr }
func (s *failingStore) Set(context.Context, string, *Snapshot) error { return nil }

func TestGetOrFetch_StoreReadFailureIsAMiss(t *testing.T) {
	c := NewMarketCache(&failingStore{readErr: errors.New("redis gone")}, DefaultMarketTTL, zap.NewNop())
	fetch := func(context.Context) ([]models.AssetQuote, error) { return testQuotes(50000), nil }

	quotes, err := c.GetOrFetch(context.Background(), "k", fetch)
	if err != nil {
		t.Fatalf("Expected a store failure to fall through to fetch: %v", err)
	}
	if quotes[0].PriceUSD != 50000 {
		t.Errorf("Expected fetched quotes, got %v", quotes)
	}
}

func TestSnapshotKeys(t *testing.T) {
	a := KeyForIDs("USD", []string{"ethereum", "bitcoin"})
	b := KeyForIDs("usd", []string{"bitcoin", "ethereum"})
	if a != b {
		t.Errorf("Id-set keys must be order and case insensitive: %q vs %q", a, b)
	}
	if a == KeyForIDs("usd", []string{"bitcoin"}) {
		t.Error("Different id sets must not collide")
	}
	if KeyForLimit("usd", 6) == KeyForLimit("usd", 12) {
		t.Error("Different limits must not collide")
	}
}
