package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/cache"
	"github.com/coinview/backend/internal/models"
)

const (
	dashboardCurrency    = "usd"
	dashboardMoversLimit = 6
	chartReferenceAsset  = "bitcoin"
	chartWindowDays      = 7
)

// MarketServiceImpl aggregates the two providers into movers, quotes and
// dashboard payloads. Secondary-provider failures degrade to reduced
// results; primary failures surface as typed errors.
type MarketServiceImpl struct {
	primary   PrimaryMarketProvider
	secondary SecondaryMarketProvider
	resolver  IdentifierResolver
	cache     *cache.MarketCache
	log       *zap.Logger
	now       func() time.Time
}

func NewMarketService(primary PrimaryMarketProvider, secondary SecondaryMarketProvider, resolver IdentifierResolver, marketCache *cache.MarketCache, log *zap.Logger) MarketService {
	return &MarketServiceImpl{
		primary:   primary,
		secondary: secondary,
		resolver:  resolver,
		cache:     marketCache,
		log:       log,
		now:       time.Now,
	}
}

// MarketMovers returns up to limit movers in the secondary snapshot's
// native order, matched against the primary catalog by symbol then name
// and padded from the remaining primary assets. Never returns an error:
// when both providers fail the list is empty.
func (s *MarketServiceImpl) MarketMovers(ctx context.Context, limit int) []models.MarketMover {
	if limit <= 0 {
		limit = dashboardMoversLimit
	}

	snapshotLimit := limit * 3
	snapshot, snapErr := s.cache.GetOrFetch(ctx, cache.KeyForLimit(dashboardCurrency, snapshotLimit),
		func(ctx context.Context) ([]models.AssetQuote, error) {
			return s.secondary.Markets(ctx, dashboardCurrency, nil, snapshotLimit)
		})
	if snapErr != nil {
		s.log.Warn("market snapshot unavailable for movers", zap.Error(snapErr))
	}

	catalogLimit := limit * 5
	if catalogLimit < 30 {
		catalogLimit = 30
	}
	catalog, catErr := s.primary.ListTopAssets(ctx, catalogLimit)
	if catErr != nil {
		s.log.Warn("primary catalog unavailable for movers", zap.Error(catErr))
	}

	movers := make([]models.MarketMover, 0, limit)
	usedPrimary := make(map[string]struct{}, limit)

	// Pass 1: snapshot rows matched to a primary asset by normalized
	// symbol, then by normalized name.
	for _, row := range snapshot {
		if len(movers) >= limit {
			break
		}
		match := matchAsset(catalog, usedPrimary, row)
		if match == nil {
			continue
		}
		usedPrimary[match.ID] = struct{}{}
		movers = append(movers, models.MarketMover{
			ID:           match.ID,
			Name:         row.Name,
			Symbol:       strings.ToUpper(row.Symbol),
			Pair:         strings.ToUpper(row.Symbol) + "/USD",
			CurrentPrice: row.PriceUSD,
			Change24hPct: row.ChangePct24h,
			Volume24h:    row.VolumeUSD24h,
			ImageURL:     row.ImageURL,
		})
	}

	// Pass 2: deterministic padding from the remaining primary assets, no
	// cross-provider match required.
	for _, asset := range catalog {
		if len(movers) >= limit {
			break
		}
		if _, used := usedPrimary[asset.ID]; used {
			continue
		}
		usedPrimary[asset.ID] = struct{}{}
		movers = append(movers, models.MarketMover{
			ID:           asset.ID,
			Name:         asset.Name,
			Symbol:       strings.ToUpper(asset.Symbol),
			Pair:         strings.ToUpper(asset.Symbol) + "/USD",
			CurrentPrice: asset.PriceUSD,
			Change24hPct: asset.ChangePct24h,
			Volume24h:    asset.VolumeUSD24h,
		})
	}

	// Last resort when the primary catalog is down: surface the snapshot
	// rows directly so the dashboard is not empty.
	if len(movers) == 0 {
		for _, row := range snapshot {
			if len(movers) >= limit {
				break
			}
			movers = append(movers, models.MarketMover{
				ID:           row.ID,
				Name:         row.Name,
				Symbol:       strings.ToUpper(row.Symbol),
				Pair:         strings.ToUpper(row.Symbol) + "/USD",
				CurrentPrice: row.PriceUSD,
				Change24hPct: row.ChangePct24h,
				Volume24h:    row.VolumeUSD24h,
				ImageURL:     row.ImageURL,
			})
		}
	}

	return movers
}

// matchAsset finds the first unused catalog asset matching row by symbol,
// then by normalized name.
func matchAsset(catalog []models.AssetQuote, used map[string]struct{}, row models.AssetQuote) *models.AssetQuote {
	for i := range catalog {
		if _, ok := used[catalog[i].ID]; ok {
			continue
		}
		if strings.EqualFold(catalog[i].Symbol, row.Symbol) {
			return &catalog[i]
		}
	}
	rowName := normalizeIdentifier(row.Name)
	if rowName == "" {
		return nil
	}
	for i := range catalog {
		if _, ok := used[catalog[i].ID]; ok {
			continue
		}
		if normalizeIdentifier(catalog[i].Name) == rowName {
			return &catalog[i]
		}
	}
	return nil
}

// PriceQuotes returns the primary quote for assetID plus, best effort, the
// secondary quote, ordered ascending by price. A failed secondary
// resolution or fetch yields a single-quote result, not an error.
func (s *MarketServiceImpl) PriceQuotes(ctx context.Context, assetID string) ([]models.AssetQuote, error) {
	primary, err := s.primary.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	quotes := []models.AssetQuote{*primary}

	if coinID, rerr := s.resolver.Resolve(ctx, primary.Symbol, assetID, primary.Name); rerr == nil {
		if secondary, derr := s.secondary.CoinDetail(ctx, coinID); derr == nil {
			quotes = append(quotes, *secondary)
		} else {
			s.log.Debug("secondary quote unavailable", zap.String("coin_id", coinID), zap.Error(derr))
		}
	} else {
		s.log.Debug("secondary id resolution failed", zap.String("asset_id", assetID), zap.Error(rerr))
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].PriceUSD < quotes[j].PriceUSD
	})
	return quotes, nil
}

// SearchAssets proxies the primary catalog search.
func (s *MarketServiceImpl) SearchAssets(ctx context.Context, query string, limit int) ([]models.AssetQuote, error) {
	return s.primary.Search(ctx, query, limit)
}

// AssetsByIDs returns cached primary quotes for the id set, keyed by id.
func (s *MarketServiceImpl) AssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error) {
	if len(ids) == 0 {
		return map[string]models.AssetQuote{}, nil
	}

	quotes, err := s.cache.GetOrFetch(ctx, cache.KeyForIDs(dashboardCurrency, ids),
		func(ctx context.Context) ([]models.AssetQuote, error) {
			byID, ferr := s.primary.GetAssetsByIDs(ctx, ids)
			if ferr != nil {
				return nil, ferr
			}
			flat := make([]models.AssetQuote, 0, len(byID))
			for _, q := range byID {
				flat = append(flat, q)
			}
			sort.Slice(flat, func(i, j int) bool { return flat[i].ID < flat[j].ID })
			return flat, nil
		})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.AssetQuote, len(quotes))
	for _, q := range quotes {
		byID[q.ID] = q
	}
	return byID, nil
}

// PriceForSource returns the asset metadata from the primary provider and
// the unit price from the requested source. An unusable (<= 0) price is an
// UpstreamDataError.
func (s *MarketServiceImpl) PriceForSource(ctx context.Context, assetID, source string) (*models.AssetQuote, float64, error) {
	asset, err := s.primary.GetAsset(ctx, assetID)
	if err != nil {
		return nil, 0, err
	}

	var price float64
	switch source {
	case models.PriceSourceCoinCap:
		price = asset.PriceUSD
	case models.PriceSourceCoinGecko:
		coinID, rerr := s.resolver.Resolve(ctx, asset.Symbol, assetID, asset.Name)
		if rerr != nil {
			return nil, 0, rerr
		}
		detail, derr := s.secondary.CoinDetail(ctx, coinID)
		if derr != nil {
			return nil, 0, derr
		}
		price = detail.PriceUSD
	default:
		return nil, 0, fmt.Errorf("source %q: %w", source, apperrors.ErrUnsupportedSource)
	}

	if price <= 0 {
		return nil, 0, apperrors.Upstream(source, apperrors.UpstreamDataError, "unusable price %f for %s", price, assetID)
	}
	return asset, price, nil
}

// Dashboard composes the wallet summary, the 7-day reference chart and the
// market movers. The chart and movers branches run concurrently; a chart
// failure fails the whole call, movers degrade internally.
func (s *MarketServiceImpl) Dashboard(ctx context.Context, summary *models.WalletSummary) (*models.Dashboard, error) {
	var (
		chart  []models.ChartPoint
		movers []models.MarketMover
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		points, err := s.primary.History(gctx, chartReferenceAsset, chartWindowDays)
		if err != nil {
			return fmt.Errorf("reference chart: %w", err)
		}
		chart = points
		return nil
	})
	g.Go(func() error {
		movers = s.MarketMovers(gctx, dashboardMoversLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Dashboard{
		Currency:         dashboardCurrency,
		PortfolioBalance: summary.TotalValue,
		BalanceChangePct: summary.BalanceChangePct,
		Chart:            chart,
		MarketMovers:     movers,
		Portfolio:        summary.Assets,
		LastUpdated:      s.now().UTC(),
	}, nil
}
