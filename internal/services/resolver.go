package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
)

const (
	// minResolveScore is the confidence floor: a candidate below it is
	// treated as no match. Changing it changes resolution outcomes.
	minResolveScore = 5

	// exactNameBoost is added during the remote pass for an exact
	// normalized-name match.
	exactNameBoost = 5

	catalogTTL = 6 * time.Hour
)

// keywordSynonyms expands query tokens to related tokens so that e.g.
// "eth" overlaps catalog entries mentioning "ethereum" and wrapped/bridged
// variants ("bep20") reach their chain's tokens.
var keywordSynonyms = map[string][]string{
	"btc":   {"bitcoin"},
	"eth":   {"ethereum"},
	"bnb":   {"binancecoin", "binance"},
	"bep20": {"binance", "bnb", "bsc"},
	"erc20": {"ethereum"},
	"matic": {"polygon"},
	"avax":  {"avalanche"},
	"doge":  {"dogecoin"},
	"xrp":   {"ripple"},
}

type resolution struct {
	id    string
	found bool
}

// CoinIDResolver resolves (symbol, id hint, name) triples to CoinGecko coin
// ids using the local coin catalog first and the remote search endpoint as
// fallback. Resolutions — including not-found — are cached for the life of
// the process with no expiry; only the bulk catalog refreshes (6h). Stale
// negative entries are a known, accepted risk.
type CoinIDResolver struct {
	secondary SecondaryMarketProvider
	log       *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	resolved map[string]resolution

	catalogMu        sync.RWMutex
	catalog          []models.CatalogEntry
	catalogFetchedAt time.Time
}

func NewCoinIDResolver(secondary SecondaryMarketProvider, log *zap.Logger) *CoinIDResolver {
	return &CoinIDResolver{
		secondary: secondary,
		log:       log,
		now:       time.Now,
		resolved:  make(map[string]resolution),
	}
}

// Resolve implements IdentifierResolver.
func (r *CoinIDResolver) Resolve(ctx context.Context, symbol, idHint, name string) (string, error) {
	key := strings.ToLower(symbol + "|" + idHint + "|" + name)

	r.mu.RLock()
	cached, hit := r.resolved[key]
	r.mu.RUnlock()
	if hit {
		if !cached.found {
			return "", fmt.Errorf("symbol %q: %w", symbol, apperrors.ErrNotFound)
		}
		return cached.id, nil
	}

	keywords := buildKeywords(idHint, name, symbol)

	if id, ok := r.resolveLocal(ctx, symbol, idHint, name, keywords); ok {
		r.store(key, resolution{id: id, found: true})
		return id, nil
	}

	id, found, err := r.resolveRemote(ctx, symbol, idHint, name, keywords)
	if err != nil {
		// Upstream failure: nothing definitive to cache.
		return "", err
	}

	r.store(key, resolution{id: id, found: found})
	if !found {
		return "", fmt.Errorf("symbol %q: %w", symbol, apperrors.ErrNotFound)
	}
	return id, nil
}

func (r *CoinIDResolver) store(key string, res resolution) {
	r.mu.Lock()
	r.resolved[key] = res
	r.mu.Unlock()
}

// resolveLocal scores catalog entries. Entries sharing the queried symbol
// are preferred; when none share it the whole catalog is scanned.
func (r *CoinIDResolver) resolveLocal(ctx context.Context, symbol, idHint, name string, keywords map[string]struct{}) (string, bool) {
	catalog, err := r.loadCatalog(ctx)
	if err != nil {
		r.log.Warn("coin catalog unavailable, skipping local resolution", zap.Error(err))
		return "", false
	}

	candidates := make([]models.CatalogEntry, 0, 8)
	for _, entry := range catalog {
		if strings.EqualFold(entry.Symbol, symbol) {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		candidates = catalog
	}

	bestScore := 0
	bestID := ""
	for _, entry := range candidates {
		score := scoreCandidate(entry.ID, entry.Symbol, entry.Name, symbol, name, idHint, keywords)
		if score > bestScore {
			bestScore = score
			bestID = entry.ID
		}
	}
	if bestScore < minResolveScore {
		return "", false
	}
	return bestID, true
}

// resolveRemote issues search queries in priority order name, id hint,
// symbol, merges the candidates by id and picks the best-scoring one.
// Ties go to the lower market-cap rank.
func (r *CoinIDResolver) resolveRemote(ctx context.Context, symbol, idHint, name string, keywords map[string]struct{}) (string, bool, error) {
	queries := dedupeQueries(name, idHint, symbol)
	if len(queries) == 0 {
		return "", false, nil
	}

	var (
		merged  []models.SearchCandidate
		seen    = make(map[string]struct{})
		errs    int
		lastErr error
	)
	for _, q := range queries {
		candidates, err := r.secondary.Search(ctx, q)
		if err != nil {
			errs++
			lastErr = err
			r.log.Debug("remote search query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, cand := range candidates {
			if _, ok := seen[cand.ID]; ok {
				continue
			}
			seen[cand.ID] = struct{}{}
			merged = append(merged, cand)
		}
	}
	if errs == len(queries) {
		return "", false, lastErr
	}

	normName := normalizeIdentifier(name)
	bestScore := 0
	bestRank := 0
	bestID := ""
	for _, cand := range merged {
		score := scoreCandidate(cand.ID, cand.Symbol, cand.Name, symbol, name, idHint, keywords)
		if normName != "" && normalizeIdentifier(cand.Name) == normName {
			score += exactNameBoost
		}
		if score < bestScore {
			continue
		}
		if score == bestScore && bestID != "" && !rankBetter(cand.MarketCapRank, bestRank) {
			continue
		}
		bestScore = score
		bestRank = cand.MarketCapRank
		bestID = cand.ID
	}
	if bestScore < minResolveScore {
		return "", false, nil
	}
	return bestID, true, nil
}

// rankBetter reports whether a beats b; unranked (0) loses to any rank.
func rankBetter(a, b int) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}

func (r *CoinIDResolver) loadCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	r.catalogMu.RLock()
	if r.catalog != nil && r.now().Sub(r.catalogFetchedAt) < catalogTTL {
		catalog := r.catalog
		r.catalogMu.RUnlock()
		return catalog, nil
	}
	r.catalogMu.RUnlock()

	entries, err := r.secondary.CoinCatalog(ctx)
	if err != nil {
		// Serve the stale catalog if we have one.
		r.catalogMu.RLock()
		defer r.catalogMu.RUnlock()
		if r.catalog != nil {
			return r.catalog, nil
		}
		return nil, err
	}

	r.catalogMu.Lock()
	r.catalog = entries
	r.catalogFetchedAt = r.now()
	r.catalogMu.Unlock()
	return entries, nil
}

// scoreCandidate is the pure scoring heuristic shared by the local and
// remote passes: +10 exact symbol match, +6 normalized name equality,
// +8 normalized id equality, +1 per overlapping keyword token.
func scoreCandidate(candID, candSymbol, candName, querySymbol, queryName, queryID string, keywords map[string]struct{}) int {
	score := 0
	if querySymbol != "" && strings.EqualFold(candSymbol, querySymbol) {
		score += 10
	}
	if queryName != "" && normalizeIdentifier(candName) == normalizeIdentifier(queryName) {
		score += 6
	}
	if queryID != "" && normalizeIdentifier(candID) == normalizeIdentifier(queryID) {
		score += 8
	}
	for token := range tokenSet(candID + " " + candName + " " + candSymbol) {
		if _, ok := keywords[token]; ok {
			score++
		}
	}
	return score
}

// buildKeywords tokenizes the query signals and expands them through the
// synonym table.
func buildKeywords(parts ...string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, part := range parts {
		for token := range tokenSet(part) {
			keywords[token] = struct{}{}
			for _, syn := range keywordSynonyms[token] {
				keywords[syn] = struct{}{}
			}
		}
	}
	return keywords
}

// tokenSet splits s into lowercase alphanumeric tokens.
func tokenSet(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// normalizeIdentifier lowercases and strips every non-alphanumeric rune.
func normalizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dedupeQueries keeps the non-empty queries in priority order, case-folded.
func dedupeQueries(queries ...string) []string {
	out := make([]string, 0, len(queries))
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		q = strings.ToLower(strings.TrimSpace(q))
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
