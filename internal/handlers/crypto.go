package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/services"
)

// CryptoHandler serves the market data endpoints.
type CryptoHandler struct {
	market services.MarketService
	wallet services.WalletService
}

func NewCryptoHandler(market services.MarketService, wallet services.WalletService) *CryptoHandler {
	return &CryptoHandler{market: market, wallet: wallet}
}

// HandleDashboard composes the portfolio dashboard. GET /api/crypto/dashboard
func (h *CryptoHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	summary, err := h.wallet.Summary(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	dashboard, err := h.market.Dashboard(r.Context(), summary)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// HandleMarketMovers serves the top movers. GET /api/crypto/market-movers?limit=
func (h *CryptoHandler) HandleMarketMovers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 6)
	if limit < 1 || limit > 20 {
		limit = 6
	}
	writeJSON(w, http.StatusOK, h.market.MarketMovers(r.Context(), limit))
}

// HandlePriceQuotes serves multi-source quotes for one asset.
// GET /api/crypto/quotes/{assetID}
func (h *CryptoHandler) HandlePriceQuotes(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetID"]
	quotes, err := h.market.PriceQuotes(r.Context(), assetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// HandleAssets searches the asset catalog. GET /api/crypto/assets?search=&limit=
func (h *CryptoHandler) HandleAssets(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 30)
	if limit < 1 || limit > 100 {
		limit = 30
	}
	assets, err := h.market.SearchAssets(r.Context(), r.URL.Query().Get("search"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
