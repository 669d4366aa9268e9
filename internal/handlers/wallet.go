package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/services"
)

// WalletHandler serves the wallet ledger endpoints.
type WalletHandler struct {
	wallet services.WalletService
}

func NewWalletHandler(wallet services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// HandlePortfolio serves the valued wallet. GET /api/crypto/portfolio
func (h *WalletHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, summary)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleDeposit credits fiat. POST /api/crypto/deposit
func (h *WalletHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.wallet.Deposit(r.Context(), user.ID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type buyRequest struct {
	AssetID   string          `json:"asset_id"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Source    string          `json:"source"`
}

// HandleBuy executes a buy. POST /api/crypto/buy
func (h *WalletHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = models.PriceSourceCoinCap
	}
	execution, err := h.wallet.Buy(r.Context(), user.ID, req.AssetID, req.AmountUSD, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

type sellRequest struct {
	AssetID   string          `json:"asset_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Source    string          `json:"source"`
}

// HandleSell executes a sale. POST /api/crypto/sell
func (h *WalletHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	var req sellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = models.PriceSourceCoinCap
	}
	execution, err := h.wallet.Sell(r.Context(), user.ID, req.AssetID, req.Quantity, req.AmountUSD, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

// HandleSellPreview dry-runs a sale. POST /api/crypto/sell/preview
func (h *WalletHandler) HandleSellPreview(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	var req sellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = models.PriceSourceCoinCap
	}
	preview, err := h.wallet.PreviewSale(r.Context(), user.ID, req.AssetID, req.Quantity, req.AmountUSD, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// HandleSellOverview serves the sellable holdings. GET /api/crypto/sell/overview
func (h *WalletHandler) HandleSellOverview(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, summary)
}

// HandleTransactions lists the ledger. GET /api/crypto/transactions
func (h *WalletHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	limit := queryInt(r, "limit", 50)
	txs, err := h.wallet.ListTransactions(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}
