package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/coinview/backend/internal/services"
)

// NewRouter wires every endpoint. Routes under /api/crypto and /api/users/me
// require a session token.
func NewRouter(
	users services.UserService,
	market services.MarketService,
	wallet services.WalletService,
	commands services.DeviceCommandService,
	log *zap.Logger,
) http.Handler {
	userHandler := NewUserHandler(users)
	cryptoHandler := NewCryptoHandler(market, wallet)
	walletHandler := NewWalletHandler(wallet)
	commandHandler := NewDeviceCommandHandler(commands)

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "coinview-backend",
		})
	}).Methods(http.MethodGet)

	// Public endpoints.
	r.HandleFunc("/api/users", userHandler.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", userHandler.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/crypto/market-movers", cryptoHandler.HandleMarketMovers).Methods(http.MethodGet)
	r.HandleFunc("/api/crypto/quotes/{assetID}", cryptoHandler.HandlePriceQuotes).Methods(http.MethodGet)
	r.HandleFunc("/api/crypto/assets", cryptoHandler.HandleAssets).Methods(http.MethodGet)

	// Authenticated endpoints.
	auth := r.NewRoute().Subrouter()
	auth.Use(AuthMiddleware(users))
	auth.HandleFunc("/api/users/me", userHandler.HandleMe).
		Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
	auth.HandleFunc("/api/crypto/dashboard", cryptoHandler.HandleDashboard).Methods(http.MethodGet)
	auth.HandleFunc("/api/crypto/portfolio", walletHandler.HandlePortfolio).Methods(http.MethodGet)
	auth.HandleFunc("/api/crypto/deposit", walletHandler.HandleDeposit).Methods(http.MethodPost)
	auth.HandleFunc("/api/crypto/buy", walletHandler.HandleBuy).Methods(http.MethodPost)
	auth.HandleFunc("/api/crypto/sell", walletHandler.HandleSell).Methods(http.MethodPost)
	auth.HandleFunc("/api/crypto/sell/preview", walletHandler.HandleSellPreview).Methods(http.MethodPost)
	auth.HandleFunc("/api/crypto/sell/overview", walletHandler.HandleSellOverview).Methods(http.MethodGet)
	auth.HandleFunc("/api/crypto/transactions", walletHandler.HandleTransactions).Methods(http.MethodGet)
	auth.HandleFunc("/api/crypto/device-commands", commandHandler.HandleDispatch).Methods(http.MethodPost)
	auth.HandleFunc("/api/crypto/device-commands/poll", commandHandler.HandlePoll).Methods(http.MethodGet)
	auth.HandleFunc("/api/crypto/device-commands/{id}/ack", commandHandler.HandleAck).Methods(http.MethodPost)

	return CORSMiddleware(r)
}
