package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/topup-shop/internal/service"
)

type WalletResponse struct {
	Balance  int64  `json:"balance"`
	Tokens   int    `json:"tokens"`
	Currency string `json:"currency"`
}

// WalletHandler обрабатывает GET /api/wallet/{email}
func WalletHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WalletHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		wallet, err := walletService.Balance(r.Context(), userID, chi.URLParam(r, "email"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, WalletResponse{
			Balance:  wallet.Balance,
			Tokens:   wallet.Tokens,
			Currency: models.Currency,
		})
	}
}

// TransactionsHandler обрабатывает GET /api/wallet/transactions
func TransactionsHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TransactionsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		txs, err := walletService.Transactions(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if txs == nil {
			txs = []*models.Transaction{}
		}
		writeJSON(w, logger, http.StatusOK, txs)
	}
}
