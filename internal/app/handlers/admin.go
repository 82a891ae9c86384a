package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/service"
)

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type DepositRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Remark string `json:"remark" validate:"max=255"`
}

// AdminLoginHandler обрабатывает POST /api/admin/login
func AdminLoginHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminLoginHandler"
		logger := log.With(slog.String("op", op))

		var req AdminLoginRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		token, err := adminService.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, TokenResponse{Token: token})
	}
}

// adminList: общий обработчик постраничных списков админки
func adminList[T any](log *slog.Logger, op string, fetch func(ctx context.Context, limit, offset int) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", op))

		limit, offset := pageParams(r)
		items, err := fetch(r.Context(), limit, offset)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, logger, http.StatusOK, items)
	}
}

// AdminUsersHandler обрабатывает GET /api/admin/users
func AdminUsersHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return adminList(log, "handlers.AdminUsersHandler", func(ctx context.Context, limit, offset int) ([]*UserDTO, error) {
		users, err := adminService.Users(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		out := make([]*UserDTO, 0, len(users))
		for _, u := range users {
			out = append(out, NewUserDTO(u))
		}
		return out, nil
	})
}

// AdminOrdersHandler обрабатывает GET /api/admin/orders
func AdminOrdersHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return adminList[*models.Order](log, "handlers.AdminOrdersHandler", adminService.Orders)
}

// AdminTransactionsHandler обрабатывает GET /api/admin/transactions
func AdminTransactionsHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return adminList[*models.Transaction](log, "handlers.AdminTransactionsHandler", adminService.Transactions)
}

// AdminWalletsHandler обрабатывает GET /api/admin/wallets
func AdminWalletsHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return adminList[*models.Wallet](log, "handlers.AdminWalletsHandler", adminService.Wallets)
}

// AdminDrawsHandler обрабатывает GET /api/admin/gift-draws
func AdminDrawsHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return adminList[*models.GiftDraw](log, "handlers.AdminDrawsHandler", adminService.Draws)
}

// AdminDepositHandler обрабатывает POST /api/admin/wallets/{userID}/deposit
func AdminDepositHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminDepositHandler"
		logger := log.With(slog.String("op", op))

		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, logger, http.StatusBadRequest, "invalid user id")
			return
		}

		var req DepositRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		wallet, err := adminService.Deposit(r.Context(), userID, req.Amount, req.Remark)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, wallet)
	}
}
