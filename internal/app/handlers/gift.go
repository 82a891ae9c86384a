package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/topup-shop/internal/service"
)

// GiftUserRequest: тело spin и buy-token
type GiftUserRequest struct {
	UserEmail string `json:"userEmail" validate:"omitempty,email"`
}

type ClaimRequest struct {
	Game     string `json:"game" validate:"max=64"`
	GameID   string `json:"game_id" validate:"max=64"`
	ServerID string `json:"server_id" validate:"max=64"`
}

// InsufficientBalanceResponse подсказывает клиенту перейти к пополнению
type InsufficientBalanceResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
	Message  string `json:"message"`
}

type ContactResponse struct {
	URL string `json:"url"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// GiftStateHandler обрабатывает GET /api/gift/state/{email}
func GiftStateHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GiftStateHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		state, err := giftService.State(r.Context(), userID, chi.URLParam(r, "email"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, state)
	}
}

// GiftSpinHandler обрабатывает POST /api/gift/spin
func GiftSpinHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GiftSpinHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req GiftUserRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		res, err := giftService.Spin(r.Context(), userID, req.UserEmail)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, res)
	}
}

// GiftBuyTokenHandler обрабатывает POST /api/gift/buy-token
func GiftBuyTokenHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GiftBuyTokenHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req GiftUserRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		res, err := giftService.BuyToken(r.Context(), userID, req.UserEmail)
		if err != nil {
			if errors.Is(err, service.ErrInsufficientFunds) {
				logger.Warn("insufficient balance for token")
				writeJSON(w, logger, http.StatusBadRequest, InsufficientBalanceResponse{
					Error:    "insufficient balance",
					Redirect: "/wallet",
					Message:  "Not enough Ks to buy a token. Please top up your wallet.",
				})
				return
			}
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, res)
	}
}

// GiftClaimHandler обрабатывает POST /api/gift/claim/{giftId}
func GiftClaimHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GiftClaimHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		drawID, err := strconv.ParseInt(chi.URLParam(r, "giftId"), 10, 64)
		if err != nil || drawID <= 0 {
			writeError(w, logger, http.StatusBadRequest, "invalid gift id")
			return
		}

		var req ClaimRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		_, err = giftService.Claim(r.Context(), userID, drawID, models.ClaimDetails{
			Game:     req.Game,
			GameID:   req.GameID,
			ServerID: req.ServerID,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		// подтверждение заявки: пустой объект
		writeJSON(w, logger, http.StatusOK, struct{}{})
	}
}

// GiftHistoryHandler обрабатывает GET /api/gift/history/{email}
func GiftHistoryHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GiftHistoryHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		history, err := giftService.History(r.Context(), userID, chi.URLParam(r, "email"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, history)
	}
}

// GiftContactHandler обрабатывает GET /api/gift/contact-admin
func GiftContactHandler(log *slog.Logger, giftService service.GiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GiftContactHandler"))
		writeJSON(w, logger, http.StatusOK, ContactResponse{URL: giftService.ContactURL()})
	}
}
