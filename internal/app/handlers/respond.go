package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/lib/upload"
	"github.com/linemk/topup-shop/internal/service"
	"github.com/linemk/topup-shop/internal/storage"
)

var validate = validator.New()

// ErrorResponse: тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserDTO: единое представление пользователя для всех ответов API
type UserDTO struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	TelegramID       *int64 `json:"telegram_id,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
}

func NewUserDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		TelegramID:       u.TelegramID,
		TelegramUsername: u.TelegramUsername,
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeServiceError переводит ошибку сервиса в HTTP-статус.
// Наружу уходит только текст известной ошибки, без цепочки op.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
	} else {
		logger.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeError(w, logger, status, msg)
}

func statusFor(err error) (int, string) {
	known := []struct {
		target error
		status int
	}{
		{service.ErrInsufficientCredit, http.StatusBadRequest},
		{service.ErrInsufficientFunds, http.StatusBadRequest},
		{service.ErrInvalidInput, http.StatusBadRequest},
		{upload.ErrNotImage, http.StatusBadRequest},
		{upload.ErrTooLarge, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrInvalidSignature, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrDrawNotFound, http.StatusNotFound},
		{service.ErrInvalidCode, http.StatusNotFound},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrProductNotFound, http.StatusNotFound},
		{storage.ErrWalletNotFound, http.StatusNotFound},
		{service.ErrUserExists, http.StatusConflict},
		{service.ErrTelegramLinked, http.StatusConflict},
	}
	for _, k := range known {
		if errors.Is(err, k.target) {
			return k.status, k.target.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// decodeAndValidate читает JSON-тело и проверяет теги validate. Пустое тело допустимо,
// обязательные поля отсекает валидация.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid request")
	}
	if err := validate.Struct(dst); err != nil {
		return errors.New("validation error")
	}
	return nil
}

// pageParams: limit и offset из query, с значениями по умолчанию
func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
