package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	security "github.com/linemk/topup-shop/internal/jwt-new"
	"github.com/linemk/topup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/topup-shop/internal/service"
)

// BotSecretHeader: заголовок, которым внешний бот подтверждает вход
const BotSecretHeader = "X-Bot-Secret"

type LoginStatusResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token,omitempty"`
	User   *UserDTO `json:"user,omitempty"`
}

// BotConfirmRequest: подтверждение или отказ от внешнего бота
type BotConfirmRequest struct {
	Code       string `json:"code" validate:"required,numeric,len=6"`
	TelegramID int64  `json:"telegram_id" validate:"required,gt=0"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Approve    bool   `json:"approve"`
}

// TelegramLoginStartHandler обрабатывает POST /api/telegram-login-start.
// Если запрос пришел с валидным токеном, Telegram будет привязан к этому аккаунту.
func TelegramLoginStartHandler(log *slog.Logger, loginService service.TelegramLoginService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TelegramLoginStartHandler"
		logger := log.With(slog.String("op", op))

		start, err := loginService.Start(r.Context(), r.RemoteAddr, requesterFrom(r))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, start)
	}
}

// TelegramLoginStatusHandler обрабатывает GET /api/telegram-login-status/{code}[?wait=20s]
func TelegramLoginStatusHandler(log *slog.Logger, loginService service.TelegramLoginService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TelegramLoginStatusHandler"
		code := chi.URLParam(r, "code")
		logger := log.With(slog.String("op", op), slog.String("code", code))

		waitFor, err := parseWait(r.URL.Query().Get("wait"))
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "invalid wait parameter")
			return
		}

		res, err := loginService.WaitStatus(r.Context(), code, waitFor)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, LoginStatusResponse{
			Status: res.Status,
			Token:  res.Token,
			User:   NewUserDTO(res.User),
		})
	}
}

// TelegramWidgetConfirmHandler обрабатывает POST /api/telegram-login-confirm
// с данными Telegram Login Widget.
func TelegramWidgetConfirmHandler(log *slog.Logger, loginService service.TelegramLoginService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TelegramWidgetConfirmHandler"
		logger := log.With(slog.String("op", op))

		var raw map[string]interface{}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}

		// виджет присылает id и auth_date числами, подпись считается по строкам
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			if v == nil {
				continue
			}
			fields[k] = fmt.Sprint(v)
		}

		res, err := loginService.WidgetLogin(r.Context(), fields, requesterFrom(r))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, AuthResponse{Token: res.Token, User: NewUserDTO(res.User)})
	}
}

// TelegramBotConfirmHandler обрабатывает POST /api/telegram-bot-confirm от внешнего бота.
// Без настроенного секрета эндпоинт закрыт.
func TelegramBotConfirmHandler(log *slog.Logger, loginService service.TelegramLoginService, botSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TelegramBotConfirmHandler"
		logger := log.With(slog.String("op", op))

		got := r.Header.Get(BotSecretHeader)
		if botSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(botSecret)) != 1 {
			logger.Warn("bot secret mismatch")
			writeError(w, logger, http.StatusForbidden, "forbidden")
			return
		}

		var req BotConfirmRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		identity := models.TelegramIdentity{
			ID:        req.TelegramID,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		var err error
		if req.Approve {
			err = loginService.Confirm(r.Context(), req.Code, identity)
		} else {
			err = loginService.Decline(r.Context(), req.Code, identity)
		}
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, SuccessResponse{Success: true})
	}
}

// requesterFrom: пользователь из необязательного токена; админский токен не считается
func requesterFrom(r *http.Request) *int64 {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		return nil
	}
	if role, _ := jwtmiddleware.RoleFromContext(r.Context()); role == security.RoleAdmin {
		return nil
	}
	return &userID
}

// parseWait принимает "20s"/"1m" или число секунд
func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative wait")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid wait %q", raw)
	}
	return d, nil
}
