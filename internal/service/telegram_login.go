package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	security "github.com/linemk/topup-shop/internal/jwt-new"
	"github.com/linemk/topup-shop/internal/lib/wait"
	"github.com/linemk/topup-shop/internal/storage"
)

const (
	codeAttempts       = 5
	widgetMaxAge       = 24 * time.Hour
	statusPollInterval = 500 * time.Millisecond
	MaxStatusWait      = 30 * time.Second
)

// TelegramSettings: параметры входа через Telegram
type TelegramSettings struct {
	BotToken    string
	BotUsername string
	LoginTTL    time.Duration
	TokenTTL    time.Duration
}

type LoginStart struct {
	Code      string `json:"code"`
	BotURL    string `json:"bot_url"`
	ExpiresIn int    `json:"expires_in"` // секунды
}

// LoginResult: статус входа; Token и User заполнены только для confirmed
type LoginResult struct {
	Status string       `json:"status"`
	Token  string       `json:"-"`
	User   *models.User `json:"-"`
}

type TelegramLoginService interface {
	Start(ctx context.Context, requester string, requesterUserID *int64) (*LoginStart, error)
	Status(ctx context.Context, code string) (*LoginResult, error)
	WaitStatus(ctx context.Context, code string, timeout time.Duration) (*LoginResult, error)
	Lookup(ctx context.Context, code string) (*models.LoginSession, error)
	Confirm(ctx context.Context, code string, identity models.TelegramIdentity) error
	Decline(ctx context.Context, code string, identity models.TelegramIdentity) error
	WidgetLogin(ctx context.Context, fields map[string]string, requesterUserID *int64) (*LoginResult, error)
	RunSweeper(ctx context.Context, interval time.Duration)
}

// sweeper реализуют хранилища без собственного TTL
type sweeper interface {
	Sweep(olderThan time.Time) int
}

type telegramLoginService struct {
	log      *slog.Logger
	store    storage.LoginStore
	accounts *accounts
	settings TelegramSettings
	now      func() time.Time
}

func NewTelegramLoginService(
	log *slog.Logger,
	db *sql.DB,
	store storage.LoginStore,
	userRepo storage.UserStorage,
	walletRepo storage.WalletStorage,
	txRepo storage.TransactionStorage,
	initialBalance int64,
	settings TelegramSettings,
) *telegramLoginService {
	return &telegramLoginService{
		log:   log,
		store: store,
		accounts: &accounts{
			db:             db,
			userRepo:       userRepo,
			walletRepo:     walletRepo,
			txRepo:         txRepo,
			initialBalance: initialBalance,
		},
		settings: settings,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени
func (s *telegramLoginService) WithClock(now func() time.Time) *telegramLoginService {
	s.now = now
	return s
}

// Start заводит ожидающий вход с новым 6-значным кодом.
// requesterUserID задан, если вход начат из уже авторизованной сессии: тогда Telegram
// будет привязан к этому аккаунту.
func (s *telegramLoginService) Start(ctx context.Context, requester string, requesterUserID *int64) (*LoginStart, error) {
	const op = "service.TelegramLoginService.Start"
	logger := s.log.With(slog.String("op", op), slog.String("requester", requester))

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newLoginCode()
		if err != nil {
			logger.Error("failed to generate code", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to generate code: %w", op, err)
		}

		session := &models.LoginSession{
			Code:            code,
			Requester:       requester,
			RequesterUserID: requesterUserID,
			Status:          models.LoginStatusPending,
			CreatedAt:       s.now(),
		}
		err = s.store.Create(ctx, session)
		if errors.Is(err, storage.ErrLoginExists) {
			continue
		}
		if err != nil {
			logger.Error("failed to store login session", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to store login session: %w", op, err)
		}

		logger.Info("telegram login started", slog.String("code", code))
		return &LoginStart{
			Code:      code,
			BotURL:    fmt.Sprintf("https://t.me/%s?start=login_%s", s.settings.BotUsername, code),
			ExpiresIn: int(s.settings.LoginTTL.Seconds()),
		}, nil
	}

	logger.Error("no free login code")
	return nil, fmt.Errorf("%s: no free login code after %d attempts", op, codeAttempts)
}

// Status сообщает состояние входа. Завершенные (confirmed, declined, expired) сессии
// удаляются сразу после того, как о них сообщили. Сессия confirmed, по которой
// не удалось выдать токен из-за временной ошибки, остается для следующего опроса.
func (s *telegramLoginService) Status(ctx context.Context, code string) (*LoginResult, error) {
	const op = "service.TelegramLoginService.Status"
	logger := s.log.With(slog.String("op", op), slog.String("code", code))

	session, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrLoginNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCode)
		}
		logger.Error("failed to load login session", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if session.Status == models.LoginStatusPending && s.expired(session) {
		session.Status = models.LoginStatusExpired
	}

	switch session.Status {
	case models.LoginStatusPending, models.LoginStatusCompleting:
		return &LoginResult{Status: models.LoginStatusPending}, nil
	case models.LoginStatusConfirmed:
		return s.complete(ctx, logger, op, session)
	default:
		s.forget(ctx, logger, code)
		return &LoginResult{Status: session.Status}, nil
	}
}

// complete забирает подтвержденную сессию и выдает по ней токен. Сессию забирает
// ровно один запрос; при временной ошибке она возвращается в confirmed.
func (s *telegramLoginService) complete(ctx context.Context, logger *slog.Logger, op string, session *models.LoginSession) (*LoginResult, error) {
	taken := *session
	taken.Status = models.LoginStatusCompleting
	if err := s.store.Transition(ctx, models.LoginStatusConfirmed, &taken); err != nil {
		switch {
		case errors.Is(err, storage.ErrLoginStateChanged):
			// сессию уже забрал параллельный запрос
			return &LoginResult{Status: models.LoginStatusPending}, nil
		case errors.Is(err, storage.ErrLoginNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCode)
		}
		logger.Error("failed to take login session", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.resolveUser(ctx, logger, *session.Identity, session.RequesterUserID)
	if err != nil {
		if isTerminalLoginError(err) {
			s.forget(ctx, logger, session.Code)
		} else {
			s.release(ctx, logger, session)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	token, err := security.NewToken(ctx, user, s.settings.TokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		s.release(ctx, logger, session)
		return nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	s.forget(ctx, logger, session.Code)
	logger.Info("telegram login completed", slog.Int64("userID", user.ID))
	return &LoginResult{Status: models.LoginStatusConfirmed, Token: token, User: user}, nil
}

// release возвращает забранную сессию в confirmed, чтобы следующий опрос повторил попытку
func (s *telegramLoginService) release(ctx context.Context, logger *slog.Logger, session *models.LoginSession) {
	confirmed := *session
	confirmed.Status = models.LoginStatusConfirmed
	if err := s.store.Transition(ctx, models.LoginStatusCompleting, &confirmed); err != nil {
		logger.Error("failed to release login session", slog.Any("error", err))
	}
}

// isTerminalLoginError: повтор входа с той же сессией закончится той же ошибкой
func isTerminalLoginError(err error) bool {
	return errors.Is(err, ErrTelegramLinked) || errors.Is(err, ErrUserNotFound)
}

// WaitStatus ждет, пока сессия перестанет быть pending, но не дольше timeout (не более MaxStatusWait)
func (s *telegramLoginService) WaitStatus(ctx context.Context, code string, timeout time.Duration) (*LoginResult, error) {
	if timeout > MaxStatusWait {
		timeout = MaxStatusWait
	}
	if timeout > 0 {
		err := wait.Poll(ctx, statusPollInterval, timeout, func(ctx context.Context) (bool, error) {
			session, err := s.store.Get(ctx, code)
			if err != nil {
				// пусть Status вернет правильную ошибку
				return true, nil
			}
			waiting := session.Status == models.LoginStatusPending || session.Status == models.LoginStatusCompleting
			return !waiting || s.expired(session), nil
		})
		if err != nil && !errors.Is(err, wait.ErrTimeout) {
			return nil, err
		}
	}
	return s.Status(ctx, code)
}

// Lookup возвращает ожидающую сессию для бота; завершенные и просроченные коды недействительны
func (s *telegramLoginService) Lookup(ctx context.Context, code string) (*models.LoginSession, error) {
	session, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrLoginNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if session.Status != models.LoginStatusPending || s.expired(session) {
		return nil, ErrInvalidCode
	}
	return session, nil
}

func (s *telegramLoginService) Confirm(ctx context.Context, code string, identity models.TelegramIdentity) error {
	return s.resolve(ctx, "service.TelegramLoginService.Confirm", code, identity, models.LoginStatusConfirmed)
}

func (s *telegramLoginService) Decline(ctx context.Context, code string, identity models.TelegramIdentity) error {
	return s.resolve(ctx, "service.TelegramLoginService.Decline", code, identity, models.LoginStatusDeclined)
}

func (s *telegramLoginService) resolve(ctx context.Context, op, code string, identity models.TelegramIdentity, status string) error {
	logger := s.log.With(slog.String("op", op), slog.String("code", code), slog.Int64("telegramID", identity.ID))

	if identity.ID == 0 {
		return fmt.Errorf("%s: telegram id is required: %w", op, ErrInvalidInput)
	}

	session, err := s.Lookup(ctx, code)
	if err != nil {
		logger.Warn("login session is not pending", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	session.Status = status
	session.Identity = &identity
	if err := s.store.Transition(ctx, models.LoginStatusPending, session); err != nil {
		if errors.Is(err, storage.ErrLoginNotFound) || errors.Is(err, storage.ErrLoginStateChanged) {
			logger.Warn("login session resolved concurrently", slog.Any("error", err))
			return fmt.Errorf("%s: %w", op, ErrInvalidCode)
		}
		logger.Error("failed to update login session", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("telegram login resolved", slog.String("status", status))
	return nil
}

// WidgetLogin проверяет данные Telegram Login Widget и выдает токен.
// Подпись: HMAC-SHA256 от отсортированных полей ключом SHA256(bot token).
func (s *telegramLoginService) WidgetLogin(ctx context.Context, fields map[string]string, requesterUserID *int64) (*LoginResult, error) {
	const op = "service.TelegramLoginService.WidgetLogin"
	logger := s.log.With(slog.String("op", op))

	identity, err := s.verifyWidget(fields)
	if err != nil {
		logger.Warn("widget payload rejected", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.resolveUser(ctx, logger, identity, requesterUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := security.NewToken(ctx, user, s.settings.TokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("telegram widget login completed", slog.Int64("userID", user.ID))
	return &LoginResult{Status: models.LoginStatusConfirmed, Token: token, User: user}, nil
}

func (s *telegramLoginService) verifyWidget(fields map[string]string) (models.TelegramIdentity, error) {
	var identity models.TelegramIdentity
	if s.settings.BotToken == "" {
		return identity, errors.New("telegram bot token is not configured")
	}

	hash := fields["hash"]
	if hash == "" {
		return identity, ErrInvalidSignature
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := sha256.Sum256([]byte(s.settings.BotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return identity, ErrInvalidSignature
	}

	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil || s.now().Sub(time.Unix(authDate, 0)) > widgetMaxAge {
		return identity, fmt.Errorf("auth_date is missing or too old: %w", ErrInvalidSignature)
	}

	identity.ID, err = strconv.ParseInt(fields["id"], 10, 64)
	if err != nil || identity.ID == 0 {
		return identity, fmt.Errorf("invalid telegram id: %w", ErrInvalidInput)
	}
	identity.Username = fields["username"]
	identity.FirstName = fields["first_name"]
	identity.LastName = fields["last_name"]
	return identity, nil
}

// resolveUser находит или создает пользователя для Telegram-идентичности.
// Если вход начат авторизованным пользователем, Telegram привязывается к нему.
func (s *telegramLoginService) resolveUser(ctx context.Context, logger *slog.Logger, identity models.TelegramIdentity, requesterUserID *int64) (*models.User, error) {
	if requesterUserID != nil {
		if err := s.accounts.userRepo.AttachTelegram(ctx, *requesterUserID, identity); err != nil {
			logger.Warn("failed to attach telegram", slog.Any("error", err))
			return nil, err
		}
		return s.accounts.userRepo.GetUserByID(ctx, *requesterUserID)
	}

	user, err := s.accounts.userRepo.GetUserByTelegramID(ctx, identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		logger.Error("failed to get user by telegram id", slog.Any("error", err))
		return nil, err
	}

	telegramID := identity.ID
	user, err = s.accounts.create(ctx, logger, &models.User{
		Email:            models.TelegramPlaceholderEmail(identity.ID),
		Name:             identity.DisplayName(),
		TelegramID:       &telegramID,
		TelegramUsername: identity.Username,
	})
	if err != nil {
		logger.Error("failed to create telegram user", slog.Any("error", err))
		return nil, err
	}
	logger.Info("telegram user created", slog.Int64("userID", user.ID))
	return user, nil
}

func (s *telegramLoginService) expired(session *models.LoginSession) bool {
	return s.now().Sub(session.CreatedAt) > s.settings.LoginTTL
}

func (s *telegramLoginService) forget(ctx context.Context, logger *slog.Logger, code string) {
	if err := s.store.Delete(ctx, code); err != nil {
		logger.Error("failed to delete login session", slog.Any("error", err))
	}
}

// RunSweeper периодически удаляет просроченные сессии, пока не отменен ctx.
// Для хранилищ с собственным TTL (Redis) ничего не делает.
func (s *telegramLoginService) RunSweeper(ctx context.Context, interval time.Duration) {
	const op = "service.TelegramLoginService.RunSweeper"
	logger := s.log.With(slog.String("op", op))

	sw, ok := s.store.(sweeper)
	if !ok || interval <= 0 {
		logger.Debug("login store expires entries itself, sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sw.Sweep(s.now().Add(-s.settings.LoginTTL)); n > 0 {
				logger.Info("expired login sessions removed", slog.Int("count", n))
			}
		}
	}
}

// newLoginCode: случайный код из 6 цифр без ведущего нуля
func newLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
