package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	security "github.com/linemk/topup-shop/internal/jwt-new"
	"github.com/linemk/topup-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, email, name, password string) (string, *models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
}

type authService struct {
	log      *slog.Logger
	accounts *accounts
	tokenTTL time.Duration
}

func NewAuthService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	walletRepo storage.WalletStorage,
	txRepo storage.TransactionStorage,
	tokenTTL time.Duration,
	initialBalance int64,
) AuthService {
	return &authService{
		log: log,
		accounts: &accounts{
			db:             db,
			userRepo:       userRepo,
			walletRepo:     walletRepo,
			txRepo:         txRepo,
			initialBalance: initialBalance,
		},
		tokenTTL: tokenTTL,
	}
}

// Register создает пользователя с кошельком и сразу выдает токен.
// Пароль хэшируется bcrypt, соль добавляется автоматически.
func (a *authService) Register(ctx context.Context, email, name, password string) (string, *models.User, error) {
	const op = "service.AuthService.Register"
	email = strings.ToLower(strings.TrimSpace(email))
	logger := a.log.With(slog.String("op", op), slog.String("email", email))
	logger.Info("registering user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.accounts.create(ctx, logger, &models.User{Email: email, Name: strings.TrimSpace(name), PassHash: passHash})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("user already exists")
		} else {
			logger.Error("failed to create user", slog.Any("error", err))
		}
		return "", nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return token, user, nil
}

// Login проверяет пароль и выдает токен. Пользователи без пароля (пришедшие через Telegram)
// так войти не могут.
func (a *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "service.AuthService.Login"
	email = strings.ToLower(strings.TrimSpace(email))
	logger := a.log.With(slog.String("op", op), slog.String("email", email))
	logger.Info("checking user")

	user, err := a.accounts.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if len(user.PassHash) == 0 {
		logger.Warn("user has no password")
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, user, nil
}

func (a *authService) Me(ctx context.Context, userID int64) (*models.User, error) {
	const op = "service.AuthService.Me"

	user, err := a.accounts.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
