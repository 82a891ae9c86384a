package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	security "github.com/linemk/topup-shop/internal/jwt-new"
	"github.com/linemk/topup-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// AdminService: данные для админки и ручное пополнение кошелька
type AdminService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Users(ctx context.Context, limit, offset int) ([]*models.User, error)
	Orders(ctx context.Context, limit, offset int) ([]*models.Order, error)
	Transactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
	Wallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error)
	Draws(ctx context.Context, limit, offset int) ([]*models.GiftDraw, error)
	Deposit(ctx context.Context, userID, amount int64, remark string) (*models.Wallet, error)
}

type adminService struct {
	log          *slog.Logger
	db           *sql.DB
	userRepo     storage.UserStorage
	walletRepo   storage.WalletStorage
	orderRepo    storage.OrderStorage
	txRepo       storage.TransactionStorage
	giftRepo     storage.GiftStorage
	username     string
	passwordHash string
	tokenTTL     time.Duration
}

func NewAdminService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	walletRepo storage.WalletStorage,
	orderRepo storage.OrderStorage,
	txRepo storage.TransactionStorage,
	giftRepo storage.GiftStorage,
	username, passwordHash string,
	tokenTTL time.Duration,
) AdminService {
	return &adminService{
		log:          log,
		db:           db,
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		orderRepo:    orderRepo,
		txRepo:       txRepo,
		giftRepo:     giftRepo,
		username:     username,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
	}
}

// Login проверяет учетку администратора из конфига. Без хэша пароля вход в админку закрыт.
func (s *adminService) Login(ctx context.Context, username, password string) (string, error) {
	const op = "service.AdminService.Login"
	logger := s.log.With(slog.String("op", op), slog.String("username", username))

	if s.passwordHash == "" || username != s.username {
		logger.Warn("admin login rejected")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		logger.Warn("invalid admin password")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := security.NewAdminToken(ctx, username, s.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("admin logged in")
	return token, nil
}

func (s *adminService) Users(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.userRepo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.Users: %w", err)
	}
	return users, nil
}

func (s *adminService) Orders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	orders, err := s.orderRepo.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.Orders: %w", err)
	}
	return orders, nil
}

func (s *adminService) Transactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	txs, err := s.txRepo.ListTransactions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.Transactions: %w", err)
	}
	return txs, nil
}

func (s *adminService) Wallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	wallets, err := s.walletRepo.ListWallets(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.Wallets: %w", err)
	}
	return wallets, nil
}

func (s *adminService) Draws(ctx context.Context, limit, offset int) ([]*models.GiftDraw, error) {
	draws, err := s.giftRepo.ListDraws(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.Draws: %w", err)
	}
	return draws, nil
}

// Deposit зачисляет Ks на кошелек пользователя и пишет операцию в журнал
func (s *adminService) Deposit(ctx context.Context, userID, amount int64, remark string) (*models.Wallet, error) {
	const op = "service.AdminService.Deposit"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("amount", amount))
	logger.Info("starting deposit transaction")

	if amount <= 0 {
		logger.Warn("non-positive deposit amount")
		return nil, fmt.Errorf("%s: amount must be positive: %w", op, ErrInvalidInput)
	}
	if remark == "" {
		remark = "admin deposit"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	wallet, err := s.walletRepo.LockWalletTx(ctx, tx, userID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to lock wallet", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock wallet: %w", op, err)
	}

	wallet.Balance, err = s.walletRepo.AddBalance(ctx, tx, userID, amount)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to update balance", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	if err := s.txRepo.CreateTransaction(ctx, tx, userID, amount, models.TxTypeDeposit, remark); err != nil {
		rollback(logger, tx)
		logger.Error("failed to record deposit", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to record deposit: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("deposit completed", slog.Int64("balance", wallet.Balance))
	return wallet, nil
}
