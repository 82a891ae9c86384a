package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/storage"
)

// WalletService: чтение баланса и истории операций
type WalletService interface {
	// Balance возвращает кошелек пользователя из токена; email, если задан, должен совпадать с его email.
	Balance(ctx context.Context, userID int64, email string) (*models.Wallet, error)
	BalanceByTelegramID(ctx context.Context, telegramID int64) (*models.Wallet, error)
	Transactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
}

type walletService struct {
	log        *slog.Logger
	accounts   *accounts
	walletRepo storage.WalletStorage
	txRepo     storage.TransactionStorage
}

func NewWalletService(log *slog.Logger, userRepo storage.UserStorage, walletRepo storage.WalletStorage, txRepo storage.TransactionStorage) WalletService {
	return &walletService{
		log:        log,
		accounts:   &accounts{userRepo: userRepo},
		walletRepo: walletRepo,
		txRepo:     txRepo,
	}
}

func (s *walletService) Balance(ctx context.Context, userID int64, email string) (*models.Wallet, error) {
	const op = "service.WalletService.Balance"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.accounts.owner(ctx, userID, email); err != nil {
		logger.Warn("wallet access denied", slog.String("email", email), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	wallet, err := s.walletRepo.GetWallet(ctx, userID)
	if err != nil {
		logger.Error("failed to get wallet", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get wallet: %w", op, err)
	}
	return wallet, nil
}

// BalanceByTelegramID используется ботом в команде /balance
func (s *walletService) BalanceByTelegramID(ctx context.Context, telegramID int64) (*models.Wallet, error) {
	const op = "service.WalletService.BalanceByTelegramID"

	user, err := s.accounts.userRepo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	wallet, err := s.walletRepo.GetWallet(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get wallet: %w", op, err)
	}
	return wallet, nil
}

func (s *walletService) Transactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	const op = "service.WalletService.Transactions"

	txs, err := s.txRepo.GetTransactionsByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get transactions", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}
