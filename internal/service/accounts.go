package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/storage"
)

// accounts: общая часть для регистрации по паролю и через Telegram:
// пользователь и его кошелек создаются одной транзакцией.
type accounts struct {
	db             *sql.DB
	userRepo       storage.UserStorage
	walletRepo     storage.WalletStorage
	txRepo         storage.TransactionStorage
	initialBalance int64
}

func (a *accounts) create(ctx context.Context, logger *slog.Logger, user *models.User) (*models.User, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	created, err := a.userRepo.CreateUser(ctx, tx, user)
	if err != nil {
		rollback(logger, tx)
		return nil, err
	}

	if err := a.walletRepo.CreateWallet(ctx, tx, created.ID, a.initialBalance); err != nil {
		rollback(logger, tx)
		return nil, err
	}

	if a.initialBalance > 0 {
		if err := a.txRepo.CreateTransaction(ctx, tx, created.ID, a.initialBalance, models.TxTypeDeposit, "welcome bonus"); err != nil {
			rollback(logger, tx)
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// owner возвращает пользователя из токена и проверяет, что email из запроса принадлежит ему.
// Пустой email означает "текущий пользователь".
func (a *accounts) owner(ctx context.Context, userID int64, email string) (*models.User, error) {
	user, err := a.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if email != "" && !sameEmail(user.Email, email) {
		return nil, ErrForbidden
	}
	return user, nil
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
