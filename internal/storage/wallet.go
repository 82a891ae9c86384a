package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
)

// WalletStorage описывает методы для работы с кошельками.
// Все изменяющие методы: условные UPDATE, которые не дают уйти в минус
// и не дают дважды списать один и тот же кредит спина.
type WalletStorage interface {
	CreateWallet(ctx context.Context, tx *sql.Tx, userID int64, balance int64) error
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	LockWalletTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Wallet, error)
	ConsumeFreeSpin(ctx context.Context, tx *sql.Tx, userID int64, now, next time.Time) error
	ConsumeToken(ctx context.Context, tx *sql.Tx, userID int64) (int, error)
	AddTokens(ctx context.Context, tx *sql.Tx, userID int64, n int) (int, error)
	AddBalance(ctx context.Context, tx *sql.Tx, userID int64, delta int64) (int64, error)
	ListWallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error)
}

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) WalletStorage {
	return &walletRepository{db: db}
}

const walletColumns = "user_id, balance, tokens, free_next_at, updated_at"

func scanWallet(row rowScanner) (*models.Wallet, error) {
	w := &models.Wallet{}
	var freeNext sql.NullTime
	if err := row.Scan(&w.UserID, &w.Balance, &w.Tokens, &freeNext, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if freeNext.Valid {
		t := freeNext.Time
		w.FreeNextAt = &t
	}
	return w, nil
}

func (r *walletRepository) CreateWallet(ctx context.Context, tx *sql.Tx, userID int64, balance int64) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO wallets (user_id, balance, tokens) VALUES ($1, $2, 0)", userID, balance)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	w, err := scanWallet(r.db.QueryRowContext(ctx, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1", userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// LockWalletTx блокирует строку кошелька до конца транзакции
func (r *walletRepository) LockWalletTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRowContext(ctx, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1 FOR UPDATE", userID))
	if err != nil {
		if isLockNotAvailable(err) {
			return nil, fmt.Errorf("resource is locked, please try again: %w", err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// ConsumeFreeSpin списывает бесплатный спин, только если он доступен на момент now
func (r *walletRepository) ConsumeFreeSpin(ctx context.Context, tx *sql.Tx, userID int64, now, next time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET free_next_at = $1, updated_at = NOW()
		 WHERE user_id = $2 AND (free_next_at IS NULL OR free_next_at <= $3)`,
		next, userID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to consume free spin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoSpinCredit
	}
	return nil
}

// ConsumeToken списывает один токен и возвращает остаток
func (r *walletRepository) ConsumeToken(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var tokens int
	err := tx.QueryRowContext(ctx,
		`UPDATE wallets SET tokens = tokens - 1, updated_at = NOW()
		 WHERE user_id = $1 AND tokens > 0 RETURNING tokens`,
		userID,
	).Scan(&tokens)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoSpinCredit
		}
		return 0, fmt.Errorf("failed to consume token: %w", err)
	}
	return tokens, nil
}

func (r *walletRepository) AddTokens(ctx context.Context, tx *sql.Tx, userID int64, n int) (int, error) {
	var tokens int
	err := tx.QueryRowContext(ctx,
		`UPDATE wallets SET tokens = tokens + $1, updated_at = NOW()
		 WHERE user_id = $2 RETURNING tokens`,
		n, userID,
	).Scan(&tokens)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("failed to add tokens: %w", err)
	}
	return tokens, nil
}

// AddBalance меняет баланс на delta (может быть отрицательным) и возвращает новый баланс.
// Если баланс ушел бы в минус, строка не обновляется и возвращается ErrInsufficientFunds.
func (r *walletRepository) AddBalance(ctx context.Context, tx *sql.Tx, userID int64, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		 WHERE user_id = $2 AND balance + $1 >= 0 RETURNING balance`,
		delta, userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

func (r *walletRepository) ListWallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := r.db.QueryContext(ctx, "SELECT "+walletColumns+" FROM wallets ORDER BY user_id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return wallets, nil
}
