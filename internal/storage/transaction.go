package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/topup-shop/internal/domain/models"
)

// TransactionStorage описывает журнал операций по кошельку.
type TransactionStorage interface {
	// CreateTransaction создает запись о движении баланса.
	CreateTransaction(ctx context.Context, tx *sql.Tx, userID int64, amount int64, txType, remark string) error
	// GetTransactionsByUserID возвращает операции пользователя.
	GetTransactionsByUserID(ctx context.Context, userID int64) ([]*models.Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionStorage {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *sql.Tx, userID int64, amount int64, txType, remark string) error {
	query := `INSERT INTO transactions (user_id, amount, type, remark, created_at)
	          VALUES ($1, $2, $3, $4, NOW())`
	_, err := tx.ExecContext(ctx, query, userID, amount, txType, remark)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetTransactionsByUserID(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, amount, type, remark, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, userID)
}

func (r *transactionRepository) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	limit, offset = normalizePage(limit, offset)
	query := `
		SELECT id, user_id, amount, type, remark, created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	return r.query(ctx, query, limit, offset)
}

func (r *transactionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Remark, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}
